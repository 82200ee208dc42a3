package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"sekolah_go/middleware"
	"sekolah_go/models"
	"sekolah_go/services"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
)

// LogController exposes the activity log to the headmaster
type LogController struct {
	Archive *services.LogArchiveService
}

// LogResponse represents a log entry response
type LogResponse struct {
	ID         uint                   `json:"id"`
	UserID     uint                   `json:"user_id"`
	UserName   string                 `json:"user_name"`
	UserRole   models.Role            `json:"user_role"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID uint                   `json:"resource_id"`
	Details    map[string]interface{} `json:"details"`
	IPAddress  string                 `json:"ip_address"`
	UserAgent  string                 `json:"user_agent"`
	CreatedAt  time.Time              `json:"created_at"`
}

type logRow struct {
	models.ActivityLog
	UserName string
	UserRole models.Role
}

func (r logRow) response() LogResponse {
	out := LogResponse{
		ID:         r.ID,
		UserID:     r.UserID,
		UserName:   r.UserName,
		UserRole:   r.UserRole,
		Action:     r.Action,
		Resource:   r.Resource,
		ResourceID: r.ResourceID,
		IPAddress:  r.IPAddress,
		UserAgent:  r.UserAgent,
		CreatedAt:  r.CreatedAt,
	}
	if len(r.Details) > 0 {
		var details map[string]interface{}
		if err := json.Unmarshal(r.Details, &details); err == nil {
			out.Details = details
		}
	}
	return out
}

// GetLogs retrieves paginated activity logs with filters
func (lc *LogController) GetLogs(c *fiber.Ctx) error {
	page := queryInt(c, "page", 1, 0)
	limit := queryInt(c, "limit", 50, 100)

	query := dbFor(c).Model(&models.ActivityLog{})
	if userID := c.QueryInt("user_id"); userID > 0 {
		query = query.Where("activity_logs.user_id = ?", userID)
	}
	if action := c.Query("action"); action != "" {
		query = query.Where("activity_logs.action = ?", action)
	}
	if resource := c.Query("resource"); resource != "" {
		query = query.Where("activity_logs.resource = ?", resource)
	}
	if startDate := c.Query("start_date"); startDate != "" {
		if parsed, err := time.Parse("2006-01-02", startDate); err == nil {
			query = query.Where("activity_logs.created_at >= ?", parsed)
		}
	}
	if endDate := c.Query("end_date"); endDate != "" {
		if parsed, err := time.Parse("2006-01-02", endDate); err == nil {
			query = query.Where("activity_logs.created_at < ?", parsed.Add(24*time.Hour))
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.FailFromError(c, err, "failed to count logs")
	}

	var rows []logRow
	err := query.Select("activity_logs.*, users.name AS user_name, users.role AS user_role").
		Joins("LEFT JOIN users ON users.id = activity_logs.user_id").
		Order("activity_logs.created_at DESC").Order("activity_logs.id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return utils.FailFromError(c, err, "failed to retrieve logs")
	}

	logs := make([]LogResponse, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, r.response())
	}
	return utils.OK(c, fiber.Map{
		"logs":        logs,
		"total":       total,
		"page":        page,
		"limit":       limit,
		"total_pages": (total + int64(limit) - 1) / int64(limit),
	})
}

// GetLogStats summarizes the log by action and resource
func (lc *LogController) GetLogStats(c *fiber.Ctx) error {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var total, totalToday int64
	if err := dbFor(c).Model(&models.ActivityLog{}).Count(&total).Error; err != nil {
		return utils.FailFromError(c, err, "failed to load log stats")
	}
	if err := dbFor(c).Model(&models.ActivityLog{}).Where("created_at >= ?", today).Count(&totalToday).Error; err != nil {
		return utils.FailFromError(c, err, "failed to load log stats")
	}

	breakdown := func(column string) (map[string]int64, error) {
		var rows []struct {
			Name  string
			Count int64
		}
		err := dbFor(c).Model(&models.ActivityLog{}).
			Select(column + " AS name, COUNT(*) AS count").
			Group(column).
			Scan(&rows).Error
		out := make(map[string]int64, len(rows))
		for _, r := range rows {
			out[r.Name] = r.Count
		}
		return out, err
	}
	actions, err := breakdown("action")
	if err != nil {
		return utils.FailFromError(c, err, "failed to load log stats")
	}
	resources, err := breakdown("resource")
	if err != nil {
		return utils.FailFromError(c, err, "failed to load log stats")
	}

	return utils.OK(c, fiber.Map{
		"total":              total,
		"total_today":        totalToday,
		"action_breakdown":   actions,
		"resource_breakdown": resources,
	})
}

// FlushCachedLogs moves buffered Redis log entries into the database
func (lc *LogController) FlushCachedLogs(c *fiber.Ctx) error {
	n, err := lc.Archive.FlushCachedLogsToDatabase(c.UserContext())
	if err != nil {
		return utils.FailFromError(c, err, "failed to flush cached logs")
	}
	return utils.OKMessage(c, "cached logs flushed", fiber.Map{"processed_count": n})
}

// ArchiveLogs archives logs older than `days` (default 30) to object storage
func (lc *LogController) ArchiveLogs(c *fiber.Ctx) error {
	days := queryInt(c, "days", 30, 0)
	archive, err := lc.Archive.ArchiveOldLogs(c.UserContext(), days)
	if err != nil {
		return utils.FailFromError(c, err, "failed to archive logs")
	}
	if archive == nil {
		return utils.OKMessage(c, "no logs old enough to archive", nil)
	}
	middleware.LogActivity(c, "ARCHIVE", "activity-logs", archive.ID, fiber.Map{"records": archive.RecordCount, "days": days})
	return utils.OKMessage(c, fmt.Sprintf("%d logs archived", archive.RecordCount), archive)
}

// GetArchives lists archived log bundles and class reports
func (lc *LogController) GetArchives(c *fiber.Ctx) error {
	archives, err := lc.Archive.GetArchivedLogs(c.UserContext())
	if err != nil {
		return utils.FailFromError(c, err, "failed to load archives")
	}
	return utils.OK(c, archives)
}

// DownloadArchive streams one archive file from storage
func (lc *LogController) DownloadArchive(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	body, name, err := lc.Archive.DownloadArchive(c.UserContext(), id)
	if err != nil {
		return utils.FailFromError(c, err, "failed to download archive")
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return utils.FailFromError(c, err, "failed to download archive")
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Type(strings.TrimPrefix(filepath.Ext(name), "."))
	return c.Send(data)
}
