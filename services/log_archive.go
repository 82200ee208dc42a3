package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"sekolah_go/middleware"
	"sekolah_go/models"
	"sekolah_go/storage"
	"sekolah_go/utils"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MinArchiveAgeDays guards against archiving recent logs by mistake
const MinArchiveAgeDays = 7

// LogArchiveService moves buffered activity logs into the database and
// archives old rows to object storage.
type LogArchiveService struct {
	db    *gorm.DB
	redis *redis.Client
	store storage.ObjectStore
	now   func() time.Time
}

// ArchivedLog is the exported representation stored inside archives
type ArchivedLog struct {
	ID         uint                   `json:"id"`
	UserID     uint                   `json:"user_id"`
	UserName   string                 `json:"user_name,omitempty"`
	UserRole   models.Role            `json:"user_role,omitempty"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID uint                   `json:"resource_id"`
	Details    map[string]interface{} `json:"details,omitempty"`
	IPAddress  string                 `json:"ip_address"`
	UserAgent  string                 `json:"user_agent"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewLogArchiveService creates a new service instance; rdb may be nil
func NewLogArchiveService(db *gorm.DB, rdb *redis.Client, store storage.ObjectStore) *LogArchiveService {
	return &LogArchiveService{db: db, redis: rdb, store: store, now: time.Now}
}

// FlushCachedLogsToDatabase moves every buffered log from Redis into the database
func (las *LogArchiveService) FlushCachedLogsToDatabase(ctx context.Context) (int, error) {
	if las.redis == nil {
		return 0, errors.New("redis client not available")
	}

	keys, err := las.redis.ZRangeByScore(ctx, middleware.LogQueueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(las.now().Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("read log queue: %w", err)
	}

	processed, failed := 0, 0
	for _, key := range keys {
		raw, err := las.redis.Get(ctx, key).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				failed++
				continue
			}
			// expired before we got to it
			las.redis.ZRem(ctx, middleware.LogQueueKey, key)
			continue
		}

		var entry models.ActivityLog
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			logrus.WithError(err).WithField("key", key).Error("corrupt buffered log dropped")
			las.redis.ZRem(ctx, middleware.LogQueueKey, key)
			failed++
			continue
		}
		entry.ID = 0
		if err := las.db.WithContext(ctx).Create(&entry).Error; err != nil {
			failed++
			continue
		}

		pipe := las.redis.Pipeline()
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, middleware.LogQueueKey, key)
		if _, err := pipe.Exec(ctx); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("failed to remove flushed log from cache")
		}
		processed++
	}

	if processed > 0 || failed > 0 {
		logrus.WithFields(logrus.Fields{"flushed": processed, "errors": failed}).Info("activity log flush")
	}
	return processed, nil
}

// ArchiveOldLogs uploads logs older than daysOld as a zip of JSON and CSV,
// deletes them and records a LogArchive row.
func (las *LogArchiveService) ArchiveOldLogs(ctx context.Context, daysOld int) (*models.LogArchive, error) {
	if daysOld < MinArchiveAgeDays {
		return nil, fmt.Errorf("minimum archive age is %d days", MinArchiveAgeDays)
	}
	if las.store == nil {
		return nil, storage.ErrNotConfigured
	}
	cutoff := las.now().AddDate(0, 0, -daysOld)

	var rows []models.ActivityLog
	if err := las.db.WithContext(ctx).Where("created_at < ?", cutoff).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load logs for archiving: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	logs, err := las.toArchived(ctx, rows)
	if err != nil {
		return nil, err
	}

	fileName := fmt.Sprintf("activity_logs_%s.zip", cutoff.Format("2006-01-02"))
	buf, err := createZipArchive(logs, fileName, las.now())
	if err != nil {
		return nil, fmt.Errorf("create zip archive: %w", err)
	}

	key := storage.ObjectKey("logs/archived", cutoff, fileName)
	archive := models.LogArchive{
		Kind:        "activity_logs",
		FileName:    fileName,
		S3Key:       key,
		EndDate:     cutoff,
		RecordCount: len(logs),
		FileSize:    int64(buf.Len()),
		Status:      "completed",
	}
	if err := las.store.Put(ctx, key, buf.Bytes(), "application/zip"); err != nil {
		archive.Status = "failed"
		archive.Error = err.Error()
		las.db.WithContext(ctx).Create(&archive)
		return &archive, fmt.Errorf("upload archive: %w", err)
	}

	err = las.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("created_at < ?", cutoff).Delete(&models.ActivityLog{}).Error; err != nil {
			return err
		}
		return tx.Create(&archive).Error
	})
	if err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	logrus.WithFields(logrus.Fields{"key": key, "records": len(logs)}).Info("activity logs archived")
	return &archive, nil
}

func (las *LogArchiveService) toArchived(ctx context.Context, rows []models.ActivityLog) ([]ArchivedLog, error) {
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	var users []models.User
	if err := las.db.WithContext(ctx).Select("id", "name", "role").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load log users: %w", err)
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	out := make([]ArchivedLog, 0, len(rows))
	for _, r := range rows {
		a := ArchivedLog{
			ID:         r.ID,
			UserID:     r.UserID,
			Action:     r.Action,
			Resource:   r.Resource,
			ResourceID: r.ResourceID,
			IPAddress:  r.IPAddress,
			UserAgent:  r.UserAgent,
			CreatedAt:  r.CreatedAt,
		}
		if u, ok := byID[r.UserID]; ok {
			a.UserName = u.Name
			a.UserRole = u.Role
		}
		if len(r.Details) > 0 {
			_ = json.Unmarshal(r.Details, &a.Details)
		}
		out = append(out, a)
	}
	return out, nil
}

func createZipArchive(logs []ArchivedLog, fileName string, now time.Time) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	jf, err := zw.Create("activity_logs.json")
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(jf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]interface{}{
		"file_name":      fileName,
		"export_date":    now.UTC(),
		"record_count":   len(logs),
		"format_version": "1.0",
		"logs":           logs,
	}); err != nil {
		return nil, err
	}

	cf, err := zw.Create("activity_logs.csv")
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(cf)
	_ = w.Write([]string{"ID", "User ID", "User", "Role", "Action", "Resource", "Resource ID", "IP Address", "User Agent", "Created At", "Details"})
	for _, l := range logs {
		details := ""
		if l.Details != nil {
			if b, err := json.Marshal(l.Details); err == nil {
				details = string(b)
			}
		}
		_ = w.Write([]string{
			strconv.FormatUint(uint64(l.ID), 10),
			strconv.FormatUint(uint64(l.UserID), 10),
			l.UserName,
			string(l.UserRole),
			l.Action,
			l.Resource,
			strconv.FormatUint(uint64(l.ResourceID), 10),
			l.IPAddress,
			l.UserAgent,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			details,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

// GetArchivedLogs lists archives, newest first
func (las *LogArchiveService) GetArchivedLogs(ctx context.Context) ([]models.LogArchive, error) {
	var archives []models.LogArchive
	if err := las.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&archives).Error; err != nil {
		return nil, fmt.Errorf("load archives: %w", err)
	}
	return archives, nil
}

// DownloadArchive opens an archive's object; the caller closes the reader
func (las *LogArchiveService) DownloadArchive(ctx context.Context, archiveID uint) (io.ReadCloser, string, error) {
	var archive models.LogArchive
	if err := las.db.WithContext(ctx).First(&archive, archiveID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", utils.NotFound("archive not found")
		}
		return nil, "", fmt.Errorf("load archive: %w", err)
	}
	if las.store == nil {
		return nil, "", storage.ErrNotConfigured
	}
	rc, err := las.store.Get(ctx, archive.S3Key)
	if err != nil {
		return nil, "", err
	}
	return rc, archive.FileName, nil
}
