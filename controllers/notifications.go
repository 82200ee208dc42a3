package controllers

import (
	"errors"
	"time"

	"sekolah_go/middleware"
	"sekolah_go/models"
	"sekolah_go/services/notifications"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type NotificationController struct {
	Notifications *notifications.Service
}

// GetNotifications returns notifications for the current user
func (nc *NotificationController) GetNotifications(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return utils.Fail(c, fiber.StatusUnauthorized, "unauthorized")
	}
	userID := user.ID
	page := queryInt(c, "page", 1, 0)
	limit := queryInt(c, "limit", 10, 100)

	query := dbFor(c).Model(&models.Notification{}).Where("user_id = ?", userID)
	switch c.Query("read") {
	case "true":
		query = query.Where(map[string]interface{}{"read": true})
	case "false":
		query = query.Where(map[string]interface{}{"read": false})
	}
	if t := c.Query("type"); t != "" {
		query = query.Where("type = ?", t)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.FailFromError(c, err, "failed to fetch notifications")
	}
	var items []models.Notification
	if err := query.Order("created_at DESC").Order("id DESC").Offset((page - 1) * limit).Limit(limit).Find(&items).Error; err != nil {
		return utils.FailFromError(c, err, "failed to fetch notifications")
	}
	out := make([]utils.NotificationDTO, 0, len(items))
	for _, n := range items {
		out = append(out, utils.ToNotificationDTO(n, *user))
	}
	return utils.OK(c, fiber.Map{
		"notifications": out,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetUnreadCount returns how many notifications the user has not read
func (nc *NotificationController) GetUnreadCount(c *fiber.Ctx) error {
	var n int64
	err := dbFor(c).Model(&models.Notification{}).
		Where("user_id = ?", middleware.CurrentUserID(c)).
		Where(map[string]interface{}{"read": false}).
		Count(&n).Error
	if err != nil {
		return utils.FailFromError(c, err, "failed to count notifications")
	}
	return utils.OK(c, fiber.Map{"unread_count": n})
}

// MarkAsRead marks one of the user's notifications as read
func (nc *NotificationController) MarkAsRead(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	var n models.Notification
	err = dbFor(c).Where("id = ? AND user_id = ?", id, middleware.CurrentUserID(c)).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.Fail(c, fiber.StatusNotFound, "notification not found")
	}
	if err != nil {
		return utils.FailFromError(c, err, "failed to update notification")
	}
	if !n.Read {
		now := time.Now()
		if err := dbFor(c).Model(&n).Updates(map[string]interface{}{"read": true, "read_at": now}).Error; err != nil {
			return utils.FailFromError(c, err, "failed to update notification")
		}
		n.Read = true
		n.ReadAt = &now
	}
	return utils.OKMessage(c, "notification marked as read", n)
}

// MarkAllAsRead marks every unread notification of the user as read
func (nc *NotificationController) MarkAllAsRead(c *fiber.Ctx) error {
	res := dbFor(c).Model(&models.Notification{}).
		Where("user_id = ?", middleware.CurrentUserID(c)).
		Where(map[string]interface{}{"read": false}).
		Updates(map[string]interface{}{"read": true, "read_at": time.Now()})
	if res.Error != nil {
		return utils.FailFromError(c, res.Error, "failed to update notifications")
	}
	return utils.OKMessage(c, "all notifications marked as read", fiber.Map{"updated": res.RowsAffected})
}

// AnnouncementRequest is a headmaster broadcast. Without a role or class it goes to every active user.
type AnnouncementRequest struct {
	Title   string      `json:"title" validate:"required,max=255"`
	Message string      `json:"message" validate:"required"`
	Role    models.Role `json:"role" validate:"omitempty,oneof=headmaster teacher student"`
	ClassID *uint       `json:"class_id"`
}

// CreateAnnouncement notifies a role, a class or the whole school
func (nc *NotificationController) CreateAnnouncement(c *fiber.Ctx) error {
	var req AnnouncementRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}

	q := dbFor(c).Model(&models.User{}).Where("status = ?", models.StatusActive)
	if req.Role != "" {
		q = q.Where("role = ?", req.Role)
	}
	if req.ClassID != nil {
		if _, err := findClass(c, *req.ClassID); err != nil {
			return utils.FailFromError(c, err, "failed to send announcement")
		}
		q = q.Where("id IN (?) OR id IN (?)",
			dbFor(c).Model(&models.Enrollment{}).Select("student_id").Where("class_id = ?", *req.ClassID),
			dbFor(c).Model(&models.TeachingAssignment{}).Select("teacher_id").Where("class_id = ?", *req.ClassID))
	}
	var ids []uint
	if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
		return utils.FailFromError(c, err, "failed to send announcement")
	}
	if len(ids) == 0 {
		return utils.Fail(c, fiber.StatusBadRequest, "no recipients")
	}

	err := nc.Notifications.EnqueueOrCreate(c.UserContext(), ids, notifications.Payload{
		Title:   utils.SanitizeString(req.Title),
		Message: req.Message,
		Type:    notifications.TypeAnnouncement,
		Data:    fiber.Map{"role": req.Role, "class_id": req.ClassID},
	})
	if err != nil {
		return utils.FailFromError(c, err, "failed to send announcement")
	}

	middleware.LogActivity(c, "ANNOUNCE", "notifications", 0, fiber.Map{"recipients": len(ids), "role": req.Role, "class_id": req.ClassID})
	return utils.Created(c, "announcement sent", fiber.Map{"recipients": len(ids)})
}
