package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sekolah_go/database"
	"sekolah_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	// LogQueueKey is the sorted set of buffered activity-log keys, scored by unix time.
	LogQueueKey    = "logs:queue"
	logKeyPrefix   = "log:"
	logBufferTTL   = 24 * time.Hour
	requestIDLocal = "requestid"
)

// RequestID returns the id assigned to the request by the requestid middleware
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDLocal).(string); ok && id != "" {
		return id
	}
	if id := c.Get(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		entry := logrus.WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"duration":   time.Since(start).String(),
			"ip":         c.IP(),
			"request_id": RequestID(c),
			"user_id":    CurrentUserID(c),
		})
		switch {
		case status >= 500:
			entry.Error("HTTP Request")
		case status >= 400:
			entry.Warn("HTTP Request")
		default:
			entry.Info("HTTP Request")
		}

		return err
	}
}

// LogActivity records a user action. The entry is buffered in Redis and
// flushed to the database by the scheduler; without Redis it is written
// directly.
func LogActivity(c *fiber.Ctx, action, resource string, resourceID uint, details interface{}) {
	c.Locals("activity_logged", true)
	now := time.Now()
	activityLog := models.ActivityLog{
		UserID:     CurrentUserID(c),
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  c.IP(),
		UserAgent:  c.Get(fiber.HeaderUserAgent),
	}
	activityLog.CreatedAt = now
	activityLog.UpdatedAt = now

	meta := map[string]interface{}{
		"details":        details,
		"integrity_hash": integrityHash(activityLog),
		"request_id":     RequestID(c),
		"method":         c.Method(),
		"path":           c.Path(),
		"status_code":    c.Response().StatusCode(),
	}
	if b, err := json.Marshal(meta); err == nil {
		activityLog.Details = datatypes.JSON(b)
	}

	go func(al models.ActivityLog) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("panic recovered in LogActivity goroutine")
			}
		}()
		if err := BufferActivityLog(context.Background(), database.GetRedisClient(), al); err != nil {
			logrus.WithError(err).Debug("activity log not buffered, writing to database")
			if database.DB == nil {
				logrus.Error("database.DB is nil; cannot save activity log")
				return
			}
			if dbErr := database.DB.Create(&al).Error; dbErr != nil {
				logrus.WithError(dbErr).Error("Failed to save activity log to database")
			}
		}
	}(activityLog)
}

// integrityHash lets the archiver detect edited rows
func integrityHash(l models.ActivityLog) string {
	data := fmt.Sprintf("%d:%s:%s:%d:%s:%s:%s",
		l.UserID, l.Action, l.Resource, l.ResourceID, l.IPAddress, l.UserAgent,
		l.CreatedAt.UTC().Format(time.RFC3339Nano))
	return fmt.Sprintf("%x", sha256.Sum256([]byte(data)))
}

// BufferActivityLog stores a log entry in Redis and queues its key
func BufferActivityLog(ctx context.Context, rdb *redis.Client, l models.ActivityLog) error {
	if rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal activity log: %w", err)
	}
	key := fmt.Sprintf("%s%d:%s:%s", logKeyPrefix, l.UserID, l.Action, uuid.NewString())

	pipe := rdb.TxPipeline()
	pipe.Set(ctx, key, data, logBufferTTL)
	pipe.ZAdd(ctx, LogQueueKey, &redis.Z{Score: float64(l.CreatedAt.Unix()), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("buffer activity log: %w", err)
	}
	return nil
}

// LogActivityMiddleware records successful mutating requests that the
// handler did not log itself.
func LogActivityMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet || strings.Contains(c.Path(), "/auth/") {
			return c.Next()
		}

		err := c.Next()

		var action string
		switch c.Method() {
		case fiber.MethodPost:
			action = "CREATE"
		case fiber.MethodPut, fiber.MethodPatch:
			action = "UPDATE"
		case fiber.MethodDelete:
			action = "DELETE"
		default:
			return err
		}
		if logged, _ := c.Locals("activity_logged").(bool); logged {
			return err
		}

		// /api/<role>/<resource>/...
		parts := strings.Split(strings.Trim(c.Path(), "/"), "/")
		resource := ""
		if len(parts) >= 3 {
			resource = parts[2]
		} else if len(parts) == 2 {
			resource = parts[1]
		}

		var resourceID uint
		if id, perr := strconv.ParseUint(c.Params("id"), 10, 32); perr == nil {
			resourceID = uint(id)
		}

		if c.Response().StatusCode() < 400 {
			LogActivity(c, action, resource, resourceID, nil)
		}
		return err
	}
}
