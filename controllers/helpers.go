package controllers

import (
	"strconv"
	"time"

	"sekolah_go/database"
	"sekolah_go/models"
	"sekolah_go/services/progress"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// paramID parses a positive integer route parameter
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, utils.NewValidationError("invalid " + name)
	}
	return uint(id), nil
}

// parseBody decodes the JSON body and runs validation tags
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return utils.NewValidationError("invalid request body")
	}
	return utils.ValidateStruct(out)
}

func progressService() *progress.Service {
	return progress.NewService(database.DB)
}

func dbFor(c *fiber.Ctx) *gorm.DB {
	return database.DB.WithContext(c.UserContext())
}

// touchActivity records that the user did something worth counting as activity
func touchActivity(c *fiber.Ctx, userID uint) {
	now := time.Now()
	if err := dbFor(c).Model(&models.User{}).Where("id = ?", userID).Update("last_activity_at", now).Error; err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("update last activity")
	}
}

func queryInt(c *fiber.Ctx, key string, def, max int) int {
	v := c.QueryInt(key, def)
	if v <= 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
