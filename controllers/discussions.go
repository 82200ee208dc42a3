package controllers

import (
	"time"

	"sekolah_go/models"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	anonymousName     = "anonymous"
	minMessageLength  = 5
	discussionPreview = 100
)

type classMessage struct {
	ID        uint        `json:"id"`
	ClassID   uint        `json:"class_id"`
	ClassName string      `json:"class_name"`
	UserID    uint        `json:"user_id"`
	UserName  string      `json:"user_name"`
	UserRole  models.Role `json:"user_role"`
	Content   string      `json:"content"`
	Preview   string      `json:"preview"`
	CreatedAt time.Time   `json:"created_at"`
}

type materialMessage struct {
	ID            uint        `json:"id"`
	MaterialID    uint        `json:"material_id"`
	MaterialTitle string      `json:"material_title"`
	UserID        uint        `json:"user_id"`
	UserName      string      `json:"user_name"`
	UserRole      models.Role `json:"user_role"`
	Content       string      `json:"content"`
	ParentID      *uint       `json:"parent_id"`
	CreatedAt     time.Time   `json:"created_at"`
}

// classDiscussions loads class messages newest first. A nil classIDs means every class.
func classDiscussions(c *fiber.Ctx, classIDs []uint, limit int) ([]classMessage, error) {
	out := []classMessage{}
	if classIDs != nil && len(classIDs) == 0 {
		return out, nil
	}
	q := dbFor(c).Table("discussions").
		Select("discussions.id, discussions.class_id, classes.name AS class_name, discussions.user_id, " +
			"users.name AS user_name, discussions.user_role, discussions.content, discussions.created_at").
		Joins("LEFT JOIN classes ON classes.id = discussions.class_id").
		Joins("LEFT JOIN users ON users.id = discussions.user_id").
		Order("discussions.created_at DESC").Order("discussions.id DESC")
	if classIDs != nil {
		q = q.Where("discussions.class_id IN ?", classIDs)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].UserName == "" {
			out[i].UserName = anonymousName
		}
		out[i].Preview = utils.Preview(out[i].Content, discussionPreview)
	}
	return out, nil
}

// materialDiscussions loads material messages oldest first so replies follow their parent
func materialDiscussions(c *fiber.Ctx, materialIDs []uint) ([]materialMessage, error) {
	out := []materialMessage{}
	if len(materialIDs) == 0 {
		return out, nil
	}
	err := dbFor(c).Table("material_discussions").
		Select("material_discussions.id, material_discussions.material_id, materials.title AS material_title, " +
			"material_discussions.user_id, users.name AS user_name, material_discussions.user_role, " +
			"material_discussions.content, material_discussions.parent_id, material_discussions.created_at").
		Joins("LEFT JOIN materials ON materials.id = material_discussions.material_id").
		Joins("LEFT JOIN users ON users.id = material_discussions.user_id").
		Where("material_discussions.material_id IN ?", materialIDs).
		Order("material_discussions.created_at ASC").Order("material_discussions.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].UserName == "" {
			out[i].UserName = anonymousName
		}
	}
	return out, nil
}

// messageContent trims and checks the minimum length of a posted message
func messageContent(raw string) (string, error) {
	content := utils.SanitizeString(raw)
	if len([]rune(content)) < minMessageLength {
		return "", utils.NewValidationError("content must be at least 5 characters")
	}
	return content, nil
}
