package controllers

import (
	"errors"
	"time"

	"sekolah_go/middleware"
	"sekolah_go/models"
	"sekolah_go/services/progress"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// MaterialRequest is the body of POST /teacher/materials
type MaterialRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Content     string `json:"content" validate:"required"`
	ClassIDs    []uint `json:"class_ids" validate:"required,min=1"`
}

// MaterialUpdateRequest is the body of PUT /teacher/materials/:id; omitted fields are kept
type MaterialUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	Content     *string `json:"content"`
	ClassIDs    []uint  `json:"class_ids"`
}

type teacherMaterialItem struct {
	ID              uint                `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Content         string              `json:"content"`
	Classes         []progress.ClassRef `json:"classes"`
	ClassNames      string              `json:"class_names"`
	AssignmentCount int                 `json:"assignment_count"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// ownMaterial loads a material owned by the teacher. Someone else's material
// is reported as missing.
func ownMaterial(tx *gorm.DB, id, teacherID uint) (*models.Material, error) {
	var m models.Material
	err := tx.Where("id = ? AND teacher_id = ?", id, teacherID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFound("material not found")
	}
	return &m, err
}

func linkClasses(tx *gorm.DB, materialID uint, classIDs []uint) error {
	if err := tx.Where("material_id = ?", materialID).Delete(&models.MaterialClass{}).Error; err != nil {
		return err
	}
	links := make([]models.MaterialClass, 0, len(classIDs))
	for _, id := range classIDs {
		links = append(links, models.MaterialClass{MaterialID: materialID, ClassID: id})
	}
	return tx.Create(&links).Error
}

// GetMaterials lists the teacher's materials with their classes
func (tc *TeacherController) GetMaterials(c *fiber.Ctx) error {
	teacherID := middleware.CurrentUserID(c)
	var materials []models.Material
	if err := dbFor(c).Where("teacher_id = ?", teacherID).Order("created_at DESC").Order("id DESC").Find(&materials).Error; err != nil {
		return utils.FailFromError(c, err, "failed to load materials")
	}
	ids := make([]uint, 0, len(materials))
	for _, m := range materials {
		ids = append(ids, m.ID)
	}
	links, err := progressService().ClassesForMaterials(c.UserContext(), ids)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load materials")
	}
	var counts []struct {
		MaterialID uint
		N          int
	}
	if len(ids) > 0 {
		err = dbFor(c).Model(&models.Assignment{}).
			Select("material_id, COUNT(*) AS n").
			Where("material_id IN ?", ids).
			Group("material_id").
			Scan(&counts).Error
		if err != nil {
			return utils.FailFromError(c, err, "failed to load materials")
		}
	}
	assignments := make(map[uint]int, len(counts))
	for _, row := range counts {
		assignments[row.MaterialID] = row.N
	}

	out := make([]teacherMaterialItem, 0, len(materials))
	for _, m := range materials {
		classes := links[m.ID]
		if classes == nil {
			classes = []progress.ClassRef{}
		}
		out = append(out, teacherMaterialItem{
			ID:              m.ID,
			Title:           m.Title,
			Description:     m.Description,
			Content:         m.Content,
			Classes:         classes,
			ClassNames:      progress.ClassNames(classes),
			AssignmentCount: assignments[m.ID],
			CreatedAt:       m.CreatedAt,
			UpdatedAt:       m.UpdatedAt,
		})
	}
	return utils.OK(c, out)
}

// CreateMaterial stores a material and links it to the given classes
func (tc *TeacherController) CreateMaterial(c *fiber.Ctx) error {
	var req MaterialRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	classIDs := uniqueUint(req.ClassIDs)
	if len(classIDs) == 0 {
		return utils.Fail(c, fiber.StatusBadRequest, "class_ids is required")
	}

	material := models.Material{
		Title:       utils.SanitizeString(req.Title),
		Description: req.Description,
		Content:     req.Content,
		TeacherID:   middleware.CurrentUserID(c),
	}
	err := dbFor(c).Transaction(func(tx *gorm.DB) error {
		if err := classesExist(tx, classIDs); err != nil {
			return err
		}
		if err := tx.Create(&material).Error; err != nil {
			return err
		}
		return linkClasses(tx, material.ID, classIDs)
	})
	if err != nil {
		return utils.FailFromError(c, err, "failed to create material")
	}

	middleware.LogActivity(c, "CREATE", "materials", material.ID, fiber.Map{"title": material.Title, "class_ids": classIDs})
	return utils.Created(c, "material created", fiber.Map{"id": material.ID, "title": material.Title, "class_ids": classIDs})
}

// UpdateMaterial edits an owned material; class_ids, when present, replace the links
func (tc *TeacherController) UpdateMaterial(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	var req MaterialUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	if req.ClassIDs != nil && len(uniqueUint(req.ClassIDs)) == 0 {
		return utils.Fail(c, fiber.StatusBadRequest, "class_ids must not be empty")
	}

	teacherID := middleware.CurrentUserID(c)
	var material *models.Material
	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		m, err := ownMaterial(tx, id, teacherID)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if req.Title != nil {
			title := utils.SanitizeString(*req.Title)
			if title == "" {
				return utils.NewValidationError("title must not be empty")
			}
			updates["title"] = title
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Content != nil {
			if utils.SanitizeString(*req.Content) == "" {
				return utils.NewValidationError("content must not be empty")
			}
			updates["content"] = *req.Content
		}
		if len(updates) > 0 {
			if err := tx.Model(m).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.ClassIDs != nil {
			classIDs := uniqueUint(req.ClassIDs)
			if err := classesExist(tx, classIDs); err != nil {
				return err
			}
			if err := linkClasses(tx, m.ID, classIDs); err != nil {
				return err
			}
		}
		material = m
		return nil
	})
	if err != nil {
		return utils.FailFromError(c, err, "failed to update material")
	}

	middleware.LogActivity(c, "UPDATE", "materials", id, fiber.Map{"class_ids": req.ClassIDs})
	return utils.OKMessage(c, "material updated", material)
}

// DeleteMaterial removes an owned material with its assignments and history
func (tc *TeacherController) DeleteMaterial(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	teacherID := middleware.CurrentUserID(c)
	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		if _, err := ownMaterial(tx, id, teacherID); err != nil {
			return err
		}
		assignments := tx.Model(&models.Assignment{}).Select("id").Where("material_id = ?", id)
		if err := tx.Where("assignment_id IN (?)", assignments).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		for _, m := range []interface{}{&models.Assignment{}, &models.MaterialProgress{}, &models.MaterialDiscussion{}, &models.MaterialClass{}} {
			if err := tx.Where("material_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Material{}, id).Error
	})
	if err != nil {
		return utils.FailFromError(c, err, "failed to delete material")
	}

	middleware.LogActivity(c, "DELETE", "materials", id, nil)
	return utils.OKMessage(c, "material deleted", nil)
}

// MaterialClasses lists the classes an owned material is linked to
func (tc *TeacherController) MaterialClasses(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	if _, err := ownMaterial(dbFor(c), id, middleware.CurrentUserID(c)); err != nil {
		return utils.FailFromError(c, err, "failed to load classes")
	}
	links, err := progressService().ClassesForMaterials(c.UserContext(), []uint{id})
	if err != nil {
		return utils.FailFromError(c, err, "failed to load classes")
	}
	classes := links[id]
	if classes == nil {
		classes = []progress.ClassRef{}
	}
	return utils.OK(c, classes)
}
