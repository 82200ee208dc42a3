package controllers

import (
	"errors"
	"time"

	"sekolah_go/config"
	"sekolah_go/middleware"
	"sekolah_go/models"
	"sekolah_go/services"
	"sekolah_go/services/email"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const notTeachingYet = "not teaching yet"

// HeadmasterController serves the school-wide administration API
type HeadmasterController struct {
	Mailer  email.Sender
	Reports *services.ReportService
}

func NewHeadmasterController(mailer email.Sender, reports *services.ReportService) *HeadmasterController {
	if mailer == nil {
		mailer = email.NewSender(config.AppConfig)
	}
	return &HeadmasterController{Mailer: mailer, Reports: reports}
}

// Overview returns school-wide counts
func (hc *HeadmasterController) Overview(c *fiber.Ctx) error {
	overview, err := progressService().SchoolOverview(c.UserContext())
	if err != nil {
		return utils.FailFromError(c, err, "failed to load overview")
	}
	return utils.OK(c, overview)
}

// LearningActivity returns the merged recent activity feed
func (hc *HeadmasterController) LearningActivity(c *fiber.Ctx) error {
	activity, err := progressService().LearningActivity(c.UserContext())
	if err != nil {
		return utils.FailFromError(c, err, "failed to load learning activity")
	}
	return utils.OK(c, activity)
}

type teacherListItem struct {
	ID            uint              `json:"id"`
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	Subject       string            `json:"subject"`
	Status        models.UserStatus `json:"status"`
	Classes       string            `json:"classes"`
	ClassCount    int               `json:"class_count"`
	MaterialCount int               `json:"material_count"`
	LastLoginAt   *time.Time        `json:"last_login_at"`
	CreatedAt     time.Time         `json:"created_at"`
}

// GetTeachers lists teachers with the classes they teach and their material counts
func (hc *HeadmasterController) GetTeachers(c *fiber.Ctx) error {
	var teachers []models.User
	if err := dbFor(c).Where("role = ?", models.RoleTeacher).Order("name").Find(&teachers).Error; err != nil {
		return utils.FailFromError(c, err, "failed to load teachers")
	}

	var teaching []struct {
		TeacherID uint
		ClassID   uint
		Name      string
	}
	err := dbFor(c).Table("teaching_assignments").
		Select("DISTINCT teaching_assignments.teacher_id, classes.id AS class_id, classes.name").
		Joins("JOIN classes ON classes.id = teaching_assignments.class_id").
		Order("classes.name").
		Scan(&teaching).Error
	if err != nil {
		return utils.FailFromError(c, err, "failed to load teachers")
	}
	classNames := map[uint][]string{}
	for _, t := range teaching {
		classNames[t.TeacherID] = append(classNames[t.TeacherID], t.Name)
	}

	var counts []struct {
		TeacherID uint
		N         int
	}
	if err := dbFor(c).Model(&models.Material{}).Select("teacher_id, COUNT(*) AS n").Group("teacher_id").Scan(&counts).Error; err != nil {
		return utils.FailFromError(c, err, "failed to load teachers")
	}
	materials := map[uint]int{}
	for _, row := range counts {
		materials[row.TeacherID] = row.N
	}

	out := make([]teacherListItem, 0, len(teachers))
	for _, t := range teachers {
		out = append(out, teacherListItem{
			ID:            t.ID,
			Name:          t.Name,
			Email:         t.Email,
			Subject:       t.Subject,
			Status:        t.Status,
			Classes:       utils.JoinNonEmpty(classNames[t.ID], ", ", notTeachingYet),
			ClassCount:    len(classNames[t.ID]),
			MaterialCount: materials[t.ID],
			LastLoginAt:   t.LastLoginAt,
			CreatedAt:     t.CreatedAt,
		})
	}
	return utils.OK(c, out)
}

// CreateTeacherRequest is the body of POST /headmaster/teachers
type CreateTeacherRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,max=191"`
	Password string `json:"password" validate:"required"`
	Subject  string `json:"subject" validate:"required,max=100"`
}

// CreateTeacher adds a teacher account and mails the teacher a welcome note
func (hc *HeadmasterController) CreateTeacher(c *fiber.Ctx) error {
	var req CreateTeacherRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	req.Email = utils.NormalizeEmail(req.Email)
	if !utils.IsValidEmail(req.Email) {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid email format")
	}
	if !utils.IsValidPassword(req.Password) {
		return utils.Fail(c, fiber.StatusBadRequest, "password must be at least 6 characters and contain letters and numbers")
	}
	if taken, err := emailTaken(c, req.Email); err != nil {
		return utils.FailFromError(c, err, "failed to create teacher")
	} else if taken {
		return utils.Fail(c, fiber.StatusConflict, "email already registered")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.FailFromError(c, err, "failed to create teacher")
	}
	creator := middleware.CurrentUserID(c)
	teacher := models.User{
		Name:         utils.SanitizeString(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleTeacher,
		Status:       models.StatusActive,
		Subject:      utils.SanitizeString(req.Subject),
		CreatedBy:    &creator,
	}
	if err := createAccount(dbFor(c), &teacher); err != nil {
		return utils.FailFromError(c, err, "failed to create teacher")
	}

	hc.Mailer.Send(email.Welcome(teacher.Name, teacher.Email, string(teacher.Role)))
	middleware.LogActivity(c, "CREATE", "teachers", teacher.ID, fiber.Map{"email": teacher.Email, "subject": teacher.Subject})
	return utils.Created(c, "teacher created", toUserResponse(&teacher))
}

// StatusRequest changes an account's status
type StatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required,oneof=active inactive"`
}

func findTeacher(c *fiber.Ctx, id uint) (*models.User, error) {
	var teacher models.User
	err := dbFor(c).Where("id = ? AND role = ?", id, models.RoleTeacher).First(&teacher).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFound("teacher not found")
	}
	return &teacher, err
}

// UpdateTeacherStatus activates or deactivates a teacher
func (hc *HeadmasterController) UpdateTeacherStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	var req StatusRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	teacher, err := findTeacher(c, id)
	if err != nil {
		return utils.FailFromError(c, err, "failed to update teacher")
	}
	if err := dbFor(c).Model(teacher).Update("status", req.Status).Error; err != nil {
		return utils.FailFromError(c, err, "failed to update teacher")
	}

	middleware.LogActivity(c, "UPDATE_STATUS", "teachers", teacher.ID, fiber.Map{"status": req.Status})
	return utils.OKMessage(c, "teacher status updated", fiber.Map{"id": teacher.ID, "status": req.Status})
}

// DeleteTeacher removes a teacher and everything the teacher authored.
// A homeroom teacher must be replaced first.
func (hc *HeadmasterController) DeleteTeacher(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	teacher, err := findTeacher(c, id)
	if err != nil {
		return utils.FailFromError(c, err, "failed to delete teacher")
	}

	var homerooms int64
	if err := dbFor(c).Model(&models.Class{}).Where("homeroom_teacher_id = ?", id).Count(&homerooms).Error; err != nil {
		return utils.FailFromError(c, err, "failed to delete teacher")
	}
	if homerooms > 0 {
		return utils.Fail(c, fiber.StatusConflict, "teacher is a homeroom teacher; assign another homeroom teacher first")
	}

	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		return deleteTeacherCascade(tx, id)
	})
	if err != nil {
		return utils.FailFromError(c, err, "failed to delete teacher")
	}

	middleware.LogActivity(c, "DELETE", "teachers", id, fiber.Map{"email": teacher.Email})
	return utils.OKMessage(c, "teacher deleted", nil)
}

// deleteTeacherCascade removes rows that reference the teacher. SQLite test
// databases do not enforce foreign keys, so the cascade is explicit.
func deleteTeacherCascade(tx *gorm.DB, teacherID uint) error {
	materials := tx.Model(&models.Material{}).Select("id").Where("teacher_id = ?", teacherID)
	assignments := tx.Model(&models.Assignment{}).Select("id").Where("teacher_id = ?", teacherID)

	steps := []func() error{
		func() error { return tx.Where("assignment_id IN (?)", assignments).Delete(&models.Submission{}).Error },
		func() error { return tx.Where("teacher_id = ?", teacherID).Delete(&models.Assignment{}).Error },
		func() error { return tx.Where("material_id IN (?)", materials).Delete(&models.MaterialProgress{}).Error },
		func() error { return tx.Where("material_id IN (?)", materials).Delete(&models.MaterialDiscussion{}).Error },
		func() error { return tx.Where("material_id IN (?)", materials).Delete(&models.MaterialClass{}).Error },
		func() error { return tx.Where("teacher_id = ?", teacherID).Delete(&models.Material{}).Error },
		func() error { return tx.Where("teacher_id = ?", teacherID).Delete(&models.TeachingAssignment{}).Error },
		func() error { return tx.Where("user_id = ?", teacherID).Delete(&models.Notification{}).Error },
		func() error { return tx.Delete(&models.User{}, teacherID).Error },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
