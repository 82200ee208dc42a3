package controllers

import (
	"errors"
	"strings"
	"time"

	"sekolah_go/middleware"
	"sekolah_go/models"
	"sekolah_go/services/progress"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var deadlineLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}

func parseDeadline(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, utils.NewValidationError("deadline must be a date and time, e.g. 2006-01-02T15:04")
}

// AssignmentRequest is the body of POST /teacher/assignments
type AssignmentRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	MaterialID  uint   `json:"material_id" validate:"required"`
	Deadline    string `json:"deadline" validate:"required"`
}

// AssignmentUpdateRequest is the body of PUT /teacher/assignments/:id
type AssignmentUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	MaterialID  *uint   `json:"material_id"`
	Deadline    *string `json:"deadline"`
}

// GradeRequest carries the grade as decoded JSON so non-integers can be rejected
type GradeRequest struct {
	Grade    interface{} `json:"grade"`
	Feedback string      `json:"feedback"`
}

// ReplyRequest is a teacher reply on a material discussion
type ReplyRequest struct {
	Content string `json:"content"`
}

type teacherAssignmentItem struct {
	ID               uint                `json:"id"`
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	MaterialID       uint                `json:"material_id"`
	MaterialTitle    string              `json:"material_title"`
	Classes          []progress.ClassRef `json:"classes"`
	ClassNames       string              `json:"class_names"`
	Deadline         time.Time           `json:"deadline"`
	TotalSubmissions int                 `json:"total_submissions"`
	GradedCount      int                 `json:"graded_count"`
	CreatedAt        time.Time           `json:"created_at"`
}

func ownAssignment(tx *gorm.DB, id, teacherID uint) (*models.Assignment, error) {
	var a models.Assignment
	err := tx.Where("id = ? AND teacher_id = ?", id, teacherID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFound("assignment not found")
	}
	return &a, err
}

// GetAssignments lists the teacher's assignments with submission counts
func (tc *TeacherController) GetAssignments(c *fiber.Ctx) error {
	teacherID := middleware.CurrentUserID(c)
	var assignments []models.Assignment
	if err := dbFor(c).Preload("Material").Where("teacher_id = ?", teacherID).Order("deadline DESC").Order("id DESC").Find(&assignments).Error; err != nil {
		return utils.FailFromError(c, err, "failed to load assignments")
	}
	ids := make([]uint, 0, len(assignments))
	materialIDs := make([]uint, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ID)
		materialIDs = append(materialIDs, a.MaterialID)
	}

	var counts []struct {
		AssignmentID uint
		Submitted    int
		Graded       int
	}
	if len(ids) > 0 {
		err := dbFor(c).Model(&models.Submission{}).
			Select("assignment_id, "+
				"SUM(CASE WHEN status IN ('done','completed') THEN 1 ELSE 0 END) AS submitted, "+
				"SUM(CASE WHEN grade IS NOT NULL THEN 1 ELSE 0 END) AS graded").
			Where("assignment_id IN ?", ids).
			Group("assignment_id").
			Scan(&counts).Error
		if err != nil {
			return utils.FailFromError(c, err, "failed to load assignments")
		}
	}
	byID := make(map[uint]int, len(counts))
	for i, row := range counts {
		byID[row.AssignmentID] = i
	}
	links, err := progressService().ClassesForMaterials(c.UserContext(), progress.UniqueIDs(materialIDs))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load assignments")
	}

	out := make([]teacherAssignmentItem, 0, len(assignments))
	for _, a := range assignments {
		item := teacherAssignmentItem{
			ID:            a.ID,
			Title:         a.Title,
			Description:   a.Description,
			MaterialID:    a.MaterialID,
			MaterialTitle: progress.UnknownLabel,
			Classes:       links[a.MaterialID],
			ClassNames:    progress.ClassNames(links[a.MaterialID]),
			Deadline:      a.Deadline,
			CreatedAt:     a.CreatedAt,
		}
		if a.Material != nil {
			item.MaterialTitle = a.Material.Title
		}
		if item.Classes == nil {
			item.Classes = []progress.ClassRef{}
		}
		if i, ok := byID[a.ID]; ok {
			item.TotalSubmissions = counts[i].Submitted
			item.GradedCount = counts[i].Graded
		}
		out = append(out, item)
	}
	return utils.OK(c, out)
}

// CreateAssignment adds an assignment to an owned material and notifies its students
func (tc *TeacherController) CreateAssignment(c *fiber.Ctx) error {
	var req AssignmentRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	teacherID := middleware.CurrentUserID(c)
	if _, err := ownMaterial(dbFor(c), req.MaterialID, teacherID); err != nil {
		return utils.FailFromError(c, err, "failed to create assignment")
	}

	assignment := models.Assignment{
		Title:       utils.SanitizeString(req.Title),
		Description: req.Description,
		MaterialID:  req.MaterialID,
		TeacherID:   teacherID,
		Deadline:    deadline,
	}
	if err := dbFor(c).Create(&assignment).Error; err != nil {
		return utils.FailFromError(c, err, "failed to create assignment")
	}

	if tc.Notifications != nil {
		if err := tc.Notifications.AssignmentCreated(c.UserContext(), assignment); err != nil {
			logrus.WithError(err).WithField("assignment_id", assignment.ID).Warn("assignment notification failed")
		}
	}
	middleware.LogActivity(c, "CREATE", "assignments", assignment.ID, fiber.Map{"title": assignment.Title, "material_id": assignment.MaterialID})
	return utils.Created(c, "assignment created", assignment)
}

// UpdateAssignment edits an owned assignment
func (tc *TeacherController) UpdateAssignment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	var req AssignmentUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	teacherID := middleware.CurrentUserID(c)
	assignment, err := ownAssignment(dbFor(c), id, teacherID)
	if err != nil {
		return utils.FailFromError(c, err, "failed to update assignment")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := utils.SanitizeString(*req.Title)
		if title == "" {
			return utils.Fail(c, fiber.StatusBadRequest, "title must not be empty")
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Deadline != nil {
		deadline, err := parseDeadline(*req.Deadline)
		if err != nil {
			return utils.FailFromError(c, err, "invalid request")
		}
		updates["deadline"] = deadline
	}
	if req.MaterialID != nil {
		if _, err := ownMaterial(dbFor(c), *req.MaterialID, teacherID); err != nil {
			return utils.FailFromError(c, err, "failed to update assignment")
		}
		updates["material_id"] = *req.MaterialID
	}
	if len(updates) == 0 {
		return utils.Fail(c, fiber.StatusBadRequest, "no fields to update")
	}
	if err := dbFor(c).Model(assignment).Updates(updates).Error; err != nil {
		return utils.FailFromError(c, err, "failed to update assignment")
	}

	middleware.LogActivity(c, "UPDATE", "assignments", id, updates)
	return utils.OKMessage(c, "assignment updated", assignment)
}

// DeleteAssignment removes an owned assignment and its submissions
func (tc *TeacherController) DeleteAssignment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	teacherID := middleware.CurrentUserID(c)
	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		if _, err := ownAssignment(tx, id, teacherID); err != nil {
			return err
		}
		if err := tx.Where("assignment_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Assignment{}, id).Error
	})
	if err != nil {
		return utils.FailFromError(c, err, "failed to delete assignment")
	}

	middleware.LogActivity(c, "DELETE", "assignments", id, nil)
	return utils.OKMessage(c, "assignment deleted", nil)
}

type rosterSubmission struct {
	StudentID    uint                    `json:"student_id"`
	StudentName  string                  `json:"student_name"`
	StudentEmail string                  `json:"student_email"`
	SubmissionID *uint                   `json:"submission_id"`
	Answer       string                  `json:"answer"`
	Status       models.SubmissionStatus `json:"status"`
	Grade        *int                    `json:"grade"`
	Feedback     *string                 `json:"feedback"`
	SubmittedAt  *time.Time              `json:"submitted_at"`
	GradedAt     *time.Time              `json:"graded_at"`
}

// AssignmentSubmissions lists every active student of the linked classes with
// their submission, or not_done when there is none
func (tc *TeacherController) AssignmentSubmissions(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	assignment, err := ownAssignment(dbFor(c), id, middleware.CurrentUserID(c))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load submissions")
	}

	var students []models.User
	err = dbFor(c).
		Where("role = ? AND status = ?", models.RoleStudent, models.StatusActive).
		Where("id IN (?)", dbFor(c).Model(&models.Enrollment{}).Select("student_id").
			Where("class_id IN (?)", dbFor(c).Model(&models.MaterialClass{}).Select("class_id").Where("material_id = ?", assignment.MaterialID))).
		Order("name").
		Find(&students).Error
	if err != nil {
		return utils.FailFromError(c, err, "failed to load submissions")
	}
	var subs []models.Submission
	if err := dbFor(c).Where("assignment_id = ?", id).Find(&subs).Error; err != nil {
		return utils.FailFromError(c, err, "failed to load submissions")
	}
	byStudent := make(map[uint]models.Submission, len(subs))
	for _, s := range subs {
		byStudent[s.StudentID] = s
	}

	out := make([]rosterSubmission, 0, len(students))
	for _, st := range students {
		row := rosterSubmission{StudentID: st.ID, StudentName: st.Name, StudentEmail: st.Email, Status: models.SubmissionNotDone}
		if s, ok := byStudent[st.ID]; ok {
			sid := s.ID
			row.SubmissionID = &sid
			row.Answer = s.Answer
			row.Status = s.Status
			row.Grade = s.Grade
			row.Feedback = s.Feedback
			row.SubmittedAt = s.SubmittedAt
			row.GradedAt = s.GradedAt
		}
		out = append(out, row)
	}
	return utils.OK(c, fiber.Map{
		"assignment":  fiber.Map{"id": assignment.ID, "title": assignment.Title, "deadline": assignment.Deadline},
		"submissions": out,
	})
}

// GradeSubmission grades a submission on one of the teacher's assignments
func (tc *TeacherController) GradeSubmission(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	var req GradeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	grade, err := utils.ValidateGrade(req.Grade)
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}

	var sub models.Submission
	err = dbFor(c).Preload("Assignment").
		Where("id = ? AND assignment_id IN (?)", id,
			dbFor(c).Model(&models.Assignment{}).Select("id").Where("teacher_id = ?", middleware.CurrentUserID(c))).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.Fail(c, fiber.StatusNotFound, "submission not found")
	}
	if err != nil {
		return utils.FailFromError(c, err, "failed to grade submission")
	}

	now := time.Now()
	feedback := strings.TrimSpace(req.Feedback)
	err = dbFor(c).Model(&sub).Updates(map[string]interface{}{
		"grade":     grade,
		"feedback":  feedback,
		"status":    models.SubmissionCompleted,
		"graded_at": now,
	}).Error
	if err != nil {
		return utils.FailFromError(c, err, "failed to grade submission")
	}
	sub.Grade = &grade
	sub.Feedback = &feedback
	sub.Status = models.SubmissionCompleted
	sub.GradedAt = &now

	title := progress.UnknownLabel
	if sub.Assignment != nil {
		title = sub.Assignment.Title
	}
	if tc.Notifications != nil {
		if err := tc.Notifications.GradePosted(c.UserContext(), sub, title); err != nil {
			logrus.WithError(err).WithField("submission_id", sub.ID).Warn("grade notification failed")
		}
	}
	middleware.LogActivity(c, "GRADE", "submissions", sub.ID, fiber.Map{"grade": grade, "assignment_id": sub.AssignmentID})
	return utils.OKMessage(c, "submission graded", fiber.Map{
		"id":        sub.ID,
		"grade":     grade,
		"feedback":  feedback,
		"status":    sub.Status,
		"graded_at": now,
	})
}

// GetDiscussions lists material discussions on the teacher's materials
func (tc *TeacherController) GetDiscussions(c *fiber.Ctx) error {
	var ids []uint
	if err := dbFor(c).Model(&models.Material{}).Where("teacher_id = ?", middleware.CurrentUserID(c)).Pluck("id", &ids).Error; err != nil {
		return utils.FailFromError(c, err, "failed to load discussions")
	}
	msgs, err := materialDiscussions(c, ids)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load discussions")
	}
	return utils.OK(c, msgs)
}

// ReplyDiscussion answers a message on one of the teacher's materials
func (tc *TeacherController) ReplyDiscussion(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	var req ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	content := utils.SanitizeString(req.Content)
	if content == "" {
		return utils.Fail(c, fiber.StatusBadRequest, "content is required")
	}

	teacherID := middleware.CurrentUserID(c)
	var parent models.MaterialDiscussion
	err = dbFor(c).
		Where("id = ? AND material_id IN (?)", id, dbFor(c).Model(&models.Material{}).Select("id").Where("teacher_id = ?", teacherID)).
		First(&parent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.Fail(c, fiber.StatusNotFound, "discussion not found")
	}
	if err != nil {
		return utils.FailFromError(c, err, "failed to reply")
	}

	// replies always hang off the top-level message
	parentID := parent.ID
	if parent.ParentID != nil {
		parentID = *parent.ParentID
	}
	reply := models.MaterialDiscussion{
		MaterialID: parent.MaterialID,
		UserID:     teacherID,
		UserRole:   models.RoleTeacher,
		Content:    content,
		ParentID:   &parentID,
		CreatedAt:  time.Now(),
	}
	if err := dbFor(c).Create(&reply).Error; err != nil {
		return utils.FailFromError(c, err, "failed to reply")
	}

	middleware.LogActivity(c, "REPLY", "discussions", reply.ID, fiber.Map{"material_id": reply.MaterialID, "parent_id": parentID})
	return utils.Created(c, "reply posted", reply)
}
