package controllers

import (
	"errors"
	"sort"
	"time"

	"sekolah_go/middleware"
	"sekolah_go/models"
	"sekolah_go/services/progress"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const materialPreview = 200

// StudentController serves the student API. Students only see materials and
// assignments linked to a class they are enrolled in.
type StudentController struct{}

type studentMaterialItem struct {
	ID             uint       `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Preview        string     `json:"preview"`
	TeacherName    string     `json:"teacher_name"`
	ClassNames     string     `json:"class_names"`
	Progress       int        `json:"progress"`
	Completed      bool       `json:"completed"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

type studentAssignmentItem struct {
	ID            uint                    `json:"id"`
	Title         string                  `json:"title"`
	Description   string                  `json:"description"`
	MaterialID    uint                    `json:"material_id"`
	MaterialTitle string                  `json:"material_title"`
	ClassNames    string                  `json:"class_names"`
	Deadline      time.Time               `json:"deadline"`
	Overdue       bool                    `json:"overdue"`
	Status        models.SubmissionStatus `json:"status"`
	Answer        string                  `json:"answer"`
	Grade         *int                    `json:"grade"`
	Feedback      *string                 `json:"feedback"`
	SubmittedAt   *time.Time              `json:"submitted_at"`
	GradedAt      *time.Time              `json:"graded_at"`
	CreatedAt     time.Time               `json:"created_at"`
}

func (sc *StudentController) snapshot(c *fiber.Ctx) (*progress.StudentSnapshot, error) {
	return progressService().LoadStudent(c.UserContext(), middleware.CurrentUserID(c))
}

func assignmentItems(snap *progress.StudentSnapshot, assignments []models.Assignment, now time.Time) []studentAssignmentItem {
	titles := make(map[uint]string, len(snap.Materials))
	for _, m := range snap.Materials {
		titles[m.ID] = m.Title
	}
	out := make([]studentAssignmentItem, 0, len(assignments))
	for _, a := range assignments {
		item := studentAssignmentItem{
			ID:            a.ID,
			Title:         a.Title,
			Description:   a.Description,
			MaterialID:    a.MaterialID,
			MaterialTitle: progress.UnknownLabel,
			ClassNames:    progress.ClassNames(snap.MaterialClasses(a.MaterialID)),
			Deadline:      a.Deadline,
			Status:        models.SubmissionNotDone,
			CreatedAt:     a.CreatedAt,
		}
		if t, ok := titles[a.MaterialID]; ok {
			item.MaterialTitle = t
		}
		if sub, ok := snap.Submissions[a.ID]; ok {
			item.Status = sub.Status
			item.Answer = sub.Answer
			item.Grade = sub.Grade
			item.Feedback = sub.Feedback
			item.SubmittedAt = sub.SubmittedAt
			item.GradedAt = sub.GradedAt
		}
		item.Overdue = item.Status == models.SubmissionNotDone && now.After(a.Deadline)
		out = append(out, item)
	}
	return out
}

// DashboardStats summarizes everything the student can reach
func (sc *StudentController) DashboardStats(c *fiber.Ctx) error {
	snap, err := sc.snapshot(c)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load dashboard")
	}
	sum := snap.Summary()
	return utils.OK(c, fiber.Map{
		"total_materials":     sum.TotalMaterials,
		"completed_materials": sum.CompletedMaterials,
		"total_assignments":   sum.TotalAssignments,
		"submitted":           sum.Submitted,
		"graded":              sum.Graded,
		"pending_assignments": sum.TotalAssignments - sum.Submitted,
		"average_grade":       sum.AverageGrade,
		"overall_progress":    sum.OverallProgress,
		"classes":             snap.ClassLabels(),
	})
}

// GetMaterials lists reachable materials with a short preview and progress
func (sc *StudentController) GetMaterials(c *fiber.Ctx) error {
	snap, err := sc.snapshot(c)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load materials")
	}
	teacherIDs := make([]uint, 0, len(snap.Materials))
	for _, m := range snap.Materials {
		teacherIDs = append(teacherIDs, m.TeacherID)
	}
	names, err := progressService().UserNames(c.UserContext(), teacherIDs)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load materials")
	}

	out := make([]studentMaterialItem, 0, len(snap.Materials))
	for _, m := range snap.Materials {
		item := studentMaterialItem{
			ID:          m.ID,
			Title:       m.Title,
			Description: m.Description,
			Preview:     utils.Preview(m.Content, materialPreview),
			TeacherName: progress.UnknownLabel,
			ClassNames:  progress.ClassNames(snap.MaterialClasses(m.ID)),
			CreatedAt:   m.CreatedAt,
		}
		if n, ok := names[m.TeacherID]; ok {
			item.TeacherName = n
		}
		state, accessed := snap.MaterialState[m.ID]
		if accessed {
			at := state.LastAccessedAt
			item.LastAccessedAt = &at
			item.Completed = state.Completed
		}
		item.Progress = progress.MaterialProgress(accessed, item.Completed)
		out = append(out, item)
	}
	return utils.OK(c, out)
}

// materialForStudent loads a material the student may open: 404 when it does
// not exist, 403 when none of the student's classes is linked to it
func materialForStudent(c *fiber.Ctx, studentID, materialID uint) (*models.Material, error) {
	var m models.Material
	if err := dbFor(c).Preload("Teacher").First(&m, materialID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("material not found")
		}
		return nil, err
	}
	ok, err := progressService().Access().CanAccessMaterial(c.UserContext(), studentID, materialID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, utils.Forbidden("you do not have access to this material")
	}
	return &m, nil
}

// touchMaterial upserts the progress row. completed is only ever raised, never cleared.
func touchMaterial(tx *gorm.DB, studentID, materialID uint, completed bool) error {
	row := models.MaterialProgress{
		StudentID:      studentID,
		MaterialID:     materialID,
		LastAccessedAt: time.Now(),
		Completed:      completed,
	}
	update := []string{"last_accessed_at"}
	if completed {
		update = append(update, "completed")
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "material_id"}},
		DoUpdates: clause.AssignmentColumns(update),
	}).Create(&row).Error
}

// GetMaterial opens a material and records the visit
func (sc *StudentController) GetMaterial(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	studentID := middleware.CurrentUserID(c)
	material, err := materialForStudent(c, studentID, id)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load material")
	}
	if err := touchMaterial(dbFor(c), studentID, id, false); err != nil {
		return utils.FailFromError(c, err, "failed to load material")
	}
	touchActivity(c, studentID)

	var state models.MaterialProgress
	if err := dbFor(c).Where("student_id = ? AND material_id = ?", studentID, id).First(&state).Error; err != nil {
		return utils.FailFromError(c, err, "failed to load material")
	}
	var assignments []models.Assignment
	if err := dbFor(c).Where("material_id = ?", id).Order("deadline ASC").Find(&assignments).Error; err != nil {
		return utils.FailFromError(c, err, "failed to load material")
	}
	links, err := progressService().ClassesForMaterials(c.UserContext(), []uint{id})
	if err != nil {
		return utils.FailFromError(c, err, "failed to load material")
	}
	teacher := progress.UnknownLabel
	if material.Teacher != nil {
		teacher = material.Teacher.Name
	}

	return utils.OK(c, fiber.Map{
		"id":           material.ID,
		"title":        material.Title,
		"description":  material.Description,
		"content":      material.Content,
		"teacher_name": teacher,
		"class_names":  progress.ClassNames(links[id]),
		"assignments":  assignments,
		"progress": fiber.Map{
			"completed":        state.Completed,
			"last_accessed_at": state.LastAccessedAt,
			"percentage":       progress.MaterialProgress(true, state.Completed),
		},
		"created_at": material.CreatedAt,
	})
}

// CompleteMaterial marks a reachable material as completed
func (sc *StudentController) CompleteMaterial(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	studentID := middleware.CurrentUserID(c)
	if _, err := materialForStudent(c, studentID, id); err != nil {
		return utils.FailFromError(c, err, "failed to complete material")
	}
	if err := touchMaterial(dbFor(c), studentID, id, true); err != nil {
		return utils.FailFromError(c, err, "failed to complete material")
	}
	touchActivity(c, studentID)

	middleware.LogActivity(c, "COMPLETE", "materials", id, nil)
	return utils.OKMessage(c, "material completed", fiber.Map{"material_id": id, "completed": true})
}

// GetAssignments lists reachable assignments with the student's own state
func (sc *StudentController) GetAssignments(c *fiber.Ctx) error {
	snap, err := sc.snapshot(c)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load assignments")
	}
	return utils.OK(c, assignmentItems(snap, snap.Assignments, time.Now()))
}

// RecentAssignments returns the three newest reachable assignments
func (sc *StudentController) RecentAssignments(c *fiber.Ctx) error {
	snap, err := sc.snapshot(c)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load assignments")
	}
	recent := append([]models.Assignment(nil), snap.Assignments...)
	sort.SliceStable(recent, func(i, j int) bool {
		if recent[i].CreatedAt.Equal(recent[j].CreatedAt) {
			return recent[i].ID > recent[j].ID
		}
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > 3 {
		recent = recent[:3]
	}
	return utils.OK(c, assignmentItems(snap, recent, time.Now()))
}

// SubmitRequest is the body of POST /student/assignments/:id/submit
type SubmitRequest struct {
	Answer string `json:"answer" validate:"required"`
}

// SubmitAssignment stores the student's answer. Resubmitting overwrites the
// answer and clears any earlier grade.
func (sc *StudentController) SubmitAssignment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	var req SubmitRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	answer := utils.SanitizeString(req.Answer)
	if answer == "" {
		return utils.Fail(c, fiber.StatusBadRequest, "answer is required")
	}

	studentID := middleware.CurrentUserID(c)
	var assignment models.Assignment
	if err := dbFor(c).First(&assignment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, fiber.StatusNotFound, "assignment not found")
		}
		return utils.FailFromError(c, err, "failed to submit assignment")
	}
	ok, err := progressService().Access().CanAccessAssignment(c.UserContext(), studentID, id)
	if err != nil {
		return utils.FailFromError(c, err, "failed to submit assignment")
	}
	if !ok {
		return utils.Fail(c, fiber.StatusForbidden, "you do not have access to this assignment")
	}

	now := time.Now()
	var sub models.Submission
	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		row := models.Submission{
			StudentID:    studentID,
			AssignmentID: id,
			Answer:       answer,
			Status:       models.SubmissionDone,
			SubmittedAt:  &now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}, {Name: "assignment_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"answer":       answer,
				"status":       models.SubmissionDone,
				"submitted_at": now,
				"grade":        nil,
				"feedback":     nil,
				"graded_at":    nil,
				"updated_at":   now,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		if err := touchMaterial(tx, studentID, assignment.MaterialID, false); err != nil {
			return err
		}
		return tx.Where("student_id = ? AND assignment_id = ?", studentID, id).First(&sub).Error
	})
	if err != nil {
		return utils.FailFromError(c, err, "failed to submit assignment")
	}
	touchActivity(c, studentID)

	middleware.LogActivity(c, "SUBMIT", "assignments", id, fiber.Map{"submission_id": sub.ID})
	return utils.OKMessage(c, "assignment submitted", sub)
}

// GetGrades lists the student's submissions with labels
func (sc *StudentController) GetGrades(c *fiber.Ctx) error {
	items, err := submissionsWithLabels(c, middleware.CurrentUserID(c))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load grades")
	}
	return utils.OK(c, items)
}

// GetProgress returns overall progress and a breakdown per class
func (sc *StudentController) GetProgress(c *fiber.Ctx) error {
	snap, err := sc.snapshot(c)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load progress")
	}
	return utils.OK(c, fiber.Map{
		"overall":  snap.Summary(),
		"by_class": snap.ByClass(),
	})
}

// ClassDiscussions lists discussions of the student's classes
func (sc *StudentController) ClassDiscussions(c *fiber.Ctx) error {
	classIDs, err := progressService().Access().ClassIDs(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load discussions")
	}
	if classIDs == nil {
		classIDs = []uint{}
	}
	msgs, err := classDiscussions(c, classIDs, 0)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load discussions")
	}
	return utils.OK(c, msgs)
}

// MaterialDiscussions lists discussions on reachable materials
func (sc *StudentController) MaterialDiscussions(c *fiber.Ctx) error {
	ids, err := progressService().Access().MaterialIDs(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load discussions")
	}
	msgs, err := materialDiscussions(c, ids)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load discussions")
	}
	return utils.OK(c, msgs)
}

// MaterialDiscussionRequest is a student post on a material
type MaterialDiscussionRequest struct {
	MaterialID uint   `json:"material_id" validate:"required"`
	Content    string `json:"content" validate:"required"`
	ParentID   *uint  `json:"parent_id"`
}

// PostMaterialDiscussion writes a message on a reachable material, optionally
// replying to a top-level message of the same material
func (sc *StudentController) PostMaterialDiscussion(c *fiber.Ctx) error {
	var req MaterialDiscussionRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	content, err := messageContent(req.Content)
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	studentID := middleware.CurrentUserID(c)
	if _, err := materialForStudent(c, studentID, req.MaterialID); err != nil {
		return utils.FailFromError(c, err, "failed to post discussion")
	}
	if req.ParentID != nil {
		var parent models.MaterialDiscussion
		err := dbFor(c).Where("id = ? AND material_id = ? AND parent_id IS NULL", *req.ParentID, req.MaterialID).First(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, fiber.StatusBadRequest, "parent message must be a top-level message on the same material")
		}
		if err != nil {
			return utils.FailFromError(c, err, "failed to post discussion")
		}
	}

	msg := models.MaterialDiscussion{
		MaterialID: req.MaterialID,
		UserID:     studentID,
		UserRole:   models.RoleStudent,
		Content:    content,
		ParentID:   req.ParentID,
		CreatedAt:  time.Now(),
	}
	if err := dbFor(c).Create(&msg).Error; err != nil {
		return utils.FailFromError(c, err, "failed to post discussion")
	}
	touchActivity(c, studentID)

	middleware.LogActivity(c, "CREATE", "discussions", msg.ID, fiber.Map{"material_id": msg.MaterialID})
	return utils.Created(c, "discussion posted", msg)
}
