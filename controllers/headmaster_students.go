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

const notAssigned = "not assigned"

type studentListItem struct {
	ID             uint              `json:"id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Status         models.UserStatus `json:"status"`
	Classes        string            `json:"classes"`
	LastLoginAt    *time.Time        `json:"last_login_at"`
	LastActivityAt *time.Time        `json:"last_activity_at"`
	CreatedAt      time.Time         `json:"created_at"`
}

// GetStudents lists every student with the classes they are enrolled in
func (hc *HeadmasterController) GetStudents(c *fiber.Ctx) error {
	var students []models.User
	if err := dbFor(c).Where("role = ?", models.RoleStudent).Order("name").Find(&students).Error; err != nil {
		return utils.FailFromError(c, err, "failed to load students")
	}
	var enrolled []struct {
		StudentID uint
		Name      string
	}
	err := dbFor(c).Table("enrollments").
		Select("enrollments.student_id, classes.name").
		Joins("JOIN classes ON classes.id = enrollments.class_id").
		Order("classes.name").
		Scan(&enrolled).Error
	if err != nil {
		return utils.FailFromError(c, err, "failed to load students")
	}
	classes := map[uint][]string{}
	for _, e := range enrolled {
		classes[e.StudentID] = append(classes[e.StudentID], e.Name)
	}

	out := make([]studentListItem, 0, len(students))
	for _, st := range students {
		out = append(out, studentListItem{
			ID:             st.ID,
			Name:           st.Name,
			Email:          st.Email,
			Status:         st.Status,
			Classes:        utils.JoinNonEmpty(classes[st.ID], ", ", notAssigned),
			LastLoginAt:    st.LastLoginAt,
			LastActivityAt: st.LastActivityAt,
			CreatedAt:      st.CreatedAt,
		})
	}
	return utils.OK(c, out)
}

type classRoster struct {
	Class           progress.ClassRef `json:"class"`
	HomeroomTeacher string            `json:"homeroom_teacher"`
	AverageProgress int               `json:"average_progress"`
	Students        []classStudentRow `json:"students"`
}

// StudentsByClass groups students under each class with their overall progress
func (hc *HeadmasterController) StudentsByClass(c *fiber.Ctx) error {
	snaps, err := progressService().LoadClasses(c.UserContext())
	if err != nil {
		return utils.FailFromError(c, err, "failed to load class progress")
	}
	out := make([]classRoster, 0, len(snaps))
	for _, snap := range snaps {
		homeroom := "-"
		if snap.Class.HomeroomTeacher != nil {
			homeroom = snap.Class.HomeroomTeacher.Name
		}
		out = append(out, classRoster{
			Class:           progress.ClassRef{ID: snap.Class.ID, Name: snap.Class.Name, GradeLevel: snap.Class.GradeLevel},
			HomeroomTeacher: homeroom,
			AverageProgress: snap.Stats().AverageProgress,
			Students:        classStudents(snap),
		})
	}
	return utils.OK(c, out)
}

// StudentClassProgress shows one student's progress inside one class
func (hc *HeadmasterController) StudentClassProgress(c *fiber.Ctx) error {
	studentID, err := paramID(c, "studentId")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	classID, err := paramID(c, "classId")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	snap, err := progressService().LoadClass(c.UserContext(), classID)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load progress")
	}
	student, ok := snap.Student(studentID)
	if !ok {
		return utils.Fail(c, fiber.StatusNotFound, "student is not enrolled in this class")
	}
	return utils.OK(c, fiber.Map{
		"student": fiber.Map{
			"id":               student.ID,
			"name":             student.Name,
			"email":            student.Email,
			"status":           student.Status,
			"last_activity_at": student.LastActivityAt,
		},
		"class":       progress.ClassRef{ID: snap.Class.ID, Name: snap.Class.Name, GradeLevel: snap.Class.GradeLevel},
		"summary":     snap.StudentSummary(studentID),
		"assignments": snap.StudentAssignments(studentID),
	})
}

type studentSubmissionItem struct {
	ID              uint                    `json:"id"`
	AssignmentID    uint                    `json:"assignment_id"`
	AssignmentTitle string                  `json:"assignment_title"`
	MaterialTitle   string                  `json:"material_title"`
	TeacherName     string                  `json:"teacher_name"`
	Deadline        *time.Time              `json:"deadline"`
	Status          models.SubmissionStatus `json:"status"`
	Grade           *int                    `json:"grade"`
	Feedback        *string                 `json:"feedback"`
	SubmittedAt     *time.Time              `json:"submitted_at"`
	GradedAt        *time.Time              `json:"graded_at"`
}

// submissionsWithLabels loads a student's submissions with assignment,
// material and teacher labels, falling back to "unknown" for deleted rows
func submissionsWithLabels(c *fiber.Ctx, studentID uint) ([]studentSubmissionItem, error) {
	var subs []models.Submission
	err := dbFor(c).Preload("Assignment").Preload("Assignment.Material").Preload("Assignment.Teacher").
		Where("student_id = ?", studentID).
		Order("submitted_at DESC").Order("id DESC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	out := make([]studentSubmissionItem, 0, len(subs))
	for _, s := range subs {
		item := studentSubmissionItem{
			ID:              s.ID,
			AssignmentID:    s.AssignmentID,
			AssignmentTitle: progress.UnknownLabel,
			MaterialTitle:   progress.UnknownLabel,
			TeacherName:     progress.UnknownLabel,
			Status:          s.Status,
			Grade:           s.Grade,
			Feedback:        s.Feedback,
			SubmittedAt:     s.SubmittedAt,
			GradedAt:        s.GradedAt,
		}
		if a := s.Assignment; a != nil {
			item.AssignmentTitle = a.Title
			deadline := a.Deadline
			item.Deadline = &deadline
			if a.Material != nil {
				item.MaterialTitle = a.Material.Title
			}
			if a.Teacher != nil {
				item.TeacherName = a.Teacher.Name
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// StudentAssignments lists a student's submissions
func (hc *HeadmasterController) StudentAssignments(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	if _, err := findStudent(c, id); err != nil {
		return utils.FailFromError(c, err, "failed to load assignments")
	}
	items, err := submissionsWithLabels(c, id)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load assignments")
	}
	return utils.OK(c, items)
}

type materialListItem struct {
	ID          uint                `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	TeacherID   uint                `json:"teacher_id"`
	TeacherName string              `json:"teacher_name"`
	Classes     []progress.ClassRef `json:"classes"`
	ClassNames  string              `json:"class_names"`
	CreatedAt   time.Time           `json:"created_at"`
}

// GetMaterials lists every material with its author and classes
func (hc *HeadmasterController) GetMaterials(c *fiber.Ctx) error {
	var materials []models.Material
	if err := dbFor(c).Preload("Teacher").Order("created_at DESC").Find(&materials).Error; err != nil {
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

	out := make([]materialListItem, 0, len(materials))
	for _, m := range materials {
		item := materialListItem{
			ID:          m.ID,
			Title:       m.Title,
			Description: m.Description,
			TeacherID:   m.TeacherID,
			TeacherName: progress.UnknownLabel,
			Classes:     links[m.ID],
			ClassNames:  progress.ClassNames(links[m.ID]),
			CreatedAt:   m.CreatedAt,
		}
		if m.Teacher != nil {
			item.TeacherName = m.Teacher.Name
		}
		if item.Classes == nil {
			item.Classes = []progress.ClassRef{}
		}
		out = append(out, item)
	}
	return utils.OK(c, out)
}

// MaterialDiscussions returns the thread of one material
func (hc *HeadmasterController) MaterialDiscussions(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	var material models.Material
	if err := dbFor(c).First(&material, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, fiber.StatusNotFound, "material not found")
		}
		return utils.FailFromError(c, err, "failed to load discussions")
	}
	thread, err := materialDiscussions(c, []uint{id})
	if err != nil {
		return utils.FailFromError(c, err, "failed to load discussions")
	}
	return utils.OK(c, fiber.Map{"material": fiber.Map{"id": material.ID, "title": material.Title}, "discussions": thread})
}

// GetDiscussions lists class discussions across the school
func (hc *HeadmasterController) GetDiscussions(c *fiber.Ctx) error {
	msgs, err := classDiscussions(c, nil, 0)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load discussions")
	}
	return utils.OK(c, msgs)
}

// DiscussionRequest is a class discussion post
type DiscussionRequest struct {
	ClassID uint   `json:"class_id" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// PostDiscussion writes a headmaster message to a class discussion
func (hc *HeadmasterController) PostDiscussion(c *fiber.Ctx) error {
	var req DiscussionRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	content, err := messageContent(req.Content)
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	if _, err := findClass(c, req.ClassID); err != nil {
		return utils.FailFromError(c, err, "failed to post discussion")
	}
	msg := models.Discussion{
		ClassID:   req.ClassID,
		UserID:    middleware.CurrentUserID(c),
		UserRole:  models.RoleHeadmaster,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := dbFor(c).Create(&msg).Error; err != nil {
		return utils.FailFromError(c, err, "failed to post discussion")
	}

	middleware.LogActivity(c, "CREATE", "discussions", msg.ID, fiber.Map{"class_id": msg.ClassID})
	return utils.Created(c, "discussion posted", msg)
}
