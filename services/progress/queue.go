package progress

import (
	"context"
	"fmt"
	"time"

	"sekolah_go/models"
)

// QueueItem is a submission in a teacher's grading queue or history.
type QueueItem struct {
	ID              uint                    `json:"id"`
	StudentID       uint                    `json:"student_id"`
	StudentName     string                  `json:"student_name"`
	AssignmentID    uint                    `json:"assignment_id"`
	AssignmentTitle string                  `json:"assignment_title"`
	MaterialTitle   string                  `json:"material_title"`
	Answer          string                  `json:"answer"`
	Status          models.SubmissionStatus `json:"status"`
	Grade           *int                    `json:"grade"`
	Feedback        *string                 `json:"feedback"`
	Deadline        time.Time               `json:"deadline"`
	SubmittedAt     *time.Time              `json:"submitted_at"`
	GradedAt        *time.Time              `json:"graded_at"`
}

const queueSelect = "submissions.id, submissions.student_id, submissions.assignment_id, submissions.answer, " +
	"submissions.status, submissions.grade, submissions.feedback, submissions.submitted_at, submissions.graded_at, " +
	"COALESCE(users.name, '') AS student_name, assignments.title AS assignment_title, " +
	"COALESCE(materials.title, '') AS material_title, assignments.deadline"

// PendingGrading lists submitted, ungraded work on the teacher's assignments,
// oldest submission first.
func (s *Service) PendingGrading(ctx context.Context, teacherID uint) ([]QueueItem, error) {
	var items []QueueItem
	err := s.db.WithContext(ctx).Table("submissions").
		Select(queueSelect).
		Joins("JOIN assignments ON assignments.id = submissions.assignment_id").
		Joins("LEFT JOIN users ON users.id = submissions.student_id").
		Joins("LEFT JOIN materials ON materials.id = assignments.material_id").
		Where("assignments.teacher_id = ? AND submissions.status = ? AND submissions.grade IS NULL", teacherID, models.SubmissionDone).
		Order("submissions.submitted_at ASC").Order("submissions.id ASC").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load pending grading: %w", err)
	}
	return fillUnknown(items), nil
}

// GradedHistory lists the teacher's most recently graded submissions
func (s *Service) GradedHistory(ctx context.Context, teacherID uint, limit int) ([]QueueItem, error) {
	var items []QueueItem
	err := s.db.WithContext(ctx).Table("submissions").
		Select(queueSelect).
		Joins("JOIN assignments ON assignments.id = submissions.assignment_id").
		Joins("LEFT JOIN users ON users.id = submissions.student_id").
		Joins("LEFT JOIN materials ON materials.id = assignments.material_id").
		Where("assignments.teacher_id = ? AND submissions.status = ?", teacherID, models.SubmissionCompleted).
		Order("submissions.graded_at DESC").Order("submissions.id DESC").
		Limit(limit).
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load graded history: %w", err)
	}
	return fillUnknown(items), nil
}

func fillUnknown(items []QueueItem) []QueueItem {
	if items == nil {
		return []QueueItem{}
	}
	for i := range items {
		if items[i].StudentName == "" {
			items[i].StudentName = UnknownLabel
		}
		if items[i].MaterialTitle == "" {
			items[i].MaterialTitle = UnknownLabel
		}
	}
	return items
}

// Overview holds school-wide counts for the headmaster. Only active
// accounts are counted.
type Overview struct {
	Teachers    int64 `json:"teachers"`
	Students    int64 `json:"students"`
	Classes     int64 `json:"classes"`
	Materials   int64 `json:"materials"`
	Assignments int64 `json:"assignments"`
}

// SchoolOverview counts active teachers and students, classes, materials and assignments
func (s *Service) SchoolOverview(ctx context.Context) (*Overview, error) {
	o := &Overview{}
	db := s.db.WithContext(ctx)
	steps := []struct {
		name string
		run  func() error
	}{
		{"teachers", func() error {
			return db.Model(&models.User{}).Where("role = ? AND status = ?", models.RoleTeacher, models.StatusActive).Count(&o.Teachers).Error
		}},
		{"students", func() error {
			return db.Model(&models.User{}).Where("role = ? AND status = ?", models.RoleStudent, models.StatusActive).Count(&o.Students).Error
		}},
		{"classes", func() error { return db.Model(&models.Class{}).Count(&o.Classes).Error }},
		{"materials", func() error { return db.Model(&models.Material{}).Count(&o.Materials).Error }},
		{"assignments", func() error { return db.Model(&models.Assignment{}).Count(&o.Assignments).Error }},
	}
	for _, st := range steps {
		if err := st.run(); err != nil {
			return nil, fmt.Errorf("count %s: %w", st.name, err)
		}
	}
	return o, nil
}
