package progress

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sekolah_go/models"

	"golang.org/x/sync/errgroup"
)

// Activity is one entry of a recent-activity feed.
type Activity struct {
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// LearningActivity is the school-wide feed shown to the headmaster.
type LearningActivity struct {
	RecentActivities    []Activity `json:"recent_activities"`
	ActiveStudentsToday int64      `json:"active_students_today"`
	Summary             struct {
		MaterialsCreated    int `json:"materials_created"`
		AssignmentsCreated  int `json:"assignments_created"`
		SubmissionsReceived int `json:"submissions_received"`
		GradesGiven         int `json:"grades_given"`
	} `json:"summary"`
}

const feedPerKind = 5

type submissionEvent struct {
	StudentName     string
	AssignmentTitle string
	TeacherName     string
	Grade           *int
	At              time.Time
}

// LearningActivity merges the five newest materials, assignments,
// submissions and grades school-wide, newest first, capped at 15.
func (s *Service) LearningActivity(ctx context.Context) (*LearningActivity, error) {
	var (
		materials   []models.Material
		assignments []models.Assignment
		submitted   []submissionEvent
		graded      []submissionEvent
		out         = &LearningActivity{}
	)
	dayAgo := s.now().Add(-24 * time.Hour)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Preload("Teacher").Order("created_at DESC").Limit(feedPerKind).Find(&materials).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Preload("Teacher").Preload("Material").Order("created_at DESC").Limit(feedPerKind).Find(&assignments).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Table("submissions").
			Select("users.name AS student_name, assignments.title AS assignment_title, submissions.submitted_at AS at").
			Joins("JOIN users ON users.id = submissions.student_id").
			Joins("JOIN assignments ON assignments.id = submissions.assignment_id").
			Where("submissions.submitted_at IS NOT NULL").
			Order("submissions.submitted_at DESC").Limit(feedPerKind).
			Scan(&submitted).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Table("submissions").
			Select("users.name AS student_name, assignments.title AS assignment_title, teachers.name AS teacher_name, submissions.grade, submissions.graded_at AS at").
			Joins("JOIN users ON users.id = submissions.student_id").
			Joins("JOIN assignments ON assignments.id = submissions.assignment_id").
			Joins("JOIN users AS teachers ON teachers.id = assignments.teacher_id").
			Where("submissions.graded_at IS NOT NULL").
			Order("submissions.graded_at DESC").Limit(feedPerKind).
			Scan(&graded).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.User{}).
			Where("role = ? AND status = ? AND last_activity_at >= ?", models.RoleStudent, models.StatusActive, dayAgo).
			Count(&out.ActiveStudentsToday).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load learning activity: %w", err)
	}

	var feed []Activity
	for _, m := range materials {
		feed = append(feed, Activity{
			Type:        "material",
			Title:       fmt.Sprintf("Material %q created", m.Title),
			Description: "by " + userName(m.Teacher),
			CreatedAt:   m.CreatedAt,
		})
	}
	for _, a := range assignments {
		materialTitle := UnknownLabel
		if a.Material != nil {
			materialTitle = a.Material.Title
		}
		feed = append(feed, Activity{
			Type:        "assignment",
			Title:       fmt.Sprintf("Assignment %q created", a.Title),
			Description: fmt.Sprintf("for material %s by %s", materialTitle, userName(a.Teacher)),
			CreatedAt:   a.CreatedAt,
		})
	}
	for _, e := range submitted {
		feed = append(feed, Activity{
			Type:        "submission",
			Title:       fmt.Sprintf("%s submitted an assignment", e.StudentName),
			Description: "Assignment: " + e.AssignmentTitle,
			CreatedAt:   e.At,
		})
	}
	for _, e := range graded {
		feed = append(feed, Activity{
			Type:        "grade",
			Title:       fmt.Sprintf("Grade given to %s", e.StudentName),
			Description: fmt.Sprintf("Assignment: %s, Grade: %s by %s", e.AssignmentTitle, gradeText(e.Grade), e.TeacherName),
			CreatedAt:   e.At,
		})
	}

	out.RecentActivities = newestFirst(feed, 15)
	out.Summary.MaterialsCreated = len(materials)
	out.Summary.AssignmentsCreated = len(assignments)
	out.Summary.SubmissionsReceived = len(submitted)
	out.Summary.GradesGiven = len(graded)
	return out, nil
}

// TeacherRecentActivity merges the teacher's five newest materials,
// assignments and grades, newest first, capped at 10.
func (s *Service) TeacherRecentActivity(ctx context.Context, teacherID uint) ([]Activity, error) {
	var (
		materials   []models.Material
		assignments []models.Assignment
		graded      []submissionEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("teacher_id = ?", teacherID).
			Order("created_at DESC").Limit(feedPerKind).Find(&materials).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("teacher_id = ?", teacherID).
			Order("created_at DESC").Limit(feedPerKind).Find(&assignments).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Table("submissions").
			Select("users.name AS student_name, assignments.title AS assignment_title, submissions.grade, submissions.graded_at AS at").
			Joins("JOIN users ON users.id = submissions.student_id").
			Joins("JOIN assignments ON assignments.id = submissions.assignment_id").
			Where("assignments.teacher_id = ? AND submissions.graded_at IS NOT NULL", teacherID).
			Order("submissions.graded_at DESC").Limit(feedPerKind).
			Scan(&graded).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load recent activity: %w", err)
	}

	var feed []Activity
	for _, m := range materials {
		feed = append(feed, Activity{
			Type:        "material",
			Title:       fmt.Sprintf("Material %q created", m.Title),
			Description: orDefault(m.Description, "No description"),
			CreatedAt:   m.CreatedAt,
		})
	}
	for _, a := range assignments {
		feed = append(feed, Activity{
			Type:        "assignment",
			Title:       fmt.Sprintf("Assignment %q created", a.Title),
			Description: orDefault(a.Description, "No description"),
			CreatedAt:   a.CreatedAt,
		})
	}
	for _, e := range graded {
		feed = append(feed, Activity{
			Type:        "grade",
			Title:       fmt.Sprintf("Grade given to %s", e.StudentName),
			Description: fmt.Sprintf("Assignment: %s, Grade: %s", e.AssignmentTitle, gradeText(e.Grade)),
			CreatedAt:   e.At,
		})
	}
	return newestFirst(feed, 10), nil
}

func newestFirst(items []Activity, limit int) []Activity {
	if items == nil {
		return []Activity{}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func userName(u *models.User) string {
	if u == nil || u.Name == "" {
		return UnknownLabel
	}
	return u.Name
}

func gradeText(g *int) string {
	if g == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *g)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
