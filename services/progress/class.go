package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sekolah_go/models"
	"sekolah_go/utils"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ClassSnapshot is one class with its roster, linked items and the roster's state.
type ClassSnapshot struct {
	Class       models.Class
	Students    []models.User // enrolled students, by name
	Teachers    []ClassTeacher
	Materials   []models.Material
	Assignments []models.Assignment
	subs        map[uint]map[uint]models.Submission       // student -> assignment
	state       map[uint]map[uint]models.MaterialProgress // student -> material
}

// ClassTeacher is a teaching assignment joined with the teacher's profile.
type ClassTeacher struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Status  string `json:"status"`
}

// ClassStats are the headline numbers of a class.
type ClassStats struct {
	TotalStudents    int `json:"total_students"`
	ActiveStudents   int `json:"active_students"`
	TotalMaterials   int `json:"total_materials"`
	TotalAssignments int `json:"total_assignments"`
	AverageGrade     int `json:"average_grade"`
	AverageProgress  int `json:"average_progress"`
}

// AssignmentState is one assignment as seen from one student's submission.
type AssignmentState struct {
	ID            uint                    `json:"id"`
	Title         string                  `json:"title"`
	MaterialTitle string                  `json:"material_title"`
	Deadline      time.Time               `json:"deadline"`
	Status        models.SubmissionStatus `json:"status"`
	Grade         *int                    `json:"grade"`
	Feedback      *string                 `json:"feedback"`
	SubmittedAt   *time.Time              `json:"submitted_at"`
}

// LoadClass gathers a class, its roster and teachers, linked items and every
// roster member's submissions and material state.
func (s *Service) LoadClass(ctx context.Context, classID uint) (*ClassSnapshot, error) {
	snap := &ClassSnapshot{
		subs:  map[uint]map[uint]models.Submission{},
		state: map[uint]map[uint]models.MaterialProgress{},
	}
	db := s.db.WithContext(ctx)
	if err := db.Preload("HomeroomTeacher").First(&snap.Class, classID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("class not found")
		}
		return nil, fmt.Errorf("load class: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).
			Where("role = ?", models.RoleStudent).
			Where("id IN (?)", s.db.Model(&models.Enrollment{}).Select("student_id").Where("class_id = ?", classID)).
			Order("name").Find(&snap.Students).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Table("teaching_assignments").
			Select("users.id, users.name, users.email, users.status, teaching_assignments.subject").
			Joins("JOIN users ON users.id = teaching_assignments.teacher_id").
			Where("teaching_assignments.class_id = ?", classID).
			Order("users.name").Order("teaching_assignments.subject").
			Scan(&snap.Teachers).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).
			Where("id IN (?)", s.db.Model(&models.MaterialClass{}).Select("material_id").Where("class_id = ?", classID)).
			Order("created_at DESC").Find(&snap.Materials).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).
			Where("material_id IN (?)", s.db.Model(&models.MaterialClass{}).Select("material_id").Where("class_id = ?", classID)).
			Order("deadline ASC").Order("id").Find(&snap.Assignments).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load class detail: %w", err)
	}

	studentIDs := make([]uint, 0, len(snap.Students))
	for _, st := range snap.Students {
		studentIDs = append(studentIDs, st.ID)
	}
	if len(studentIDs) == 0 {
		return snap, nil
	}

	var (
		subs  []models.Submission
		state []models.MaterialProgress
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(snap.Assignments) == 0 {
			return nil
		}
		return s.db.WithContext(gctx).
			Where("student_id IN ? AND assignment_id IN ?", studentIDs, snap.AssignmentIDs()).
			Find(&subs).Error
	})
	g.Go(func() error {
		if len(snap.Materials) == 0 {
			return nil
		}
		return s.db.WithContext(gctx).
			Where("student_id IN ? AND material_id IN ?", studentIDs, snap.MaterialIDs()).
			Find(&state).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load class progress: %w", err)
	}
	for _, sub := range subs {
		if snap.subs[sub.StudentID] == nil {
			snap.subs[sub.StudentID] = map[uint]models.Submission{}
		}
		snap.subs[sub.StudentID][sub.AssignmentID] = sub
	}
	for _, mp := range state {
		if snap.state[mp.StudentID] == nil {
			snap.state[mp.StudentID] = map[uint]models.MaterialProgress{}
		}
		snap.state[mp.StudentID][mp.MaterialID] = mp
	}
	return snap, nil
}

type classTeacherRow struct {
	ClassID uint
	ID      uint
	Name    string
	Email   string
	Subject string
	Status  string
}

// LoadClasses builds a snapshot of every class, ordered by grade level and
// name, with a fixed number of queries regardless of how many classes exist.
func (s *Service) LoadClasses(ctx context.Context) ([]*ClassSnapshot, error) {
	var classes []models.Class
	if err := s.db.WithContext(ctx).Preload("HomeroomTeacher").Order("grade_level, name").Find(&classes).Error; err != nil {
		return nil, fmt.Errorf("load classes: %w", err)
	}
	if len(classes) == 0 {
		return []*ClassSnapshot{}, nil
	}

	var (
		roster      = map[uint][]models.User{}
		teachers    []classTeacherRow
		links       []models.MaterialClass
		materials   []models.Material
		assignments []models.Assignment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var enrollments []models.Enrollment
		if err := s.db.WithContext(gctx).Find(&enrollments).Error; err != nil {
			return err
		}
		var students []models.User
		if err := s.db.WithContext(gctx).Where("role = ?", models.RoleStudent).Order("name").Find(&students).Error; err != nil {
			return err
		}
		byStudent := map[uint][]uint{}
		for _, e := range enrollments {
			byStudent[e.StudentID] = append(byStudent[e.StudentID], e.ClassID)
		}
		for _, st := range students {
			for _, classID := range byStudent[st.ID] {
				roster[classID] = append(roster[classID], st)
			}
		}
		return nil
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Table("teaching_assignments").
			Select("teaching_assignments.class_id, users.id, users.name, users.email, users.status, teaching_assignments.subject").
			Joins("JOIN users ON users.id = teaching_assignments.teacher_id").
			Order("users.name").Order("teaching_assignments.subject").
			Scan(&teachers).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Find(&links).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Order("created_at DESC").Find(&materials).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Order("deadline ASC").Order("id").Find(&assignments).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load class detail: %w", err)
	}

	var (
		subs  []models.Submission
		state []models.MaterialProgress
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).
			Where("student_id IN (?)", s.db.Model(&models.Enrollment{}).Select("student_id")).
			Find(&subs).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).
			Where("student_id IN (?)", s.db.Model(&models.Enrollment{}).Select("student_id")).
			Find(&state).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load class progress: %w", err)
	}

	snaps := make(map[uint]*ClassSnapshot, len(classes))
	out := make([]*ClassSnapshot, 0, len(classes))
	for _, class := range classes {
		snap := &ClassSnapshot{
			Class: class,
			subs:  map[uint]map[uint]models.Submission{},
			state: map[uint]map[uint]models.MaterialProgress{},
		}
		snaps[class.ID] = snap
		out = append(out, snap)
	}
	members := map[uint]map[uint]bool{}
	for classID, students := range roster {
		snap, ok := snaps[classID]
		if !ok {
			continue
		}
		snap.Students = students
		members[classID] = map[uint]bool{}
		for _, st := range students {
			members[classID][st.ID] = true
		}
	}
	for _, t := range teachers {
		if snap, ok := snaps[t.ClassID]; ok {
			snap.Teachers = append(snap.Teachers, ClassTeacher{ID: t.ID, Name: t.Name, Email: t.Email, Subject: t.Subject, Status: t.Status})
		}
	}
	materialClasses := map[uint][]uint{}
	for _, l := range links {
		materialClasses[l.MaterialID] = append(materialClasses[l.MaterialID], l.ClassID)
	}
	for _, m := range materials {
		for _, classID := range materialClasses[m.ID] {
			if snap, ok := snaps[classID]; ok {
				snap.Materials = append(snap.Materials, m)
			}
		}
	}
	assignmentClasses := map[uint][]uint{}
	for _, a := range assignments {
		for _, classID := range materialClasses[a.MaterialID] {
			if snap, ok := snaps[classID]; ok {
				snap.Assignments = append(snap.Assignments, a)
				assignmentClasses[a.ID] = append(assignmentClasses[a.ID], classID)
			}
		}
	}

	for _, sub := range subs {
		for _, classID := range assignmentClasses[sub.AssignmentID] {
			if !members[classID][sub.StudentID] {
				continue
			}
			snap := snaps[classID]
			if snap.subs[sub.StudentID] == nil {
				snap.subs[sub.StudentID] = map[uint]models.Submission{}
			}
			snap.subs[sub.StudentID][sub.AssignmentID] = sub
		}
	}
	for _, mp := range state {
		for _, classID := range materialClasses[mp.MaterialID] {
			if !members[classID][mp.StudentID] {
				continue
			}
			snap := snaps[classID]
			if snap.state[mp.StudentID] == nil {
				snap.state[mp.StudentID] = map[uint]models.MaterialProgress{}
			}
			snap.state[mp.StudentID][mp.MaterialID] = mp
		}
	}
	return out, nil
}

func (c *ClassSnapshot) MaterialIDs() []uint {
	ids := make([]uint, 0, len(c.Materials))
	for _, m := range c.Materials {
		ids = append(ids, m.ID)
	}
	return ids
}

func (c *ClassSnapshot) AssignmentIDs() []uint {
	ids := make([]uint, 0, len(c.Assignments))
	for _, a := range c.Assignments {
		ids = append(ids, a.ID)
	}
	return ids
}

// Student returns the enrolled student with the given id
func (c *ClassSnapshot) Student(studentID uint) (models.User, bool) {
	for _, st := range c.Students {
		if st.ID == studentID {
			return st, true
		}
	}
	return models.User{}, false
}

// StudentSummary is the student's progress over this class's items
func (c *ClassSnapshot) StudentSummary(studentID uint) Summary {
	return Summarize(c.MaterialIDs(), c.AssignmentIDs(), c.subs[studentID], c.state[studentID])
}

// StudentAssignments lists every class assignment with the student's state
func (c *ClassSnapshot) StudentAssignments(studentID uint) []AssignmentState {
	titles := make(map[uint]string, len(c.Materials))
	for _, m := range c.Materials {
		titles[m.ID] = m.Title
	}
	out := make([]AssignmentState, 0, len(c.Assignments))
	for _, a := range c.Assignments {
		row := AssignmentState{
			ID:            a.ID,
			Title:         a.Title,
			MaterialTitle: labelOr(titles, a.MaterialID),
			Deadline:      a.Deadline,
			Status:        models.SubmissionNotDone,
		}
		if sub, ok := c.subs[studentID][a.ID]; ok {
			row.Status = sub.Status
			row.Grade = sub.Grade
			row.Feedback = sub.Feedback
			row.SubmittedAt = sub.SubmittedAt
		}
		out = append(out, row)
	}
	return out
}

// Stats computes class statistics. Inactive students stay on the roster but
// are left out of averages.
func (c *ClassSnapshot) Stats() ClassStats {
	st := ClassStats{
		TotalStudents:    len(c.Students),
		TotalMaterials:   len(c.Materials),
		TotalAssignments: len(c.Assignments),
	}
	var grades, progressValues []int
	for _, student := range c.Students {
		if !student.IsActive() {
			continue
		}
		st.ActiveStudents++
		progressValues = append(progressValues, c.StudentSummary(student.ID).OverallProgress)
		for _, sub := range c.subs[student.ID] {
			if sub.Grade != nil {
				grades = append(grades, *sub.Grade)
			}
		}
	}
	st.AverageGrade = Average(grades)
	st.AverageProgress = Average(progressValues)
	return st
}
