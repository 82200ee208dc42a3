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

// StudentRow is a student's progress over one teacher's assignments.
type StudentRow struct {
	ID               uint       `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Classes          string     `json:"classes"`
	Progress         int        `json:"progress"`
	AverageGrade     int        `json:"average_grade"`
	Submitted        int        `json:"submitted"`
	Graded           int        `json:"graded"`
	TotalAssignments int        `json:"total_assignments"`
	LastActivityAt   *time.Time `json:"last_activity_at"`
}

// TeacherAssignmentState is a teacher's assignment with one student's submission.
type TeacherAssignmentState struct {
	ID            uint                    `json:"id"`
	Title         string                  `json:"title"`
	Description   string                  `json:"description"`
	MaterialTitle string                  `json:"material_title"`
	Classes       string                  `json:"classes"`
	Deadline      time.Time               `json:"deadline"`
	Status        models.SubmissionStatus `json:"status"`
	Grade         *int                    `json:"grade"`
	Feedback      string                  `json:"feedback"`
	Answer        string                  `json:"answer"`
	SubmittedAt   *time.Time              `json:"submitted_at"`
	GradedAt      *time.Time              `json:"graded_at"`
}

// StudentDetail is the teacher's view of one student.
type StudentDetail struct {
	Student struct {
		ID             uint       `json:"id"`
		Name           string     `json:"name"`
		Email          string     `json:"email"`
		LastLoginAt    *time.Time `json:"last_login_at"`
		LastActivityAt *time.Time `json:"last_activity_at"`
	} `json:"student"`
	Stats struct {
		TotalAssignments int `json:"total_assignments"`
		Submitted        int `json:"submitted"`
		Graded           int `json:"graded"`
		Progress         int `json:"progress"`
		AverageGrade     int `json:"average_grade"`
	} `json:"stats"`
	Assignments []TeacherAssignmentState `json:"assignments"`
}

// TeacherClassGroup is one taught class with its students' teacher-scoped progress.
type TeacherClassGroup struct {
	Class    ClassRef     `json:"class"`
	Students []StudentRow `json:"students"`
	Stats    struct {
		TotalStudents   int `json:"total_students"`
		AverageProgress int `json:"average_progress"`
		AverageGrade    int `json:"average_grade"`
	} `json:"stats"`
}

// teacherScope is a teacher's own materials and assignments with class links.
type teacherScope struct {
	materials      map[uint]models.Material
	assignments    []models.Assignment
	materialClass  map[uint][]ClassRef // material -> linked classes
	linkedClassIDs []uint
}

func (s *Service) loadTeacherScope(ctx context.Context, teacherID uint) (*teacherScope, error) {
	sc := &teacherScope{materials: map[uint]models.Material{}}
	var materials []models.Material
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("teacher_id = ?", teacherID).Order("created_at DESC").Find(&materials).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("teacher_id = ?", teacherID).Order("deadline ASC").Order("id").Find(&sc.assignments).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load teacher items: %w", err)
	}
	ids := make([]uint, 0, len(materials))
	for _, m := range materials {
		sc.materials[m.ID] = m
		ids = append(ids, m.ID)
	}
	links, err := s.ClassesForMaterials(ctx, ids)
	if err != nil {
		return nil, err
	}
	sc.materialClass = links
	var classIDs []uint
	for _, id := range ids {
		for _, c := range links[id] {
			classIDs = append(classIDs, c.ID)
		}
	}
	sc.linkedClassIDs = UniqueIDs(classIDs)
	return sc, nil
}

// reachable returns the teacher's assignments whose material is linked to one of classIDs
func (sc *teacherScope) reachable(classIDs map[uint]struct{}) []models.Assignment {
	var out []models.Assignment
	for _, a := range sc.assignments {
		for _, c := range sc.materialClass[a.MaterialID] {
			if _, ok := classIDs[c.ID]; ok {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

func (sc *teacherScope) assignmentIDs() []uint {
	ids := make([]uint, 0, len(sc.assignments))
	for _, a := range sc.assignments {
		ids = append(ids, a.ID)
	}
	return ids
}

// studentRow fills the teacher-scoped counters for one student
func studentRow(u models.User, assignments []models.Assignment, subs map[uint]models.Submission) StudentRow {
	row := StudentRow{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		TotalAssignments: len(assignments),
		LastActivityAt:   u.LastActivityAt,
	}
	var grades []int
	for _, a := range assignments {
		sub, ok := subs[a.ID]
		if !ok {
			continue
		}
		if Submitted(sub) {
			row.Submitted++
		}
		if Graded(sub) {
			row.Graded++
		}
		if sub.Grade != nil {
			grades = append(grades, *sub.Grade)
		}
	}
	row.Progress = Percentage(row.Submitted, row.TotalAssignments)
	row.AverageGrade = Average(grades)
	return row
}

type enrollmentRow struct {
	StudentID uint
	ClassID   uint
}

// TeacherStudents lists active students reached by the teacher's materials with
// progress over the teacher's assignments they can see. Students with no such
// assignment are omitted.
func (s *Service) TeacherStudents(ctx context.Context, teacherID uint) ([]StudentRow, error) {
	sc, err := s.loadTeacherScope(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if len(sc.linkedClassIDs) == 0 || len(sc.assignments) == 0 {
		return []StudentRow{}, nil
	}

	var students []models.User
	if err := activeStudentsIn(s.db.WithContext(ctx), sc.linkedClassIDs).Order("name").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	if len(students) == 0 {
		return []StudentRow{}, nil
	}
	studentIDs := make([]uint, 0, len(students))
	for _, st := range students {
		studentIDs = append(studentIDs, st.ID)
	}

	var (
		subs        []models.Submission
		enrollments []enrollmentRow
		taught      []ClassRef
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("student_id IN ? AND assignment_id IN ?", studentIDs, sc.assignmentIDs()).Find(&subs).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.Enrollment{}).Select("student_id, class_id").
			Where("student_id IN ?", studentIDs).Scan(&enrollments).Error
	})
	g.Go(func() error {
		var err error
		taught, err = s.taughtClasses(gctx, teacherID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load student progress: %w", err)
	}

	byStudent := map[uint]map[uint]models.Submission{}
	for _, sub := range subs {
		if byStudent[sub.StudentID] == nil {
			byStudent[sub.StudentID] = map[uint]models.Submission{}
		}
		byStudent[sub.StudentID][sub.AssignmentID] = sub
	}
	classesOf := map[uint]map[uint]struct{}{}
	for _, e := range enrollments {
		if classesOf[e.StudentID] == nil {
			classesOf[e.StudentID] = map[uint]struct{}{}
		}
		classesOf[e.StudentID][e.ClassID] = struct{}{}
	}

	out := make([]StudentRow, 0, len(students))
	for _, st := range students {
		visible := sc.reachable(classesOf[st.ID])
		if len(visible) == 0 {
			continue
		}
		row := studentRow(st, visible, byStudent[st.ID])
		var common []ClassRef
		for _, c := range taught {
			if _, ok := classesOf[st.ID][c.ID]; ok {
				common = append(common, c)
			}
		}
		row.Classes = ClassNames(common)
		out = append(out, row)
	}
	return out, nil
}

// TeacherStudentDetail returns one student's progress over the teacher's
// assignments. The student must be active and reach at least one of the
// teacher's materials.
func (s *Service) TeacherStudentDetail(ctx context.Context, teacherID, studentID uint) (*StudentDetail, error) {
	var student models.User
	err := s.db.WithContext(ctx).
		Where("id = ? AND role = ? AND status = ?", studentID, models.RoleStudent, models.StatusActive).
		First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFound("student not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load student: %w", err)
	}

	ok, err := s.access.ReachesTeacher(ctx, studentID, teacherID)
	if err != nil {
		return nil, fmt.Errorf("check student access: %w", err)
	}
	if !ok {
		return nil, utils.Forbidden("student has no access to your materials")
	}

	sc, err := s.loadTeacherScope(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	classIDs, err := s.access.ClassIDs(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load student classes: %w", err)
	}
	enrolled := make(map[uint]struct{}, len(classIDs))
	for _, id := range classIDs {
		enrolled[id] = struct{}{}
	}
	visible := sc.reachable(enrolled)

	subs := map[uint]models.Submission{}
	if len(visible) > 0 {
		ids := make([]uint, 0, len(visible))
		for _, a := range visible {
			ids = append(ids, a.ID)
		}
		var rows []models.Submission
		if err := s.db.WithContext(ctx).Where("student_id = ? AND assignment_id IN ?", studentID, ids).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load submissions: %w", err)
		}
		for _, r := range rows {
			subs[r.AssignmentID] = r
		}
	}

	row := studentRow(student, visible, subs)
	detail := &StudentDetail{Assignments: make([]TeacherAssignmentState, 0, len(visible))}
	detail.Student.ID = student.ID
	detail.Student.Name = student.Name
	detail.Student.Email = student.Email
	detail.Student.LastLoginAt = student.LastLoginAt
	detail.Student.LastActivityAt = student.LastActivityAt
	detail.Stats.TotalAssignments = row.TotalAssignments
	detail.Stats.Submitted = row.Submitted
	detail.Stats.Graded = row.Graded
	detail.Stats.Progress = row.Progress
	detail.Stats.AverageGrade = row.AverageGrade

	for _, a := range visible {
		st := TeacherAssignmentState{
			ID:            a.ID,
			Title:         a.Title,
			Description:   a.Description,
			MaterialTitle: UnknownLabel,
			Classes:       ClassNames(sc.materialClass[a.MaterialID]),
			Deadline:      a.Deadline,
			Status:        models.SubmissionNotDone,
		}
		if m, ok := sc.materials[a.MaterialID]; ok {
			st.MaterialTitle = m.Title
		}
		if sub, ok := subs[a.ID]; ok {
			st.Status = sub.Status
			st.Grade = sub.Grade
			if sub.Feedback != nil {
				st.Feedback = *sub.Feedback
			}
			st.Answer = sub.Answer
			st.SubmittedAt = sub.SubmittedAt
			st.GradedAt = sub.GradedAt
		}
		detail.Assignments = append(detail.Assignments, st)
	}
	return detail, nil
}

// StudentsByClass groups the teacher's taught classes with their active
// students' progress over the teacher's assignments linked to that class.
func (s *Service) StudentsByClass(ctx context.Context, teacherID uint) ([]TeacherClassGroup, error) {
	taught, err := s.taughtClasses(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	out := make([]TeacherClassGroup, 0, len(taught))
	if len(taught) == 0 {
		return out, nil
	}
	sc, err := s.loadTeacherScope(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	classIDs := make([]uint, 0, len(taught))
	for _, c := range taught {
		classIDs = append(classIDs, c.ID)
	}
	var enrollments []enrollmentRow
	if err := s.db.WithContext(ctx).Model(&models.Enrollment{}).Select("student_id, class_id").
		Where("class_id IN ?", classIDs).Scan(&enrollments).Error; err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}
	var students []models.User
	if err := activeStudentsIn(s.db.WithContext(ctx), classIDs).Order("name").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	studentIDs := make([]uint, 0, len(students))
	for _, st := range students {
		studentIDs = append(studentIDs, st.ID)
	}
	byStudent := map[uint]map[uint]models.Submission{}
	if len(studentIDs) > 0 && len(sc.assignments) > 0 {
		var subs []models.Submission
		if err := s.db.WithContext(ctx).Where("student_id IN ? AND assignment_id IN ?", studentIDs, sc.assignmentIDs()).Find(&subs).Error; err != nil {
			return nil, fmt.Errorf("load submissions: %w", err)
		}
		for _, sub := range subs {
			if byStudent[sub.StudentID] == nil {
				byStudent[sub.StudentID] = map[uint]models.Submission{}
			}
			byStudent[sub.StudentID][sub.AssignmentID] = sub
		}
	}

	members := map[uint]map[uint]struct{}{}
	for _, e := range enrollments {
		if members[e.ClassID] == nil {
			members[e.ClassID] = map[uint]struct{}{}
		}
		members[e.ClassID][e.StudentID] = struct{}{}
	}

	for _, c := range taught {
		group := TeacherClassGroup{Class: c, Students: []StudentRow{}}
		inClass := sc.reachable(map[uint]struct{}{c.ID: {}})
		var progressValues, gradeValues []int
		for _, st := range students {
			if _, ok := members[c.ID][st.ID]; !ok {
				continue
			}
			row := studentRow(st, inClass, byStudent[st.ID])
			row.Classes = c.Name
			group.Students = append(group.Students, row)
			progressValues = append(progressValues, row.Progress)
			gradeValues = append(gradeValues, row.AverageGrade)
		}
		group.Stats.TotalStudents = len(group.Students)
		group.Stats.AverageProgress = Average(progressValues)
		group.Stats.AverageGrade = Average(gradeValues)
		out = append(out, group)
	}
	return out, nil
}

// taughtClasses returns the distinct classes the teacher has a teaching assignment in
func (s *Service) taughtClasses(ctx context.Context, teacherID uint) ([]ClassRef, error) {
	var refs []ClassRef
	err := s.db.WithContext(ctx).Model(&models.Class{}).
		Select("id, name, grade_level").
		Where("id IN (?)", s.db.Model(&models.TeachingAssignment{}).Select("class_id").Where("teacher_id = ?", teacherID)).
		Order("name").
		Scan(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("load taught classes: %w", err)
	}
	return refs, nil
}

// TaughtClasses is the exported form used by handlers
func (s *Service) TaughtClasses(ctx context.Context, teacherID uint) ([]ClassRef, error) {
	return s.taughtClasses(ctx, teacherID)
}

// TeacherClassInfo is one (class, subject) teaching assignment with counts.
type TeacherClassInfo struct {
	ClassRef
	Subject           string `json:"subject"`
	StudentCount      int    `json:"student_count"`
	MaterialCount     int    `json:"material_count"`
	AssignmentCount   int    `json:"assignment_count"`
	IsHomeroom        bool   `json:"is_homeroom"`
	HomeroomTeacherID *uint  `json:"homeroom_teacher_id"`
}

type teachingRow struct {
	ClassID           uint
	Name              string
	GradeLevel        string
	HomeroomTeacherID *uint
	Subject           string
}

// ClassesInfo lists the teacher's teaching assignments with per-class counts
// of active students and the teacher's own materials and assignments.
func (s *Service) ClassesInfo(ctx context.Context, teacherID uint) ([]TeacherClassInfo, error) {
	var rows []teachingRow
	err := s.db.WithContext(ctx).Table("teaching_assignments").
		Select("classes.id AS class_id, classes.name, classes.grade_level, classes.homeroom_teacher_id, teaching_assignments.subject").
		Joins("JOIN classes ON classes.id = teaching_assignments.class_id").
		Where("teaching_assignments.teacher_id = ?", teacherID).
		Order("classes.name").Order("teaching_assignments.subject").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load teaching assignments: %w", err)
	}
	out := make([]TeacherClassInfo, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	sc, err := s.loadTeacherScope(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	classIDs := make([]uint, 0, len(rows))
	for _, r := range rows {
		classIDs = append(classIDs, r.ClassID)
	}
	counts, err := s.activeStudentCounts(ctx, UniqueIDs(classIDs))
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		info := TeacherClassInfo{
			ClassRef:          ClassRef{ID: r.ClassID, Name: r.Name, GradeLevel: r.GradeLevel},
			Subject:           r.Subject,
			StudentCount:      counts[r.ClassID],
			HomeroomTeacherID: r.HomeroomTeacherID,
			IsHomeroom:        r.HomeroomTeacherID != nil && *r.HomeroomTeacherID == teacherID,
		}
		for id := range sc.materials {
			for _, c := range sc.materialClass[id] {
				if c.ID == r.ClassID {
					info.MaterialCount++
					break
				}
			}
		}
		info.AssignmentCount = len(sc.reachable(map[uint]struct{}{r.ClassID: {}}))
		out = append(out, info)
	}
	return out, nil
}

type classCount struct {
	ClassID uint
	Total   int
}

// activeStudentCounts counts active enrolled students per class
func (s *Service) activeStudentCounts(ctx context.Context, classIDs []uint) (map[uint]int, error) {
	out := make(map[uint]int, len(classIDs))
	if len(classIDs) == 0 {
		return out, nil
	}
	var rows []classCount
	err := s.db.WithContext(ctx).Table("enrollments").
		Select("enrollments.class_id, COUNT(DISTINCT enrollments.student_id) AS total").
		Joins("JOIN users ON users.id = enrollments.student_id").
		Where("enrollments.class_id IN ? AND users.status = ? AND users.role = ?", classIDs, models.StatusActive, models.RoleStudent).
		Group("enrollments.class_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count students: %w", err)
	}
	for _, r := range rows {
		out[r.ClassID] = r.Total
	}
	return out, nil
}

// TeacherDashboard holds the headline numbers for a teacher.
type TeacherDashboard struct {
	TotalMaterials   int64 `json:"total_materials"`
	TotalAssignments int64 `json:"total_assignments"`
	PendingGrading   int64 `json:"pending_grading"`
	AverageGrade     int   `json:"average_grade"`
	TotalStudents    int64 `json:"total_students"`
	TotalClasses     int   `json:"total_classes"`
	Teacher          struct {
		Name          string     `json:"name"`
		Email         string     `json:"email"`
		Subject       string     `json:"subject"`
		ClassesTaught string     `json:"classes_taught"`
		IsHomeroom    bool       `json:"is_homeroom"`
		HomeroomClass *string    `json:"homeroom_class"`
		LastLoginAt   *time.Time `json:"last_login_at"`
		LoginCount    int        `json:"login_count"`
	} `json:"teacher"`
}

// Dashboard computes the teacher's dashboard figures concurrently
func (s *Service) Dashboard(ctx context.Context, teacherID uint) (*TeacherDashboard, error) {
	d := &TeacherDashboard{}
	var (
		grades    []int
		teacher   models.User
		teachings []teachingRow
		homeroom  []models.Class
	)
	g, gctx := errgroup.WithContext(ctx)
	db := func() *gorm.DB { return s.db.WithContext(gctx) }
	ownAssignments := func() *gorm.DB {
		return s.db.Model(&models.Assignment{}).Select("id").Where("teacher_id = ?", teacherID)
	}
	activeStudents := func() *gorm.DB {
		return s.db.Model(&models.User{}).Select("id").
			Where("role = ? AND status = ?", models.RoleStudent, models.StatusActive)
	}

	g.Go(func() error {
		return db().Model(&models.Material{}).Where("teacher_id = ?", teacherID).Count(&d.TotalMaterials).Error
	})
	g.Go(func() error {
		return db().Model(&models.Assignment{}).Where("teacher_id = ?", teacherID).Count(&d.TotalAssignments).Error
	})
	g.Go(func() error {
		return db().Model(&models.Submission{}).
			Where("assignment_id IN (?) AND status = ? AND grade IS NULL", ownAssignments(), models.SubmissionDone).
			Count(&d.PendingGrading).Error
	})
	g.Go(func() error {
		return db().Model(&models.Submission{}).
			Where("assignment_id IN (?) AND grade IS NOT NULL", ownAssignments()).
			Where("student_id IN (?)", activeStudents()).
			Pluck("grade", &grades).Error
	})
	g.Go(func() error {
		linked := s.db.Model(&models.MaterialClass{}).Select("class_id").
			Where("material_id IN (?)", s.db.Model(&models.Material{}).Select("id").Where("teacher_id = ?", teacherID))
		return db().Model(&models.User{}).
			Where("role = ? AND status = ?", models.RoleStudent, models.StatusActive).
			Where("id IN (?)", s.db.Model(&models.Enrollment{}).Select("student_id").Where("class_id IN (?)", linked)).
			Count(&d.TotalStudents).Error
	})
	g.Go(func() error {
		return db().First(&teacher, teacherID).Error
	})
	g.Go(func() error {
		return db().Table("teaching_assignments").
			Select("classes.id AS class_id, classes.name, teaching_assignments.subject").
			Joins("JOIN classes ON classes.id = teaching_assignments.class_id").
			Where("teaching_assignments.teacher_id = ?", teacherID).
			Order("classes.name").
			Scan(&teachings).Error
	})
	g.Go(func() error {
		return db().Where("homeroom_teacher_id = ?", teacherID).Order("name").Find(&homeroom).Error
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("teacher not found")
		}
		return nil, fmt.Errorf("load dashboard: %w", err)
	}

	d.AverageGrade = Average(grades)
	labels := make([]string, 0, len(teachings))
	classIDs := make([]uint, 0, len(teachings))
	for _, t := range teachings {
		labels = append(labels, fmt.Sprintf("%s (%s)", t.Name, t.Subject))
		classIDs = append(classIDs, t.ClassID)
	}
	d.TotalClasses = len(UniqueIDs(classIDs))
	d.Teacher.Name = teacher.Name
	d.Teacher.Email = teacher.Email
	d.Teacher.Subject = teacher.Subject
	d.Teacher.ClassesTaught = utils.JoinNonEmpty(labels, ", ", "not teaching yet")
	d.Teacher.LastLoginAt = teacher.LastLoginAt
	d.Teacher.LoginCount = teacher.LoginCount
	if len(homeroom) > 0 {
		d.Teacher.IsHomeroom = true
		name := homeroom[0].Name
		d.Teacher.HomeroomClass = &name
	}
	return d, nil
}

// HomeroomStats describes the first class the teacher is homeroom teacher of.
type HomeroomStats struct {
	IsHomeroom bool                `json:"is_homeroom"`
	Class      *ClassRef           `json:"class,omitempty"`
	Attendance *HomeroomAttendance `json:"attendance,omitempty"`
	Grades     *HomeroomGrades     `json:"grades,omitempty"`
	Activity   *HomeroomActivity   `json:"activity,omitempty"`
}

type HomeroomAttendance struct {
	TotalStudents int64 `json:"total_students"`
	ActiveWeek    int64 `json:"active_week"`
	ActiveToday   int64 `json:"active_today"`
}

type HomeroomGrades struct {
	ClassAverage      int   `json:"class_average"`
	GradedAssignments int64 `json:"graded_assignments"`
	StudentsAbove80   int64 `json:"students_above_80"`
}

type HomeroomActivity struct {
	SubmissionsWeek       int64 `json:"submissions_week"`
	MaterialsAccessedWeek int64 `json:"materials_accessed_week"`
}

// Homeroom computes statistics for the teacher's homeroom class. A teacher
// without one gets IsHomeroom=false and nothing else.
func (s *Service) Homeroom(ctx context.Context, teacherID uint) (*HomeroomStats, error) {
	var classes []models.Class
	if err := s.db.WithContext(ctx).Where("homeroom_teacher_id = ?", teacherID).Order("id").Limit(1).Find(&classes).Error; err != nil {
		return nil, fmt.Errorf("load homeroom class: %w", err)
	}
	if len(classes) == 0 {
		return &HomeroomStats{IsHomeroom: false}, nil
	}
	class := classes[0]
	now := s.now()
	weekAgo := now.Add(-7 * 24 * time.Hour)
	dayAgo := now.Add(-24 * time.Hour)

	stats := &HomeroomStats{
		IsHomeroom: true,
		Class:      &ClassRef{ID: class.ID, Name: class.Name, GradeLevel: class.GradeLevel},
	}
	stats.Attendance = &HomeroomAttendance{}
	stats.Grades = &HomeroomGrades{}
	stats.Activity = &HomeroomActivity{}

	classIDs := []uint{class.ID}
	members := func() *gorm.DB {
		return activeStudentsIn(s.db, classIDs).Select("id")
	}
	var grades []int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return activeStudentsIn(s.db.WithContext(gctx), classIDs).Count(&stats.Attendance.TotalStudents).Error
	})
	g.Go(func() error {
		return activeStudentsIn(s.db.WithContext(gctx), classIDs).
			Where("last_activity_at >= ?", weekAgo).Count(&stats.Attendance.ActiveWeek).Error
	})
	g.Go(func() error {
		return activeStudentsIn(s.db.WithContext(gctx), classIDs).
			Where("last_activity_at >= ?", dayAgo).Count(&stats.Attendance.ActiveToday).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.Submission{}).
			Where("student_id IN (?) AND grade IS NOT NULL", members()).
			Pluck("grade", &grades).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.Submission{}).
			Where("student_id IN (?) AND grade IS NOT NULL", members()).
			Distinct("assignment_id").Count(&stats.Grades.GradedAssignments).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.Submission{}).
			Where("student_id IN (?) AND grade >= ?", members(), 80).
			Distinct("student_id").Count(&stats.Grades.StudentsAbove80).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.Submission{}).
			Where("student_id IN (?) AND submitted_at >= ?", members(), weekAgo).
			Count(&stats.Activity.SubmissionsWeek).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.MaterialProgress{}).
			Where("student_id IN (?) AND last_accessed_at >= ?", members(), weekAgo).
			Count(&stats.Activity.MaterialsAccessedWeek).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load homeroom stats: %w", err)
	}
	stats.Grades.ClassAverage = Average(grades)
	return stats, nil
}

// UpcomingDeadline is an own assignment due soon with submission counts.
type UpcomingDeadline struct {
	ID               uint      `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Deadline         time.Time `json:"deadline"`
	MaterialTitle    string    `json:"material_title"`
	Classes          string    `json:"classes"`
	TotalSubmissions int       `json:"total_submissions"`
	PendingGrading   int       `json:"pending_grading"`
}

// UpcomingDeadlines returns up to 5 own assignments due within the next 7 days
func (s *Service) UpcomingDeadlines(ctx context.Context, teacherID uint) ([]UpcomingDeadline, error) {
	now := s.now()
	var assignments []models.Assignment
	err := s.db.WithContext(ctx).
		Where("teacher_id = ? AND deadline >= ? AND deadline <= ?", teacherID, now, now.Add(7*24*time.Hour)).
		Order("deadline ASC").Limit(5).
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("load upcoming deadlines: %w", err)
	}
	out := make([]UpcomingDeadline, 0, len(assignments))
	if len(assignments) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(assignments))
	materialIDs := make([]uint, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ID)
		materialIDs = append(materialIDs, a.MaterialID)
	}

	var (
		subs    []models.Submission
		titles  map[uint]string
		classes map[uint][]ClassRef
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Select("id", "assignment_id", "student_id", "status").
			Where("assignment_id IN ?", ids).Find(&subs).Error
	})
	g.Go(func() (err error) {
		titles, err = s.MaterialTitles(gctx, materialIDs)
		return err
	})
	g.Go(func() (err error) {
		classes, err = s.ClassesForMaterials(gctx, materialIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := map[uint]int{}
	pending := map[uint]int{}
	for _, sub := range subs {
		total[sub.AssignmentID]++
		if sub.Status == models.SubmissionDone {
			pending[sub.AssignmentID]++
		}
	}
	for _, a := range assignments {
		out = append(out, UpcomingDeadline{
			ID:               a.ID,
			Title:            a.Title,
			Description:      a.Description,
			Deadline:         a.Deadline,
			MaterialTitle:    labelOr(titles, a.MaterialID),
			Classes:          ClassNames(classes[a.MaterialID]),
			TotalSubmissions: total[a.ID],
			PendingGrading:   pending[a.ID],
		})
	}
	return out, nil
}
