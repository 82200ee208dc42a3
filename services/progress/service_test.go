package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"sekolah_go/database/dbtest"
	"sekolah_go/models"
	"sekolah_go/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStudentDeduplicatesAcrossClasses(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	teacher := dbtest.CreateUser(t, db, "teacher", models.RoleTeacher, "")
	student := dbtest.CreateUser(t, db, "student", models.RoleStudent, "")
	c1 := dbtest.CreateClass(t, db, "7A", "7", 0)
	c2 := dbtest.CreateClass(t, db, "7B", "7", 0)
	other := dbtest.CreateClass(t, db, "8A", "8", 0)
	dbtest.Enroll(t, db, student.ID, c1.ID, c2.ID)

	shared := dbtest.CreateMaterial(t, db, teacher.ID, "Fractions", c1.ID, c2.ID)
	only := dbtest.CreateMaterial(t, db, teacher.ID, "Decimals", c2.ID)
	hidden := dbtest.CreateMaterial(t, db, teacher.ID, "Algebra", other.ID)

	a1 := dbtest.CreateAssignment(t, db, shared, "Fractions 1", time.Now().Add(48*time.Hour))
	dbtest.CreateAssignment(t, db, only, "Decimals 1", time.Now().Add(24*time.Hour))
	ah := dbtest.CreateAssignment(t, db, hidden, "Algebra 1", time.Now().Add(time.Hour))

	dbtest.Submit(t, db, student.ID, a1.ID, models.SubmissionCompleted, dbtest.IntPtr(85), time.Now())
	// work on an assignment the student can no longer reach is ignored
	dbtest.Submit(t, db, student.ID, ah.ID, models.SubmissionCompleted, dbtest.IntPtr(10), time.Now())
	dbtest.CompleteMaterial(t, db, student.ID, shared.ID)

	snap, err := NewService(db).LoadStudent(ctx, student.ID)
	require.NoError(t, err)

	assert.Len(t, snap.Classes, 2)
	assert.ElementsMatch(t, []uint{shared.ID, only.ID}, snap.MaterialIDs())
	assert.Len(t, snap.Assignments, 2)

	sum := snap.Summary()
	assert.Equal(t, 2, sum.TotalMaterials)
	assert.Equal(t, 1, sum.CompletedMaterials)
	assert.Equal(t, 2, sum.TotalAssignments)
	assert.Equal(t, 1, sum.Submitted)
	assert.Equal(t, 1, sum.Graded)
	assert.Equal(t, 85, sum.AverageGrade)
	assert.Equal(t, 50, sum.AssignmentProgress)
	assert.Equal(t, 50, sum.MaterialProgress)
	assert.Equal(t, 50, sum.OverallProgress)

	byClass := snap.ByClass()
	require.Len(t, byClass, 2)
	assert.Equal(t, "7A", byClass[0].Name)
	assert.Equal(t, 1, byClass[0].TotalMaterials)
	assert.Equal(t, 100, byClass[0].AssignmentProgress)
	assert.Equal(t, "7B", byClass[1].Name)
	assert.Equal(t, 2, byClass[1].TotalMaterials)

	assert.Equal(t, []string{"7A (Grade 7)", "7B (Grade 7)"}, snap.ClassLabels())
	assert.Len(t, snap.ActiveAssignments(), 1)
}

func TestLoadStudentWithoutClasses(t *testing.T) {
	db := dbtest.Open(t)
	student := dbtest.CreateUser(t, db, "loner", models.RoleStudent, "")

	snap, err := NewService(db).LoadStudent(context.Background(), student.ID)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, snap.Summary())
	assert.Empty(t, snap.ByClass())
}

func TestPendingGradingOldestFirst(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	teacher := dbtest.CreateUser(t, db, "teacher", models.RoleTeacher, "")
	otherTeacher := dbtest.CreateUser(t, db, "other", models.RoleTeacher, "")
	s1 := dbtest.CreateUser(t, db, "s1", models.RoleStudent, "")
	s2 := dbtest.CreateUser(t, db, "s2", models.RoleStudent, "")
	class := dbtest.CreateClass(t, db, "9A", "9", 0)
	m := dbtest.CreateMaterial(t, db, teacher.ID, "Physics", class.ID)
	om := dbtest.CreateMaterial(t, db, otherTeacher.ID, "Biology", class.ID)
	a := dbtest.CreateAssignment(t, db, m, "Forces", time.Now().Add(time.Hour))
	oa := dbtest.CreateAssignment(t, db, om, "Cells", time.Now().Add(time.Hour))

	base := time.Now().Add(-time.Hour)
	dbtest.Submit(t, db, s2.ID, a.ID, models.SubmissionDone, nil, base.Add(10*time.Minute))
	dbtest.Submit(t, db, s1.ID, a.ID, models.SubmissionDone, nil, base)
	dbtest.Submit(t, db, s1.ID, oa.ID, models.SubmissionDone, nil, base)

	items, err := NewService(db).PendingGrading(ctx, teacher.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "s1", items[0].StudentName)
	assert.Equal(t, "s2", items[1].StudentName)
	assert.Equal(t, "Physics", items[0].MaterialTitle)
}

func TestTeacherStudentsScopedToOwnAssignments(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	teacher := dbtest.CreateUser(t, db, "teacher", models.RoleTeacher, "")
	other := dbtest.CreateUser(t, db, "other", models.RoleTeacher, "")
	active := dbtest.CreateUser(t, db, "active", models.RoleStudent, "")
	inactive := dbtest.CreateUser(t, db, "inactive", models.RoleStudent, "")
	dbtest.Deactivate(t, db, &inactive)

	class := dbtest.CreateClass(t, db, "10A", "10", 0)
	dbtest.Teach(t, db, teacher.ID, class.ID, "Math")
	dbtest.Enroll(t, db, active.ID, class.ID)
	dbtest.Enroll(t, db, inactive.ID, class.ID)

	m := dbtest.CreateMaterial(t, db, teacher.ID, "Geometry", class.ID)
	a1 := dbtest.CreateAssignment(t, db, m, "Angles", time.Now().Add(time.Hour))
	dbtest.CreateAssignment(t, db, m, "Triangles", time.Now().Add(2*time.Hour))
	om := dbtest.CreateMaterial(t, db, other.ID, "Poetry", class.ID)
	oa := dbtest.CreateAssignment(t, db, om, "Haiku", time.Now().Add(time.Hour))

	dbtest.Submit(t, db, active.ID, a1.ID, models.SubmissionCompleted, dbtest.IntPtr(70), time.Now())
	dbtest.Submit(t, db, active.ID, oa.ID, models.SubmissionCompleted, dbtest.IntPtr(100), time.Now())

	rows, err := NewService(db).TeacherStudents(ctx, teacher.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, active.ID, rows[0].ID)
	assert.Equal(t, 2, rows[0].TotalAssignments)
	assert.Equal(t, 1, rows[0].Submitted)
	assert.Equal(t, 50, rows[0].Progress)
	assert.Equal(t, 70, rows[0].AverageGrade)
	assert.Equal(t, "10A", rows[0].Classes)
}

func TestTeacherStudentDetailAccess(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	teacher := dbtest.CreateUser(t, db, "teacher", models.RoleTeacher, "")
	inside := dbtest.CreateUser(t, db, "inside", models.RoleStudent, "")
	outside := dbtest.CreateUser(t, db, "outside", models.RoleStudent, "")
	c1 := dbtest.CreateClass(t, db, "11A", "11", 0)
	c2 := dbtest.CreateClass(t, db, "11B", "11", 0)
	dbtest.Enroll(t, db, inside.ID, c1.ID)
	dbtest.Enroll(t, db, outside.ID, c2.ID)
	m := dbtest.CreateMaterial(t, db, teacher.ID, "Chemistry", c1.ID)
	dbtest.CreateAssignment(t, db, m, "Atoms", time.Now().Add(time.Hour))

	svc := NewService(db)

	detail, err := svc.TeacherStudentDetail(ctx, teacher.ID, inside.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Stats.TotalAssignments)
	require.Len(t, detail.Assignments, 1)
	assert.Equal(t, models.SubmissionNotDone, detail.Assignments[0].Status)
	assert.Equal(t, "Chemistry", detail.Assignments[0].MaterialTitle)

	_, err = svc.TeacherStudentDetail(ctx, teacher.ID, outside.ID)
	assert.True(t, errors.Is(err, utils.ErrForbidden))

	_, err = svc.TeacherStudentDetail(ctx, teacher.ID, 9999)
	assert.True(t, errors.Is(err, utils.ErrNotFound))
}

func TestHomeroomStats(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	teacher := dbtest.CreateUser(t, db, "homeroom", models.RoleTeacher, "")
	plain := dbtest.CreateUser(t, db, "plain", models.RoleTeacher, "")
	student := dbtest.CreateUser(t, db, "kid", models.RoleStudent, "")
	class := dbtest.CreateClass(t, db, "12A", "12", teacher.ID)
	dbtest.Enroll(t, db, student.ID, class.ID)
	require.NoError(t, db.Model(&student).Update("last_activity_at", now.Add(-2*time.Hour)).Error)

	m := dbtest.CreateMaterial(t, db, teacher.ID, "History", class.ID)
	a := dbtest.CreateAssignment(t, db, m, "Essay", now.Add(time.Hour))
	dbtest.Submit(t, db, student.ID, a.ID, models.SubmissionCompleted, dbtest.IntPtr(88), now.Add(-time.Hour))

	svc := NewService(db).WithClock(func() time.Time { return now })

	none, err := svc.Homeroom(ctx, plain.ID)
	require.NoError(t, err)
	assert.False(t, none.IsHomeroom)
	assert.Nil(t, none.Attendance)

	st, err := svc.Homeroom(ctx, teacher.ID)
	require.NoError(t, err)
	assert.True(t, st.IsHomeroom)
	assert.Equal(t, "12A", st.Class.Name)
	assert.EqualValues(t, 1, st.Attendance.TotalStudents)
	assert.EqualValues(t, 1, st.Attendance.ActiveToday)
	assert.Equal(t, 88, st.Grades.ClassAverage)
	assert.EqualValues(t, 1, st.Grades.StudentsAbove80)
	assert.EqualValues(t, 1, st.Activity.SubmissionsWeek)
}

func TestLoadClassStatsSkipInactive(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	teacher := dbtest.CreateUser(t, db, "teacher", models.RoleTeacher, "")
	s1 := dbtest.CreateUser(t, db, "s1", models.RoleStudent, "")
	s2 := dbtest.CreateUser(t, db, "s2", models.RoleStudent, "")
	dbtest.Deactivate(t, db, &s2)
	class := dbtest.CreateClass(t, db, "6A", "6", teacher.ID)
	dbtest.Teach(t, db, teacher.ID, class.ID, "Art")
	dbtest.Enroll(t, db, s1.ID, class.ID)
	dbtest.Enroll(t, db, s2.ID, class.ID)
	m := dbtest.CreateMaterial(t, db, teacher.ID, "Colors", class.ID)
	a := dbtest.CreateAssignment(t, db, m, "Palette", time.Now().Add(time.Hour))
	dbtest.Submit(t, db, s1.ID, a.ID, models.SubmissionCompleted, dbtest.IntPtr(60), time.Now())
	dbtest.Submit(t, db, s2.ID, a.ID, models.SubmissionCompleted, dbtest.IntPtr(100), time.Now())

	snap, err := NewService(db).LoadClass(ctx, class.ID)
	require.NoError(t, err)
	require.Len(t, snap.Teachers, 1)
	assert.Equal(t, "Art", snap.Teachers[0].Subject)

	stats := snap.Stats()
	assert.Equal(t, 2, stats.TotalStudents)
	assert.Equal(t, 1, stats.ActiveStudents)
	assert.Equal(t, 60, stats.AverageGrade)
	assert.Equal(t, 50, stats.AverageProgress)

	_, err = NewService(db).LoadClass(ctx, 4242)
	assert.True(t, errors.Is(err, utils.ErrNotFound))
}

func TestDashboardAverageSkipsInactive(t *testing.T) {
	db := dbtest.Open(t)

	teacher := dbtest.CreateUser(t, db, "teacher", models.RoleTeacher, "")
	s1 := dbtest.CreateUser(t, db, "s1", models.RoleStudent, "")
	s2 := dbtest.CreateUser(t, db, "s2", models.RoleStudent, "")
	class := dbtest.CreateClass(t, db, "9C", "9", 0)
	dbtest.Teach(t, db, teacher.ID, class.ID, "Biology")
	dbtest.Enroll(t, db, s1.ID, class.ID)
	dbtest.Enroll(t, db, s2.ID, class.ID)
	m := dbtest.CreateMaterial(t, db, teacher.ID, "Cells", class.ID)
	a := dbtest.CreateAssignment(t, db, m, "Mitosis", time.Now().Add(time.Hour))
	dbtest.Submit(t, db, s1.ID, a.ID, models.SubmissionCompleted, dbtest.IntPtr(90), time.Now())
	dbtest.Submit(t, db, s2.ID, a.ID, models.SubmissionCompleted, dbtest.IntPtr(10), time.Now())
	dbtest.Deactivate(t, db, &s2)

	d, err := NewService(db).Dashboard(context.Background(), teacher.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, d.TotalStudents)
	assert.Equal(t, 90, d.AverageGrade)
}

func TestLoadClassesMatchesLoadClass(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	teacher := dbtest.CreateUser(t, db, "teacher", models.RoleTeacher, "")
	s1 := dbtest.CreateUser(t, db, "s1", models.RoleStudent, "")
	s2 := dbtest.CreateUser(t, db, "s2", models.RoleStudent, "")
	s3 := dbtest.CreateUser(t, db, "s3", models.RoleStudent, "")
	dbtest.Deactivate(t, db, &s3)
	c7 := dbtest.CreateClass(t, db, "7A", "7", teacher.ID)
	c8 := dbtest.CreateClass(t, db, "8A", "8", 0)
	empty := dbtest.CreateClass(t, db, "9A", "9", 0)
	dbtest.Teach(t, db, teacher.ID, c7.ID, "Math")
	dbtest.Teach(t, db, teacher.ID, c8.ID, "Physics")
	dbtest.Enroll(t, db, s1.ID, c7.ID, c8.ID)
	dbtest.Enroll(t, db, s2.ID, c7.ID)
	dbtest.Enroll(t, db, s3.ID, c8.ID)

	shared := dbtest.CreateMaterial(t, db, teacher.ID, "Units", c7.ID, c8.ID)
	only8 := dbtest.CreateMaterial(t, db, teacher.ID, "Forces", c8.ID)
	a1 := dbtest.CreateAssignment(t, db, shared, "Units 1", time.Now().Add(time.Hour))
	a2 := dbtest.CreateAssignment(t, db, only8, "Forces 1", time.Now().Add(2*time.Hour))
	dbtest.Submit(t, db, s1.ID, a1.ID, models.SubmissionCompleted, dbtest.IntPtr(70), time.Now())
	dbtest.Submit(t, db, s1.ID, a2.ID, models.SubmissionCompleted, dbtest.IntPtr(90), time.Now())
	dbtest.Submit(t, db, s2.ID, a1.ID, models.SubmissionDone, nil, time.Now())
	dbtest.Submit(t, db, s3.ID, a2.ID, models.SubmissionCompleted, dbtest.IntPtr(20), time.Now())
	dbtest.CompleteMaterial(t, db, s1.ID, shared.ID)

	svc := NewService(db)
	all, err := svc.LoadClasses(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"7A", "8A", "9A"}, []string{all[0].Class.Name, all[1].Class.Name, all[2].Class.Name})

	for _, batched := range all {
		single, err := svc.LoadClass(ctx, batched.Class.ID)
		require.NoError(t, err)
		assert.Equal(t, single.Stats(), batched.Stats(), batched.Class.Name)
		assert.ElementsMatch(t, single.MaterialIDs(), batched.MaterialIDs())
		assert.ElementsMatch(t, single.AssignmentIDs(), batched.AssignmentIDs())
		assert.Len(t, batched.Teachers, len(single.Teachers))
		for _, st := range single.Students {
			assert.Equal(t, single.StudentSummary(st.ID), batched.StudentSummary(st.ID), "%s/%s", batched.Class.Name, st.Name)
		}
	}
	assert.Equal(t, empty.ID, all[2].Class.ID)
	assert.Empty(t, all[2].Students)
	assert.Equal(t, 80, all[1].Stats().AverageGrade)
}
