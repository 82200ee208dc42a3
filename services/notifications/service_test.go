package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"sekolah_go/database/dbtest"
	"sekolah_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	mu    sync.Mutex
	users []uint
}

func (h *recordingHub) BroadcastToUser(userID uint, _ interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.users = append(h.users, userID)
}

type recordingMessenger struct {
	groups []string
}

func (m *recordingMessenger) SendLineMessageToGroup(groupID, _ string) error {
	m.groups = append(m.groups, groupID)
	return nil
}

func TestAssignmentCreatedNotifiesActiveStudents(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	teacher := dbtest.CreateUser(t, db, "teacher", models.RoleTeacher, "")
	in := dbtest.CreateUser(t, db, "in", models.RoleStudent, "")
	gone := dbtest.CreateUser(t, db, "gone", models.RoleStudent, "")
	out := dbtest.CreateUser(t, db, "out", models.RoleStudent, "")
	dbtest.Deactivate(t, db, &gone)

	linked := dbtest.CreateClass(t, db, "7A", "7", 0)
	require.NoError(t, db.Model(&linked).Update("line_group_id", "C123").Error)
	other := dbtest.CreateClass(t, db, "7B", "7", 0)
	dbtest.Enroll(t, db, in.ID, linked.ID)
	dbtest.Enroll(t, db, gone.ID, linked.ID)
	dbtest.Enroll(t, db, out.ID, other.ID)

	m := dbtest.CreateMaterial(t, db, teacher.ID, "Plants", linked.ID)
	a := dbtest.CreateAssignment(t, db, m, "Photosynthesis", time.Now().Add(48*time.Hour))

	hub := &recordingHub{}
	line := &recordingMessenger{}
	require.NoError(t, New(db, hub, line).AssignmentCreated(ctx, a))

	var rows []models.Notification
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, in.ID, rows[0].UserID)
	assert.Equal(t, TypeAssignment, rows[0].Type)
	assert.Equal(t, []uint{in.ID}, hub.users)
	assert.Equal(t, []string{"C123"}, line.groups)
}

func TestDeadlineRemindersSkipSubmitted(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

	teacher := dbtest.CreateUser(t, db, "teacher", models.RoleTeacher, "")
	lazy := dbtest.CreateUser(t, db, "lazy", models.RoleStudent, "")
	eager := dbtest.CreateUser(t, db, "eager", models.RoleStudent, "")
	class := dbtest.CreateClass(t, db, "8A", "8", 0)
	dbtest.Enroll(t, db, lazy.ID, class.ID)
	dbtest.Enroll(t, db, eager.ID, class.ID)

	m := dbtest.CreateMaterial(t, db, teacher.ID, "Rivers", class.ID)
	due := dbtest.CreateAssignment(t, db, m, "Map", now.Add(23*time.Hour+30*time.Minute))
	dbtest.CreateAssignment(t, db, m, "Later", now.Add(72*time.Hour))
	dbtest.Submit(t, db, eager.ID, due.ID, models.SubmissionDone, nil, now)

	sent, err := New(db, nil, nil).WithClock(func() time.Time { return now }).DeadlineReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	var rows []models.Notification
	require.NoError(t, db.Where("type = ?", TypeDeadline).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, lazy.ID, rows[0].UserID)
}

func TestGradePosted(t *testing.T) {
	db := dbtest.Open(t)
	student := dbtest.CreateUser(t, db, "kid", models.RoleStudent, "")
	grade := 91

	err := New(db, nil, nil).GradePosted(context.Background(), models.Submission{
		BaseModel:    models.BaseModel{ID: 5},
		StudentID:    student.ID,
		AssignmentID: 3,
		Grade:        &grade,
	}, "Essay")
	require.NoError(t, err)

	var n models.Notification
	require.NoError(t, db.First(&n).Error)
	assert.Equal(t, "Essay was graded: 91", n.Message)
	assert.False(t, n.Read)
}

func TestEnqueueRequiresRecipients(t *testing.T) {
	db := dbtest.Open(t)
	assert.Error(t, New(db, nil, nil).EnqueueOrCreate(context.Background(), nil, Payload{Title: "x"}))
}
