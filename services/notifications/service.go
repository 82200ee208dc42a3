package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sekolah_go/config"
	"sekolah_go/database"
	"sekolah_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification types
const (
	TypeAssignment   = "assignment"
	TypeGrade        = "grade"
	TypeDeadline     = "deadline"
	TypeAnnouncement = "announcement"
)

const redisListKey = "notifications:queue"

// Payload is what gets stored for each recipient
type Payload struct {
	Title   string      `json:"title"`
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
}

// queuedNotification is the Redis list item; one item fans out to many users
type queuedNotification struct {
	Payload
	UserIDs   []uint    `json:"user_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// WSHub pushes realtime frames to a user's open connections
type WSHub interface {
	BroadcastToUser(userID uint, message interface{})
}

// GroupMessenger posts a text message to a chat group
type GroupMessenger interface {
	SendLineMessageToGroup(groupID string, message string) error
}

var (
	defaultHub       WSHub
	defaultMessenger GroupMessenger
)

// SetDefaultWSHub sets the hub used by services built with NewService
func SetDefaultWSHub(h WSHub) { defaultHub = h }

// SetDefaultMessenger sets the group messenger used by services built with NewService
func SetDefaultMessenger(m GroupMessenger) { defaultMessenger = m }

// Service creates notifications, either directly or through a Redis queue
// drained by StartWorker. Redis failures fall back to a direct insert.
type Service struct {
	db        *gorm.DB
	redis     *redis.Client
	useRedis  bool
	wsHub     WSHub
	messenger GroupMessenger
	now       func() time.Time
}

// NewService wires the service to the global database, Redis client and defaults
func NewService() *Service {
	rdb := database.GetRedisClient()
	return &Service{
		db:        database.GetDB(),
		redis:     rdb,
		useRedis:  config.AppConfig != nil && config.AppConfig.UseRedisNotifications && rdb != nil,
		wsHub:     defaultHub,
		messenger: defaultMessenger,
		now:       time.Now,
	}
}

// New builds a service on an explicit database without Redis
func New(db *gorm.DB, hub WSHub, messenger GroupMessenger) *Service {
	return &Service{db: db, wsHub: hub, messenger: messenger, now: time.Now}
}

// WithClock overrides the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// EnqueueOrCreate stores one notification per user
func (s *Service) EnqueueOrCreate(ctx context.Context, userIDs []uint, p Payload) error {
	if len(userIDs) == 0 {
		return errors.New("no user ids")
	}
	q := queuedNotification{Payload: p, UserIDs: userIDs, CreatedAt: s.now().UTC()}

	if s.useRedis {
		b, err := json.Marshal(q)
		if err != nil {
			return err
		}
		if err = s.redis.RPush(ctx, redisListKey, b).Err(); err == nil {
			return nil
		}
		logrus.WithError(err).Warn("notification queue push failed, inserting directly")
	}
	return s.createDirect(ctx, q)
}

func (s *Service) createDirect(ctx context.Context, q queuedNotification) error {
	if len(q.UserIDs) == 0 {
		return nil
	}
	var data datatypes.JSON
	if q.Data != nil {
		if b, err := json.Marshal(q.Data); err == nil {
			data = b
		}
	}
	rows := make([]models.Notification, 0, len(q.UserIDs))
	for _, uid := range q.UserIDs {
		rows = append(rows, models.Notification{
			UserID:  uid,
			Title:   q.Title,
			Message: q.Message,
			Type:    q.Type,
			Data:    data,
		})
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("create notifications: %w", err)
	}

	if s.wsHub != nil {
		for _, n := range rows {
			s.wsHub.BroadcastToUser(n.UserID, map[string]interface{}{
				"type": "notification",
				"data": n,
			})
		}
	}
	return nil
}

// StartWorker drains the Redis queue every two seconds until stop is closed
func (s *Service) StartWorker(stop <-chan struct{}) {
	if !s.useRedis {
		logrus.Info("Redis notifications disabled; worker not started")
		return
	}
	go func() {
		logrus.Info("Redis notification worker started")
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		ctx := context.Background()
		for {
			select {
			case <-stop:
				logrus.Info("Redis notification worker stopping")
				return
			case <-ticker.C:
				s.flushBatch(ctx, 200)
			}
		}
	}()
}

func (s *Service) flushBatch(ctx context.Context, batchSize int) {
	if s.redis == nil {
		return
	}
	for i := 0; i < 5; i++ {
		vals, err := s.redis.LRange(ctx, redisListKey, 0, int64(batchSize-1)).Result()
		if err != nil || len(vals) == 0 {
			return
		}
		if err = s.redis.LTrim(ctx, redisListKey, int64(len(vals)), -1).Err(); err != nil {
			logrus.WithError(err).Warn("notification queue trim failed")
		}
		for _, raw := range vals {
			var q queuedNotification
			if err := json.Unmarshal([]byte(raw), &q); err != nil {
				continue
			}
			if err := s.createDirect(ctx, q); err != nil {
				logrus.WithError(err).Error("notification insert failed")
			}
		}
		if len(vals) < batchSize {
			return
		}
	}
}

// studentsOfMaterial returns active students enrolled in any class the
// material is linked to.
func (s *Service) studentsOfMaterial(ctx context.Context, materialID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ? AND status = ?", models.RoleStudent, models.StatusActive).
		Where("id IN (?)", s.db.Model(&models.Enrollment{}).Select("student_id").
			Where("class_id IN (?)", s.db.Model(&models.MaterialClass{}).Select("class_id").Where("material_id = ?", materialID))).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

// AssignmentCreated notifies students who can reach the assignment and
// posts to the LINE group of each linked class that has one.
func (s *Service) AssignmentCreated(ctx context.Context, a models.Assignment) error {
	students, err := s.studentsOfMaterial(ctx, a.MaterialID)
	if err != nil {
		return fmt.Errorf("load assignment audience: %w", err)
	}
	deadline := a.Deadline.Format("02 Jan 2006 15:04")
	if len(students) > 0 {
		err = s.EnqueueOrCreate(ctx, students, Payload{
			Title:   "New assignment",
			Message: fmt.Sprintf("%s is due %s", a.Title, deadline),
			Type:    TypeAssignment,
			Data:    map[string]uint{"assignment_id": a.ID, "material_id": a.MaterialID},
		})
		if err != nil {
			return err
		}
	}

	if s.messenger == nil {
		return nil
	}
	var groups []string
	err = s.db.WithContext(ctx).Model(&models.Class{}).
		Where("line_group_id <> ''").
		Where("id IN (?)", s.db.Model(&models.MaterialClass{}).Select("class_id").Where("material_id = ?", a.MaterialID)).
		Pluck("line_group_id", &groups).Error
	if err != nil {
		return fmt.Errorf("load class line groups: %w", err)
	}
	for _, g := range groups {
		if err := s.messenger.SendLineMessageToGroup(g, fmt.Sprintf("New assignment: %s (due %s)", a.Title, deadline)); err != nil {
			logrus.WithError(err).WithField("group", g).Warn("LINE group push failed")
		}
	}
	return nil
}

// GradePosted tells the student a submission has been graded
func (s *Service) GradePosted(ctx context.Context, sub models.Submission, assignmentTitle string) error {
	grade := "-"
	if sub.Grade != nil {
		grade = fmt.Sprintf("%d", *sub.Grade)
	}
	return s.EnqueueOrCreate(ctx, []uint{sub.StudentID}, Payload{
		Title:   "Assignment graded",
		Message: fmt.Sprintf("%s was graded: %s", assignmentTitle, grade),
		Type:    TypeGrade,
		Data:    map[string]uint{"submission_id": sub.ID, "assignment_id": sub.AssignmentID},
	})
}

// DeadlineReminders notifies students who have not submitted work due in
// 23 to 24 hours. Running it hourly reminds each student once per assignment.
func (s *Service) DeadlineReminders(ctx context.Context) (int, error) {
	now := s.now()
	var due []models.Assignment
	err := s.db.WithContext(ctx).
		Where("deadline > ? AND deadline <= ?", now.Add(23*time.Hour), now.Add(24*time.Hour)).
		Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("load due assignments: %w", err)
	}

	sent := 0
	for _, a := range due {
		students, err := s.studentsOfMaterial(ctx, a.MaterialID)
		if err != nil {
			return sent, fmt.Errorf("load reminder audience: %w", err)
		}
		var submitted []uint
		err = s.db.WithContext(ctx).Model(&models.Submission{}).
			Where("assignment_id = ? AND status IN ?", a.ID, []models.SubmissionStatus{models.SubmissionDone, models.SubmissionCompleted}).
			Pluck("student_id", &submitted).Error
		if err != nil {
			return sent, fmt.Errorf("load submitted students: %w", err)
		}
		pending := without(students, submitted)
		if len(pending) == 0 {
			continue
		}
		err = s.EnqueueOrCreate(ctx, pending, Payload{
			Title:   "Deadline tomorrow",
			Message: fmt.Sprintf("%s is due %s", a.Title, a.Deadline.Format("02 Jan 2006 15:04")),
			Type:    TypeDeadline,
			Data:    map[string]uint{"assignment_id": a.ID},
		})
		if err != nil {
			return sent, err
		}
		sent += len(pending)
	}
	return sent, nil
}

func without(ids, exclude []uint) []uint {
	skip := make(map[uint]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
