package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"sekolah_go/config"
	"sekolah_go/database"
	"sekolah_go/database/dbtest"
	"sekolah_go/middleware"
	"sekolah_go/models"
	"sekolah_go/services/email"
	"sekolah_go/services/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *recordingMailer) Send(msg email.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
}

type testEnv struct {
	db     *gorm.DB
	app    *fiber.App
	mailer *recordingMailer
}

// newTestEnv installs an in-memory database and a router covering the
// handlers under test.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	prevCfg, prevRedis := config.AppConfig, database.RedisClient
	config.AppConfig = &config.Config{
		JWTSecret:               "test-secret",
		JWTExpiresIn:            time.Hour,
		LoginThrottleStore:      "memory",
		LoginRateLimitPerMinute: 1000,
		AppEnv:                  "test",
	}
	database.RedisClient = nil
	t.Cleanup(func() {
		config.AppConfig = prevCfg
		database.RedisClient = prevRedis
	})

	db := dbtest.UseGlobal(t)
	mailer := &recordingMailer{}
	notifier := notifications.New(db, nil, nil)

	auth := NewAuthController()
	headmaster := NewHeadmasterController(mailer, nil)
	teacher := NewTeacherController(notifier)
	student := &StudentController{}
	notes := &NotificationController{Notifications: notifier}

	app := fiber.New()
	api := app.Group("/api")

	a := api.Group("/auth")
	a.Post("/register", auth.Register)
	a.Post("/register-teacher", auth.RegisterTeacher)
	a.Post("/login", auth.Login)
	a.Get("/profile", middleware.JWTMiddleware(), auth.Profile)

	h := api.Group("/headmaster", middleware.JWTMiddleware(), middleware.RequireRole(models.RoleHeadmaster))
	h.Post("/teachers", headmaster.CreateTeacher)
	h.Delete("/teachers/:id", headmaster.DeleteTeacher)
	h.Post("/classes/:id/students", headmaster.EnrollStudent)
	h.Post("/announcements", notes.CreateAnnouncement)

	tg := api.Group("/teacher", middleware.JWTMiddleware(), middleware.RequireRole(models.RoleTeacher))
	tg.Post("/materials", teacher.CreateMaterial)
	tg.Put("/materials/:id", teacher.UpdateMaterial)
	tg.Delete("/materials/:id", teacher.DeleteMaterial)
	tg.Post("/assignments", teacher.CreateAssignment)
	tg.Put("/assignments/:id", teacher.UpdateAssignment)
	tg.Post("/submissions/:id/grade", teacher.GradeSubmission)
	tg.Get("/students/:id/progress", teacher.StudentProgress)
	tg.Post("/discussions/:id/reply", teacher.ReplyDiscussion)

	s := api.Group("/student", middleware.JWTMiddleware(), middleware.RequireRole(models.RoleStudent))
	s.Get("/materials", student.GetMaterials)
	s.Get("/materials/:id", student.GetMaterial)
	s.Post("/materials/:id/complete", student.CompleteMaterial)
	s.Post("/assignments/:id/submit", student.SubmitAssignment)
	s.Get("/dashboard/stats", student.DashboardStats)
	s.Post("/discussions/material", student.PostMaterialDiscussion)

	n := api.Group("/notifications", middleware.JWTMiddleware())
	n.Get("/", notes.GetNotifications)
	n.Get("/unread-count", notes.GetUnreadCount)
	n.Patch("/read-all", notes.MarkAllAsRead)

	return &testEnv{db: db, app: app, mailer: mailer}
}

func tokenFor(t *testing.T, u models.User) string {
	t.Helper()
	tok, err := middleware.GenerateToken(&u)
	require.NoError(t, err)
	return tok
}

// call sends a JSON request and decodes the envelope
func (e *testEnv) call(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}
