package routes

import (
	"sekolah_go/config"
	"sekolah_go/controllers"
	"sekolah_go/handlers"
	"sekolah_go/middleware"
	"sekolah_go/models"
	"sekolah_go/services"
	"sekolah_go/services/email"
	"sekolah_go/services/notifications"
	"sekolah_go/services/websocket"

	"github.com/gofiber/fiber/v2"
)

// Deps are the long-lived services the handlers share
type Deps struct {
	Hub           *websocket.Hub
	Notifications *notifications.Service
	Logs          *services.LogArchiveService
	Reports       *services.ReportService
	Mailer        email.Sender
	LineWebhook   *handlers.LineWebhookHandler
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, deps Deps) {
	// Initialize controllers
	authController := controllers.NewAuthController()
	headmasterController := controllers.NewHeadmasterController(deps.Mailer, deps.Reports)
	teacherController := controllers.NewTeacherController(deps.Notifications)
	studentController := &controllers.StudentController{}
	notificationController := &controllers.NotificationController{Notifications: deps.Notifications}
	logController := &controllers.LogController{Archive: deps.Logs}
	healthController := controllers.NewHealthController(nil)
	wsController := controllers.NewWebSocketController(deps.Hub)

	app.Get("/health", healthController.GetHealthStatus)

	// API group
	api := app.Group("/api")

	// Authentication routes
	auth := api.Group("/auth")
	limiter := middleware.LoginRateLimiter(config.AppConfig.LoginRateLimitPerMinute)
	auth.Get("/classes", authController.GetClasses)
	auth.Post("/register", limiter, authController.Register)
	auth.Post("/register-teacher", limiter, authController.RegisterTeacher)
	auth.Post("/login", limiter, authController.Login)
	auth.Post("/logout", middleware.JWTMiddleware(), authController.Logout)
	auth.Get("/profile", middleware.JWTMiddleware(), authController.Profile)

	// Headmaster routes
	headmaster := api.Group("/headmaster", middleware.JWTMiddleware(), middleware.RequireRole(models.RoleHeadmaster))
	headmaster.Get("/overview", headmasterController.Overview)
	headmaster.Get("/learning-activity", headmasterController.LearningActivity)

	headmaster.Get("/teachers", headmasterController.GetTeachers)
	headmaster.Post("/teachers", headmasterController.CreateTeacher)
	headmaster.Patch("/teachers/:id/status", headmasterController.UpdateTeacherStatus)
	headmaster.Delete("/teachers/:id", headmasterController.DeleteTeacher)

	headmaster.Get("/classes", headmasterController.GetClasses)
	headmaster.Post("/classes", headmasterController.CreateClass)
	headmaster.Get("/classes/:id", headmasterController.GetClass)
	headmaster.Put("/classes/:id", headmasterController.UpdateClass)
	headmaster.Delete("/classes/:id", headmasterController.DeleteClass)
	headmaster.Post("/classes/:id/teachers", headmasterController.AddClassTeacher)
	headmaster.Delete("/classes/:id/teachers/:teacherId", headmasterController.RemoveClassTeacher)
	headmaster.Get("/classes/:id/students", headmasterController.GetClassStudents)
	headmaster.Post("/classes/:id/students", headmasterController.EnrollStudent)
	headmaster.Post("/classes/:id/students/import", headmasterController.ImportRoster)
	headmaster.Delete("/classes/:id/students/:studentId", headmasterController.UnenrollStudent)
	headmaster.Get("/classes/:id/report", headmasterController.ClassReport)

	headmaster.Get("/students", headmasterController.GetStudents)
	headmaster.Get("/students/by-class", headmasterController.StudentsByClass)
	headmaster.Get("/students/:studentId/progress/:classId", headmasterController.StudentClassProgress)
	headmaster.Get("/students/:id/assignments", headmasterController.StudentAssignments)

	headmaster.Get("/materials", headmasterController.GetMaterials)
	headmaster.Get("/materials/:id/discussions", headmasterController.MaterialDiscussions)
	headmaster.Get("/discussions", headmasterController.GetDiscussions)
	headmaster.Post("/discussions", headmasterController.PostDiscussion)
	headmaster.Post("/announcements", notificationController.CreateAnnouncement)

	headmaster.Get("/activity-logs", logController.GetLogs)
	headmaster.Get("/activity-logs/stats", logController.GetLogStats)
	headmaster.Get("/activity-logs/archives", logController.GetArchives)
	headmaster.Get("/activity-logs/archives/:id/download", logController.DownloadArchive)
	headmaster.Post("/activity-logs/flush", logController.FlushCachedLogs)
	headmaster.Post("/activity-logs/archive", logController.ArchiveLogs)
	headmaster.Get("/ws/stats", wsController.GetWebSocketStats)

	// Teacher routes
	teacher := api.Group("/teacher", middleware.JWTMiddleware(), middleware.RequireRole(models.RoleTeacher))
	teacher.Get("/dashboard/stats", teacherController.DashboardStats)
	teacher.Get("/dashboard/recent-activity", teacherController.RecentActivity)
	teacher.Get("/classes/info", teacherController.ClassesInfo)
	teacher.Get("/classes/available", teacherController.AvailableClasses)
	teacher.Get("/homeroom/stats", teacherController.HomeroomStats)
	teacher.Get("/deadlines/upcoming", teacherController.UpcomingDeadlines)
	teacher.Get("/students/by-class", teacherController.StudentsByClass)
	teacher.Get("/students/progress", teacherController.StudentsProgress)
	teacher.Get("/students/:id/progress", teacherController.StudentProgress)

	teacher.Get("/materials", teacherController.GetMaterials)
	teacher.Post("/materials", teacherController.CreateMaterial)
	teacher.Put("/materials/:id", teacherController.UpdateMaterial)
	teacher.Delete("/materials/:id", teacherController.DeleteMaterial)
	teacher.Get("/materials/:id/classes", teacherController.MaterialClasses)

	teacher.Get("/assignments", teacherController.GetAssignments)
	teacher.Post("/assignments", teacherController.CreateAssignment)
	teacher.Put("/assignments/:id", teacherController.UpdateAssignment)
	teacher.Delete("/assignments/:id", teacherController.DeleteAssignment)
	teacher.Get("/assignments/:id/submissions", teacherController.AssignmentSubmissions)

	teacher.Get("/submissions/pending", teacherController.PendingSubmissions)
	teacher.Get("/submissions/graded", teacherController.GradedSubmissions)
	teacher.Post("/submissions/:id/grade", teacherController.GradeSubmission)

	teacher.Get("/discussions", teacherController.GetDiscussions)
	teacher.Post("/discussions/:id/reply", teacherController.ReplyDiscussion)

	// Student routes
	student := api.Group("/student", middleware.JWTMiddleware(), middleware.RequireRole(models.RoleStudent))
	student.Get("/dashboard/stats", studentController.DashboardStats)
	student.Get("/materials", studentController.GetMaterials)
	student.Get("/materials/:id", studentController.GetMaterial)
	student.Post("/materials/:id/complete", studentController.CompleteMaterial)
	student.Get("/assignments", studentController.GetAssignments)
	student.Get("/assignments/recent", studentController.RecentAssignments)
	student.Post("/assignments/:id/submit", studentController.SubmitAssignment)
	student.Get("/grades", studentController.GetGrades)
	student.Get("/progress", studentController.GetProgress)
	student.Get("/discussions/class", studentController.ClassDiscussions)
	student.Get("/discussions/material", studentController.MaterialDiscussions)
	student.Post("/discussions/material", studentController.PostMaterialDiscussion)

	// Notification routes (any signed-in role)
	notificationsGroup := api.Group("/notifications", middleware.JWTMiddleware())
	notificationsGroup.Get("/", notificationController.GetNotifications)
	notificationsGroup.Get("/unread-count", notificationController.GetUnreadCount)
	notificationsGroup.Patch("/read-all", notificationController.MarkAllAsRead)
	notificationsGroup.Patch("/:id/read", notificationController.MarkAsRead)

	// LINE webhook
	if deps.LineWebhook != nil {
		app.Post("/line/webhook", deps.LineWebhook.Handle)
	}

	// WebSocket
	app.Get("/ws", wsController.Upgrade, wsController.WebSocketHandler())
}
