package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"sekolah_go/config"
	"sekolah_go/database"
	"sekolah_go/database/seeders"
	"sekolah_go/handlers"
	"sekolah_go/middleware"
	"sekolah_go/routes"
	"sekolah_go/services"
	"sekolah_go/services/email"
	"sekolah_go/services/notifications"
	"sekolah_go/services/websocket"
	"sekolah_go/storage"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rollbar/rollbar-go"
	"github.com/sirupsen/logrus"
)

const version = "1.0.0"

func init() {
	// Load configuration
	config.LoadConfig()

	// Initialize logging
	setupLogging()

	// Connect to database
	database.Connect()
}

func main() {
	if config.AppConfig.RollbarToken != "" {
		rollbar.SetToken(config.AppConfig.RollbarToken)
		rollbar.SetEnvironment(config.AppConfig.AppEnv)
		rollbar.SetCodeVersion(version)
		defer rollbar.Close()
	}

	if config.AppConfig.SeedData {
		if err := seeders.SeedAll(database.DB, config.AppConfig.SeedPassword); err != nil {
			logrus.WithError(err).Fatal("Database seeding failed")
		}
	}

	// Create WebSocket hub first
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Notifications go to the hub and, for classes with a LINE group, to LINE
	line := services.NewLineMessagingService(config.AppConfig)
	notifications.SetDefaultWSHub(wsHub)
	if line.Enabled() {
		notifications.SetDefaultMessenger(line)
	}
	notifService := notifications.NewService()
	stopNotif := make(chan struct{})
	if config.AppConfig.UseRedisNotifications {
		notifService.StartWorker(stopNotif)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store := storage.New(ctx, config.AppConfig)
	cancel()

	logService := services.NewLogArchiveService(database.DB, database.GetRedisClient(), store)
	reportService := services.NewReportService(database.DB, store)

	scheduleManager := services.NewScheduleManager(logService, notifService, reportService)
	if config.AppConfig.CronEnabled {
		if err := scheduleManager.Start(); err != nil {
			logrus.WithError(err).Fatal("Failed to start scheduler")
		}
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Sekolah API " + version,
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Custom middleware
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.LogActivityMiddleware())

	routes.SetupRoutes(app, routes.Deps{
		Hub:           wsHub,
		Notifications: notifService,
		Logs:          logService,
		Reports:       reportService,
		Mailer:        email.NewSender(config.AppConfig),
		LineWebhook: handlers.NewLineWebhookHandler(
			config.AppConfig.LineChannelSecret, line, services.NewLineGroupMatcher(database.DB)),
	})

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return utils.Fail(c, fiber.StatusNotFound, "route not found: "+c.Method()+" "+c.Path())
	})

	go func() {
		logrus.WithFields(logrus.Fields{
			"port":    config.AppConfig.Port,
			"env":     config.AppConfig.AppEnv,
			"version": version,
		}).Info("Server starting")
		if err := app.Listen(":" + config.AppConfig.Port); err != nil {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
	}
	scheduleManager.Stop()
	close(stopNotif)
	wsHub.Stop()
	database.Close()
	logrus.Info("Server stopped")
}

// setupLogging configures the logging system
func setupLogging() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(config.AppConfig.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	// Log to stdout in development, to file otherwise
	if config.AppConfig.AppEnv == "development" || config.AppConfig.LogFile == "" {
		logrus.SetOutput(os.Stdout)
		return
	}
	if err := os.MkdirAll(filepath.Dir(config.AppConfig.LogFile), 0755); err != nil {
		logrus.WithError(err).Warn("Could not create logs directory")
		return
	}
	file, err := os.OpenFile(config.AppConfig.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logrus.WithError(err).Warn("Could not open log file, logging to stdout")
		return
	}
	logrus.SetOutput(file)
}

// customErrorHandler handles errors that escape the handlers
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"error":      err.Error(),
		"path":       c.Path(),
		"method":     c.Method(),
		"ip":         c.IP(),
		"status":     code,
		"request_id": middleware.RequestID(c),
	}).Error("Request error")

	if code >= fiber.StatusInternalServerError && config.AppConfig.RollbarToken != "" {
		rollbar.Error(err, map[string]interface{}{
			"path":       c.Path(),
			"method":     c.Method(),
			"request_id": middleware.RequestID(c),
		})
	}

	return utils.Fail(c, code, message)
}
