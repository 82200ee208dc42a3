package database

import (
	"context"
	"fmt"
	"time"

	"sekolah_go/config"
	"sekolah_go/models"

	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB
var RedisClient *redis.Client

// Connect initializes the database and Redis connections
func Connect() {
	connectDatabase()
	connectRedis()
}

// Open returns a gorm handle for the configured driver without touching globals
func Open(cfg *config.Config, gormLogger logger.Interface) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:                                   gormLogger,
		DisableForeignKeyConstraintWhenMigrating: false,
	}
	switch cfg.DBDriver {
	case "sqlite":
		// foreign_keys pragma keeps ON DELETE behavior consistent with MySQL
		return gorm.Open(sqlite.Open(cfg.SQLitePath+"?_pragma=foreign_keys(1)"), gcfg)
	default:
		return gorm.Open(mysql.Open(cfg.GetDSN()), gcfg)
	}
}

func connectDatabase() {
	var err error

	var gormLogger logger.Interface
	if config.AppConfig.AppEnv == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	} else {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	// Retry for slow-starting database containers
	var lastErr error
	for attempt := 1; attempt <= 8; attempt++ {
		DB, err = Open(config.AppConfig, gormLogger)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		logrus.WithError(err).WithField("attempt", attempt).Warn("database connect attempt failed")
		time.Sleep(time.Duration(attempt*attempt) * 300 * time.Millisecond)
	}
	if lastErr != nil {
		logrus.WithError(lastErr).Fatal("failed to connect to database after retries")
	}

	logrus.WithField("driver", config.AppConfig.DBDriver).Info("database connected")

	sqlDB, err := DB.DB()
	if err != nil {
		logrus.WithError(err).Fatal("failed to get database instance")
	}

	if config.AppConfig.DBDriver == "sqlite" {
		// single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(55 * time.Minute)
	}

	if config.AppConfig.SkipMigrate {
		logrus.Info("SKIP_MIGRATE=true, schema migration skipped")
		return
	}
	if err := Migrate(DB); err != nil {
		logrus.WithError(err).Fatal("auto migration failed")
	}
	logrus.Info("database migration completed")
}

// Migrate creates or updates every table of the schema
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.AllModels()...)
}

func connectRedis() {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", config.AppConfig.RedisHost, config.AppConfig.RedisPort),
		Password: config.AppConfig.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		logrus.WithError(err).Warn("redis connection failed")
		logrus.Warn("continuing without Redis: logs go straight to the database and token blacklist is disabled")
		RedisClient = nil
		return
	}

	logrus.Info("redis connected")
}

// GetRedisClient returns the Redis client instance (nil when Redis is unavailable)
func GetRedisClient() *redis.Client {
	return RedisClient
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database and Redis connections
func Close() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logrus.WithError(err).Error("error closing redis connection")
		}
	}
	if DB == nil {
		return
	}
	sqlDB, err := DB.DB()
	if err != nil {
		logrus.WithError(err).Error("error getting database instance")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("error closing database connection")
		return
	}

	logrus.Info("database connection closed")
}
