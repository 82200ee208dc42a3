package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBDriver   string // mysql or sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// JWT
	JWTSecret    string
	JWTExpiresIn time.Duration

	// Login protection
	LoginThrottleStore      string // memory or redis
	LoginRateLimitPerMinute int

	// AWS S3
	AWSRegion    string
	S3BucketName string

	// Server
	Port   string
	AppEnv string

	// Logging
	LogLevel string
	LogFile  string

	// Integrations
	LineChannelSecret      string
	LineChannelAccessToken string
	SendgridAPIKey         string
	MailFrom               string
	RollbarToken           string

	// Feature Toggles
	UseRedisNotifications bool
	SkipMigrate           bool
	SeedData              bool
	SeedPassword          string
	CronEnabled           bool
}

func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local"
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.AppEnv) == "production"
}

var AppConfig *Config

func LoadConfig() {
	useSSM := getEnv("USE_SSM", "false") == "true"

	var paramMap map[string]string

	// Stage & base path for SSM (allows multi-env without code changes)
	basePath := strings.TrimRight(getEnv("SSM_BASE_PATH", "/sekolah"), "/")
	stage := getEnv("STAGE", getEnv("APP_ENV", "production"))
	prefix := basePath + "/" + stage

	if useSSM {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(getEnv("AWS_REGION", "ap-southeast-1"))})
		if err != nil {
			log.Fatal("Failed to create AWS session:", err)
		}
		log.Printf("Using AWS SSM Parameter Store (prefix=%s)", prefix)
		paramMap = fetchSSMParameters(ssm.New(sess), prefix)
	} else {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found, using environment variables")
		}
	}

	getVal := func(key, def string) string {
		if v, ok := paramMap[strings.ToUpper(key)]; ok && v != "" {
			return v
		}
		return getEnv(strings.ToUpper(key), def)
	}

	jwtExpires, err := ParseDuration(getVal("JWT_EXPIRES_IN", "8h"))
	if err != nil {
		log.Fatal("Invalid JWT_EXPIRES_IN format:", err)
	}

	rateLimit, err := strconv.Atoi(getVal("LOGIN_RATE_LIMIT_PER_MINUTE", "30"))
	if err != nil {
		log.Fatal("Invalid LOGIN_RATE_LIMIT_PER_MINUTE format:", err)
	}

	AppConfig = &Config{
		DBDriver:   strings.ToLower(getVal("DB_DRIVER", "mysql")),
		DBHost:     getVal("DB_HOST", "localhost"),
		DBPort:     getVal("DB_PORT", "3306"),
		DBUser:     getVal("DB_USER", "root"),
		DBPassword: getVal("DB_PASSWORD", ""),
		DBName:     getVal("DB_NAME", "sekolah"),
		SQLitePath: getVal("SQLITE_PATH", "sekolah.db"),

		RedisHost:     getVal("REDIS_HOST", "localhost"),
		RedisPort:     getVal("REDIS_PORT", "6379"),
		RedisPassword: getVal("REDIS_PASSWORD", ""),

		JWTSecret:    getVal("JWT_SECRET", "change_me_session_secret"),
		JWTExpiresIn: jwtExpires,

		LoginThrottleStore:      strings.ToLower(getVal("LOGIN_THROTTLE_STORE", "memory")),
		LoginRateLimitPerMinute: rateLimit,

		AWSRegion:    getVal("AWS_REGION", "ap-southeast-1"),
		S3BucketName: getVal("S3_BUCKET_NAME", ""),

		Port:   getVal("PORT", "3000"),
		AppEnv: getVal("APP_ENV", "development"),

		LogLevel: getVal("LOG_LEVEL", "info"),
		LogFile:  getVal("LOG_FILE", "logs/app.log"),

		LineChannelSecret:      getVal("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken: getVal("LINE_CHANNEL_ACCESS_TOKEN", ""),
		SendgridAPIKey:         getVal("SENDGRID_API_KEY", ""),
		MailFrom:               getVal("MAIL_FROM", "no-reply@sekolah.local"),
		RollbarToken:           getVal("ROLLBAR_TOKEN", ""),

		UseRedisNotifications: strings.ToLower(getVal("USE_REDIS_NOTIFICATIONS", "false")) == "true",
		SkipMigrate:           strings.ToLower(getVal("SKIP_MIGRATE", "false")) == "true",
		SeedData:              strings.ToLower(getVal("SEED_DATA", "false")) == "true",
		SeedPassword:          getVal("SEED_PASSWORD", ""),
		CronEnabled:           strings.ToLower(getVal("CRON_ENABLED", "true")) == "true",
	}

	validateConfig(AppConfig, useSSM)
}

// ParseDuration accepts Go durations plus "d" (days) and "w" (weeks) shorthand.
func ParseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	v := strings.TrimSpace(strings.ToLower(s))
	if len(v) > 1 {
		if n, convErr := strconv.Atoi(v[:len(v)-1]); convErr == nil {
			switch v[len(v)-1] {
			case 'd':
				return time.Duration(n) * 24 * time.Hour, nil
			case 'w':
				return time.Duration(n*7) * 24 * time.Hour, nil
			}
		}
	}
	return 0, err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// fetchSSMParameters reads all parameters under prefix and returns map with UPPERCASE keys.
func fetchSSMParameters(client *ssm.SSM, prefix string) map[string]string {
	out := make(map[string]string)
	var next *string
	for {
		in := &ssm.GetParametersByPathInput{
			Path:           aws.String(prefix),
			WithDecryption: aws.Bool(true),
			Recursive:      aws.Bool(true),
			NextToken:      next,
		}
		resp, err := client.GetParametersByPath(in)
		if err != nil {
			log.Printf("Warning: unable to fetch SSM parameters for prefix %s: %v", prefix, err)
			break
		}
		for _, p := range resp.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			name := *p.Name
			key := name[strings.LastIndex(name, "/")+1:]
			if key == "" {
				continue
			}
			out[strings.ToUpper(key)] = *p.Value
		}
		if resp.NextToken == nil || *resp.NextToken == "" {
			break
		}
		next = resp.NextToken
	}
	return out
}

func validateConfig(c *Config, usedSSM bool) {
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		log.Fatalf("Unsupported DB_DRIVER %q (mysql or sqlite)", c.DBDriver)
	}
	switch c.LoginThrottleStore {
	case "memory", "redis":
	default:
		log.Fatalf("Unsupported LOGIN_THROTTLE_STORE %q (memory or redis)", c.LoginThrottleStore)
	}

	// Only enforce stricter rules in production
	if !c.IsProduction() {
		return
	}
	required := map[string]string{
		"DB_PASSWORD": c.DBPassword,
		"JWT_SECRET":  c.JWTSecret,
	}
	for k, v := range required {
		if strings.TrimSpace(v) == "" {
			log.Fatalf("Missing required secret %s in production (SSM=%v)", k, usedSSM)
		}
	}
	if len(c.JWTSecret) < 16 {
		log.Fatal("JWT_SECRET too short (min 16 chars)")
	}
	if c.DBDriver == "sqlite" {
		log.Fatal("DB_DRIVER=sqlite is not allowed in production")
	}
}
