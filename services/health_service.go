package services

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"sekolah_go/config"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const (
	overallStatusOK       = "ok"
	overallStatusDegraded = "degraded"
	overallStatusCritical = "critical"

	dependencyStatusUp       = "up"
	dependencyStatusDown     = "down"
	dependencyStatusDisabled = "disabled"

	defaultServiceName = "Sekolah API"
	defaultVersion     = "1.0.0"
	defaultTimeout     = 1500 * time.Millisecond
)

// HealthService aggregates application health information for reporting endpoints.
type HealthService struct {
	serviceName string
	version     string
	startTime   time.Time
	timeout     time.Duration
	db          func() *gorm.DB
	redis       func() *redis.Client
	cfg         func() *config.Config
}

// HealthReport represents the JSON response for health endpoints.
type HealthReport struct {
	Status        string             `json:"status"`
	Service       string             `json:"service"`
	Version       string             `json:"version"`
	Environment   string             `json:"environment"`
	Time          time.Time          `json:"time"`
	UptimeSeconds float64            `json:"uptime_seconds"`
	UptimeHuman   string             `json:"uptime_human"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	Goroutines    int                `json:"goroutines"`
	GoVersion     string             `json:"go_version"`
}

// DependencyStatus captures the health of a single external dependency.
type DependencyStatus struct {
	Name      string                 `json:"name"`
	Status    string                 `json:"status"`
	LatencyMs int64                  `json:"latency_ms"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// NewHealthService creates a HealthService. The getters are read on every
// report so reconnects are picked up.
func NewHealthService(serviceName, version string, db func() *gorm.DB, rdb func() *redis.Client) *HealthService {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = defaultServiceName
	}
	if strings.TrimSpace(version) == "" {
		version = defaultVersion
	}
	return &HealthService{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		timeout:     defaultTimeout,
		db:          db,
		redis:       rdb,
		cfg:         func() *config.Config { return config.AppConfig },
	}
}

// SetStartTime overrides the start time used for uptime calculations.
func (s *HealthService) SetStartTime(t time.Time) {
	if !t.IsZero() {
		s.startTime = t
	}
}

// GetHealthReport collects the current health information.
func (s *HealthService) GetHealthReport(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	uptime := time.Since(s.startTime)
	if uptime < 0 {
		uptime = 0
	}
	report := HealthReport{
		Status:        overallStatusOK,
		Service:       s.serviceName,
		Version:       s.version,
		Environment:   s.environment(),
		Time:          time.Now().UTC(),
		UptimeSeconds: uptime.Seconds(),
		UptimeHuman:   humanizeDuration(uptime),
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
	}

	dbDep, dbStatus := s.checkDatabase(ctx)
	redisDep, redisStatus := s.checkRedis(ctx)
	report.Dependencies = []DependencyStatus{dbDep, redisDep}
	report.Status = combineStatus(combineStatus(report.Status, dbStatus), redisStatus)
	return report
}

// HTTPStatusForOverall maps a health status to an HTTP status code.
func (s *HealthService) HTTPStatusForOverall(status string) int {
	if status == overallStatusCritical {
		return 503
	}
	return 200
}

func (s *HealthService) checkDatabase(ctx context.Context) (DependencyStatus, string) {
	dep := DependencyStatus{Name: "database"}
	var db *gorm.DB
	if s.db != nil {
		db = s.db()
	}
	if db == nil {
		dep.Status = dependencyStatusDown
		dep.Error = "database connection not initialised"
		return dep, overallStatusCritical
	}
	sqlDB, err := db.DB()
	if err != nil {
		dep.Status = dependencyStatusDown
		dep.Error = fmt.Sprintf("sql DB handle error: %v", err)
		return dep, overallStatusCritical
	}

	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	start := time.Now()
	err = sqlDB.PingContext(pingCtx)
	cancel()
	dep.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		dep.Status = dependencyStatusDown
		dep.Error = err.Error()
		return dep, overallStatusCritical
	}

	stats := sqlDB.Stats()
	dep.Status = dependencyStatusUp
	dep.Details = map[string]interface{}{
		"driver":               db.Dialector.Name(),
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": stats.MaxOpenConnections,
	}
	return dep, overallStatusOK
}

// redisRequired reports whether a feature depends on Redis being reachable
func (s *HealthService) redisRequired() bool {
	cfg := s.cfg()
	return cfg != nil && (cfg.UseRedisNotifications || cfg.LoginThrottleStore == "redis")
}

func (s *HealthService) checkRedis(ctx context.Context) (DependencyStatus, string) {
	dep := DependencyStatus{Name: "redis"}
	required := s.redisRequired()
	failed := overallStatusOK
	if required {
		failed = overallStatusDegraded
	}

	var client *redis.Client
	if s.redis != nil {
		client = s.redis()
	}
	if client == nil {
		if required {
			dep.Status = dependencyStatusDown
			dep.Error = "redis client not initialised"
		} else {
			dep.Status = dependencyStatusDisabled
		}
		return dep, failed
	}

	pingCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	start := time.Now()
	err := client.Ping(pingCtx).Err()
	cancel()
	dep.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		dep.Status = dependencyStatusDown
		dep.Error = err.Error()
		return dep, failed
	}

	dep.Status = dependencyStatusUp
	dep.Details = map[string]interface{}{"address": client.Options().Addr, "required": required}
	return dep, overallStatusOK
}

func (s *HealthService) environment() string {
	cfg := s.cfg()
	if cfg == nil || strings.TrimSpace(cfg.AppEnv) == "" {
		return "unknown"
	}
	return strings.TrimSpace(cfg.AppEnv)
}

func combineStatus(current, candidate string) string {
	order := map[string]int{
		overallStatusOK:       0,
		overallStatusDegraded: 1,
		overallStatusCritical: 2,
	}
	if _, ok := order[current]; !ok {
		current = overallStatusOK
	}
	if v, ok := order[candidate]; ok && v > order[current] {
		return candidate
	}
	return current
}

func humanizeDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d %= 24 * time.Hour
	hours := d / time.Hour
	d %= time.Hour
	minutes := d / time.Minute
	seconds := (d % time.Minute) / time.Second

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}
