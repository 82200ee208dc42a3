package services

import (
	"context"
	"testing"
	"time"

	"sekolah_go/config"
	"sekolah_go/database/dbtest"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestHealthReport(t *testing.T) {
	db := dbtest.Open(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	tests := []struct {
		name   string
		db     *gorm.DB
		rdb    *redis.Client
		cfg    *config.Config
		status string
		code   int
	}{
		{"all up", db, rdb, &config.Config{AppEnv: "test"}, overallStatusOK, 200},
		{"optional redis missing", db, nil, &config.Config{}, overallStatusOK, 200},
		{"required redis missing", db, nil, &config.Config{LoginThrottleStore: "redis"}, overallStatusDegraded, 200},
		{"no database", nil, rdb, &config.Config{}, overallStatusCritical, 503},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			svc := NewHealthService("", "", func() *gorm.DB { return tc.db }, func() *redis.Client { return tc.rdb })
			svc.cfg = func() *config.Config { return tc.cfg }

			report := svc.GetHealthReport(context.Background())
			assert.Equal(t, tc.status, report.Status)
			assert.Equal(t, tc.code, svc.HTTPStatusForOverall(report.Status))
			assert.Len(t, report.Dependencies, 2)
		})
	}
}

func TestHumanizeDuration(t *testing.T) {
	assert.Equal(t, "0s", humanizeDuration(0))
	assert.Equal(t, "1d 2h 3m 4s", humanizeDuration(26*time.Hour+3*time.Minute+4*time.Second))
	assert.Equal(t, "5m", humanizeDuration(5*time.Minute))
}
