package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"8h", 8 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"2d", 48 * time.Hour, false},
		{"1w", 7 * 24 * time.Hour, false},
		{"xd", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetDSN(t *testing.T) {
	c := &Config{DBUser: "root", DBPassword: "pw", DBHost: "db", DBPort: "3306", DBName: "sekolah"}
	assert.Equal(t, "root:pw@tcp(db:3306)/sekolah?charset=utf8mb4&parseTime=True&loc=Local", c.GetDSN())
	assert.False(t, c.IsProduction())
	c.AppEnv = "Production"
	assert.True(t, c.IsProduction())
}
