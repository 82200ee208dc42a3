package routes

import (
	"net/http/httptest"
	"testing"
	"time"

	"sekolah_go/config"
	"sekolah_go/database"
	"sekolah_go/database/dbtest"
	"sekolah_go/middleware"
	"sekolah_go/models"
	"sekolah_go/services/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleGroups(t *testing.T) {
	prevCfg, prevRedis := config.AppConfig, database.RedisClient
	config.AppConfig = &config.Config{JWTSecret: "test-secret", JWTExpiresIn: time.Hour, LoginRateLimitPerMinute: 100}
	database.RedisClient = nil
	t.Cleanup(func() {
		config.AppConfig = prevCfg
		database.RedisClient = prevRedis
	})
	db := dbtest.UseGlobal(t)

	app := fiber.New()
	SetupRoutes(app, Deps{Hub: websocket.NewHub()})

	tokens := map[models.Role]string{}
	for _, role := range models.Roles {
		u := dbtest.CreateUser(t, db, string(role), role, "")
		tok, err := middleware.GenerateToken(&u)
		require.NoError(t, err)
		tokens[role] = tok
	}

	tests := []struct {
		path    string
		allowed models.Role
	}{
		{"/api/headmaster/overview", models.RoleHeadmaster},
		{"/api/teacher/dashboard/stats", models.RoleTeacher},
		{"/api/student/dashboard/stats", models.RoleStudent},
	}
	for _, tt := range tests {
		for _, role := range models.Roles {
			t.Run(tt.path+" as "+string(role), func(t *testing.T) {
				req := httptest.NewRequest("GET", tt.path, nil)
				req.Header.Set("Authorization", "Bearer "+tokens[role])
				resp, err := app.Test(req, -1)
				require.NoError(t, err)
				if role == tt.allowed {
					assert.Equal(t, fiber.StatusOK, resp.StatusCode)
				} else {
					assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
				}
			})
		}
	}

	t.Run("public class list", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/auth/classes", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("websocket needs an upgrade", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/ws", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
	})
}
