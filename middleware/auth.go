package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"sekolah_go/config"
	"sekolah_go/database"
	"sekolah_go/models"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

const (
	msgMustLogin    = "must log in"
	msgAccessDenied = "access denied"

	blacklistPrefix = "blacklist:jwt:"
)

type Claims struct {
	UserID uint        `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a new JWT token for a user
func GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(config.AppConfig.JWTExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

// ParseToken validates the signature and expiry of a token string
func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// BlacklistToken stores the token in Redis until it would have expired anyway
func BlacklistToken(ctx context.Context, tokenString string, claims *Claims) error {
	rdb := database.GetRedisClient()
	if rdb == nil {
		return errors.New("redis unavailable")
	}
	ttl := time.Hour
	if claims != nil && claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return rdb.Set(ctx, blacklistPrefix+tokenString, "1", ttl).Err()
}

func isBlacklisted(ctx context.Context, tokenString string) bool {
	rdb := database.GetRedisClient()
	if rdb == nil {
		return false
	}
	n, err := rdb.Exists(ctx, blacklistPrefix+tokenString).Result()
	if err != nil {
		logrus.WithError(err).Warn("jwt blacklist lookup failed")
		return false
	}
	return n > 0
}

// BearerToken extracts the token from the Authorization header, falling
// back to the token query parameter used by websocket clients.
func BearerToken(c *fiber.Ctx) string {
	if h := c.Get("Authorization"); h != "" {
		if tok := strings.TrimPrefix(h, "Bearer "); tok != h {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return c.Query("token")
}

// JWTMiddleware validates JWT tokens
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := BearerToken(c)
		if tokenString == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, msgMustLogin)
		}

		claims, err := ParseToken(tokenString)
		if err != nil {
			return utils.Fail(c, fiber.StatusUnauthorized, msgMustLogin)
		}
		if isBlacklisted(c.UserContext(), tokenString) {
			return utils.Fail(c, fiber.StatusUnauthorized, msgMustLogin)
		}

		// Verify user still exists and is active
		var user models.User
		if err := database.DB.Where("id = ? AND status = ?", claims.UserID, models.StatusActive).First(&user).Error; err != nil {
			return utils.Fail(c, fiber.StatusUnauthorized, msgMustLogin)
		}
		// role changes invalidate older tokens
		if user.Role != claims.Role {
			return utils.Fail(c, fiber.StatusUnauthorized, msgMustLogin)
		}

		c.Locals("user", &user)
		c.Locals("claims", claims)
		c.Locals("token", tokenString)

		return c.Next()
	}
}

// RequireRole middleware checks if user has required role
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := GetCurrentUser(c)
		if err != nil {
			return utils.Fail(c, fiber.StatusUnauthorized, msgMustLogin)
		}
		for _, role := range roles {
			if user.Role == role {
				return c.Next()
			}
		}
		return utils.Fail(c, fiber.StatusForbidden, msgAccessDenied)
	}
}

// GetCurrentUser returns the current authenticated user
func GetCurrentUser(c *fiber.Ctx) (*models.User, error) {
	user, ok := c.Locals("user").(*models.User)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "User not found in context")
	}
	return user, nil
}

// GetCurrentClaims returns the current JWT claims
func GetCurrentClaims(c *fiber.Ctx) (*Claims, error) {
	claims, ok := c.Locals("claims").(*Claims)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Claims not found in context")
	}
	return claims, nil
}

// CurrentUserID is GetCurrentUser for handlers that only need the id.
// Routes are always behind JWTMiddleware so a missing user yields 0.
func CurrentUserID(c *fiber.Ctx) uint {
	if u, err := GetCurrentUser(c); err == nil {
		return u.ID
	}
	return 0
}
