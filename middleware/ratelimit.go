package middleware

import (
	"time"

	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// LoginRateLimiter caps login and registration attempts per IP. It sits in
// front of the per-account throttle in the auth controller.
func LoginRateLimiter(perMinute int) fiber.Handler {
	if perMinute <= 0 {
		perMinute = 30
	}
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, "60")
			return utils.Fail(c, fiber.StatusTooManyRequests, "too many requests, try again later")
		},
	})
}
