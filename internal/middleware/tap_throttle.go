package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Amandasamuel/Toll-with-postgress/internal/logging"
)

const tapWindow = time.Minute

// TapThrottle caps how many mutations a single card may trigger per minute, which
// stops a stuck reader from replaying one tap in a loop. Redis errors fail open.
func TapThrottle(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || maxPerMin <= 0 {
			return c.Next()
		}

		var req struct {
			CardUID  string `json:"card_uid" form:"card_uid"`
			FromCard string `json:"from_card" form:"from_card"`
		}
		_ = c.BodyParser(&req)
		uid := strings.TrimSpace(req.CardUID)
		if uid == "" {
			uid = strings.TrimSpace(req.FromCard)
		}
		if uid == "" {
			return c.Next()
		}

		key := "rl:tap:" + logging.Fingerprint(uid)
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			logger.Warn("tap throttle unavailable", slog.Any("error", err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, tapWindow)
		}
		if cnt > int64(maxPerMin) {
			logger.Warn("tap throttled", logging.Card(uid), slog.Int64("count", cnt))
			return fiber.NewError(http.StatusTooManyRequests, "too many taps for this card, try again later")
		}
		return c.Next()
	}
}
