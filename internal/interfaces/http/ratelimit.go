package http

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/jhoicas/produccion-api/internal/application/dto"
)

const bucketTTL = 10 * time.Minute

// LoginRateLimit token-bucket por IP: perMinute intentos por minuto con ráfaga del mismo tamaño.
// perMinute <= 0 desactiva el límite.
func LoginRateLimit(perMinute int) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	type bucket struct {
		lim *rate.Limiter
		ts  time.Time
	}
	var (
		mu      sync.Mutex
		buckets = make(map[string]*bucket)
		every   = rate.Every(time.Minute / time.Duration(perMinute))
	)
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		now := time.Now()

		mu.Lock()
		if len(buckets) > 10000 {
			for k, b := range buckets {
				if now.Sub(b.ts) > bucketTTL {
					delete(buckets, k)
				}
			}
		}
		b, ok := buckets[ip]
		if !ok {
			b = &bucket{lim: rate.NewLimiter(every, perMinute)}
			buckets[ip] = b
		}
		b.ts = now
		allowed := b.lim.AllowN(now, 1)
		mu.Unlock()

		if !allowed {
			c.Set(fiber.HeaderRetryAfter, "60")
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{Code: "RATE_LIMITED", Message: "demasiados intentos, espere un momento"})
		}
		return c.Next()
	}
}
