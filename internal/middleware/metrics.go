package middleware

import (
	"time"

	"storefront/internal/metrics"

	"github.com/gofiber/fiber/v2"
)

// Prometheus records the count and latency of every request by route pattern.
func Prometheus(m *metrics.HTTPMetrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		// Unmatched requests keep the path of this middleware, so raw URLs never become labels.
		m.Observe(c.Method(), c.Route().Path, status, time.Since(start))
		return err
	}
}
