package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Logger logs only slow or failed requests; the plugin polls often enough
// that logging every success drowns everything else.
func Logger(logger *zap.Logger) fiber.Handler {
	return requestLogger(logger, 500*time.Millisecond, 400)
}

func requestLogger(logger *zap.Logger, slow time.Duration, errorStatusFloor int) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		if status < errorStatusFloor && latency < slow {
			return err
		}

		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		if status >= 500 {
			logger.Error("request", fields...)
		} else {
			logger.Warn("request", fields...)
		}
		return err
	}
}
