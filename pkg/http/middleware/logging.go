package middleware

import (
	"time"

	"SigCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging emits one structured line per request.
func RequestLogging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)

			log.Info("http request",
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.String("remote", c.RealIP()),
				logger.Int("status", c.Response().Status),
				logger.Duration("duration", time.Since(start)))
			return err
		}
	}
}
