package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"SigCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover converts a handler panic into a 500 response. Fan-out workers
// recover on their own; this guards the intake and query surface.
func Recover(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					err, ok := r.(error)
					if !ok {
						err = fmt.Errorf("%v", r)
					}
					log.Error("handler panicked",
						logger.Error(err),
						logger.String("method", c.Request().Method),
						logger.String("path", c.Request().URL.Path),
						logger.String("stack", string(debug.Stack())))
					_ = c.JSON(http.StatusInternalServerError, map[string]interface{}{
						"status":  "error",
						"message": "internal server error",
					})
				}
			}()
			return next(c)
		}
	}
}
