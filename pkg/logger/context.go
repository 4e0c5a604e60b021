package logger

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const contextKey = "logger"

// FromContext retrieves the request-scoped logger set by Middleware.
// Falls back to a no-op logger so handlers can log unconditionally.
func FromContext(c echo.Context) *zap.Logger {
	if l, ok := c.Get(contextKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
