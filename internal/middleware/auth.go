package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"taskhub-service/internal/policy"
	"taskhub-service/pkg/jwtutil"
	"taskhub-service/pkg/logger"
	"taskhub-service/prometheus"
)

const actorKey = "actor"

// Auth validates the bearer token and stores the resulting policy.Actor
// in the context for handlers to consume.
func Auth(signer *jwtutil.Signer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Missing authorization token"})
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				prometheus.RecordAuthError("invalid_auth_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid authorization format, expected Bearer token"})
			}

			claims, err := signer.Validate(parts[1])
			if err != nil {
				log.Debug("Invalid JWT token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid or expired token"})
			}

			c.Set(actorKey, policy.Actor{
				UserID:   claims.UserID,
				TenantID: claims.TenantID,
				Role:     claims.Role,
			})

			return next(c)
		}
	}
}

// ActorFromContext returns the authenticated actor set by Auth. The bool
// is false on routes that skipped the middleware.
func ActorFromContext(c echo.Context) (policy.Actor, bool) {
	actor, ok := c.Get(actorKey).(policy.Actor)
	return actor, ok
}
