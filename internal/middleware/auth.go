package middleware

import (
	"net/http"
	"strings"

	"farmmarket/internal/model"
	"farmmarket/pkg/jwtutil"
	"farmmarket/pkg/logger"
	"farmmarket/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware validates the JWT token from the Authorization header
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Error("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Error("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Error("Invalid JWT token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		// Store the acting identity for handlers. Authentication happened at
		// token issue time; handlers only check authorization from here on.
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)

		return next(c)
	}
}

// RequireRole restricts a route group to one role.
func RequireRole(role model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			actor, ok := c.Get("role").(model.Role)
			if !ok || actor != role {
				log.Warn("Role check failed",
					zap.String("required", string(role)),
					zap.String("actual", string(actor)))
				prometheus.RecordAuthError("wrong_role")
				return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions"})
			}
			return next(c)
		}
	}
}

// ActingUserID returns the authenticated user's ID from the request context.
func ActingUserID(c echo.Context) uint {
	id, _ := c.Get("user_id").(uint)
	return id
}

// ActingRole returns the authenticated user's role from the request context.
func ActingRole(c echo.Context) model.Role {
	role, _ := c.Get("role").(model.Role)
	return role
}
