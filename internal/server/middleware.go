package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/reflectd-dev/reflectd/internal/auth"
)

// userIDKey is the echo context key holding the authenticated user.
const userIDKey = "authenticated_user_id"

// authMiddleware verifies the bearer token and stores the user id in the
// request context.
func (s *Server) authMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := s.auth.Verify(token)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(userIDKey, claims.UserID)
			return next(c)
		}
	}
}

// currentUserID returns the authenticated user id set by authMiddleware.
func currentUserID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}
