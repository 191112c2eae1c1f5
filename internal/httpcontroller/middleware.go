package httpcontroller

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AuthMiddleware authenticates a request either by the bearer token issued
// at login or by the session cookie. It carries no role information, so it
// guards resources any signed-in account may reach.
func (s *Server) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token := bearerToken(c.Request()); token != "" {
				if s.OAuth2Server.ValidateAccessToken(token) {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			if s.OAuth2Server.IsUserAuthenticated(c) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
	}
}

func bearerToken(req *http.Request) string {
	header := req.Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
