package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/colsign/colsign-go/internal/security"
)

// profileContextKey is where the guard stores the authenticated profile for
// downstream handlers.
const profileContextKey = "colsign_profile"

const (
	loginPath        = "/login"
	unauthorizedPath = "/unauthorized"
)

// wantsHTML reports whether the client is a browser navigation rather than
// an API call, in which case guards redirect instead of returning JSON.
func wantsHTML(ctx echo.Context) bool {
	accept := ctx.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMETextHTML)
}

// RequireAuth gates a route to any signed-in, non-blocked user.
func (c *Controller) RequireAuth() echo.MiddlewareFunc {
	return c.requireProfile(func(profile *security.Profile) bool {
		return profile.RoleID != c.Settings.Security.Roles.Blocked
	})
}

// RequireRoles gates a route to the given role ids. A session with a missing
// or malformed profile is treated as unauthenticated; an unknown role is
// denied. The guard never falls open.
func (c *Controller) RequireRoles(roleIDs ...int) echo.MiddlewareFunc {
	return c.requireProfile(func(profile *security.Profile) bool {
		if profile.RoleID == c.Settings.Security.Roles.Blocked {
			return false
		}
		for _, id := range roleIDs {
			if profile.RoleID == id {
				return true
			}
		}
		return false
	})
}

// RequireAdmin gates a route to reviewers.
func (c *Controller) RequireAdmin() echo.MiddlewareFunc {
	return c.RequireRoles(c.Settings.Security.Roles.Admin)
}

// RequireContributor gates a route to contributors and reviewers.
func (c *Controller) RequireContributor() echo.MiddlewareFunc {
	return c.RequireRoles(c.Settings.Security.Roles.Contributor, c.Settings.Security.Roles.Admin)
}

func (c *Controller) requireProfile(allowed func(*security.Profile) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c.OAuth2 == nil {
				return c.HandleError(ctx, nil, "Authentication is not configured", http.StatusUnauthorized)
			}

			profile, err := c.OAuth2.CurrentProfile(ctx)
			if err != nil {
				c.logAPIRequest(ctx, slog.LevelWarn, "Unauthenticated request rejected", "error", err.Error())
				if wantsHTML(ctx) {
					return ctx.Redirect(http.StatusFound, loginPath)
				}
				return c.HandleError(ctx, nil, "Authentication required", http.StatusUnauthorized)
			}

			if !allowed(&profile) {
				c.logAPIRequest(ctx, slog.LevelWarn, "Request rejected for role",
					"user_id", profile.UserID, "role_id", profile.RoleID)
				if wantsHTML(ctx) {
					return ctx.Redirect(http.StatusFound, unauthorizedPath)
				}
				return c.HandleError(ctx, nil, "Insufficient permissions", http.StatusForbidden)
			}

			ctx.Set(profileContextKey, profile)
			return next(ctx)
		}
	}
}

// currentProfile returns the profile the guard stored on the context.
func currentProfile(ctx echo.Context) (security.Profile, bool) {
	profile, ok := ctx.Get(profileContextKey).(security.Profile)
	return profile, ok
}
