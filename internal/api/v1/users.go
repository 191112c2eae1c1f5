package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/colsign/colsign-go/internal/conf"
	"github.com/colsign/colsign-go/internal/datastore"
	"github.com/colsign/colsign-go/internal/errors"
)

// initUserRoutes registers the account profile endpoints
func (c *Controller) initUserRoutes() {
	userGroup := c.Group.Group("/users")

	userGroup.GET("/data", c.GetUserData, c.RequireAuth())
	userGroup.POST("/data", c.UpdateUserData, c.RequireAuth())
	userGroup.PUT("/role", c.UpdateUserRole, c.RequireAdmin())
}

// ProfileUpdateRequest carries the editable profile fields.
type ProfileUpdateRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	LevelID   int    `json:"level_id"`
}

// RoleUpdateRequest changes the role of an account.
type RoleUpdateRequest struct {
	UserID uint `json:"user_id"`
	RoleID int  `json:"role_id"`
}

// ProfileDataResponse is the profile-data read view. The numeric ids are
// rendered as strings, a JSON-safety convention the public API has always
// used, so consumers keep parsing them as text.
type ProfileDataResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	LevelID   string `json:"level_id"`
	RoleID    string `json:"role_id"`
}

func profileDataFrom(user *datastore.User) ProfileDataResponse {
	return ProfileDataResponse{
		ID:        strconv.FormatUint(uint64(user.ID), 10),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		LevelID:   strconv.Itoa(user.LevelID),
		RoleID:    strconv.Itoa(user.RoleID),
	}
}

// GetUserData returns one account's profile row by the required id query
// parameter. Non-admins may read only their own row.
func (c *Controller) GetUserData(ctx echo.Context) error {
	profile, ok := currentProfile(ctx)
	if !ok {
		return c.HandleError(ctx, nil, "Authentication required", http.StatusUnauthorized)
	}

	id := ctx.QueryParam("id")
	if id == "" {
		return c.HandleError(ctx, nil, "Missing id parameter", http.StatusBadRequest)
	}
	if id != profile.UserID && profile.RoleID != c.Settings.Security.Roles.Admin {
		return c.HandleError(ctx, nil, "Access denied", http.StatusForbidden)
	}

	user, err := c.DS.GetUser(id)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return c.HandleError(ctx, nil, "Account not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Database Error: failed to load account", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, profileDataFrom(&user))
}

// UpdateUserData updates the signed-in account's profile fields.
func (c *Controller) UpdateUserData(ctx echo.Context) error {
	profile, ok := currentProfile(ctx)
	if !ok {
		return c.HandleError(ctx, nil, "Authentication required", http.StatusUnauthorized)
	}

	var req ProfileUpdateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.LevelID < conf.MinProficiencyLevel || req.LevelID > conf.MaxProficiencyLevel {
		return c.HandleError(ctx, nil, "Proficiency level is out of range", http.StatusBadRequest)
	}

	user, err := c.DS.UpdateUserProfile(profile.UserID, req.FirstName, req.LastName, req.LevelID)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return c.HandleError(ctx, nil, "Account not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Database Error: failed to update profile", http.StatusInternalServerError)
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "Profile updated", "user_id", user.ID)
	return ctx.JSON(http.StatusOK, userResponseFrom(&user))
}

// UpdateUserRole changes an account's role. Reviewer only.
func (c *Controller) UpdateUserRole(ctx echo.Context) error {
	var req RoleUpdateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.UserID == 0 {
		return c.HandleError(ctx, nil, "A user id is required", http.StatusBadRequest)
	}

	roles := c.Settings.Security.Roles
	if req.RoleID != roles.Admin && req.RoleID != roles.Contributor && req.RoleID != roles.Blocked {
		return c.HandleError(ctx, nil, "Unknown role id", http.StatusBadRequest)
	}

	user, err := c.DS.UpdateUserRole(strconv.FormatUint(uint64(req.UserID), 10), req.RoleID)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return c.HandleError(ctx, nil, "Account not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Database Error: failed to update role", http.StatusInternalServerError)
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "Role updated", "user_id", user.ID, "role_id", user.RoleID)
	return ctx.JSON(http.StatusOK, userResponseFrom(&user))
}
