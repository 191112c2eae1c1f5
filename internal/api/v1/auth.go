package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/colsign/colsign-go/internal/conf"
	"github.com/colsign/colsign-go/internal/datastore"
	"github.com/colsign/colsign-go/internal/errors"
	"github.com/colsign/colsign-go/internal/security"
)

// initAuthRoutes registers the authentication endpoints
func (c *Controller) initAuthRoutes() {
	authGroup := c.Group.Group("/auth")

	authGroup.POST("/register", c.Register)
	authGroup.POST("/login", c.Login)
	authGroup.POST("/logout", c.Logout)
	authGroup.GET("/me", c.Me, c.RequireAuth())

	// social login round trip
	authGroup.GET("/:provider", c.BeginSocialAuth)
	authGroup.GET("/:provider/callback", c.SocialAuthCallback)
}

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	LevelID     int    `json:"level_id"`
}

// LoginRequest is the payload for password login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	RoleID      int    `json:"role_id"`
	LevelID     int    `json:"level_id"`
}

// SessionResponse is returned after a successful login or registration.
type SessionResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func userResponseFrom(user *datastore.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		RoleID:      user.RoleID,
		LevelID:     user.LevelID,
	}
}

// Register creates a new contributor account and signs it in.
func (c *Controller) Register(ctx echo.Context) error {
	var req RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return c.HandleError(ctx, nil, "A valid email is required", http.StatusBadRequest)
	}
	if len(req.Password) < 6 {
		return c.HandleError(ctx, nil, "Password must be at least 6 characters", http.StatusBadRequest)
	}
	if req.LevelID == 0 {
		req.LevelID = conf.MinProficiencyLevel
	}
	if req.LevelID < conf.MinProficiencyLevel || req.LevelID > conf.MaxProficiencyLevel {
		return c.HandleError(ctx, nil, "Proficiency level is out of range", http.StatusBadRequest)
	}

	if _, err := c.DS.GetUserByEmail(req.Email); err == nil {
		return c.HandleError(ctx, nil, "An account with this email already exists", http.StatusConflict)
	} else if !errors.Is(err, datastore.ErrNotFound) {
		return c.HandleError(ctx, err, "Database Error: failed to look up account", http.StatusInternalServerError)
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to process password", http.StatusInternalServerError)
	}

	user := datastore.User{
		Email:        req.Email,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		LevelID:      req.LevelID,
		RoleID:       c.Settings.Security.Roles.Contributor,
	}
	if err := c.DS.CreateUser(&user); err != nil {
		return c.HandleError(ctx, err, "Database Error: failed to create account", http.StatusInternalServerError)
	}

	token, err := c.signInUser(ctx, &user)
	if err != nil {
		return c.HandleError(ctx, err, "Account created but sign-in failed", http.StatusInternalServerError)
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "Account registered", "user_id", user.ID)
	return ctx.JSON(http.StatusCreated, SessionResponse{Token: token, User: userResponseFrom(&user)})
}

// Login authenticates an email/password pair and opens a session.
func (c *Controller) Login(ctx echo.Context) error {
	var req LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	user, err := c.DS.GetUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			// same answer as a bad password, no account probing
			return c.HandleError(ctx, nil, "Invalid email or password", http.StatusUnauthorized)
		}
		return c.HandleError(ctx, err, "Database Error: failed to look up account", http.StatusInternalServerError)
	}

	if user.PasswordHash == "" || !security.CheckPassword(user.PasswordHash, req.Password) {
		return c.HandleError(ctx, nil, "Invalid email or password", http.StatusUnauthorized)
	}

	token, err := c.signInUser(ctx, &user)
	if err != nil {
		return c.HandleError(ctx, err, "Sign-in failed", http.StatusInternalServerError)
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "User logged in", "user_id", user.ID)
	return ctx.JSON(http.StatusOK, SessionResponse{Token: token, User: userResponseFrom(&user)})
}

// Logout ends the session.
func (c *Controller) Logout(ctx echo.Context) error {
	if c.OAuth2 != nil {
		if err := c.OAuth2.SignOut(ctx); err != nil {
			return c.HandleError(ctx, err, "Sign-out failed", http.StatusInternalServerError)
		}
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "signed out"})
}

// Me returns the signed-in account.
func (c *Controller) Me(ctx echo.Context) error {
	profile, ok := currentProfile(ctx)
	if !ok {
		return c.HandleError(ctx, nil, "Authentication required", http.StatusUnauthorized)
	}

	user, err := c.DS.GetUser(profile.UserID)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return c.HandleError(ctx, nil, "Account not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Database Error: failed to load account", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, userResponseFrom(&user))
}

// BeginSocialAuth redirects to the social provider.
func (c *Controller) BeginSocialAuth(ctx echo.Context) error {
	if c.OAuth2 == nil {
		return c.HandleError(ctx, nil, "Social login is not configured", http.StatusNotFound)
	}
	c.OAuth2.BeginAuth(ctx)
	return nil
}

// SocialAuthCallback completes the provider round trip, finds or creates the
// account for the provider email and opens a session.
func (c *Controller) SocialAuthCallback(ctx echo.Context) error {
	if c.OAuth2 == nil {
		return c.HandleError(ctx, nil, "Social login is not configured", http.StatusNotFound)
	}

	gothUser, err := c.OAuth2.CompleteAuth(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Social login failed", http.StatusUnauthorized)
	}

	email := strings.TrimSpace(strings.ToLower(gothUser.Email))
	if email == "" && gothUser.Provider == security.ProviderGoogle {
		email, err = c.OAuth2.FetchGoogleEmail(ctx.Request().Context(), gothUser.AccessToken)
		if err != nil {
			return c.HandleError(ctx, err, "Social login did not provide an email", http.StatusUnauthorized)
		}
		email = strings.TrimSpace(strings.ToLower(email))
	}
	if email == "" {
		return c.HandleError(ctx, nil, "Social login did not provide an email", http.StatusUnauthorized)
	}

	user, err := c.DS.GetUserByEmail(email)
	if err != nil {
		if !errors.Is(err, datastore.ErrNotFound) {
			return c.HandleError(ctx, err, "Database Error: failed to look up account", http.StatusInternalServerError)
		}
		user = datastore.User{
			Email:       email,
			DisplayName: gothUser.Name,
			LevelID:     conf.MinProficiencyLevel,
			RoleID:      c.Settings.Security.Roles.Contributor,
		}
		if err := c.DS.CreateUser(&user); err != nil {
			return c.HandleError(ctx, err, "Database Error: failed to create account", http.StatusInternalServerError)
		}
		c.logAPIRequest(ctx, slog.LevelInfo, "Account created from social login",
			"user_id", user.ID, "provider", gothUser.Provider)
	}

	if _, err := c.signInUser(ctx, &user); err != nil {
		return c.HandleError(ctx, err, "Sign-in failed", http.StatusInternalServerError)
	}

	if wantsHTML(ctx) {
		return ctx.Redirect(http.StatusFound, "/")
	}
	return ctx.JSON(http.StatusOK, userResponseFrom(&user))
}

func (c *Controller) signInUser(ctx echo.Context, user *datastore.User) (string, error) {
	if c.OAuth2 == nil {
		return "", errors.NewStd("authentication is not configured")
	}
	return c.OAuth2.SignIn(ctx, security.Profile{
		UserID:      strconv.FormatUint(uint64(user.ID), 10),
		RoleID:      user.RoleID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	})
}
