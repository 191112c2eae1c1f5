package security

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/markbates/goth/gothic"

	"github.com/colsign/colsign-go/internal/errors"
)

// SignIn stores the authenticated profile and a fresh access token in the
// session cookie. The returned token can also be used as a bearer token by
// API clients.
func (s *OAuth2Server) SignIn(c echo.Context, profile Profile) (string, error) {
	token, err := s.GenerateAccessToken()
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryAuth).
			Context("operation", "sign-in").
			Build()
	}

	pairs := map[string]string{
		SessionKeyUserID:      profile.UserID,
		SessionKeyRoleID:      strconv.Itoa(profile.RoleID),
		SessionKeyEmail:       profile.Email,
		SessionKeyDisplayName: profile.DisplayName,
		SessionKeyAccessToken: token,
	}
	for key, value := range pairs {
		if err := gothic.StoreInSession(key, value, c.Request(), c.Response()); err != nil {
			return "", errors.New(err).
				Category(errors.CategoryAuth).
				Context("operation", "store-session").
				Context("key", key).
				Build()
		}
	}

	securityLogger.Info("User signed in", "user_id", profile.UserID, "role_id", profile.RoleID)
	return token, nil
}

// SignOut revokes the session's access token and clears the session cookie.
func (s *OAuth2Server) SignOut(c echo.Context) error {
	if token, err := gothic.GetFromSession(SessionKeyAccessToken, c.Request()); err == nil && token != "" {
		s.RevokeAccessToken(token)
	}
	if err := gothic.Logout(c.Response(), c.Request()); err != nil {
		return errors.New(err).
			Category(errors.CategoryAuth).
			Context("operation", "sign-out").
			Build()
	}
	return nil
}

// CurrentProfile reads the signed-in profile from the session. It fails when
// the session carries no user id or a role id that does not parse, so a
// malformed session never passes authorization.
func (s *OAuth2Server) CurrentProfile(c echo.Context) (Profile, error) {
	userID, err := gothic.GetFromSession(SessionKeyUserID, c.Request())
	if err != nil || userID == "" {
		return Profile{}, errors.Newf("no signed-in user in session").
			Category(errors.CategoryAuth).
			Context("operation", "current-profile").
			Build()
	}

	roleRaw, err := gothic.GetFromSession(SessionKeyRoleID, c.Request())
	if err != nil {
		return Profile{}, errors.Newf("session has no role").
			Category(errors.CategoryAuth).
			Context("operation", "current-profile").
			Build()
	}
	roleID, err := strconv.Atoi(roleRaw)
	if err != nil {
		return Profile{}, errors.New(err).
			Category(errors.CategoryAuth).
			Context("operation", "parse-session-role").
			Build()
	}

	email, _ := gothic.GetFromSession(SessionKeyEmail, c.Request())
	displayName, _ := gothic.GetFromSession(SessionKeyDisplayName, c.Request())

	return Profile{
		UserID:      userID,
		RoleID:      roleID,
		Email:       email,
		DisplayName: displayName,
	}, nil
}

// IsUserAuthenticated checks if the request carries a signed-in session or a
// valid bearer token.
func (s *OAuth2Server) IsUserAuthenticated(c echo.Context) bool {
	if token, err := gothic.GetFromSession(SessionKeyAccessToken, c.Request()); err == nil && token != "" {
		if s.ValidateAccessToken(token) {
			return true
		}
		securityLogger.Warn("Invalid or expired access_token found in session", "client_ip", c.RealIP())
	}

	_, err := s.CurrentProfile(c)
	return err == nil
}
