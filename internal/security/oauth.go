package security

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	gothGoogle "github.com/markbates/goth/providers/google"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/colsign/colsign-go/internal/conf"
)

// AccessToken is a bearer token issued to API clients after login.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// Profile is the signed-in identity carried in the session cookie. RoleID
// drives route authorization, so a session without a parseable role must be
// treated as unauthenticated.
type Profile struct {
	UserID      string
	RoleID      int
	Email       string
	DisplayName string
	Provider    string
}

// OAuth2Server manages login sessions, issued access tokens and the Google
// social login provider.
type OAuth2Server struct {
	Settings     *conf.Settings
	accessTokens map[string]AccessToken
	mutex        sync.RWMutex
	debug        bool

	GoogleConfig *oauth2.Config
}

// For testing purposes
var testConfigPath string

// SetTestConfigPath sets a test path for session storage. It should be
// called before NewOAuth2Server and reset after the test.
func SetTestConfigPath(path string) {
	testConfigPath = path
}

// NewOAuth2Server creates the authentication server from the global
// settings, initializes the session store and providers, and starts the
// periodic token cleanup.
func NewOAuth2Server() *OAuth2Server {
	return NewOAuth2ServerWithSettings(conf.GetSettings())
}

// NewOAuth2ServerWithSettings creates the authentication server from an
// explicit settings instance.
func NewOAuth2ServerWithSettings(settings *conf.Settings) *OAuth2Server {
	securityLogger.Info("Initializing OAuth2 server")

	server := &OAuth2Server{
		Settings:     settings,
		accessTokens: make(map[string]AccessToken),
		debug:        settings.Security.Debug,
	}

	if settings.Security.SessionSecret == "" {
		securityLogger.Error("CRITICAL SECURITY WARNING: SessionSecret is empty. Set a strong, unique secret in configuration for production environments.")
	} else if len(settings.Security.SessionSecret) < MinSessionSecretLength {
		securityLogger.Warn("Security Recommendation: SessionSecret is potentially weak (less than 32 bytes). Consider using a longer, randomly generated secret.")
	}

	if settings.Security.GoogleAuth.Enabled {
		server.GoogleConfig = &oauth2.Config{
			ClientID:     settings.Security.GoogleAuth.ClientID,
			ClientSecret: settings.Security.GoogleAuth.ClientSecret,
			RedirectURL:  googleRedirectURI(settings),
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email"},
			Endpoint:     google.Endpoint,
		}
	}

	InitializeGoth(settings)
	server.StartAuthCleanup(TokenCleanupInterval)

	securityLogger.Info("OAuth2 server initialization complete")
	return server
}

// googleRedirectURI derives the OAuth callback URL from the configured host.
func googleRedirectURI(settings *conf.Settings) string {
	scheme := "http"
	if settings.Security.RedirectToHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/api/v1/auth/google/callback", scheme, settings.Security.Host)
}

// InitializeGoth initializes social authentication providers.
func InitializeGoth(settings *conf.Settings) {
	var sessionPath string

	if testConfigPath != "" {
		sessionPath = filepath.Join(testConfigPath, "sessions")
	} else {
		configPaths, err := conf.GetDefaultConfigPaths()
		if err != nil {
			securityLogger.Warn("Failed to get config paths for session store, using in-memory cookie store", "error", err)
			gothic.Store = sessions.NewCookieStore(createSessionKey(settings.Security.SessionSecret))
			initProviders(settings)
			return
		}
		sessionPath = filepath.Join(configPaths[0], "sessions")
	}

	if err := os.MkdirAll(sessionPath, 0o755); err != nil {
		securityLogger.Error("Failed to create session directory, falling back to in-memory cookie store", "path", sessionPath, "error", err)
		gothic.Store = sessions.NewCookieStore(createSessionKey(settings.Security.SessionSecret))
	} else {
		authKey := createSessionKey(settings.Security.SessionSecret)
		encKey := createSessionKey(settings.Security.SessionSecret + "encryption")

		store := sessions.NewFilesystemStore(sessionPath, authKey, encKey)
		store.Options = &sessions.Options{
			Path:     "/",
			MaxAge:   int(settings.Security.SessionDuration.Seconds()),
			HttpOnly: true,
			Secure:   settings.Security.RedirectToHTTPS,
			SameSite: http.SameSiteLaxMode,
		}
		store.MaxLength(MaxSessionSizeBytes)
		gothic.Store = store
	}

	initProviders(settings)
}

func initProviders(settings *conf.Settings) {
	providers := make([]goth.Provider, 0, 1)
	if settings.Security.GoogleAuth.Enabled && settings.Security.GoogleAuth.ClientID != "" && settings.Security.GoogleAuth.ClientSecret != "" {
		googleProvider := gothGoogle.New(
			settings.Security.GoogleAuth.ClientID,
			settings.Security.GoogleAuth.ClientSecret,
			googleRedirectURI(settings),
			"https://www.googleapis.com/auth/userinfo.email",
		)
		googleProvider.SetAccessType("offline")
		providers = append(providers, googleProvider)
	}

	if len(providers) > 0 {
		goth.UseProviders(providers...)
		securityLogger.Info("Goth providers initialized", "count", len(providers))
	} else {
		securityLogger.Warn("No Goth providers enabled or configured")
	}
}

// createSessionKey creates a key of the proper length for AES encryption from a seed string
// AES requires keys of exactly 16, 24, or 32 bytes
func createSessionKey(seed string) []byte {
	hasher := sha256.New()
	hasher.Write([]byte(seed))
	return hasher.Sum(nil)
}

// UpdateProviders re-initializes the providers after a settings change.
func (s *OAuth2Server) UpdateProviders() {
	InitializeGoth(s.Settings)
}

// BeginAuth redirects to the social provider named in the request.
func (s *OAuth2Server) BeginAuth(c echo.Context) {
	gothic.BeginAuthHandler(c.Response(), c.Request())
}

// CompleteAuth finishes the social login round trip and returns the
// provider's view of the user.
func (s *OAuth2Server) CompleteAuth(c echo.Context) (goth.User, error) {
	return gothic.CompleteUserAuth(c.Response(), c.Request())
}

// FetchGoogleEmail retrieves the account email through the userinfo endpoint
// when the provider response did not carry one.
func (s *OAuth2Server) FetchGoogleEmail(ctx context.Context, accessToken string) (string, error) {
	if s.GoogleConfig == nil {
		return "", errors.New("google auth is not configured")
	}

	client := s.GoogleConfig.Client(ctx, &oauth2.Token{AccessToken: accessToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, GoogleUserInfoURL, http.NoBody)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("userinfo request failed with status %d: %s", resp.StatusCode, body)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decoding userinfo response: %w", err)
	}
	if info.Email == "" {
		return "", errors.New("userinfo response did not include an email")
	}
	return info.Email, nil
}

// GenerateAccessToken issues a new bearer token that expires after the
// configured session duration.
func (s *OAuth2Server) GenerateAccessToken() (string, error) {
	tokenBytes := make([]byte, AccessTokenByteLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		securityLogger.Error("Failed to read random bytes for access token", "error", err)
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)
	expiresAt := time.Now().Add(s.Settings.Security.SessionDuration)

	s.mutex.Lock()
	s.accessTokens[token] = AccessToken{Token: token, ExpiresAt: expiresAt}
	s.mutex.Unlock()

	// Do not log the token itself
	securityLogger.Info("Issued new access token", "expires_at", expiresAt)
	return token, nil
}

// ValidateAccessToken checks if an access token is valid
func (s *OAuth2Server) ValidateAccessToken(token string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	accessToken, ok := s.accessTokens[token]
	if !ok {
		return false
	}
	if time.Now().After(accessToken.ExpiresAt) {
		// cleanup routine removes it later
		return false
	}
	return true
}

// RevokeAccessToken drops a token at logout.
func (s *OAuth2Server) RevokeAccessToken(token string) {
	s.mutex.Lock()
	delete(s.accessTokens, token)
	s.mutex.Unlock()
}

// StartAuthCleanup starts a background goroutine to clean up expired tokens
func (s *OAuth2Server) StartAuthCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			s.cleanupExpired()
		}
	}()
}

// cleanupExpired removes expired access tokens
func (s *OAuth2Server) cleanupExpired() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	removed := 0
	for token, accessToken := range s.accessTokens {
		if now.After(accessToken.ExpiresAt) {
			delete(s.accessTokens, token)
			removed++
		}
	}
	if removed > 0 && s.debug {
		securityLogger.Debug("Cleaned up expired access tokens", "removed", removed)
	}
}
