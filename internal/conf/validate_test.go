package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSettings() *Settings {
	s := &Settings{}
	s.WebServer.Enabled = true
	s.WebServer.Port = "8080"
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "colsign.db"
	s.Media.Export.Path = "media/"
	s.Capture.CharacterSeconds = 3
	s.Capture.WordSeconds = 3
	s.Capture.PhraseSeconds = 5
	s.Capture.SessionTTL = 10 * time.Minute
	s.Review.PageSize = 3
	s.Security.Roles = RoleSettings{Admin: 1, Contributor: 2, Blocked: 3}
	return s
}

func TestValidateSettings(t *testing.T) {
	t.Run("valid settings pass", func(t *testing.T) {
		assert.NoError(t, ValidateSettings(validSettings()))
	})

	t.Run("both databases enabled", func(t *testing.T) {
		s := validSettings()
		s.Output.MySQL.Enabled = true
		assert.Error(t, ValidateSettings(s))
	})

	t.Run("no database enabled", func(t *testing.T) {
		s := validSettings()
		s.Output.SQLite.Enabled = false
		assert.Error(t, ValidateSettings(s))
	})

	t.Run("duplicate role ids", func(t *testing.T) {
		s := validSettings()
		s.Security.Roles.Blocked = s.Security.Roles.Admin
		assert.Error(t, ValidateSettings(s))
	})

	t.Run("prediction enabled without base url", func(t *testing.T) {
		s := validSettings()
		s.Prediction.Enabled = true
		assert.Error(t, ValidateSettings(s))
	})

	t.Run("google auth requires host", func(t *testing.T) {
		s := validSettings()
		s.Security.GoogleAuth = SocialProvider{Enabled: true, ClientID: "id", ClientSecret: "secret"}
		assert.Error(t, ValidateSettings(s))

		s.Security.Host = "colsign.example.org"
		assert.NoError(t, ValidateSettings(s))
	})

	t.Run("zero capture window", func(t *testing.T) {
		s := validSettings()
		s.Capture.PhraseSeconds = 0
		assert.Error(t, ValidateSettings(s))
	})
}

func TestCaptureWindow(t *testing.T) {
	s := validSettings()

	assert.Equal(t, 3*time.Second, s.CaptureWindow(SignTypeCharacter))
	assert.Equal(t, 3*time.Second, s.CaptureWindow(SignTypeWord))
	assert.Equal(t, 5*time.Second, s.CaptureWindow(SignTypePhrase))
	// Unknown categories fall back to the character window.
	assert.Equal(t, 3*time.Second, s.CaptureWindow("unknown"))
}

func TestSignTypeForID(t *testing.T) {
	assert.Equal(t, SignTypeCharacter, SignTypeForID(1))
	assert.Equal(t, SignTypeWord, SignTypeForID(2))
	assert.Equal(t, SignTypePhrase, SignTypeForID(3))
	assert.Empty(t, SignTypeForID(9))
}
