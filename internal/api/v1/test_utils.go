package api

import (
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/colsign/colsign-go/internal/capture"
	"github.com/colsign/colsign-go/internal/conf"
	"github.com/colsign/colsign-go/internal/datastore"
	"github.com/colsign/colsign-go/internal/mediastore"
	"github.com/colsign/colsign-go/internal/observability"
	"github.com/colsign/colsign-go/internal/security"
)

// MockDataStore is a testify mock implementing datastore.Interface for
// handler tests that do not need a real database.
type MockDataStore struct {
	mock.Mock
}

func (m *MockDataStore) Open() error  { return m.Called().Error(0) }
func (m *MockDataStore) Close() error { return m.Called().Error(0) }

func (m *MockDataStore) CreateUser(user *datastore.User) error {
	return m.Called(user).Error(0)
}

func (m *MockDataStore) GetUser(id string) (datastore.User, error) {
	args := m.Called(id)
	return args.Get(0).(datastore.User), args.Error(1)
}

func (m *MockDataStore) GetUserByEmail(email string) (datastore.User, error) {
	args := m.Called(email)
	return args.Get(0).(datastore.User), args.Error(1)
}

func (m *MockDataStore) UpdateUserProfile(id, firstName, lastName string, levelID int) (datastore.User, error) {
	args := m.Called(id, firstName, lastName, levelID)
	return args.Get(0).(datastore.User), args.Error(1)
}

func (m *MockDataStore) UpdateUserRole(id string, roleID int) (datastore.User, error) {
	args := m.Called(id, roleID)
	return args.Get(0).(datastore.User), args.Error(1)
}

func (m *MockDataStore) CreateSign(sign *datastore.SignDefinition) error {
	return m.Called(sign).Error(0)
}

func (m *MockDataStore) GetSign(id string) (datastore.SignDefinition, error) {
	args := m.Called(id)
	return args.Get(0).(datastore.SignDefinition), args.Error(1)
}

func (m *MockDataStore) GetSignByName(name string) (datastore.SignDefinition, error) {
	args := m.Called(name)
	return args.Get(0).(datastore.SignDefinition), args.Error(1)
}

func (m *MockDataStore) GetActiveSigns() ([]datastore.SignDefinition, error) {
	args := m.Called()
	return args.Get(0).([]datastore.SignDefinition), args.Error(1)
}

func (m *MockDataStore) GetAllSigns() ([]datastore.SignDefinition, error) {
	args := m.Called()
	return args.Get(0).([]datastore.SignDefinition), args.Error(1)
}

func (m *MockDataStore) UpdateSign(sign *datastore.SignDefinition) error {
	return m.Called(sign).Error(0)
}

func (m *MockDataStore) DeleteSign(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockDataStore) CountSubmissionsForSign(signID uint) (int64, error) {
	args := m.Called(signID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataStore) SaveSubmission(sub *datastore.Submission) error {
	return m.Called(sub).Error(0)
}

func (m *MockDataStore) GetSubmission(id string) (datastore.Submission, error) {
	args := m.Called(id)
	return args.Get(0).(datastore.Submission), args.Error(1)
}

func (m *MockDataStore) SearchUnverified(label string, afterID uint, limit int) ([]datastore.Submission, error) {
	args := m.Called(label, afterID, limit)
	return args.Get(0).([]datastore.Submission), args.Error(1)
}

func (m *MockDataStore) VerifySubmission(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockDataStore) DeleteSubmission(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockDataStore) SaveEvaluation(eval *datastore.Evaluation) error {
	return m.Called(eval).Error(0)
}

func (m *MockDataStore) GetEvaluations(limit, offset int) ([]datastore.Evaluation, error) {
	args := m.Called(limit, offset)
	return args.Get(0).([]datastore.Evaluation), args.Error(1)
}

func (m *MockDataStore) GetEvaluationsForSubmission(submissionID uint) ([]datastore.Evaluation, error) {
	args := m.Called(submissionID)
	return args.Get(0).([]datastore.Evaluation), args.Error(1)
}

func (m *MockDataStore) SaveSurveyResponse(resp *datastore.SurveyResponse) error {
	return m.Called(resp).Error(0)
}

func (m *MockDataStore) GetSurveyResponses(limit, offset int) ([]datastore.SurveyResponse, error) {
	args := m.Called(limit, offset)
	return args.Get(0).([]datastore.SurveyResponse), args.Error(1)
}

// testSettings returns a settings instance suitable for handler tests, with
// all filesystem paths inside the test's temporary directory.
func testSettings(t *testing.T) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Media.Export.Path = t.TempDir()
	settings.Media.MaxUploadSize = 50 * 1024 * 1024
	settings.Capture = conf.CaptureSettings{
		CharacterSeconds: 3,
		WordSeconds:      3,
		PhraseSeconds:    5,
		SessionTTL:       30 * time.Minute,
	}
	settings.Review.PageSize = 3
	settings.Security.SessionSecret = "0123456789abcdef0123456789abcdef"
	settings.Security.SessionDuration = time.Hour
	settings.Security.Roles = conf.RoleSettings{Admin: 1, Contributor: 2, Blocked: 3}
	return settings
}

// newTestController builds a controller with a discard logger and a real
// on-disk media store, without registering routes.
func newTestController(t *testing.T, ds datastore.Interface) *Controller {
	t.Helper()

	settings := testSettings(t)
	media, err := mediastore.New(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = media.Close() })

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	levelVar := new(slog.LevelVar)
	e := echo.New()
	now := time.Now()

	c := &Controller{
		Echo:           e,
		DS:             ds,
		Settings:       settings,
		Media:          media,
		Capture:        capture.NewManager(settings),
		logger:         log.New(io.Discard, "", 0),
		signCache:      cache.New(5*time.Minute, 10*time.Minute),
		startTime:      &now,
		apiLogger:      slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: levelVar})),
		apiLevelVar:    levelVar,
		apiLoggerClose: func() error { return nil },
		metrics:        metrics,
	}
	c.Group = e.Group("/api/v1")
	return c
}

// newTestContext wraps a request in an echo context backed by a response
// recorder.
func newTestContext(c *Controller, req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return c.Echo.NewContext(req, rec), rec
}

// asProfile stores an authenticated profile on the context the way the
// route guard does after a successful check.
func asProfile(ctx echo.Context, userID string, roleID int) {
	ctx.Set(profileContextKey, security.Profile{
		UserID: userID,
		RoleID: roleID,
		Email:  "test@example.com",
	})
}
