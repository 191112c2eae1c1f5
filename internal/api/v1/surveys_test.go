package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/colsign/colsign-go/internal/datastore"
)

func TestCreateSurveyResponse(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	var saved *datastore.SurveyResponse
	mockDS.On("SaveSurveyResponse", mock.AnythingOfType("*datastore.SurveyResponse")).Run(func(args mock.Arguments) {
		saved = args.Get(0).(*datastore.SurveyResponse)
		saved.ID = 3
	}).Return(nil)
	c := newTestController(t, mockDS)

	ctx, rec := newTestContext(c, jsonRequest(http.MethodPost, "/api/v1/surveys",
		`{"answer1":"muy util","answer2":"facil de usar","answer3":"mas senas por favor",`+
			`"answer4":"la camara tarda","answer5":"si la recomendaria"}`))
	asProfile(ctx, "7", c.Settings.Security.Roles.Contributor)
	require.NoError(t, c.CreateSurveyResponse(ctx))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp SurveyResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint(3), resp.ID)
	assert.Equal(t, uint(7), resp.UserID)
	assert.Equal(t, "muy util", resp.Answer1)

	require.NotNil(t, saved)
	assert.Equal(t, uint(7), saved.UserID)
}

func TestCreateSurveyResponseRequiresEveryAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"all blank", `{"answer1":"  "}`},
		{"partial answers", `{"answer1":"muy util","answer3":"mas senas por favor"}`},
		{"one whitespace answer", `{"answer1":"a","answer2":"b","answer3":"c","answer4":" ","answer5":"e"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mockDS := new(MockDataStore)
			c := newTestController(t, mockDS)

			ctx, rec := newTestContext(c, jsonRequest(http.MethodPost, "/api/v1/surveys", tt.body))
			asProfile(ctx, "7", c.Settings.Security.Roles.Contributor)
			require.NoError(t, c.CreateSurveyResponse(ctx))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			mockDS.AssertNotCalled(t, "SaveSurveyResponse", mock.Anything)
		})
	}
}

func TestCreateSurveyResponseRequiresProfile(t *testing.T) {
	t.Parallel()
	c := newTestController(t, new(MockDataStore))

	ctx, rec := newTestContext(c, jsonRequest(http.MethodPost, "/api/v1/surveys", `{"answer1":"hola"}`))
	require.NoError(t, c.CreateSurveyResponse(ctx))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListSurveyResponses(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	mockDS.On("GetSurveyResponses", 50, 0).Return([]datastore.SurveyResponse{
		{ID: 2, UserID: 7, Answer1: "bien"},
		{ID: 1, UserID: 8, Answer1: "regular"},
	}, nil)
	c := newTestController(t, mockDS)

	ctx, rec := newTestContext(c, httptest.NewRequest(http.MethodGet, "/api/v1/surveys", http.NoBody))
	require.NoError(t, c.ListSurveyResponses(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var responses []SurveyResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &responses))
	require.Len(t, responses, 2)
	assert.Equal(t, uint(2), responses[0].ID)
}
