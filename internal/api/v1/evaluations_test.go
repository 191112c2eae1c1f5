package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/colsign/colsign-go/internal/datastore"
	"github.com/colsign/colsign-go/internal/prediction"
)

// withRecognition wires a prediction client backed by httpmock into the
// controller.
func withRecognition(t *testing.T, c *Controller) {
	t.Helper()

	c.Settings.Prediction.Enabled = true
	c.Settings.Prediction.BaseURL = "http://recognizer.local"
	c.Settings.Prediction.WordsModel = "words_v2"

	client := prediction.NewClient(c.Settings)
	httpmock.ActivateNonDefault(client.HTTPClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	c.predictor = client
}

func TestCreateEvaluationStoresPrediction(t *testing.T) {
	mockDS := new(MockDataStore)
	mockDS.On("GetSubmission", "21").Return(datastore.Submission{
		ID: 21, Label: "hola", SignID: 1, UserID: 7, UserLevelID: 2,
		Type: "Palabra", VideoPath: "/media/sign_data_videos/hola_x.mp4",
	}, nil)

	var savedEval *datastore.Evaluation
	mockDS.On("SaveEvaluation", mock.AnythingOfType("*datastore.Evaluation")).Run(func(args mock.Arguments) {
		savedEval = args.Get(0).(*datastore.Evaluation)
		savedEval.ID = 5
	}).Return(nil)

	c := newTestController(t, mockDS)
	withRecognition(t, c)

	httpmock.RegisterResponder(http.MethodPost,
		"http://recognizer.local/predict_recognition_video_words_v2",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"prediction":    "hola",
			"probabilities": []float64{0.91, 0.06, 0.03},
		}))

	ctx, rec := newTestContext(c, jsonRequest(http.MethodPost, "/api/v1/evaluations", `{"submission_id":21}`))
	asProfile(ctx, "7", c.Settings.Security.Roles.Contributor)
	require.NoError(t, c.CreateEvaluation(ctx))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp EvaluationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hola", resp.Prediction)
	assert.True(t, resp.Correct)
	assert.Equal(t, "words_v2", resp.Model)
	assert.Equal(t, prediction.TypeExtractPoseHands, resp.TypeExtract)
	assert.Len(t, resp.Probabilities, 3)

	require.NotNil(t, savedEval)
	assert.Equal(t, uint(21), savedEval.SubmissionID)
	assert.False(t, savedEval.EvaluatedAt.IsZero())
}

func TestCreateEvaluationServiceFailure(t *testing.T) {
	mockDS := new(MockDataStore)
	mockDS.On("GetSubmission", "21").Return(datastore.Submission{ID: 21, Label: "hola"}, nil)

	c := newTestController(t, mockDS)
	withRecognition(t, c)

	httpmock.RegisterResponder(http.MethodPost,
		"http://recognizer.local/predict_recognition_video_words_v2",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	ctx, rec := newTestContext(c, jsonRequest(http.MethodPost, "/api/v1/evaluations", `{"submission_id":21}`))
	asProfile(ctx, "7", c.Settings.Security.Roles.Contributor)
	require.NoError(t, c.CreateEvaluation(ctx))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	mockDS.AssertNotCalled(t, "SaveEvaluation", mock.Anything)
}

func TestCreateEvaluationWithoutRecognizer(t *testing.T) {
	t.Parallel()
	c := newTestController(t, new(MockDataStore))

	ctx, rec := newTestContext(c, jsonRequest(http.MethodPost, "/api/v1/evaluations", `{"submission_id":21}`))
	require.NoError(t, c.CreateEvaluation(ctx))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListEvaluationsClampsPaging(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	mockDS.On("GetEvaluations", 50, 0).Return([]datastore.Evaluation{
		{ID: 1, Label: "hola", Prediction: "adios"},
	}, nil)
	c := newTestController(t, mockDS)

	ctx, rec := newTestContext(c, httptest.NewRequest(http.MethodGet, "/api/v1/evaluations?limit=9999&offset=-3", http.NoBody))
	require.NoError(t, c.ListEvaluations(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var evals []EvaluationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &evals))
	require.Len(t, evals, 1)
	assert.False(t, evals[0].Correct)
	mockDS.AssertExpectations(t)
}

func TestGetSubmissionEvaluations(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	mockDS.On("GetEvaluationsForSubmission", uint(21)).Return([]datastore.Evaluation{
		{ID: 1, SubmissionID: 21, Label: "hola", Prediction: "hola"},
		{ID: 2, SubmissionID: 21, Label: "hola", Prediction: "adios"},
	}, nil)
	c := newTestController(t, mockDS)

	ctx, rec := newTestContext(c, httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/submission/21", http.NoBody))
	ctx.SetParamNames("id")
	ctx.SetParamValues("21")
	require.NoError(t, c.GetSubmissionEvaluations(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var evals []EvaluationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &evals))
	require.Len(t, evals, 2)
	assert.True(t, evals[0].Correct)
	assert.False(t, evals[1].Correct)
}
