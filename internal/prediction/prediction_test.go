package prediction

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colsign/colsign-go/internal/conf"
	"github.com/colsign/colsign-go/internal/errors"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	settings := &conf.Settings{}
	settings.Prediction.BaseURL = "http://model.test"
	settings.Prediction.Timeout = 5 * time.Second
	settings.Prediction.WordsModel = "words_v2"

	client := NewClient(settings)
	httpmock.ActivateNonDefault(client.HTTPClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestPredict(t *testing.T) {
	client := newTestClient(t)

	var captured Request
	httpmock.RegisterResponder(http.MethodPost, "http://model.test/predict_recognition_video_words_v2",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&captured))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"prediction":    "hola",
				"probabilities": []float64{0.91, 0.06, 0.03},
			})
		})

	resp, err := client.Predict(context.Background(), &Request{
		RecordedVideoDocID: "42",
		URLVideo:           "http://colsign.test/media/sign_data_videos/hola_abc.mp4",
		SignName:           "hola",
		SignID:             "10",
		SignType:           conf.SignTypeWord,
		UserID:             "7",
		UserLevelID:        2,
	})
	require.NoError(t, err)

	assert.Equal(t, "hola", resp.Prediction)
	assert.Len(t, resp.Probabilities, 3)

	// extraction mode and timestamp are filled in when omitted
	assert.Equal(t, TypeExtractPoseHands, captured.TypeExtract)
	assert.NotEmpty(t, captured.Timestamp)
	assert.Equal(t, "42", captured.RecordedVideoDocID)
	assert.Equal(t, "http://colsign.test/media/sign_data_videos/hola_abc.mp4", captured.URLVideo)
}

func TestPredictServiceError(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, "http://model.test/predict_recognition_video_words_v2",
		httpmock.NewStringResponder(http.StatusInternalServerError, "keypoint extraction failed"))

	_, err := client.Predict(context.Background(), &Request{RecordedVideoDocID: "42"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryPrediction))
	assert.Contains(t, err.Error(), "status 500")
}

func TestPredictEmptyPrediction(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, "http://model.test/predict_recognition_video_words_v2",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"prediction": ""}))

	_, err := client.Predict(context.Background(), &Request{RecordedVideoDocID: "42"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryPrediction))
}

func TestPredictUnconfigured(t *testing.T) {
	client := NewClient(&conf.Settings{})

	_, err := client.Predict(context.Background(), &Request{RecordedVideoDocID: "42"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
}
