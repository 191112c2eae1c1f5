package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposition(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Submission.RecordUpload("Palabra", 120*time.Millisecond)
	m.Submission.RecordUploadError("Frases")
	m.Submission.RecordVerified()
	m.Submission.RecordDeleted()
	m.Prediction.RecordRequest("words_v2", time.Second, nil)
	m.Prediction.RecordRequest("words_v2", 2*time.Second, io.EOF)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, `colsign_submission_uploads_total{sign_type="Palabra"} 1`)
	assert.Contains(t, body, `colsign_submission_upload_errors_total{sign_type="Frases"} 1`)
	assert.Contains(t, body, "colsign_submissions_verified_total 1")
	assert.Contains(t, body, "colsign_submissions_deleted_total 1")
	assert.Contains(t, body, `colsign_prediction_requests_total{model="words_v2"} 2`)
	assert.Contains(t, body, `colsign_prediction_request_errors_total{model="words_v2"} 1`)
}
