// Package prediction is the client for the external sign-recognition model
// service. The service receives the download URL of an uploaded clip plus
// its sign metadata, extracts pose and hand keypoints and returns the
// predicted sign with the per-class probability vector.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/colsign/colsign-go/internal/conf"
	"github.com/colsign/colsign-go/internal/errors"
)

// TypeExtractPoseHands is the keypoint extraction mode the words model expects.
const TypeExtractPoseHands = "pose_hands"

// recognizeWordsPath is the endpoint of the current words model.
const recognizeWordsPath = "/predict_recognition_video_words_v2"

// Request carries one clip to the recognition service.
type Request struct {
	RecordedVideoDocID string `json:"recordedVideoDocId"`
	URLVideo           string `json:"url_video"`
	SignName           string `json:"signName"`
	SignID             string `json:"signId"`
	SignType           string `json:"signType"`
	UserID             string `json:"userId"`
	UserLevelID        int    `json:"userLevelId"`
	TypeExtract        string `json:"type_extract"`
	Timestamp          string `json:"timestamp"`
}

// Response is the model's answer for one clip.
type Response struct {
	Prediction    string    `json:"prediction"`
	Probabilities []float64 `json:"probabilities"`
}

// Client talks to the recognition service.
type Client struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// NewClient creates a recognition client from settings.
func NewClient(settings *conf.Settings) *Client {
	timeout := settings.Prediction.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(settings.Prediction.BaseURL, "/"),
		Model:      settings.Prediction.WordsModel,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Predict sends the clip to the words model and returns its prediction. The
// request is bounded by the context and the client timeout.
func (c *Client) Predict(ctx context.Context, req *Request) (*Response, error) {
	if c.BaseURL == "" {
		return nil, errors.Newf("prediction service base URL is not configured").
			Category(errors.CategoryConfiguration).
			Component("prediction").
			Build()
	}
	if req.TypeExtract == "" {
		req.TypeExtract = TypeExtractPoseHands
	}
	if req.Timestamp == "" {
		req.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryPrediction).
			Component("prediction").
			Context("operation", "encode-request").
			Build()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+recognizeWordsPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryPrediction).
			Component("prediction").
			Context("operation", "build-request").
			Build()
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryNetwork).
			Component("prediction").
			Context("operation", "post-clip").
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.New(fmt.Errorf("recognition service returned status %d: %s", resp.StatusCode, snippet)).
			Category(errors.CategoryPrediction).
			Component("prediction").
			Context("status_code", resp.StatusCode).
			Build()
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryPrediction).
			Component("prediction").
			Context("operation", "decode-response").
			Build()
	}
	if result.Prediction == "" {
		return nil, errors.Newf("recognition service returned no prediction").
			Category(errors.CategoryPrediction).
			Component("prediction").
			Build()
	}
	return &result, nil
}
