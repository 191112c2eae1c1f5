package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/colsign/colsign-go/internal/datastore"
	"github.com/colsign/colsign-go/internal/errors"
	"github.com/colsign/colsign-go/internal/prediction"
)

func (c *Controller) initEvaluationRoutes() {
	evalGroup := c.Group.Group("/evaluations")

	evalGroup.POST("", c.CreateEvaluation, c.RequireContributor())
	evalGroup.GET("", c.ListEvaluations, c.RequireAdmin())
	evalGroup.GET("/submission/:id", c.GetSubmissionEvaluations, c.RequireAdmin())
}

// EvaluationRequest asks the recognition service to score an already
// uploaded submission.
type EvaluationRequest struct {
	SubmissionID uint `json:"submission_id"`
}

// EvaluationResponse is one stored model run.
type EvaluationResponse struct {
	ID            uint      `json:"id"`
	SubmissionID  uint      `json:"submission_id"`
	Label         string    `json:"label"`
	SignID        uint      `json:"sign_id"`
	SignType      string    `json:"sign_type"`
	TypeExtract   string    `json:"type_extract"`
	Model         string    `json:"model"`
	Prediction    string    `json:"prediction"`
	Probabilities []float64 `json:"probabilities"`
	Correct       bool      `json:"correct"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}

func evaluationResponseFrom(eval *datastore.Evaluation) EvaluationResponse {
	probs, err := eval.GetProbabilities()
	if err != nil {
		probs = nil
	}
	return EvaluationResponse{
		ID:            eval.ID,
		SubmissionID:  eval.SubmissionID,
		Label:         eval.Label,
		SignID:        eval.SignID,
		SignType:      eval.SignType,
		TypeExtract:   eval.TypeExtract,
		Model:         eval.Model,
		Prediction:    eval.Prediction,
		Probabilities: probs,
		Correct:       eval.Prediction == eval.Label,
		EvaluatedAt:   eval.EvaluatedAt,
	}
}

// CreateEvaluation runs the recognition model against a submission and
// stores the result. Unlike the evaluation fired right after an upload, this
// one is synchronous so the caller sees the prediction.
func (c *Controller) CreateEvaluation(ctx echo.Context) error {
	if c.predictor == nil {
		return c.HandleError(ctx, nil, "Sign recognition is not configured", http.StatusServiceUnavailable)
	}

	var req EvaluationRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.SubmissionID == 0 {
		return c.HandleError(ctx, nil, "A submission id is required", http.StatusBadRequest)
	}

	sub, err := c.DS.GetSubmission(strconv.FormatUint(uint64(req.SubmissionID), 10))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return c.HandleError(ctx, nil, "Submission not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Database Error: failed to load submission", http.StatusInternalServerError)
	}

	eval, err := c.runEvaluation(ctx.Request().Context(), &sub)
	if err != nil {
		return c.HandleError(ctx, err, "Sign recognition failed", http.StatusBadGateway)
	}

	return ctx.JSON(http.StatusCreated, evaluationResponseFrom(eval))
}

// ListEvaluations pages through stored evaluations, most recent first.
func (c *Controller) ListEvaluations(ctx echo.Context) error {
	limit := queryInt(ctx, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := queryInt(ctx, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	evals, err := c.DS.GetEvaluations(limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Database Error: failed to load evaluations", http.StatusInternalServerError)
	}

	out := make([]EvaluationResponse, 0, len(evals))
	for i := range evals {
		out = append(out, evaluationResponseFrom(&evals[i]))
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetSubmissionEvaluations returns every model run recorded for one
// submission.
func (c *Controller) GetSubmissionEvaluations(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return c.HandleError(ctx, err, "Submission id must be numeric", http.StatusBadRequest)
	}

	evals, err := c.DS.GetEvaluationsForSubmission(uint(id))
	if err != nil {
		return c.HandleError(ctx, err, "Database Error: failed to load evaluations", http.StatusInternalServerError)
	}

	out := make([]EvaluationResponse, 0, len(evals))
	for i := range evals {
		out = append(out, evaluationResponseFrom(&evals[i]))
	}
	return ctx.JSON(http.StatusOK, out)
}

// runEvaluation sends one submission to the recognition service and stores
// the resulting record.
func (c *Controller) runEvaluation(ctx context.Context, submission *datastore.Submission) (*datastore.Evaluation, error) {
	req := &prediction.Request{
		RecordedVideoDocID: strconv.FormatUint(uint64(submission.ID), 10),
		URLVideo:           submission.VideoPath,
		SignName:           submission.Label,
		SignID:             strconv.FormatUint(uint64(submission.SignID), 10),
		SignType:           submission.Type,
		UserID:             strconv.FormatUint(uint64(submission.UserID), 10),
		UserLevelID:        submission.UserLevelID,
	}

	start := time.Now()
	resp, err := c.predictor.Predict(ctx, req)
	if c.metrics != nil {
		c.metrics.Prediction.RecordRequest(c.Settings.Prediction.WordsModel, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}

	eval := &datastore.Evaluation{
		Label:        submission.Label,
		SubmissionID: submission.ID,
		VideoPath:    submission.VideoPath,
		SignID:       submission.SignID,
		SignName:     submission.Label,
		SignType:     submission.Type,
		UserID:       submission.UserID,
		UserLevelID:  submission.UserLevelID,
		TypeExtract:  prediction.TypeExtractPoseHands,
		Model:        c.Settings.Prediction.WordsModel,
		Prediction:   resp.Prediction,
		EvaluatedAt:  time.Now(),
	}
	if err := eval.SetProbabilities(resp.Probabilities); err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "encode_probabilities").
			Build()
	}
	if err := c.DS.SaveEvaluation(eval); err != nil {
		return nil, err
	}
	return eval, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(ctx echo.Context, name string, fallback int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}
