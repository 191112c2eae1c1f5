package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/colsign/colsign-go/internal/datastore"
)

func (c *Controller) initSurveyRoutes() {
	surveyGroup := c.Group.Group("/surveys")

	surveyGroup.POST("", c.CreateSurveyResponse, c.RequireAuth())
	surveyGroup.GET("", c.ListSurveyResponses, c.RequireAdmin())
}

// SurveyRequest carries the five fixed questionnaire answers.
type SurveyRequest struct {
	Answer1 string `json:"answer1"`
	Answer2 string `json:"answer2"`
	Answer3 string `json:"answer3"`
	Answer4 string `json:"answer4"`
	Answer5 string `json:"answer5"`
}

// SurveyResponseDTO is one stored questionnaire response.
type SurveyResponseDTO struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Answer1   string    `json:"answer1"`
	Answer2   string    `json:"answer2"`
	Answer3   string    `json:"answer3"`
	Answer4   string    `json:"answer4"`
	Answer5   string    `json:"answer5"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSurveyResponse stores the authenticated user's questionnaire
// answers. Responses are append-only; users may submit more than once.
func (c *Controller) CreateSurveyResponse(ctx echo.Context) error {
	profile, ok := currentProfile(ctx)
	if !ok {
		return c.HandleError(ctx, nil, "Authentication required", http.StatusUnauthorized)
	}

	var req SurveyRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	for _, answer := range []string{req.Answer1, req.Answer2, req.Answer3, req.Answer4, req.Answer5} {
		if strings.TrimSpace(answer) == "" {
			return c.HandleError(ctx, nil, "All five answers are required", http.StatusBadRequest)
		}
	}

	userID, err := strconv.ParseUint(profile.UserID, 10, 32)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid session", http.StatusUnauthorized)
	}

	resp := &datastore.SurveyResponse{
		UserID:  uint(userID),
		Answer1: req.Answer1,
		Answer2: req.Answer2,
		Answer3: req.Answer3,
		Answer4: req.Answer4,
		Answer5: req.Answer5,
	}
	if err := c.DS.SaveSurveyResponse(resp); err != nil {
		return c.HandleError(ctx, err, "Database Error: failed to store survey response", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusCreated, surveyResponseFrom(resp))
}

// ListSurveyResponses pages through questionnaire responses, most recent
// first.
func (c *Controller) ListSurveyResponses(ctx echo.Context) error {
	limit := queryInt(ctx, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := queryInt(ctx, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	responses, err := c.DS.GetSurveyResponses(limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Database Error: failed to load survey responses", http.StatusInternalServerError)
	}

	out := make([]SurveyResponseDTO, 0, len(responses))
	for i := range responses {
		out = append(out, surveyResponseFrom(&responses[i]))
	}
	return ctx.JSON(http.StatusOK, out)
}

func surveyResponseFrom(resp *datastore.SurveyResponse) SurveyResponseDTO {
	return SurveyResponseDTO{
		ID:        resp.ID,
		UserID:    resp.UserID,
		Answer1:   resp.Answer1,
		Answer2:   resp.Answer2,
		Answer3:   resp.Answer3,
		Answer4:   resp.Answer4,
		Answer5:   resp.Answer5,
		CreatedAt: resp.CreatedAt,
	}
}
