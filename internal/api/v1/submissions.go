package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/colsign/colsign-go/internal/datastore"
	"github.com/colsign/colsign-go/internal/errors"
)

// initSubmissionRoutes registers the review endpoints. All of them are
// reviewer only.
func (c *Controller) initSubmissionRoutes() {
	subGroup := c.Group.Group("/submissions", c.RequireAdmin())

	subGroup.GET("/search", c.SearchSubmissions)
	subGroup.GET("/:id", c.GetSubmission)
	subGroup.PUT("/:id/verify", c.VerifySubmission)
	subGroup.DELETE("/:id", c.DeleteSubmission)
}

// SubmissionResponse is the reviewer's view of a contributor clip.
type SubmissionResponse struct {
	ID          uint      `json:"id"`
	Label       string    `json:"label"`
	SignID      uint      `json:"sign_id"`
	UserID      uint      `json:"user_id"`
	UserLevelID int       `json:"user_level_id"`
	Type        string    `json:"type"`
	VideoPath   string    `json:"video_path"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubmissionPage is one page of unverified submissions plus the cursor for
// the next page. NextCursor is zero on the last page.
type SubmissionPage struct {
	Submissions []SubmissionResponse `json:"submissions"`
	NextCursor  uint                 `json:"next_cursor"`
	HasMore     bool                 `json:"has_more"`
}

func submissionResponseFrom(sub *datastore.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:          sub.ID,
		Label:       sub.Label,
		SignID:      sub.SignID,
		UserID:      sub.UserID,
		UserLevelID: sub.UserLevelID,
		Type:        sub.Type,
		VideoPath:   sub.VideoPath,
		Verified:    sub.Verified,
		CreatedAt:   sub.CreatedAt,
	}
}

// SearchSubmissions pages through the unverified submissions for a label in
// insertion order. The cursor is the id of the last submission of the
// previous page.
func (c *Controller) SearchSubmissions(ctx echo.Context) error {
	label := strings.TrimSpace(ctx.QueryParam("label"))
	if label == "" {
		return c.HandleError(ctx, nil, "A label to search for is required", http.StatusBadRequest)
	}

	var afterID uint
	if after := ctx.QueryParam("after"); after != "" {
		parsed, err := strconv.ParseUint(after, 10, 32)
		if err != nil {
			return c.HandleError(ctx, err, "Cursor must be a numeric submission id", http.StatusBadRequest)
		}
		afterID = uint(parsed)
	}

	pageSize := c.Settings.Review.PageSize
	if pageSize <= 0 {
		pageSize = 3
	}

	// fetch one extra row to learn whether another page exists
	subs, err := c.DS.SearchUnverified(label, afterID, pageSize+1)
	if err != nil {
		return c.HandleError(ctx, err, "Database Error: failed to search submissions", http.StatusInternalServerError)
	}

	page := SubmissionPage{Submissions: make([]SubmissionResponse, 0, pageSize)}
	if len(subs) > pageSize {
		page.HasMore = true
		subs = subs[:pageSize]
	}
	for i := range subs {
		page.Submissions = append(page.Submissions, submissionResponseFrom(&subs[i]))
	}
	if page.HasMore && len(subs) > 0 {
		page.NextCursor = subs[len(subs)-1].ID
	}

	return ctx.JSON(http.StatusOK, page)
}

// GetSubmission returns one submission.
func (c *Controller) GetSubmission(ctx echo.Context) error {
	sub, err := c.DS.GetSubmission(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return c.HandleError(ctx, nil, "Submission not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Database Error: failed to load submission", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, submissionResponseFrom(&sub))
}

// VerifySubmission marks a clip as verified. Verification is one-way; the
// flag never returns to unverified.
func (c *Controller) VerifySubmission(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := c.DS.VerifySubmission(id); err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return c.HandleError(ctx, nil, "Submission not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Database Error: failed to verify submission", http.StatusInternalServerError)
	}

	if c.metrics != nil {
		c.metrics.Submission.RecordVerified()
	}
	c.logAPIRequest(ctx, slog.LevelInfo, "Submission verified", "submission_id", id)

	sub, err := c.DS.GetSubmission(id)
	if err != nil {
		return c.HandleError(ctx, err, "Database Error: failed to load submission", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, submissionResponseFrom(&sub))
}

// DeleteSubmission removes an unverified clip and its stored file. Verified
// submissions are immutable.
func (c *Controller) DeleteSubmission(ctx echo.Context) error {
	id := ctx.Param("id")

	sub, err := c.DS.GetSubmission(id)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return c.HandleError(ctx, nil, "Submission not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Database Error: failed to load submission", http.StatusInternalServerError)
	}

	if err := c.DS.DeleteSubmission(id); err != nil {
		switch {
		case errors.Is(err, datastore.ErrSubmissionVerified):
			return c.HandleError(ctx, err, "Verified submissions cannot be deleted", http.StatusConflict)
		case errors.Is(err, datastore.ErrNotFound):
			return c.HandleError(ctx, nil, "Submission not found", http.StatusNotFound)
		default:
			return c.HandleError(ctx, err, "Database Error: failed to delete submission", http.StatusInternalServerError)
		}
	}

	// remove the stored clip, foreign URLs are skipped
	if relPath := c.Media.ParseURL(sub.VideoPath); relPath != "" {
		if err := c.Media.Remove(relPath); err != nil {
			c.logAPIRequest(ctx, slog.LevelWarn, "Failed to remove clip for deleted submission",
				"submission_id", id, "error", err.Error())
		}
	}

	if c.metrics != nil {
		c.metrics.Submission.RecordDeleted()
	}
	c.logAPIRequest(ctx, slog.LevelInfo, "Submission deleted", "submission_id", id)
	return ctx.NoContent(http.StatusNoContent)
}
