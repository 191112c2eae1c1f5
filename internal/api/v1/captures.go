package api

import (
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/colsign/colsign-go/internal/capture"
	"github.com/colsign/colsign-go/internal/datastore"
	"github.com/colsign/colsign-go/internal/errors"
)

// initCaptureRoutes registers the recording session endpoints
func (c *Controller) initCaptureRoutes() {
	captureGroup := c.Group.Group("/captures", c.RequireContributor())

	captureGroup.POST("", c.CreateCapture)
	captureGroup.GET("/:id", c.GetCapture)
	captureGroup.POST("/:id/camera", c.EnableCaptureCamera)
	captureGroup.POST("/:id/start", c.StartCapture)
	captureGroup.POST("/:id/retake", c.RetakeCapture)
	captureGroup.POST("/:id/discard", c.DiscardCapture)
	captureGroup.POST("/:id/accept", c.AcceptCapture)
}

// CaptureCreateRequest opens a recording session for one catalog sign.
type CaptureCreateRequest struct {
	SignID uint `json:"sign_id"`
}

// CreateCapture opens a recording session. The countdown and recording
// window are fixed by the sign's category at creation time.
func (c *Controller) CreateCapture(ctx echo.Context) error {
	profile, ok := currentProfile(ctx)
	if !ok {
		return c.HandleError(ctx, nil, "Authentication required", http.StatusUnauthorized)
	}

	var req CaptureCreateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.SignID == 0 {
		return c.HandleError(ctx, nil, "A sign id is required", http.StatusBadRequest)
	}

	sign, err := c.DS.GetSign(strconv.FormatUint(uint64(req.SignID), 10))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return c.HandleError(ctx, nil, "Sign not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Database Error: failed to load sign", http.StatusInternalServerError)
	}

	userID, err := strconv.ParseUint(profile.UserID, 10, 32)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid session profile", http.StatusUnauthorized)
	}

	snapshot, err := c.Capture.Create(uint(userID), sign.ID, sign.Name, sign.Type)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to open capture session", http.StatusInternalServerError)
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "Capture session opened",
		"session_id", snapshot.ID, "sign_id", sign.ID, "sign_type", sign.Type)
	return ctx.JSON(http.StatusCreated, snapshot)
}

// GetCapture reports the current session state, advancing the timed phases.
func (c *Controller) GetCapture(ctx echo.Context) error {
	snapshot, ok := c.ownedSession(ctx)
	if !ok {
		return nil
	}
	return ctx.JSON(http.StatusOK, snapshot)
}

// EnableCaptureCamera acknowledges the live camera preview.
func (c *Controller) EnableCaptureCamera(ctx echo.Context) error {
	return c.captureTransition(ctx, c.Capture.EnableCamera)
}

// StartCapture begins the countdown. Rejected while the camera is off.
func (c *Controller) StartCapture(ctx echo.Context) error {
	return c.captureTransition(ctx, c.Capture.Start)
}

// RetakeCapture drops the previewed clip and returns to the live camera.
func (c *Controller) RetakeCapture(ctx echo.Context) error {
	return c.captureTransition(ctx, c.Capture.Retake)
}

// DiscardCapture drops the previewed clip and ends the session.
func (c *Controller) DiscardCapture(ctx echo.Context) error {
	return c.captureTransition(ctx, c.Capture.Discard)
}

// AcceptCapture uploads the previewed clip and records the submission. On a
// failed record the just-stored clip is removed and the session returns to
// preview so the clip can be accepted again.
func (c *Controller) AcceptCapture(ctx echo.Context) error {
	profile, ok := currentProfile(ctx)
	if !ok {
		return c.HandleError(ctx, nil, "Authentication required", http.StatusUnauthorized)
	}

	if _, ok := c.ownedSession(ctx); !ok {
		return nil
	}

	file, err := ctx.FormFile("video")
	if err != nil {
		return c.HandleError(ctx, err, "A video clip is required", http.StatusBadRequest)
	}

	user, err := c.DS.GetUser(profile.UserID)
	if err != nil {
		return c.HandleError(ctx, err, "Database Error: failed to load account", http.StatusInternalServerError)
	}

	sessionID := ctx.Param("id")
	snapshot, err := c.Capture.BeginUpload(sessionID)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryState) {
			return c.HandleError(ctx, err, "Capture is not ready for upload", http.StatusConflict)
		}
		return c.HandleError(ctx, err, "Capture session not found", http.StatusNotFound)
	}

	start := time.Now()
	submission, err := c.storeAcceptedClip(&snapshot, user.LevelID, file)
	if err != nil {
		if _, finishErr := c.Capture.FinishUpload(sessionID, false); finishErr != nil {
			c.logAPIRequest(ctx, slog.LevelError, "Failed to resolve upload state", "error", finishErr.Error())
		}
		if c.metrics != nil {
			c.metrics.Submission.RecordUploadError(snapshot.SignType)
		}
		return c.HandleError(ctx, err, "Database Error: failed to record submission", http.StatusInternalServerError)
	}

	if _, err := c.Capture.FinishUpload(sessionID, true); err != nil {
		c.logAPIRequest(ctx, slog.LevelError, "Failed to resolve upload state", "error", err.Error())
	}
	if c.metrics != nil {
		c.metrics.Submission.RecordUpload(snapshot.SignType, time.Since(start))
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "Submission recorded",
		"session_id", sessionID, "submission_id", submission.ID, "sign_id", submission.SignID)

	if c.predictor != nil && c.Settings.Prediction.Enabled {
		go c.evaluateSubmission(submission)
	}

	return ctx.JSON(http.StatusCreated, submissionResponseFrom(submission))
}

// storeAcceptedClip writes the clip to the media store and inserts the
// submission record, removing the clip again when the insert fails.
func (c *Controller) storeAcceptedClip(snapshot *capture.Snapshot, userLevelID int, file *multipart.FileHeader) (*datastore.Submission, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	relPath, err := c.Media.SaveSubmissionClip(snapshot.SignName, src)
	if err != nil {
		return nil, err
	}

	submission := &datastore.Submission{
		Label:       snapshot.SignName,
		SignID:      snapshot.SignID,
		UserID:      snapshot.UserID,
		UserLevelID: userLevelID,
		Type:        snapshot.SignType,
		VideoPath:   c.Media.DownloadURL(relPath),
		Verified:    false,
	}
	if err := c.DS.SaveSubmission(submission); err != nil {
		// best effort, the sweep for orphaned clips is manual
		_ = c.Media.Remove(relPath)
		return nil, err
	}
	return submission, nil
}

// evaluateSubmission sends a stored clip to the recognition service and
// appends the evaluation record. Failures are logged, never surfaced to the
// contributor whose upload already succeeded.
func (c *Controller) evaluateSubmission(submission *datastore.Submission) {
	timeout := c.Settings.Prediction.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	eval, err := c.runEvaluation(ctx, submission)
	if err != nil {
		c.apiLogger.Error("Recognition request failed",
			"submission_id", submission.ID, "error", err.Error())
		return
	}

	c.apiLogger.Info("Submission evaluated",
		"submission_id", submission.ID, "prediction", eval.Prediction, "model", eval.Model)
}

// captureTransition runs one session transition after the ownership check.
func (c *Controller) captureTransition(ctx echo.Context, fn func(string) (capture.Snapshot, error)) error {
	if _, ok := c.ownedSession(ctx); !ok {
		return nil
	}

	snapshot, err := fn(ctx.Param("id"))
	if err != nil {
		if errors.HasCategory(err, errors.CategoryState) {
			return c.HandleError(ctx, err, "Transition not allowed in current state", http.StatusConflict)
		}
		return c.HandleError(ctx, err, "Capture session not found", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, snapshot)
}

// ownedSession loads the session and verifies it belongs to the signed-in
// contributor. On failure the error response is already written and false is
// returned.
func (c *Controller) ownedSession(ctx echo.Context) (capture.Snapshot, bool) {
	profile, ok := currentProfile(ctx)
	if !ok {
		_ = c.HandleError(ctx, nil, "Authentication required", http.StatusUnauthorized)
		return capture.Snapshot{}, false
	}

	snapshot, err := c.Capture.Get(ctx.Param("id"))
	if err != nil {
		_ = c.HandleError(ctx, err, "Capture session not found", http.StatusNotFound)
		return capture.Snapshot{}, false
	}

	if strconv.FormatUint(uint64(snapshot.UserID), 10) != profile.UserID {
		_ = c.HandleError(ctx, nil, "Capture session belongs to another user", http.StatusForbidden)
		return capture.Snapshot{}, false
	}
	return snapshot, true
}
