package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/colsign/colsign-go/internal/conf"
	"github.com/colsign/colsign-go/internal/datastore"
	"github.com/colsign/colsign-go/internal/errors"
)

// activeSignsCacheKey caches the active catalog listing between writes.
const activeSignsCacheKey = "signs:active"

// initSignRoutes registers the sign catalog endpoints
func (c *Controller) initSignRoutes() {
	signGroup := c.Group.Group("/signs")

	// catalog reads for signed-in contributors
	signGroup.GET("", c.GetActiveSigns, c.RequireContributor())
	signGroup.GET("/search", c.SearchSigns, c.RequireContributor())
	signGroup.GET("/:id", c.GetSign, c.RequireContributor())

	// catalog curation for reviewers
	signGroup.GET("/all", c.GetAllSigns, c.RequireAdmin())
	signGroup.POST("", c.CreateSign, c.RequireAdmin())
	signGroup.PUT("/:id", c.UpdateSign, c.RequireAdmin())
	signGroup.DELETE("/:id", c.DeleteSign, c.RequireAdmin())
}

// SignResponse is the public view of a catalog entry.
type SignResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	TypeID    int    `json:"type_id"`
	Type      string `json:"type"`
	Meaning   string `json:"meaning"`
	Reference string `json:"reference"`
	VideoPath string `json:"video_path"`
	Status    string `json:"status"`
}

func signResponseFrom(sign *datastore.SignDefinition) SignResponse {
	return SignResponse{
		ID:        sign.ID,
		Name:      sign.Name,
		TypeID:    sign.TypeID,
		Type:      sign.Type,
		Meaning:   sign.Meaning,
		Reference: sign.Reference,
		VideoPath: sign.VideoPath,
		Status:    sign.Status,
	}
}

func signResponsesFrom(signs []datastore.SignDefinition) []SignResponse {
	out := make([]SignResponse, 0, len(signs))
	for i := range signs {
		out = append(out, signResponseFrom(&signs[i]))
	}
	return out
}

// GetActiveSigns lists the catalog entries contributors can record.
func (c *Controller) GetActiveSigns(ctx echo.Context) error {
	if cached, found := c.signCache.Get(activeSignsCacheKey); found {
		if signs, ok := cached.([]SignResponse); ok {
			return ctx.JSON(http.StatusOK, signs)
		}
	}

	signs, err := c.DS.GetActiveSigns()
	if err != nil {
		return c.HandleError(ctx, err, "Database Error: failed to list signs", http.StatusInternalServerError)
	}

	response := signResponsesFrom(signs)
	c.signCache.SetDefault(activeSignsCacheKey, response)
	return ctx.JSON(http.StatusOK, response)
}

// GetAllSigns lists the full catalog including inactive entries. Reviewer only.
func (c *Controller) GetAllSigns(ctx echo.Context) error {
	signs, err := c.DS.GetAllSigns()
	if err != nil {
		return c.HandleError(ctx, err, "Database Error: failed to list signs", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, signResponsesFrom(signs))
}

// SearchSigns finds the catalog entry whose name matches exactly.
func (c *Controller) SearchSigns(ctx echo.Context) error {
	name := strings.TrimSpace(ctx.QueryParam("name"))
	if name == "" {
		return c.HandleError(ctx, nil, "A name to search for is required", http.StatusBadRequest)
	}

	sign, err := c.DS.GetSignByName(name)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return c.HandleError(ctx, nil, "Sign not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Database Error: failed to search signs", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, signResponseFrom(&sign))
}

// GetSign returns one catalog entry.
func (c *Controller) GetSign(ctx echo.Context) error {
	sign, err := c.DS.GetSign(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return c.HandleError(ctx, nil, "Sign not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Database Error: failed to load sign", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, signResponseFrom(&sign))
}

// CreateSign adds a catalog entry from a multipart form. The example clip is
// optional; when present it is stored and served from the media root.
func (c *Controller) CreateSign(ctx echo.Context) error {
	name := strings.TrimSpace(ctx.FormValue("name"))
	if name == "" {
		return c.HandleError(ctx, nil, "A sign name is required", http.StatusBadRequest)
	}

	typeID, err := strconv.Atoi(ctx.FormValue("type_id"))
	if err != nil {
		return c.HandleError(ctx, err, "A numeric type id is required", http.StatusBadRequest)
	}
	signType := conf.SignTypeForID(typeID)
	if signType == "" {
		return c.HandleError(ctx, nil, "Unknown sign type id", http.StatusBadRequest)
	}

	status := ctx.FormValue("status")
	if status == "" {
		status = conf.SignStatusActive
	}
	if status != conf.SignStatusActive && status != conf.SignStatusInactive {
		return c.HandleError(ctx, nil, "Status must be activo or inactivo", http.StatusBadRequest)
	}

	sign := datastore.SignDefinition{
		Name:      name,
		TypeID:    typeID,
		Type:      signType,
		Meaning:   ctx.FormValue("meaning"),
		Reference: ctx.FormValue("reference"),
		Status:    status,
	}

	if file, err := ctx.FormFile("video"); err == nil {
		src, err := file.Open()
		if err != nil {
			return c.HandleError(ctx, err, "Failed to read uploaded clip", http.StatusBadRequest)
		}
		relPath, saveErr := c.Media.SaveExampleClip(file.Filename, src)
		_ = src.Close()
		if saveErr != nil {
			return c.HandleError(ctx, saveErr, "Failed to store example clip", http.StatusInternalServerError)
		}
		sign.VideoPath = c.Media.DownloadURL(relPath)
	}

	if err := c.DS.CreateSign(&sign); err != nil {
		// do not keep an orphaned clip for a failed insert
		if sign.VideoPath != "" {
			if relPath := c.Media.ParseURL(sign.VideoPath); relPath != "" {
				_ = c.Media.Remove(relPath)
			}
		}
		return c.HandleError(ctx, err, "Database Error: failed to create sign", http.StatusInternalServerError)
	}

	c.signCache.Delete(activeSignsCacheKey)
	c.logAPIRequest(ctx, slog.LevelInfo, "Sign created", "sign_id", sign.ID, "name", sign.Name)
	return ctx.JSON(http.StatusCreated, signResponseFrom(&sign))
}

// SignUpdateRequest carries the editable fields of a catalog entry.
type SignUpdateRequest struct {
	Name      *string `json:"name"`
	TypeID    *int    `json:"type_id"`
	Meaning   *string `json:"meaning"`
	Reference *string `json:"reference"`
	Status    *string `json:"status"`
}

// UpdateSign edits a catalog entry. Reviewer only.
func (c *Controller) UpdateSign(ctx echo.Context) error {
	sign, err := c.DS.GetSign(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return c.HandleError(ctx, nil, "Sign not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Database Error: failed to load sign", http.StatusInternalServerError)
	}

	var req SignUpdateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return c.HandleError(ctx, nil, "A sign name is required", http.StatusBadRequest)
		}
		sign.Name = name
	}
	if req.TypeID != nil {
		signType := conf.SignTypeForID(*req.TypeID)
		if signType == "" {
			return c.HandleError(ctx, nil, "Unknown sign type id", http.StatusBadRequest)
		}
		sign.TypeID = *req.TypeID
		sign.Type = signType
	}
	if req.Meaning != nil {
		sign.Meaning = *req.Meaning
	}
	if req.Reference != nil {
		sign.Reference = *req.Reference
	}
	if req.Status != nil {
		if *req.Status != conf.SignStatusActive && *req.Status != conf.SignStatusInactive {
			return c.HandleError(ctx, nil, "Status must be activo or inactivo", http.StatusBadRequest)
		}
		sign.Status = *req.Status
	}

	if err := c.DS.UpdateSign(&sign); err != nil {
		return c.HandleError(ctx, err, "Database Error: failed to update sign", http.StatusInternalServerError)
	}

	c.signCache.Delete(activeSignsCacheKey)
	c.logAPIRequest(ctx, slog.LevelInfo, "Sign updated", "sign_id", sign.ID)
	return ctx.JSON(http.StatusOK, signResponseFrom(&sign))
}

// DeleteSign removes a catalog entry that no submission references.
func (c *Controller) DeleteSign(ctx echo.Context) error {
	err := c.DS.DeleteSign(ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, datastore.ErrSignInUse):
			return c.HandleError(ctx, err, "Sign still has submissions and cannot be deleted", http.StatusConflict)
		case errors.Is(err, datastore.ErrNotFound):
			return c.HandleError(ctx, nil, "Sign not found", http.StatusNotFound)
		default:
			return c.HandleError(ctx, err, "Database Error: failed to delete sign", http.StatusInternalServerError)
		}
	}

	c.signCache.Delete(activeSignsCacheKey)
	c.logAPIRequest(ctx, slog.LevelInfo, "Sign deleted", "sign_id", ctx.Param("id"))
	return ctx.NoContent(http.StatusNoContent)
}
