package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/colsign/colsign-go/internal/mediastore"
)

// initMediaRoutes serves stored clips. Registered on the Echo root rather
// than the API group so the download URLs written into the database resolve
// as-is. The server-injected middleware also accepts bearer tokens, which
// the session-cookie guard does not.
func (c *Controller) initMediaRoutes() {
	authMW := c.GetAuthMiddleware()
	if authMW == nil {
		authMW = c.RequireAuth()
	}
	c.Echo.GET(mediastore.URLPrefix+"*", c.ServeMedia, authMW)
}

// ServeMedia streams one stored clip. The media store is sandboxed, so
// traversal attempts fail at Open rather than escaping the export root.
func (c *Controller) ServeMedia(ctx echo.Context) error {
	relPath := strings.TrimPrefix(ctx.Request().URL.Path, mediastore.URLPrefix)
	if relPath == "" {
		return c.HandleError(ctx, nil, "Media file not found", http.StatusNotFound)
	}

	file, err := c.Media.Open(relPath)
	if err != nil {
		return c.HandleError(ctx, nil, "Media file not found", http.StatusNotFound)
	}
	defer func() {
		if err := file.Close(); err != nil {
			c.Debug("Failed to close media file: %v", err)
		}
	}()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		return c.HandleError(ctx, nil, "Media file not found", http.StatusNotFound)
	}

	ctx.Response().Header().Set(echo.HeaderContentType, "video/mp4")
	return ctx.Stream(http.StatusOK, "video/mp4", file)
}
