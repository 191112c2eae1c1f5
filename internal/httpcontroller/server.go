// internal/httpcontroller/server.go
package httpcontroller

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	api "github.com/colsign/colsign-go/internal/api/v1"
	"github.com/colsign/colsign-go/internal/capture"
	"github.com/colsign/colsign-go/internal/conf"
	"github.com/colsign/colsign-go/internal/datastore"
	"github.com/colsign/colsign-go/internal/logging"
	"github.com/colsign/colsign-go/internal/mediastore"
	"github.com/colsign/colsign-go/internal/observability"
	"github.com/colsign/colsign-go/internal/prediction"
	"github.com/colsign/colsign-go/internal/security"
)

// Server encapsulates the Echo server and the services behind it.
type Server struct {
	Echo         *echo.Echo
	DS           datastore.Interface
	Settings     *conf.Settings
	OAuth2Server *security.OAuth2Server
	MediaStore   mediastore.Store
	Capture      *capture.Manager
	Metrics      *observability.Metrics
	APIV1        *api.Controller

	metricsServer *http.Server

	webLogger      *slog.Logger
	webLoggerClose func() error
}

// New wires the HTTP server from the given settings and datastore.
func New(settings *conf.Settings, dataStore datastore.Interface) (*Server, error) {
	configureDefaultSettings(settings)

	media, err := mediastore.New(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media store: %w", err)
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	s := &Server{
		Echo:         echo.New(),
		DS:           dataStore,
		Settings:     settings,
		OAuth2Server: security.NewOAuth2ServerWithSettings(settings),
		MediaStore:   media,
		Capture:      capture.NewManager(settings),
		Metrics:      metrics,
	}

	s.Echo.IPExtractor = echo.ExtractIPFromXFFHeader()

	if err := s.initializeServer(); err != nil {
		return nil, err
	}
	return s, nil
}

// initializeServer configures middleware, pages and the JSON API.
func (s *Server) initializeServer() error {
	s.Echo.HideBanner = true
	s.initLogger()
	s.initPages()

	opts := []api.Option{api.WithAuthMiddleware(s.AuthMiddleware())}
	if s.Settings.Prediction.Enabled {
		opts = append(opts, api.WithPredictionClient(prediction.NewClient(s.Settings)))
	}

	s.Debug("Initializing JSON API v1")
	controller, err := api.New(
		s.Echo,
		s.DS,
		s.Settings,
		s.MediaStore,
		s.Capture,
		s.OAuth2Server,
		log.Default(),
		s.Metrics,
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize API: %w", err)
	}
	s.APIV1 = controller
	return nil
}

// initLogger sets up the structured web log file.
func (s *Server) initLogger() {
	levelVar := new(slog.LevelVar)
	if s.Settings.WebServer.Debug {
		levelVar.Set(slog.LevelDebug)
	}

	logger, closeFunc, err := logging.NewFileLogger("logs/server.log", "server", levelVar)
	if err != nil {
		log.Printf("Warning: Failed to initialize server logger: %v", err)
		s.webLogger = slog.Default()
		s.webLoggerClose = func() error { return nil }
		return
	}
	s.webLogger = logger
	s.webLoggerClose = closeFunc
}

// initPages registers the minimal pages the route guards redirect to. The
// application frontend is served elsewhere; these exist so browser redirects
// resolve.
func (s *Server) initPages() {
	s.Echo.GET("/login", func(c echo.Context) error {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"message": "Sign in at POST /api/v1/auth/login or GET /api/v1/auth/google",
		})
	})
	s.Echo.GET("/unauthorized", func(c echo.Context) error {
		return c.JSON(http.StatusForbidden, map[string]string{
			"message": "Your account does not have access to this resource",
		})
	})
}

// Start begins listening and serving HTTP requests.
func (s *Server) Start() {
	errChan := make(chan error)

	go func() {
		if err := s.Echo.Start(":" + s.Settings.WebServer.Port); err != nil {
			errChan <- err
		}
	}()

	if s.Settings.Metrics.Enabled {
		s.startMetricsServer(errChan)
	}

	go s.handleServerError(errChan)

	fmt.Printf("HTTP server started on port %s\n", s.Settings.WebServer.Port)
}

// startMetricsServer exposes prometheus metrics on its own listener so the
// scrape endpoint is never reachable through the public port.
func (s *Server) startMetricsServer(errChan chan<- error) {
	mux := http.NewServeMux()
	s.Metrics.RegisterHandlers(mux)

	s.metricsServer = &http.Server{
		Addr:         s.Settings.Metrics.Listen,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		s.webLogger.Info("Metrics listener started", "addr", s.Settings.Metrics.Listen)
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
}

func (s *Server) handleServerError(errChan <-chan error) {
	for err := range errChan {
		if err == http.ErrServerClosed {
			continue
		}
		s.webLogger.Error("Server error", "error", err.Error())
		log.Printf("Server error: %v", err)
	}
}

// Shutdown stops the listeners and releases server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := s.Echo.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.APIV1 != nil {
		s.APIV1.Shutdown()
	}
	if err := s.MediaStore.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.webLoggerClose != nil {
		if err := s.webLoggerClose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Debug logs a debug message when web server debugging is enabled.
func (s *Server) Debug(format string, v ...any) {
	if !s.Settings.WebServer.Debug {
		return
	}
	if len(v) == 0 {
		s.webLogger.Debug(format)
		return
	}
	s.webLogger.Debug(fmt.Sprintf(format, v...))
}

// configureDefaultSettings fills in values a misconfigured deployment would
// otherwise leave unusable.
func configureDefaultSettings(settings *conf.Settings) {
	if settings.WebServer.Port == "" {
		settings.WebServer.Port = "8080"
	}
	if settings.Media.MaxUploadSize <= 0 {
		settings.Media.MaxUploadSize = 32 * 1024 * 1024
	}
	if settings.Review.PageSize <= 0 {
		settings.Review.PageSize = 3
	}
}
