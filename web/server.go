// ABOUTME: HTTP API server built on echo
// ABOUTME: Registers auth, contact-source, contacts and CRM routes and shuts down gracefully
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/naobregon27/kommo/db"
	"github.com/naobregon27/kommo/session"
	"github.com/naobregon27/kommo/sync"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// Options configure the HTTP surface.
type Options struct {
	// FrontendURL receives the contact-source callback redirect.
	FrontendURL string
	// TokenTTL is the lifetime of bearer tokens issued at login.
	TokenTTL    time.Duration
	CountryCode string
	Validator   sync.Validator
}

type Server struct {
	store    db.Store
	sessions *session.Manager
	opts     Options
	logger   *zap.Logger
	echo     *echo.Echo
}

func NewServer(store db.Store, sessions *session.Manager, opts Options, logger *zap.Logger) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 7 * 24 * time.Hour
	}
	if opts.CountryCode == "" {
		opts.CountryCode = "54"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		store:    store,
		sessions: sessions,
		opts:     opts,
		logger:   logger,
		echo:     e,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger())
	if opts.FrontendURL != "" {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{opts.FrontendURL},
			AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
		}))
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)

	api := s.echo.Group("/api", s.authenticate)

	auth := api.Group("/auth")
	auth.POST("/register", s.handleRegister)
	auth.POST("/login", s.handleLogin)
	auth.POST("/logout", s.handleLogout, s.requireAuth)
	auth.GET("/status", s.handleAuthStatus)

	source := api.Group("/contact-source")
	source.GET("/auth-url", s.handleContactSourceAuthURL, s.requireAuth)
	source.GET("/callback", s.handleContactSourceCallback)
	source.POST("/logout", s.handleContactSourceLogout, s.requireAuth)
	source.GET("/status", s.handleContactSourceStatus, s.requireAuth)

	contacts := api.Group("/contacts", s.requireAuth)
	contacts.GET("", s.handleListContacts)
	contacts.POST("/upload", s.handleUploadContacts)
	contacts.POST("/validate", s.handleValidateNumbers)
	contacts.POST("/:id/send", s.handleSendMessage)

	crmRoutes := api.Group("/crm", s.requireAuth)
	crmRoutes.GET("/pipelines", s.handleListPipelines)
	crmRoutes.GET("/pipelines/:id/statuses", s.handleListStatuses)
	crmRoutes.POST("/generate-leads", s.handleGenerateLeads)
	crmRoutes.GET("/connection-status", s.handleConnectionStatus)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: a lead generation request lasts as long as its pacing.
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("web: listening", zap.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
		s.logger.Info("web: shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("web: graceful shutdown failed", zap.Error(err))
			if err := server.Close(); err != nil {
				return fmt.Errorf("failed to close server: %w", err)
			}
		}
		s.logger.Info("web: stopped")
		return nil
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
