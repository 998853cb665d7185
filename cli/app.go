// ABOUTME: Shared wiring for every subcommand
// ABOUTME: Opens the credential store and builds the session manager from configuration
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/config"
	"github.com/naobregon27/kommo/db"
	"github.com/naobregon27/kommo/models"
	"github.com/naobregon27/kommo/session"
	"github.com/naobregon27/kommo/sync"
	"go.uber.org/zap"
)

// App holds the long-lived dependencies of a command.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    db.Store
	Sessions *session.Manager
	In       io.Reader
	Out      io.Writer
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Sessions: session.NewManager(store, SessionOptions(cfg), logger),
		In:       os.Stdin,
		Out:      os.Stdout,
	}, nil
}

// SessionOptions maps configuration onto the session manager.
func SessionOptions(cfg *config.Config) session.Options {
	google := sync.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)

	var snapshot *sync.ContactSnapshot
	if cfg.Sync.ContactCacheDir != "" {
		snapshot = sync.NewContactSnapshot(cfg.Sync.ContactCacheDir)
	}

	return session.Options{
		TTL:           cfg.Session.TTL,
		SyncInterval:  cfg.Sync.Interval,
		CRMTimeout:    cfg.CRM.Timeout,
		GoogleTimeout: cfg.Google.Timeout,
		Validator:     Validator(cfg),
		Google:        google,
		Snapshot:      snapshot,
	}
}

// Validator builds the phone filter from the configured denylist.
func Validator(cfg *config.Config) sync.Validator {
	return sync.NewValidator(cfg.Sync.Denylist)
}

func (a *App) Close() error {
	return a.Store.Close()
}

// lookupUser resolves a --user flag to a principal.
func (a *App) lookupUser(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("--user is required")
	}
	user, err := a.Store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user " + username)
	}
	return user, nil
}
