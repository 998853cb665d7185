package db

import (
	"context"
	"fmt"

	"github.com/naobregon27/kommo/config"
)

// Open returns the credential store selected by cfg.Database.Driver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.Database.DSN)
	case config.DriverSQLite:
		database, err := OpenDatabase(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return NewSQLiteStore(database), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
