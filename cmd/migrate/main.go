// ABOUTME: Migration utility for moving a SQLite credential store to PostgreSQL.
// ABOUTME: Copies principals and contact-source tokens, with a dry-run mode.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/db"
)

func main() {
	dbPath := flag.String("db", "", "Path to the SQLite database (required)")
	dsn := flag.String("dsn", "", "PostgreSQL connection string (required unless -dry-run)")
	dryRun := flag.Bool("dry-run", false, "Show what would happen without making changes")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("Error: -db flag is required")
	}
	if *dsn == "" && !*dryRun {
		log.Fatal("Error: -dsn flag is required")
	}

	if err := run(context.Background(), *dbPath, *dsn, *dryRun); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration completed successfully")
}

func run(ctx context.Context, dbPath, dsn string, dryRun bool) error {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database file does not exist: %s", dbPath)
	}

	database, err := db.OpenDatabase(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	src := db.NewSQLiteStore(database)
	defer func() { _ = src.Close() }()

	var dst db.Store
	if !dryRun {
		pg, err := db.OpenPostgres(ctx, dsn)
		if err != nil {
			return err
		}
		defer func() { _ = pg.Close() }()
		dst = pg
	}

	stats, err := copyStore(ctx, src, dst)
	if err != nil {
		return err
	}
	log.Printf("Users: %d copied, %d already present. Contact-source tokens: %d copied",
		stats.users, stats.skipped, stats.tokens)
	return nil
}

type migrationStats struct {
	users   int
	skipped int
	tokens  int
}

// copyStore copies every principal and its Google token from src to dst,
// keeping ids so existing bearer clients can re-login against dst. Login
// sessions are not copied. A nil dst only counts what would be copied.
func copyStore(ctx context.Context, src, dst db.Store) (migrationStats, error) {
	var stats migrationStats

	users, err := src.ListUsers(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list users: %w", err)
	}

	for i := range users {
		user := users[i]
		token, err := src.GetGoogleToken(ctx, user.ID)
		if err != nil {
			return stats, fmt.Errorf("failed to read Google token for %s: %w", user.Username, err)
		}

		if dst == nil {
			log.Printf("Would copy user %s (google token: %t)", user.Username, token != nil)
			stats.users++
			if token != nil {
				stats.tokens++
			}
			continue
		}

		err = dst.CreateUser(ctx, &user)
		if apperr.Is(err, apperr.CodeConflict) {
			log.Printf("Skipping user %s: already present", user.Username)
			stats.skipped++
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("failed to copy user %s: %w", user.Username, err)
		}
		stats.users++

		if token != nil {
			if err := dst.SaveGoogleToken(ctx, user.ID, token.Token); err != nil {
				return stats, fmt.Errorf("failed to copy Google token for %s: %w", user.Username, err)
			}
			stats.tokens++
		}
	}
	return stats, nil
}
