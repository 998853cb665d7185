// ABOUTME: Contact-source token operations for the SQLite store
// ABOUTME: Persists the Google OAuth token set per principal as JSON
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

func (s *SQLiteStore) SaveGoogleToken(ctx context.Context, userID uuid.UUID, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO google_tokens (user_id, token, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			token = excluded.token,
			updated_at = excluded.updated_at
	`, userID.String(), string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save google token: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetGoogleToken(ctx context.Context, userID uuid.UUID) (*GoogleToken, error) {
	var data string
	var updatedAt time.Time

	err := s.db.QueryRowContext(ctx, `
		SELECT token, updated_at FROM google_tokens WHERE user_id = ?
	`, userID.String()).Scan(&data, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get google token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &GoogleToken{Token: &token, UpdatedAt: updatedAt}, nil
}

func (s *SQLiteStore) DeleteGoogleToken(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM google_tokens WHERE user_id = ?`, userID.String())
	if err != nil {
		return fmt.Errorf("failed to delete google token: %w", err)
	}
	return nil
}
