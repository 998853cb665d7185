// ABOUTME: Principal database operations for the SQLite store
// ABOUTME: Handles user creation, lookups and CRM token updates
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/models"
)

// SQLiteStore implements Store on top of a *sql.DB opened with OpenDatabase.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(database *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const userColumns = `id, username, password_hash, crm_client_id, crm_client_secret, crm_redirect_uri,
	crm_base_url, crm_auth_token, crm_refresh_token, created_at, updated_at`

func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	creds := user.CRMCredentials
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID.String(), user.Username, user.PasswordHash, creds.ClientID, creds.ClientSecret, creds.RedirectURI,
		creds.BaseURL, creds.AuthToken, nullString(creds.RefreshToken), user.CreatedAt, user.UpdatedAt)

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return apperr.Conflict("username already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
	return scanUser(row)
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func (s *SQLiteStore) UpdateCRMTokens(ctx context.Context, userID uuid.UUID, authToken, refreshToken string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET crm_auth_token = ?, crm_refresh_token = COALESCE(?, crm_refresh_token), updated_at = ?
		WHERE id = ?
	`, authToken, nullString(refreshToken), time.Now().UTC(), userID.String())
	if err != nil {
		return fmt.Errorf("failed to update crm tokens: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var id string
	var refresh sql.NullString

	err := row.Scan(
		&id,
		&user.Username,
		&user.PasswordHash,
		&user.CRMCredentials.ClientID,
		&user.CRMCredentials.ClientSecret,
		&user.CRMCredentials.RedirectURI,
		&user.CRMCredentials.BaseURL,
		&user.CRMCredentials.AuthToken,
		&refresh,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", id, err)
	}
	user.CRMCredentials.RefreshToken = refresh.String
	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
