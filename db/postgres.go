// ABOUTME: PostgreSQL implementation of the credential store
// ABOUTME: Uses a pgx connection pool for multi-instance deployments
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/models"
	"golang.org/x/oauth2"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, verifies the connection and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	creds := user.CRMCredentials
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, user.ID, user.Username, user.PasswordHash, creds.ClientID, creds.ClientSecret, creds.RedirectURI,
		creds.BaseURL, creds.AuthToken, nullString(creds.RefreshToken), user.CreatedAt, user.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperr.Conflict("username already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *PostgresStore) queryUser(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanPgUser(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanPgUser(rows)
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

func scanPgUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var refresh *string

	err := row.Scan(
		&user.ID,
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
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if refresh != nil {
		user.CRMCredentials.RefreshToken = *refresh
	}
	return &user, nil
}

func (s *PostgresStore) UpdateCRMTokens(ctx context.Context, userID uuid.UUID, authToken, refreshToken string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET crm_auth_token = $1, crm_refresh_token = COALESCE($2, crm_refresh_token), updated_at = $3
		WHERE id = $4
	`, authToken, nullString(refreshToken), time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update crm tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)
	`, session.Token, session.UserID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	err := s.pool.QueryRow(ctx, `
		SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = $1 AND expires_at > now()
	`, token).Scan(&session.Token, &session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (s *PostgresStore) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveGoogleToken(ctx context.Context, userID uuid.UUID, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO google_tokens (user_id, token, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at
	`, userID, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save google token: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGoogleToken(ctx context.Context, userID uuid.UUID) (*GoogleToken, error) {
	var data []byte
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT token, updated_at FROM google_tokens WHERE user_id = $1
	`, userID).Scan(&data, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get google token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &GoogleToken{Token: &token, UpdatedAt: updatedAt}, nil
}

func (s *PostgresStore) DeleteGoogleToken(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM google_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete google token: %w", err)
	}
	return nil
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
