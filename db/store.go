// ABOUTME: Credential store contract shared by the SQLite and PostgreSQL backends
// ABOUTME: Holds principals, bearer sessions and per-principal contact-source tokens
package db

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/naobregon27/kommo/models"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

// Store persists everything that is keyed by principal. Lookups return
// (nil, nil) when the row does not exist.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateCRMTokens(ctx context.Context, userID uuid.UUID, authToken, refreshToken string) error

	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteUserSessions(ctx context.Context, userID uuid.UUID) error

	SaveGoogleToken(ctx context.Context, userID uuid.UUID, token *oauth2.Token) error
	GetGoogleToken(ctx context.Context, userID uuid.UUID) (*GoogleToken, error)
	DeleteGoogleToken(ctx context.Context, userID uuid.UUID) error

	Close() error
}

// GoogleToken is a stored contact-source token set.
type GoogleToken struct {
	Token     *oauth2.Token
	UpdatedAt time.Time
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewSessionToken returns a random URL-safe bearer token.
func NewSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
