package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	database, err := OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store := NewSQLiteStore(database)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testUser(username string) *models.User {
	return &models.User{
		Username:     username,
		PasswordHash: "hash",
		CRMCredentials: models.CRMCredentials{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURI:  "https://app.example.com/cb",
			BaseURL:      "https://acme.kommo.com",
			AuthToken:    "token-1",
		},
	}
}

// exerciseStore runs the behaviour every Store implementation must share.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		user := testUser("ana")
		require.NoError(t, store.CreateUser(ctx, user))
		assert.NotEqual(t, uuid.Nil, user.ID)

		err := store.CreateUser(ctx, testUser("ana"))
		assert.True(t, apperr.Is(err, apperr.CodeConflict), "duplicate username should conflict, got %v", err)

		got, err := store.GetUserByUsername(ctx, "ana")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, "https://acme.kommo.com", got.CRMCredentials.BaseURL)
		assert.Empty(t, got.CRMCredentials.RefreshToken)

		missing, err := store.GetUserByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, missing)

		require.NoError(t, store.UpdateCRMTokens(ctx, user.ID, "token-2", "refresh-2"))
		require.NoError(t, store.UpdateCRMTokens(ctx, user.ID, "token-3", ""))
		got, err = store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "token-3", got.CRMCredentials.AuthToken)
		assert.Equal(t, "refresh-2", got.CRMCredentials.RefreshToken)

		err = store.UpdateCRMTokens(ctx, uuid.New(), "x", "")
		assert.True(t, apperr.Is(err, apperr.CodeNotFound))

		users, err := store.ListUsers(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("sessions", func(t *testing.T) {
		user := testUser("luis")
		require.NoError(t, store.CreateUser(ctx, user))

		live := &models.Session{Token: "live", UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}
		expired := &models.Session{Token: "expired", UserID: user.ID, ExpiresAt: time.Now().Add(-time.Hour)}
		require.NoError(t, store.CreateSession(ctx, live))
		require.NoError(t, store.CreateSession(ctx, expired))

		got, err := store.GetSession(ctx, "live")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.UserID)

		got, err = store.GetSession(ctx, "expired")
		require.NoError(t, err)
		assert.Nil(t, got)

		require.NoError(t, store.DeleteUserSessions(ctx, user.ID))
		got, err = store.GetSession(ctx, "live")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("google tokens are keyed by principal", func(t *testing.T) {
		a := testUser("a")
		b := testUser("b")
		require.NoError(t, store.CreateUser(ctx, a))
		require.NoError(t, store.CreateUser(ctx, b))

		expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		require.NoError(t, store.SaveGoogleToken(ctx, a.ID, &oauth2.Token{AccessToken: "at-1", RefreshToken: "rt", Expiry: expiry}))
		require.NoError(t, store.SaveGoogleToken(ctx, a.ID, &oauth2.Token{AccessToken: "at-2", RefreshToken: "rt", Expiry: expiry}))

		tok, err := store.GetGoogleToken(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, tok)
		assert.Equal(t, "at-2", tok.Token.AccessToken)
		assert.True(t, expiry.Equal(tok.Token.Expiry))

		other, err := store.GetGoogleToken(ctx, b.ID)
		require.NoError(t, err)
		assert.Nil(t, other)

		require.NoError(t, store.DeleteGoogleToken(ctx, a.ID))
		tok, err = store.GetGoogleToken(ctx, a.ID)
		require.NoError(t, err)
		assert.Nil(t, tok)
	})
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, setupTestStore(t))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestNewSessionToken(t *testing.T) {
	a, err := NewSessionToken()
	require.NoError(t, err)
	b, err := NewSessionToken()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
