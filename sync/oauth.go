// ABOUTME: OAuth configuration and token handling for the Google contact source
// ABOUTME: Builds the consent URL, exchanges codes and persists refreshed tokens
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ContactsScope is the only Google scope the service requests.
const ContactsScope = "https://www.googleapis.com/auth/contacts.readonly"

// NewOAuthConfig creates the OAuth2 config for the People API.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{ContactsScope},
		Endpoint:     google.Endpoint,
	}
}

// CheckOAuthConfig reports whether the client credentials are set.
func CheckOAuthConfig(config *oauth2.Config) error {
	if config.ClientID == "" || config.ClientSecret == "" {
		return errors.New("google OAuth credentials not configured. Set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET environment variables")
	}
	return nil
}

// AuthURL returns the consent page URL. Offline access with forced consent
// guarantees a refresh token on every grant.
func AuthURL(config *oauth2.Config, state string) string {
	return config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// TokenSaver persists a token for the principal it was issued to.
type TokenSaver func(ctx context.Context, token *oauth2.Token) error

// NewTokenSource returns a token source that refreshes through config and
// hands every newly minted token to save.
func NewTokenSource(ctx context.Context, config *oauth2.Config, token *oauth2.Token, save TokenSaver, logger *zap.Logger) oauth2.TokenSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &persistingTokenSource{
		ctx:    ctx,
		base:   oauth2.ReuseTokenSource(token, config.TokenSource(ctx, token)),
		save:   save,
		last:   token.AccessToken,
		logger: logger,
	}
}

type persistingTokenSource struct {
	ctx    context.Context
	base   oauth2.TokenSource
	save   TokenSaver
	logger *zap.Logger

	mu   gosync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh Google token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken == s.last || s.save == nil {
		return token, nil
	}
	s.last = token.AccessToken

	if err := s.save(s.ctx, token); err != nil {
		s.logger.Warn("contacts: failed to persist refreshed Google token", zap.Error(err))
	} else {
		s.logger.Info("contacts: Google token refreshed")
	}
	return token, nil
}
