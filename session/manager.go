// ABOUTME: Per-principal session registry backed by a TTL cache
// ABOUTME: Wires each principal's CRM client, pacer, contact book and sync orchestrator
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/crm"
	"github.com/naobregon27/kommo/db"
	"github.com/naobregon27/kommo/models"
	"github.com/naobregon27/kommo/sync"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

const (
	DefaultTTL = 30 * time.Minute

	// StateTTL bounds how long a contact-source consent may take.
	StateTTL = 10 * time.Minute
)

// Session is everything one principal needs to talk to the external systems.
type Session struct {
	User         *models.User
	CRM          *crm.Client
	Pacer        sync.Pacer
	Contacts     *sync.ContactBook
	Orchestrator *sync.Orchestrator
}

// Options configure a Manager. Zero values fall back to defaults.
type Options struct {
	TTL           time.Duration
	SyncInterval  time.Duration
	CRMTimeout    time.Duration
	GoogleTimeout time.Duration
	Validator     sync.Validator
	Google        *oauth2.Config
	Snapshot      *sync.ContactSnapshot
	// PeopleOptions are appended when building People API clients.
	PeopleOptions []option.ClientOption
	// Now overrides the clock used for expiry.
	Now func() time.Time
}

type Manager struct {
	store    db.Store
	opts     Options
	logger   *zap.Logger
	sessions *Cache[uuid.UUID, *Session]
	states   *Cache[string, uuid.UUID]

	// One pacer per principal for the life of the process.
	pacerMu gosync.Mutex
	pacers  map[uuid.UUID]sync.Pacer
}

func NewManager(store db.Store, opts Options, logger *zap.Logger) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CRMTimeout <= 0 {
		opts.CRMTimeout = crm.DefaultTimeout
	}
	if opts.GoogleTimeout <= 0 {
		opts.GoogleTimeout = crm.DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		opts:     opts,
		logger:   logger,
		sessions: NewCache[uuid.UUID, *Session](opts.TTL, opts.Now),
		states:   NewCache[string, uuid.UUID](StateTTL, opts.Now),
		pacers:   make(map[uuid.UUID]sync.Pacer),
	}
}

// EnsureSession returns the principal's live session, building it from the
// credential store when absent or expired. It fails closed: any problem
// loading the principal or its CRM credentials is an AuthError.
func (m *Manager) EnsureSession(ctx context.Context, userID uuid.UUID) (*Session, error) {
	// The build is shared by concurrent callers.
	buildCtx := context.WithoutCancel(ctx)
	return m.sessions.GetOrCreate(userID, func() (*Session, error) {
		return m.buildSession(buildCtx, userID)
	})
}

// pacer returns the principal's pacer, creating it on first use.
func (m *Manager) pacer(userID uuid.UUID) sync.Pacer {
	m.pacerMu.Lock()
	defer m.pacerMu.Unlock()

	p, ok := m.pacers[userID]
	if !ok {
		p = sync.NewPacer(m.opts.SyncInterval)
		m.pacers[userID] = p
	}
	return p
}

func (m *Manager) buildSession(ctx context.Context, userID uuid.UUID) (*Session, error) {
	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return nil, apperr.Auth("failed to load principal", err)
	}
	if user == nil {
		return nil, apperr.Auth("unknown principal", nil)
	}

	logger := m.logger.With(zap.String("user_id", userID.String()))

	client, err := crm.NewClient(user.CRMCredentials,
		crm.WithTimeout(m.opts.CRMTimeout),
		crm.WithLogger(logger),
		crm.WithTokenUpdate(func(ctx context.Context, authToken, refreshToken string) error {
			return m.store.UpdateCRMTokens(ctx, userID, authToken, refreshToken)
		}),
	)
	if err != nil {
		return nil, apperr.Auth("CRM credentials unusable", err)
	}

	book := sync.NewContactBook(userID.String(), m.opts.Snapshot, logger)
	if err := m.attachContactSource(ctx, userID, book, logger); err != nil {
		return nil, err
	}

	pacer := m.pacer(userID)
	s := &Session{
		User:         user,
		CRM:          client,
		Pacer:        pacer,
		Contacts:     book,
		Orchestrator: sync.NewOrchestrator(book, client, pacer, m.opts.Validator, logger),
	}

	logger.Info("session: created", zap.String("username", user.Username))
	return s, nil
}

// attachContactSource wires the People API into book when the principal
// has a stored Google token.
func (m *Manager) attachContactSource(ctx context.Context, userID uuid.UUID, book *sync.ContactBook, logger *zap.Logger) error {
	if m.opts.Google == nil {
		return nil
	}
	stored, err := m.store.GetGoogleToken(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load Google token: %w", err)
	}
	if stored == nil {
		book.SetFetcher(nil)
		return nil
	}

	source, err := m.newPeopleSource(userID, stored.Token, logger)
	if err != nil {
		return err
	}
	book.SetFetcher(source)
	return nil
}

func (m *Manager) newPeopleSource(userID uuid.UUID, token *oauth2.Token, logger *zap.Logger) (*sync.PeopleSource, error) {
	// Token refreshes outlive the request that created the session.
	base := context.Background()
	ts := sync.NewTokenSource(base, m.opts.Google, token, func(ctx context.Context, tok *oauth2.Token) error {
		return m.store.SaveGoogleToken(ctx, userID, tok)
	}, logger)

	hc := &http.Client{
		Timeout:   m.opts.GoogleTimeout,
		Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(hc)}, m.opts.PeopleOptions...)
	return sync.NewPeopleSource(base, logger, opts...)
}

// Invalidate drops the principal's cached session. The pacer is kept.
func (m *Manager) Invalidate(userID uuid.UUID) {
	m.sessions.Delete(userID)
}

// EndSession drops the principal's cached session and its contact
// snapshot. The stored Google token is kept.
func (m *Manager) EndSession(userID uuid.UUID) error {
	m.Invalidate(userID)
	if m.opts.Snapshot == nil {
		return nil
	}
	if err := m.opts.Snapshot.Remove(userID.String()); err != nil {
		return fmt.Errorf("failed to remove contact snapshot: %w", err)
	}
	return nil
}

// NewOAuthState issues a single-use state value bound to the principal.
func (m *Manager) NewOAuthState(userID uuid.UUID) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)
	m.states.Set(state, userID)
	return state, nil
}

// ContactSourceAuthURL returns the Google consent URL for the principal.
func (m *Manager) ContactSourceAuthURL(userID uuid.UUID) (string, error) {
	if m.opts.Google == nil {
		return "", apperr.Internal(fmt.Errorf("google OAuth is not configured"))
	}
	if err := sync.CheckOAuthConfig(m.opts.Google); err != nil {
		return "", apperr.Internal(err)
	}
	state, err := m.NewOAuthState(userID)
	if err != nil {
		return "", err
	}
	return sync.AuthURL(m.opts.Google, state), nil
}

// ConnectContactSource completes the consent flow: it resolves state to a
// principal, exchanges code for tokens and persists them.
func (m *Manager) ConnectContactSource(ctx context.Context, state, code string) (uuid.UUID, error) {
	userID, ok := m.states.Pop(state)
	if !ok {
		return uuid.Nil, apperr.Auth("unknown or expired OAuth state", nil)
	}
	if code == "" {
		return userID, apperr.Validation("authorization code required")
	}
	if m.opts.Google == nil {
		return userID, apperr.Internal(fmt.Errorf("google OAuth is not configured"))
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: m.opts.GoogleTimeout})
	token, err := m.opts.Google.Exchange(exchangeCtx, code)
	if err != nil {
		return userID, apperr.Auth("failed to exchange authorization code", err)
	}
	if err := m.store.SaveGoogleToken(ctx, userID, token); err != nil {
		return userID, fmt.Errorf("failed to save Google token: %w", err)
	}

	// Fetch now even when no session was live, replacing any import-only snapshot.
	logger := m.logger.With(zap.String("user_id", userID.String()))
	s, err := m.EnsureSession(ctx, userID)
	if err != nil {
		logger.Warn("session: contact source connected without a usable session", zap.Error(err))
		return userID, nil
	}
	source, err := m.newPeopleSource(userID, token, logger)
	if err != nil {
		return userID, err
	}
	s.Contacts.SetFetcher(source)
	if _, err := s.Contacts.Refresh(ctx); err != nil {
		logger.Warn("session: initial contact fetch failed", zap.Error(err))
	}

	m.logger.Info("session: contact source connected", zap.String("user_id", userID.String()))
	return userID, nil
}

// DisconnectContactSource forgets the principal's Google token and contact cache.
func (m *Manager) DisconnectContactSource(ctx context.Context, userID uuid.UUID) error {
	if err := m.store.DeleteGoogleToken(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete Google token: %w", err)
	}

	if s, ok := m.sessions.Get(userID); ok {
		s.Contacts.SetFetcher(nil)
		if err := s.Contacts.Clear(); err != nil {
			return err
		}
	} else if m.opts.Snapshot != nil {
		if err := m.opts.Snapshot.Remove(userID.String()); err != nil {
			return err
		}
	}

	m.logger.Info("session: contact source disconnected", zap.String("user_id", userID.String()))
	return nil
}

// ContactSourceStatus reports whether the principal has a stored Google
// token and when it was last written.
func (m *Manager) ContactSourceStatus(ctx context.Context, userID uuid.UUID) (bool, *time.Time, error) {
	stored, err := m.store.GetGoogleToken(ctx, userID)
	if err != nil {
		return false, nil, fmt.Errorf("failed to load Google token: %w", err)
	}
	if stored == nil {
		return false, nil, nil
	}
	updated := stored.UpdatedAt
	return true, &updated, nil
}

// Sweep evicts expired sessions and states.
func (m *Manager) Sweep() int {
	return m.sessions.Sweep() + m.states.Sweep()
}

// RunJanitor sweeps on every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("session: swept expired entries", zap.Int("count", n))
			}
		}
	}
}
