// ABOUTME: Kommo REST v4 client scoped to one principal's credentials
// ABOUTME: Handles bearer auth, one-shot token refresh on 401 and upstream error mapping
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	gosync "sync"
	"time"

	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	DefaultTimeout = 15 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 4 << 20
)

// TokenUpdateFunc persists a refreshed token pair. refreshToken is empty
// when the CRM did not rotate it.
type TokenUpdateFunc func(ctx context.Context, authToken, refreshToken string) error

type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its timeout is left untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithTokenUpdate(fn TokenUpdateFunc) Option {
	return func(c *Client) { c.onToken = fn }
}

// Client talks to one CRM account. It is safe for concurrent use.
type Client struct {
	baseURL string
	oauth   *oauth2.Config
	hc      *http.Client
	timeout time.Duration
	logger  *zap.Logger
	onToken TokenUpdateFunc

	mu           gosync.Mutex
	token        string
	refreshToken string
	fields       *CustomFieldIDs

	refreshMu gosync.Mutex
}

// NewClient builds a client from stored credentials. Incomplete credentials
// are an AuthError since the principal cannot reach the CRM with them.
func NewClient(creds models.CRMCredentials, opts ...Option) (*Client, error) {
	if missing := creds.Missing(); len(missing) > 0 {
		return nil, apperr.Auth("missing CRM credentials: "+strings.Join(missing, ", "), nil)
	}

	base := strings.TrimRight(creds.BaseURL, "/")
	c := &Client{
		baseURL: base,
		oauth: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Scopes:       []string{"crm"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth2/authorize",
				TokenURL:  base + "/oauth2/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		timeout:      DefaultTimeout,
		logger:       zap.NewNop(),
		token:        creds.AuthToken,
		refreshToken: creds.RefreshToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: c.timeout}
	}

	return c, nil
}

// BaseURL returns the account endpoint the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// AuthorizationURL returns the CRM consent page for re-authorising the integration.
func (c *Client) AuthorizationURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("mode", "post_message"))
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// refresh exchanges the refresh token for a new access token. Concurrent
// callers that saw the same stale token share one exchange.
func (c *Client) refresh(ctx context.Context, stale string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.Lock()
	if c.token != stale {
		c.mu.Unlock()
		return nil
	}
	rt := c.refreshToken
	c.mu.Unlock()

	tok, err := c.exchangeRefreshToken(ctx, rt)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = tok.AccessToken
	rotated := ""
	if tok.RefreshToken != "" && tok.RefreshToken != rt {
		c.refreshToken = tok.RefreshToken
		rotated = tok.RefreshToken
	}
	c.mu.Unlock()

	c.logger.Info("crm: access token refreshed", zap.String("base_url", c.baseURL))

	if c.onToken != nil {
		if err := c.onToken(ctx, tok.AccessToken, rotated); err != nil {
			// The in-memory token is still valid for this session.
			c.logger.Warn("crm: failed to persist refreshed token", zap.Error(err))
		}
	}
	return nil
}

type refreshRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
	RedirectURI  string `json:"redirect_uri"`
}

// exchangeRefreshToken posts the refresh grant as JSON, redirect_uri included.
func (c *Client) exchangeRefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("failed to refresh CRM token: no refresh token stored")
	}
	payload, err := json.Marshal(refreshRequest{
		ClientID:     c.oauth.ClientID,
		ClientSecret: c.oauth.ClientSecret,
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
		RedirectURI:  c.oauth.RedirectURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh request: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, "/oauth2/access_token", payload, "")
	if err != nil {
		return nil, fmt.Errorf("failed to refresh CRM token: %w", err)
	}
	if resp.status < 200 || resp.status > 299 {
		return nil, apperr.Upstream(
			fmt.Sprintf("CRM token refresh returned %d", resp.status),
			resp.status, decodePayload(resp.body), nil)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(resp.body, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode refreshed token: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("failed to refresh CRM token: response has no access_token")
	}
	return &tok, nil
}

type response struct {
	status int
	body   []byte
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, apperr.Upstream(fmt.Sprintf("CRM %s %s failed", method, path), 0, nil, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperr.Upstream(fmt.Sprintf("CRM %s %s: failed to read response", method, path), resp.StatusCode, nil, err)
	}

	return &response{status: resp.StatusCode, body: data}, nil
}

// do issues one API call. A 401 triggers exactly one refresh and one retry;
// a second 401 or a failed refresh surfaces as an AuthError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	token := c.currentToken()
	resp, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized {
		c.logger.Info("crm: token rejected, refreshing", zap.String("path", path))
		if err := c.refresh(ctx, token); err != nil {
			return apperr.Auth("CRM credentials rejected and refresh failed", err)
		}
		resp, err = c.send(ctx, method, path, payload, c.currentToken())
		if err != nil {
			return err
		}
		if resp.status == http.StatusUnauthorized {
			return apperr.Auth("CRM credentials rejected after refresh", nil)
		}
	}

	if resp.status < 200 || resp.status > 299 {
		c.logger.Warn("crm: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.status))
		return apperr.Upstream(
			fmt.Sprintf("CRM %s %s returned %d", method, path, resp.status),
			resp.status, decodePayload(resp.body), nil)
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return apperr.Upstream(fmt.Sprintf("CRM %s %s returned malformed JSON", method, path), resp.status, nil, err)
	}
	return nil
}

// decodePayload returns the JSON body when it parses, otherwise the raw text.
func decodePayload(body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

// VerifyConnection fetches the account behind the token.
func (c *Client) VerifyConnection(ctx context.Context) (*models.AccountInfo, error) {
	var account struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		Subdomain string `json:"subdomain"`
		CreatedAt int64  `json:"created_at"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v4/account", nil, &account); err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, apperr.Upstream("CRM account response has no id", http.StatusOK, nil, nil)
	}

	c.logger.Info("crm: connection verified",
		zap.Int64("account_id", account.ID),
		zap.String("account", account.Name))

	return &models.AccountInfo{
		ID:        account.ID,
		Name:      account.Name,
		Subdomain: account.Subdomain,
		CreatedAt: account.CreatedAt,
	}, nil
}

// ListPipelines returns the account's lead pipelines in CRM order.
func (c *Client) ListPipelines(ctx context.Context) ([]models.Pipeline, error) {
	var resp struct {
		Embedded *struct {
			Pipelines []struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			} `json:"pipelines"`
		} `json:"_embedded"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v4/leads/pipelines", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Embedded == nil || resp.Embedded.Pipelines == nil {
		return nil, apperr.Upstream("CRM pipelines response is missing _embedded.pipelines", http.StatusOK, nil, nil)
	}

	pipelines := make([]models.Pipeline, 0, len(resp.Embedded.Pipelines))
	for _, p := range resp.Embedded.Pipelines {
		pipelines = append(pipelines, models.Pipeline{ID: p.ID, Name: p.Name})
	}
	return pipelines, nil
}

// ListStages returns the statuses of one pipeline.
func (c *Client) ListStages(ctx context.Context, pipelineID int64) ([]models.Stage, error) {
	if pipelineID == 0 {
		return nil, apperr.Validation("pipeline required")
	}

	var resp struct {
		Embedded *struct {
			Statuses []models.Stage `json:"statuses"`
		} `json:"_embedded"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v4/leads/pipelines/%d", pipelineID), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Embedded == nil || resp.Embedded.Statuses == nil {
		return nil, apperr.Upstream("CRM pipeline response is missing _embedded.statuses", http.StatusOK, nil, nil)
	}
	return resp.Embedded.Statuses, nil
}

// CreateContact creates a CRM contact and returns its id. The phone is
// stored in cleaned form.
func (c *Client) CreateContact(ctx context.Context, name, phone, email string) (int64, error) {
	fields, err := c.ResolveCustomFieldIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve custom fields: %w", err)
	}

	contact := contactPayload{Name: name}
	if cleaned := models.CleanPhone(phone); cleaned != "" {
		contact.CustomFields = append(contact.CustomFields, fieldValue{
			FieldID: fields.Phone,
			Values:  []valueEntry{{Value: cleaned}},
		})
	}
	if email != "" && fields.Email != 0 {
		contact.CustomFields = append(contact.CustomFields, fieldValue{
			FieldID: fields.Email,
			Values:  []valueEntry{{Value: email}},
		})
	}

	var resp struct {
		Embedded struct {
			Contacts []struct {
				ID int64 `json:"id"`
			} `json:"contacts"`
		} `json:"_embedded"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v4/contacts", []contactPayload{contact}, &resp); err != nil {
		return 0, err
	}
	if len(resp.Embedded.Contacts) == 0 {
		return 0, apperr.Upstream("CRM create contact response has no contacts", http.StatusOK, nil, nil)
	}

	id := resp.Embedded.Contacts[0].ID
	c.logger.Debug("crm: contact created", zap.Int64("contact_id", id))
	return id, nil
}

// CreateLead creates "Lead - <name>" linked to contactID in the pipeline.
// statusID zero leaves the lead in the pipeline's first stage.
func (c *Client) CreateLead(ctx context.Context, contactID int64, name string, pipelineID, statusID int64) (int64, error) {
	if pipelineID == 0 {
		return 0, apperr.Validation("pipeline required")
	}

	lead := leadPayload{
		Name:       "Lead - " + name,
		Price:      0,
		PipelineID: pipelineID,
		StatusID:   statusID,
	}
	lead.Embedded.Contacts = []entityRef{{ID: contactID}}

	var resp struct {
		Embedded struct {
			Leads []struct {
				ID int64 `json:"id"`
			} `json:"leads"`
		} `json:"_embedded"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v4/leads", []leadPayload{lead}, &resp); err != nil {
		return 0, err
	}
	if len(resp.Embedded.Leads) == 0 {
		return 0, apperr.Upstream("CRM create lead response has no leads", http.StatusOK, nil, nil)
	}

	id := resp.Embedded.Leads[0].ID
	c.logger.Debug("crm: lead created", zap.Int64("lead_id", id), zap.Int64("contact_id", contactID))
	return id, nil
}

type valueEntry struct {
	Value string `json:"value"`
}

type fieldValue struct {
	FieldID int64        `json:"field_id"`
	Values  []valueEntry `json:"values"`
}

type contactPayload struct {
	Name         string       `json:"name"`
	CustomFields []fieldValue `json:"custom_fields_values,omitempty"`
}

type entityRef struct {
	ID int64 `json:"id"`
}

type leadPayload struct {
	Name       string `json:"name"`
	Price      int    `json:"price"`
	PipelineID int64  `json:"pipeline_id"`
	StatusID   int64  `json:"status_id,omitempty"`
	Embedded   struct {
		Contacts []entityRef `json:"contacts"`
	} `json:"_embedded"`
}

