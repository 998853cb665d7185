// ABOUTME: Principal registration, login and logout handlers
// ABOUTME: Issues bearer tokens backed by the credential store
package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/db"
	"github.com/naobregon27/kommo/models"
	"go.uber.org/zap"
)

type registerRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	CRMClientID     string `json:"crm_client_id"`
	CRMClientSecret string `json:"crm_client_secret"`
	CRMRedirectURI  string `json:"crm_redirect_uri"`
	CRMBaseURL      string `json:"crm_base_url"`
	CRMAuthToken    string `json:"crm_auth_token"`
	CRMRefreshToken string `json:"crm_refresh_token"`
}

func (r *registerRequest) credentials() models.CRMCredentials {
	return models.CRMCredentials{
		ClientID:     strings.TrimSpace(r.CRMClientID),
		ClientSecret: strings.TrimSpace(r.CRMClientSecret),
		RedirectURI:  strings.TrimSpace(r.CRMRedirectURI),
		BaseURL:      strings.TrimRight(strings.TrimSpace(r.CRMBaseURL), "/"),
		AuthToken:    strings.TrimSpace(r.CRMAuthToken),
		RefreshToken: strings.TrimSpace(r.CRMRefreshToken),
	}
}

func (r *registerRequest) missing() []string {
	var missing []string
	if strings.TrimSpace(r.Username) == "" {
		missing = append(missing, "username")
	}
	if r.Password == "" {
		missing = append(missing, "password")
	}
	for _, field := range r.credentials().Missing() {
		missing = append(missing, "crm_"+field)
	}
	return missing
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// credentialsView is what a principal may see of its own CRM credentials.
type credentialsView struct {
	ClientID        string `json:"client_id"`
	RedirectURI     string `json:"redirect_uri"`
	BaseURL         string `json:"base_url"`
	HasAuthToken    bool   `json:"has_auth_token"`
	HasRefreshToken bool   `json:"has_refresh_token"`
}

func redactCredentials(c models.CRMCredentials) credentialsView {
	return credentialsView{
		ClientID:        c.ClientID,
		RedirectURI:     c.RedirectURI,
		BaseURL:         c.BaseURL,
		HasAuthToken:    c.AuthToken != "",
		HasRefreshToken: c.RefreshToken != "",
	}
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if missing := req.missing(); len(missing) > 0 {
		e := apperr.Validation("missing required fields")
		e.Details = map[string]any{"required_fields": missing}
		return e
	}

	hash, err := db.HashPassword(req.Password)
	if err != nil {
		return err
	}
	user := &models.User{
		Username:       strings.TrimSpace(req.Username),
		PasswordHash:   hash,
		CRMCredentials: req.credentials(),
	}
	ctx := c.Request().Context()
	if err := s.store.CreateUser(ctx, user); err != nil {
		return err
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return err
	}

	s.logger.Info("web: principal registered", zap.String("user_id", user.ID.String()), zap.String("username", user.Username))
	return c.JSON(http.StatusCreated, map[string]any{
		"user":  user,
		"token": token,
	})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return apperr.Validation("username and password are required")
	}

	ctx := c.Request().Context()
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return err
	}
	if user == nil || !db.CheckPassword(user.PasswordHash, req.Password) {
		return apperr.Auth("invalid username or password", nil)
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return err
	}

	s.logger.Info("web: principal logged in", zap.String("user_id", user.ID.String()))
	return c.JSON(http.StatusOK, map[string]any{
		"token":           token,
		"user":            user,
		"crm_credentials": redactCredentials(user.CRMCredentials),
	})
}

// handleLogout revokes every bearer token of the principal and drops its
// live clients and contact snapshot.
func (s *Server) handleLogout(c echo.Context) error {
	userID, _ := principal(c)
	if err := s.store.DeleteUserSessions(c.Request().Context(), userID); err != nil {
		return err
	}
	if err := s.sessions.EndSession(userID); err != nil {
		return err
	}

	s.logger.Info("web: principal logged out", zap.String("user_id", userID.String()))
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) handleAuthStatus(c echo.Context) error {
	userID, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusOK, map[string]any{"authenticated": false})
	}

	user, err := s.store.GetUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	if user == nil {
		return c.JSON(http.StatusOK, map[string]any{"authenticated": false})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":           user.ID,
			"username":     user.Username,
			"crm_base_url": user.CRMCredentials.BaseURL,
		},
	})
}

func (s *Server) issueToken(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := db.NewSessionToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	err = s.store.CreateSession(ctx, &models.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.TokenTTL),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}
