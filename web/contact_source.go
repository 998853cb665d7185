package web

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (s *Server) handleContactSourceAuthURL(c echo.Context) error {
	userID, _ := principal(c)
	authURL, err := s.sessions.ContactSourceAuthURL(userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"authUrl": authURL})
}

// handleContactSourceCallback finishes the Google consent flow. It never
// renders an error body; the browser always lands back on the front end.
func (s *Server) handleContactSourceCallback(c echo.Context) error {
	if reason := c.QueryParam("error"); reason != "" {
		s.logger.Warn("web: contact source consent denied", zap.String("reason", reason))
		return s.redirectToFrontend(c, "error")
	}

	userID, err := s.sessions.ConnectContactSource(c.Request().Context(), c.QueryParam("state"), c.QueryParam("code"))
	if err != nil {
		s.logger.Warn("web: contact source callback failed", zap.Error(err))
		return s.redirectToFrontend(c, "error")
	}

	s.logger.Info("web: contact source connected", zap.String("user_id", userID.String()))
	return s.redirectToFrontend(c, "success")
}

func (s *Server) redirectToFrontend(c echo.Context, outcome string) error {
	target, err := url.Parse(s.opts.FrontendURL)
	if err != nil || s.opts.FrontendURL == "" {
		target = &url.URL{Path: "/"}
	}
	q := target.Query()
	q.Set("auth", outcome)
	target.RawQuery = q.Encode()
	return c.Redirect(http.StatusFound, target.String())
}

func (s *Server) handleContactSourceLogout(c echo.Context) error {
	userID, _ := principal(c)
	if err := s.sessions.DisconnectContactSource(c.Request().Context(), userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "contact source disconnected"})
}

func (s *Server) handleContactSourceStatus(c echo.Context) error {
	userID, _ := principal(c)
	authenticated, lastAuth, err := s.sessions.ContactSourceStatus(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"authenticated": authenticated,
		"lastAuthTime":  lastAuth,
	})
}
