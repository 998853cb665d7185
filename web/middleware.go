package web

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/session"
	"go.uber.org/zap"
)

const principalKey = "principal"

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get(echo.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate resolves a bearer token to its principal. Requests without a
// valid token pass through anonymously; requireAuth rejects them.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request())
		if token == "" {
			return next(c)
		}

		sess, err := s.store.GetSession(c.Request().Context(), token)
		if err != nil {
			return err
		}
		if sess != nil {
			c.Set(principalKey, sess.UserID)
		}
		return next(c)
	}
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := principal(c); !ok {
			return apperr.Auth("authentication required", nil)
		}
		return next(c)
	}
}

func principal(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(principalKey).(uuid.UUID)
	return id, ok
}

// liveSession returns the caller's session, building it if needed.
func (s *Server) liveSession(c echo.Context) (*session.Session, error) {
	userID, ok := principal(c)
	if !ok {
		return nil, apperr.Auth("authentication required", nil)
	}
	return s.sessions.EnsureSession(c.Request().Context(), userID)
}

// requestLogger logs one line per request. Only the path is logged so
// OAuth codes in query strings stay out of the logs.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				s.logger.Warn("web: request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			s.logger.Info("web: request", fields...)
			return nil
		},
	})
}
