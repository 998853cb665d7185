package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/naobregon27/kommo/apperr"
	"go.uber.org/zap"
)

type errorResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// handleError renders every failure as JSON. Internal errors are logged
// and replaced by a generic message.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := s.toErrorResponse(err)
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.logger.Error("web: failed to write error response", zap.Error(err))
	}
}

func (s *Server) toErrorResponse(err error) (int, errorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			message = m
		}
		return he.Code, errorResponse{Error: http.StatusText(he.Code), Message: message}
	}

	e := apperr.From(err)
	message := e.Message
	if e.Code == apperr.CodeInternal {
		s.logger.Error("web: internal error", zap.Error(err))
		message = "internal server error"
	}

	var details map[string]any
	if len(e.Details) > 0 {
		details = e.Details
	}
	return e.Status, errorResponse{
		Error:   http.StatusText(e.Status),
		Message: message,
		Details: details,
	}
}
