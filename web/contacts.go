package web

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/models"
	"github.com/naobregon27/kommo/sync"
	"go.uber.org/zap"
)

// handleListContacts serves the cached contact list. The principal must
// have connected the contact source; ?refresh=true refetches it.
func (s *Server) handleListContacts(c echo.Context) error {
	userID, _ := principal(c)
	ctx := c.Request().Context()

	authenticated, _, err := s.sessions.ContactSourceStatus(ctx, userID)
	if err != nil {
		return err
	}
	if !authenticated {
		return apperr.Auth("contact source not authenticated", nil)
	}

	sess, err := s.liveSession(c)
	if err != nil {
		return err
	}

	var contacts []models.Contact
	if c.QueryParam("refresh") == "true" {
		contacts, err = sess.Contacts.Refresh(ctx)
	} else {
		contacts, err = sess.Contacts.Contacts(ctx)
	}
	if err != nil {
		return err
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	return c.JSON(http.StatusOK, contacts)
}

func (s *Server) handleUploadContacts(c echo.Context) error {
	header, err := c.FormFile("contacts")
	if err != nil {
		return apperr.Validation("contacts file required")
	}
	file, err := header.Open()
	if err != nil {
		return apperr.Validation("contacts file unreadable")
	}
	defer file.Close()

	result, err := sync.ParseContactFile(file)
	if err != nil {
		return err
	}

	sess, err := s.liveSession(c)
	if err != nil {
		return err
	}
	added, total, err := sess.Contacts.Merge(c.Request().Context(), result.Contacts)
	if err != nil {
		return err
	}

	s.logger.Info("web: contacts uploaded",
		zap.String("file", header.Filename),
		zap.Int("parsed", len(result.Contacts)),
		zap.Int("skipped_lines", result.Skipped),
		zap.Int("added", added))

	return c.JSON(http.StatusOK, map[string]any{
		"message":       "contacts file processed",
		"contactsAdded": added,
		"totalContacts": total,
	})
}

type validateRequest struct {
	Numbers []string `json:"numbers"`
}

type numberValidation struct {
	Number          string `json:"number"`
	FormattedNumber string `json:"formattedNumber"`
	IsValid         bool   `json:"isValid"`
}

func (s *Server) handleValidateNumbers(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if req.Numbers == nil {
		return apperr.Validation("numbers required")
	}

	validator := s.opts.Validator
	results := make([]numberValidation, 0, len(req.Numbers))
	for _, n := range req.Numbers {
		results = append(results, numberValidation{
			Number:          n,
			FormattedNumber: sync.FormatNumber(n, s.opts.CountryCode),
			IsValid:         validator.IsEligible(n),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"results": results})
}

type sendMessageRequest struct {
	Message     string `json:"message"`
	PhoneNumber string `json:"phoneNumber"`
	MessageType string `json:"messageType"`
}

func (s *Server) handleSendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return apperr.Validation("phone number required")
	}

	sess, err := s.liveSession(c)
	if err != nil {
		return err
	}
	phone := sync.FormatNumber(req.PhoneNumber, s.opts.CountryCode)
	receipt, err := sess.CRM.SendMessage(c.Request().Context(), c.Param("id"), phone, req.Message, req.MessageType)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":     true,
		"status":      receipt.Status,
		"messageId":   receipt.ID,
		"contactId":   receipt.ContactID,
		"messageType": receipt.MessageType,
		"sentAt":      receipt.CreatedAt,
	})
}
