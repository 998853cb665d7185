package crm

import (
	"context"
	"strings"
	"time"

	"github.com/naobregon27/kommo/apperr"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const MessageStatusPending = "pending"

// MessageReceipt acknowledges a queued outbound message.
type MessageReceipt struct {
	ID          string    `json:"id"`
	ContactID   string    `json:"contactId"`
	PhoneNumber string    `json:"phoneNumber"`
	MessageType string    `json:"messageType"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SendMessage records an outbound message for a contact. Delivery is not
// implemented; the receipt is always pending and no CRM call is made.
func (c *Client) SendMessage(ctx context.Context, contactID, phone, text, messageType string) (*MessageReceipt, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("message required")
	}
	if strings.TrimSpace(phone) == "" {
		return nil, apperr.Validation("phone number required")
	}
	if messageType == "" {
		messageType = "text"
	}

	receipt := &MessageReceipt{
		ID:          ulid.Make().String(),
		ContactID:   contactID,
		PhoneNumber: phone,
		MessageType: messageType,
		Status:      MessageStatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	c.logger.Info("crm: message queued",
		zap.String("message_id", receipt.ID),
		zap.String("contact_id", contactID),
		zap.String("type", messageType))

	return receipt, nil
}
