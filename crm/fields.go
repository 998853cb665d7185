package crm

import (
	"context"
	"net/http"
	"strings"

	"github.com/naobregon27/kommo/apperr"
	"go.uber.org/zap"
)

// CustomFieldIDs are the contact custom fields used to store phone and
// email. Email is zero when the account has no email field.
type CustomFieldIDs struct {
	Phone int64
	Email int64
}

type customField struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Code string `json:"code"`
}

var (
	phoneNames = []string{"phone", "teléfono", "telefono"}
	emailNames = []string{"email", "correo"}
)

// findField matches on declared type or code first, then on a
// case-insensitive name substring.
func findField(fields []customField, kind string, names []string) *customField {
	for i := range fields {
		f := &fields[i]
		if strings.EqualFold(f.Type, kind) || strings.EqualFold(f.Code, kind) {
			return f
		}
	}
	for i := range fields {
		name := strings.ToLower(fields[i].Name)
		for _, n := range names {
			if strings.Contains(name, n) {
				return &fields[i]
			}
		}
	}
	return nil
}

// ResolveCustomFieldIDs discovers the phone and email field ids, creating a
// phone field when the account has none. The result is cached on the client.
func (c *Client) ResolveCustomFieldIDs(ctx context.Context) (CustomFieldIDs, error) {
	c.mu.Lock()
	cached := c.fields
	c.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	var resp struct {
		Embedded struct {
			CustomFields []customField `json:"custom_fields"`
		} `json:"_embedded"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v4/contacts/custom_fields", nil, &resp); err != nil {
		return CustomFieldIDs{}, err
	}
	fields := resp.Embedded.CustomFields

	var ids CustomFieldIDs
	if phone := findField(fields, "phone", phoneNames); phone != nil {
		ids.Phone = phone.ID
	} else {
		c.logger.Info("crm: no phone field found, creating one")
		id, err := c.createPhoneField(ctx)
		if err != nil {
			return CustomFieldIDs{}, err
		}
		ids.Phone = id
	}
	if email := findField(fields, "email", emailNames); email != nil {
		ids.Email = email.ID
	}

	c.logger.Debug("crm: custom fields resolved",
		zap.Int64("phone_field_id", ids.Phone),
		zap.Int64("email_field_id", ids.Email))

	c.mu.Lock()
	c.fields = &ids
	c.mu.Unlock()
	return ids, nil
}

func (c *Client) createPhoneField(ctx context.Context) (int64, error) {
	field := map[string]any{
		"name":         "Teléfono",
		"type":         "multitext",
		"code":         "PHONE",
		"sort":         100,
		"is_api_only":  false,
		"is_deletable": true,
		"is_visible":   true,
		"is_required":  false,
	}

	var resp struct {
		Embedded struct {
			CustomFields []customField `json:"custom_fields"`
		} `json:"_embedded"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v4/contacts/custom_fields", []map[string]any{field}, &resp); err != nil {
		return 0, err
	}
	if len(resp.Embedded.CustomFields) == 0 || resp.Embedded.CustomFields[0].ID == 0 {
		return 0, apperr.Upstream("CRM create custom field response has no id", http.StatusOK, nil, nil)
	}
	return resp.Embedded.CustomFields[0].ID, nil
}
