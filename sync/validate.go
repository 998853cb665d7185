// ABOUTME: Phone eligibility filter applied before any CRM call
// ABOUTME: Rejects emergency numbers, service codes and implausible digit counts
package sync

import (
	"strings"

	"github.com/naobregon27/kommo/models"
)

const (
	MinPhoneDigits = 5
	MaxPhoneDigits = 15

	// ReasonInvalidPhone is recorded for contacts the filter rejects.
	ReasonInvalidPhone = "invalid phone number"
)

// EmergencyNumbers are short emergency-service numbers that must never become leads.
var EmergencyNumbers = []string{"911", "112", "100", "101", "102", "103", "107", "110", "119"}

// Validator decides phone eligibility against a denylist of cleaned numbers.
// The zero Validator uses EmergencyNumbers.
type Validator struct {
	denylist map[string]struct{}
}

// NewValidator builds a validator. An empty denylist falls back to EmergencyNumbers.
func NewValidator(denylist []string) Validator {
	if len(denylist) == 0 {
		denylist = EmergencyNumbers
	}
	v := Validator{denylist: make(map[string]struct{}, len(denylist))}
	for _, n := range denylist {
		v.denylist[models.CleanPhone(n)] = struct{}{}
	}
	return v
}

var defaultValidator = NewValidator(nil)

// IsEligible reports whether raw may be sent to the CRM.
func (v Validator) IsEligible(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}

	denylist := v.denylist
	if denylist == nil {
		denylist = defaultValidator.denylist
	}
	cleaned := models.CleanPhone(raw)
	if _, denied := denylist[cleaned]; denied {
		return false
	}

	if strings.HasPrefix(raw, "*") || strings.HasPrefix(raw, "#") {
		return false
	}

	n := len(models.PhoneDigits(cleaned))
	return n >= MinPhoneDigits && n <= MaxPhoneDigits
}

// IsEligible applies the default emergency-number denylist.
func IsEligible(raw string) bool {
	return defaultValidator.IsEligible(raw)
}

// FormatNumber reduces raw to digits and prefixes countryCode when missing.
func FormatNumber(raw, countryCode string) string {
	digits := models.PhoneDigits(raw)
	if digits == "" || countryCode == "" || strings.HasPrefix(digits, countryCode) {
		return digits
	}
	return countryCode + digits
}
