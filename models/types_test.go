// ABOUTME: Tests for sync data models
// ABOUTME: Validates SyncOutcome invariants and credential checks
package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeConstructorsHoldInvariants(t *testing.T) {
	tests := []struct {
		name    string
		outcome SyncOutcome
		success bool
	}{
		{"lead created", LeadCreated("Luis", 1, 2), true},
		{"filtered", FilteredOut("Ana", "invalid phone number"), false},
		{"contact failed", ContactCreateFailed("Eva", "boom"), false},
		{"lead failed", LeadCreateFailed("Leo", 3, "boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.outcome
			assert.Equal(t, tt.success, o.Success)
			if o.Success {
				assert.NotZero(t, o.ContactID)
				assert.NotZero(t, o.LeadID)
				assert.Empty(t, o.Error)
			} else {
				assert.NotEmpty(t, o.Error)
				assert.Zero(t, o.LeadID)
			}
		})
	}
}

func TestOutcomeJSONOmitsAbsentIDs(t *testing.T) {
	data, err := json.Marshal(FilteredOut("Ana", "invalid phone number"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "Ana", decoded["name"])
	assert.Equal(t, false, decoded["success"])
	assert.Equal(t, "invalid phone number", decoded["error"])
	assert.NotContains(t, decoded, "contactId")
	assert.NotContains(t, decoded, "leadId")
}

func TestSyncJobFailed(t *testing.T) {
	job := &SyncJob{
		Contacts: []SyncOutcome{
			LeadCreated("a", 1, 2),
			FilteredOut("b", "invalid phone number"),
			ContactCreateFailed("c", "x"),
			LeadCreateFailed("d", 4, "y"),
		},
	}

	assert.Equal(t, 2, job.Failed())
}

func TestCRMCredentialsMissing(t *testing.T) {
	creds := CRMCredentials{ClientID: "id", BaseURL: "https://example.kommo.com"}

	assert.Equal(t, []string{"client_secret", "redirect_uri", "auth_token"}, creds.Missing())

	creds.ClientSecret = "s"
	creds.RedirectURI = "https://app/cb"
	creds.AuthToken = "t"
	assert.Empty(t, creds.Missing())
}

func TestCleanPhone(t *testing.T) {
	assert.Equal(t, "541123456789", CleanPhone("+54 11 2345-6789"))
	assert.Equal(t, "5551234", CleanPhone("(555) 1234"))
	assert.Equal(t, "+123", CleanPhone("++123"), "only one leading plus is removed")
	assert.Equal(t, "*611", CleanPhone("*611"))
}

func TestPhoneDigits(t *testing.T) {
	assert.Equal(t, "541123456789", PhoneDigits("+54 (11) 2345.6789"))
	assert.Equal(t, "", PhoneDigits("abc"))
}
