// sync/contacts_importer_test.go
package sync

import (
	"strings"
	"testing"

	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContactFile(t *testing.T) {
	file := "Ana Gomez, +54 11 2345-6789\r\n\r\nLuis,5557654321\n  ,12345\nSolo Nombre\nSin Numero,abc\nEva ,555 1234 567\n"

	result, err := ParseContactFile(strings.NewReader(file))
	require.NoError(t, err)

	require.Len(t, result.Contacts, 3)
	assert.Equal(t, 3, result.Skipped)

	ana := result.Contacts[0]
	assert.Equal(t, "Ana Gomez", ana.Name)
	assert.Equal(t, "541123456789", ana.PhoneNumber)
	assert.Equal(t, models.SourceFile, ana.Source)
	assert.True(t, strings.HasPrefix(ana.ID, "txt-"))
	assert.False(t, ana.IsValid)

	assert.Equal(t, "Luis", result.Contacts[1].Name)
	assert.Equal(t, "Eva", result.Contacts[2].Name)
	assert.Equal(t, "5551234567", result.Contacts[2].PhoneNumber)
	assert.NotEqual(t, result.Contacts[0].ID, result.Contacts[1].ID)
}

func TestParseContactFileRejectsUnusableInput(t *testing.T) {
	tests := map[string]string{
		"empty":       "",
		"no commas":   "just a note\nanother line\n",
		"binary":      "Ana,123\x00\x01\x02",
		"invalid utf": "Ana,12345\n\xff\xfe",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseContactFile(strings.NewReader(input))
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.CodeValidation))
		})
	}
}
