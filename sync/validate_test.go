package sync

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEligible(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"+54 11 2345-6789", true},
		{"(555) 12345", true},
		{"12345", true},
		{"123456789012345", true},
		{"1234", false},
		{"1234567890123456", false},
		{"", false},
		{"   ", false},
		{"*611", false},
		{"#31#5551234", false},
		{"+911", false},
		{"9-1-1", false},
		{"(112)", false},
		{"abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEligible(tt.phone))
		})
	}
}

func TestEmergencyNumbersWithSeparators(t *testing.T) {
	separators := []string{" ", "-", "(", ")", "  ", "\t"}

	for _, number := range EmergencyNumbers {
		for _, sep := range separators {
			var b strings.Builder
			for i, r := range number {
				if i > 0 {
					b.WriteString(sep)
				}
				b.WriteRune(r)
			}
			spaced := b.String()

			assert.False(t, IsEligible(spaced), "expected %q to be rejected", spaced)
			assert.False(t, IsEligible("+"+spaced), "expected %q to be rejected", "+"+spaced)
			assert.False(t, IsEligible(sep+spaced+sep), "expected %q to be rejected", sep+spaced+sep)
		}
	}
}

func TestDigitCountBounds(t *testing.T) {
	for n := 1; n <= 20; n++ {
		// Leading 5 keeps every candidate off the denylist.
		phone := "5" + strings.Repeat("0", n-1)
		want := n >= MinPhoneDigits && n <= MaxPhoneDigits
		assert.Equal(t, want, IsEligible(phone), fmt.Sprintf("%d digits", n))
		assert.False(t, IsEligible("*"+phone))
		assert.False(t, IsEligible("#"+phone))
	}
}

func TestCustomDenylist(t *testing.T) {
	v := NewValidator([]string{"55555"})

	assert.False(t, v.IsEligible("5-5555"))
	assert.True(t, v.IsEligible("12345"))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "5491123456789", FormatNumber("11 2345-6789", "54"))
	assert.Equal(t, "541123456789", FormatNumber("+54 11 2345 6789", "54"))
	assert.Equal(t, "1123456789", FormatNumber("11 2345 6789", ""))
	assert.Equal(t, "", FormatNumber("n/a", "54"))
}

func TestZeroValidatorUsesEmergencyNumbers(t *testing.T) {
	var v Validator
	assert.False(t, v.IsEligible("911"))
	assert.True(t, v.IsEligible("5551234567"))
}
