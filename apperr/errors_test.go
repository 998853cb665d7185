package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err    *Error
		code   Code
		status int
	}{
		{Validation("pipeline required"), CodeValidation, http.StatusBadRequest},
		{Auth("token rejected", nil), CodeAuth, http.StatusUnauthorized},
		{NotFound("user"), CodeNotFound, http.StatusNotFound},
		{Conflict("username already exists"), CodeConflict, http.StatusBadRequest},
		{Upstream("bad gateway", 502, nil, nil), CodeUpstream, http.StatusInternalServerError},
		{Internal(errors.New("disk full")), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
		})
	}
}

func TestUpstreamDetails(t *testing.T) {
	payload := map[string]any{"title": "Bad Request"}
	err := Upstream("create contact", 400, payload, nil)

	assert.Equal(t, 400, err.Details["status"])
	assert.Equal(t, payload, err.Details["response"])
}

func TestIsThroughWrapping(t *testing.T) {
	base := Auth("refresh failed", errors.New("invalid_grant"))
	wrapped := fmt.Errorf("failed to verify connection: %w", base)

	assert.True(t, Is(wrapped, CodeAuth))
	assert.False(t, Is(wrapped, CodeUpstream))
	assert.Same(t, base, From(wrapped))
	assert.Equal(t, "refresh failed: invalid_grant", base.Error())
}

func TestFromPlainError(t *testing.T) {
	err := From(errors.New("boom"))

	assert.Equal(t, CodeInternal, err.Code)
	assert.Equal(t, "boom", err.Message)
}
