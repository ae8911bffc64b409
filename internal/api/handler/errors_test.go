package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/Rrens/aniverse-chat/internal/llm"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid content", domain.ErrInvalidContent, http.StatusBadRequest},
		{"not found", fmt.Errorf("load: %w", domain.ErrSessionNotFound), http.StatusNotFound},
		{"turn in progress", domain.ErrTurnInProgress, http.StatusConflict},
		{"unauthenticated", domain.ErrUnauthenticated, http.StatusUnauthorized},
		{"storage", fmt.Errorf("failed to append message: %w: %w", domain.ErrStorageUnavailable, errors.New("dial tcp 10.0.0.3:5432: refused")), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable},
		{"request deadline", fmt.Errorf("turn abandoned: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "10.0.0.3")
		})
	}
}

func TestWriteTurnFailure(t *testing.T) {
	sessionID := uuid.New()
	tests := []struct {
		name    string
		failure error
		status  int
		code    string
	}{
		{"unavailable", fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, llm.ErrNotConfigured), http.StatusInternalServerError, CodeProviderUnavailable},
		{"timeout", fmt.Errorf("%w: %w", domain.ErrProviderTimeout, context.DeadlineExceeded), http.StatusGatewayTimeout, CodeProviderTimeout},
		{"provider error", fmt.Errorf("%w: %w", domain.ErrProviderError, &llm.StatusError{Provider: "perplexity", StatusCode: 429}), http.StatusBadGateway, CodeProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeTurnFailure(rec, sessionID, "fallback", tt.failure)

			require.Equal(t, tt.status, rec.Code)

			var body struct {
				Success bool        `json:"success"`
				Error   TurnFailure `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, "fallback", body.Error.Message)
			assert.Equal(t, sessionID, body.Error.SessionID)
		})
	}
}
