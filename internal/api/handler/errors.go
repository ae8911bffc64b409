package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/Rrens/aniverse-chat/internal/api/response"
	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Failure codes returned to clients when a turn produced no reply
const (
	CodeProviderUnavailable = "provider_unavailable"
	CodeProviderTimeout     = "provider_timeout"
	CodeProviderError       = "provider_error"
)

// TurnFailure is the error body of a turn whose provider call failed.
// Message is the fallback text meant for the user.
type TurnFailure struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	SessionID uuid.UUID `json:"sessionId"`
}

// writeError maps service errors to HTTP responses. Details of 5xx errors
// go to the log only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidContent), errors.Is(err, domain.ErrInvalidRole):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		response.NotFound(w, "session not found")
	case errors.Is(err, domain.ErrTurnInProgress):
		response.Conflict(w, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		response.Unauthorized(w, "invalid or missing access token")
	case errors.Is(err, context.Canceled):
		// client went away, nobody reads this
		log.Debug().Str("request_id", middleware.GetReqID(r.Context())).Msg("Request cancelled by client")
		response.ServiceUnavailable(w, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn().Str("request_id", middleware.GetReqID(r.Context())).Msg("Request deadline exceeded")
		response.GatewayTimeout(w, "request timed out")
	case errors.Is(err, domain.ErrStorageUnavailable):
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("Storage failure")
		response.InternalError(w, "storage unavailable")
	default:
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("Request failed")
		response.InternalError(w, "internal server error")
	}
}

// writeTurnFailure answers a turn whose provider call failed
func writeTurnFailure(w http.ResponseWriter, sessionID uuid.UUID, message string, failure error) {
	status, code := http.StatusBadGateway, CodeProviderError
	switch {
	case errors.Is(failure, domain.ErrProviderUnavailable):
		status, code = http.StatusInternalServerError, CodeProviderUnavailable
	case errors.Is(failure, domain.ErrProviderTimeout):
		status, code = http.StatusGatewayTimeout, CodeProviderTimeout
	}

	response.Error(w, status, TurnFailure{
		Code:      code,
		Message:   message,
		SessionID: sessionID,
	})
}
