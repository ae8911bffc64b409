package handler

import (
	"net/http"
	"time"

	"github.com/Rrens/aniverse-chat/internal/api/middleware"
	"github.com/Rrens/aniverse-chat/internal/api/response"
	"github.com/Rrens/aniverse-chat/internal/service"
	"github.com/rs/zerolog/log"
)

// HealthHandler serves liveness, readiness and configuration status
type HealthHandler struct {
	chatService   *service.ChatService
	storageDriver string
}

func NewHealthHandler(chatService *service.ChatService, storageDriver string) *HealthHandler {
	return &HealthHandler{chatService: chatService, storageDriver: storageDriver}
}

type providerStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Default    bool   `json:"default"`
}

// Health reports which providers are configured and which store is active
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	infos := h.chatService.ProviderStatus()
	providers := make([]providerStatus, 0, len(infos))
	for _, p := range infos {
		providers = append(providers, providerStatus{
			Name:       p.Name,
			Configured: p.Configured,
			Default:    p.Default,
		})
	}

	response.OK(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"providers": providers,
		"storage":   h.storageDriver,
	})
}

// Ready returns readiness status including store connectivity
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.Ping(r.Context()); err != nil {
		log.Warn().Err(err).Msg("Readiness check failed")
		response.ServiceUnavailable(w, "storage not ready")
		return
	}

	response.OK(w, map[string]string{
		"status": "ready",
	})
}

// LLMProviders returns the registered providers and their models
func (h *HealthHandler) LLMProviders(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{
		"providers":        h.chatService.ProviderStatus(),
		"default_provider": h.chatService.DefaultProvider(),
	})
}

// Me returns the principal the request acts as
func Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	response.OK(w, map[string]string{
		"owner":    identity.Owner,
		"authMode": identity.Mode,
	})
}
