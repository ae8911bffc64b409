package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/Rrens/aniverse-chat/internal/llm"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// titleRunes is how much of the first user message becomes the session title
const titleRunes = 30

// Fallback replies shown to the user when no assistant message was produced.
// The user's own message is always kept.
const (
	FallbackUnavailable = "The AI service is not configured right now. Your message was saved, please try again later."
	FallbackTimeout     = "The AI service took too long to answer. Your message was saved, please try again."
	FallbackError       = "Sorry, I couldn't get an answer from the AI service. Your message was saved, please try again."
)

// ChatConfig holds the conversation settings of a ChatService
type ChatConfig struct {
	Provider        string
	ProviderTimeout time.Duration
	HistoryWindow   int
	SystemPrompt    string
	MaxTokens       int
	Temperature     float64
	TopP            float64
}

// NewChatConfig derives chat settings from the llm configuration
func NewChatConfig(cfg config.LLMConfig) ChatConfig {
	return ChatConfig{
		Provider:        cfg.DefaultProvider,
		ProviderTimeout: cfg.Timeout,
		HistoryWindow:   cfg.HistoryWindow,
		SystemPrompt:    cfg.SystemPrompt,
		MaxTokens:       cfg.MaxTokens,
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
	}
}

// TurnResult is the outcome of a submitted turn. When the provider failed,
// Reply is nil, Failure holds the reason and Message a fallback text.
type TurnResult struct {
	SessionID uuid.UUID
	Message   string
	Reply     *domain.Message
	Failure   error
}

// ChatService orchestrates sessions and conversation turns
type ChatService struct {
	store     domain.SessionStore
	llmRouter *llm.Router
	locker    TurnLocker
	cfg       ChatConfig
}

// NewChatService creates a new chat service
func NewChatService(store domain.SessionStore, llmRouter *llm.Router, locker TurnLocker, cfg ChatConfig) *ChatService {
	if locker == nil {
		locker = NewLocalTurnLocker()
	}
	if cfg.HistoryWindow < 1 {
		cfg.HistoryWindow = 10
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	return &ChatService{
		store:     store,
		llmRouter: llmRouter,
		locker:    locker,
		cfg:       cfg,
	}
}

// CreateSession starts a new conversation for owner
func (s *ChatService) CreateSession(ctx context.Context, owner, title string) (*domain.ChatSession, error) {
	session, err := s.store.CreateSession(ctx, title, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSession returns the session if owner may see it
func (s *ChatService) GetSession(ctx context.Context, owner string, id uuid.UUID) (*domain.ChatSession, error) {
	return s.authorize(ctx, owner, id)
}

// ListSessions returns owner's sessions, most recently active first
func (s *ChatService) ListSessions(ctx context.Context, owner string) ([]domain.ChatSession, error) {
	sessions, err := s.store.ListSessions(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// RenameSession changes the title of owner's session
func (s *ChatService) RenameSession(ctx context.Context, owner string, id uuid.UUID, title string) (*domain.ChatSession, error) {
	if _, err := s.authorize(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.store.RenameSession(ctx, id, title)
}

// ListMessages returns the session's messages oldest first
func (s *ChatService) ListMessages(ctx context.Context, owner string, id uuid.UUID) ([]domain.Message, error) {
	if _, err := s.authorize(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, id)
}

// DeleteSession removes owner's session and all of its messages
func (s *ChatService) DeleteSession(ctx context.Context, owner string, id uuid.UUID) error {
	if _, err := s.authorize(ctx, owner, id); err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	log.Info().Str("session_id", id.String()).Msg("Session deleted")
	return nil
}

// ProviderStatus describes the registered completion providers
func (s *ChatService) ProviderStatus() []llm.ProviderInfo {
	return s.llmRouter.GetProvidersInfo()
}

// DefaultProvider is the provider turns are sent to
func (s *ChatService) DefaultProvider() string {
	if s.cfg.Provider != "" {
		return s.cfg.Provider
	}
	return s.llmRouter.DefaultProvider()
}

// Ping checks the session store
func (s *ChatService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// SubmitTurn stores the user's message, asks the provider for a reply and
// stores that reply. The user message is persisted before the provider is
// called and stays persisted whatever happens afterwards.
//
// Provider failures are not returned as errors: the result carries a
// fallback text and the failure kind. Errors are returned for invalid
// input, unknown sessions, a turn already in progress, storage faults and
// cancellation by the caller.
func (s *ChatService) SubmitTurn(ctx context.Context, owner string, sessionID uuid.UUID, userText string) (*TurnResult, error) {
	session, err := s.authorize(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(userText)
	if err := domain.ValidateMessage(domain.RoleUser, text); err != nil {
		return nil, err
	}

	unlock, err := s.locker.TryLock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := log.With().Str("session_id", sessionID.String()).Logger()

	if _, err := s.store.AppendMessage(ctx, sessionID, domain.RoleUser, text); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}
	logger.Debug().Str("state", "user_persisted").Msg("Turn progressed")

	if session.Title == domain.DefaultSessionTitle {
		if _, err := s.store.RenameSession(ctx, sessionID, titleFrom(text)); err != nil {
			logger.Warn().Err(err).Msg("Failed to set session title")
		}
	}

	history, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	messages := llm.BuildContext(history, s.cfg.HistoryWindow, s.cfg.SystemPrompt)

	provider, err := s.llmRouter.GetProvider(s.cfg.Provider)
	if err != nil {
		logger.Warn().Err(err).Str("state", "provider_failed").Msg("No completion provider available")
		return s.failed(sessionID, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)), nil
	}

	logger.Debug().Str("state", "awaiting_provider").Str("provider", provider.Name()).Int("messages", len(messages)).Msg("Turn progressed")

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	completion, err := provider.Complete(callCtx, llm.CompletionRequest{
		Messages:    messages,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		TopP:        s.cfg.TopP,
	})
	if err == nil && strings.TrimSpace(completion.Text) == "" {
		err = llm.ErrEmptyCompletion
	}
	if err != nil {
		if ctx.Err() != nil {
			logger.Info().Err(ctx.Err()).Msg("Turn abandoned by caller")
			return nil, ctx.Err()
		}
		failure := classifyProviderError(callCtx, err)
		logger.Error().Err(err).Str("state", "provider_failed").Str("provider", provider.Name()).Msg("Completion failed")
		return s.failed(sessionID, failure), nil
	}

	// A finished generation is kept even if the client has gone away
	reply, err := s.store.AppendMessage(context.WithoutCancel(ctx), sessionID, domain.RoleAssistant, completion.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	logger.Debug().
		Str("state", "completed").
		Str("model", completion.Model).
		Int("tokens", completion.TokensUsed).
		Int64("latency_ms", completion.LatencyMs).
		Msg("Turn progressed")

	return &TurnResult{
		SessionID: sessionID,
		Message:   reply.Content,
		Reply:     reply,
	}, nil
}

// authorize loads the session and hides sessions owned by someone else
func (s *ChatService) authorize(ctx context.Context, owner string, id uuid.UUID) (*domain.ChatSession, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Owner != owner {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *ChatService) failed(sessionID uuid.UUID, failure error) *TurnResult {
	return &TurnResult{
		SessionID: sessionID,
		Message:   FallbackText(failure),
		Failure:   failure,
	}
}

// FallbackText returns the user-facing text for a provider failure
func FallbackText(failure error) string {
	switch {
	case errors.Is(failure, domain.ErrProviderUnavailable):
		return FallbackUnavailable
	case errors.Is(failure, domain.ErrProviderTimeout):
		return FallbackTimeout
	default:
		return FallbackError
	}
}

func classifyProviderError(callCtx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(callCtx.Err(), context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w", domain.ErrProviderTimeout, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrProviderError, err)
	}
}

// titleFrom turns the first user message into a one-line session title
func titleFrom(text string) string {
	title := []rune(strings.Join(strings.Fields(text), " "))
	if len(title) <= titleRunes {
		return string(title)
	}
	return strings.TrimSpace(string(title[:titleRunes])) + "..."
}
