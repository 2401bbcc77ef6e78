package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/storequery/storequery/internal/config"
	"github.com/storequery/storequery/internal/execute"
	"github.com/storequery/storequery/internal/llm"
	"github.com/storequery/storequery/internal/memory"
	"github.com/storequery/storequery/internal/tenant"
)

// ErrSessionNotFound is returned for operations on an unknown or closed
// session ID.
var ErrSessionNotFound = errors.New("session not found")

// SessionInfo is the externally visible description of a session.
type SessionInfo struct {
	ID          string
	TenantScope string
	ContextLine string
}

// Service owns the live sessions and the shared wiring behind them:
// the tenant scope provider and the completion client.
type Service struct {
	provider *tenant.Provider
	client   llm.Client
	cfg      config.ChatConfig
	ai       config.AIConfig
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewService(provider *tenant.Provider, client llm.Client, cfg config.ChatConfig, ai config.AIConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		client:   client,
		cfg:      cfg,
		ai:       ai,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// CreateSession materializes a tenant scope and opens a fresh
// conversation over it. An empty tenantScope opens an unscoped session
// over the full master store.
func (s *Service) CreateSession(ctx context.Context, tenantScope string) (SessionInfo, error) {
	scoped, err := s.provider.Scope(ctx, tenantScope)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("create session: %w", err)
	}

	session := &Session{
		ID:         uuid.NewString(),
		Context:    s.sessionContext(scoped),
		scoped:     scoped,
		memory:     memory.New(s.cfg.MemoryWindow),
		controller: s.newController(scoped),
		summarizer: s.newSummarizer(),
		logger:     s.logger,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "session created",
		slog.String("session_id", session.ID),
		slog.String("tenant", scoped.TenantScope),
	)
	return SessionInfo{ID: session.ID, TenantScope: scoped.TenantScope, ContextLine: scoped.ContextLine}, nil
}

// SubmitTurn routes a question to the identified session.
func (s *Service) SubmitTurn(ctx context.Context, sessionID, question string) (string, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return "", err
	}
	return session.SubmitTurn(ctx, question)
}

// ResetSession clears a session's memory and rebinds it to a (possibly
// different) tenant scope. The session ID is retained.
func (s *Service) ResetSession(ctx context.Context, sessionID, tenantScope string) (SessionInfo, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	scoped, err := s.provider.Scope(ctx, tenantScope)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("reset session: %w", err)
	}
	if err := session.rebind(scoped, s.sessionContext(scoped), s.newController(scoped)); err != nil {
		s.logger.WarnContext(ctx, "closing previous scope failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "session reset",
		slog.String("session_id", sessionID),
		slog.String("tenant", scoped.TenantScope),
	)
	return SessionInfo{ID: sessionID, TenantScope: scoped.TenantScope, ContextLine: scoped.ContextLine}, nil
}

// History returns the retained turns of a session, oldest first.
func (s *Service) History(sessionID string) ([]memory.Turn, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return session.History(), nil
}

// CloseSession releases a session and its tenant scope.
func (s *Service) CloseSession(sessionID string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session.close()
}

// Close releases every remaining session. Used at shutdown.
func (s *Service) Close() error {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for id, session := range s.sessions {
		sessions = append(sessions, session)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	var firstErr error
	for _, session := range sessions {
		if err := session.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) lookup(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session, nil
}

func (s *Service) sessionContext(scoped *tenant.Scoped) SessionContext {
	dialect := "sqlite"
	if scoped.TenantScope == "" {
		// Unscoped sessions query the master store directly, whatever
		// backend it runs on.
		dialect = s.provider.Driver
	}
	return SessionContext{
		TenantScope:       scoped.TenantScope,
		ContextLine:       scoped.ContextLine,
		Dialect:           dialect,
		SchemaDescription: SchemaDescription,
	}
}

func (s *Service) newController(scoped *tenant.Scoped) *Controller {
	return &Controller{
		Generator: &Generator{
			Client:      s.client,
			Temperature: s.ai.Temperature,
			MaxTokens:   s.ai.MaxTokens,
		},
		Engine:     execute.NewDBEngine(scoped.DB),
		MaxRetries: s.cfg.MaxRetries,
		Logger:     s.logger,
	}
}

func (s *Service) newSummarizer() *Summarizer {
	return &Summarizer{
		Client:      s.client,
		Temperature: s.ai.Temperature,
		MaxTokens:   s.ai.MaxTokens,
		Logger:      s.logger,
	}
}
