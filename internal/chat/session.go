package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/storequery/storequery/internal/memory"
	"github.com/storequery/storequery/internal/observability"
	"github.com/storequery/storequery/internal/tenant"
)

// Session is one tenant-scoped conversation. Turns are serialized by a
// per-session mutex; two concurrent submissions on the same session
// queue rather than interleave prompts and memory writes.
type Session struct {
	ID      string
	Context SessionContext

	mu         sync.Mutex
	scoped     *tenant.Scoped
	memory     *memory.Memory
	controller *Controller
	summarizer *Summarizer
	logger     *slog.Logger
}

// SubmitTurn runs a full question through the generate/execute/repair
// loop and summarization, records the turn, and returns the answer.
func (s *Session) SubmitTurn(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	transcript := s.memory.Transcript()
	outcome := s.controller.Run(ctx, question, s.Context, transcript)
	answer := s.summarizer.Summarize(ctx, question, outcome, s.Context, s.memory)

	elapsed := time.Since(start)
	observability.ObserveTurn(outcome.Kind.String(), elapsed)
	s.logger.InfoContext(ctx, "chat turn completed",
		slog.String("session_id", s.ID),
		slog.String("tenant", s.Context.TenantScope),
		slog.String("outcome", outcome.Kind.String()),
		slog.Int("generation_calls", outcome.GenerationCalls),
		slog.Int("execution_attempts", outcome.ExecutionAttempts),
		slog.Duration("elapsed", elapsed),
	)
	return answer, nil
}

// History returns the retained conversation window, oldest first.
func (s *Session) History() []memory.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.Turns()
}

func (s *Session) rebind(scoped *tenant.Scoped, sessCtx SessionContext, controller *Controller) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.scoped
	s.scoped = scoped
	s.Context = sessCtx
	s.controller = controller
	s.memory.Reset()
	if old != nil {
		return old.Close()
	}
	return nil
}

func (s *Session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scoped == nil {
		return nil
	}
	err := s.scoped.Close()
	s.scoped = nil
	return err
}
