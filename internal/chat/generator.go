package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/storequery/storequery/internal/llm"
)

const (
	ModeInitial = "initial"
	ModeRepair  = "repair"
)

// SessionContext is the per-session prompt environment: who the answers
// are served for and which schema/dialect the generated SQL targets.
type SessionContext struct {
	TenantScope       string
	ContextLine       string
	Dialect           string
	SchemaDescription string
}

// Generator turns questions into candidate SQL via the completion
// client. Generation is deterministic by configuration: temperature 0
// and a hard completion cap.
type Generator struct {
	Client      llm.Client
	Temperature float64
	MaxTokens   int
}

// Generate produces a candidate statement for a fresh question.
func (g *Generator) Generate(ctx context.Context, question string, sess SessionContext, transcript string) (string, error) {
	return g.complete(ctx, ModeInitial, generationMessages(question, sess, transcript))
}

// Repair produces a corrected statement from a failed candidate and the
// backend's native error text.
func (g *Generator) Repair(ctx context.Context, question, badSQL, execError string, sess SessionContext, transcript string) (string, error) {
	return g.complete(ctx, ModeRepair, repairMessages(question, badSQL, execError, sess, transcript))
}

func (g *Generator) complete(ctx context.Context, mode string, messages []llm.Message) (string, error) {
	raw, err := g.Client.Complete(ctx, llm.Request{
		Messages:    messages,
		Temperature: g.Temperature,
		MaxTokens:   g.MaxTokens,
	})
	if err != nil {
		return "", &GenerationError{Mode: mode, Err: err}
	}
	sqlText := stripMarkdownSQL(raw)
	if sqlText == "" {
		return "", &GenerationError{Mode: mode, Err: fmt.Errorf("model returned an empty statement")}
	}
	return sqlText, nil
}

// stripMarkdownSQL removes markdown code fences the model tends to wrap
// statements in, leaving bare SQL.
func stripMarkdownSQL(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```sql")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}
