// Package llm wraps the external chat-completion service behind a small
// client interface so the SQL generator and summarizer can share one
// transport and tests can substitute fakes.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Client returns a single text completion for an ordered list of
// role-tagged messages. Any transport, auth or decode failure is
// returned as an error; the caller decides how failures propagate.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
