// Package chatrunner drives an interactive console conversation against
// an in-process chat service.
package chatrunner

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/storequery/storequery/internal/chat"
)

// SessionService is the slice of the chat service the console needs.
type SessionService interface {
	CreateSession(ctx context.Context, tenantScope string) (chat.SessionInfo, error)
	SubmitTurn(ctx context.Context, sessionID, question string) (string, error)
	CloseSession(sessionID string) error
}

type Options struct {
	Service SessionService
	Tenant  string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// Run parses flags, opens a session, and loops on stdin until "exit" or
// EOF. Returns a process exit code.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	if defaults.Service == nil {
		_, _ = fmt.Fprintln(stderr, "chat service is required")
		return 1
	}

	fs := flag.NewFlagSet("storequery-chat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	tenant := fs.String("tenant", defaults.Tenant, "Store name to scope the conversation to (empty for full visibility)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	info, err := defaults.Service.CreateSession(ctx, *tenant)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "open session: %v\n", err)
		return 1
	}
	defer func() { _ = defaults.Service.CloseSession(info.ID) }()

	_, _ = fmt.Fprintf(stdout, "%s\nType your question, or \"exit\" to quit.\n\n", info.ContextLine)

	scanner := bufio.NewScanner(defaults.Stdin)
	for {
		_, _ = fmt.Fprint(stdout, "You: ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		answer, err := defaults.Service.SubmitTurn(ctx, info.ID, question)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "turn failed: %v\n", err)
			continue
		}
		_, _ = fmt.Fprintf(stdout, "\nAssistant: %s\n\n", answer)
	}
	if err := scanner.Err(); err != nil {
		_, _ = fmt.Fprintf(stderr, "read input: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "Goodbye!")
	return 0
}
