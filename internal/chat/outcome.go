package chat

import (
	"fmt"

	"github.com/storequery/storequery/internal/execute"
)

// GenerationError marks a failed SQL generation call. It is terminal:
// when the model cannot produce a candidate there is nothing for a
// repair cycle to act on, so the loop stops immediately.
type GenerationError struct {
	Mode string // "initial" or "repair"
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate sql (%s mode): %v", e.Mode, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ExecutionError carries the backend's native error text for a failed
// statement. The text feeds repair prompts verbatim and is never shown
// to end users.
type ExecutionError struct {
	SQL     string
	Message string
}

func (e *ExecutionError) Error() string { return e.Message }

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeExecutionError
	OutcomeGenerationError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeExecutionError:
		return "execution_error"
	case OutcomeGenerationError:
		return "generation_error"
	default:
		return "unknown"
	}
}

// Outcome is the terminal state of one generate/execute/repair run.
// Exactly one of Table, ExecErr and GenErr is meaningful, selected by
// Kind. SQL holds the last candidate statement, empty when the very
// first generation call failed.
type Outcome struct {
	Kind    OutcomeKind
	Table   execute.Table
	SQL     string
	ExecErr *ExecutionError
	GenErr  *GenerationError

	GenerationCalls   int
	ExecutionAttempts int
}
