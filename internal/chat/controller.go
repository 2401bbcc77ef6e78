package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/storequery/storequery/internal/execute"
	"github.com/storequery/storequery/internal/observability"
)

// DefaultMaxRetries bounds the repair cycles after the initial attempt.
const DefaultMaxRetries = 3

type loopState int

const (
	stateGenerating loopState = iota
	stateExecuting
	stateRepairing
)

// Controller drives the generate/execute/repair loop for one question.
// A run makes at most MaxRetries+1 generation calls and MaxRetries+1
// execution attempts, and always ends in a terminal Outcome; it never
// panics the turn on model or backend failure.
type Controller struct {
	Generator  *Generator
	Engine     execute.Engine
	MaxRetries int
	Logger     *slog.Logger
}

// Run executes the loop to a terminal outcome. A generation failure in
// either mode ends the run immediately; an execution failure enters a
// repair cycle until the retry budget is spent, at which point the last
// execution error is the outcome.
func (c *Controller) Run(ctx context.Context, question string, sess SessionContext, transcript string) Outcome {
	outcome := Outcome{}
	state := stateGenerating
	repairs := 0

	var candidate string
	var lastExecErr *ExecutionError

	for {
		switch state {
		case stateGenerating:
			sqlText, err := c.Generator.Generate(ctx, question, sess, transcript)
			outcome.GenerationCalls++
			observability.IncrementGenerationCall(ModeInitial)
			if err != nil {
				return c.generationFailed(ctx, outcome, err)
			}
			candidate = sqlText
			state = stateExecuting

		case stateExecuting:
			table, err := c.Engine.Execute(ctx, candidate)
			outcome.ExecutionAttempts++
			observability.IncrementExecutionAttempt()
			if err == nil {
				outcome.Kind = OutcomeSuccess
				outcome.Table = table
				outcome.SQL = candidate
				c.logger().DebugContext(ctx, "sql executed",
					slog.Int("attempt", outcome.ExecutionAttempts),
					slog.Int("rows", len(table.Rows)),
				)
				return outcome
			}
			lastExecErr = &ExecutionError{SQL: candidate, Message: err.Error()}
			c.logger().WarnContext(ctx, "sql execution failed",
				slog.Int("attempt", outcome.ExecutionAttempts),
				slog.String("error", lastExecErr.Message),
			)
			if repairs >= c.MaxRetries {
				outcome.Kind = OutcomeExecutionError
				outcome.ExecErr = lastExecErr
				outcome.SQL = candidate
				return outcome
			}
			state = stateRepairing

		case stateRepairing:
			repairs++
			observability.IncrementRepairCycle()
			fixed, err := c.Generator.Repair(ctx, question, candidate, lastExecErr.Message, sess, transcript)
			outcome.GenerationCalls++
			observability.IncrementGenerationCall(ModeRepair)
			if err != nil {
				outcome.SQL = candidate
				return c.generationFailed(ctx, outcome, err)
			}
			candidate = fixed
			state = stateExecuting
		}
	}
}

func (c *Controller) generationFailed(ctx context.Context, outcome Outcome, err error) Outcome {
	outcome.Kind = OutcomeGenerationError
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		genErr = &GenerationError{Mode: ModeInitial, Err: err}
	}
	outcome.GenErr = genErr
	c.logger().ErrorContext(ctx, "sql generation failed",
		slog.String("mode", genErr.Mode),
		slog.String("error", genErr.Error()),
	)
	return outcome
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
