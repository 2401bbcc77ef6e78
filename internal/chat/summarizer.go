package chat

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/storequery/storequery/internal/execute"
	"github.com/storequery/storequery/internal/llm"
	"github.com/storequery/storequery/internal/memory"
)

// Summarizer renders a terminal loop outcome as the user-facing prose
// answer and records the finished turn in conversation memory. Every
// turn produces an answer: when the model cannot help, the canonical
// fallback sentences stand in.
type Summarizer struct {
	Client      llm.Client
	Temperature float64
	MaxTokens   int
	Logger      *slog.Logger
}

// Summarize produces the answer for one turn and appends the turn to
// memory. Error turns are remembered like any other so later questions
// can still lean on earlier context.
func (s *Summarizer) Summarize(ctx context.Context, question string, outcome Outcome, sess SessionContext, mem *memory.Memory) string {
	answer := s.answer(ctx, question, outcome, sess, mem)
	mem.Append(question, answer)
	return answer
}

func (s *Summarizer) answer(ctx context.Context, question string, outcome Outcome, sess SessionContext, mem *memory.Memory) string {
	// Deterministic shapes bypass the model entirely: the required
	// reply is fixed, so there is nothing for it to add.
	if outcome.Kind == OutcomeSuccess {
		if cell, ok := outcome.Table.SingleCell(); ok && isZeroValue(cell) {
			return CanonicalZeroMatch
		}
		if outcome.Table.Empty() && mem.Len() == 0 {
			return CanonicalNoAnswer
		}
	} else if mem.Len() == 0 {
		// Nothing retrieved and no prior turns to fall back on.
		s.logOutcomeCause(ctx, outcome)
		return CanonicalNoAnswer
	}

	messages := summaryMessages(question, outcome.SQL, describeOutcome(outcome), sess, mem.Transcript())
	raw, err := s.Client.Complete(ctx, llm.Request{
		Messages:    messages,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	})
	if err != nil || strings.TrimSpace(raw) == "" {
		s.logger().WarnContext(ctx, "summary generation failed, using fallback answer",
			slog.Any("error", err),
		)
		return CanonicalNoAnswer
	}
	return normalizeSpacing(strings.TrimSpace(raw))
}

func (s *Summarizer) logOutcomeCause(ctx context.Context, outcome Outcome) {
	switch outcome.Kind {
	case OutcomeExecutionError:
		s.logger().WarnContext(ctx, "turn ended in execution error",
			slog.String("error", outcome.ExecErr.Message),
		)
	case OutcomeGenerationError:
		s.logger().WarnContext(ctx, "turn ended in generation error",
			slog.String("error", outcome.GenErr.Error()),
		)
	}
}

func (s *Summarizer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// describeOutcome renders the loop result for the summary prompt. The
// backend error text appears here for the model's benefit only; the
// canonical sentences keep it away from end users.
func describeOutcome(outcome Outcome) string {
	switch outcome.Kind {
	case OutcomeExecutionError:
		return "Error executing SQL: " + outcome.ExecErr.Message
	case OutcomeGenerationError:
		return "Error executing SQL: " + outcome.GenErr.Error()
	}
	table := outcome.Table
	if table.Empty() {
		return "Result: no rows returned."
	}
	if cell, ok := table.SingleCell(); ok && isZeroValue(cell) {
		return "Result: single value 0"
	}
	return "Result Table:\n" + renderCSV(table)
}

func renderCSV(table execute.Table) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(table.Columns)
	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		_ = w.Write(record)
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func isZeroValue(value any) bool {
	text := strings.TrimSpace(formatCell(value))
	if text == "" {
		return false
	}
	parsed, err := strconv.ParseFloat(text, 64)
	return err == nil && parsed == 0
}

// The model occasionally glues sentences, words and digits together.
// These passes reinsert the missing spaces without touching anything
// already well formed.
var (
	sentenceBoundaryRe = regexp.MustCompile(`\.([A-Z])`)
	caseTransitionRe   = regexp.MustCompile(`([a-z])([A-Z])`)
	letterDigitRe      = regexp.MustCompile(`([A-Za-z])(\d)`)
)

func normalizeSpacing(text string) string {
	text = sentenceBoundaryRe.ReplaceAllString(text, ". $1")
	text = caseTransitionRe.ReplaceAllString(text, "$1 $2")
	text = letterDigitRe.ReplaceAllString(text, "$1 $2")
	return text
}
