// Package memory holds the bounded per-session conversation window fed
// into every generation and summarization prompt.
package memory

import (
	"fmt"
	"strings"
)

// Turn is one completed question/answer exchange. Turns are immutable
// once appended; ordinals keep increasing even after eviction so a
// turn's position in the conversation stays stable.
type Turn struct {
	Question string
	Answer   string
	Ordinal  int
}

// Memory is an ordered window of recent turns. Oldest turns are evicted
// first once the window is exceeded. Not safe for concurrent use; a
// session owns exactly one Memory and processes turns serially.
type Memory struct {
	window      int
	turns       []Turn
	nextOrdinal int
}

const DefaultWindow = 3

func New(window int) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Memory{window: window}
}

func (m *Memory) Append(question, answer string) Turn {
	turn := Turn{Question: question, Answer: answer, Ordinal: m.nextOrdinal}
	m.nextOrdinal++
	m.turns = append(m.turns, turn)
	if len(m.turns) > m.window {
		m.turns = m.turns[len(m.turns)-m.window:]
	}
	return turn
}

func (m *Memory) Len() int {
	return len(m.turns)
}

func (m *Memory) Window() int {
	return m.window
}

// Turns returns a copy of the retained turns in insertion order.
func (m *Memory) Turns() []Turn {
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Transcript renders the retained turns as a linear conversation for
// prompt inclusion.
func (m *Memory) Transcript() string {
	if len(m.turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, turn := range m.turns {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", turn.Question, turn.Answer)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Reset drops all retained turns. Ordinals restart as well: a reset
// memory belongs to a fresh session context.
func (m *Memory) Reset() {
	m.turns = nil
	m.nextOrdinal = 0
}
