// Package transcript holds the ordered conversation history of one connection.
package transcript

import (
	"slices"

	"github.com/m2tx/gemini_relay/internal/model"
)

// Transcript is an append-only log of turns. Order is the order the model sees
// the conversation in. A Transcript belongs to a single session goroutine and
// is not safe for concurrent use.
type Transcript struct {
	turns []model.Turn
}

func New() *Transcript {
	return &Transcript{}
}

// Append adds a turn at the end. It is the only mutator.
func (t *Transcript) Append(turn model.Turn) {
	t.turns = append(t.turns, turn)
}

// Snapshot returns a copy of every turn in order.
func (t *Transcript) Snapshot() []model.Turn {
	return slices.Clone(t.turns)
}

func (t *Transcript) Len() int {
	return len(t.turns)
}

