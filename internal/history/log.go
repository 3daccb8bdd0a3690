// Package history implements the append-only conversation log and its
// compaction state. Messages are never mutated or deleted; forgetting is
// expressed as a superseding summary plus a boundary index.
package history

import (
	"errors"
	"fmt"
	"sync"

	"github.com/erg0nix/samtale/internal/core"
)

// RecentWindow is the number of most recent messages that are never
// cache-eligible and never folded into a summary.
const RecentWindow = 4

// Store is the durable backend for a Log. Appends and state writes must be
// atomic with respect to readers.
type Store interface {
	AppendMessage(msg core.Message) error
	WriteState(state core.CompactionState) error
}

// Log is the single source of truth for a conversation. All mutation is by
// append; the compaction state is the only record that gets overwritten.
type Log struct {
	mu       sync.Mutex
	store    Store
	messages []core.Message
	state    core.CompactionState
}

// NewLog creates an in-memory log with no durable backend.
func NewLog() *Log {
	return &Log{}
}

// NewStoredLog creates a log over an existing message slice and state,
// typically loaded from disk, bound to the given store for future writes.
func NewStoredLog(store Store, messages []core.Message, state core.CompactionState) (*Log, error) {
	for i, msg := range messages {
		if msg.Index != uint64(i) {
			return nil, fmt.Errorf("message index gap at position %d (index %d)", i, msg.Index)
		}
	}

	if err := state.Validate(uint64(len(messages))); err != nil {
		return nil, fmt.Errorf("compaction state: %w", err)
	}

	return &Log{store: store, messages: messages, state: state}, nil
}

// Append assigns the next index to msg and durably records it before it
// becomes visible to readers. The message must come from core.NewMessage.
func (l *Log) Append(msg core.Message) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg.Index = uint64(len(l.messages))

	if l.store != nil {
		if err := l.store.AppendMessage(msg); err != nil {
			return 0, fmt.Errorf("%w: append message: %w", core.ErrStorage, err)
		}
	}

	l.messages = append(l.messages, msg)
	return msg.Index, nil
}

// Read returns the exact slice [r.Start, r.End), never reordered.
func (l *Log) Read(r core.IndexRange) ([]core.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.End < r.Start || r.End > uint64(len(l.messages)) {
		return nil, fmt.Errorf("range [%d, %d) out of bounds for log of %d", r.Start, r.End, len(l.messages))
	}

	out := make([]core.Message, r.End-r.Start)
	copy(out, l.messages[r.Start:r.End])
	return out, nil
}

// Messages returns a copy of the full log.
func (l *Log) Messages() []core.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]core.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *Log) Len() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.messages))
}

func (l *Log) CompactionState() core.CompactionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Tail returns the uncompacted messages, those at or past the boundary.
func (l *Log) Tail() []core.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	tail := l.messages[l.state.Boundary:]
	out := make([]core.Message, len(tail))
	copy(out, tail)
	return out
}

// CacheEligible reports whether the message at index is safe to mark for
// provider-side prompt caching. The most recent RecentWindow messages never
// are; everything older always is, independent of role.
func (l *Log) CacheEligible(index uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.messages) <= RecentWindow {
		return false
	}

	return index < uint64(len(l.messages)-RecentWindow)
}

// ApplyCompaction advances the compaction state to the given superseding
// summary. Re-applying the current summary is a no-op; moving the boundary
// backwards is an error. On write failure the previous state is kept.
func (l *Log) ApplyCompaction(summary core.Summary) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := core.CompactionState{Boundary: summary.Covers.End, Summary: &summary}
	if err := next.Validate(uint64(len(l.messages))); err != nil {
		return err
	}

	if l.state.Summary != nil {
		if next.Boundary == l.state.Boundary && summary.Text == l.state.Summary.Text {
			return nil
		}
		if next.Boundary < l.state.Boundary {
			return errors.New("compaction boundary may not move backwards")
		}
	}

	if l.store != nil {
		if err := l.store.WriteState(next); err != nil {
			return fmt.Errorf("%w: write compaction state: %w", core.ErrStorage, err)
		}
	}

	l.state = next
	return nil
}

// RollbackLast removes the most recent message, but only when its index
// matches the caller's expectation. Only in-memory logs support this; a
// durably recorded append is permanent.
func (l *Log) RollbackLast(index uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store != nil || len(l.messages) == 0 {
		return false
	}

	last := l.messages[len(l.messages)-1]
	if last.Index != index || last.Index < l.state.Boundary {
		return false
	}

	l.messages = l.messages[:len(l.messages)-1]
	return true
}
