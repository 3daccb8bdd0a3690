package core

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleSystem         Role = "system"
	RoleUser           Role = "user"
	RoleAssistant      Role = "assistant"
	RoleToolInvocation Role = "tool_invocation"
	RoleToolResult     Role = "tool_result"
)

// Message is a single immutable entry in the conversation log. Index is
// assigned once, at append time, and never changes afterwards.
type Message struct {
	Index       uint64    `json:"index"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Tokens      int       `json:"tokens"`
	Interrupted bool      `json:"interrupted,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

var ErrEmptyContent = errors.New("message content is empty")

// NewMessage builds an unindexed message. Empty or whitespace-only content
// is rejected here so the log never has to.
func NewMessage(role Role, content string, tokens int) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyContent
	}

	return Message{
		Role:      role,
		Content:   content,
		Tokens:    tokens,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// IndexRange is a half-open range [Start, End) of message indices.
type IndexRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

func (r IndexRange) Len() uint64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Summary is a lossy compression of a log prefix. A newer summary covering a
// larger prefix supersedes the previous one; nothing is ever deleted.
type Summary struct {
	Covers      IndexRange `json:"covers"`
	Text        string     `json:"text"`
	Tokens      int        `json:"tokens"`
	SourceModel string     `json:"source_model"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CompactionState is the single authoritative description of how much of the
// log has been folded into a summary. Summary == nil means uncompacted and
// Boundary must be zero; otherwise Boundary equals Summary.Covers.End.
type CompactionState struct {
	Boundary uint64   `json:"boundary"`
	Summary  *Summary `json:"summary,omitempty"`
}

func (s CompactionState) Compacted() bool {
	return s.Summary != nil
}

// Validate checks the internal consistency of the state against the log
// length. A state that fails here is corrupt, not merely stale.
func (s CompactionState) Validate(logLen uint64) error {
	if s.Summary == nil {
		if s.Boundary != 0 {
			return errors.New("uncompacted state has nonzero boundary")
		}
		return nil
	}

	if s.Boundary != s.Summary.Covers.End {
		return errors.New("boundary does not match summary coverage")
	}

	if s.Summary.Covers.Start != 0 {
		return errors.New("summary coverage must start at index zero")
	}

	if s.Boundary > logLen {
		return errors.New("boundary exceeds log length")
	}

	return nil
}

type EventKind string

const (
	EventTextDelta     EventKind = "text_delta"
	EventThinkingDelta EventKind = "thinking_delta"
	EventDone          EventKind = "done"
	EventError         EventKind = "error"
)

// StreamEvent is one element of an in-flight response stream. ThinkingDelta
// carries transient reasoning content and is never persisted or rendered as
// final output.
type StreamEvent struct {
	Kind EventKind
	Text string
	Err  string
}

func TextDelta(text string) StreamEvent {
	return StreamEvent{Kind: EventTextDelta, Text: text}
}

func ThinkingDelta(text string) StreamEvent {
	return StreamEvent{Kind: EventThinkingDelta, Text: text}
}

func Done() StreamEvent {
	return StreamEvent{Kind: EventDone}
}

func StreamError(message string) StreamEvent {
	return StreamEvent{Kind: EventError, Err: message}
}

// Terminal reports whether the event ends its stream.
func (e StreamEvent) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}
