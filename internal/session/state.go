// Package session coordinates a conversation's turn processing: the state
// machine that makes streaming and summarizing mutually exclusive, and the
// engine that drives the log, journal, compactor, and provider.
package session

import (
	"sync"

	"github.com/erg0nix/samtale/internal/core"
)

type State string

const (
	StateIdle              State = "idle"
	StateStreaming         State = "streaming"
	StateSummarizing       State = "summarizing"
	StateSummarizingQueued State = "summarizing_queued"
	StateRetry             State = "summarization_retry"
	StateRetryQueued       State = "summarization_retry_queued"
)

// Machine is the single authority over what the session is doing. Operations
// that stream or summarize require a grant, obtainable only while the
// machine is in the matching state and consumed by use, so holding both at
// once cannot be constructed.
type Machine struct {
	mu      sync.Mutex
	state   State
	queued  *core.Message
	attempt int
}

func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Summarizing reports whether any summarization work, active or awaiting
// retry, is in flight.
func (m *Machine) Summarizing() bool {
	switch m.State() {
	case StateSummarizing, StateSummarizingQueued, StateRetry, StateRetryQueued:
		return true
	}
	return false
}

// StreamGrant is the capability to run exactly one stream. Finish consumes
// it.
type StreamGrant struct {
	m *Machine
}

// StartStreaming hands out a stream grant, but only from Idle.
func (m *Machine) StartStreaming() (*StreamGrant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return nil, false
	}

	m.state = StateStreaming
	return &StreamGrant{m: m}, true
}

// Finish returns the machine to Idle and consumes the grant.
func (g *StreamGrant) Finish() {
	if g.m == nil {
		return
	}

	g.m.mu.Lock()
	g.m.state = StateIdle
	g.m.mu.Unlock()
	g.m = nil
}

// SummarizeGrant is the capability for one summarization cycle, spanning its
// retries. Resolve consumes it.
type SummarizeGrant struct {
	m *Machine
}

// StartSummarizing hands out a summarize grant, but only from Idle.
func (m *Machine) StartSummarizing() (*SummarizeGrant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return nil, false
	}

	m.state = StateSummarizing
	m.attempt = 1
	return &SummarizeGrant{m: m}, true
}

// Fail moves the cycle into its retry state and returns the attempt number
// just completed.
func (g *SummarizeGrant) Fail() int {
	if g.m == nil {
		return 0
	}

	g.m.mu.Lock()
	defer g.m.mu.Unlock()

	switch g.m.state {
	case StateSummarizing:
		g.m.state = StateRetry
	case StateSummarizingQueued:
		g.m.state = StateRetryQueued
	}

	return g.m.attempt
}

// Retry moves from the retry state back into active summarization for the
// next attempt.
func (g *SummarizeGrant) Retry() bool {
	if g.m == nil {
		return false
	}

	g.m.mu.Lock()
	defer g.m.mu.Unlock()

	switch g.m.state {
	case StateRetry:
		g.m.state = StateSummarizing
	case StateRetryQueued:
		g.m.state = StateSummarizingQueued
	default:
		return false
	}

	g.m.attempt++
	return true
}

// Resolve ends the cycle, successful or not, returning any message queued
// while it ran. The grant is consumed; the machine is Idle again.
func (g *SummarizeGrant) Resolve() *core.Message {
	if g.m == nil {
		return nil
	}

	g.m.mu.Lock()
	queued := g.m.queued
	g.m.queued = nil
	g.m.state = StateIdle
	g.m.attempt = 0
	g.m.mu.Unlock()

	g.m = nil
	return queued
}

// Enqueue holds a user message typed while summarization is in flight. Only
// one message can wait; it is handed back exactly once, by Resolve.
func (m *Machine) Enqueue(msg core.Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queued != nil {
		return false
	}

	switch m.state {
	case StateSummarizing:
		m.state = StateSummarizingQueued
	case StateRetry:
		m.state = StateRetryQueued
	default:
		return false
	}

	m.queued = &msg
	return true
}
