package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/erg0nix/samtale/internal/compact"
	"github.com/erg0nix/samtale/internal/config"
	"github.com/erg0nix/samtale/internal/core"
	"github.com/erg0nix/samtale/internal/history"
	"github.com/erg0nix/samtale/internal/journal"
	"github.com/erg0nix/samtale/internal/providers"
	"github.com/erg0nix/samtale/internal/tokens"
	"github.com/erg0nix/samtale/internal/window"
)

// Sink receives the live output of a turn. Delta is called only after the
// corresponding event has been durably journaled; Thinking content is
// transient and never journaled.
type Sink interface {
	Delta(text string)
	Thinking(text string)
	Final(msg core.Message)
	Notice(text string)
}

type noopSink struct{}

func (noopSink) Delta(string)       {}
func (noopSink) Thinking(string)    {}
func (noopSink) Final(core.Message) {}
func (noopSink) Notice(string)      {}

type Params struct {
	Log       *history.Log
	Journal   *journal.Store
	Provider  providers.Provider
	Compactor *compact.Compactor
	Sink      Sink
	ChatModel string
	Budget    int
	Retry     config.RetryConfig
}

// Engine processes turns for one conversation: budget check, compaction when
// needed, journal-backed streaming, and crash recovery.
type Engine struct {
	machine   *Machine
	log       *history.Log
	journal   *journal.Store
	provider  providers.Provider
	compactor *compact.Compactor
	sink      Sink
	chatModel string
	budget    int
	retry     config.RetryConfig

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func NewEngine(p Params) *Engine {
	sink := p.Sink
	if sink == nil {
		sink = noopSink{}
	}

	if p.Retry.MaxAttempts < 1 {
		p.Retry.MaxAttempts = 1
	}

	return &Engine{
		machine:   NewMachine(),
		log:       p.Log,
		journal:   p.Journal,
		provider:  p.Provider,
		compactor: p.Compactor,
		sink:      sink,
		chatModel: p.ChatModel,
		budget:    p.Budget,
		retry:     p.Retry,
	}
}

func (e *Engine) Machine() *Machine {
	return e.machine
}

// Usage reports the current budget verdict for status display.
func (e *Engine) Usage() window.Usage {
	return window.EvaluateLog(e.log, e.budget)
}

// Recover folds any crashed streams back into the log. Must run to
// completion before the first Send, so an in-progress recovery never
// interleaves with a fresh turn.
func (e *Engine) Recover() error {
	recovered, err := e.journal.Recover()
	if err != nil {
		return err
	}

	for _, stream := range recovered {
		if strings.TrimSpace(stream.Text) != "" {
			msg, err := core.NewMessage(core.RoleAssistant, stream.Text, e.countTokens(stream.Text))
			if err != nil {
				return err
			}
			msg.Interrupted = !stream.Complete

			if _, err := e.log.Append(msg); err != nil {
				return err
			}

			if msg.Interrupted {
				e.sink.Notice("recovered an interrupted response from a previous run")
			}
		}

		if err := e.journal.Resolve(stream.StreamID); err != nil {
			return err
		}

		slog.Info("recovered stream journal", "stream_id", stream.StreamID, "complete", stream.Complete)
	}

	return nil
}

// Send processes one user turn. A message arriving while summarization is in
// flight is queued and delivered exactly once after it resolves.
func (e *Engine) Send(ctx context.Context, text string) error {
	msg, err := core.NewMessage(core.RoleUser, text, e.countTokens(text))
	if err != nil {
		return err
	}

	if e.machine.Summarizing() {
		if !e.machine.Enqueue(msg) {
			return errors.New("a message is already waiting on summarization")
		}
		e.sink.Notice("summarizing older messages, your message will be sent next")
		return nil
	}

	return e.deliver(ctx, msg)
}

// Cancel aborts the in-flight stream, if any. The journal session is closed
// with a terminal error record.
func (e *Engine) Cancel() {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) deliver(ctx context.Context, msg core.Message) error {
	if _, err := e.log.Append(msg); err != nil {
		return err
	}

	queued, err := e.runTurn(ctx)
	if queued != nil {
		deliverErr := e.deliver(ctx, *queued)
		if err == nil {
			err = deliverErr
		}
	}

	return err
}

func (e *Engine) runTurn(ctx context.Context) (*core.Message, error) {
	var queued *core.Message

	for hop := 0; hop < 3; hop++ {
		view, buildErr := window.Build(e.log, e.budget)

		switch {
		case buildErr == nil:
			return queued, e.stream(ctx, view)

		case errors.Is(buildErr, window.ErrNeedsSummarization):
			q, sumErr := e.summarize(ctx, view.Usage.TokensToFree)
			if q != nil {
				queued = q
			}
			if sumErr != nil {
				return queued, sumErr
			}

		default:
			return queued, buildErr
		}
	}

	return queued, fmt.Errorf("%w: context still over budget after compaction", core.ErrSummarization)
}

func (e *Engine) summarize(ctx context.Context, tokensToFree int) (*core.Message, error) {
	grant, ok := e.machine.StartSummarizing()
	if !ok {
		return nil, fmt.Errorf("cannot summarize while %s", e.machine.State())
	}

	base := time.Duration(e.retry.BaseDelayMS) * time.Millisecond
	maxDelay := time.Duration(e.retry.MaxDelayMS) * time.Millisecond

	var lastErr error
	for {
		_, lastErr = e.compactor.Run(ctx, e.log, tokensToFree)
		if lastErr == nil {
			break
		}

		attempt := grant.Fail()
		slog.Warn("summarization failed", "attempt", attempt, "error", lastErr)

		if attempt >= e.retry.MaxAttempts || ctx.Err() != nil {
			break
		}

		select {
		case <-ctx.Done():
		case <-time.After(retryDelay(attempt, base, maxDelay)):
		}
		if ctx.Err() != nil {
			break
		}

		grant.Retry()
	}

	queued := grant.Resolve()
	return queued, lastErr
}

func (e *Engine) stream(ctx context.Context, view window.View) error {
	grant, ok := e.machine.StartStreaming()
	if !ok {
		return fmt.Errorf("cannot stream while %s", e.machine.State())
	}
	defer grant.Finish()

	streamCtx, cancel := context.WithCancel(ctx)
	e.setCancel(cancel)
	defer func() {
		e.setCancel(nil)
		cancel()
	}()

	streamID := core.NewStreamID()
	activeJournal, err := e.journal.Begin(streamID)
	if err != nil {
		return err
	}

	events, err := e.provider.StreamChat(streamCtx, view.Request(), e.chatModel)
	if err != nil {
		_ = activeJournal.Close(nil)
		return err
	}

	var buf strings.Builder
	for event := range events {
		switch event.Kind {
		case core.EventThinkingDelta:
			e.sink.Thinking(event.Text)

		case core.EventTextDelta:
			// Durable before visible.
			if err := activeJournal.Append(event); err != nil {
				cancel()
				drain(events)
				return err
			}
			buf.WriteString(event.Text)
			e.sink.Delta(event.Text)

		case core.EventDone:
			return e.finishStream(activeJournal, event, buf.String())

		case core.EventError:
			message := event.Err
			if streamCtx.Err() != nil {
				message = "cancelled"
			}

			terminal := core.StreamError(message)
			if err := activeJournal.Close(&terminal); err != nil {
				slog.Warn("failed to close stream journal", "error", err)
			}

			return fmt.Errorf("%w: %s", core.ErrTransport, message)
		}
	}

	terminal := core.StreamError("stream ended unexpectedly")
	_ = activeJournal.Close(&terminal)
	return fmt.Errorf("%w: stream ended unexpectedly", core.ErrTransport)
}

func (e *Engine) finishStream(activeJournal *journal.ActiveJournal, done core.StreamEvent, content string) error {
	if err := activeJournal.Append(done); err != nil {
		return err
	}

	if strings.TrimSpace(content) != "" {
		msg, err := core.NewMessage(core.RoleAssistant, content, e.countTokens(content))
		if err != nil {
			return err
		}

		if _, err := e.log.Append(msg); err != nil {
			return err
		}

		e.sink.Final(msg)
	}

	if err := activeJournal.Close(nil); err != nil {
		slog.Warn("failed to close stream journal", "error", err)
	}

	return nil
}

func (e *Engine) setCancel(cancel context.CancelFunc) {
	e.cancelMu.Lock()
	e.cancel = cancel
	e.cancelMu.Unlock()
}

func (e *Engine) countTokens(text string) int {
	count, err := e.provider.CountTokens(text)
	if err != nil || count <= 0 {
		if err != nil {
			slog.Warn("failed to count tokens", "error", err)
		}
		return tokens.Estimate(text)
	}

	return count
}

func drain(events <-chan core.StreamEvent) {
	for range events {
	}
}
