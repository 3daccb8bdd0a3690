package window

import (
	"errors"

	"github.com/erg0nix/samtale/internal/core"
	"github.com/erg0nix/samtale/internal/history"
)

// ErrNeedsSummarization signals that the context can be brought under budget
// by compacting the oldest uncompacted messages.
var ErrNeedsSummarization = errors.New("context needs summarization")

// ViewMessage is one entry of the working view with its cache marking.
type ViewMessage struct {
	core.Message
	CacheEligible bool
}

// View is the budget-fitting context for the next request: the active
// summary rendered as a leading system message, then the uncompacted tail.
type View struct {
	Summary  *core.Summary
	Messages []ViewMessage
	Usage    Usage
}

// Build composes the working view for a log under a budget. When the oracle
// says the context does not fit, the usage verdict is returned alongside a
// typed error so callers can branch on recoverability.
func Build(log *history.Log, budget int) (View, error) {
	usage := EvaluateLog(log, budget)
	view := View{Usage: usage}

	if usage.Kind == UsageRecentTooLarge {
		return view, &core.BudgetError{Required: usage.Required, Budget: usage.Budget}
	}
	if usage.Kind == UsageNeedsSummarization {
		return view, ErrNeedsSummarization
	}

	state := log.CompactionState()
	view.Summary = state.Summary

	for _, msg := range log.Tail() {
		view.Messages = append(view.Messages, ViewMessage{
			Message:       msg,
			CacheEligible: log.CacheEligible(msg.Index),
		})
	}

	return view, nil
}

// Request renders the view as the flat message list sent to the provider.
func (v View) Request() []core.Message {
	var out []core.Message

	if v.Summary != nil {
		out = append(out, core.Message{
			Role:    core.RoleSystem,
			Content: "Summary of the earlier conversation:\n" + v.Summary.Text,
			Tokens:  v.Summary.Tokens,
		})
	}

	for _, msg := range v.Messages {
		out = append(out, msg.Message)
	}

	return out
}
