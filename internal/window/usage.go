// Package window derives the budget-constrained working view of a
// conversation from the log and its compaction state. Nothing here is
// persisted; the view is recomputed on demand.
package window

import (
	"fmt"

	"github.com/erg0nix/samtale/internal/core"
	"github.com/erg0nix/samtale/internal/history"
	"github.com/erg0nix/samtale/internal/tokens"
)

type UsageKind string

const (
	UsageReady              UsageKind = "ready"
	UsageNeedsSummarization UsageKind = "needs_summarization"
	UsageRecentTooLarge     UsageKind = "recent_messages_too_large"
)

// Usage is the oracle verdict for one prospective request. TokensToFree is
// set only for UsageNeedsSummarization; Required only for
// UsageRecentTooLarge, where it names the cost that compaction cannot free.
type Usage struct {
	Kind         UsageKind
	Used         int
	Budget       int
	TokensToFree int
	Required     int
}

// Evaluate computes the verdict for a summary-plus-tail context against a
// budget. If over budget it checks whether folding the oldest uncompacted
// messages into a superseding summary could free enough; the most recent
// messages are never folded, so a context whose unfoldable remainder alone
// exceeds the budget is a hard failure.
func Evaluate(summary *core.Summary, tail []core.Message, budget int) Usage {
	used := tokens.SummaryCost(summary) + tokens.TotalCost(tail)

	if used <= budget {
		return Usage{Kind: UsageReady, Used: used, Budget: budget}
	}

	toFree := used - budget

	compactable := 0
	if len(tail) > history.RecentWindow {
		compactable = tokens.TotalCost(tail[:len(tail)-history.RecentWindow])
	}

	if compactable >= toFree {
		return Usage{Kind: UsageNeedsSummarization, Used: used, Budget: budget, TokensToFree: toFree}
	}

	return Usage{Kind: UsageRecentTooLarge, Used: used, Budget: budget, Required: used - compactable}
}

// EvaluateLog is Evaluate over a log's current compaction state and tail.
func EvaluateLog(log *history.Log, budget int) Usage {
	state := log.CompactionState()
	return Evaluate(state.Summary, log.Tail(), budget)
}

// FormatCompact renders usage as a short status fragment, e.g. "3.2k/8.0k".
func (u Usage) FormatCompact() string {
	return formatTokens(u.Used) + "/" + formatTokens(u.Budget)
}

type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarn
	SeverityCritical
)

// Severity grades how close the context is to its budget, for status lines.
func (u Usage) Severity() Severity {
	if u.Kind != UsageReady {
		return SeverityCritical
	}

	if u.Budget > 0 && u.Used*10 >= u.Budget*8 {
		return SeverityWarn
	}

	return SeverityOK
}

func formatTokens(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	return fmt.Sprintf("%.1fk", float64(n)/1000)
}
