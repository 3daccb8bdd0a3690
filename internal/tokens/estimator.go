// Package tokens provides conversation cost accounting: a cheap deterministic
// estimator for text, and a registry of per-model context budgets.
package tokens

import "github.com/erg0nix/samtale/internal/core"

// messageOverhead approximates the per-message framing tokens a chat
// completion endpoint charges on top of the content itself.
const messageOverhead = 4

// Estimate returns an approximate token count for raw text. Roughly four
// characters per token, which tracks close enough for budget decisions.
func Estimate(text string) int {
	return len(text) / 4
}

// MessageCost is the full accounted cost of one message: content plus role
// plus framing overhead.
func MessageCost(msg core.Message) int {
	return Estimate(msg.Content) + Estimate(string(msg.Role)) + messageOverhead
}

// CostOf prefers the cost recorded at append time, falling back to the
// estimator when none is present.
func CostOf(msg core.Message) int {
	if msg.Tokens > 0 {
		return msg.Tokens
	}
	return MessageCost(msg)
}

// TotalCost sums CostOf over a slice.
func TotalCost(messages []core.Message) int {
	total := 0
	for _, msg := range messages {
		total += CostOf(msg)
	}

	return total
}

// SummaryCost accounts a summary the same way as the system message it will
// be rendered as.
func SummaryCost(summary *core.Summary) int {
	if summary == nil {
		return 0
	}

	if summary.Tokens > 0 {
		return summary.Tokens + messageOverhead
	}

	return Estimate(summary.Text) + Estimate(string(core.RoleSystem)) + messageOverhead
}
