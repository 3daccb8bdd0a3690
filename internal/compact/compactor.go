package compact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erg0nix/samtale/internal/core"
	"github.com/erg0nix/samtale/internal/history"
	"github.com/erg0nix/samtale/internal/tokens"
)

// Summarizer produces a summary text for a prompt via a background-tier,
// non-streaming completion.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string, model string) (string, error)
}

// Compactor drives one compaction: select the minimal oldest prefix, obtain
// a summary for it, and advance the log's compaction state atomically. On
// any failure the state is left exactly as it was.
type Compactor struct {
	summarizer Summarizer
	model      string
}

func NewCompactor(summarizer Summarizer, model string) *Compactor {
	return &Compactor{summarizer: summarizer, model: model}
}

// Run compacts log until at least tokensToFree tokens of uncompacted
// messages are covered by the new summary. The most recent messages are
// never selected.
func (c *Compactor) Run(ctx context.Context, log *history.Log, tokensToFree int) (core.Summary, error) {
	tail := log.Tail()

	compactable := tail
	if len(tail) > history.RecentWindow {
		compactable = tail[:len(tail)-history.RecentWindow]
	} else {
		compactable = nil
	}

	end, err := SelectPrefix(compactable, tokensToFree)
	if err != nil {
		return core.Summary{}, fmt.Errorf("%w: %w", core.ErrSummarization, err)
	}

	state := log.CompactionState()
	selected, err := log.Read(core.IndexRange{Start: state.Boundary, End: end})
	if err != nil {
		return core.Summary{}, fmt.Errorf("%w: %w", core.ErrSummarization, err)
	}

	prompt := BuildPrompt(state.Summary, selected)

	text, err := c.summarizer.Summarize(ctx, prompt, c.model)
	if err != nil {
		return core.Summary{}, fmt.Errorf("%w: %w", core.ErrSummarization, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return core.Summary{}, fmt.Errorf("%w: empty summary from model", core.ErrSummarization)
	}

	summary := core.Summary{
		Covers:      core.IndexRange{Start: 0, End: end},
		Text:        text,
		Tokens:      tokens.Estimate(text),
		SourceModel: c.model,
		CreatedAt:   time.Now().UTC(),
	}

	if err := log.ApplyCompaction(summary); err != nil {
		return core.Summary{}, fmt.Errorf("%w: %w", core.ErrSummarization, err)
	}

	return summary, nil
}
