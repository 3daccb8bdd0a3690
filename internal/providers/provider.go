// Package providers talks to OpenAI-compatible chat completion endpoints:
// streaming for interactive turns, non-streaming for background
// summarization.
package providers

import (
	"context"

	"github.com/erg0nix/samtale/internal/core"
)

// Provider is the transport to the remote model. StreamChat returns a
// finite, non-restartable event channel; cancelling the context ends the
// stream. Summarize is a blocking background-tier completion.
type Provider interface {
	StreamChat(ctx context.Context, messages []core.Message, model string) (<-chan core.StreamEvent, error)
	Summarize(ctx context.Context, prompt string, model string) (string, error)
	CountTokens(text string) (int, error)
}
