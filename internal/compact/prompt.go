package compact

import (
	"fmt"
	"strings"

	"github.com/erg0nix/samtale/internal/core"
)

const promptHeader = `Condense the conversation below into a brief summary that preserves ` +
	`decisions, open tasks, and any facts needed to continue it. Respond with ` +
	`the summary text only.`

// BuildPrompt renders the summarization request: the instruction header, the
// previous summary when one is being superseded, and the selected messages
// as numbered role-tagged lines.
func BuildPrompt(previous *core.Summary, selected []core.Message) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\n")

	if previous != nil {
		b.WriteString("Summary so far:\n")
		b.WriteString(previous.Text)
		b.WriteString("\n\n")
	}

	b.WriteString("Conversation:\n")
	for _, msg := range selected {
		fmt.Fprintf(&b, "[%d] %s: %s\n", msg.Index, msg.Role, msg.Content)
	}

	return b.String()
}
