// Package compact turns the oldest uncompacted prefix of a conversation log
// into a superseding summary when the working view exceeds its budget.
package compact

import (
	"fmt"

	"github.com/erg0nix/samtale/internal/core"
	"github.com/erg0nix/samtale/internal/tokens"
)

// SelectPrefix picks the minimal oldest contiguous run of messages whose
// cost reaches tokensToFree, stopping at the first message boundary that
// satisfies it. Returns the half-open end index of the selected run.
func SelectPrefix(compactable []core.Message, tokensToFree int) (uint64, error) {
	if tokensToFree <= 0 {
		return 0, fmt.Errorf("nothing to free (%d tokens)", tokensToFree)
	}

	freed := 0
	for _, msg := range compactable {
		freed += tokens.CostOf(msg)
		if freed >= tokensToFree {
			return msg.Index + 1, nil
		}
	}

	return 0, fmt.Errorf("compactable prefix frees only %d of %d tokens", freed, tokensToFree)
}
