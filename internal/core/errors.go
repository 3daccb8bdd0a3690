package core

import (
	"errors"
	"fmt"
)

// Failure taxonomy for turn processing. Storage failures abort the current
// turn without corrupting prior durable state; transport and summarization
// failures are retryable by the caller.
var (
	ErrStorage       = errors.New("storage failure")
	ErrTransport     = errors.New("transport failure")
	ErrSummarization = errors.New("summarization failed")
)

// BudgetError reports that the recent, uncompactable portion of the
// conversation alone exceeds the model budget. Compaction cannot fix this;
// the user has to start over or switch to a larger model.
type BudgetError struct {
	Required int
	Budget   int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("recent messages require %d tokens but the budget is %d", e.Required, e.Budget)
}
