package session

import (
	"math/rand"
	"time"
)

// retryDelay computes the backoff before the given attempt number retries:
// exponential from the base, capped, with up to 25% jitter.
func retryDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}

	if delay > max {
		delay = max
	}

	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}
