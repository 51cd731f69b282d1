package atomics

import (
	"context"
	"sync/atomic"
	"time"
)

// Waits until value reads 0 three consecutive times, or timeout/ctx expires
func WaitUntilZero(ctx context.Context, value *atomic.Uint64, timeout time.Duration) (reachedZero bool, lastValue uint64) {
	const requiredStreak = 3
	const maxBackoff = 1 * time.Second

	backoff := 50 * time.Millisecond
	deadline := time.Now().Add(timeout)
	streak := 0

	for {
		lastValue = value.Load()
		if lastValue == 0 {
			streak++
			if streak >= requiredStreak {
				reachedZero = true
				return
			}
		} else {
			streak = 0
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if backoff > remaining {
			backoff = remaining
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
