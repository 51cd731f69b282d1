// Helper functions for atomic counters shared between workers and metric collectors
package atomics

import (
	"sync/atomic"
	"time"
)

// Subtracts value from source, flooring at zero.
// Retries with exponential backoff while the CAS is contended, up to maxRetries.
func Subtract(source *atomic.Uint64, value uint64, maxRetries int) (success bool) {
	backoff := 10 * time.Microsecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		current := source.Load()
		if current == 0 {
			success = true
			return
		}

		next := uint64(0)
		if value < current {
			next = current - value
		}

		if source.CompareAndSwap(current, next) {
			success = true
			return
		}

		time.Sleep(backoff)
		backoff *= 2
	}
	return
}

// Raises target to candidate if candidate is larger
func StoreMax(target *atomic.Uint64, candidate uint64) {
	for {
		current := target.Load()
		if candidate <= current {
			return
		}
		if target.CompareAndSwap(current, candidate) {
			return
		}
	}
}
