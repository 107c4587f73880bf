package downloadmgr

import "time"

// Exponential backoff constants for the Defer retry policy. Uses the same
// cooldown/threshold shape as a generic failure tracker, reused here for
// the backoff curve itself rather than for failure suppression.
const (
	backoffBase = 30 * time.Second
	backoffCap  = 6 * time.Hour
)

// backoffDuration returns the delay before the next retry given the
// number of prior attempts, doubling each time and capped at backoffCap.
func backoffDuration(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	d := backoffBase

	for i := 1; i < attempts; i++ {
		d *= 2

		if d >= backoffCap {
			return backoffCap
		}
	}

	return d
}
