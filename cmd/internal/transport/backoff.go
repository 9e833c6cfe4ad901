package transport

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	// DefaultMaxAttempts is the attempt ceiling of one reconnection episode.
	DefaultMaxAttempts = 15

	backoffMin       = time.Second
	backoffMax       = 30 * time.Second
	backoffJitterMax = time.Second
	backoffFlatSteps = 5
)

// Backoff returns the delay before the next attempt after attempt failed.
//
// Attempts 1..5 wait 1s plus jitter; later attempts double from 2s up to 30s,
// plus jitter. Mobile clients always wait exactly 1s. jitter is clamped to [0, 1s).
func Backoff(attempt int, mobile bool, jitter time.Duration) time.Duration {
	if mobile {
		return backoffMin
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter >= backoffJitterMax {
		jitter %= backoffJitterMax
	}
	if attempt <= backoffFlatSteps {
		return backoffMin + jitter
	}

	exp := attempt - backoffFlatSteps
	if exp > 6 {
		exp = 6
	}
	d := backoffMin << exp
	if d > backoffMax {
		d = backoffMax
	}
	return d + jitter
}

func randomJitter() time.Duration {
	return rand.N(backoffJitterMax)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
