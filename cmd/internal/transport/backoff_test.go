package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		attempt int
		mobile  bool
		jitter  time.Duration
		want    time.Duration
	}{
		{name: "first attempt", attempt: 1, want: time.Second},
		{name: "fifth attempt with jitter", attempt: 5, jitter: 400 * time.Millisecond, want: 1400 * time.Millisecond},
		{name: "sixth attempt doubles", attempt: 6, want: 2 * time.Second},
		{name: "seventh attempt", attempt: 7, jitter: time.Millisecond, want: 4*time.Second + time.Millisecond},
		{name: "ninth attempt", attempt: 9, want: 16 * time.Second},
		{name: "tenth attempt caps", attempt: 10, want: 30 * time.Second},
		{name: "fifteenth attempt caps", attempt: 15, jitter: 999 * time.Millisecond, want: 30*time.Second + 999*time.Millisecond},
		{name: "mobile ignores attempt", attempt: 12, mobile: true, jitter: 500 * time.Millisecond, want: time.Second},
		{name: "negative jitter clamps", attempt: 2, jitter: -time.Second, want: time.Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Backoff(tc.attempt, tc.mobile, tc.jitter))
		})
	}
}

func TestBackoffBounds(t *testing.T) {
	t.Parallel()

	for attempt := 1; attempt <= DefaultMaxAttempts; attempt++ {
		for _, j := range []time.Duration{0, 250 * time.Millisecond, 999 * time.Millisecond, 5 * time.Second} {
			d := Backoff(attempt, false, j)
			assert.GreaterOrEqual(t, d, time.Second, "attempt %d", attempt)
			assert.Less(t, d, 31*time.Second, "attempt %d", attempt)
			if attempt <= 5 {
				assert.Less(t, d, 2*time.Second, "attempt %d", attempt)
			}

			assert.Equal(t, time.Second, Backoff(attempt, true, j))
		}
	}
}

func TestRandomJitterRange(t *testing.T) {
	t.Parallel()

	for range 200 {
		j := randomJitter()
		require.GreaterOrEqual(t, j, time.Duration(0))
		require.Less(t, j, time.Second)
	}
}

func TestSleepContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
