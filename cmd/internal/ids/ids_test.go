package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNew_IsTimestampedULID(t *testing.T) {
	t.Parallel()

	before := time.Now().Add(-time.Second)
	s := New()
	if len(s) != ulid.EncodedSize {
		t.Fatalf("len=%d want %d", len(s), ulid.EncodedSize)
	}

	id, err := ulid.Parse(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := ulid.Time(id.Time()); got.Before(before) {
		t.Fatalf("time=%v is before %v", got, before)
	}
}

func TestNew_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		s := New()
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate id %s", s)
		}
		seen[s] = struct{}{}
	}
}
