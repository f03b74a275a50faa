package service

import (
	"testing"
	"time"
)

func TestTimelineCache_getSet(t *testing.T) {
	c := newTimelineCache(time.Minute)
	if _, ok := c.get(1); ok {
		t.Fatal("empty cache returned an entry")
	}
	tl := &Timeline{}
	c.set(1, tl)
	got, ok := c.get(1)
	if !ok || got != tl {
		t.Fatal("expected cached timeline")
	}
}

func TestTimelineCache_expiry(t *testing.T) {
	c := newTimelineCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.set(1, &Timeline{})
	c.set(2, &Timeline{})

	now = now.Add(2 * time.Minute)
	if _, ok := c.get(1); ok {
		t.Error("expired entry returned")
	}
	if n := c.evict(); n != 2 {
		t.Errorf("evict() = %d, want 2", n)
	}
	if c.len() != 0 {
		t.Errorf("len() = %d, want 0", c.len())
	}
}

func TestTimelineCache_invalidate(t *testing.T) {
	c := newTimelineCache(time.Minute)
	c.set(1, &Timeline{})
	c.invalidate(1)
	if _, ok := c.get(1); ok {
		t.Error("invalidated entry returned")
	}
}
