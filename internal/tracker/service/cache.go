package service

import (
	"sync"
	"time"
)

type cacheEntry struct {
	timeline  *Timeline
	expiresAt time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// timelineCache holds computed timelines per project for a fixed TTL.
// Writes to a project's snapshots must invalidate its entry.
type timelineCache struct {
	mu      sync.RWMutex
	entries map[int64]*cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func newTimelineCache(ttl time.Duration) *timelineCache {
	return &timelineCache{
		entries: make(map[int64]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *timelineCache) get(projectID int64) (*Timeline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[projectID]
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	return e.timeline, true
}

func (c *timelineCache) set(projectID int64, tl *Timeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[projectID] = &cacheEntry{timeline: tl, expiresAt: c.now().Add(c.ttl)}
}

func (c *timelineCache) invalidate(projectID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, projectID)
}

// evict removes expired entries and returns how many were dropped.
func (c *timelineCache) evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *timelineCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
