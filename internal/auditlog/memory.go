package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process Log for tests and single-node setups without a
// database.
type Memory struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemory returns a Memory log holding only the genesis entry.
func NewMemory() *Memory {
	return &Memory{entries: []*Entry{{
		Index:     0,
		Timestamp: now(),
		Action:    "genesis",
		Actor:     SystemActor,
		DataHash:  GenesisHash,
		PrevHash:  GenesisHash,
		Hash:      GenesisHash,
	}}}
}

// Append implements Log.
func (l *Memory) Append(_ context.Context, subject, action, actor string, payload any) (*Entry, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.entries[len(l.entries)-1]
	entry := &Entry{
		Index:     len(l.entries),
		Timestamp: now(),
		Subject:   subject,
		Action:    action,
		Actor:     actor,
		DataHash:  sha256Sum(payloadJSON),
		PrevHash:  prev.Hash,
	}
	entry.Hash = hashEntry(entry)
	l.entries = append(l.entries, entry)
	return entry, nil
}

// Get implements Log.
func (l *Memory) Get(_ context.Context, index int) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.entries) {
		return nil, fmt.Errorf("index %d out of range", index)
	}
	return l.entries[index], nil
}

// List implements Log.
func (l *Memory) List(_ context.Context, from, limit int) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if from >= len(l.entries) || limit <= 0 {
		return []*Entry{}, nil
	}
	end := min(from+limit, len(l.entries))
	out := make([]*Entry, end-from)
	copy(out, l.entries[from:end])
	return out, nil
}

// Len implements Log.
func (l *Memory) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries), nil
}

// Verify implements Log.
func (l *Memory) Verify(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var prev *Entry
	for _, curr := range l.entries {
		if err := verifyChain(prev, curr); err != nil {
			return err
		}
		prev = curr
	}
	return nil
}

// Root implements Log.
func (l *Memory) Root(_ context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[len(l.entries)-1].Hash, nil
}
