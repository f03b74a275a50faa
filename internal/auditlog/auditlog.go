// Package auditlog records tracker events in an append-only hash chain.
//
// The chain starts with a genesis entry whose Hash is GenesisHash. Each later
// entry stores the hash of its predecessor, so editing or removing a row is
// detected by Verify.
package auditlog

import "context"

// Tracker events written to the log.
const (
	ActionProjectCreated = "project.created"
	ActionProjectDeleted = "project.deleted"
	ActionSnapshotAdded  = "snapshot.added"
)

// SystemActor is recorded when no authenticated subject is available.
const SystemActor = "tracker-system"

// Log is implemented by Memory and Postgres.
type Log interface {
	// Append chains a new entry. payload is JSON-encoded and only its
	// SHA-256 is kept.
	Append(ctx context.Context, subject, action, actor string, payload any) (*Entry, error)

	// Get returns the entry at a zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// List returns up to limit entries starting at index from.
	List(ctx context.Context, from, limit int) ([]*Entry, error)

	// Len counts entries including genesis.
	Len(ctx context.Context) (int, error)

	// Verify walks the chain and returns nil when every link is intact.
	Verify(ctx context.Context) error

	// Root returns the hash of the chain tip.
	Root(ctx context.Context) (string, error)
}
