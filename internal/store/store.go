// Package store persists document snapshots so a server restart does
// not lose documents. The server works without any store at all, in
// which case documents live only in process memory.
package store

import (
	"context"
	"errors"

	"collabtext/internal/crdt"
)

// ErrNotFound is returned when a document has no persisted snapshot.
var ErrNotFound = errors.New("snapshot not found")

// Store persists full character sequences keyed by document id.
// Implementations: Postgres (pgx), Bolt (local file), Memory (tests).
type Store interface {
	// SaveSnapshot overwrites the persisted snapshot for a document.
	SaveSnapshot(ctx context.Context, docID string, chars []crdt.Char) error

	// LoadSnapshot returns the persisted snapshot for a document.
	// Returns ErrNotFound if the document was never saved.
	LoadSnapshot(ctx context.Context, docID string) ([]crdt.Char, error)

	// Close releases the underlying resources.
	Close() error
}
