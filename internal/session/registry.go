package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"collabtext/internal/store"
)

// Registry maps document ids to their single Session. Sessions are
// created lazily on first access and retained for the process lifetime,
// so a document survives all of its clients disconnecting.
type Registry struct {
	store store.Store // may be nil: memory-only process
	sink  Sink        // may be nil

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(st store.Store, sink Sink) *Registry {
	return &Registry{
		store:    st,
		sink:     sink,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the document's session, creating it exactly once
// under concurrent first access. A configured store is consulted on
// creation so a restarted server picks up persisted documents.
func (r *Registry) GetOrCreate(ctx context.Context, docID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[docID]; ok {
		return s
	}
	s := New(docID, r.sink)
	if r.store != nil {
		chars, err := r.store.LoadSnapshot(ctx, docID)
		switch {
		case err == nil:
			s.Restore(chars)
			log.Printf("registry: restored document %s (%d chars)", docID, len(chars))
		case errors.Is(err, store.ErrNotFound):
			// fresh document
		default:
			log.Printf("registry: loading snapshot for %s: %v", docID, err)
		}
	}
	r.sessions[docID] = s
	return s
}

// Persist writes one document's snapshot to the store, if configured.
func (r *Registry) Persist(ctx context.Context, docID string) {
	if r.store == nil {
		return
	}
	r.mu.Lock()
	s, ok := r.sessions[docID]
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := r.store.SaveSnapshot(ctx, docID, s.SnapshotChars()); err != nil {
		log.Printf("registry: saving snapshot for %s: %v", docID, err)
	}
}

// SaveAll persists every known document. Called on shutdown.
func (r *Registry) SaveAll(ctx context.Context) {
	if r.store == nil {
		return
	}
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Persist(ctx, id)
	}
}
