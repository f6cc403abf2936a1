package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabtext/internal/crdt"
	"collabtext/internal/store"
)

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	r := NewRegistry(nil, nil)
	a := r.GetOrCreate(context.Background(), "doc-a")
	b := r.GetOrCreate(context.Background(), "doc-a")
	other := r.GetOrCreate(context.Background(), "doc-b")
	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
}

func TestGetOrCreateConcurrentFirstAccess(t *testing.T) {
	r := NewRegistry(nil, nil)
	const n = 32
	out := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i] = r.GetOrCreate(context.Background(), "doc")
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		assert.Same(t, out[0], out[i])
	}
}

func TestRegistryRestoresFromStore(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.SaveSnapshot(context.Background(), "doc", []crdt.Char{
		{ID: "id1", Value: "h", Visible: true},
		{ID: "id2", Value: "i", Visible: true},
	}))

	r := NewRegistry(st, nil)
	s := r.GetOrCreate(context.Background(), "doc")
	assert.Equal(t, "hi", s.VisibleText())

	// unknown documents start empty
	fresh := r.GetOrCreate(context.Background(), "other")
	assert.Equal(t, "", fresh.VisibleText())
}

func TestRegistryPersistAndSaveAll(t *testing.T) {
	st := store.NewMemory()
	r := NewRegistry(st, nil)

	s := r.GetOrCreate(context.Background(), "doc")
	s.ApplyInsert("a", "x", nil, "")
	r.Persist(context.Background(), "doc")

	chars, err := st.LoadSnapshot(context.Background(), "doc")
	require.NoError(t, err)
	assert.Len(t, chars, 1)

	s.ApplyInsert("a", "y", nil, "")
	r.SaveAll(context.Background())
	chars, err = st.LoadSnapshot(context.Background(), "doc")
	require.NoError(t, err)
	assert.Len(t, chars, 2)
}
