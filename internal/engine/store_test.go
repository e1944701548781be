package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	assert.Zero(t, store.Len())

	_, ok := store.Get("missing")
	assert.False(t, ok)

	sess := &Session{ID: "sess-1", Phase: PhaseInit}
	store.Put(sess)
	assert.Equal(t, 1, store.Len())

	got, ok := store.Get("sess-1")
	require.True(t, ok)
	assert.Same(t, sess, got, "the store hands back the live session, not a copy")

	// Same ID replaces.
	replacement := &Session{ID: "sess-1", Phase: PhasePicked}
	store.Put(replacement)
	assert.Equal(t, 1, store.Len())
	got, ok = store.Get("sess-1")
	require.True(t, ok)
	assert.Same(t, replacement, got)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", i)
			store.Put(&Session{ID: id})
			_, ok := store.Get(id)
			assert.True(t, ok)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16, store.Len())
}
