package statedb

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateThenReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")

	db, err := Open(path)
	require.NoError(t, err)

	id := uuid.New()
	db.Update(id, func(r *Record) { r.State = StateInstalling })

	// writer goroutine persists asynchronously; poll briefly for it.
	require.Eventually(t, func() bool {
		reopened, err := Open(path)
		if err != nil {
			return false
		}
		return reopened.Get(id).State == StateInstalling
	}, time.Second, 10*time.Millisecond)
}

func TestMissingOrCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	db, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, StateBare, db.Get(uuid.New()).State)
}

func TestConcurrentUpdatesToDistinctUUIDsDoNotCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	db, err := Open(path)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 50)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			db.Update(id, func(r *Record) { r.State = StateOffline })
		}(id)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		for _, id := range ids {
			if db.Get(id).State != StateOffline {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)
}

func TestTransitionObserverFiresOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")

	type transition struct{ from, to State }
	var mu sync.Mutex
	var seen []transition

	db, err := Open(path, WithTransitionObserver(func(id uuid.UUID, from, to State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, transition{from, to})
	}))
	require.NoError(t, err)

	id := uuid.New()
	db.Update(id, func(r *Record) { r.State = StateInstalling })
	db.Update(id, func(r *Record) { r.State = StateOffline })

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, StateBare, seen[0].from)
	assert.Equal(t, StateInstalling, seen[0].to)
	assert.Equal(t, StateInstalling, seen[1].from)
	assert.Equal(t, StateOffline, seen[1].to)
}
