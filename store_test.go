package tabkv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStores runs f once per backend so all Store implementations are held
// to the same contract.
func runStores(t *testing.T, f func(t *testing.T, s Store)) {
	t.Helper()
	for _, backend := range []string{BackendMemory, BackendBolt, BackendPebble} {
		t.Run(backend, func(t *testing.T) {
			cfg := Config{Backend: backend, IsTesting: true}
			switch backend {
			case BackendBolt:
				cfg.Path = filepath.Join(t.TempDir(), "tabkv.db")
			case BackendPebble:
				cfg.Path = filepath.Join(t.TempDir(), "pebble")
			}
			s, err := Open(cfg)
			require.NoError(t, err)
			defer s.Close()
			f(t, s)
		})
	}
}

func TestStore_InsertLookup(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		h, err := s.CreateHandle()
		require.NoError(t, err)

		require.NoError(t, s.Insert(h, []byte("alpha"), []byte("one")))

		got, err := s.Lookup(h, []byte("alpha"))
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), got)

		_, err = s.Lookup(h, []byte("beta"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_InsertDuplicate(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		h, err := s.CreateHandle()
		require.NoError(t, err)

		require.NoError(t, s.Insert(h, []byte("alpha"), []byte("one")))
		err = s.Insert(h, []byte("alpha"), []byte("two"))
		assert.ErrorIs(t, err, ErrAlreadyExists)

		// the original value survives a failed insert
		got, err := s.Lookup(h, []byte("alpha"))
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), got)
	})
}

func TestStore_PutReplaces(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		h, err := s.CreateHandle()
		require.NoError(t, err)

		require.NoError(t, s.Put(h, []byte("alpha"), []byte("one")))
		require.NoError(t, s.Put(h, []byte("alpha"), []byte("two")))

		got, err := s.Lookup(h, []byte("alpha"))
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), got)
	})
}

func TestStore_Delete(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		h, err := s.CreateHandle()
		require.NoError(t, err)

		require.NoError(t, s.Insert(h, []byte("alpha"), []byte("one")))

		old, err := s.Delete(h, []byte("alpha"))
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), old)

		_, err = s.Delete(h, []byte("alpha"))
		assert.ErrorIs(t, err, ErrNotFound)

		ok, err := s.Exists(h, []byte("alpha"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_Exists(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		h, err := s.CreateHandle()
		require.NoError(t, err)

		ok, err := s.Exists(h, []byte("alpha"))
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Insert(h, []byte("alpha"), []byte("one")))

		ok, err = s.Exists(h, []byte("alpha"))
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestStore_HandlesAreIsolated(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		h1, err := s.CreateHandle()
		require.NoError(t, err)
		h2, err := s.CreateHandle()
		require.NoError(t, err)

		require.NoError(t, s.Insert(h1, []byte("alpha"), []byte("one")))

		_, err = s.Lookup(h2, []byte("alpha"))
		assert.ErrorIs(t, err, ErrNotFound)

		ok, err := s.Exists(h2, []byte("alpha"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_ReleaseHandle(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		h, err := s.CreateHandle()
		require.NoError(t, err)

		require.NoError(t, s.ReleaseHandle(h))

		_, err = s.Lookup(h, []byte("alpha"))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_UnknownHandle(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		var bogus Handle
		_, err := s.Lookup(bogus, []byte("alpha"))
		assert.Error(t, err)
	})
}

func storeKeys(t *testing.T, cur Cursor) []string {
	t.Helper()
	defer cur.Close()
	var keys []string
	for {
		ok, err := cur.Advance()
		require.NoError(t, err)
		if !ok {
			return keys
		}
		key, _, err := cur.Read()
		require.NoError(t, err)
		keys = append(keys, string(key))
	}
}

func TestStore_CursorAscending(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		h, err := s.CreateHandle()
		require.NoError(t, err)
		for _, k := range []string{"delta", "alpha", "charlie", "bravo"} {
			require.NoError(t, s.Insert(h, []byte(k), []byte("v")))
		}

		cur, err := s.OpenCursor(h, nil, nil, Ascending)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, storeKeys(t, cur))
	})
}

func TestStore_CursorDescending(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		h, err := s.CreateHandle()
		require.NoError(t, err)
		for _, k := range []string{"alpha", "bravo", "charlie", "delta"} {
			require.NoError(t, s.Insert(h, []byte(k), []byte("v")))
		}

		cur, err := s.OpenCursor(h, nil, nil, Descending)
		require.NoError(t, err)
		assert.Equal(t, []string{"delta", "charlie", "bravo", "alpha"}, storeKeys(t, cur))
	})
}

func TestStore_CursorBounds(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		h, err := s.CreateHandle()
		require.NoError(t, err)
		for _, k := range []string{"alpha", "bravo", "charlie", "delta", "echo"} {
			require.NoError(t, s.Insert(h, []byte(k), []byte("v")))
		}

		// start is inclusive, end is exclusive
		cur, err := s.OpenCursor(h, []byte("bravo"), []byte("delta"), Ascending)
		require.NoError(t, err)
		assert.Equal(t, []string{"bravo", "charlie"}, storeKeys(t, cur))

		cur, err = s.OpenCursor(h, []byte("bravo"), []byte("delta"), Descending)
		require.NoError(t, err)
		assert.Equal(t, []string{"charlie", "bravo"}, storeKeys(t, cur))

		cur, err = s.OpenCursor(h, []byte("bravo"), nil, Ascending)
		require.NoError(t, err)
		assert.Equal(t, []string{"bravo", "charlie", "delta", "echo"}, storeKeys(t, cur))

		cur, err = s.OpenCursor(h, nil, []byte("charlie"), Ascending)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "bravo"}, storeKeys(t, cur))
	})
}

func TestStore_CursorBoundsBetweenKeys(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		h, err := s.CreateHandle()
		require.NoError(t, err)
		for _, k := range []string{"alpha", "charlie", "echo"} {
			require.NoError(t, s.Insert(h, []byte(k), []byte("v")))
		}

		// bounds need not match stored keys
		cur, err := s.OpenCursor(h, []byte("bravo"), []byte("delta"), Ascending)
		require.NoError(t, err)
		assert.Equal(t, []string{"charlie"}, storeKeys(t, cur))

		cur, err = s.OpenCursor(h, []byte("bravo"), []byte("delta"), Descending)
		require.NoError(t, err)
		assert.Equal(t, []string{"charlie"}, storeKeys(t, cur))
	})
}

func TestStore_CursorEmptyRange(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		h, err := s.CreateHandle()
		require.NoError(t, err)
		require.NoError(t, s.Insert(h, []byte("alpha"), []byte("v")))

		cur, err := s.OpenCursor(h, []byte("bravo"), []byte("charlie"), Ascending)
		require.NoError(t, err)
		assert.Empty(t, storeKeys(t, cur))

		cur, err = s.OpenCursor(h, []byte("bravo"), []byte("charlie"), Descending)
		require.NoError(t, err)
		assert.Empty(t, storeKeys(t, cur))
	})
}

func TestStore_CursorReadBeforeAdvance(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		h, err := s.CreateHandle()
		require.NoError(t, err)
		require.NoError(t, s.Insert(h, []byte("alpha"), []byte("v")))

		cur, err := s.OpenCursor(h, nil, nil, Ascending)
		require.NoError(t, err)
		defer cur.Close()

		_, _, err = cur.Read()
		assert.ErrorIs(t, err, ErrUsage)
	})
}

func TestStore_CloseIdempotent(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())
	})
}
