package tabkv

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// memStore is a transient in-memory Store implementation intended for
// tests. Entries live in sorted slices per handle.
type memStore struct {
	mu     sync.Mutex
	tables map[Handle]*memTable
	closed bool
}

func newMemStore() *memStore {
	return &memStore{tables: make(map[Handle]*memTable)}
}

type memTable struct {
	items []memKV // sorted by key
}

type memKV struct {
	key   []byte
	boxed []byte
}

func (s *memStore) table(h Handle) (*memTable, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	t := s.tables[h]
	if t == nil {
		return nil, fmt.Errorf("tabkv: unknown handle %v", h)
	}
	return t, nil
}

func (t *memTable) find(key []byte) (idx int, ok bool) {
	items := t.items
	i := sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, key) >= 0
	})
	if i < len(items) && bytes.Equal(items[i].key, key) {
		return i, true
	}
	return i, false
}

func (s *memStore) CreateHandle() (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Handle{}, ErrStoreClosed
	}
	h := newHandle()
	s.tables[h] = &memTable{}
	return h, nil
}

func (s *memStore) Insert(h Handle, key, boxed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(h)
	if err != nil {
		return err
	}
	i, ok := t.find(key)
	if ok {
		return ErrAlreadyExists
	}
	t.items = slices.Insert(t.items, i, memKV{
		key:   slices.Clone(key),
		boxed: slices.Clone(boxed),
	})
	return nil
}

func (s *memStore) Lookup(h Handle, key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(h)
	if err != nil {
		return nil, err
	}
	i, ok := t.find(key)
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(t.items[i].boxed), nil
}

func (s *memStore) Put(h Handle, key, boxed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(h)
	if err != nil {
		return err
	}
	i, ok := t.find(key)
	if ok {
		t.items[i].boxed = slices.Clone(boxed)
		return nil
	}
	t.items = slices.Insert(t.items, i, memKV{
		key:   slices.Clone(key),
		boxed: slices.Clone(boxed),
	})
	return nil
}

func (s *memStore) Delete(h Handle, key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(h)
	if err != nil {
		return nil, err
	}
	i, ok := t.find(key)
	if !ok {
		return nil, ErrNotFound
	}
	old := t.items[i].boxed
	t.items = slices.Delete(t.items, i, i+1)
	return old, nil
}

func (s *memStore) Exists(h Handle, key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(h)
	if err != nil {
		return false, err
	}
	_, ok := t.find(key)
	return ok, nil
}

func (s *memStore) ReleaseHandle(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.table(h); err != nil {
		return err
	}
	delete(s.tables, h)
	return nil
}

func (s *memStore) OpenCursor(h Handle, start, end []byte, dir Direction) (Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(h)
	if err != nil {
		return nil, err
	}

	// Snapshot the matching range; the live slice may be reallocated by
	// later mutations even though mutating during iteration is disallowed.
	items := t.items
	lo := 0
	if start != nil {
		lo = sort.Search(len(items), func(i int) bool {
			return bytes.Compare(items[i].key, start) >= 0
		})
	}
	hi := len(items)
	if end != nil {
		hi = sort.Search(len(items), func(i int) bool {
			return bytes.Compare(items[i].key, end) >= 0
		})
	}
	if lo > hi {
		lo = hi
	}
	snap := slices.Clone(items[lo:hi])

	c := &memCursor{items: snap, dir: dir}
	if dir == Descending {
		c.pos = len(snap)
	} else {
		c.pos = -1
	}
	return c, nil
}

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tables = nil
	return nil
}

type memCursor struct {
	items []memKV
	dir   Direction
	pos   int
}

func (c *memCursor) Advance() (bool, error) {
	if c.dir == Descending {
		c.pos--
		return c.pos >= 0, nil
	}
	c.pos++
	return c.pos < len(c.items), nil
}

func (c *memCursor) Read() ([]byte, []byte, error) {
	if c.pos < 0 || c.pos >= len(c.items) {
		return nil, nil, ErrUsage
	}
	kv := c.items[c.pos]
	return kv.key, kv.boxed, nil
}

func (c *memCursor) Close() error {
	return nil
}
