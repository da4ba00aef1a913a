package tabkv

import (
	"fmt"
	"slices"
	"sync"

	"github.com/cockroachdb/pebble"
)

// pebbleStore is the Pebble-backed production Store. Pebble has no
// buckets, so every entry key is prefixed with a tag byte and the raw
// handle bytes; handle existence is tracked under a separate meta tag.
type pebbleStore struct {
	pdb    *pebble.DB
	wo     *pebble.WriteOptions
	mu     sync.RWMutex
	closed bool
}

const (
	pebbleMetaTag = 0x00
	pebbleDataTag = 0x01
)

func newPebbleStore(pdb *pebble.DB, noSync bool) *pebbleStore {
	wo := pebble.Sync
	if noSync {
		wo = pebble.NoSync
	}
	return &pebbleStore{pdb: pdb, wo: wo}
}

func pebbleMetaKey(h Handle) []byte {
	k := make([]byte, 0, 1+len(h))
	k = append(k, pebbleMetaTag)
	return append(k, h.raw()...)
}

func pebbleDataPrefix(h Handle) []byte {
	k := make([]byte, 0, 1+len(h))
	k = append(k, pebbleDataTag)
	return append(k, h.raw()...)
}

func pebbleDataKey(h Handle, key []byte) []byte {
	return append(pebbleDataPrefix(h), key...)
}

func (s *pebbleStore) ensureHandle(h Handle) error {
	if s.closed {
		return ErrStoreClosed
	}
	v, closer, err := s.pdb.Get(pebbleMetaKey(h))
	if err == pebble.ErrNotFound {
		return fmt.Errorf("tabkv: unknown handle %v", h)
	}
	if err != nil {
		return err
	}
	_ = v
	return closer.Close()
}

func (s *pebbleStore) CreateHandle() (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Handle{}, ErrStoreClosed
	}
	h := newHandle()
	if err := s.pdb.Set(pebbleMetaKey(h), []byte{1}, s.wo); err != nil {
		return Handle{}, fmt.Errorf("tabkv: create handle: %w", err)
	}
	return h, nil
}

func (s *pebbleStore) Insert(h Handle, key, boxed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureHandle(h); err != nil {
		return err
	}
	dk := pebbleDataKey(h, key)
	_, closer, err := s.pdb.Get(dk)
	if err == nil {
		_ = closer.Close()
		return ErrAlreadyExists
	}
	if err != pebble.ErrNotFound {
		return err
	}
	return s.pdb.Set(dk, boxed, s.wo)
}

func (s *pebbleStore) Lookup(h Handle, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureHandle(h); err != nil {
		return nil, err
	}
	v, closer, err := s.pdb.Get(pebbleDataKey(h, key))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	boxed := slices.Clone(v)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return boxed, nil
}

func (s *pebbleStore) Put(h Handle, key, boxed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureHandle(h); err != nil {
		return err
	}
	return s.pdb.Set(pebbleDataKey(h, key), boxed, s.wo)
}

func (s *pebbleStore) Delete(h Handle, key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureHandle(h); err != nil {
		return nil, err
	}
	dk := pebbleDataKey(h, key)
	v, closer, err := s.pdb.Get(dk)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	old := slices.Clone(v)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	if err := s.pdb.Delete(dk, s.wo); err != nil {
		return nil, err
	}
	return old, nil
}

func (s *pebbleStore) Exists(h Handle, key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureHandle(h); err != nil {
		return false, err
	}
	_, closer, err := s.pdb.Get(pebbleDataKey(h, key))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, closer.Close()
}

func (s *pebbleStore) ReleaseHandle(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureHandle(h); err != nil {
		return err
	}
	return s.pdb.Delete(pebbleMetaKey(h), s.wo)
}

func (s *pebbleStore) OpenCursor(h Handle, start, end []byte, dir Direction) (Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureHandle(h); err != nil {
		return nil, err
	}

	prefix := pebbleDataPrefix(h)
	lower := slices.Clone(prefix)
	if start != nil {
		lower = append(lower, start...)
	}
	var upper []byte
	if end != nil {
		upper = append(slices.Clone(prefix), end...)
	} else {
		// Successor of the data prefix; the leading tag byte is never
		// 0xFF, so inc always succeeds.
		upper = slices.Clone(prefix)
		if !inc(upper) {
			panic("unreachable: data prefix overflow")
		}
	}

	it, err := s.pdb.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}
	return &pebbleCursor{it: it, prefixLen: len(prefix), dir: dir}, nil
}

func (s *pebbleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.pdb.Close()
}

type pebbleCursor struct {
	it        *pebble.Iterator
	prefixLen int
	dir       Direction
	init      bool
	valid     bool
}

func (c *pebbleCursor) Advance() (bool, error) {
	if !c.init {
		c.init = true
		if c.dir == Descending {
			c.valid = c.it.Last()
		} else {
			c.valid = c.it.First()
		}
	} else if c.valid {
		if c.dir == Descending {
			c.valid = c.it.Prev()
		} else {
			c.valid = c.it.Next()
		}
	}
	if err := c.it.Error(); err != nil {
		return false, err
	}
	return c.valid, nil
}

func (c *pebbleCursor) Read() ([]byte, []byte, error) {
	if !c.valid {
		return nil, nil, ErrUsage
	}
	full := c.it.Key()
	key := slices.Clone(full[c.prefixLen:])
	v, err := c.it.ValueAndErr()
	if err != nil {
		return nil, nil, err
	}
	return key, slices.Clone(v), nil
}

func (c *pebbleCursor) Close() error {
	return c.it.Close()
}
