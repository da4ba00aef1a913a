package tabkv

import (
	"bytes"
	"fmt"
	"slices"

	"go.etcd.io/bbolt"
)

// boltStore is the Bolt-backed production Store. Each handle maps to one
// bucket named by the raw 16 handle bytes. Mutations run in their own
// write transaction; a cursor pins a read transaction until closed.
type boltStore struct {
	bdb *bbolt.DB
}

func newBoltStore(bdb *bbolt.DB) *boltStore {
	return &boltStore{bdb: bdb}
}

func (h Handle) raw() []byte {
	return h[:]
}

func boltBucket(btx *bbolt.Tx, h Handle) (*bbolt.Bucket, error) {
	b := btx.Bucket(h.raw())
	if b == nil {
		return nil, fmt.Errorf("tabkv: unknown handle %v", h)
	}
	return b, nil
}

func (s *boltStore) CreateHandle() (Handle, error) {
	h := newHandle()
	err := s.bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucket(h.raw())
		return err
	})
	if err != nil {
		return Handle{}, fmt.Errorf("tabkv: create handle: %w", err)
	}
	return h, nil
}

func (s *boltStore) Insert(h Handle, key, boxed []byte) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		b, err := boltBucket(btx, h)
		if err != nil {
			return err
		}
		if b.Get(key) != nil {
			return ErrAlreadyExists
		}
		return b.Put(key, boxed)
	})
}

func (s *boltStore) Lookup(h Handle, key []byte) ([]byte, error) {
	var boxed []byte
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		b, err := boltBucket(btx, h)
		if err != nil {
			return err
		}
		v := b.Get(key)
		if v == nil {
			return ErrNotFound
		}
		boxed = slices.Clone(v) // Bolt memory is only valid inside the tx
		return nil
	})
	return boxed, err
}

func (s *boltStore) Put(h Handle, key, boxed []byte) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		b, err := boltBucket(btx, h)
		if err != nil {
			return err
		}
		return b.Put(key, boxed)
	})
}

func (s *boltStore) Delete(h Handle, key []byte) ([]byte, error) {
	var old []byte
	err := s.bdb.Update(func(btx *bbolt.Tx) error {
		b, err := boltBucket(btx, h)
		if err != nil {
			return err
		}
		v := b.Get(key)
		if v == nil {
			return ErrNotFound
		}
		old = slices.Clone(v)
		return b.Delete(key)
	})
	return old, err
}

func (s *boltStore) Exists(h Handle, key []byte) (bool, error) {
	var found bool
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		b, err := boltBucket(btx, h)
		if err != nil {
			return err
		}
		found = b.Get(key) != nil
		return nil
	})
	return found, err
}

func (s *boltStore) ReleaseHandle(h Handle) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		err := btx.DeleteBucket(h.raw())
		if err == bbolt.ErrBucketNotFound {
			return fmt.Errorf("tabkv: unknown handle %v", h)
		}
		return err
	})
}

func (s *boltStore) OpenCursor(h Handle, start, end []byte, dir Direction) (Cursor, error) {
	btx, err := s.bdb.Begin(false)
	if err != nil {
		return nil, err
	}
	b, err := boltBucket(btx, h)
	if err != nil {
		_ = btx.Rollback()
		return nil, err
	}
	return &boltCursor{
		btx:   btx,
		bcur:  b.Cursor(),
		start: slices.Clone(start),
		end:   slices.Clone(end),
		dir:   dir,
	}, nil
}

func (s *boltStore) Close() error {
	return s.bdb.Close()
}

type boltCursor struct {
	btx        *bbolt.Tx
	bcur       *bbolt.Cursor
	start, end []byte
	dir        Direction
	init       bool
	done       bool
	k, v       []byte
}

func (c *boltCursor) Advance() (bool, error) {
	if c.done {
		return false, nil
	}
	var k, v []byte
	if !c.init {
		c.init = true
		k, v = c.seekFirst()
	} else if c.dir == Descending {
		k, v = c.bcur.Prev()
	} else {
		k, v = c.bcur.Next()
	}
	if k == nil || !c.inBounds(k) {
		c.done = true
		c.k, c.v = nil, nil
		return false, nil
	}
	c.k, c.v = k, v
	return true, nil
}

func (c *boltCursor) seekFirst() ([]byte, []byte) {
	if c.dir == Descending {
		if c.end == nil {
			return c.bcur.Last()
		}
		// The upper bound is exclusive: land on it (or past it), then
		// step back.
		k, _ := c.bcur.Seek(c.end)
		if k == nil {
			return c.bcur.Last()
		}
		return c.bcur.Prev()
	}
	if c.start == nil {
		return c.bcur.First()
	}
	return c.bcur.Seek(c.start)
}

func (c *boltCursor) inBounds(k []byte) bool {
	if c.dir == Descending {
		return c.start == nil || bytes.Compare(k, c.start) >= 0
	}
	return c.end == nil || bytes.Compare(k, c.end) < 0
}

func (c *boltCursor) Read() ([]byte, []byte, error) {
	if c.k == nil {
		return nil, nil, ErrUsage
	}
	return c.k, c.v, nil
}

func (c *boltCursor) Close() error {
	err := c.btx.Rollback()
	if err != nil && err != bbolt.ErrTxClosed {
		return err
	}
	return nil
}
