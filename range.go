package tabkv

// Range bounds a scan over a table's entries. Start is inclusive, End is
// exclusive; a nil bound leaves that side open. The zero value scans the
// whole table in ascending order.
//
// Ordering contract: entries are yielded in the byte order of their
// canonical key serializations. That order matches the natural order of
// the key type for unsigned and signed integer keys and time.Time keys
// (fixed-width big-endian, sign bit flipped for signed values), and for
// single-component string or []byte keys that contain no byte below
// 0x02. For multi-component keys with variable-width leading components
// the byte order follows the tuple layout, not the component-wise order.
type Range[K any] struct {
	Start *K
	End   *K
	Dir   Direction
}

// Reversed flips the scan direction.
func (r Range[K]) Reversed() Range[K] {
	if r.Dir == Descending {
		r.Dir = Ascending
	} else {
		r.Dir = Descending
	}
	return r
}

// Range opens an iterator over the entries whose keys fall in r. The
// iterator must not outlive the table, and the table must not be mutated
// while the iterator is open; Close releases the underlying cursor.
func (t *Table[K, V]) Range(r Range[K]) (*Iter[K, V], error) {
	var start, end []byte
	if r.Start != nil {
		start = t.encodeKey(*r.Start)
	}
	if r.End != nil {
		end = t.encodeKey(*r.End)
	}
	cur, err := t.store.OpenCursor(t.handle, start, end, r.Dir)
	if err != nil {
		return nil, tableErrf(t.name, "range", nil, err)
	}
	return &Iter[K, V]{tbl: t, cur: cur}, nil
}

// Iter is a finite, non-restartable cursor over a bounded key range.
// Each entry is consumed with a Prepare/Next pair: Prepare advances to
// the next matching entry, Next yields it. The two calls are split
// because "is there another entry" and "produce it" are separate store
// queries.
type Iter[K, V any] struct {
	tbl       *Table[K, V]
	cur       Cursor
	prepared  bool
	exhausted bool
}

// Prepare advances the cursor to the next entry, returning false once
// the range is exhausted. It must be called before each Next.
func (it *Iter[K, V]) Prepare() (bool, error) {
	it.prepared = false
	if it.exhausted {
		return false, nil
	}
	ok, err := it.cur.Advance()
	if err != nil {
		return false, tableErrf(it.tbl.name, "iter prepare", nil, err)
	}
	if !ok {
		it.exhausted = true
		return false, nil
	}
	it.prepared = true
	return true, nil
}

// Next yields the entry Prepare positioned on. Calling Next without an
// intervening successful Prepare fails with ErrUsage.
func (it *Iter[K, V]) Next() (K, V, error) {
	var key K
	var value V
	if !it.prepared {
		return key, value, tableErrf(it.tbl.name, "next without prepare", nil, ErrUsage)
	}
	it.prepared = false

	kb, boxed, err := it.cur.Read()
	if err != nil {
		return key, value, tableErrf(it.tbl.name, "iter read", nil, err)
	}
	key, err = it.tbl.decodeKey(kb)
	if err != nil {
		return key, value, err
	}
	value, err = openBox[V](boxed)
	return key, value, err
}

// Close releases the underlying store cursor. Safe to call more than
// once.
func (it *Iter[K, V]) Close() error {
	if it.cur == nil {
		return nil
	}
	err := it.cur.Close()
	it.cur = nil
	it.exhausted = true
	it.prepared = false
	return err
}
