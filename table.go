package tabkv

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
)

// Table is a typed persistent table addressed by canonically serialized
// keys. A table owns a store handle assigned at creation and a cached
// length counter that always equals the number of entries under that
// handle. A table has a single logical owner at a time; it performs no
// locking of its own.
type Table[K, V any] struct {
	store  Store
	name   string
	handle Handle
	count  uint64
	keyEnc *keyEncoding
	keySep string
	log    zerolog.Logger
}

type TableOption func(*tableConfig)

type tableConfig struct {
	log zerolog.Logger
}

// WithLogger attaches a logger; mutating operations log at debug level.
func WithLogger(log zerolog.Logger) TableOption {
	return func(c *tableConfig) {
		c.log = log
	}
}

// NewTable allocates a fresh handle and returns an empty table over it.
func NewTable[K, V any](store Store, name string, opts ...TableOption) (*Table[K, V], error) {
	cfg := tableConfig{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	h, err := store.CreateHandle()
	if err != nil {
		return nil, tableErrf(name, "create", nil, err)
	}

	keyType := reflect.TypeOf((*K)(nil)).Elem()
	return &Table[K, V]{
		store:  store,
		name:   name,
		handle: h,
		keyEnc: keyEncodingOf(keyType),
		keySep: "|",
		log:    cfg.log,
	}, nil
}

func (t *Table[K, V]) Name() string {
	return t.name
}

func (t *Table[K, V]) Handle() Handle {
	return t.handle
}

// Len returns the cached entry count; O(1).
func (t *Table[K, V]) Len() uint64 {
	return t.count
}

func (t *Table[K, V]) Empty() bool {
	return t.count == 0
}

func (t *Table[K, V]) encodeKey(key K) []byte {
	return t.keyEnc.encode(nil, reflect.ValueOf(&key).Elem())
}

func (t *Table[K, V]) decodeKey(raw []byte) (K, error) {
	var key K
	err := t.keyEnc.decode(raw, reflect.ValueOf(&key))
	if err != nil {
		return key, tableErrf(t.name, "decode key", raw, err)
	}
	return key, nil
}

// Add stores a new entry. Fails with ErrAlreadyExists if the key is
// present; two keys are the same key iff their canonical serializations
// are byte-equal.
func (t *Table[K, V]) Add(key K, value V) error {
	kb := t.encodeKey(key)
	err := t.store.Insert(t.handle, kb, sealBox(nil, value))
	if err != nil {
		return tableErrf(t.name, "add", kb, err)
	}
	t.count++
	t.log.Debug().Str("table", t.name).Hex("key", kb).Msg("tab: ADD")
	return nil
}

// Borrow returns the stored value. Fails with ErrNotFound if absent.
func (t *Table[K, V]) Borrow(key K) (V, error) {
	var zero V
	kb := t.encodeKey(key)
	boxed, err := t.store.Lookup(t.handle, kb)
	if err != nil {
		return zero, tableErrf(t.name, "borrow", kb, err)
	}
	return openBox[V](boxed)
}

// BorrowWithDefault returns the stored value, or def if the key is
// absent. The table is never mutated.
func (t *Table[K, V]) BorrowWithDefault(key K, def V) (V, error) {
	kb := t.encodeKey(key)
	boxed, err := t.store.Lookup(t.handle, kb)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, tableErrf(t.name, "borrow", kb, err)
	}
	return openBox[V](boxed)
}

// BorrowMut applies mutate to the stored value and writes the result
// back. Fails with ErrNotFound if the key is absent. This is the mutable
// borrow across a serialization boundary: the value is decoded, mutated
// in place, and re-stored before BorrowMut returns.
func (t *Table[K, V]) BorrowMut(key K, mutate func(v *V)) error {
	kb := t.encodeKey(key)
	boxed, err := t.store.Lookup(t.handle, kb)
	if err != nil {
		return tableErrf(t.name, "borrow mut", kb, err)
	}
	v, err := openBox[V](boxed)
	if err != nil {
		return err
	}
	mutate(&v)
	if err := t.store.Put(t.handle, kb, sealBox(nil, v)); err != nil {
		return tableErrf(t.name, "borrow mut", kb, err)
	}
	t.log.Debug().Str("table", t.name).Hex("key", kb).Msg("tab: MUT")
	return nil
}

// BorrowMutWithDefault inserts def if the key is absent (incrementing
// the length), then behaves as BorrowMut.
func (t *Table[K, V]) BorrowMutWithDefault(key K, def V, mutate func(v *V)) error {
	kb := t.encodeKey(key)
	var v V
	boxed, err := t.store.Lookup(t.handle, kb)
	switch {
	case errors.Is(err, ErrNotFound):
		v = def
		if err := t.store.Insert(t.handle, kb, sealBox(nil, v)); err != nil {
			return tableErrf(t.name, "borrow mut", kb, err)
		}
		t.count++
		t.log.Debug().Str("table", t.name).Hex("key", kb).Msg("tab: ADD.DEFAULT")
	case err != nil:
		return tableErrf(t.name, "borrow mut", kb, err)
	default:
		v, err = openBox[V](boxed)
		if err != nil {
			return err
		}
	}
	mutate(&v)
	if err := t.store.Put(t.handle, kb, sealBox(nil, v)); err != nil {
		return tableErrf(t.name, "borrow mut", kb, err)
	}
	t.log.Debug().Str("table", t.name).Hex("key", kb).Msg("tab: MUT")
	return nil
}

// Upsert inserts the value under an absent key (incrementing the
// length) or replaces the stored value in place (length unchanged).
func (t *Table[K, V]) Upsert(key K, value V) error {
	kb := t.encodeKey(key)
	boxed := sealBox(nil, value)
	err := t.store.Insert(t.handle, kb, boxed)
	if errors.Is(err, ErrAlreadyExists) {
		if err := t.store.Put(t.handle, kb, boxed); err != nil {
			return tableErrf(t.name, "upsert", kb, err)
		}
		t.log.Debug().Str("table", t.name).Hex("key", kb).Msg("tab: UPSERT.REPLACE")
		return nil
	}
	if err != nil {
		return tableErrf(t.name, "upsert", kb, err)
	}
	t.count++
	t.log.Debug().Str("table", t.name).Hex("key", kb).Msg("tab: UPSERT.ADD")
	return nil
}

// Remove deletes the entry and returns the value it held. Fails with
// ErrNotFound if absent. This is the only path that takes a value out
// of its box.
func (t *Table[K, V]) Remove(key K) (V, error) {
	var zero V
	kb := t.encodeKey(key)
	boxed, err := t.store.Delete(t.handle, kb)
	if err != nil {
		return zero, tableErrf(t.name, "remove", kb, err)
	}
	t.count--
	t.log.Debug().Str("table", t.name).Hex("key", kb).Msg("tab: REMOVE")
	return openBox[V](boxed)
}

// Contains reports key presence with no side effects.
func (t *Table[K, V]) Contains(key K) (bool, error) {
	kb := t.encodeKey(key)
	found, err := t.store.Exists(t.handle, kb)
	if err != nil {
		return false, tableErrf(t.name, "contains", kb, err)
	}
	return found, nil
}

// DestroyEmpty releases the table's handle. Fails with ErrNotEmpty
// unless the table holds no entries.
func (t *Table[K, V]) DestroyEmpty() error {
	if t.count != 0 {
		return tableErrf(t.name, fmt.Sprintf("destroy with %d entries", t.count), nil, ErrNotEmpty)
	}
	if err := t.store.ReleaseHandle(t.handle); err != nil {
		return tableErrf(t.name, "destroy", nil, err)
	}
	t.log.Debug().Str("table", t.name).Msg("tab: DESTROY")
	return nil
}

// KeyString renders a key's canonical form for logs and errors.
func (t *Table[K, V]) KeyString(key K) string {
	return t.RawKeyString(t.encodeKey(key))
}

func (t *Table[K, V]) RawKeyString(raw []byte) string {
	tup, err := decodeTuple(raw)
	if err != nil {
		panic(fmt.Errorf("%s key: %w", t.name, err))
	}
	return strings.Join(t.keyEnc.tupleToStrings(tup), t.keySep)
}
