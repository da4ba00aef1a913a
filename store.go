package tabkv

import "github.com/google/uuid"

// Handle is an opaque identifier for a table's region within a store.
// A handle is allocated once by CreateHandle and never changes.
type Handle uuid.UUID

func newHandle() Handle {
	return Handle(uuid.New())
}

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// Direction selects the traversal order of a cursor over the store's
// native byte ordering of keys.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return "invalid"
	}
}

// Store is the primitive storage interface a Table runs against. Keys are
// canonical byte strings; values are boxed bytes the store treats as
// opaque. Implementations: memory (tests), Bolt and Pebble (production),
// selected via Open.
type Store interface {
	// CreateHandle allocates a fresh, empty handle.
	CreateHandle() (Handle, error)

	// Insert stores a new entry. Fails with ErrAlreadyExists if the key
	// is already present under the handle.
	Insert(h Handle, key, boxed []byte) error

	// Lookup retrieves an entry. Fails with ErrNotFound if absent.
	Lookup(h Handle, key []byte) ([]byte, error)

	// Put stores an entry unconditionally, replacing any previous value.
	Put(h Handle, key, boxed []byte) error

	// Delete removes an entry and returns its previous value. Fails with
	// ErrNotFound if absent.
	Delete(h Handle, key []byte) ([]byte, error)

	// Exists reports whether the key is present, with no side effects.
	Exists(h Handle, key []byte) (bool, error)

	// ReleaseHandle frees a handle. The caller guarantees the handle
	// holds no entries.
	ReleaseHandle(h Handle) error

	// OpenCursor opens a cursor over [start, end) in the given direction.
	// A nil start or end leaves that side unbounded. The cursor must be
	// closed; the handle must not be mutated while it is open.
	OpenCursor(h Handle, start, end []byte, dir Direction) (Cursor, error)

	// Close releases the store. Open cursors become invalid.
	Close() error
}

// Cursor walks entries in a fixed order. Advance positions the cursor on
// the next entry; Read yields the entry at the current position. Read is
// only valid after an Advance that returned true.
type Cursor interface {
	Advance() (bool, error)
	Read() (key, boxed []byte, err error)
	Close() error
}
