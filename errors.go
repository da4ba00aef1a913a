package tabkv

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyExists is returned by Add when the key is already present.
	ErrAlreadyExists = errors.New("key already exists")

	// ErrNotFound is returned by Borrow, BorrowMut and Remove when the key
	// is absent, and by store lookups for missing entries.
	ErrNotFound = errors.New("key not found")

	// ErrNotEmpty is returned by DestroyEmpty on a table that still holds
	// entries.
	ErrNotEmpty = errors.New("table not empty")

	// ErrUsage is returned by Iter.Next when it is called without a
	// preceding successful Prepare.
	ErrUsage = errors.New("iterator usage error")

	// ErrStoreClosed is returned by store operations after Close.
	ErrStoreClosed = errors.New("store is closed")
)

// TableError adds table and key context to a failed operation. It unwraps
// to one of the sentinel errors above, so errors.Is works on the cause.
type TableError struct {
	Table string
	Key   []byte
	Op    string
	Err   error
}

func tableErrf(table, op string, key []byte, err error) error {
	return &TableError{Table: table, Key: key, Op: op, Err: err}
}

func (e *TableError) Unwrap() error {
	return e.Err
}

func (e *TableError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table)
	if e.Key != nil {
		buf.WriteByte('/')
		buf.WriteString(hexstr(e.Key))
	}
	if e.Op != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Op)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// DataError reports malformed stored bytes (a bad box or key encoding).
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}
