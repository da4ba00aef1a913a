package tabkv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpTable(t *testing.T) {
	s := newMemStore()
	defer s.Close()

	tbl := newTestTable[uint64, string](t, s, "things")
	require.NoError(t, tbl.Add(2, "two"))
	require.NoError(t, tbl.Add(1, "one"))

	dump := DumpTable(tbl)
	lines := strings.Split(strings.TrimRight(dump, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "things (2 entries")
	assert.Contains(t, lines[1], "1: 1 =")
	assert.Contains(t, lines[2], "2: 2 =")
	assert.NotContains(t, dump, "NOT BOXED")
}

func TestDumpTable_FlagsUnboxedValues(t *testing.T) {
	s := newMemStore()
	defer s.Close()

	tbl := newTestTable[uint64, string](t, s, "things")
	require.NoError(t, tbl.Add(1, "one"))

	// sneak a raw value past the boxing layer
	require.NoError(t, s.Put(tbl.Handle(), tbl.encodeKey(2), []byte("raw")))

	assert.Contains(t, DumpTable(tbl), "NOT BOXED")
}

func TestUnsafeDiscardTable(t *testing.T) {
	s := newMemStore()
	defer s.Close()

	tbl := newTestTable[uint64, string](t, s, "things")
	require.NoError(t, tbl.Add(1, "one"))
	require.NoError(t, tbl.Add(2, "two"))

	require.NoError(t, UnsafeDiscardTable(tbl))
	assert.EqualValues(t, 0, tbl.Len())

	// the handle is gone along with the entries
	_, err := s.Lookup(tbl.Handle(), tbl.encodeKey(1))
	assert.Error(t, err)
}
