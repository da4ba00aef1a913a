package tabkv

// UnsafeDiscardTable releases a table's handle without checking that the
// table is empty, losing any entries it still holds. It exists so tests
// can tear down populated tables; production code must always go through
// DestroyEmpty, and nothing in this package calls UnsafeDiscardTable.
func UnsafeDiscardTable[K, V any](t *Table[K, V]) error {
	if err := t.store.ReleaseHandle(t.handle); err != nil {
		return tableErrf(t.name, "unsafe discard", nil, err)
	}
	t.log.Debug().Str("table", t.name).Uint64("lost", t.count).Msg("tab: UNSAFE_DISCARD")
	t.count = 0
	return nil
}
