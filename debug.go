package tabkv

import (
	"fmt"
	"strings"
)

// DumpTable renders a table's entries for debugging: one line per entry
// with the key's canonical string and the raw boxed bytes.
func DumpTable[K, V any](t *Table[K, V]) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s (%d entries, handle %s)\n", t.name, t.count, t.handle)

	cur, err := t.store.OpenCursor(t.handle, nil, nil, Ascending)
	if err != nil {
		fmt.Fprintf(&buf, "  ** ERROR: %v\n", err)
		return buf.String()
	}
	defer cur.Close()

	var pos int
	for {
		ok, err := cur.Advance()
		if err != nil {
			fmt.Fprintf(&buf, "  ** ERROR: %v\n", err)
			break
		}
		if !ok {
			break
		}
		pos++
		kb, boxed, err := cur.Read()
		if err != nil {
			fmt.Fprintf(&buf, "  %d: ** ERROR: %v\n", pos, err)
			continue
		}
		marker := ""
		if !isBoxed(boxed) {
			marker = " ** NOT BOXED"
		}
		fmt.Fprintf(&buf, "  %d: %s = %s%s\n", pos, t.RawKeyString(kb), hexstr(boxed), marker)
	}
	return buf.String()
}
