/*
Package tabkv implements a generic persistent table on top of a
handle-addressed key-value store.

We implement:

1. Table[K, V], a typed table of values addressed by canonically
serialized keys, with a cached length counter that always matches the
number of live entries.

2. Range iterators, bounded ordered scans over a table's entries with
an explicit prepare/next protocol mirroring cursor-style stores.

3. Storage adapters: a Bolt adapter, a Pebble adapter, and a transient
in-memory adapter for tests, all behind the same Store interface and
selected by configuration.

# Technical Details

**Handles.**
Every table owns a handle, an opaque 16-byte identifier allocated by
the store at creation time. The Bolt adapter maps a handle to a bucket;
the Pebble adapter uses the handle as a key prefix within a flat
keyspace. A handle is released only once its table is empty.

**Key encoding.**
Keys are serialized with a flat tuple encoding: each component is
appended raw, and component lengths plus a component count trail the
data as byte-reversed uvarints. Integers are encoded as 8-byte
big-endian values; signed integers have their sign bit flipped so that
byte order matches numeric order. See the ordering contract on Range.

**Value encoding.**
Stored values are boxed: a one-byte format tag, flags (uvarint), then
msgpack of the value. The box marks bytes as table-owned regardless of
the value's own type; it is constructed only when an entry is inserted
and taken apart only when the entry is removed.

**Length counter.**
Each Table caches its entry count. Every mutation adjusts the counter
in step with the store operation, so Len is O(1) and always equals the
number of keys present under the table's handle.
*/
package tabkv
