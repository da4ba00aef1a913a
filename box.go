package tabkv

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// A box wraps a single stored value. Every entry in a table holds exactly
// one box: sealBox runs only on the paths that create or replace an entry
// (Add, Upsert, the BorrowMutWithDefault insert and the BorrowMut
// write-back). openBox surfaces the wrapped value on reads; the box
// itself ceases to exist only in Remove, where the store deletes the
// entry in the same operation. No other code constructs or destructures
// boxes, so a value is never simultaneously owned by caller and store.
//
// Wire form: tag byte, flags (uvarint), then msgpack of the value. The
// leading tag marks the bytes as table-owned regardless of the value type.
type box[V any] struct {
	Value V
}

const (
	boxTagV1 = 0xb1

	boxFlagsSupported = uint64(0)
)

func sealBox[V any](buf []byte, v V) []byte {
	bb := bytesBuilder{buf}
	bb.AppendByte(boxTagV1)
	bb.AppendUvarint(0)

	b := box[V]{Value: v}
	enc := msgpack.GetEncoder()
	enc.Reset(&bb)
	enc.SetSortMapKeys(true)
	err := enc.Encode(&b.Value)
	msgpack.PutEncoder(enc)
	if err != nil {
		panic(fmt.Errorf("failed to encode %T using MsgPack: %w", v, err))
	}
	return bb.Buf
}

func openBox[V any](data []byte) (V, error) {
	var b box[V]
	d := makeByteDecoder(data)

	tag, err := d.Byte()
	if err != nil {
		return b.Value, err
	}
	if tag != boxTagV1 {
		return b.Value, dataErrf(data, 0, nil, "invalid box: unknown tag %#x", tag)
	}
	flags, err := d.Uvarint()
	if err != nil {
		return b.Value, err
	}
	if flags&^boxFlagsSupported != 0 {
		return b.Value, dataErrf(data, d.Off(), nil, "invalid box: unsupported flags %#x", flags)
	}

	var r bytes.Reader
	r.Reset(d.Rest())
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err = dec.Decode(&b.Value)
	msgpack.PutDecoder(dec)
	if err != nil {
		return b.Value, dataErrf(data, d.Off(), err, "failed to decode msgpack into %T", b.Value)
	}
	return b.Value, nil
}

func isBoxed(data []byte) bool {
	return len(data) >= 2 && data[0] == boxTagV1
}
