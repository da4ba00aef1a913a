package tabkv

import (
	"encoding"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"reflect"
	"sync"
	"time"
	"unicode/utf8"
)

// KeyMarshaler lets a key type provide its own canonical byte form.
type KeyMarshaler interface {
	MarshalKey(buf []byte) []byte
}

type KeyUnmarshaler interface {
	UnmarshalKey(buf []byte) error
}

type KeyMarshallable interface {
	KeyMarshaler
	KeyUnmarshaler
}

type binaryMarshallable interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

var keyMarshallableType = reflect.TypeOf((*KeyMarshallable)(nil)).Elem()
var binaryMarshallableType = reflect.TypeOf((*binaryMarshallable)(nil)).Elem()
var timeType = reflect.TypeOf((*time.Time)(nil)).Elem()
var byteType = reflect.TypeOf((byte)(0))
var byteArrayType = reflect.TypeOf(([]byte)(nil))

// signBit is flipped on signed integer components so that the big-endian
// byte order of the encoding matches the numeric order of the values.
const signBit = uint64(1) << 63

type keyEncoder struct {
	buf []byte
	tupleEncoder
}

func (ke *keyEncoder) begin() {
	ke.tupleEncoder.begin(ke.buf)
}
func (ke *keyEncoder) append(b []byte) {
	ke.buf = appendRaw(ke.buf, b)
}
func (ke *keyEncoder) finalize() []byte {
	return ke.tupleEncoder.finalize(ke.buf)
}

var keyEncodings sync.Map

type keyEncoding struct {
	typ        reflect.Type
	components []*keyComponent
}

type keyComponent struct {
	Type        reflect.Type
	Path        string
	RawStringer func(b []byte) (string, error)
	Getters     []func(v reflect.Value, init bool) reflect.Value
	Decode      func(b []byte, v reflect.Value) error
	Encode      func(ke *keyEncoder, v reflect.Value)
}

func (kc *keyComponent) valueIn(val reflect.Value, init bool) reflect.Value {
	for i := len(kc.Getters) - 1; i >= 0; i-- {
		if !val.IsValid() {
			return val
		}
		val = kc.Getters[i](val, init)
	}
	return val
}

func keyEncodingOf(typ reflect.Type) *keyEncoding {
	if e, ok := keyEncodings.Load(typ); ok {
		return e.(*keyEncoding)
	}
	enc := &keyEncoding{typ: typ}
	enumerateKeyComponents(typ, func(kc *keyComponent) {
		enc.components = append(enc.components, kc)
	})
	keyEncodings.LoadOrStore(typ, enc)
	return enc
}

func (enc *keyEncoding) encode(buf []byte, val reflect.Value) []byte {
	ke := keyEncoder{buf: buf}
	enc.encodeInto(&ke, val)
	return ke.finalize()
}

func (enc *keyEncoding) encodeInto(ke *keyEncoder, val reflect.Value) {
	for _, kc := range enc.components {
		ke.begin()
		cval := kc.valueIn(val, false)
		kc.Encode(ke, cval)
	}
}

func (enc *keyEncoding) decode(buf []byte, val reflect.Value) error {
	tup, err := decodeTuple(buf)
	if err != nil {
		return err
	}

	err = enc.decodeTup(tup, val)
	if err != nil {
		return dataErrf(buf, len(buf), nil, "%s", err.Error())
	}
	return nil
}

func (enc *keyEncoding) decodeTup(tup tuple, val reflect.Value) error {
	if val.Kind() != reflect.Ptr {
		panic(fmt.Errorf("keyEncoding must be decoding into a ptr, got %v", val.Type()))
	}
	val = val.Elem()

	if len(tup) != len(enc.components) {
		return fmt.Errorf("wrong number of components: got %d, wanted %d", len(tup), len(enc.components))
	}

	for i, kc := range enc.components {
		cval := kc.valueIn(val, true)
		if !cval.IsValid() {
			panic(fmt.Errorf("invalid cval while decoding %v%s", enc.typ, kc.Path))
		}
		if !cval.CanSet() {
			panic(fmt.Errorf("unsettable cval while decoding %v%s", enc.typ, kc.Path))
		}
		if kc.Decode == nil {
			panic(fmt.Errorf("no key decoder defined for %v", kc.Type))
		}
		err := kc.Decode(tup[i], cval)
		if err != nil {
			return fmt.Errorf("%s%w", pathPrefix(kc.Path), err)
		}
	}
	return nil
}

// tupleToStrings renders the components of an encoded key for logs and dumps.
func (enc *keyEncoding) tupleToStrings(tup tuple) []string {
	n := len(enc.components)
	if len(tup) != n {
		panic(fmt.Errorf("wrong number of components: got %d, wanted %d in: %v", len(tup), n, tup))
	}
	result := make([]string, n)
	for i, kc := range enc.components {
		if kc.RawStringer != nil {
			s, err := kc.RawStringer(tup[i])
			if err != nil {
				panic(fmt.Errorf("invalid component %d: %w - in %v", i, err, tup))
			}
			result[i] = s
			continue
		}
		val := reflect.New(kc.Type)
		if kc.Decode == nil {
			panic(fmt.Errorf("no Decode for %v", kc.Type))
		}
		if err := kc.Decode(tup[i], val.Elem()); err != nil {
			panic(fmt.Errorf("invalid component %d: %w - in %v", i, err, tup))
		}
		result[i] = fmt.Sprint(val.Elem().Interface())
	}
	return result
}

func enumerateKeyComponents(typ reflect.Type, f func(kc *keyComponent)) {
	if typ == timeType {
		f(&keyComponent{
			Type: typ,
			Encode: func(ke *keyEncoder, v reflect.Value) {
				value := v.Interface().(time.Time)
				ke.buf = appendUint64(ke.buf, uint64(value.Unix()))
			},
			Decode: func(b []byte, v reflect.Value) error {
				if len(b) != 8 {
					return fmt.Errorf("invalid time.Time data length: got %d bytes, wanted 8", len(b))
				}
				value := binary.BigEndian.Uint64(b)
				v.Set(reflect.ValueOf(time.Unix(int64(value), 0)))
				return nil
			},
		})
		return
	}
	if typ.ConvertibleTo(keyMarshallableType) {
		f(&keyComponent{
			Type: typ,
			Encode: func(ke *keyEncoder, v reflect.Value) {
				ke.buf = v.Interface().(KeyMarshallable).MarshalKey(ke.buf)
			},
			Decode: func(b []byte, v reflect.Value) error {
				return v.Interface().(KeyMarshallable).UnmarshalKey(b)
			},
		})
		return
	}
	if reflect.PointerTo(typ).ConvertibleTo(binaryMarshallableType) {
		f(&keyComponent{
			Type: typ,
			Encode: func(ke *keyEncoder, v reflect.Value) {
				data, err := v.Interface().(encoding.BinaryMarshaler).MarshalBinary()
				if err != nil {
					panic(fmt.Errorf("%T.MarshalBinary: %w", v.Interface(), err))
				}
				ke.append(data)
			},
			Decode: func(b []byte, v reflect.Value) error {
				return v.Addr().Interface().(encoding.BinaryUnmarshaler).UnmarshalBinary(b)
			},
		})
		return
	}
	switch typ.Kind() {
	case reflect.String:
		f(&keyComponent{
			Type: typ,
			Encode: func(ke *keyEncoder, v reflect.Value) {
				ke.buf = appendString(ke.buf, v.String())
			},
			Decode: func(b []byte, v reflect.Value) error {
				v.Set(reflect.ValueOf(string(b)).Convert(typ))
				return nil
			},
			RawStringer: func(b []byte) (string, error) {
				if !utf8.Valid(b) {
					return "", fmt.Errorf("not a valid UTF8 string")
				}
				return string(b), nil
			},
		})
	case reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8, reflect.Uintptr:
		f(&keyComponent{
			Type: typ,
			Encode: func(ke *keyEncoder, v reflect.Value) {
				ke.buf = appendUint64(ke.buf, v.Uint())
			},
			Decode: func(b []byte, v reflect.Value) error {
				if len(b) != 8 {
					return fmt.Errorf("invalid uint length: got %d bytes, wanted 8", len(b))
				}
				value := binary.BigEndian.Uint64(b)
				v.Set(reflect.ValueOf(value).Convert(typ))
				return nil
			},
		})
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		f(&keyComponent{
			Type: typ,
			Encode: func(ke *keyEncoder, v reflect.Value) {
				ke.buf = appendUint64(ke.buf, uint64(v.Int())^signBit)
			},
			Decode: func(b []byte, v reflect.Value) error {
				if len(b) != 8 {
					return fmt.Errorf("invalid int length: got %d bytes, wanted 8", len(b))
				}
				value := int64(binary.BigEndian.Uint64(b) ^ signBit)
				v.Set(reflect.ValueOf(value).Convert(typ))
				return nil
			},
		})
	case reflect.Ptr:
		elemType := typ.Elem()
		get := func(v reflect.Value, init bool) reflect.Value {
			if init {
				if v.IsNil() {
					v.Set(reflect.New(elemType))
				}
			}
			return v.Elem()
		}
		enumerateKeyComponents(typ.Elem(), func(kc *keyComponent) {
			kc.Getters = append(kc.Getters, get)
			f(kc)
		})
	case reflect.Struct:
		n := typ.NumField()
		for i := 0; i < n; i++ {
			i := i
			field := typ.Field(i)
			get := func(v reflect.Value, init bool) reflect.Value {
				return v.Field(i)
			}
			enumerateKeyComponents(field.Type, func(kc *keyComponent) {
				kc.Getters = append(kc.Getters, get)
				kc.Path = kc.Path + "." + field.Name
				f(kc)
			})
		}
	case reflect.Slice:
		if typ == byteArrayType {
			f(&keyComponent{
				Type: typ,
				Encode: func(ke *keyEncoder, v reflect.Value) {
					ke.buf = appendRaw(ke.buf, v.Convert(byteArrayType).Interface().([]byte))
				},
				Decode: func(b []byte, v reflect.Value) error {
					v.Set(reflect.ValueOf(b))
					return nil
				},
				RawStringer: func(b []byte) (string, error) {
					return hex.EncodeToString(b), nil
				},
			})
			return
		}
		panic(fmt.Errorf("tabkv does not know how to encode key slice %v", typ))
	case reflect.Array:
		if typ.Elem() == byteType {
			n := typ.Len()
			f(&keyComponent{
				Type: typ,
				Encode: func(ke *keyEncoder, v reflect.Value) {
					if !v.CanAddr() {
						panic(fmt.Errorf("non-addressable array %v %v", v.Type(), v))
					}
					ke.buf = appendRaw(ke.buf, v.Slice(0, v.Len()).Convert(byteArrayType).Interface().([]byte))
				},
				Decode: func(b []byte, v reflect.Value) error {
					if len(b) != n {
						return fmt.Errorf("invalid byte array length: got %d bytes, wanted %d", len(b), n)
					}
					reflect.Copy(v, reflect.ValueOf(b))
					return nil
				},
				RawStringer: func(b []byte) (string, error) {
					return hex.EncodeToString(b), nil
				},
			})
			return
		}
		panic(fmt.Errorf("tabkv does not know how to encode key array %v", typ))
	default:
		panic(fmt.Errorf("tabkv does not know how to encode key %v", typ))
	}
}

func pathPrefix(p string) string {
	if p == "" {
		return ""
	}
	return p + ": "
}
