// Package codec selects and runs the key/value (de)serializer a map was
// built with. Each supported representation is a distinct Kind chosen
// explicitly at builder construction time rather than discovered by
// runtime type inspection.
package codec

import (
	"github.com/iamNilotpal/ignitemap/internal/bytestore"
)

// Kind tags which built-in representation a Codec implements. The builder
// records a map's key/value Kinds in the persisted header so a reopen can
// refuse a mismatched codec.
type Kind uint8

const (
	KindString Kind = iota
	KindInt32
	KindInt64
	KindFloat64
	KindByteable
	KindSelfSerializing
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindByteable:
		return "byteable"
	case KindSelfSerializing:
		return "self-serializing"
	case KindGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// Codec translates a value of type T to and from its on-disk byte
// representation. Size lets the arena compute a chunk count before any
// bytes are written; Write/Read operate against a Cursor so callers can
// place multiple fields (key, meta-data, value) back to back within one
// entry without re-deriving offsets.
type Codec[T any] interface {
	Kind() Kind

	// Size returns the number of bytes Write(v) will write.
	Size(v T) (int, error)

	// Write serializes v onto cur, advancing cur by Size(v) bytes.
	Write(cur *bytestore.Cursor, v T) error

	// Read deserializes a value occupying n bytes starting at cur's
	// current offset, advancing cur by n.
	Read(cur *bytestore.Cursor, n int) (T, error)

	// ReadReusing behaves like Read but writes into reuse instead of
	// allocating a new value, when T's representation allows it (pointer
	// or slice types). Value types fall back to returning a fresh T.
	ReadReusing(cur *bytestore.Cursor, n int, reuse T) (T, error)
}
