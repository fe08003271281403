package codec

import (
	"encoding"

	"github.com/iamNilotpal/ignitemap/internal/bytestore"
)

// Byteable is the constraint a byteable-by-layout value must satisfy: it
// can marshal itself to and unmarshal itself from a flat byte slice. The
// struct controls its own wire shape; Go never reads raw struct memory.
type Byteable interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// ByteableCodec implements Codec[T] for a user-defined wire-layout type.
// Factory produces a fresh T (typically a pointer to a zero-valued struct)
// when Read is called without a reusable instance; this is the
// value_factory strategy the Design Notes call for.
type ByteableCodec[T Byteable] struct {
	Factory func() T
}

func (ByteableCodec[T]) Kind() Kind { return KindByteable }

func (ByteableCodec[T]) Size(v T) (int, error) {
	b, err := v.MarshalBinary()
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

func (ByteableCodec[T]) Write(cur *bytestore.Cursor, v T) error {
	b, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	return cur.WriteBytes(b)
}

func (c ByteableCodec[T]) Read(cur *bytestore.Cursor, n int) (T, error) {
	return c.ReadReusing(cur, n, c.Factory())
}

func (ByteableCodec[T]) ReadReusing(cur *bytestore.Cursor, n int, reuse T) (T, error) {
	b, err := cur.ReadBytes(n)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := reuse.UnmarshalBinary(b); err != nil {
		var zero T
		return zero, err
	}
	return reuse, nil
}
