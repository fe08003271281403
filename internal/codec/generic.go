package codec

import (
	"bytes"
	"encoding/gob"

	"github.com/iamNilotpal/ignitemap/internal/bytestore"
)

// GenericCodec implements Codec[T] for any type gob can encode, the
// fallback for values that are neither fixed-width numerics, strings, nor
// byteable-by-layout structs.
type GenericCodec[T any] struct{}

func (GenericCodec[T]) Kind() Kind { return KindGeneric }

func (GenericCodec[T]) Size(v T) (int, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}

func (GenericCodec[T]) Write(cur *bytestore.Cursor, v T) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}
	return cur.WriteBytes(buf.Bytes())
}

func (GenericCodec[T]) Read(cur *bytestore.Cursor, n int) (T, error) {
	var zero T
	b, err := cur.ReadBytes(n)
	if err != nil {
		return zero, err
	}
	var v T
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&v); err != nil {
		return zero, err
	}
	return v, nil
}

func (c GenericCodec[T]) ReadReusing(cur *bytestore.Cursor, n int, _ T) (T, error) {
	return c.Read(cur, n)
}
