package codec

import "github.com/iamNilotpal/ignitemap/internal/bytestore"

// StringCodec implements Codec[string] as length-prefixed UTF-8. The
// length itself lives in the entry's key_size/value_size field, not in
// the codec's own output, so Write/Read deal only with the raw bytes.
type StringCodec struct{}

func (StringCodec) Kind() Kind { return KindString }

func (StringCodec) Size(v string) (int, error) { return len(v), nil }

func (StringCodec) Write(cur *bytestore.Cursor, v string) error {
	return cur.WriteBytes([]byte(v))
}

func (StringCodec) Read(cur *bytestore.Cursor, n int) (string, error) {
	b, err := cur.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c StringCodec) ReadReusing(cur *bytestore.Cursor, n int, _ string) (string, error) {
	return c.Read(cur, n)
}

// Int32Codec implements Codec[int32] as a fixed 4-byte little-endian word.
type Int32Codec struct{}

func (Int32Codec) Kind() Kind { return KindInt32 }

func (Int32Codec) Size(int32) (int, error) { return 4, nil }

func (Int32Codec) Write(cur *bytestore.Cursor, v int32) error {
	return cur.WriteUint32(uint32(v))
}

func (Int32Codec) Read(cur *bytestore.Cursor, _ int) (int32, error) {
	v, err := cur.ReadUint32()
	return int32(v), err
}

func (c Int32Codec) ReadReusing(cur *bytestore.Cursor, n int, _ int32) (int32, error) {
	return c.Read(cur, n)
}

// Int64Codec implements Codec[int64] as a fixed 8-byte little-endian word.
type Int64Codec struct{}

func (Int64Codec) Kind() Kind { return KindInt64 }

func (Int64Codec) Size(int64) (int, error) { return 8, nil }

func (Int64Codec) Write(cur *bytestore.Cursor, v int64) error {
	return cur.WriteUint64(uint64(v))
}

func (Int64Codec) Read(cur *bytestore.Cursor, _ int) (int64, error) {
	v, err := cur.ReadUint64()
	return int64(v), err
}

func (c Int64Codec) ReadReusing(cur *bytestore.Cursor, n int, _ int64) (int64, error) {
	return c.Read(cur, n)
}

// ByteSliceCodec implements Codec[[]byte] as the raw bytes verbatim, the
// []byte analogue of StringCodec for callers that want to avoid the
// string/[]byte copy on every read.
type ByteSliceCodec struct{}

func (ByteSliceCodec) Kind() Kind { return KindByteable }

func (ByteSliceCodec) Size(v []byte) (int, error) { return len(v), nil }

func (ByteSliceCodec) Write(cur *bytestore.Cursor, v []byte) error {
	return cur.WriteBytes(v)
}

func (ByteSliceCodec) Read(cur *bytestore.Cursor, n int) ([]byte, error) {
	return cur.ReadBytes(n)
}

func (c ByteSliceCodec) ReadReusing(cur *bytestore.Cursor, n int, _ []byte) ([]byte, error) {
	return c.Read(cur, n)
}

// Float64Codec implements Codec[float64] as a fixed 8-byte IEEE-754 word.
type Float64Codec struct{}

func (Float64Codec) Kind() Kind { return KindFloat64 }

func (Float64Codec) Size(float64) (int, error) { return 8, nil }

func (Float64Codec) Write(cur *bytestore.Cursor, v float64) error {
	return cur.WriteFloat64(v)
}

func (Float64Codec) Read(cur *bytestore.Cursor, _ int) (float64, error) {
	return cur.ReadFloat64()
}

func (c Float64Codec) ReadReusing(cur *bytestore.Cursor, n int, _ float64) (float64, error) {
	return c.Read(cur, n)
}
