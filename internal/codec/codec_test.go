package codec

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/iamNilotpal/ignitemap/internal/bytestore"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID    uint32
	Score float64
}

func (r *record) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], r.ID)
	binary.LittleEndian.PutUint64(buf[4:12], math.Float64bits(r.Score))
	return buf, nil
}

func (r *record) UnmarshalBinary(b []byte) error {
	r.ID = binary.LittleEndian.Uint32(b[0:4])
	r.Score = math.Float64frombits(binary.LittleEndian.Uint64(b[4:12]))
	return nil
}

func TestStringCodecRoundTrip(t *testing.T) {
	store, err := bytestore.OpenAnonStore(128)
	require.NoError(t, err)
	defer store.Close()

	c := StringCodec{}
	cur := bytestore.NewCursor(store, 0)
	require.NoError(t, c.Write(cur, "hello"))

	cur = bytestore.NewCursor(store, 0)
	got, err := c.Read(cur, 5)
	require.NoError(t, err)
	require.Equal(t, "hello", got)
}

func TestInt64CodecRoundTrip(t *testing.T) {
	store, err := bytestore.OpenAnonStore(128)
	require.NoError(t, err)
	defer store.Close()

	c := Int64Codec{}
	cur := bytestore.NewCursor(store, 0)
	require.NoError(t, c.Write(cur, -42))

	cur = bytestore.NewCursor(store, 0)
	got, err := c.Read(cur, 8)
	require.NoError(t, err)
	require.EqualValues(t, -42, got)
}

func TestByteableCodecRoundTrip(t *testing.T) {
	store, err := bytestore.OpenAnonStore(128)
	require.NoError(t, err)
	defer store.Close()

	c := ByteableCodec[*record]{Factory: func() *record { return &record{} }}
	want := &record{ID: 7, Score: 3.5}

	cur := bytestore.NewCursor(store, 0)
	size, err := c.Size(want)
	require.NoError(t, err)
	require.NoError(t, c.Write(cur, want))

	cur = bytestore.NewCursor(store, 0)
	got, err := c.Read(cur, size)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAlignmentPadding(t *testing.T) {
	require.EqualValues(t, 0, PaddingNeeded(16, Align8))
	require.EqualValues(t, 4, PaddingNeeded(20, Align8))
	require.EqualValues(t, 0, PaddingNeeded(5, AlignNone))
	require.EqualValues(t, 24, SizeWithPadding(20, Align8))
}
