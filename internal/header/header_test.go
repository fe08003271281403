package header

import (
	"testing"

	"github.com/iamNilotpal/ignitemap/internal/bytestore"
	"github.com/iamNilotpal/ignitemap/internal/codec"
	"github.com/stretchr/testify/require"
)

func testHeader() Header {
	return Header{
		SegmentCount:     16,
		ChunksPerSegment: 256,
		ChunkSize:        128,
		EntriesCapacity:  1 << 20,
		SlotsPerSegment:  512,
		HBits:            24,
		MetaDataBytes:    4,
		Alignment:        codec.Align8,
		ReplicationID:    0,
		LargeSegments:    false,
		KeyKind:          codec.KindString,
		ValueKind:        codec.KindByteable,
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store, err := bytestore.OpenAnonStore(4096)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	want := testHeader()
	require.NoError(t, Write(store, want))

	got, err := Read(store)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSizeIsPaddedAndStable(t *testing.T) {
	size := Size()
	require.Greater(t, size, int64(0))
	require.Equal(t, int64(0), size%128)
	// Size must be deterministic across calls; nothing here depends on
	// any particular Header value.
	require.Equal(t, size, Size())
}

func TestReadRejectsBadMagic(t *testing.T) {
	store, err := bytestore.OpenAnonStore(4096)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, Write(store, testHeader()))
	require.NoError(t, store.WriteBytes(0, []byte("XXXX")))

	_, err = Read(store)
	require.Error(t, err)
}

func TestReadRejectsBadVersion(t *testing.T) {
	store, err := bytestore.OpenAnonStore(4096)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, Write(store, testHeader()))
	// Version lives immediately after the 4-byte magic, low byte first.
	require.NoError(t, store.WriteUint8(4, 0xff))

	_, err = Read(store)
	require.Error(t, err)
}

func TestValidateDetectsMismatch(t *testing.T) {
	h := testHeader()

	require.NoError(t, h.Validate(codec.KindString, codec.KindByteable, 0))

	err := h.Validate(codec.KindInt64, codec.KindByteable, 0)
	require.Error(t, err)

	err = h.Validate(codec.KindString, codec.KindInt64, 0)
	require.Error(t, err)

	err = h.Validate(codec.KindString, codec.KindByteable, 7)
	require.Error(t, err)
}
