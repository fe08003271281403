package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/iamNilotpal/ignitemap/internal/arena"
	"github.com/iamNilotpal/ignitemap/internal/bytestore"
	"github.com/iamNilotpal/ignitemap/internal/codec"
	"github.com/iamNilotpal/ignitemap/internal/hashlookup"
	"github.com/iamNilotpal/ignitemap/internal/header"
	"github.com/iamNilotpal/ignitemap/internal/segment"
	"github.com/iamNilotpal/ignitemap/pkg/options"
	"github.com/stretchr/testify/require"
)

// newTestEngine builds an Engine over segmentCount anonymous-store segments,
// mirroring the construction builder.Open performs but without a data file.
func newTestEngine(t *testing.T, segmentCount int) *Engine[string, string] {
	t.Helper()

	const slots = 32
	const hBits = 16
	const nchunks = 64
	const chunkSize = 64

	segments := make([]*segment.Segment[string, string], segmentCount)
	for i := 0; i < segmentCount; i++ {
		tableStore, err := bytestore.OpenAnonStore(slots * 8)
		require.NoError(t, err)
		t.Cleanup(func() { tableStore.Close() })
		table := hashlookup.New(tableStore, 0, slots, hBits, i)

		entryStore, err := bytestore.OpenAnonStore(int64(nchunks * chunkSize))
		require.NoError(t, err)
		t.Cleanup(func() { entryStore.Close() })

		words := make([]uint64, arena.WordsNeeded(nchunks))
		free := arena.NewFreeBits(words, nchunks)
		free.Reset()
		a := arena.New(i, free)

		layout := segment.Layout{MetaDataBytes: 0, Alignment: codec.Align8, Replicated: false}
		segments[i] = segment.New[string, string](
			i, entryStore, 0, chunkSize, table, a, nil, layout, codec.StringCodec{}, codec.StringCodec{}, time.Second, nil, nil,
		)
	}

	store, err := bytestore.OpenAnonStore(64)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(Config[string, string]{
		Store:      store,
		Header:     header.Header{SegmentCount: uint32(segmentCount)},
		Segments:   segments,
		KeyCodec:   codec.StringCodec{},
		ValueCodec: codec.StringCodec{},
		Options:    options.NewDefaultOptions(),
	})
}

func TestEnginePutGetRoutesConsistently(t *testing.T) {
	eng := newTestEngine(t, 4)

	keys := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}
	for _, k := range keys {
		_, hadOld, err := eng.Put(k, "v-"+k)
		require.NoError(t, err)
		require.False(t, hadOld)
	}

	require.EqualValues(t, len(keys), eng.Size())

	for _, k := range keys {
		v, found, err := eng.Get(k)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "v-"+k, v)
	}
}

func TestEngineContainsKeyReplaceRemove(t *testing.T) {
	eng := newTestEngine(t, 2)

	ok, err := eng.ContainsKey("missing")
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = eng.Put("k", "v1")
	require.NoError(t, err)

	ok, err = eng.ContainsKey("k")
	require.NoError(t, err)
	require.True(t, ok)

	old, found, err := eng.Replace("k", "v2")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v1", old)

	v, found, err := eng.Remove("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v2", v)

	ok, err = eng.ContainsKey("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEngineClearEmptiesEverySegment(t *testing.T) {
	eng := newTestEngine(t, 4)

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		_, _, err := eng.Put(k, "v")
		require.NoError(t, err)
	}
	require.Greater(t, eng.Size(), int64(0))

	require.NoError(t, eng.Clear())
	require.EqualValues(t, 0, eng.Size())
}

func TestEngineForEachVisitsEveryEntry(t *testing.T) {
	eng := newTestEngine(t, 4)

	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		_, _, err := eng.Put(k, v)
		require.NoError(t, err)
	}

	got := map[string]string{}
	err := eng.ForEach(func(k, v string) (bool, error) {
		got[k] = v
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestEngineForEachStopsEarly(t *testing.T) {
	eng := newTestEngine(t, 4)

	for _, k := range []string{"a", "b", "c", "d"} {
		_, _, err := eng.Put(k, "v")
		require.NoError(t, err)
	}

	visited := 0
	err := eng.ForEach(func(_, _ string) (bool, error) {
		visited++
		return false, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, visited)
}

func TestEngineOperationsFailAfterClose(t *testing.T) {
	eng := newTestEngine(t, 2)
	require.NoError(t, eng.Close())

	_, _, err := eng.Put("k", "v")
	require.ErrorIs(t, err, ErrEngineClosed)

	_, _, err = eng.Get("k")
	require.ErrorIs(t, err, ErrEngineClosed)

	require.ErrorIs(t, eng.Clear(), ErrEngineClosed)
	require.ErrorIs(t, eng.ForEach(func(string, string) (bool, error) { return true, nil }), ErrEngineClosed)
}

func TestEngineCloseIsNotIdempotent(t *testing.T) {
	eng := newTestEngine(t, 1)
	require.NoError(t, eng.Close())
	require.ErrorIs(t, eng.Close(), ErrEngineClosed)
}

type failingCloser struct{ err error }

func (f failingCloser) Close() error { return f.err }

func TestEngineCloseAggregatesCloserErrors(t *testing.T) {
	eng := newTestEngine(t, 1)
	wantErr := errors.New("replicator teardown failed")
	eng.closers = append(eng.closers, failingCloser{err: wantErr})

	err := eng.Close()
	require.Error(t, err)
	require.ErrorIs(t, err, wantErr)
}

func TestEnginePutIfAbsent(t *testing.T) {
	eng := newTestEngine(t, 2)

	_, loaded, err := eng.PutIfAbsent("k", "first")
	require.NoError(t, err)
	require.False(t, loaded)

	existing, loaded, err := eng.PutIfAbsent("k", "second")
	require.NoError(t, err)
	require.True(t, loaded)
	require.Equal(t, "first", existing)

	v, _, err := eng.Get("k")
	require.NoError(t, err)
	require.Equal(t, "first", v)
}

func TestEngineCompareAndReplaceAndRemove(t *testing.T) {
	eng := newTestEngine(t, 2)

	_, _, err := eng.Put("k", "v1")
	require.NoError(t, err)

	swapped, err := eng.CompareAndReplace("k", "wrong", "v2")
	require.NoError(t, err)
	require.False(t, swapped)

	swapped, err = eng.CompareAndReplace("k", "v1", "v2")
	require.NoError(t, err)
	require.True(t, swapped)

	removed, err := eng.CompareAndRemove("k", "v1")
	require.NoError(t, err)
	require.False(t, removed)

	removed, err = eng.CompareAndRemove("k", "v2")
	require.NoError(t, err)
	require.True(t, removed)
	require.EqualValues(t, 0, eng.Size())
}

func TestEngineGetReusing(t *testing.T) {
	eng := newTestEngine(t, 2)

	_, _, err := eng.Put("k", "value")
	require.NoError(t, err)

	v, found, err := eng.GetReusing("k", "scratch")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "value", v)
}

func TestEngineRoutingSpreadsKeysAcrossSegments(t *testing.T) {
	const segmentCount = 4
	const keys = 2000

	eng := newTestEngineSized(t, segmentCount, 2048, 37, 1024, 64)

	for i := 0; i < keys; i++ {
		_, _, err := eng.Put(fmt.Sprintf("key-%05d", i), "v")
		require.NoError(t, err)
	}
	require.EqualValues(t, keys, eng.Size())

	// xxhash routing should land each segment within a loose tolerance of
	// the even share.
	expected := float64(keys) / segmentCount
	for i, seg := range eng.segments {
		got := float64(seg.Size())
		require.InDeltaf(t, expected, got, expected*0.25,
			"segment %d holds %v entries, expected about %v", i, got, expected)
	}
}

// newTestEngineSized is newTestEngine with explicit geometry for tests
// that need more capacity than the default tiny segments.
func newTestEngineSized(t *testing.T, segmentCount, slots int, hBits uint, nchunks, chunkSize int) *Engine[string, string] {
	t.Helper()

	segments := make([]*segment.Segment[string, string], segmentCount)
	for i := 0; i < segmentCount; i++ {
		tableStore, err := bytestore.OpenAnonStore(int64(slots) * 8)
		require.NoError(t, err)
		t.Cleanup(func() { tableStore.Close() })
		table := hashlookup.New(tableStore, 0, slots, hBits, i)

		entryStore, err := bytestore.OpenAnonStore(int64(nchunks * chunkSize))
		require.NoError(t, err)
		t.Cleanup(func() { entryStore.Close() })

		words := make([]uint64, arena.WordsNeeded(nchunks))
		free := arena.NewFreeBits(words, nchunks)
		free.Reset()
		a := arena.New(i, free)

		layout := segment.Layout{MetaDataBytes: 0, Alignment: codec.Align8, Replicated: false}
		segments[i] = segment.New[string, string](
			i, entryStore, 0, chunkSize, table, a, nil, layout, codec.StringCodec{}, codec.StringCodec{}, time.Second, nil, nil,
		)
	}

	store, err := bytestore.OpenAnonStore(64)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(Config[string, string]{
		Store:      store,
		Header:     header.Header{SegmentCount: uint32(segmentCount)},
		Segments:   segments,
		KeyCodec:   codec.StringCodec{},
		ValueCodec: codec.StringCodec{},
		Options:    options.NewDefaultOptions(),
	})
}
