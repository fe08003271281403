package segment

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/iamNilotpal/ignitemap/internal/arena"
	"github.com/iamNilotpal/ignitemap/internal/bytestore"
	"github.com/iamNilotpal/ignitemap/internal/codec"
	"github.com/iamNilotpal/ignitemap/internal/hashlookup"
	"github.com/iamNilotpal/ignitemap/internal/hashutil"
	"github.com/iamNilotpal/ignitemap/internal/replication"
	"github.com/iamNilotpal/ignitemap/pkg/options"
	"github.com/stretchr/testify/require"
)

func newTestSegment(t *testing.T, chunkSize, nchunks int) *Segment[string, string] {
	t.Helper()
	return newTestSegmentWithListeners(t, chunkSize, nchunks, 0, nil, nil)
}

func newTestSegmentWithListeners(
	t *testing.T, chunkSize, nchunks, metaDataBytes int,
	eventListener options.EventListener, errorListener options.ErrorListener,
) *Segment[string, string] {
	t.Helper()

	tableStore, err := bytestore.OpenAnonStore(32 * 8)
	require.NoError(t, err)
	t.Cleanup(func() { tableStore.Close() })
	table := hashlookup.New(tableStore, 0, 32, 16, 0)

	entryStore, err := bytestore.OpenAnonStore(int64(nchunks * chunkSize))
	require.NoError(t, err)
	t.Cleanup(func() { entryStore.Close() })

	words := make([]uint64, arena.WordsNeeded(nchunks))
	free := arena.NewFreeBits(words, nchunks)
	free.Reset()
	a := arena.New(0, free)

	layout := Layout{MetaDataBytes: metaDataBytes, Alignment: codec.Align8, Replicated: false}
	return New[string, string](
		0, entryStore, 0, chunkSize, table, a, nil, layout, codec.StringCodec{}, codec.StringCodec{}, time.Second,
		eventListener, errorListener,
	)
}

func noHeader() replication.EntryHeader { return replication.EntryHeader{} }

func TestSegmentPutGetRoundTrip(t *testing.T) {
	seg := newTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("hello"))

	old, had, err := seg.Put(h, "hello", "world", noHeader(), true)
	require.NoError(t, err)
	require.False(t, had)
	require.Empty(t, old)

	v, found, err := seg.Get(h, "hello")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "world", v)
	require.EqualValues(t, 1, seg.Size())
}

func TestSegmentPutOverwriteInPlaceWhenSpanStillFits(t *testing.T) {
	seg := newTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("k"))

	_, _, err := seg.Put(h, "k", "a reasonably long value", noHeader(), false)
	require.NoError(t, err)
	freeBefore := seg.arena.FreeChunks()

	old, had, err := seg.Put(h, "k", "short", noHeader(), true)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, "a reasonably long value", old)
	require.Equal(t, freeBefore, seg.arena.FreeChunks())

	v, found, err := seg.Get(h, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "short", v)
	require.EqualValues(t, 1, seg.Size())
}

func TestSegmentPutRelocatesWhenSpanGrows(t *testing.T) {
	seg := newTestSegment(t, 8, 64)
	h := hashutil.Hash64([]byte("grow"))

	_, _, err := seg.Put(h, "grow", "x", noHeader(), false)
	require.NoError(t, err)
	freeBefore := seg.arena.FreeChunks()

	longValue := make([]byte, 256)
	for i := range longValue {
		longValue[i] = byte('a' + i%26)
	}
	_, had, err := seg.Put(h, "grow", string(longValue), noHeader(), false)
	require.NoError(t, err)
	require.True(t, had)
	require.Less(t, seg.arena.FreeChunks(), freeBefore)

	v, found, err := seg.Get(h, "grow")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, string(longValue), v)
}

func TestSegmentReplaceMissingKeyIsNoop(t *testing.T) {
	seg := newTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("missing"))

	_, found, err := seg.Replace(h, "missing", "x", noHeader(), true)
	require.NoError(t, err)
	require.False(t, found)
	require.EqualValues(t, 0, seg.Size())

	_, found, err = seg.Get(h, "missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSegmentReplaceExistingKey(t *testing.T) {
	seg := newTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("present"))

	_, _, err := seg.Put(h, "present", "v1", noHeader(), false)
	require.NoError(t, err)

	old, found, err := seg.Replace(h, "present", "v2", noHeader(), true)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v1", old)

	v, found, err := seg.Get(h, "present")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v2", v)
}

func TestSegmentRemove(t *testing.T) {
	seg := newTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("gone"))

	_, _, err := seg.Put(h, "gone", "bye", noHeader(), false)
	require.NoError(t, err)

	v, found, err := seg.Remove(h, "gone", noHeader(), true)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "bye", v)

	_, found, err = seg.Get(h, "gone")
	require.NoError(t, err)
	require.False(t, found)
	require.EqualValues(t, 0, seg.Size())
}

func TestSegmentRemoveMissingKey(t *testing.T) {
	seg := newTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("absent"))

	_, found, err := seg.Remove(h, "absent", noHeader(), true)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSegmentContainsKey(t *testing.T) {
	seg := newTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("present"))
	_, _, err := seg.Put(h, "present", "v", noHeader(), false)
	require.NoError(t, err)

	ok, err := seg.ContainsKey(h, "present")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = seg.ContainsKey(h, "absent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSegmentSegmentFullSurfacesArenaError(t *testing.T) {
	seg := newTestSegment(t, 64, 1)
	h1 := hashutil.Hash64([]byte("a"))
	h2 := hashutil.Hash64([]byte("bb"))

	_, _, err := seg.Put(h1, "a", "v", noHeader(), false)
	require.NoError(t, err)

	_, _, err = seg.Put(h2, "bb", "v", noHeader(), false)
	require.Error(t, err)
}

// counterListener writes an incrementing 64-bit counter into each entry's
// meta-data bytes on every put and get-found notification.
type counterListener struct {
	counter   uint64
	putCalls  int
	getCalls  int
	lastOnPut bool
	missing   int
	removes   int
}

func (l *counterListener) OnPut(meta options.MetaAccessor, keyPos, valuePos int64, added bool) {
	l.putCalls++
	l.lastOnPut = added
	l.counter++
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, l.counter)
	_ = meta.WriteMeta(buf)
}

func (l *counterListener) OnGetFound(meta options.MetaAccessor, keyPos, valuePos int64) {
	l.getCalls++
	l.counter++
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, l.counter)
	_ = meta.WriteMeta(buf)
}

func (l *counterListener) OnGetMissing(key []byte) { l.missing++ }

func (l *counterListener) OnRemove(meta options.MetaAccessor, keyPos, valuePos int64) {
	l.removes++
}

func TestSegmentEventListenerMetaDataCounter(t *testing.T) {
	listener := &counterListener{}
	seg := newTestSegmentWithListeners(t, 64, 64, 8, listener, nil)

	keys := []string{"a", "b", "c", "d"}
	for _, k := range keys {
		h := hashutil.Hash64([]byte(k))
		_, _, err := seg.Put(h, k, "v-"+k, noHeader(), false)
		require.NoError(t, err)
	}
	for _, k := range keys {
		h := hashutil.Hash64([]byte(k))
		_, found, err := seg.Get(h, k)
		require.NoError(t, err)
		require.True(t, found)
	}

	require.Equal(t, 4, listener.putCalls)
	require.Equal(t, 4, listener.getCalls)
	require.Equal(t, 8, listener.putCalls+listener.getCalls)

	for _, k := range keys {
		h := hashutil.Hash64([]byte(k))
		_, pos, found, err := seg.findByKey(h, []byte(k))
		require.NoError(t, err)
		require.True(t, found)

		cur := bytestore.NewCursor(seg.store, seg.entryOffset(pos))
		head, err := readEntryHead(cur, seg.layout)
		require.NoError(t, err)
		meta, err := seg.metaFor(head.metaPos).ReadMeta()
		require.NoError(t, err)
		require.Len(t, meta, 8)
	}
}

func TestSegmentEventListenerOnGetMissingAndOnRemove(t *testing.T) {
	listener := &counterListener{}
	seg := newTestSegmentWithListeners(t, 64, 64, 0, listener, nil)
	h := hashutil.Hash64([]byte("k"))

	_, found, err := seg.Get(h, "k")
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 1, listener.missing)

	_, _, err = seg.Put(h, "k", "v", noHeader(), false)
	require.NoError(t, err)
	require.True(t, listener.lastOnPut)

	_, found, err = seg.Remove(h, "k", noHeader(), false)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, listener.removes)
}

// timeoutErrorListener records every segment index it was notified about.
type timeoutErrorListener struct {
	segments []int
}

func (l *timeoutErrorListener) OnLockTimeout(segmentIndex int) {
	l.segments = append(l.segments, segmentIndex)
}

func TestSegmentLockTimeoutNotifiesErrorListener(t *testing.T) {
	listener := &timeoutErrorListener{}
	seg := newTestSegmentWithListeners(t, 64, 64, 0, nil, listener)
	seg.lockTimeout = 5 * time.Millisecond

	require.NoError(t, seg.lock.lockWithTimeout(seg.segmentIndex, time.Second))

	h := hashutil.Hash64([]byte("k"))
	_, _, err := seg.Put(h, "k", "v", noHeader(), false)
	require.Error(t, err)
	require.Equal(t, []int{0}, listener.segments)

	seg.lock.unlock()
}

func TestSegmentPutIfAbsent(t *testing.T) {
	seg := newTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("once"))

	_, loaded, err := seg.PutIfAbsent(h, "once", "first", noHeader())
	require.NoError(t, err)
	require.False(t, loaded)

	existing, loaded, err := seg.PutIfAbsent(h, "once", "second", noHeader())
	require.NoError(t, err)
	require.True(t, loaded)
	require.Equal(t, "first", existing)

	v, found, err := seg.Get(h, "once")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "first", v)
	require.EqualValues(t, 1, seg.Size())
}

func TestSegmentCompareAndReplace(t *testing.T) {
	seg := newTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("cas"))

	_, _, err := seg.Put(h, "cas", "v1", noHeader(), false)
	require.NoError(t, err)

	swapped, err := seg.CompareAndReplace(h, "cas", "wrong", "v2", noHeader())
	require.NoError(t, err)
	require.False(t, swapped)

	swapped, err = seg.CompareAndReplace(h, "cas", "v1", "v2", noHeader())
	require.NoError(t, err)
	require.True(t, swapped)

	v, _, err := seg.Get(h, "cas")
	require.NoError(t, err)
	require.Equal(t, "v2", v)

	swapped, err = seg.CompareAndReplace(h, "absent", "v1", "v2", noHeader())
	require.NoError(t, err)
	require.False(t, swapped)
}

func TestSegmentCompareAndRemove(t *testing.T) {
	seg := newTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("cad"))

	_, _, err := seg.Put(h, "cad", "keep", noHeader(), false)
	require.NoError(t, err)

	removed, err := seg.CompareAndRemove(h, "cad", "other", noHeader())
	require.NoError(t, err)
	require.False(t, removed)
	require.EqualValues(t, 1, seg.Size())

	removed, err = seg.CompareAndRemove(h, "cad", "keep", noHeader())
	require.NoError(t, err)
	require.True(t, removed)
	require.EqualValues(t, 0, seg.Size())

	_, found, err := seg.Get(h, "cad")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSegmentGetReusingMatchesGet(t *testing.T) {
	seg := newTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("reuse"))

	_, _, err := seg.Put(h, "reuse", "value", noHeader(), false)
	require.NoError(t, err)

	v, found, err := seg.GetReusing(h, "reuse", "scratch")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "value", v)
}

func TestSegmentInPlaceOverwriteKeepsEntryPosition(t *testing.T) {
	seg := newTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("k"))

	_, _, err := seg.Put(h, "k", "xxxxxxxxxxxxxxxx", noHeader(), false)
	require.NoError(t, err)
	_, posBefore, found, err := seg.findByKey(h, []byte("k"))
	require.NoError(t, err)
	require.True(t, found)

	_, _, err = seg.Put(h, "k", "yyyyyyyyyyyyyyyy", noHeader(), false)
	require.NoError(t, err)
	_, posAfter, found, err := seg.findByKey(h, []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, posBefore, posAfter)

	v, _, err := seg.Get(h, "k")
	require.NoError(t, err)
	require.Equal(t, "yyyyyyyyyyyyyyyy", v)
}

func TestSegmentRelocationMovesEntryPosition(t *testing.T) {
	seg := newTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("k"))

	_, _, err := seg.Put(h, "k", "xxxxxxxxxxxxxxxx", noHeader(), false)
	require.NoError(t, err)
	_, posBefore, _, err := seg.findByKey(h, []byte("k"))
	require.NoError(t, err)
	freeBefore := seg.arena.FreeChunks()

	grown := make([]byte, 80)
	for i := range grown {
		grown[i] = 'x'
	}
	_, _, err = seg.Put(h, "k", string(grown), noHeader(), false)
	require.NoError(t, err)
	_, posAfter, _, err := seg.findByKey(h, []byte("k"))
	require.NoError(t, err)
	require.NotEqual(t, posBefore, posAfter)

	// The old single-chunk span is free again; only the larger two-chunk
	// span is deducted from the free count.
	require.Equal(t, freeBefore-1, seg.arena.FreeChunks())
}

func TestSegmentMetaDataSurvivesOverwrites(t *testing.T) {
	seg := newTestSegmentWithListeners(t, 64, 64, 8, nil, nil)
	h := hashutil.Hash64([]byte("m"))

	_, _, err := seg.Put(h, "m", "v1", noHeader(), false)
	require.NoError(t, err)

	_, pos, _, err := seg.findByKey(h, []byte("m"))
	require.NoError(t, err)
	head, err := seg.readHead(pos)
	require.NoError(t, err)

	stamp := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, seg.metaFor(head.metaPos).WriteMeta(stamp))

	// In-place overwrite keeps the meta bytes untouched.
	_, _, err = seg.Put(h, "m", "v2", noHeader(), false)
	require.NoError(t, err)
	_, pos, _, err = seg.findByKey(h, []byte("m"))
	require.NoError(t, err)
	head, err = seg.readHead(pos)
	require.NoError(t, err)
	meta, err := seg.metaFor(head.metaPos).ReadMeta()
	require.NoError(t, err)
	require.Equal(t, stamp, meta)

	// Relocation carries the meta bytes to the new span.
	grown := make([]byte, 200)
	for i := range grown {
		grown[i] = 'z'
	}
	_, _, err = seg.Put(h, "m", string(grown), noHeader(), false)
	require.NoError(t, err)
	_, pos, _, err = seg.findByKey(h, []byte("m"))
	require.NoError(t, err)
	head, err = seg.readHead(pos)
	require.NoError(t, err)
	meta, err = seg.metaFor(head.metaPos).ReadMeta()
	require.NoError(t, err)
	require.Equal(t, stamp, meta)
}

func newReplicatedTestSegment(t *testing.T, chunkSize, nchunks int) *Segment[string, string] {
	t.Helper()

	tableStore, err := bytestore.OpenAnonStore(32 * 8)
	require.NoError(t, err)
	t.Cleanup(func() { tableStore.Close() })
	table := hashlookup.New(tableStore, 0, 32, 16, 0)

	entryStore, err := bytestore.OpenAnonStore(int64(nchunks * chunkSize))
	require.NoError(t, err)
	t.Cleanup(func() { entryStore.Close() })

	words := make([]uint64, arena.WordsNeeded(nchunks))
	free := arena.NewFreeBits(words, nchunks)
	free.Reset()
	a := arena.New(0, free)

	layout := Layout{MetaDataBytes: 0, Alignment: codec.Align8, Replicated: true}
	return New[string, string](
		0, entryStore, 0, chunkSize, table, a, nil, layout, codec.StringCodec{}, codec.StringCodec{}, time.Second,
		nil, nil,
	)
}

func header(id uint8, ts uint64) replication.EntryHeader {
	return replication.EntryHeader{Identifier: id, Timestamp: ts}
}

func TestReplicatedPutIgnoresStaleTimestamp(t *testing.T) {
	seg := newReplicatedTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("lww"))

	_, _, err := seg.Put(h, "lww", "newer", header(1, 100), false)
	require.NoError(t, err)

	// A replicated put stamped before the stored entry loses.
	old, had, err := seg.Put(h, "lww", "older", header(2, 50), true)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, "newer", old)

	v, _, err := seg.Get(h, "lww")
	require.NoError(t, err)
	require.Equal(t, "newer", v)

	// A later timestamp wins as usual.
	_, _, err = seg.Put(h, "lww", "latest", header(2, 200), false)
	require.NoError(t, err)
	v, _, err = seg.Get(h, "lww")
	require.NoError(t, err)
	require.Equal(t, "latest", v)
}

func TestReplicatedRemoveLeavesTombstone(t *testing.T) {
	seg := newReplicatedTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("dead"))

	_, _, err := seg.Put(h, "dead", "alive", header(1, 100), false)
	require.NoError(t, err)
	freeAfterPut := seg.arena.FreeChunks()

	v, found, err := seg.Remove(h, "dead", header(1, 150), true)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "alive", v)
	require.EqualValues(t, 0, seg.Size())

	// The tombstone still occupies its chunks until compacted.
	require.Equal(t, freeAfterPut, seg.arena.FreeChunks())

	_, found, err = seg.Get(h, "dead")
	require.NoError(t, err)
	require.False(t, found)

	ok, err := seg.ContainsKey(h, "dead")
	require.NoError(t, err)
	require.False(t, ok)

	// Removing an already-tombstoned key is a miss.
	_, found, err = seg.Remove(h, "dead", header(1, 160), true)
	require.NoError(t, err)
	require.False(t, found)
}

func TestReplicatedPutRevivesTombstone(t *testing.T) {
	seg := newReplicatedTestSegment(t, 64, 64)
	h := hashutil.Hash64([]byte("zombie"))

	_, _, err := seg.Put(h, "zombie", "v1", header(1, 100), false)
	require.NoError(t, err)
	_, _, err = seg.Remove(h, "zombie", header(1, 200), false)
	require.NoError(t, err)

	// A put stamped before the tombstone stays dead.
	_, had, err := seg.Put(h, "zombie", "stale", header(2, 150), false)
	require.NoError(t, err)
	require.False(t, had)
	_, found, err := seg.Get(h, "zombie")
	require.NoError(t, err)
	require.False(t, found)

	// A put stamped after the tombstone revives the entry.
	_, had, err = seg.Put(h, "zombie", "back", header(2, 250), false)
	require.NoError(t, err)
	require.False(t, had)
	require.EqualValues(t, 1, seg.Size())

	v, found, err := seg.Get(h, "zombie")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "back", v)
}

func TestReplicatedForEachSkipsTombstones(t *testing.T) {
	seg := newReplicatedTestSegment(t, 64, 64)

	for _, k := range []string{"a", "b", "c"} {
		h := hashutil.Hash64([]byte(k))
		_, _, err := seg.Put(h, k, "v-"+k, header(1, 100), false)
		require.NoError(t, err)
	}
	_, _, err := seg.Remove(hashutil.Hash64([]byte("b")), "b", header(1, 200), false)
	require.NoError(t, err)

	got := map[string]string{}
	err = seg.ForEach(func(k, v string) (bool, error) {
		got[k] = v
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "v-a", "c": "v-c"}, got)
}

func TestSegmentZeroLengthKeysAndValues(t *testing.T) {
	seg := newTestSegment(t, 64, 64)

	hEmpty := hashutil.Hash64([]byte(""))
	_, had, err := seg.Put(hEmpty, "", "value for empty key", noHeader(), false)
	require.NoError(t, err)
	require.False(t, had)

	v, found, err := seg.Get(hEmpty, "")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "value for empty key", v)

	h := hashutil.Hash64([]byte("empty-value"))
	_, _, err = seg.Put(h, "empty-value", "", noHeader(), false)
	require.NoError(t, err)

	v, found, err = seg.Get(h, "empty-value")
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, v)
	require.EqualValues(t, 2, seg.Size())

	v, found, err = seg.Remove(h, "empty-value", noHeader(), true)
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, v)
}
