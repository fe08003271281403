package segment

import (
	"bytes"
	"sync/atomic"
	"time"

	"github.com/iamNilotpal/ignitemap/internal/arena"
	"github.com/iamNilotpal/ignitemap/internal/bytestore"
	"github.com/iamNilotpal/ignitemap/internal/codec"
	"github.com/iamNilotpal/ignitemap/internal/hashlookup"
	"github.com/iamNilotpal/ignitemap/internal/replication"
	ignerrors "github.com/iamNilotpal/ignitemap/pkg/errors"
	"github.com/iamNilotpal/ignitemap/pkg/options"
)

// Segment owns one shard of the map: the hash-lookup table that finds
// entries by key hash, the arena that allocates their byte storage, and a
// bounded-timeout lock that makes every operation here linearizable with
// respect to every other operation on the same segment. Nothing
// above this layer ever touches a segment's table or arena directly.
type Segment[K any, V any] struct {
	segmentIndex int
	lockTimeout  time.Duration

	store     bytestore.Store // entry arena's backing region
	base      int64           // absolute offset of chunk 0
	chunkSize int

	table *hashlookup.Table
	arena *arena.Arena
	lock  *timedRWMutex

	layout     Layout
	keyCodec   codec.Codec[K]
	valueCodec codec.Codec[V]

	eventListener options.EventListener
	errorListener options.ErrorListener

	// size is the live-entry counter, accessed atomically. When the
	// segment is built over a persisted region the word aliases the
	// segment's size_counter slot there, so the count survives a reopen;
	// otherwise it points at a private word.
	size *uint64
}

// New returns a Segment backed by table and arena, storing entries in store
// starting at base, chunkSize bytes per chunk. sizeCounter, when non-nil,
// is a one-word live view of the segment's persisted size_counter slot;
// nil gives the segment a private in-memory counter starting at zero.
// eventListener/errorListener may be nil, in which case the corresponding
// notifications are skipped.
func New[K any, V any](
	segmentIndex int,
	store bytestore.Store,
	base int64,
	chunkSize int,
	table *hashlookup.Table,
	arena *arena.Arena,
	sizeCounter []uint64,
	layout Layout,
	keyCodec codec.Codec[K],
	valueCodec codec.Codec[V],
	lockTimeout time.Duration,
	eventListener options.EventListener,
	errorListener options.ErrorListener,
) *Segment[K, V] {
	if sizeCounter == nil {
		sizeCounter = make([]uint64, 1)
	}
	return &Segment[K, V]{
		size:          &sizeCounter[0],
		segmentIndex:  segmentIndex,
		lockTimeout:   lockTimeout,
		store:         store,
		base:          base,
		chunkSize:     chunkSize,
		table:         table,
		arena:         arena,
		lock:          newTimedRWMutex(),
		layout:        layout,
		keyCodec:      keyCodec,
		valueCodec:    valueCodec,
		eventListener: eventListener,
		errorListener: errorListener,
	}
}

// metaAccessor implements options.MetaAccessor for one entry's reserved
// meta-data bytes, addressed by absolute offset within the segment's
// backing store.
type metaAccessor struct {
	store bytestore.Store
	pos   int64
	size  int
}

func (m metaAccessor) ReadMeta() ([]byte, error) {
	if m.size == 0 {
		return nil, nil
	}
	cur := bytestore.NewCursor(m.store, m.pos)
	return cur.ReadBytes(m.size)
}

func (m metaAccessor) WriteMeta(b []byte) error {
	if m.size == 0 {
		return nil
	}
	if len(b) != m.size {
		return ignerrors.NewValidationError(nil, ignerrors.ErrorCodeInvalidInput, "meta-data length mismatch").
			WithField("meta")
	}
	cur := bytestore.NewCursor(m.store, m.pos)
	return cur.WriteBytes(b)
}

func (s *Segment[K, V]) metaFor(pos int64) options.MetaAccessor {
	return metaAccessor{store: s.store, pos: pos, size: s.layout.MetaDataBytes}
}

// acquireWrite takes the write lock, notifying errorListener on timeout.
func (s *Segment[K, V]) acquireWrite() error {
	if err := s.lock.lockWithTimeout(s.segmentIndex, s.lockTimeout); err != nil {
		if s.errorListener != nil {
			s.errorListener.OnLockTimeout(s.segmentIndex)
		}
		return err
	}
	return nil
}

// acquireRead takes the read lock, notifying errorListener on timeout.
func (s *Segment[K, V]) acquireRead() error {
	if err := s.lock.rLockWithTimeout(s.segmentIndex, s.lockTimeout); err != nil {
		if s.errorListener != nil {
			s.errorListener.OnLockTimeout(s.segmentIndex)
		}
		return err
	}
	return nil
}

// Size returns the number of live entries in this segment.
func (s *Segment[K, V]) Size() int64 {
	return int64(atomic.LoadUint64(s.size))
}

func (s *Segment[K, V]) entryOffset(pos uint32) int64 {
	return s.base + int64(pos)*int64(s.chunkSize)
}

// encode serializes v through c into a scratch MemStore, returning the raw
// bytes a segment needs for key comparison or entry encoding before an
// arena span has been chosen.
func encode[T any](c codec.Codec[T], v T) ([]byte, error) {
	ms := bytestore.NewMemStore()
	cur := bytestore.NewCursor(ms, 0)
	if err := c.Write(cur, v); err != nil {
		return nil, err
	}
	return ms.Bytes(), nil
}

// findByKey probes segmentHash's chain for an entry whose key bytes equal
// keyBytes, matching tombstoned entries too: a replicated put must be able
// to locate the tombstone it is reviving.
func (s *Segment[K, V]) findByKey(segmentHash uint64, keyBytes []byte) (slot int, pos uint32, found bool, err error) {
	return s.table.FindSlot(segmentHash, func(candidate uint32) (bool, error) {
		cur := bytestore.NewCursor(s.store, s.entryOffset(candidate))
		head, err := readEntryHead(cur, s.layout)
		if err != nil {
			return false, err
		}
		return bytes.Equal(head.key, keyBytes), nil
	})
}

func (s *Segment[K, V]) readHead(pos uint32) (decodedEntry, error) {
	cur := bytestore.NewCursor(s.store, s.entryOffset(pos))
	return readEntryHead(cur, s.layout)
}

func (s *Segment[K, V]) readValue(head decodedEntry) (V, error) {
	vcur := bytestore.NewCursor(s.store, head.valuePos)
	return s.valueCodec.Read(vcur, head.valueLen)
}

// deleted reports whether head is a replicated tombstone: still occupying
// its slot and chunks, but semantically absent until compacted.
func (s *Segment[K, V]) deleted(head decodedEntry) bool {
	return s.layout.Replicated && head.header.IsDeleted
}

// Get returns the value stored for key, if any.
func (s *Segment[K, V]) Get(segmentHash uint64, key K) (value V, found bool, err error) {
	return s.get(segmentHash, key, value, false)
}

// GetReusing behaves like Get but decodes the value into reuse when the
// configured value codec supports it, letting a hot read path avoid
// allocating a fresh value per call.
func (s *Segment[K, V]) GetReusing(segmentHash uint64, key K, reuse V) (value V, found bool, err error) {
	return s.get(segmentHash, key, reuse, true)
}

func (s *Segment[K, V]) get(segmentHash uint64, key K, reuse V, reusing bool) (value V, found bool, err error) {
	if err = s.acquireRead(); err != nil {
		return value, false, err
	}
	defer s.lock.rUnlock()

	keyBytes, err := encode(s.keyCodec, key)
	if err != nil {
		return value, false, err
	}

	_, pos, ok, err := s.findByKey(segmentHash, keyBytes)
	if err != nil {
		return value, false, err
	}
	if ok {
		head, err := s.readHead(pos)
		if err != nil {
			return value, false, err
		}
		if !s.deleted(head) {
			vcur := bytestore.NewCursor(s.store, head.valuePos)
			if reusing {
				value, err = s.valueCodec.ReadReusing(vcur, head.valueLen, reuse)
			} else {
				value, err = s.valueCodec.Read(vcur, head.valueLen)
			}
			if err != nil {
				return value, false, err
			}
			if s.eventListener != nil {
				s.eventListener.OnGetFound(s.metaFor(head.metaPos), head.keyPos, head.valuePos)
			}
			return value, true, nil
		}
	}

	if s.eventListener != nil {
		s.eventListener.OnGetMissing(keyBytes)
	}
	return value, false, nil
}

// ContainsKey reports whether key has a live entry, without decoding its
// value.
func (s *Segment[K, V]) ContainsKey(segmentHash uint64, key K) (bool, error) {
	if err := s.acquireRead(); err != nil {
		return false, err
	}
	defer s.lock.rUnlock()

	keyBytes, err := encode(s.keyCodec, key)
	if err != nil {
		return false, err
	}
	_, pos, found, err := s.findByKey(segmentHash, keyBytes)
	if err != nil || !found {
		return false, err
	}
	head, err := s.readHead(pos)
	if err != nil {
		return false, err
	}
	return !s.deleted(head), nil
}

// Put inserts key/value, or overwrites the existing entry for key. old is
// only populated when returnOld is true, letting a caller that configured
// PutReturnsNull skip the extra value decode entirely; hadOld reports
// whether key had a live entry either way.
func (s *Segment[K, V]) Put(segmentHash uint64, key K, value V, header replication.EntryHeader, returnOld bool) (old V, hadOld bool, err error) {
	return s.upsert(segmentHash, key, value, header, returnOld, true)
}

// Replace overwrites the existing entry for key, doing nothing if key is
// absent (unlike Put, it never inserts).
func (s *Segment[K, V]) Replace(segmentHash uint64, key K, value V, header replication.EntryHeader, returnOld bool) (old V, found bool, err error) {
	return s.upsert(segmentHash, key, value, header, returnOld, false)
}

func (s *Segment[K, V]) upsert(segmentHash uint64, key K, value V, header replication.EntryHeader, returnOld, insertIfMissing bool) (old V, hadOld bool, err error) {
	if err = s.acquireWrite(); err != nil {
		return old, false, err
	}
	defer s.lock.unlock()

	keyBytes, err := encode(s.keyCodec, key)
	if err != nil {
		return old, false, err
	}
	valBytes, err := encode(s.valueCodec, value)
	if err != nil {
		return old, false, err
	}

	_, pos, found, err := s.findByKey(segmentHash, keyBytes)
	if err != nil {
		return old, false, err
	}

	if !found {
		if !insertIfMissing {
			return old, false, nil
		}
		newPos, err := s.insert(segmentHash, header, keyBytes, valBytes)
		if err != nil {
			return old, false, err
		}
		atomic.AddUint64(s.size, 1)
		if s.eventListener != nil {
			s.notifyPut(newPos, true)
		}
		return old, false, nil
	}

	head, err := s.readHead(pos)
	if err != nil {
		return old, false, err
	}

	if s.deleted(head) {
		// A tombstone is semantically absent: reviving it is an insert
		// over the existing span, subject to last-writer-wins against the
		// tombstone's own timestamp.
		if !insertIfMissing || header.Timestamp < head.header.Timestamp {
			return old, false, nil
		}
		finalPos, err := s.overwrite(segmentHash, pos, head, header, keyBytes, valBytes)
		if err != nil {
			return old, false, err
		}
		atomic.AddUint64(s.size, 1)
		if s.eventListener != nil {
			s.notifyPut(finalPos, true)
		}
		return old, false, nil
	}

	if s.layout.Replicated && header.Timestamp < head.header.Timestamp {
		// Stale replicated write: last-writer-wins keeps the stored entry.
		if returnOld {
			old, err = s.readValue(head)
		}
		return old, true, err
	}

	if returnOld {
		old, err = s.readValue(head)
		if err != nil {
			return old, false, err
		}
	}

	finalPos, err := s.overwrite(segmentHash, pos, head, header, keyBytes, valBytes)
	if err != nil {
		return old, true, err
	}
	if s.eventListener != nil {
		s.notifyPut(finalPos, false)
	}
	return old, true, nil
}

// PutIfAbsent inserts key/value only when key has no live entry. When the
// key is already present, existing is its current value and loaded is
// true; nothing is written.
func (s *Segment[K, V]) PutIfAbsent(segmentHash uint64, key K, value V, header replication.EntryHeader) (existing V, loaded bool, err error) {
	if err = s.acquireWrite(); err != nil {
		return existing, false, err
	}
	defer s.lock.unlock()

	keyBytes, err := encode(s.keyCodec, key)
	if err != nil {
		return existing, false, err
	}

	_, pos, found, err := s.findByKey(segmentHash, keyBytes)
	if err != nil {
		return existing, false, err
	}

	if found {
		head, err := s.readHead(pos)
		if err != nil {
			return existing, false, err
		}
		if !s.deleted(head) {
			existing, err = s.readValue(head)
			return existing, true, err
		}
		// Revive the tombstone in place.
		valBytes, err := encode(s.valueCodec, value)
		if err != nil {
			return existing, false, err
		}
		finalPos, err := s.overwrite(segmentHash, pos, head, header, keyBytes, valBytes)
		if err != nil {
			return existing, false, err
		}
		atomic.AddUint64(s.size, 1)
		if s.eventListener != nil {
			s.notifyPut(finalPos, true)
		}
		return existing, false, nil
	}

	valBytes, err := encode(s.valueCodec, value)
	if err != nil {
		return existing, false, err
	}
	newPos, err := s.insert(segmentHash, header, keyBytes, valBytes)
	if err != nil {
		return existing, false, err
	}
	atomic.AddUint64(s.size, 1)
	if s.eventListener != nil {
		s.notifyPut(newPos, true)
	}
	return existing, false, nil
}

// CompareAndReplace overwrites key's entry with newValue only when the
// stored value's bytes equal oldValue's encoding: the atomic equivalent of
// get-then-put-if-matches.
func (s *Segment[K, V]) CompareAndReplace(segmentHash uint64, key K, oldValue, newValue V, header replication.EntryHeader) (bool, error) {
	if err := s.acquireWrite(); err != nil {
		return false, err
	}
	defer s.lock.unlock()

	keyBytes, err := encode(s.keyCodec, key)
	if err != nil {
		return false, err
	}
	_, pos, found, err := s.findByKey(segmentHash, keyBytes)
	if err != nil || !found {
		return false, err
	}
	head, err := s.readHead(pos)
	if err != nil {
		return false, err
	}
	if s.deleted(head) {
		return false, nil
	}

	match, err := s.valueMatches(head, oldValue)
	if err != nil || !match {
		return false, err
	}

	valBytes, err := encode(s.valueCodec, newValue)
	if err != nil {
		return false, err
	}
	finalPos, err := s.overwrite(segmentHash, pos, head, header, keyBytes, valBytes)
	if err != nil {
		return false, err
	}
	if s.eventListener != nil {
		s.notifyPut(finalPos, false)
	}
	return true, nil
}

// valueMatches byte-compares the stored value against expected's encoding.
func (s *Segment[K, V]) valueMatches(head decodedEntry, expected V) (bool, error) {
	expectedBytes, err := encode(s.valueCodec, expected)
	if err != nil {
		return false, err
	}
	if len(expectedBytes) != head.valueLen {
		return false, nil
	}
	cur := bytestore.NewCursor(s.store, head.valuePos)
	stored, err := cur.ReadBytes(head.valueLen)
	if err != nil {
		return false, err
	}
	return bytes.Equal(stored, expectedBytes), nil
}

// notifyPut re-reads the entry at pos to recover its key/meta/value
// offsets and invokes eventListener.OnPut with them.
func (s *Segment[K, V]) notifyPut(pos uint32, added bool) {
	head, err := s.readHead(pos)
	if err != nil {
		return
	}
	s.eventListener.OnPut(s.metaFor(head.metaPos), head.keyPos, head.valuePos, added)
}

// insert allocates a fresh entry span for a key not already present and
// records it in the hash-lookup table. Returns the chunk position the
// entry was written at. The meta-data region starts zeroed rather than
// inheriting whatever a freed entry left in those chunks.
func (s *Segment[K, V]) insert(segmentHash uint64, header replication.EntryHeader, keyBytes, valBytes []byte) (uint32, error) {
	entrySize := s.layout.EntrySize(len(keyBytes), len(valBytes))
	chunks := arena.ChunkCount(entrySize, s.chunkSize)

	pos, err := s.arena.Allocate(chunks)
	if err != nil {
		return 0, err
	}
	var meta []byte
	if s.layout.MetaDataBytes > 0 {
		meta = make([]byte, s.layout.MetaDataBytes)
	}
	wcur := bytestore.NewCursor(s.store, s.entryOffset(uint32(pos)))
	if err := writeEntry(wcur, s.layout, header, keyBytes, meta, valBytes); err != nil {
		s.arena.Free(pos, chunks)
		return 0, err
	}
	if err := s.table.PutAfterProbe(segmentHash, uint32(pos)); err != nil {
		s.arena.Free(pos, chunks)
		return 0, err
	}
	return uint32(pos), nil
}

// overwrite rewrites an existing entry's value. When the new entry still
// fits within the chunk span already allocated to it, the entry is
// rewritten in place (meta-data bytes untouched) and the hash-lookup slot
// stays put; otherwise a new span is allocated, the old meta-data bytes
// are carried over, the table is repointed, and the old span is freed.
// Key bytes are unchanged on every call site, so only the value's length
// can move the new entry across a chunk boundary. Returns the chunk
// position the entry occupies after the call.
func (s *Segment[K, V]) overwrite(segmentHash uint64, pos uint32, head decodedEntry, header replication.EntryHeader, keyBytes, valBytes []byte) (uint32, error) {
	oldEntrySize := s.layout.EntrySize(len(head.key), head.valueLen)
	newEntrySize := s.layout.EntrySize(len(keyBytes), len(valBytes))
	oldChunks := arena.ChunkCount(oldEntrySize, s.chunkSize)
	newChunks := arena.ChunkCount(newEntrySize, s.chunkSize)

	if newChunks <= oldChunks {
		wcur := bytestore.NewCursor(s.store, s.entryOffset(pos))
		if err := writeEntry(wcur, s.layout, header, keyBytes, nil, valBytes); err != nil {
			return pos, err
		}
		return pos, nil
	}

	var meta []byte
	if s.layout.MetaDataBytes > 0 {
		var err error
		meta, err = s.metaFor(head.metaPos).ReadMeta()
		if err != nil {
			return pos, err
		}
	}

	newPos, err := s.arena.Allocate(newChunks)
	if err != nil {
		return pos, err
	}
	wcur := bytestore.NewCursor(s.store, s.entryOffset(uint32(newPos)))
	if err := writeEntry(wcur, s.layout, header, keyBytes, meta, valBytes); err != nil {
		s.arena.Free(newPos, newChunks)
		return pos, err
	}
	if err := s.table.UpdatePosition(segmentHash, pos, uint32(newPos)); err != nil {
		s.arena.Free(newPos, newChunks)
		return pos, err
	}
	s.arena.Free(int(pos), oldChunks)
	return uint32(newPos), nil
}

// Remove deletes the entry for key, if any. On a replicated segment the
// entry becomes a tombstone stamped with header's identifier and
// timestamp, still occupying its slot and chunks until compacted; on a
// plain segment its slot is backward-shift cleared and its chunks freed.
// value is only populated when returnValue is true.
func (s *Segment[K, V]) Remove(segmentHash uint64, key K, header replication.EntryHeader, returnValue bool) (value V, found bool, err error) {
	if err = s.acquireWrite(); err != nil {
		return value, false, err
	}
	defer s.lock.unlock()

	keyBytes, err := encode(s.keyCodec, key)
	if err != nil {
		return value, false, err
	}

	slot, pos, ok, err := s.findByKey(segmentHash, keyBytes)
	if err != nil || !ok {
		return value, false, err
	}

	head, err := s.readHead(pos)
	if err != nil {
		return value, false, err
	}
	if s.deleted(head) {
		return value, false, nil
	}

	if returnValue {
		value, err = s.readValue(head)
		if err != nil {
			return value, false, err
		}
	}

	if err := s.removeEntry(slot, pos, head, header); err != nil {
		return value, false, err
	}
	return value, true, nil
}

// CompareAndRemove deletes key's entry only when the stored value's bytes
// equal expected's encoding.
func (s *Segment[K, V]) CompareAndRemove(segmentHash uint64, key K, expected V, header replication.EntryHeader) (bool, error) {
	if err := s.acquireWrite(); err != nil {
		return false, err
	}
	defer s.lock.unlock()

	keyBytes, err := encode(s.keyCodec, key)
	if err != nil {
		return false, err
	}
	slot, pos, found, err := s.findByKey(segmentHash, keyBytes)
	if err != nil || !found {
		return false, err
	}
	head, err := s.readHead(pos)
	if err != nil {
		return false, err
	}
	if s.deleted(head) {
		return false, nil
	}

	match, err := s.valueMatches(head, expected)
	if err != nil || !match {
		return false, err
	}

	if err := s.removeEntry(slot, pos, head, header); err != nil {
		return false, err
	}
	return true, nil
}

// removeEntry performs the destructive half of a removal once the caller
// has located and vetted the entry: tombstone on a replicated segment,
// slot-clear plus chunk-free otherwise. The caller holds the write lock.
func (s *Segment[K, V]) removeEntry(slot int, pos uint32, head decodedEntry, header replication.EntryHeader) error {
	if s.eventListener != nil {
		s.eventListener.OnRemove(s.metaFor(head.metaPos), head.keyPos, head.valuePos)
	}

	if s.layout.Replicated {
		cur := bytestore.NewCursor(s.store, s.entryOffset(pos))
		header.IsDeleted = true
		if err := writeReplicationHeader(cur, header); err != nil {
			return err
		}
		atomic.AddUint64(s.size, ^uint64(0))
		return nil
	}

	if err := s.table.Remove(slot); err != nil {
		return err
	}

	entrySize := s.layout.EntrySize(len(head.key), head.valueLen)
	chunks := arena.ChunkCount(entrySize, s.chunkSize)
	s.arena.Free(int(pos), chunks)

	atomic.AddUint64(s.size, ^uint64(0))
	return nil
}

// Lock and Unlock expose the segment's write lock directly so Engine.Clear
// can hold every segment's lock for the duration of a whole-map clear:
// every segment is locked in index order before any of them is reset, and
// unlocked in reverse, so a concurrent reader never observes a
// half-cleared map.
func (s *Segment[K, V]) Lock() error {
	return s.acquireWrite()
}

func (s *Segment[K, V]) Unlock() {
	s.lock.unlock()
}

// ResetLocked wipes every entry in this segment: the hash-lookup table's
// slots, the arena's free-bits, and the live-entry counter. The caller
// must already hold this segment's lock (via Lock).
func (s *Segment[K, V]) ResetLocked() error {
	if err := s.table.Reset(); err != nil {
		return err
	}
	s.arena.Reset()
	atomic.StoreUint64(s.size, 0)
	return nil
}

// ForEach walks every live entry in this segment in table order, skipping
// tombstones. It holds this segment's read lock while it decodes a copy of
// every live key and value, releases it, and only then calls yield on the
// copies, so yield may call back into the map; a mutation made after the
// copies are taken is not reflected in the walk.
func (s *Segment[K, V]) ForEach(yield func(key K, value V) (cont bool, err error)) error {
	var keys []K
	var values []V
	if err := s.acquireRead(); err != nil {
		return err
	}
	err := s.table.ForEach(func(pos uint32) (bool, error) {
		head, err := s.readHead(pos)
		if err != nil {
			return false, err
		}
		if s.deleted(head) {
			return true, nil
		}
		kcur := bytestore.NewCursor(s.store, head.keyPos+4)
		key, err := s.keyCodec.Read(kcur, len(head.key))
		if err != nil {
			return false, err
		}
		value, err := s.readValue(head)
		if err != nil {
			return false, err
		}
		keys, values = append(keys, key), append(values, value)
		return true, nil
	})
	s.lock.rUnlock()
	for i := 0; err == nil && i < len(keys); i++ {
		var cont bool
		if cont, err = yield(keys[i], values[i]); !cont {
			break
		}
	}
	return err
}
