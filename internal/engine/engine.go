// Package engine implements the map core: the component that owns the
// persisted header and every segment, routes each operation to the
// segment a key's hash selects, and coordinates whole-map operations
// (Size, Clear, Close) across them. It is a struct wrapping subsystems
// behind an atomic closed flag, constructed through a Config.
package engine

import (
	"io"
	"sync/atomic"

	"github.com/iamNilotpal/ignitemap/internal/bytestore"
	"github.com/iamNilotpal/ignitemap/internal/codec"
	"github.com/iamNilotpal/ignitemap/internal/hashutil"
	"github.com/iamNilotpal/ignitemap/internal/header"
	"github.com/iamNilotpal/ignitemap/internal/replication"
	"github.com/iamNilotpal/ignitemap/internal/segment"
	ignerrors "github.com/iamNilotpal/ignitemap/pkg/errors"
	"github.com/iamNilotpal/ignitemap/pkg/logger"
	"github.com/iamNilotpal/ignitemap/pkg/options"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrEngineClosed is returned by every operation once Close has run.
var ErrEngineClosed = ignerrors.NewValidationError(nil, ignerrors.ErrorCodeInvalidInput, "operation failed: engine is closed")

// Engine owns every segment of one open map and routes operations to the
// segment a key's hash selects. Size/Clear/ForEach/Close are the only
// operations that touch more than one segment.
type Engine[K any, V any] struct {
	store        bytestore.Store
	header       header.Header
	log2Segments uint

	segments   []*segment.Segment[K, V]
	keyCodec   codec.Codec[K]
	valueCodec codec.Codec[V]

	replicationID     uint8
	timeProvider      func() int64
	putReturnsNull    bool
	removeReturnsNull bool

	closers []io.Closer
	closed  atomic.Bool
	log     *zap.SugaredLogger
}

// Config collects everything New needs; builder.Open assembles one after
// the sizer has decided segment geometry and every segment has been
// constructed over its slice of the mapped store.
type Config[K any, V any] struct {
	Store      bytestore.Store
	Header     header.Header
	Segments   []*segment.Segment[K, V]
	KeyCodec   codec.Codec[K]
	ValueCodec codec.Codec[V]
	Options    options.Options
	Closers    []io.Closer
	Logger     *zap.SugaredLogger
}

// New returns an Engine wrapping an already-constructed slice of segments.
// builder.Open is the only intended caller: it is responsible for making
// sure len(cfg.Segments) == cfg.Header.SegmentCount and that every segment
// was built from the same header geometry.
func New[K any, V any](cfg Config[K, V]) *Engine[K, V] {
	log := cfg.Logger
	if log == nil {
		log = logger.NewSilent()
	}
	return &Engine[K, V]{
		store:             cfg.Store,
		header:            cfg.Header,
		log2Segments:      hashutil.Log2(len(cfg.Segments)),
		segments:          cfg.Segments,
		keyCodec:          cfg.KeyCodec,
		valueCodec:        cfg.ValueCodec,
		replicationID:     cfg.Options.ReplicationID,
		timeProvider:      cfg.Options.TimeProvider,
		putReturnsNull:    cfg.Options.PutReturnsNull,
		removeReturnsNull: cfg.Options.RemoveReturnsNull,
		closers:           cfg.Closers,
		log:               log,
	}
}

func encode[T any](c codec.Codec[T], v T) ([]byte, error) {
	ms := bytestore.NewMemStore()
	cur := bytestore.NewCursor(ms, 0)
	if err := c.Write(cur, v); err != nil {
		return nil, err
	}
	return ms.Bytes(), nil
}

// route hashes key once and returns which segment it belongs to along
// with the segment-local hash that segment's table probes on.
func (e *Engine[K, V]) route(key K) (*segment.Segment[K, V], uint64, error) {
	keyBytes, err := encode(e.keyCodec, key)
	if err != nil {
		return nil, 0, err
	}
	h := hashutil.Hash64(keyBytes)
	idx := hashutil.SegmentIndex(h, e.log2Segments)
	segHash := hashutil.SegmentLocalHash(h, e.log2Segments)
	return e.segments[idx], segHash, nil
}

func (e *Engine[K, V]) entryHeader() replication.EntryHeader {
	if e.replicationID == 0 {
		return replication.EntryHeader{}
	}
	return replication.EntryHeader{Identifier: e.replicationID, Timestamp: uint64(e.timeProvider())}
}

// Put inserts key/value, overwriting any existing entry for key.
func (e *Engine[K, V]) Put(key K, value V) (old V, hadOld bool, err error) {
	if e.closed.Load() {
		return old, false, ErrEngineClosed
	}
	seg, segHash, err := e.route(key)
	if err != nil {
		return old, false, err
	}
	return seg.Put(segHash, key, value, e.entryHeader(), !e.putReturnsNull)
}

// PutIfAbsent inserts key/value only when key has no live entry,
// returning the existing value (and loaded=true) when it does.
func (e *Engine[K, V]) PutIfAbsent(key K, value V) (existing V, loaded bool, err error) {
	if e.closed.Load() {
		return existing, false, ErrEngineClosed
	}
	seg, segHash, err := e.route(key)
	if err != nil {
		return existing, false, err
	}
	return seg.PutIfAbsent(segHash, key, value, e.entryHeader())
}

// Get returns the value stored for key, if any.
func (e *Engine[K, V]) Get(key K) (value V, found bool, err error) {
	if e.closed.Load() {
		return value, false, ErrEngineClosed
	}
	seg, segHash, err := e.route(key)
	if err != nil {
		return value, false, err
	}
	return seg.Get(segHash, key)
}

// GetReusing behaves like Get but decodes the value into reuse when the
// configured value codec supports it.
func (e *Engine[K, V]) GetReusing(key K, reuse V) (value V, found bool, err error) {
	if e.closed.Load() {
		return value, false, ErrEngineClosed
	}
	seg, segHash, err := e.route(key)
	if err != nil {
		return value, false, err
	}
	return seg.GetReusing(segHash, key, reuse)
}

// ContainsKey reports whether key has a live entry.
func (e *Engine[K, V]) ContainsKey(key K) (bool, error) {
	if e.closed.Load() {
		return false, ErrEngineClosed
	}
	seg, segHash, err := e.route(key)
	if err != nil {
		return false, err
	}
	return seg.ContainsKey(segHash, key)
}

// Replace overwrites the existing entry for key, doing nothing if absent.
func (e *Engine[K, V]) Replace(key K, value V) (old V, found bool, err error) {
	if e.closed.Load() {
		return old, false, ErrEngineClosed
	}
	seg, segHash, err := e.route(key)
	if err != nil {
		return old, false, err
	}
	return seg.Replace(segHash, key, value, e.entryHeader(), !e.putReturnsNull)
}

// CompareAndReplace overwrites key's entry with newValue only when the
// stored value's bytes equal oldValue's encoding.
func (e *Engine[K, V]) CompareAndReplace(key K, oldValue, newValue V) (bool, error) {
	if e.closed.Load() {
		return false, ErrEngineClosed
	}
	seg, segHash, err := e.route(key)
	if err != nil {
		return false, err
	}
	return seg.CompareAndReplace(segHash, key, oldValue, newValue, e.entryHeader())
}

// Remove deletes the entry for key, if any.
func (e *Engine[K, V]) Remove(key K) (value V, found bool, err error) {
	if e.closed.Load() {
		return value, false, ErrEngineClosed
	}
	seg, segHash, err := e.route(key)
	if err != nil {
		return value, false, err
	}
	return seg.Remove(segHash, key, e.entryHeader(), !e.removeReturnsNull)
}

// CompareAndRemove deletes key's entry only when the stored value's bytes
// equal expected's encoding.
func (e *Engine[K, V]) CompareAndRemove(key K, expected V) (bool, error) {
	if e.closed.Load() {
		return false, ErrEngineClosed
	}
	seg, segHash, err := e.route(key)
	if err != nil {
		return false, err
	}
	return seg.CompareAndRemove(segHash, key, expected, e.entryHeader())
}

// Size returns the total live-entry count across every segment: an
// eventually-consistent snapshot taken without acquiring any lock.
func (e *Engine[K, V]) Size() int64 {
	var total int64
	for _, seg := range e.segments {
		total += seg.Size()
	}
	return total
}

// Clear empties every segment. Every segment's lock is acquired in index
// order before any of them is reset, and released in reverse order, so no
// reader ever observes a map that is partially cleared.
func (e *Engine[K, V]) Clear() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	locked := make([]int, 0, len(e.segments))
	for i, seg := range e.segments {
		if err := seg.Lock(); err != nil {
			for j := len(locked) - 1; j >= 0; j-- {
				e.segments[locked[j]].Unlock()
			}
			return err
		}
		locked = append(locked, i)
	}

	var resetErr error
	for _, seg := range e.segments {
		if err := seg.ResetLocked(); err != nil {
			resetErr = multierr.Append(resetErr, err)
		}
	}

	for i := len(e.segments) - 1; i >= 0; i-- {
		e.segments[i].Unlock()
	}
	return resetErr
}

// ForEach walks every live entry across every segment, one segment at a
// time, decoding a fresh copy of each key/value. Segment locks are never
// held across the callback, so a concurrent mutation elsewhere in the map
// may or may not be reflected in the walk.
func (e *Engine[K, V]) ForEach(yield func(key K, value V) (cont bool, err error)) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	for _, seg := range e.segments {
		cont := true
		err := seg.ForEach(func(k K, v V) (bool, error) {
			c, yErr := yield(k, v)
			cont = c
			return c, yErr
		})
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// Close shuts the engine down: every registered replication transport
// closer runs first, then the backing store is flushed and unmapped.
// Errors from every step are collected with multierr rather than stopping
// at the first failure, so a broken transport never prevents the data
// file from being closed cleanly.
func (e *Engine[K, V]) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	var err error
	for i, c := range e.closers {
		if cerr := c.Close(); cerr != nil {
			e.log.Errorw("failed to close replication transport handle", "handle", i, "error", cerr)
			err = multierr.Append(err, cerr)
		}
	}
	if ferr := e.store.Flush(0, e.store.Len()); ferr != nil {
		e.log.Errorw("failed to flush backing store on close", "error", ferr)
		err = multierr.Append(err, ferr)
	}
	if cerr := e.store.Close(); cerr != nil {
		e.log.Errorw("failed to close backing store", "error", cerr)
		err = multierr.Append(err, cerr)
	}
	return err
}
