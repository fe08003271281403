// Package ignitemap is the public entry point: Open lays out or reopens a
// data directory and hands back a Map, a thin generic wrapper over the
// internal engine that is the only thing application code should import.
package ignitemap

import (
	"github.com/iamNilotpal/ignitemap/internal/codec"
	"github.com/iamNilotpal/ignitemap/internal/engine"
	"github.com/iamNilotpal/ignitemap/pkg/builder"
	"github.com/iamNilotpal/ignitemap/pkg/options"
)

// Map is a handle to one open, embeddable off-heap hash map. Every method
// is safe to call concurrently from multiple goroutines; internally each
// call routes to the one segment its key hashes to.
type Map[K any, V any] struct {
	engine *engine.Engine[K, V]
}

// Open creates a data directory if it doesn't exist, or reopens it if it
// does, returning a ready Map. keyCodec and valueCodec must match what the
// directory was created with; Open returns an error rather than silently
// reinterpreting a mismatched codec (internal/header.Header.Validate).
func Open[K any, V any](dataDir string, keyCodec codec.Codec[K], valueCodec codec.Codec[V], opts ...options.OptionFunc) (*Map[K, V], error) {
	eng, err := builder.Open[K, V](dataDir, keyCodec, valueCodec, opts...)
	if err != nil {
		return nil, err
	}
	return &Map[K, V]{engine: eng}, nil
}

// OpenStrings is a convenience constructor for the common string-key,
// []byte-value case.
func OpenStrings(dataDir string, opts ...options.OptionFunc) (*Map[string, []byte], error) {
	return Open[string, []byte](dataDir, codec.StringCodec{}, codec.ByteSliceCodec{}, opts...)
}

// Put inserts key/value, overwriting any existing entry for key. old is
// only meaningful when hadOld is true; unless Options.PutReturnsNull is
// set, a successful overwrite always decodes and returns the prior value.
func (m *Map[K, V]) Put(key K, value V) (old V, hadOld bool, err error) {
	return m.engine.Put(key, value)
}

// PutIfAbsent inserts key/value only when key has no live entry. When the
// key is already present, existing is its current value, loaded is true,
// and nothing is written.
func (m *Map[K, V]) PutIfAbsent(key K, value V) (existing V, loaded bool, err error) {
	return m.engine.PutIfAbsent(key, value)
}

// Get returns the value stored for key, if any.
func (m *Map[K, V]) Get(key K) (value V, found bool, err error) {
	return m.engine.Get(key)
}

// GetReusing behaves like Get but decodes the value into reuse when the
// configured value codec supports it (pointer or slice value types),
// letting a hot read path avoid allocating a fresh value per call.
func (m *Map[K, V]) GetReusing(key K, reuse V) (value V, found bool, err error) {
	return m.engine.GetReusing(key, reuse)
}

// ContainsKey reports whether key has a live entry, without decoding its
// value.
func (m *Map[K, V]) ContainsKey(key K) (bool, error) {
	return m.engine.ContainsKey(key)
}

// Replace overwrites the existing entry for key, doing nothing if key is
// absent.
func (m *Map[K, V]) Replace(key K, value V) (old V, found bool, err error) {
	return m.engine.Replace(key, value)
}

// CompareAndReplace overwrites key's entry with newValue only when the
// stored value's bytes equal oldValue's encoding: the atomic equivalent
// of get-then-put-if-matches.
func (m *Map[K, V]) CompareAndReplace(key K, oldValue, newValue V) (bool, error) {
	return m.engine.CompareAndReplace(key, oldValue, newValue)
}

// Remove deletes the entry for key, if any.
func (m *Map[K, V]) Remove(key K) (value V, found bool, err error) {
	return m.engine.Remove(key)
}

// CompareAndRemove deletes key's entry only when the stored value's bytes
// equal expected's encoding.
func (m *Map[K, V]) CompareAndRemove(key K, expected V) (bool, error) {
	return m.engine.CompareAndRemove(key, expected)
}

// Size returns the total live-entry count across every segment, an
// eventually-consistent snapshot taken without acquiring any lock.
func (m *Map[K, V]) Size() int64 {
	return m.engine.Size()
}

// Clear empties the map. Every segment is locked for the duration of the
// whole operation, so no reader ever observes a partially cleared map.
func (m *Map[K, V]) Clear() error {
	return m.engine.Clear()
}

// ForEach walks every live entry, one segment at a time. Returning false
// from yield stops the walk early; it is not a consistent snapshot across
// segments, since no more than one segment's lock is implicated at a time
// during the walk.
func (m *Map[K, V]) ForEach(yield func(key K, value V) (cont bool, err error)) error {
	return m.engine.ForEach(yield)
}

// Close shuts the map down: registered replication transports are closed,
// then the backing file is flushed and unmapped. Close is not idempotent:
// only the first call does this work; a second call returns ErrEngineClosed.
func (m *Map[K, V]) Close() error {
	return m.engine.Close()
}
