// Package options defines the full parameter surface of an ignitemap
// builder: sizing inputs the sizer turns into segment geometry, the
// per-operation behavior knobs, and the observability/replication hooks.
// It uses a functional-option shape (OptionFunc, With* constructors,
// NewDefaultOptions).
package options

import (
	"time"

	"github.com/iamNilotpal/ignitemap/internal/codec"
	"github.com/iamNilotpal/ignitemap/internal/replication"
)

// ErrorListener is notified when a segment operation fails in a way the
// caller should know about beyond the returned error, currently only
// lock-acquisition timeouts.
type ErrorListener interface {
	OnLockTimeout(segmentIndex int)
}

// MetaAccessor lets an EventListener read or write the meta-data bytes
// reserved for one entry, without exposing the backing store or its
// offsets directly. It is only valid for the duration of the listener
// call it was passed to, since the entry it addresses may move or be
// freed immediately after the segment lock is released. Reading or
// writing when MetaDataBytes is 0 is a no-op.
type MetaAccessor interface {
	ReadMeta() ([]byte, error)
	WriteMeta(b []byte) error
}

// EventListener observes successful mutations while the segment lock is
// still held. Implementations must not re-enter the map. OnGetMissing
// receives the encoded key bytes rather than the typed key, since the
// listener is registered before the map's key type is known.
type EventListener interface {
	OnPut(meta MetaAccessor, keyPos, valuePos int64, added bool)
	OnGetFound(meta MetaAccessor, keyPos, valuePos int64)
	OnGetMissing(key []byte)
	OnRemove(meta MetaAccessor, keyPos, valuePos int64)
}

// Options carries every sizing and behavior parameter a builder.Open call can tune.
// KeyCodec/ValueCodec are supplied as explicit type-parameterized
// arguments to builder.Open rather than struct fields here, since Go's
// generics tie a codec's type to the map's K/V at compile time; Options
// itself stays free of type parameters so it can be built and validated
// before K/V are known.
type Options struct {
	// Entries is the target total live-entry count the sizer plans
	// around. Default 2^20.
	Entries uint64

	// EntrySize is the expected per-entry byte footprint before
	// alignment, used to derive ChunkSize.
	EntrySize uint32

	// Alignment constrains chunk_size and the value field's placement
	// within an entry.
	Alignment codec.Alignment

	// ActualSegments overrides the sizer's computed segment count. Must
	// be a power of two when non-zero.
	ActualSegments uint32

	// MinSegments lower-bounds the sizer's segment count. Zero selects
	// the sizer's own default (smallest power of two s with s^3 >=
	// 2*alignedEntrySize, capped at 2^16).
	MinSegments uint32

	// ActualEntriesPerSegment overrides the sizer's per-segment entry
	// capacity (and therefore chunks_per_segment).
	ActualEntriesPerSegment uint32

	// Replicas is a reserved capacity multiplier for the replicated
	// variant; accepted and stored but not consumed by the sizer, since
	// its effect on sizing is unspecified.
	Replicas uint32

	// MetaDataBytes reserves this many bytes per entry for listener use,
	// 0-255.
	MetaDataBytes uint8

	// LockTimeout bounds segment lock acquisition. Default 2s.
	LockTimeout time.Duration

	// PutReturnsNull and RemoveReturnsNull skip the previous-value read
	// on the mutation path when true, trading the returned old value for
	// a faster mutation.
	PutReturnsNull    bool
	RemoveReturnsNull bool

	// LargeSegments forces 32-bit slot positions; auto-enabled when
	// Entries > 1<<35.
	LargeSegments bool

	// Transactional is a reserved no-op, declared but never implemented.
	Transactional bool

	// TimeProvider returns nanosecond timestamps for the replicated
	// variant's EntryHeader.Timestamp. Defaults to time.Now().UnixNano.
	TimeProvider func() int64

	// ReplicationID identifies this map's replicated entries; 0 means
	// replication is disabled for entries written by this instance.
	ReplicationID uint8

	// ErrorListener and EventListener are optional observability hooks.
	ErrorListener ErrorListener
	EventListener EventListener

	// Replicators are the transports this map's segments register
	// against when replication is enabled. All must advertise the same
	// Identifier (validated at builder.Open time).
	Replicators []replication.Transport
}

// OptionFunc mutates an Options value being built up by builder.Open.
type OptionFunc func(*Options)

// WithDefaultOptions resets every field to its documented default. Useful
// as the first option in a chain that then overrides a handful of fields.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) { *o = NewDefaultOptions() }
}

// WithEntries sets the target total live-entry count the sizer plans for.
func WithEntries(n uint64) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.Entries = n
		}
	}
}

// WithEntrySize sets the expected per-entry byte footprint before
// alignment.
func WithEntrySize(bytes uint32) OptionFunc {
	return func(o *Options) {
		if bytes > 0 {
			o.EntrySize = bytes
		}
	}
}

// WithAlignment sets the value-field alignment boundary.
func WithAlignment(a codec.Alignment) OptionFunc {
	return func(o *Options) { o.Alignment = a }
}

// WithActualSegments overrides the sizer's computed segment count.
func WithActualSegments(n uint32) OptionFunc {
	return func(o *Options) { o.ActualSegments = n }
}

// WithMinSegments lower-bounds the sizer's segment count.
func WithMinSegments(n uint32) OptionFunc {
	return func(o *Options) { o.MinSegments = n }
}

// WithActualEntriesPerSegment overrides the sizer's per-segment entry
// capacity.
func WithActualEntriesPerSegment(n uint32) OptionFunc {
	return func(o *Options) { o.ActualEntriesPerSegment = n }
}

// WithReplicas sets the reserved capacity multiplier for the replicated
// variant.
func WithReplicas(n uint32) OptionFunc {
	return func(o *Options) { o.Replicas = n }
}

// WithMetaDataBytes reserves n bytes per entry for listener use.
func WithMetaDataBytes(n uint8) OptionFunc {
	return func(o *Options) { o.MetaDataBytes = n }
}

// WithLockTimeout sets the segment lock acquisition deadline.
func WithLockTimeout(d time.Duration) OptionFunc {
	return func(o *Options) {
		if d > 0 {
			o.LockTimeout = d
		}
	}
}

// WithPutReturnsNull disables previous-value reads on Put.
func WithPutReturnsNull(v bool) OptionFunc {
	return func(o *Options) { o.PutReturnsNull = v }
}

// WithRemoveReturnsNull disables previous-value reads on Remove.
func WithRemoveReturnsNull(v bool) OptionFunc {
	return func(o *Options) { o.RemoveReturnsNull = v }
}

// WithLargeSegments forces 32-bit slot positions.
func WithLargeSegments(v bool) OptionFunc {
	return func(o *Options) { o.LargeSegments = v }
}

// WithTransactional sets the reserved transactional flag; it has no
// runtime effect.
func WithTransactional(v bool) OptionFunc {
	return func(o *Options) { o.Transactional = v }
}

// WithTimeProvider overrides the nanosecond timestamp source used by the
// replicated variant.
func WithTimeProvider(fn func() int64) OptionFunc {
	return func(o *Options) {
		if fn != nil {
			o.TimeProvider = fn
		}
	}
}

// WithReplicationID enables the replicated variant's entry header under
// the given identifier.
func WithReplicationID(id uint8) OptionFunc {
	return func(o *Options) { o.ReplicationID = id }
}

// WithErrorListener registers a listener notified on lock timeouts.
func WithErrorListener(l ErrorListener) OptionFunc {
	return func(o *Options) { o.ErrorListener = l }
}

// WithEventListener registers a listener notified on successful mutations.
func WithEventListener(l EventListener) OptionFunc {
	return func(o *Options) { o.EventListener = l }
}

// WithReplicators registers the transports this map's segments publish
// modifications to.
func WithReplicators(transports ...replication.Transport) OptionFunc {
	return func(o *Options) { o.Replicators = transports }
}
