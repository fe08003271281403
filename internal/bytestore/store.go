// Package bytestore owns the mapped or anonymous byte region the rest of
// the map is built on: bounds-checked little-endian primitives and an
// atomic compare-and-swap over a region that may be a memory-mapped file or
// a pure in-memory allocation.
package bytestore

import (
	"encoding/binary"

	ignerrors "github.com/iamNilotpal/ignitemap/pkg/errors"
)

// Store is the byte-region abstraction every higher layer builds on. All
// offsets are absolute byte offsets into the region; every accessor is
// bounds-checked against the region's declared length.
type Store interface {
	// Len returns the total size in bytes of the backing region.
	Len() int64

	ReadUint8(off int64) (uint8, error)
	ReadUint32(off int64) (uint32, error)
	ReadUint64(off int64) (uint64, error)
	ReadFloat64(off int64) (float64, error)
	ReadBytes(off int64, n int) ([]byte, error)

	WriteUint8(off int64, v uint8) error
	WriteUint32(off int64, v uint32) error
	WriteUint64(off int64, v uint64) error
	WriteFloat64(off int64, v float64) error
	WriteBytes(off int64, p []byte) error

	// CompareAndSwapUint64 performs an atomic compare-and-swap on the
	// 8-byte word at off, the publish step behind every hash-lookup slot
	// update.
	CompareAndSwapUint64(off int64, old, new uint64) (bool, error)

	// Words returns a live (non-copying) []uint64 view of n words starting
	// at off. The free-bits allocator bitset is packed directly into a
	// segment's region so its bit flips are visible to every process
	// mapping the same file; this is the one escape hatch from the
	// offset-based accessors above, needed because arena.FreeBits operates
	// on a plain Go slice rather than through a Cursor.
	Words(off int64, n int) ([]uint64, error)

	// Flush persists the byte range [off, off+n) to the backing medium.
	// A no-op for anonymous (non-file-backed) stores.
	Flush(off, n int64) error

	// Close unmaps the region and releases any backing file descriptor.
	Close() error
}

// checkBounds returns an OutOfBounds segment error if [off, off+n) falls
// outside [0, length). OutOfBounds is an internal invariant
// violation, not a recoverable condition; callers propagate it up and the
// map is considered corrupt.
func checkBounds(off int64, n int, length int64) error {
	if off < 0 || n < 0 || off+int64(n) > length {
		return ignerrors.NewOutOfBoundsError(-1, off)
	}
	return nil
}

// le is the shared little-endian codec used by every Store implementation,
// regardless of host byte order.
var le = binary.LittleEndian
