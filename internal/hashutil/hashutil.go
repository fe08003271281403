// Package hashutil provides the single hash function used across the map:
// a 64-bit, non-cryptographic hash of the key bytes, and the segment-routing
// arithmetic built on top of it.
package hashutil

import "github.com/cespare/xxhash/v2"

// Hash64 returns the 64-bit hash of key. This is the hash function recorded
// in the file format; changing it invalidates every persisted map.
func Hash64(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// SegmentIndex derives which segment a key's hash routes to: the low
// log2SegmentCount bits of h. segmentCount must be a power of two;
// log2SegmentCount is its base-2 logarithm, passed in rather than recomputed
// on every call since the map core already knows it.
func SegmentIndex(h uint64, log2SegmentCount uint) int {
	if log2SegmentCount == 0 {
		return 0
	}
	return int(h & (1<<log2SegmentCount - 1))
}

// SegmentLocalHash returns segment_hash = h >> log2SegmentCount: the bits of
// h left over once the segment-routing bits are consumed. A segment's
// hash-lookup table packs the low h_bits of this value into each slot
// alongside the entry position, and probes on it.
func SegmentLocalHash(h uint64, log2SegmentCount uint) uint64 {
	return h >> log2SegmentCount
}

// Log2 returns the base-2 logarithm of n, which must be a power of two.
// Used to turn a segment count into the shift amount SegmentIndex expects.
func Log2(n int) uint {
	var log2 uint
	for v := n; v > 1; v >>= 1 {
		log2++
	}
	return log2
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two that is >= n, with a
// floor of min (itself rounded up to a power of two).
func NextPowerOfTwo(n, min int) int {
	if min < 1 {
		min = 1
	}
	result := 1
	for result < min {
		result <<= 1
	}
	for result < n {
		result <<= 1
	}
	return result
}
