package builder

import (
	"math/bits"

	"github.com/iamNilotpal/ignitemap/internal/codec"
	"github.com/iamNilotpal/ignitemap/internal/hashutil"
	"github.com/iamNilotpal/ignitemap/pkg/options"
)

// geometry is the sizer's output: everything builder.Open needs to lay out
// a fresh data file, derived once from an Options value and never
// recomputed on reopen (the persisted header is authoritative after
// creation).
type geometry struct {
	segmentCount     int
	entriesPerSeg    int
	chunkSize        int
	chunksPerSegment int
	slotsPerSegment  int
	hBits            uint8
}

// roundUpMultiple rounds n up to the next multiple of m.
func roundUpMultiple(n, m int) int {
	if n <= 0 {
		return m
	}
	return ((n + m - 1) / m) * m
}

// minSegmentsDefault returns the smallest power of two s with s^3 >=
// 2*alignedEntrySize, capped at options.MaxMinSegments.
func minSegmentsDefault(alignedEntrySize int) int {
	s := 1
	for s*s*s < 2*alignedEntrySize {
		s <<= 1
		if s >= int(options.MaxMinSegments) {
			return int(options.MaxMinSegments)
		}
	}
	return s
}

// segmentCountFor derives the segment count: overridden by ActualSegments
// when set; otherwise, without LargeSegments and above minSegments<<15
// entries, entries/2^15 rounded up to a power of two (at least 128) while
// that stays under 2^20; in every other case max(entries/2^30 + 1,
// minSegments) rounded up to a power of two.
func segmentCountFor(o options.Options, minSegments int) int {
	if o.ActualSegments > 0 {
		return int(o.ActualSegments)
	}

	entries := o.Entries
	if !o.LargeSegments && entries > uint64(minSegments)<<15 {
		candidate := entries >> 15
		if candidate < uint64(1<<20) {
			return hashutil.NextPowerOfTwo(int(candidate), 128)
		}
	}

	byScale := int(entries>>30) + 1
	if byScale < minSegments {
		byScale = minSegments
	}
	return hashutil.NextPowerOfTwo(byScale, 1)
}

// slotsFor returns a power-of-two hash-lookup table size holding
// entriesPerSeg at roughly a 2/3 load factor, floored at a small minimum
// so a lightly loaded segment doesn't thrash on an undersized table.
func slotsFor(entriesPerSeg int) int {
	needed := (entriesPerSeg*3 + 1) / 2
	return hashutil.NextPowerOfTwo(needed, 16)
}

// hBitsFor returns how many bits of the segment-local hash a slot packs,
// the remainder of a 64-bit slot word once enough bits are reserved for
// position+1 to address chunksPerSegment chunks. largeSegments forces a
// full 32-bit position field regardless of the actual chunk count.
func hBitsFor(chunksPerSegment int, largeSegments bool) uint8 {
	posBits := bits.Len(uint(chunksPerSegment))
	if largeSegments || posBits > 32 {
		posBits = 32
	}
	if posBits < 1 {
		posBits = 1
	}
	hBits := 64 - posBits
	if hBits > 48 {
		hBits = 48
	}
	if hBits < 8 {
		hBits = 8
	}
	return uint8(hBits)
}

// computeGeometry runs the full segment-geometry derivation, used
// only when creating a fresh data file.
func computeGeometry(o options.Options) geometry {
	alignedEntrySize := codec.SizeWithPadding(int(o.EntrySize), o.Alignment)

	minSegments := int(o.MinSegments)
	if minSegments <= 0 {
		minSegments = minSegmentsDefault(alignedEntrySize)
	}
	if minSegments > int(options.MaxMinSegments) {
		minSegments = int(options.MaxMinSegments)
	}

	segmentCount := segmentCountFor(o, minSegments)
	if !hashutil.IsPowerOfTwo(segmentCount) {
		segmentCount = hashutil.NextPowerOfTwo(segmentCount, 1)
	}

	entriesPerSeg := int(o.ActualEntriesPerSegment)
	if entriesPerSeg <= 0 {
		entriesPerSeg = roundUpMultiple(int(o.Entries*2)/segmentCount, 64)
	}

	chunkBoundary := o.Alignment.Bytes()
	if chunkBoundary < 1 {
		chunkBoundary = 1
	}
	chunkSize := hashutil.NextPowerOfTwo(alignedEntrySize, chunkBoundary)

	chunksPerSegment := roundUpMultiple(entriesPerSeg, 64)
	slotsPerSegment := slotsFor(entriesPerSeg)
	hBits := hBitsFor(chunksPerSegment, o.LargeSegments)

	return geometry{
		segmentCount:     segmentCount,
		entriesPerSeg:    entriesPerSeg,
		chunkSize:        chunkSize,
		chunksPerSegment: chunksPerSegment,
		slotsPerSegment:  slotsPerSegment,
		hBits:            hBits,
	}
}
