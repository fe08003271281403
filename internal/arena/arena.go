package arena

import (
	"sync/atomic"

	ignerrors "github.com/iamNilotpal/ignitemap/pkg/errors"
)

// Arena manages a segment's fixed-size-chunk entry region: Allocate finds
// and reserves a contiguous run of chunks for one entry, Free releases
// them. A rotating scan cursor amortizes fragmentation by starting each
// search where the last one left off, with a full wraparound
// scan as the fallback FreeBits.FindRun already performs.
type Arena struct {
	segmentIndex int
	free         *FreeBits
	cursor       int64 // atomic, advanced on every successful allocation
}

// New returns an Arena over free, used by segment segmentIndex.
func New(segmentIndex int, free *FreeBits) *Arena {
	return &Arena{segmentIndex: segmentIndex, free: free}
}

// ChunkCount returns ceil(entryBytes / chunkSize), the number of chunks an
// entry of entryBytes bytes occupies.
func ChunkCount(entryBytes, chunkSize int) int {
	return (entryBytes + chunkSize - 1) / chunkSize
}

// Allocate reserves the first available run of n contiguous free chunks,
// starting the scan from the rotating cursor. Returns SegmentFull if no
// such run exists; this map never rehashes or grows a
// segment automatically in response.
func (a *Arena) Allocate(n int) (int, error) {
	start := int(atomic.LoadInt64(&a.cursor))
	pos := a.free.FindRun(start, n)
	if pos == -1 {
		return 0, ignerrors.NewSegmentFullError(a.segmentIndex, n)
	}
	a.free.MarkOccupied(pos, n)
	atomic.StoreInt64(&a.cursor, int64((pos+n)%a.free.Len()))
	return pos, nil
}

// Free releases the n chunks starting at pos back to the free set.
func (a *Arena) Free(pos, n int) {
	a.free.MarkFree(pos, n)
}

// FreeChunks returns the number of unallocated chunks remaining.
func (a *Arena) FreeChunks() int {
	return a.free.CountFree()
}

// Reset marks every chunk free and resets the scan cursor, used by
// Engine.Clear.
func (a *Arena) Reset() {
	a.free.Reset()
	atomic.StoreInt64(&a.cursor, 0)
}
