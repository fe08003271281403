package errors

// SegmentError provides specialized error handling for the per-segment
// concurrency and allocation protocol: lock acquisition, entry relocation,
// and arena exhaustion. It embeds baseError for the common error machinery
// and adds the context needed to diagnose a failed segment-level operation.
type SegmentError struct {
	*baseError

	// Identifies which segment was involved in the error.
	segmentIndex int

	// The entry position within the segment's arena that was being read,
	// written, or allocated when the error occurred. -1 when not applicable
	// (e.g. a lock timeout that never reached allocation).
	entryPosition int64

	// The number of chunks being requested or released at the time of
	// the error, useful for diagnosing allocation failures.
	chunkCount int
}

// NewSegmentError creates a new segment-specific error with the provided context.
func NewSegmentError(err error, code ErrorCode, msg string) *SegmentError {
	return &SegmentError{
		baseError:     NewBaseError(err, code, msg),
		entryPosition: -1,
	}
}

func (se *SegmentError) WithDetail(key string, value any) *SegmentError {
	se.baseError.WithDetail(key, value)
	return se
}

// WithSegmentIndex records which segment was involved in the error.
func (se *SegmentError) WithSegmentIndex(index int) *SegmentError {
	se.segmentIndex = index
	return se
}

// WithEntryPosition records the arena position involved in the error.
func (se *SegmentError) WithEntryPosition(pos int64) *SegmentError {
	se.entryPosition = pos
	return se
}

// WithChunkCount records the chunk count requested or released.
func (se *SegmentError) WithChunkCount(count int) *SegmentError {
	se.chunkCount = count
	return se
}

// SegmentIndex returns the segment identifier associated with the error.
func (se *SegmentError) SegmentIndex() int {
	return se.segmentIndex
}

// EntryPosition returns the arena position involved in the error, or -1.
func (se *SegmentError) EntryPosition() int64 {
	return se.entryPosition
}

// ChunkCount returns the chunk count requested or released.
func (se *SegmentError) ChunkCount() int {
	return se.chunkCount
}

// NewLockTimeoutError creates an error for a segment lock that could not be
// acquired within the configured deadline.
func NewLockTimeoutError(segmentIndex int, operation string) *SegmentError {
	return NewSegmentError(nil, ErrorCodeLockTimeout, "timed out waiting for segment lock").
		WithSegmentIndex(segmentIndex).
		WithDetail("operation", operation)
}

// NewSegmentFullError creates an error for an arena that cannot satisfy an
// allocation request of the given chunk count.
func NewSegmentFullError(segmentIndex int, chunkCount int) *SegmentError {
	return NewSegmentError(nil, ErrorCodeSegmentFull, "segment arena has no contiguous run of free chunks").
		WithSegmentIndex(segmentIndex).
		WithChunkCount(chunkCount)
}

// NewOutOfBoundsError creates an error for a computed offset that fell
// outside a segment's declared region, indicating image corruption.
func NewOutOfBoundsError(segmentIndex int, entryPosition int64) *SegmentError {
	return NewSegmentError(nil, ErrorCodeOutOfBounds, "computed offset falls outside segment region").
		WithSegmentIndex(segmentIndex).
		WithEntryPosition(entryPosition)
}
