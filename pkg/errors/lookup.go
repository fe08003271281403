package errors

// LookupError provides specialized error handling for per-segment hash-lookup
// operations. It extends the base error system with the context needed to
// pinpoint a failed probe: which key, which segment, and which slot.
type LookupError struct {
	*baseError

	// Identifies which key was being processed when the error occurred.
	key string

	// Indicates which segment's lookup table was involved.
	segmentIndex int

	// Describes what operation was being performed (e.g. "Get", "Put",
	// "Remove") when the error occurred.
	operation string

	// Captures how many slots the lookup table held at the time of the
	// error, useful for diagnosing load-factor related probe failures.
	slotCount int

	// Estimates how much memory the segment's arena was consuming when
	// the error occurred.
	memoryUsage int64
}

// NewLookupError creates a new lookup-specific error with the provided context.
func NewLookupError(err error, code ErrorCode, msg string) *LookupError {
	return &LookupError{
		baseError: NewBaseError(err, code, msg),
	}
}

// WithDetail keeps the chain typed as *LookupError.
func (le *LookupError) WithDetail(key string, value any) *LookupError {
	le.baseError.WithDetail(key, value)
	return le
}

// WithKey records which key was being processed when the error occurred.
func (le *LookupError) WithKey(key string) *LookupError {
	le.key = key
	return le
}

// WithSegmentIndex captures which segment's lookup table was involved.
func (le *LookupError) WithSegmentIndex(segmentIndex int) *LookupError {
	le.segmentIndex = segmentIndex
	return le
}

// WithOperation records what lookup operation was being performed.
func (le *LookupError) WithOperation(operation string) *LookupError {
	le.operation = operation
	return le
}

// WithSlotCount captures the size of the lookup table when the error occurred.
func (le *LookupError) WithSlotCount(count int) *LookupError {
	le.slotCount = count
	return le
}

// WithMemoryUsage records the estimated memory consumption of the segment.
func (le *LookupError) WithMemoryUsage(usage int64) *LookupError {
	le.memoryUsage = usage
	return le
}

// Key returns the key that was being processed when the error occurred.
func (le *LookupError) Key() string {
	return le.key
}

// SegmentIndex returns the segment identifier associated with the error.
func (le *LookupError) SegmentIndex() int {
	return le.segmentIndex
}

// Operation returns the name of the operation that was being performed.
func (le *LookupError) Operation() string {
	return le.operation
}

// SlotCount returns the size of the lookup table when the error occurred.
func (le *LookupError) SlotCount() int {
	return le.slotCount
}

// MemoryUsage returns the estimated memory consumption when the error occurred.
func (le *LookupError) MemoryUsage() int64 {
	return le.memoryUsage
}

// NewKeyNotFoundError creates a specialized error for missing keys.
func NewKeyNotFoundError(key string, segmentIndex int) *LookupError {
	return NewLookupError(nil, ErrorCodeLookupKeyNotFound, "key not found in segment lookup table").
		WithKey(key).
		WithSegmentIndex(segmentIndex).
		WithOperation("Get")
}

// NewLookupCorruptionError creates an error for lookup table integrity failures,
// such as a probe chain that never reaches an empty slot or a tombstone loop.
func NewLookupCorruptionError(operation string, segmentIndex int, slotCount int, cause error) *LookupError {
	return NewLookupError(cause, ErrorCodeLookupCorrupted, "segment lookup table corrupted").
		WithOperation(operation).
		WithSegmentIndex(segmentIndex).
		WithSlotCount(slotCount).
		WithDetail("corruption_detected", true).
		WithDetail("recovery_required", true)
}
