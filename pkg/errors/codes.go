package errors

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// Base error codes represent the fundamental categories of failures that can
// occur across any software system. These codes provide the foundation layer
// of error classification.
const (
	// ErrorCodeIO represents failures in input/output operations across any
	// system boundary: mapping a data file, extending it, flushing dirty
	// pages, or closing the backing descriptor.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeInvalidInput represents builder misconfiguration detected
	// before any allocation happens: conflicting codec/factory combinations,
	// out-of-range meta-data sizes, mismatched replicator identifiers.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeInternal represents unexpected system failures that don't fit
	// into other categories: bugs, assertion failures, or invariant breaks
	// that shouldn't occur during normal operation.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Storage-specific error codes cover the byte-store and builder layers:
// mapping, header validation, and file-backed persistence of a map.
const (
	// ErrorCodeCorruptHeader indicates the persisted map header fails its
	// magic/version check, or records a key codec, value codec or
	// replication identifier different from the caller's. Geometry fields
	// are not compared. Fatal at open: the map is never constructed.
	ErrorCodeCorruptHeader ErrorCode = "CORRUPT_HEADER"

	// ErrorCodeHeaderReadFailure occurs when the system cannot read the
	// header region of the backing file at all.
	ErrorCodeHeaderReadFailure ErrorCode = "HEADER_READ_FAILURE"

	// ErrorCodePayloadReadFailure indicates problems reading entry bytes
	// from the mapped region after the header checked out.
	ErrorCodePayloadReadFailure ErrorCode = "PAYLOAD_READ_FAILURE"

	// ErrorCodePermissionDenied indicates insufficient permissions to open
	// or extend the backing file.
	ErrorCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrorCodeDiskFull indicates the backing device ran out of space while
	// creating or growing the data file.
	ErrorCodeDiskFull ErrorCode = "DISK_FULL"

	// ErrorCodeFilesystemReadonly indicates the filesystem holding the data
	// file is mounted read-only.
	ErrorCodeFilesystemReadonly ErrorCode = "FILESYSTEM_READONLY"
)

// Segment-specific error codes address the unique failure modes of the
// per-segment concurrent protocol: lock acquisition and arena exhaustion.
const (
	// ErrorCodeLockTimeout indicates a segment's reader/writer lock could
	// not be acquired within the configured deadline. The operation is
	// aborted; the map remains usable.
	ErrorCodeLockTimeout ErrorCode = "LOCK_TIMEOUT"

	// ErrorCodeSegmentFull indicates a segment's entry arena cannot satisfy
	// an allocation request. The map is not grown automatically; the caller
	// must retry after removals or accept the failure.
	ErrorCodeSegmentFull ErrorCode = "SEGMENT_FULL"

	// ErrorCodeOutOfBounds indicates an internal invariant was violated:
	// a computed offset fell outside the declared region. This means the
	// map image is corrupt and callers should treat it as unrecoverable.
	ErrorCodeOutOfBounds ErrorCode = "OUT_OF_BOUNDS"
)

// Lookup-specific error codes cover the per-segment hash-lookup table.
const (
	// ErrorCodeLookupKeyNotFound indicates a key has no reachable slot.
	ErrorCodeLookupKeyNotFound ErrorCode = "LOOKUP_KEY_NOT_FOUND"

	// ErrorCodeLookupCorrupted indicates the lookup table's invariants
	// (slot packing, probe-chain continuity) no longer hold.
	ErrorCodeLookupCorrupted ErrorCode = "LOOKUP_CORRUPTED"
)
