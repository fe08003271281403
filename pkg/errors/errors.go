// This package addresses the fundamental challenge that generic error handling presents in complex
// systems: when an error occurs, developers and operators need much more than just "something went wrong."
// They need to understand exactly what failed, why it failed, where it failed, and most importantly,
// what they can do about it. This package transforms error handling from reactive debugging into
// proactive problem resolution.
//
// Architecture and Design Philosophy:
//
// The error system is built around a hierarchical structure that starts with a foundational baseError
// and extends into domain-specific error types. This design provides several key advantages:
// it maintains consistency across all error types while allowing specialized context for different
// domains, enables rich error chaining that preserves the complete failure context, supports
// programmatic error handling through standardized error codes, and facilitates comprehensive
// logging and monitoring through structured error details.
//
// The system recognizes that different parts of a storage application fail in fundamentally different
// ways and require different types of contextual information for effective diagnosis and recovery.
// A validation error needs to know which field failed and what rule was violated. A storage error
// needs to know which file and byte offset were involved. An index error needs to know which key
// and operation were being processed. By capturing this domain-specific context at the point of
// failure, the system enables much more intelligent error handling throughout the application stack.
//
// Error Classification and Codes:
//
// Central to this system is a comprehensive error code taxonomy that provides standardized
// categorization of failures. These codes serve multiple purposes: they enable programmatic
// error handling that doesn't rely on parsing error messages, they provide consistent
// categorization for monitoring and alerting systems, they facilitate error recovery logic
// by identifying specific failure modes, and they support internationalization by separating
// error identification from error presentation.
//
// The error codes are organized into several categories. Base codes cover fundamental failure
// types that can occur in any system: IO_ERROR for input/output failures, INVALID_INPUT for
// client-side validation problems, and INTERNAL_ERROR for unexpected system failures.
// Storage-specific codes handle the unique failure modes of persistent storage: CORRUPT_HEADER
// for data integrity issues, PERMISSION_DENIED for access control problems, DISK_FULL for
// capacity issues, and various read/write failure codes for different types of I/O problems.
// Segment-specific codes address the per-segment concurrency protocol: LOCK_TIMEOUT for
// contended locks, SEGMENT_FULL for arena exhaustion, and OUT_OF_BOUNDS for invariant breaks.
// Lookup-specific codes address the hash-lookup table: LOOKUP_KEY_NOT_FOUND for missing keys
// and LOOKUP_CORRUPTED for structural integrity issues.
//
// Usage Patterns and Best Practices:
//
// This error handling system is designed to support several key usage patterns that improve
// both developer experience and operational visibility.
//
// For error creation, the package encourages building errors with comprehensive context at
// the point of failure. This means capturing not just what went wrong, but where it went
// wrong, what was being attempted, and what conditions led to the failure. The fluent
// interface pattern makes this context capture both readable and maintainable.
//
// For error handling, the package supports both programmatic error handling (using error
// codes and type detection) and human-readable error reporting (using structured messages
// and details). This dual approach enables both robust automated error recovery and
// effective human troubleshooting.
//
// For error propagation, the package encourages preserving error context as errors flow
// through system layers while adding layer-specific context when appropriate. This creates
// a comprehensive audit trail of what happened during a failure, making root cause analysis
// much more effective.
//
// Operational Benefits:
//
// The structured approach to error handling provides significant operational benefits.
// Monitoring and alerting systems can categorize and group errors based on error codes
// rather than parsing error messages. Log analysis becomes more effective because errors
// include structured context that can be easily indexed and searched. Error recovery
// logic becomes more sophisticated because it can make decisions based on specific error
// types and context rather than generic failure notifications.
//
// The system also improves the development experience by making errors more debuggable
// and providing clear patterns for error creation and handling. Developers can quickly
// understand what went wrong and why, rather than spending time deciphering generic
// error messages or trying to reproduce failure conditions
package errors

import (
	stdErrors "errors"
	"os"
	"syscall"
)

// IsValidationError checks if the given error is a ValidationError or contains one in its error chain.
//
// Example usage:
//
//	if errors.IsValidationError(err) {
//	    // Handle validation-specific error recovery
//	    // Maybe return specific HTTP 400 status codes
//	    // Or highlight specific fields in a user interface
//	}
func IsValidationError(err error) bool {
	var ve *ValidationError
	return stdErrors.As(err, &ve)
}

// IsStorageError determines if an error is related to storage operations, such as file I/O,
// disk space issues, or segment file corruption. Storage errors often require different
// handling strategies than other error types because they may indicate hardware issues,
// capacity problems, or data integrity concerns that need immediate attention.
//
// Example usage:
//
//	if errors.IsStorageError(err) {
//	    storageErr, _ := errors.AsStorageError(err)
//	    switch storageErr.Code() {
//	    case ErrorCodeDiskFull:
//	        triggerCleanupProcedures()
//	    case ErrorCodePermissionDenied:
//	        alertAdministrator(storageErr.Path())
//	    }
//	}
func IsStorageError(err error) bool {
	var se *StorageError
	return stdErrors.As(err, &se)
}

// IsLookupError identifies errors that occurred during per-segment hash-lookup
// operations such as key probes, slot insertion, or lookup-table recovery.
// Lookup errors provide crucial context about which keys were involved and
// what operations were being performed, essential for debugging probe-chain
// and load-factor issues.
//
// Example usage:
//
//	if errors.IsLookupError(err) {
//	    lookupErr, _ := errors.AsLookupError(err)
//	    if lookupErr.Code() == ErrorCodeLookupCorrupted {
//	        scheduleSegmentRebuild(lookupErr.SegmentIndex())
//	    }
//	}
func IsLookupError(err error) bool {
	var le *LookupError
	return stdErrors.As(err, &le)
}

// IsSegmentError identifies errors that occurred in the segment-level
// concurrency and allocation protocol: lock timeouts, arena exhaustion, or
// corrupted offsets.
//
// Example usage:
//
//	if errors.IsSegmentError(err) {
//	    segErr, _ := errors.AsSegmentError(err)
//	    if segErr.Code() == ErrorCodeSegmentFull {
//	        metrics.IncrementSegmentFullCounter(segErr.SegmentIndex())
//	    }
//	}
func IsSegmentError(err error) bool {
	var se *SegmentError
	return stdErrors.As(err, &se)
}

// AsValidationError safely extracts a ValidationError from an error chain, providing
// access to which builder field failed validation and what value was rejected. This
// extraction is essential for building meaningful error responses that point a caller
// at the exact Options knob to change.
//
// Example usage:
//
//	if validationErr, ok := errors.AsValidationError(err); ok {
//	    logData := map[string]interface{}{
//	        "field": validationErr.Field(),
//	        "provided": validationErr.Provided(),
//	    }
//	    logger.Error("Validation failed", logData)
//	}
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stdErrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// AsStorageError extracts StorageError context from an error chain, providing access to
// storage-specific information such as segment IDs, file offsets, file names, and paths.
// This context is crucial for implementing storage error recovery procedures and for
// providing detailed information to system administrators and monitoring systems.
//
// The extracted StorageError provides access to methods like SegmentId(), Offset(),
// FileName(), and Path(), which contain the precise location information needed for
// effective storage error handling and recovery.
//
// Example usage:
//
//	if storageErr, ok := errors.AsStorageError(err); ok {
//	    errorContext := map[string]interface{}{
//	        "segmentId": storageErr.SegmentId(),
//	        "offset": storageErr.Offset(),
//	        "fileName": storageErr.FileName(),
//	        "path": storageErr.Path(),
//	        "errorCode": storageErr.Code(),
//	    }
//	    handleStorageFailure(errorContext)
//	}
func AsStorageError(err error) (*StorageError, bool) {
	var se *StorageError
	if stdErrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsLookupError extracts LookupError context, providing access to lookup-specific
// information such as the key being processed, the operation being performed,
// segment involvement, and table size statistics. This context is essential for
// diagnosing performance issues and implementing lookup-table recovery.
//
// Example usage:
//
//	if lookupErr, ok := errors.AsLookupError(err); ok {
//	    performanceMetrics := map[string]interface{}{
//	        "key": lookupErr.Key(),
//	        "operation": lookupErr.Operation(),
//	        "segmentIndex": lookupErr.SegmentIndex(),
//	        "slotCount": lookupErr.SlotCount(),
//	        "memoryUsage": lookupErr.MemoryUsage(),
//	    }
//	    analyzeLookupPerformance(performanceMetrics)
//	}
func AsLookupError(err error) (*LookupError, bool) {
	var le *LookupError
	if stdErrors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// AsSegmentError extracts SegmentError context, providing access to the segment
// index, arena entry position, and chunk count involved in a lock-timeout,
// allocation, or corruption failure.
//
// Example usage:
//
//	if segErr, ok := errors.AsSegmentError(err); ok {
//	    log.Warnw("segment operation failed",
//	        "segmentIndex", segErr.SegmentIndex(),
//	        "entryPosition", segErr.EntryPosition(),
//	        "chunkCount", segErr.ChunkCount(),
//	    )
//	}
func AsSegmentError(err error) (*SegmentError, bool) {
	var se *SegmentError
	if stdErrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from any error that supports it, or returns
// ErrorCodeInternal for errors that don't have specific codes. This function provides
// a consistent way to categorize errors for monitoring and handling purposes.
//
// Example usage:
//
//	errorCode := errors.GetErrorCode(err)
//	metrics.IncrementErrorCounter(string(errorCode))
//
//	switch errorCode {
//	case errors.ErrorCodeDiskFull:
//	    triggerDiskSpaceAlert()
//	case errors.ErrorCodePermissionDenied:
//	    escalateToAdministrator()
//	}
func GetErrorCode(err error) ErrorCode {
	// Try ValidationError first.
	if ve, ok := AsValidationError(err); ok {
		return ve.Code()
	}

	// Try StorageError next.
	if se, ok := AsStorageError(err); ok {
		return se.Code()
	}

	// Try LookupError.
	if le, ok := AsLookupError(err); ok {
		return le.Code()
	}

	// Try SegmentError.
	if se, ok := AsSegmentError(err); ok {
		return se.Code()
	}

	// For any other error, return a generic internal error code.
	return ErrorCodeInternal
}

// GetErrorDetails extracts structured details from any error that supports them,
// returning an empty map for errors without details. This function provides consistent
// access to additional error context regardless of the specific error type.
//
// Example usage:
//
//	details := errors.GetErrorDetails(err)
//	if len(details) > 0 {
//	    logger.WithFields(details).Error("Operation failed", "error", err.Error())
//	}
//
//	// Check for specific detail keys
//	if operation, exists := details["operation"]; exists {
//	    handleOperationSpecificError(operation.(string))
//	}
func GetErrorDetails(err error) map[string]any {
	// Try ValidationError first.
	if ve, ok := AsValidationError(err); ok {
		if details := ve.Details(); details != nil {
			return details
		}
	}

	// Try StorageError next.
	if se, ok := AsStorageError(err); ok {
		if details := se.Details(); details != nil {
			return details
		}
	}

	// Try LookupError.
	if le, ok := AsLookupError(err); ok {
		if details := le.Details(); details != nil {
			return details
		}
	}

	// Try SegmentError.
	if se, ok := AsSegmentError(err); ok {
		if details := se.Details(); details != nil {
			return details
		}
	}

	// Return empty map for errors without details.
	return make(map[string]any)
}

// errnoOf extracts the syscall.Errno behind an error, whether it arrived
// wrapped in an *os.PathError (os.MkdirAll, os.OpenFile) or bare from a
// raw syscall (unix.Mmap, unix.Msync return plain errnos).
func errnoOf(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if stdErrors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}

// ClassifyDirectoryCreationError turns a data-directory creation failure
// into a StorageError whose code tells the caller whether the problem is
// permissions, disk space, a read-only filesystem, or generic I/O.
func ClassifyDirectoryCreationError(err error, path string) error {
	if os.IsPermission(err) {
		return NewStorageError(
			err, ErrorCodePermissionDenied,
			"insufficient permissions to create data directory",
		).WithPath(path).
			WithDetail("operation", "directory_creation")
	}

	if errno, ok := errnoOf(err); ok {
		switch errno {
		case syscall.ENOSPC:
			return NewStorageError(
				err, ErrorCodeDiskFull,
				"insufficient disk space to create data directory",
			).WithPath(path).
				WithDetail("operation", "directory_creation")
		case syscall.EROFS:
			return NewStorageError(
				err, ErrorCodeFilesystemReadonly,
				"cannot create data directory on read-only filesystem",
			).WithPath(path).
				WithDetail("operation", "directory_creation")
		}
	}

	return NewStorageError(
		err, ErrorCodeIO, "failed to create data directory",
	).WithPath(path).WithDetail("operation", "directory_creation")
}

// ClassifyFileOpenError turns a data-file open/extend failure into a
// StorageError with a specific code, giving the caller more to act on
// than a generic I/O error.
func ClassifyFileOpenError(err error, filePath, fileName string) error {
	if os.IsPermission(err) {
		return NewStorageError(
			err, ErrorCodePermissionDenied,
			"insufficient permissions to open data file",
		).WithPath(filePath).
			WithFileName(fileName).
			WithDetail("operation", "file_open")
	}

	if errno, ok := errnoOf(err); ok {
		switch errno {
		case syscall.ENOSPC:
			return NewStorageError(
				err, ErrorCodeDiskFull,
				"insufficient disk space to create data file",
			).WithPath(filePath).
				WithFileName(fileName).
				WithDetail("operation", "file_open")
		case syscall.EROFS:
			return NewStorageError(
				err, ErrorCodeFilesystemReadonly,
				"cannot create data file on read-only filesystem",
			).WithPath(filePath).
				WithFileName(fileName).
				WithDetail("operation", "file_open")
		}
	}

	return NewStorageError(err, ErrorCodeIO, "failed to open data file").
		WithPath(filePath).
		WithFileName(fileName).
		WithDetail("operation", "file_open").
		WithDetail("flags", []string{"O_CREATE", "O_RDWR"})
}

// ClassifySyncError turns an msync failure on the mapped region into a
// StorageError. A sync failure can mean anything from a full disk to
// hardware trouble, so the errno distinction matters to operators.
func ClassifySyncError(err error, path string, offset int64) error {
	if errno, ok := errnoOf(err); ok {
		switch errno {
		case syscall.ENOSPC:
			return NewStorageError(
				err, ErrorCodeDiskFull,
				"cannot sync mapped region: insufficient disk space",
			).WithPath(path).
				WithOffset(int(offset)).
				WithDetail("operation", "region_sync")
		case syscall.EROFS:
			return NewStorageError(
				err, ErrorCodeFilesystemReadonly,
				"cannot sync mapped region: filesystem is read-only",
			).WithPath(path).
				WithOffset(int(offset)).
				WithDetail("operation", "region_sync")
		case syscall.EIO:
			// An I/O error out of msync usually means hardware or
			// filesystem corruption, not a transient condition.
			return NewStorageError(
				err, ErrorCodeIO,
				"i/o error syncing mapped region to its backing file",
			).WithPath(path).
				WithOffset(int(offset)).
				WithDetail("operation", "region_sync").
				WithDetail("severity", "high")
		}
	}

	return NewStorageError(
		err, ErrorCodeIO, "failed to sync mapped region to its backing file",
	).WithPath(path).WithOffset(int(offset)).
		WithDetail("operation", "region_sync")
}
