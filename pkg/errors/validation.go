package errors

// ValidationError reports builder misconfiguration detected before any
// file or mapping work happens: a conflicting option combination, an
// out-of-range sizing parameter, or mismatched replicator identifiers.
// Beyond the embedded core it records which Options field was at fault
// and the offending value, so a caller can point at the exact knob to
// change rather than re-reading the whole configuration.
type ValidationError struct {
	*baseError

	// The Options field (or builder argument) that failed validation.
	field string

	// The rejected value, when echoing it back is useful.
	provided any
}

// NewValidationError creates a validation error with the standard core.
func NewValidationError(err error, code ErrorCode, msg string) *ValidationError {
	return &ValidationError{baseError: NewBaseError(err, code, msg)}
}

// WithField records which field failed validation.
func (ve *ValidationError) WithField(field string) *ValidationError {
	ve.field = field
	return ve
}

// WithProvided records the rejected value.
func (ve *ValidationError) WithProvided(value any) *ValidationError {
	ve.provided = value
	return ve
}

// Field returns the field name that failed validation.
func (ve *ValidationError) Field() string {
	return ve.field
}

// Provided returns the rejected value.
func (ve *ValidationError) Provided() any {
	return ve.provided
}
