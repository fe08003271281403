package options

import (
	"time"

	"github.com/iamNilotpal/ignitemap/internal/codec"
)

const (
	// DefaultEntries is the target total live-entry count when Entries
	// isn't set.
	DefaultEntries uint64 = 1 << 20

	// DefaultEntrySize is the expected per-entry byte footprint before
	// alignment.
	DefaultEntrySize uint32 = 128

	// DefaultAlignment is the value-field alignment boundary.
	DefaultAlignment = codec.Align8

	// DefaultLockTimeout is the segment lock acquisition deadline.
	DefaultLockTimeout = 2 * time.Second

	// LargeSegmentsThreshold is the entry count above which LargeSegments
	// is auto-enabled regardless of the caller's setting.
	LargeSegmentsThreshold uint64 = 1 << 35

	// MaxMinSegments caps the sizer's default MinSegments derivation.
	MaxMinSegments uint32 = 1 << 16
)

// defaultOptions holds the baseline configuration every builder.Open call
// starts from before OptionFuncs are applied.
var defaultOptions = Options{
	Entries:     DefaultEntries,
	EntrySize:   DefaultEntrySize,
	Alignment:   DefaultAlignment,
	LockTimeout: DefaultLockTimeout,
	TimeProvider: func() int64 {
		return time.Now().UnixNano()
	},
}

// NewDefaultOptions returns a fresh copy of the baseline configuration.
func NewDefaultOptions() Options {
	return defaultOptions
}
