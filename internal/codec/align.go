package codec

import "golang.org/x/exp/constraints"

// Alignment is the value-placement boundary the builder applies to the
// value field within an entry, and to chunk_size itself.
type Alignment int

const (
	AlignNone Alignment = 0
	Align4    Alignment = 4
	Align8    Alignment = 8
)

// Bytes returns the numeric boundary this alignment enforces; AlignNone
// enforces no boundary at all (padding is always 0).
func (a Alignment) Bytes() int {
	return int(a)
}

// PaddingNeeded returns how many bytes must follow an offset of size so
// that the next field starts on an a-byte boundary. Mirrors the
// size%boundary / boundary-leftover arithmetic of a general-purpose aligned
// struct packer, generalized here from a fixed 8-byte word to the builder's
// configured alignment.
func PaddingNeeded[I constraints.Integer](size I, a Alignment) I {
	if size < 0 {
		panic("size cannot be < 0")
	}
	boundary := I(a.Bytes())
	if boundary == 0 {
		return 0
	}
	leftOver := size % boundary
	if leftOver == 0 {
		return 0
	}
	return boundary - leftOver
}

// SizeWithPadding returns size rounded up to the next a-byte boundary.
func SizeWithPadding[I constraints.Integer](size I, a Alignment) I {
	return size + PaddingNeeded(size, a)
}
