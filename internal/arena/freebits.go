// Package arena implements the per-segment entry allocator: a bitset of
// free chunks (FreeBits) and the fixed-size-chunk allocator built on top
// of it (Arena), in the vocabulary of a block/atom allocator: a handle is
// a chunk index, a block is a run of n_chunks contiguous chunks.
package arena

import (
	"math/bits"
)

// FreeBits is a bitset with one bit per chunk; 1 means the chunk is free.
// It is a thin view over a []uint64 word slice that lives directly in a
// segment's region of the backing Store, so flipping bits here is visible
// to every process mapping the same file.
type FreeBits struct {
	words []uint64
	nbits int
}

// NewFreeBits wraps words as a bitset of nbits free-bits. words must have
// at least ceil(nbits/64) elements.
func NewFreeBits(words []uint64, nbits int) *FreeBits {
	return &FreeBits{words: words, nbits: nbits}
}

// Len returns the number of chunks this bitset tracks.
func (f *FreeBits) Len() int { return f.nbits }

// Get reports whether chunk i is free.
func (f *FreeBits) Get(i int) bool {
	return f.words[i/64]&(1<<uint(i%64)) != 0
}

// set marks chunk i as free (1) or occupied (0).
func (f *FreeBits) set(i int, free bool) {
	word, bit := i/64, uint(i%64)
	if free {
		f.words[word] |= 1 << bit
	} else {
		f.words[word] &^= 1 << bit
	}
}

// MarkOccupied flips n chunks starting at pos to 0 (occupied).
func (f *FreeBits) MarkOccupied(pos, n int) {
	for i := pos; i < pos+n; i++ {
		f.set(i, false)
	}
}

// MarkFree flips n chunks starting at pos back to 1 (free).
func (f *FreeBits) MarkFree(pos, n int) {
	for i := pos; i < pos+n; i++ {
		f.set(i, true)
	}
}

// FindRun scans for the first run of n consecutive free bits starting at
// or after `from`, wrapping around to the beginning if necessary, and
// returns its starting chunk index. Returns -1 if no such run exists.
func (f *FreeBits) FindRun(from, n int) int {
	if n <= 0 || n > f.nbits {
		return -1
	}
	if from < 0 || from >= f.nbits {
		from = 0
	}

	// Two passes: [from, nbits) then [0, from+n-1), to implement
	// wraparound; the second pass reaches n-1 bits past from so that a run
	// straddling the scan start is still found.
	if pos := f.scanRange(from, f.nbits, n); pos != -1 {
		return pos
	}
	return f.scanRange(0, min(from+n-1, f.nbits), n)
}

// scanRange looks for a run of n free bits within [lo, hi), bit by bit.
// n_chunks per entry (ceil(entry_bytes/chunk_size)) is typically small, so
// a simple run-length scan outperforms anything fancier in practice and
// stays easy to reason about for correctness.
func (f *FreeBits) scanRange(lo, hi, n int) int {
	run := 0
	start := -1
	for i := lo; i < hi; i++ {
		if f.Get(i) {
			if run == 0 {
				start = i
			}
			run++
			if run == n {
				return start
			}
		} else {
			run = 0
			start = -1
		}
	}
	return -1
}

// CountFree returns the total number of free chunks, used for diagnostics
// and the inspection CLI.
func (f *FreeBits) CountFree() int {
	total := 0
	for _, w := range f.words {
		total += bits.OnesCount64(w)
	}
	return total
}

// Reset marks every chunk free, used by Engine.Clear.
func (f *FreeBits) Reset() {
	for i := range f.words {
		f.words[i] = ^uint64(0)
	}
	// Clear any bits beyond nbits in the final word.
	if rem := f.nbits % 64; rem != 0 {
		last := len(f.words) - 1
		f.words[last] &= (1 << uint(rem)) - 1
	}
}

// WordsNeeded returns how many uint64 words are required to track nbits.
func WordsNeeded(nbits int) int {
	return (nbits + 63) / 64
}
