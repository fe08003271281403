// Package hashlookup implements a segment's open-addressed hash table:
// fixed-width 64-bit slots packing a partial key hash with an entry
// position, linear probing, and backward-shift deletion.
package hashlookup

import (
	"github.com/iamNilotpal/ignitemap/internal/bytestore"
	ignerrors "github.com/iamNilotpal/ignitemap/pkg/errors"
)

// Table is a power-of-two-sized array of slots living inside a segment's
// region of the backing Store. Each slot is a uint64: the low hBits bits
// hold a truncated key hash, the remaining bits hold entry_position+1 (0
// is reserved to mean "empty slot", so positions are stored off-by-one).
type Table struct {
	store        bytestore.Store
	base         int64 // absolute byte offset of slot 0
	slots        int   // number of slots, power of two
	mask         uint64
	hBits        uint
	segmentIndex int
}

// New returns a Table over `slots` slots (must be a power of two) starting
// at base within store, packing hBits bits of key hash into each slot.
func New(store bytestore.Store, base int64, slots int, hBits uint, segmentIndex int) *Table {
	return &Table{
		store:        store,
		base:         base,
		slots:        slots,
		mask:         uint64(slots - 1),
		hBits:        hBits,
		segmentIndex: segmentIndex,
	}
}

// Slots returns the number of slots in the table.
func (t *Table) Slots() int { return t.slots }

func (t *Table) slotOffset(i int) int64 {
	return t.base + int64(i)*8
}

func (t *Table) readSlot(i int) (uint64, error) {
	return t.store.ReadUint64(t.slotOffset(i))
}

func (t *Table) writeSlot(i int, v uint64) error {
	return t.store.WriteUint64(t.slotOffset(i), v)
}

// casSlot publishes a slot update atomically; this is the release
// operation that must happen only after an entry's bytes are fully
// written, so readers never observe a torn write.
func (t *Table) casSlot(i int, old, new uint64) (bool, error) {
	return t.store.CompareAndSwapUint64(t.slotOffset(i), old, new)
}

// hashLow returns the low hBits bits of segmentHash, the value stored in a
// slot and the initial probe index.
func (t *Table) hashLow(segmentHash uint64) uint64 {
	return segmentHash & (1<<t.hBits - 1)
}

func (t *Table) startIndex(segmentHash uint64) int {
	return int(t.hashLow(segmentHash) & t.mask)
}

// pack combines a hash-low value and position into a slot word, reserving
// the low hBits bits for the hash and the rest for position+1.
func (t *Table) pack(hashLow uint64, pos uint32) uint64 {
	return uint64(pos+1)<<t.hBits | (hashLow & (1<<t.hBits - 1))
}

// unpack splits a slot word back into its hash-low and position fields.
// ok is false for an empty slot (word == 0).
func (t *Table) unpack(word uint64) (hashLow uint64, pos uint32, ok bool) {
	if word == 0 {
		return 0, 0, false
	}
	hashLow = word & (1<<t.hBits - 1)
	pos = uint32(word>>t.hBits) - 1
	return hashLow, pos, true
}

// probeSeq calls visit(index, word) for each slot starting at the key's
// natural index, wrapping around, until visit returns false or every slot
// has been visited once (a fully-wrapped table with no empty slot, which
// should never happen given the sizer's load-factor guarantee but is
// handled defensively rather than looping forever).
func (t *Table) probeSeq(segmentHash uint64, visit func(i int, word uint64) (cont bool, err error)) error {
	start := t.startIndex(segmentHash)
	for step := 0; step < t.slots; step++ {
		i := (start + step) % t.slots
		word, err := t.readSlot(i)
		if err != nil {
			return err
		}
		cont, err := visit(i, word)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// Search invokes yield(entryPos) in probe order for every slot whose
// hash-low field matches segmentHash, stopping at the first truly-empty
// slot. yield returns false to stop early (e.g. once the
// caller's key-bytes comparison finds the match).
func (t *Table) Search(segmentHash uint64, yield func(entryPos uint32) (cont bool, err error)) error {
	want := t.hashLow(segmentHash)
	return t.probeSeq(segmentHash, func(_ int, word uint64) (bool, error) {
		hashLow, pos, ok := t.unpack(word)
		if !ok {
			return false, nil // empty slot: probe chain ends here
		}
		if hashLow != want {
			return true, nil // occupied by a different hash, keep probing
		}
		return yield(pos)
	})
}

// FindSlot probes segmentHash's chain and returns the slot index and entry
// position of the first candidate for which match returns true, stopping at
// the first empty slot. The table itself never looks at key bytes; match is
// the caller's key-bytes comparison against the entry at the candidate
// position. found is false if no candidate matched.
func (t *Table) FindSlot(segmentHash uint64, match func(entryPos uint32) (bool, error)) (slot int, pos uint32, found bool, err error) {
	want := t.hashLow(segmentHash)
	err = t.probeSeq(segmentHash, func(i int, word uint64) (bool, error) {
		hashLow, p, ok := t.unpack(word)
		if !ok {
			return false, nil
		}
		if hashLow != want {
			return true, nil
		}
		matched, mErr := match(p)
		if mErr != nil {
			return false, mErr
		}
		if matched {
			slot, pos, found = i, p, true
			return false, nil
		}
		return true, nil
	})
	return slot, pos, found, err
}

// PutAfterProbe inserts (segmentHash, entryPos) at the first empty slot
// encountered while probing from segmentHash's natural index; the caller
// is expected to have already run Search and found no match. Returns
// LookupCorrupted if the table is full (should not happen under the
// sizer's 2/3 load-factor guarantee).
func (t *Table) PutAfterProbe(segmentHash uint64, entryPos uint32) error {
	hashLow := t.hashLow(segmentHash)
	found := false
	err := t.probeSeq(segmentHash, func(i int, word uint64) (bool, error) {
		if word != 0 {
			return true, nil
		}
		if err := t.writeSlot(i, t.pack(hashLow, entryPos)); err != nil {
			return false, err
		}
		found = true
		return false, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return ignerrors.NewLookupCorruptionError("Put", t.segmentIndex, t.slots, nil)
	}
	return nil
}

// UpdatePosition rewrites the slot at a known probe index to point at a
// new entry position, used when a put relocates an entry to a new chunk
// span without changing its place in the probe chain.
func (t *Table) UpdatePosition(segmentHash uint64, oldPos, newPos uint32) error {
	hashLow := t.hashLow(segmentHash)
	old := t.pack(hashLow, oldPos)
	new := t.pack(hashLow, newPos)
	return t.probeSeq(segmentHash, func(i int, word uint64) (bool, error) {
		if word != old {
			return true, nil
		}
		ok, err := t.casSlot(i, old, new)
		if err != nil {
			return false, err
		}
		if !ok {
			// Another writer can't be racing us (segment lock is held for
			// the whole mutation), so a failed CAS here means the word we
			// read is stale; re-read the slot and keep probing only if it
			// still holds the old word, otherwise stop.
			cur, err := t.readSlot(i)
			if err != nil {
				return false, err
			}
			if cur == old {
				return true, nil
			}
		}
		return false, nil
	})
}

// Remove clears the slot at index i (the caller locates i via Search/its
// own bookkeeping) using backward-shift deletion: instead of leaving a
// tombstone, it shifts every subsequent slot in the same probe cluster
// back by one until it reaches an empty slot or a slot already at its
// natural index, preserving every other key's probe chain.
func (t *Table) Remove(slot int) error {
	if err := t.writeSlot(slot, 0); err != nil {
		return err
	}

	hole := slot
	j := slot
	for {
		j = (j + 1) % t.slots
		word, err := t.readSlot(j)
		if err != nil {
			return err
		}
		if word == 0 {
			return nil
		}

		hashLow, _, _ := t.unpack(word)
		natural := int(hashLow & t.mask)

		// A slot at its natural index (or whose probe started after the
		// hole, within (hole, j]) must stay put: moving it into the hole
		// would make it unreachable from its own starting index.
		if inOpenClosedRange(natural, hole, j, t.slots) {
			continue
		}

		if err := t.writeSlot(hole, word); err != nil {
			return err
		}
		if err := t.writeSlot(j, 0); err != nil {
			return err
		}
		hole = j
	}
}

// Reset zeroes every slot, used by Engine.Clear.
func (t *Table) Reset() error {
	for i := 0; i < t.slots; i++ {
		if err := t.writeSlot(i, 0); err != nil {
			return err
		}
	}
	return nil
}

// ForEach visits every occupied slot in table order (not probe order),
// yielding each entry's position. Used by weakly-consistent iteration and
// by the inspection CLI, neither of which needs the hash the slot was
// stored under. yield returning false stops the walk early.
func (t *Table) ForEach(yield func(entryPos uint32) (cont bool, err error)) error {
	for i := 0; i < t.slots; i++ {
		word, err := t.readSlot(i)
		if err != nil {
			return err
		}
		_, pos, ok := t.unpack(word)
		if !ok {
			continue
		}
		cont, err := yield(pos)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// inOpenClosedRange reports whether k lies in the circular range (lo, hi],
// i.e. strictly after lo and up to and including hi, modulo n. This is the
// classic backward-shift-deletion test for whether a probed slot's natural
// index falls between the just-vacated hole and the slot being examined.
func inOpenClosedRange(k, lo, hi, n int) bool {
	lo = ((lo % n) + n) % n
	hi = ((hi % n) + n) % n
	k = ((k % n) + n) % n
	if lo < hi {
		return k > lo && k <= hi
	}
	if lo > hi {
		return k > lo || k <= hi
	}
	return false
}
