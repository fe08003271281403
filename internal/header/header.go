// Package header encodes and decodes the fixed-size region at the start
// of a map's backing file: the geometry recorded at creation, which a
// reopen reads back and uses as-is. A reopen checks the magic, the version,
// the codec kinds and the replication identifier; it does not compare the
// recorded geometry with the one the caller's options would produce. The
// layout mirrors the mmapHeader/createNew/
// openExisting split of a conventional mmap-backed persister generalized
// from a single growing log to a fixed segment layout fixed at creation
// time.
package header

import (
	"bytes"

	"github.com/iamNilotpal/ignitemap/internal/bytestore"
	"github.com/iamNilotpal/ignitemap/internal/codec"
	ignerrors "github.com/iamNilotpal/ignitemap/pkg/errors"
)

// magic identifies an ignitemap data file. Present at byte 0 of every
// region this package writes.
var magic = [4]byte{'I', 'G', 'N', 'T'}

// Version is the on-disk header layout version. Bumping it is a breaking
// change to every persisted map.
const Version uint16 = 1

// rawSize is the number of bytes the fields below actually occupy.
const rawSize = 4 + 2 + 4 + 4 + 4 + 4 + 1 + 1 + 1 + 1 + 1 + 1 + 4 + 1

// minGap is the smallest gap between the header's real fields and the
// start of the data region that is acceptable; a smaller gap gets another
// padding round added, matching the reasoning a hand-packed aligned
// struct uses when leaving room for future header growth.
const minGap = 64

// paddingBoundary is the byte boundary the data region must start on.
const paddingBoundary = 128

// Header is the geometry recorded once at creation and checked on every
// reopen. Every field here is either load-bearing for decoding existing
// segments (SegmentCount, ChunksPerSegment, ChunkSize, SlotsPerSegment,
// HBits, MetaDataBytes, Alignment) or a compatibility check against the
// caller's requested codecs/replication mode.
type Header struct {
	SegmentCount     uint32
	ChunksPerSegment uint32
	ChunkSize        uint32
	EntriesCapacity  uint32
	SlotsPerSegment  uint32
	HBits            uint8
	MetaDataBytes    uint8
	Alignment        codec.Alignment
	ReplicationID    uint8
	LargeSegments    bool
	KeyKind          codec.Kind
	ValueKind        codec.Kind
}

// Size returns the padded byte footprint of the header region: the data
// region for segment 0 begins here.
func Size() int64 {
	return int64(paddedSize(rawSize))
}

// paddedSize rounds raw up to the next multiple of paddingBoundary, adding
// a further paddingBoundary if the resulting gap is under minGap.
func paddedSize(raw int) int {
	rounded := ((raw + paddingBoundary - 1) / paddingBoundary) * paddingBoundary
	if rounded-raw < minGap {
		rounded += paddingBoundary
	}
	return rounded
}

// Write encodes h at the start of store (offset 0) and flushes the first
// Size() bytes. The padding between the encoded fields and Size() is not
// written; it keeps whatever the region held (zeros in a fresh file).
func Write(store bytestore.Store, h Header) error {
	cur := bytestore.NewCursor(store, 0)
	if err := cur.WriteBytes(magic[:]); err != nil {
		return err
	}
	// encode Version as two little-endian bytes through the uint8 writer,
	// since the cursor only exposes uint8/32/64 writers.
	if err := cur.WriteUint8(uint8(Version)); err != nil {
		return err
	}
	if err := cur.WriteUint8(uint8(Version >> 8)); err != nil {
		return err
	}
	if err := cur.WriteUint32(h.SegmentCount); err != nil {
		return err
	}
	if err := cur.WriteUint32(h.ChunksPerSegment); err != nil {
		return err
	}
	if err := cur.WriteUint32(h.ChunkSize); err != nil {
		return err
	}
	if err := cur.WriteUint32(h.EntriesCapacity); err != nil {
		return err
	}
	if err := cur.WriteUint32(h.SlotsPerSegment); err != nil {
		return err
	}
	if err := cur.WriteUint8(h.HBits); err != nil {
		return err
	}
	if err := cur.WriteUint8(h.MetaDataBytes); err != nil {
		return err
	}
	if err := cur.WriteUint8(uint8(h.Alignment)); err != nil {
		return err
	}
	if err := cur.WriteUint8(h.ReplicationID); err != nil {
		return err
	}
	large := uint8(0)
	if h.LargeSegments {
		large = 1
	}
	if err := cur.WriteUint8(large); err != nil {
		return err
	}
	if err := cur.WriteUint8(uint8(h.KeyKind)); err != nil {
		return err
	}
	if err := cur.WriteUint8(uint8(h.ValueKind)); err != nil {
		return err
	}
	return store.Flush(0, Size())
}

// Read decodes the header at the start of store. Returns CorruptHeader if
// the magic or version don't match what this build of the package writes.
func Read(store bytestore.Store) (Header, error) {
	var h Header
	cur := bytestore.NewCursor(store, 0)

	gotMagic, err := cur.ReadBytes(4)
	if err != nil {
		return h, err
	}
	if !bytes.Equal(gotMagic, magic[:]) {
		return h, ignerrors.NewStorageError(nil, ignerrors.ErrorCodeCorruptHeader,
			"data file does not begin with the ignitemap magic bytes")
	}

	lo, err := cur.ReadUint8()
	if err != nil {
		return h, err
	}
	hi, err := cur.ReadUint8()
	if err != nil {
		return h, err
	}
	version := uint16(lo) | uint16(hi)<<8
	if version != Version {
		return h, ignerrors.NewStorageError(nil, ignerrors.ErrorCodeCorruptHeader,
			"data file header version does not match this build").
			WithOffset(4)
	}

	if h.SegmentCount, err = cur.ReadUint32(); err != nil {
		return h, err
	}
	if h.ChunksPerSegment, err = cur.ReadUint32(); err != nil {
		return h, err
	}
	if h.ChunkSize, err = cur.ReadUint32(); err != nil {
		return h, err
	}
	if h.EntriesCapacity, err = cur.ReadUint32(); err != nil {
		return h, err
	}
	if h.SlotsPerSegment, err = cur.ReadUint32(); err != nil {
		return h, err
	}
	if h.HBits, err = cur.ReadUint8(); err != nil {
		return h, err
	}
	if h.MetaDataBytes, err = cur.ReadUint8(); err != nil {
		return h, err
	}
	align, err := cur.ReadUint8()
	if err != nil {
		return h, err
	}
	h.Alignment = codec.Alignment(align)
	if h.ReplicationID, err = cur.ReadUint8(); err != nil {
		return h, err
	}
	large, err := cur.ReadUint8()
	if err != nil {
		return h, err
	}
	h.LargeSegments = large != 0
	keyKind, err := cur.ReadUint8()
	if err != nil {
		return h, err
	}
	h.KeyKind = codec.Kind(keyKind)
	valKind, err := cur.ReadUint8()
	if err != nil {
		return h, err
	}
	h.ValueKind = codec.Kind(valKind)

	return h, nil
}

// Validate compares a decoded header against the codec kinds and
// replication identifier the caller is opening with, returning
// CorruptHeader on any mismatch. Sizing fields (segment count, chunk
// geometry) are never re-derived from the caller's options on reopen;
// the persisted header is authoritative for those, as the comment on the
// builder's geometry type notes.
func (h Header) Validate(keyKind, valueKind codec.Kind, replicationID uint8) error {
	if h.KeyKind != keyKind {
		return ignerrors.NewStorageError(nil, ignerrors.ErrorCodeCorruptHeader,
			"data file was built with a different key codec")
	}
	if h.ValueKind != valueKind {
		return ignerrors.NewStorageError(nil, ignerrors.ErrorCodeCorruptHeader,
			"data file was built with a different value codec")
	}
	if h.ReplicationID != replicationID {
		return ignerrors.NewStorageError(nil, ignerrors.ErrorCodeCorruptHeader,
			"data file's replication identifier does not match the requested one")
	}
	return nil
}
