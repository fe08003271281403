package segment

import (
	"github.com/iamNilotpal/ignitemap/internal/bytestore"
	"github.com/iamNilotpal/ignitemap/internal/codec"
	"github.com/iamNilotpal/ignitemap/internal/replication"
)

// Layout describes the per-map entry shape: how much meta-data each entry
// reserves, the value's alignment boundary, and whether a replication
// header precedes the entry.
type Layout struct {
	MetaDataBytes int
	Alignment     codec.Alignment
	Replicated    bool
}

// headerSize returns the number of bytes the replication header occupies,
// 0 when replication is disabled.
func (l Layout) headerSize() int {
	if l.Replicated {
		return replication.Size
	}
	return 0
}

// EntrySize returns the total byte footprint of an entry with the given
// key/value lengths under this layout, used to compute the chunk count
// before allocating.
func (l Layout) EntrySize(keyLen, valueLen int) int {
	base := l.headerSize() + 4 + keyLen + l.MetaDataBytes + 4
	base += codec.PaddingNeeded(base, l.Alignment)
	return base + valueLen
}

// writeReplicationHeader writes the optional replication prefix.
func writeReplicationHeader(cur *bytestore.Cursor, h replication.EntryHeader) error {
	if err := cur.WriteUint8(h.Identifier); err != nil {
		return err
	}
	if err := cur.WriteUint64(h.Timestamp); err != nil {
		return err
	}
	deleted := uint8(0)
	if h.IsDeleted {
		deleted = 1
	}
	return cur.WriteUint8(deleted)
}

func readReplicationHeader(cur *bytestore.Cursor) (replication.EntryHeader, error) {
	var h replication.EntryHeader
	id, err := cur.ReadUint8()
	if err != nil {
		return h, err
	}
	ts, err := cur.ReadUint64()
	if err != nil {
		return h, err
	}
	deleted, err := cur.ReadUint8()
	if err != nil {
		return h, err
	}
	h.Identifier = id
	h.Timestamp = ts
	h.IsDeleted = deleted != 0
	return h, nil
}

// writeEntry writes a full entry at cur's current offset (entryStart),
// advancing cur past the end of the entry. When l.MetaDataBytes > 0, meta
// must either be exactly l.MetaDataBytes long, or nil to leave the bytes
// already at the meta-data position untouched (an in-place value
// overwrite must not clobber what a listener wrote there). The caller
// publishes the hash-lookup slot only after this returns successfully,
// satisfying the release-before-publish ordering a reader depends on.
func writeEntry(cur *bytestore.Cursor, l Layout, header replication.EntryHeader, key, meta, value []byte) error {
	entryStart := cur.Offset()

	if l.Replicated {
		if err := writeReplicationHeader(cur, header); err != nil {
			return err
		}
	}
	if err := cur.WriteUint32(uint32(len(key))); err != nil {
		return err
	}
	if err := cur.WriteBytes(key); err != nil {
		return err
	}
	if l.MetaDataBytes > 0 {
		if meta != nil {
			if err := cur.WriteBytes(meta); err != nil {
				return err
			}
		} else {
			cur.Advance(l.MetaDataBytes)
		}
	}
	if err := cur.WriteUint32(uint32(len(value))); err != nil {
		return err
	}

	rel := int(cur.Offset() - entryStart)
	cur.Advance(codec.PaddingNeeded(rel, l.Alignment))

	return cur.WriteBytes(value)
}

// decodedEntry is the result of reading an entry's header fields without
// yet materializing its value bytes, used by the probe loop to compare
// keys cheaply before paying for a value decode.
type decodedEntry struct {
	header   replication.EntryHeader
	keyPos   int64
	key      []byte
	metaPos  int64
	valuePos int64
	valueLen int
}

// readEntryHead reads everything up to (but not including) the value
// bytes, positioning cur at the start of the value field on return.
func readEntryHead(cur *bytestore.Cursor, l Layout) (decodedEntry, error) {
	var d decodedEntry
	entryStart := cur.Offset()

	if l.Replicated {
		h, err := readReplicationHeader(cur)
		if err != nil {
			return d, err
		}
		d.header = h
	}

	d.keyPos = cur.Offset()
	keySize, err := cur.ReadUint32()
	if err != nil {
		return d, err
	}
	key, err := cur.ReadBytes(int(keySize))
	if err != nil {
		return d, err
	}
	d.key = key

	if l.MetaDataBytes > 0 {
		d.metaPos = cur.Offset()
		cur.Advance(l.MetaDataBytes)
	}

	valueSize, err := cur.ReadUint32()
	if err != nil {
		return d, err
	}

	rel := int(cur.Offset() - entryStart)
	cur.Advance(codec.PaddingNeeded(rel, l.Alignment))

	d.valuePos = cur.Offset()
	d.valueLen = int(valueSize)
	return d, nil
}
