// Package builder turns a set of Options plus explicit key/value codecs
// into an open engine.Engine: it derives segment geometry (sizer.go),
// lays out a fresh data file or validates an existing one, constructs
// every segment over its slice of the mapped region, and registers any
// configured replication transports. It follows a stat-then-branch
// bootstrap shape: stat the file, decide whether to create or reopen,
// then hand back a ready subsystem.
package builder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/iamNilotpal/ignitemap/internal/arena"
	"github.com/iamNilotpal/ignitemap/internal/bytestore"
	"github.com/iamNilotpal/ignitemap/internal/codec"
	"github.com/iamNilotpal/ignitemap/internal/engine"
	"github.com/iamNilotpal/ignitemap/internal/hashlookup"
	"github.com/iamNilotpal/ignitemap/internal/hashutil"
	"github.com/iamNilotpal/ignitemap/internal/header"
	"github.com/iamNilotpal/ignitemap/internal/replication"
	"github.com/iamNilotpal/ignitemap/internal/segment"
	ignerrors "github.com/iamNilotpal/ignitemap/pkg/errors"
	"github.com/iamNilotpal/ignitemap/pkg/filesys"
	"github.com/iamNilotpal/ignitemap/pkg/logger"
	"github.com/iamNilotpal/ignitemap/pkg/options"
	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// DataFileName is the name of the single mapped region every ignitemap
// data directory holds.
const DataFileName = "data.ignitemap"

// previewFileName is the human-readable JWCC dump of the resolved
// geometry, written next to the binary data file for operators; it is
// never read back by Open.
const previewFileName = "ignitemap.hujson"

// SegmentRegion describes one segment's byte layout within the mapped
// file: table, then free-bits, then the size counter word, then the entry
// arena, back to back.
type SegmentRegion struct {
	TableBase       int64
	FreeBitsBase    int64
	SizeCounterBase int64
	EntryBase       int64
}

func regionFor(base int64, g geometry) SegmentRegion {
	tableSize := int64(g.slotsPerSegment) * 8
	freeBitsWords := arena.WordsNeeded(g.chunksPerSegment)
	freeBitsSize := int64(freeBitsWords) * 8
	return SegmentRegion{
		TableBase:       base,
		FreeBitsBase:    base + tableSize,
		SizeCounterBase: base + tableSize + freeBitsSize,
		EntryBase:       base + tableSize + freeBitsSize + 8,
	}
}

func segmentStride(g geometry) int64 {
	r := regionFor(0, g)
	return r.EntryBase + int64(g.chunksPerSegment)*int64(g.chunkSize)
}

// Regions returns every segment's absolute byte layout for an already
// persisted header, the same derivation Open uses to construct segments,
// exported for read-only tooling (cmd/ignitemap-inspect) that wants to walk
// a data file's tables and free-bits sets without opening a full Engine.
func Regions(hdr header.Header) []SegmentRegion {
	g := geometryFromHeader(hdr)
	stride := segmentStride(g)
	regions := make([]SegmentRegion, g.segmentCount)
	for i := 0; i < g.segmentCount; i++ {
		base := header.Size() + int64(i)*stride
		regions[i] = regionFor(base, g)
	}
	return regions
}

// ChunksPerSegment and SlotsPerSegment expose the sizer-derived geometry
// fields inspection tooling needs to interpret a header's raw counts
// without re-deriving them.
func ChunksPerSegment(hdr header.Header) int { return int(hdr.ChunksPerSegment) }
func SlotsPerSegment(hdr header.Header) int  { return int(hdr.SlotsPerSegment) }
func HBits(hdr header.Header) uint           { return uint(hdr.HBits) }

// Open creates or reopens an ignitemap data file under dataDir, returning
// a ready engine.Engine. keyCodec/valueCodec are supplied explicitly
// (rather than as Options fields) because Go ties a codec's element type
// to the map's K/V at compile time.
func Open[K any, V any](dataDir string, keyCodec codec.Codec[K], valueCodec codec.Codec[V], opts ...options.OptionFunc) (*engine.Engine[K, V], error) {
	o := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Entries > options.LargeSegmentsThreshold {
		o.LargeSegments = true
	}
	if err := validateOptions(o); err != nil {
		return nil, err
	}

	if err := filesys.CreateDir(dataDir, 0o755); err != nil {
		return nil, ignerrors.ClassifyDirectoryCreationError(err, dataDir)
	}

	log := logger.New("builder")
	path := filepath.Join(dataDir, DataFileName)

	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	var (
		g   geometry
		hdr header.Header
	)

	if fresh {
		g = computeGeometry(o)
		hdr = header.Header{
			SegmentCount:     uint32(g.segmentCount),
			ChunksPerSegment: uint32(g.chunksPerSegment),
			ChunkSize:        uint32(g.chunkSize),
			EntriesCapacity:  uint32(g.entriesPerSeg),
			SlotsPerSegment:  uint32(g.slotsPerSegment),
			HBits:            g.hBits,
			MetaDataBytes:    o.MetaDataBytes,
			Alignment:        o.Alignment,
			ReplicationID:    o.ReplicationID,
			LargeSegments:    o.LargeSegments,
			KeyKind:          keyCodec.Kind(),
			ValueKind:        valueCodec.Kind(),
		}
	}

	size := header.Size()
	if fresh {
		size += int64(g.segmentCount) * segmentStride(g)
	} else {
		size = info.Size()
	}

	store, err := bytestore.OpenMmapStore(path, size)
	if err != nil {
		return nil, err
	}

	if fresh {
		if err := header.Write(store, hdr); err != nil {
			store.Close()
			return nil, err
		}
		g = geometryFromHeader(hdr)
	} else {
		hdr, err = header.Read(store)
		if err != nil {
			store.Close()
			return nil, err
		}
		if err := hdr.Validate(keyCodec.Kind(), valueCodec.Kind(), o.ReplicationID); err != nil {
			store.Close()
			return nil, err
		}
		g = geometryFromHeader(hdr)
	}

	layout := segment.Layout{
		MetaDataBytes: int(hdr.MetaDataBytes),
		Alignment:     hdr.Alignment,
		Replicated:    hdr.ReplicationID != 0,
	}

	segments := make([]*segment.Segment[K, V], g.segmentCount)
	stride := segmentStride(g)
	for i := 0; i < g.segmentCount; i++ {
		base := header.Size() + int64(i)*stride
		r := regionFor(base, g)

		table := hashlookup.New(store, r.TableBase, g.slotsPerSegment, uint(g.hBits), i)

		words, err := store.Words(r.FreeBitsBase, arena.WordsNeeded(g.chunksPerSegment))
		if err != nil {
			store.Close()
			return nil, err
		}
		free := arena.NewFreeBits(words, g.chunksPerSegment)
		if fresh {
			free.Reset()
		}
		a := arena.New(i, free)

		sizeCounter, err := store.Words(r.SizeCounterBase, 1)
		if err != nil {
			store.Close()
			return nil, err
		}

		segments[i] = segment.New[K, V](
			i, store, r.EntryBase, g.chunkSize, table, a, sizeCounter, layout, keyCodec, valueCodec,
			o.LockTimeout, o.EventListener, o.ErrorListener,
		)
	}

	closers, err := registerReplicators(o, segments, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	if fresh {
		if err := writePreview(dataDir, o, hdr, g); err != nil {
			log.Warnw("failed to write config preview file", "error", err)
		}
	}

	return engine.New(engine.Config[K, V]{
		Store:      store,
		Header:     hdr,
		Segments:   segments,
		KeyCodec:   keyCodec,
		ValueCodec: valueCodec,
		Options:    o,
		Closers:    closers,
		Logger:     log,
	}), nil
}

// geometryFromHeader reconstructs the geometry struct from a persisted
// header, used on both the fresh-create and reopen paths so segment
// construction has one code path regardless of how hdr was obtained.
func geometryFromHeader(hdr header.Header) geometry {
	return geometry{
		segmentCount:     int(hdr.SegmentCount),
		entriesPerSeg:    int(hdr.EntriesCapacity),
		chunkSize:        int(hdr.ChunkSize),
		chunksPerSegment: int(hdr.ChunksPerSegment),
		slotsPerSegment:  int(hdr.SlotsPerSegment),
		hBits:            hdr.HBits,
	}
}

// validateOptions rejects builder misconfiguration before any file or
// mapping work happens.
func validateOptions(o options.Options) error {
	if o.ActualSegments > 0 && !hashutil.IsPowerOfTwo(int(o.ActualSegments)) {
		return ignerrors.NewValidationError(nil, ignerrors.ErrorCodeInvalidInput,
			"segment count override must be a power of two").
			WithField("ActualSegments").
			WithProvided(o.ActualSegments)
	}
	if len(o.Replicators) > 0 && o.ReplicationID == 0 {
		return ignerrors.NewValidationError(nil, ignerrors.ErrorCodeInvalidInput,
			"replicators require a non-zero replication identifier").
			WithField("ReplicationID")
	}
	if len(o.Replicators) == 0 {
		return nil
	}
	want := o.Replicators[0].Identifier()
	for _, t := range o.Replicators[1:] {
		if t.Identifier() != want {
			return ignerrors.NewValidationError(nil, ignerrors.ErrorCodeInvalidInput,
				"all replicators must advertise the same identifier").
				WithField("Replicators")
		}
	}
	return nil
}

// closedIterator is handed to a Transport when ignitemap doesn't yet feed
// it live per-segment modifications; Next returns io.EOF immediately so a
// transport's Register can complete its handshake without blocking
// forever. Real modification dispatch is listed as a follow-up in
// DESIGN.md.
type closedIterator struct{}

func (closedIterator) Next() (replication.Modification, error) {
	return replication.Modification{}, io.EOF
}

func registerReplicators[K any, V any](o options.Options, segments []*segment.Segment[K, V], log interface {
	Warnw(string, ...any)
}) ([]io.Closer, error) {
	if len(o.Replicators) == 0 {
		return nil, nil
	}

	bestEffortCount := 0
	for _, t := range o.Replicators {
		if t.BestEffort() {
			bestEffortCount++
		}
	}
	if len(o.Replicators) == 1 && bestEffortCount == 1 {
		log.Warnw("only a best-effort replication transport is registered; consider pairing it with a guaranteed-delivery transport")
	}

	var closers []io.Closer
	for _, t := range o.Replicators {
		for i := range segments {
			c, err := t.Register(i, closedIterator{})
			if err != nil {
				for _, existing := range closers {
					existing.Close()
				}
				return nil, err
			}
			closers = append(closers, c)
		}
	}
	return closers, nil
}

// writePreview renders the resolved geometry as commented JWCC and writes
// it atomically next to the data file. It is a debugging aid only: Open
// never reads it back, the binary header is the authoritative format.
func writePreview(dataDir string, o options.Options, hdr header.Header, g geometry) error {
	text := fmt.Sprintf(`{
  // Resolved geometry for this data directory's ignitemap file.
  // This file is never read back by Open; it exists for operators.
  "segmentCount": %d,
  "chunksPerSegment": %d,
  "chunkSize": %d,
  "entriesPerSegment": %d,
  "slotsPerSegment": %d,
  "hBits": %d,
  "metaDataBytes": %d,
  "alignment": %d,
  "replicationId": %d,
  "largeSegments": %t,
  "lockTimeout": %q,
}
`, g.segmentCount, g.chunksPerSegment, g.chunkSize, g.entriesPerSeg, g.slotsPerSegment,
		hdr.HBits, hdr.MetaDataBytes, int(hdr.Alignment), hdr.ReplicationID, hdr.LargeSegments, o.LockTimeout)

	if _, err := hujson.Standardize([]byte(text)); err != nil {
		return err
	}

	path := filepath.Join(dataDir, previewFileName)
	return atomic.WriteFile(path, bytes.NewReader([]byte(text)))
}
