package bytestore

import (
	"math"
	"sync/atomic"
	"unsafe"

	ignerrors "github.com/iamNilotpal/ignitemap/pkg/errors"
	"golang.org/x/sys/unix"
)

// AnonStore is an in-memory-only Store backed by an anonymous mmap region
// rather than a file. It satisfies the same Store interface as MmapStore so
// the rest of the map never needs to know whether it is file-backed; the
// only difference is that Flush and Close never touch a file descriptor.
type AnonStore struct {
	region []byte
}

// OpenAnonStore allocates an anonymous, zeroed region of size bytes.
func OpenAnonStore(size int64) (*AnonStore, error) {
	region, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, ignerrors.NewStorageError(err, ignerrors.ErrorCodeIO, "failed to create anonymous mapping")
	}
	return &AnonStore{region: region}, nil
}

func (s *AnonStore) Len() int64 { return int64(len(s.region)) }

func (s *AnonStore) ReadUint8(off int64) (uint8, error) {
	if err := checkBounds(off, 1, s.Len()); err != nil {
		return 0, err
	}
	return s.region[off], nil
}

func (s *AnonStore) ReadUint32(off int64) (uint32, error) {
	if err := checkBounds(off, 4, s.Len()); err != nil {
		return 0, err
	}
	return le.Uint32(s.region[off : off+4]), nil
}

func (s *AnonStore) ReadUint64(off int64) (uint64, error) {
	if err := checkBounds(off, 8, s.Len()); err != nil {
		return 0, err
	}
	return le.Uint64(s.region[off : off+8]), nil
}

func (s *AnonStore) ReadFloat64(off int64) (float64, error) {
	bits, err := s.ReadUint64(off)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (s *AnonStore) ReadBytes(off int64, n int) ([]byte, error) {
	if err := checkBounds(off, n, s.Len()); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, s.region[off:off+int64(n)])
	return out, nil
}

func (s *AnonStore) WriteUint8(off int64, v uint8) error {
	if err := checkBounds(off, 1, s.Len()); err != nil {
		return err
	}
	s.region[off] = v
	return nil
}

func (s *AnonStore) WriteUint32(off int64, v uint32) error {
	if err := checkBounds(off, 4, s.Len()); err != nil {
		return err
	}
	le.PutUint32(s.region[off:off+4], v)
	return nil
}

func (s *AnonStore) WriteUint64(off int64, v uint64) error {
	if err := checkBounds(off, 8, s.Len()); err != nil {
		return err
	}
	le.PutUint64(s.region[off:off+8], v)
	return nil
}

func (s *AnonStore) WriteFloat64(off int64, v float64) error {
	return s.WriteUint64(off, math.Float64bits(v))
}

func (s *AnonStore) WriteBytes(off int64, p []byte) error {
	if err := checkBounds(off, len(p), s.Len()); err != nil {
		return err
	}
	copy(s.region[off:off+int64(len(p))], p)
	return nil
}

func (s *AnonStore) CompareAndSwapUint64(off int64, old, new uint64) (bool, error) {
	if err := checkBounds(off, 8, s.Len()); err != nil {
		return false, err
	}
	ptr := (*uint64)(unsafe.Pointer(&s.region[off]))
	return atomic.CompareAndSwapUint64(ptr, old, new), nil
}

func (s *AnonStore) Words(off int64, n int) ([]uint64, error) {
	if err := checkBounds(off, n*8, s.Len()); err != nil {
		return nil, err
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&s.region[off])), n), nil
}

// Flush is a no-op: an anonymous region has no backing file to sync.
func (s *AnonStore) Flush(off, n int64) error {
	return checkBounds(off, int(n), s.Len())
}

func (s *AnonStore) Close() error {
	if s.region != nil {
		if err := unix.Munmap(s.region); err != nil {
			return ignerrors.NewStorageError(err, ignerrors.ErrorCodeIO, "failed to munmap anonymous region")
		}
		s.region = nil
	}
	return nil
}

var _ Store = (*AnonStore)(nil)
