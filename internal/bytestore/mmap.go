package bytestore

import (
	"math"
	"os"
	"sync/atomic"
	"unsafe"

	ignerrors "github.com/iamNilotpal/ignitemap/pkg/errors"
	"golang.org/x/sys/unix"
)

// MmapStore is a file-backed Store: the region is a shared memory mapping
// of an on-disk file, so writes survive process restarts and may be shared
// between processes that map the same file, mirroring the split between
// mmap-backed and anonymous persistence in the dittofs WAL persister this
// package is grounded on.
type MmapStore struct {
	file   *os.File
	path   string
	region []byte
}

// OpenMmapStore maps size bytes of the file at path, creating it and
// extending it to size if it doesn't already exist or is shorter than size.
// The caller is responsible for having already decided size (the builder's
// sizer computes it from segment geometry).
func OpenMmapStore(path string, size int64) (*MmapStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, ignerrors.ClassifyFileOpenError(err, path, filenameOf(path))
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ignerrors.NewStorageError(err, ignerrors.ErrorCodeIO, "failed to stat data file").
			WithPath(path)
	}

	if info.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, ignerrors.NewStorageError(err, ignerrors.ErrorCodeDiskFull, "failed to extend data file to required size").
				WithPath(path).
				WithOffset(int(size))
		}
	}

	region, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, ignerrors.NewStorageError(err, ignerrors.ErrorCodeIO, "failed to mmap data file").
			WithPath(path)
	}

	return &MmapStore{file: f, path: path, region: region}, nil
}

func filenameOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func (s *MmapStore) Len() int64 { return int64(len(s.region)) }

func (s *MmapStore) ReadUint8(off int64) (uint8, error) {
	if err := checkBounds(off, 1, s.Len()); err != nil {
		return 0, err
	}
	return s.region[off], nil
}

func (s *MmapStore) ReadUint32(off int64) (uint32, error) {
	if err := checkBounds(off, 4, s.Len()); err != nil {
		return 0, err
	}
	return le.Uint32(s.region[off : off+4]), nil
}

func (s *MmapStore) ReadUint64(off int64) (uint64, error) {
	if err := checkBounds(off, 8, s.Len()); err != nil {
		return 0, err
	}
	return le.Uint64(s.region[off : off+8]), nil
}

func (s *MmapStore) ReadFloat64(off int64) (float64, error) {
	bits, err := s.ReadUint64(off)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (s *MmapStore) ReadBytes(off int64, n int) ([]byte, error) {
	if err := checkBounds(off, n, s.Len()); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, s.region[off:off+int64(n)])
	return out, nil
}

func (s *MmapStore) WriteUint8(off int64, v uint8) error {
	if err := checkBounds(off, 1, s.Len()); err != nil {
		return err
	}
	s.region[off] = v
	return nil
}

func (s *MmapStore) WriteUint32(off int64, v uint32) error {
	if err := checkBounds(off, 4, s.Len()); err != nil {
		return err
	}
	le.PutUint32(s.region[off:off+4], v)
	return nil
}

func (s *MmapStore) WriteUint64(off int64, v uint64) error {
	if err := checkBounds(off, 8, s.Len()); err != nil {
		return err
	}
	le.PutUint64(s.region[off:off+8], v)
	return nil
}

func (s *MmapStore) WriteFloat64(off int64, v float64) error {
	return s.WriteUint64(off, math.Float64bits(v))
}

func (s *MmapStore) WriteBytes(off int64, p []byte) error {
	if err := checkBounds(off, len(p), s.Len()); err != nil {
		return err
	}
	copy(s.region[off:off+int64(len(p))], p)
	return nil
}

// CompareAndSwapUint64 publishes a hash-lookup slot update atomically. The
// slot word is aligned to 8 bytes by construction (hashlookup always sizes
// and offsets its table in whole words), so the atomic package can operate
// on it directly through an unsafe.Pointer into the mapping.
func (s *MmapStore) CompareAndSwapUint64(off int64, old, new uint64) (bool, error) {
	if err := checkBounds(off, 8, s.Len()); err != nil {
		return false, err
	}
	ptr := (*uint64)(unsafe.Pointer(&s.region[off]))
	return atomic.CompareAndSwapUint64(ptr, old, new), nil
}

// Words returns a live view of n words starting at off, aliasing the
// mapped region directly so free-bits flips are durable without a
// separate flush path.
func (s *MmapStore) Words(off int64, n int) ([]uint64, error) {
	if err := checkBounds(off, n*8, s.Len()); err != nil {
		return nil, err
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&s.region[off])), n), nil
}

func (s *MmapStore) Flush(off, n int64) error {
	if err := checkBounds(off, int(n), s.Len()); err != nil {
		return err
	}
	if err := unix.Msync(s.region[off:off+n], unix.MS_SYNC); err != nil {
		return ignerrors.ClassifySyncError(err, s.path, off)
	}
	return nil
}

func (s *MmapStore) Close() error {
	if s.region != nil {
		_ = unix.Msync(s.region, unix.MS_SYNC)
		if err := unix.Munmap(s.region); err != nil {
			return ignerrors.NewStorageError(err, ignerrors.ErrorCodeIO, "failed to munmap data file")
		}
		s.region = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return ignerrors.NewStorageError(err, ignerrors.ErrorCodeIO, "failed to close data file")
		}
		s.file = nil
	}
	return nil
}

var _ Store = (*MmapStore)(nil)
