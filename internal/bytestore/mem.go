package bytestore

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// MemStore is a plain heap-backed Store, used only as scratch space when a
// segment needs to encode a key or value through a Cursor before it knows
// the final byte length (and therefore before it can allocate arena
// chunks). It never touches mmap; unlike MmapStore/AnonStore its writes
// grow the buffer on demand rather than failing bounds checks, since
// scratch buffers are sized to whatever the caller is about to encode.
// Reads are still bounds-checked against the current length.
type MemStore struct {
	buf []byte
}

// NewMemStore returns an empty scratch store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Len() int64 { return int64(len(s.buf)) }

func (s *MemStore) ensure(off int64, n int) {
	need := off + int64(n)
	if need <= int64(len(s.buf)) {
		return
	}
	grown := make([]byte, need)
	copy(grown, s.buf)
	s.buf = grown
}

// Bytes returns the scratch buffer's current contents.
func (s *MemStore) Bytes() []byte { return s.buf }

func (s *MemStore) ReadUint8(off int64) (uint8, error) {
	if err := checkBounds(off, 1, s.Len()); err != nil {
		return 0, err
	}
	return s.buf[off], nil
}

func (s *MemStore) ReadUint32(off int64) (uint32, error) {
	if err := checkBounds(off, 4, s.Len()); err != nil {
		return 0, err
	}
	return le.Uint32(s.buf[off : off+4]), nil
}

func (s *MemStore) ReadUint64(off int64) (uint64, error) {
	if err := checkBounds(off, 8, s.Len()); err != nil {
		return 0, err
	}
	return le.Uint64(s.buf[off : off+8]), nil
}

func (s *MemStore) ReadFloat64(off int64) (float64, error) {
	bits, err := s.ReadUint64(off)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (s *MemStore) ReadBytes(off int64, n int) ([]byte, error) {
	if err := checkBounds(off, n, s.Len()); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, s.buf[off:off+int64(n)])
	return out, nil
}

func (s *MemStore) WriteUint8(off int64, v uint8) error {
	s.ensure(off, 1)
	s.buf[off] = v
	return nil
}

func (s *MemStore) WriteUint32(off int64, v uint32) error {
	s.ensure(off, 4)
	le.PutUint32(s.buf[off:off+4], v)
	return nil
}

func (s *MemStore) WriteUint64(off int64, v uint64) error {
	s.ensure(off, 8)
	le.PutUint64(s.buf[off:off+8], v)
	return nil
}

func (s *MemStore) WriteFloat64(off int64, v float64) error {
	return s.WriteUint64(off, math.Float64bits(v))
}

func (s *MemStore) WriteBytes(off int64, p []byte) error {
	s.ensure(off, len(p))
	copy(s.buf[off:off+int64(len(p))], p)
	return nil
}

func (s *MemStore) CompareAndSwapUint64(off int64, old, new uint64) (bool, error) {
	s.ensure(off, 8)
	ptr := (*uint64)(unsafe.Pointer(&s.buf[off]))
	return atomic.CompareAndSwapUint64(ptr, old, new), nil
}

func (s *MemStore) Words(off int64, n int) ([]uint64, error) {
	s.ensure(off, n*8)
	return unsafe.Slice((*uint64)(unsafe.Pointer(&s.buf[off])), n), nil
}

func (s *MemStore) Flush(off, n int64) error { return nil }

func (s *MemStore) Close() error { return nil }

var _ Store = (*MemStore)(nil)
