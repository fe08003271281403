package segment

import (
	"sync"
	"time"

	ignerrors "github.com/iamNilotpal/ignitemap/pkg/errors"
)

// lockPollInterval bounds how often a blocked lockWithTimeout/
// rLockWithTimeout retries, trading a little latency for a lock
// implementation simple enough to reason about: unlike sync.RWMutex, it
// must support a bounded acquisition deadline,
// which the standard library's RWMutex has no way to express.
const lockPollInterval = 200 * time.Microsecond

// timedRWMutex is a multi-reader/single-writer lock with a bounded
// acquisition timeout. State transitions happen under mu so the
// implementation stays simple to verify; throughput under heavy
// contention is a secondary concern next to the timeout contract itself.
type timedRWMutex struct {
	mu           sync.Mutex
	writerActive bool
	readerCount  int
}

func newTimedRWMutex() *timedRWMutex {
	return &timedRWMutex{}
}

// lockWithTimeout acquires the write lock, returning a LockTimeout
// SegmentError if it is not free within timeout.
func (m *timedRWMutex) lockWithTimeout(segmentIndex int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		if !m.writerActive && m.readerCount == 0 {
			m.writerActive = true
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()

		if time.Now().After(deadline) {
			return ignerrors.NewLockTimeoutError(segmentIndex, "write")
		}
		time.Sleep(lockPollInterval)
	}
}

func (m *timedRWMutex) unlock() {
	m.mu.Lock()
	m.writerActive = false
	m.mu.Unlock()
}

// rLockWithTimeout acquires a read lock, returning a LockTimeout
// SegmentError if a writer is active throughout the deadline.
func (m *timedRWMutex) rLockWithTimeout(segmentIndex int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		if !m.writerActive {
			m.readerCount++
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()

		if time.Now().After(deadline) {
			return ignerrors.NewLockTimeoutError(segmentIndex, "read")
		}
		time.Sleep(lockPollInterval)
	}
}

func (m *timedRWMutex) rUnlock() {
	m.mu.Lock()
	m.readerCount--
	m.mu.Unlock()
}
