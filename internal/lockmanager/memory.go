package lockmanager

import (
	"context"
	"sync"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
)

type keyLock struct {
	sem  chan struct{}
	refs int // holders plus waiters
}

// MemoryLocker is an in-process arena of per-account locks.
//
// The arena mutex only guards map bookkeeping and is never held while waiting,
// so contention on one account does not slow down another.
type MemoryLocker struct {
	mu          sync.Mutex
	locks       map[string]*keyLock
	waitTimeout time.Duration
}

// NewMemoryLocker returns a MemoryLocker. A zero waitTimeout waits until the
// context is done.
func NewMemoryLocker(waitTimeout time.Duration) *MemoryLocker {
	return &MemoryLocker{
		locks:       make(map[string]*keyLock),
		waitTimeout: waitTimeout,
	}
}

// Acquire blocks until the lock for accountID is free, the wait timeout
// expires or ctx is done.
func (m *MemoryLocker) Acquire(ctx context.Context, accountID string) (Handle, error) {
	// A caller that already gave up is never granted the lock.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kl := m.ref(accountID)

	var timeout <-chan time.Time
	if m.waitTimeout > 0 {
		timer := time.NewTimer(m.waitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case kl.sem <- struct{}{}:
		return &memoryHandle{release: func() {
			<-kl.sem
			m.unref(accountID, kl)
		}}, nil
	case <-ctx.Done():
		m.unref(accountID, kl)
		return nil, ctx.Err()
	case <-timeout:
		m.unref(accountID, kl)
		return nil, domain.ErrLockTimeout
	}
}

// Len returns the number of accounts that currently have a holder or a waiter.
func (m *MemoryLocker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.locks)
}

func (m *MemoryLocker) ref(accountID string) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	kl, ok := m.locks[accountID]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[accountID] = kl
	}
	kl.refs++

	return kl
}

func (m *MemoryLocker) unref(accountID string, kl *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, accountID)
	}
}

type memoryHandle struct {
	once    sync.Once
	release func()
}

func (h *memoryHandle) Release() {
	h.once.Do(h.release)
}
