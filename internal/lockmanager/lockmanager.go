// Package lockmanager grants exclusive critical sections per account.
//
// Locks are keyed by account id: holders of different accounts never wait on
// each other. Every Locker bounds the wait and reports domain.ErrLockTimeout
// when the bound is exceeded, or the context error when the caller gives up first.
package lockmanager

import "context"

// Locker provides per-account mutual exclusion.
//
//go:generate mockgen -source lockmanager.go -destination lockmanager_mock.go -package lockmanager
type Locker interface {
	Acquire(ctx context.Context, accountID string) (Handle, error)
}

// Handle is held for the duration of a critical section.
//
// Release is safe to call more than once; only the first call has an effect.
type Handle interface {
	Release()
}
