package repository

import (
	"context"
	"time"
)

// LockRepository provides advisory locks shared between processes
type LockRepository interface {
	// AcquireLock takes the named lock for owner unless another owner holds an
	// unexpired lease. Returns false when the lock is held elsewhere.
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)

	// RefreshLock extends the lease held by owner
	RefreshLock(ctx context.Context, name, owner string, ttl time.Duration) error

	// ReleaseLock releases the lock if held by owner
	ReleaseLock(ctx context.Context, name, owner string) error

	// ReleaseExpiredLocks deletes leases that expired and returns the count
	ReleaseExpiredLocks(ctx context.Context) (int, error)
}
