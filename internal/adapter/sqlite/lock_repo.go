package sqlite

import (
	"context"
	"fmt"
	"time"
)

// AcquireLock takes the named lease unless another owner holds it unexpired.
// The same owner may re-acquire, which extends the lease.
func (s *Store) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_locks (name, owner, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			owner = excluded.owner,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE sync_locks.expires_at < excluded.acquired_at OR sync_locks.owner = excluded.owner
	`, name, owner, now.UnixMilli(), now.Add(ttl).UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RefreshLock extends the lease held by owner
func (s *Store) RefreshLock(ctx context.Context, name, owner string, ttl time.Duration) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_locks SET expires_at = ? WHERE name = ? AND owner = ?`,
		s.now().Add(ttl).UnixMilli(), name, owner)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("lock %s is not held by %s", name, owner)
	}
	return nil
}

// ReleaseLock releases the lock if held by owner
func (s *Store) ReleaseLock(ctx context.Context, name, owner string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_locks WHERE name = ? AND owner = ?`, name, owner)
	return err
}

// ReleaseExpiredLocks deletes expired leases
func (s *Store) ReleaseExpiredLocks(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_locks WHERE expires_at < ?`, s.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
