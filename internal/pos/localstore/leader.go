package localstore

import (
	"context"
	"fmt"
	"time"
)

// The drainer leader lock is a single lease row in the store itself: the
// store file is the resource being drained, so the lock lives next to it.
// Every transition is one atomic UPDATE; whoever's UPDATE matches wins.

// AcquireLease tries to take the drainer lease for holder. It succeeds when
// the lease is unheld, expired, or already held by the same holder.
func (s *Store) AcquireLease(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE leader_lease
		SET holder = ?, expires_at = ?
		WHERE id = 1 AND (holder = '' OR holder = ? OR expires_at <= ?)
	`, holder, formatTime(now.Add(ttl)), holder, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return n > 0, nil
}

// RenewLease extends the lease, but only while holder still owns it.
func (s *Store) RenewLease(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leader_lease
		SET expires_at = ?
		WHERE id = 1 AND holder = ?
	`, formatTime(time.Now().Add(ttl)), holder)
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return n > 0, nil
}

// ReleaseLease gives the lease up if holder owns it. Releasing a lease
// someone else holds is a no-op.
func (s *Store) ReleaseLease(ctx context.Context, holder string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE leader_lease
		SET holder = '', expires_at = '1970-01-01T00:00:00Z'
		WHERE id = 1 AND holder = ?
	`, holder)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
