package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrLockHeld indicates another dedup run holds the scope lock.
// Callers should re-queue with a delay rather than fail.
var ErrLockHeld = errors.New("scope lock held")

// AcquireScopeLock takes the mutual-exclusion lock for a dedup scope.
// Expired locks are stolen. Returns ErrLockHeld when a live holder exists.
func (db *DB) AcquireScopeLock(key, holder string, ttl time.Duration) error {
	now := time.Now().UnixMilli()
	expires := time.Now().Add(ttl).UnixMilli()

	// Steal only if the row is absent or expired.
	res, err := db.Exec(`
		INSERT INTO scope_locks (key, holder, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE scope_locks.expires_at <= ?`,
		key, holder, expires, now)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLockHeld
	}
	return nil
}

// ReleaseScopeLock drops the lock if this holder still owns it.
func (db *DB) ReleaseScopeLock(key, holder string) error {
	_, err := db.Exec(`DELETE FROM scope_locks WHERE key = ? AND holder = ?`, key, holder)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
