package db

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult reports one retention pass.
type CleanupResult struct {
	Deleted  int64
	Duration time.Duration
}

// Cleanup deletes history older than retention and runs VACUUM.
// A zero retention deletes nothing.
func (d *Database) Cleanup(ctx context.Context, retention time.Duration) (CleanupResult, error) {
	start := time.Now()
	var result CleanupResult

	if retention < 0 {
		return result, fmt.Errorf("retention must be non-negative, got %s", retention)
	}
	if retention == 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	cutoff := time.Now().Add(-retention).UTC().Format(timeLayout)
	res, err := d.ExecContext(ctx, `DELETE FROM transfer_history WHERE created_at < ?`, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete from transfer_history: %w", err)
	}
	if result.Deleted, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if result.Deleted > 0 {
		if _, err := d.ExecContext(ctx, "VACUUM"); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("cleanup succeeded but VACUUM failed: %w", err)
		}
	}
	result.Duration = time.Since(start)
	return result, nil
}

// StartCleanupScheduler runs Cleanup immediately and then every interval
// until ctx is cancelled. onCleanup, if set, receives every result.
// A non-positive interval runs the pass once.
func (d *Database) StartCleanupScheduler(ctx context.Context, retention, interval time.Duration, onCleanup func(CleanupResult, error)) {
	run := func() {
		result, err := d.Cleanup(ctx, retention)
		if onCleanup != nil {
			onCleanup(result, err)
		}
	}
	go func() {
		run()
		if interval <= 0 {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
