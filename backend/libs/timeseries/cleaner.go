package timeseries

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultCleanupBatch = 500

type deleter interface {
	DeleteBefore(ctx context.Context, cutoffMs int64, batch int) (int64, error)
}

// Cleaner periodically drops rows older than the retention period.
type Cleaner struct {
	store     deleter
	retention time.Duration
	batch     int
	logger    *zap.Logger
	now       func() time.Time
}

// NewCleaner returns a cleaner. batch <= 0 uses the default chunk size.
func NewCleaner(store deleter, retention time.Duration, batch int, logger *zap.Logger) *Cleaner {
	if batch <= 0 {
		batch = defaultCleanupBatch
	}
	return &Cleaner{
		store:     store,
		retention: retention,
		batch:     batch,
		logger:    logger,
		now:       time.Now,
	}
}

// Run blocks until ctx is done, cleaning once per interval.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("retention cleaner stopped")
			return
		case <-ticker.C:
			removed, err := c.CleanupOnce(ctx)
			if err != nil {
				c.logger.Error("retention cleanup failed", zap.Int64("removed", removed), zap.Error(err))
				continue
			}
			c.logger.Debug("retention cleanup finished", zap.Int64("removed", removed))
		}
	}
}

// CleanupOnce deletes in chunks until nothing older than the cutoff remains.
func (c *Cleaner) CleanupOnce(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.retention).UnixMilli()
	var total int64
	for {
		n, err := c.store.DeleteBefore(ctx, cutoff, c.batch)
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(c.batch) {
			return total, nil
		}
	}
}
