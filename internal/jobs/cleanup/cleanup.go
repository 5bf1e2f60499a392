package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nakuljn/ember-dating/internal/domain/rules"
)

type quotaPruner interface {
	DeleteBefore(ctx context.Context, dayKey string) (int64, error)
}

type notificationPruner interface {
	DeleteDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job prunes rows nothing reads anymore: quota counters of past days and
// notifications that were delivered long ago.
type Job struct {
	quotas                quotaPruner
	notifications         notificationPruner
	quotaRetentionDays    int
	notificationRetention time.Duration
	loc                   *time.Location
	now                   func() time.Time
	logger                *zap.Logger
}

type Config struct {
	QuotaRetentionDays    int
	NotificationRetention time.Duration
	Location              *time.Location
}

func New(quotas quotaPruner, notifications notificationPruner, cfg Config, logger *zap.Logger) *Job {
	if cfg.QuotaRetentionDays <= 0 {
		cfg.QuotaRetentionDays = 7
	}
	if cfg.NotificationRetention <= 0 {
		cfg.NotificationRetention = 30 * 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		quotas:                quotas,
		notifications:         notifications,
		quotaRetentionDays:    cfg.QuotaRetentionDays,
		notificationRetention: cfg.NotificationRetention,
		loc:                   cfg.Location,
		now:                   time.Now,
		logger:                logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	now := j.now().UTC()

	if j.quotas != nil {
		cutoff := rules.DayKey(now.AddDate(0, 0, -j.quotaRetentionDays), j.loc)
		rows, err := j.quotas.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("cleanup quota counters: %w", err)
		}
		if rows > 0 {
			j.logger.Info("cleanup quota counters completed", zap.Int64("deleted", rows), zap.String("before_day", cutoff))
		}
	}

	if j.notifications != nil {
		rows, err := j.notifications.DeleteDeliveredBefore(ctx, now.Add(-j.notificationRetention))
		if err != nil {
			return fmt.Errorf("cleanup delivered notifications: %w", err)
		}
		if rows > 0 {
			j.logger.Info("cleanup delivered notifications completed", zap.Int64("deleted", rows))
		}
	}

	return nil
}

// Start runs the job every interval until ctx is done. Failures are logged
// and retried on the next tick.
func (j *Job) Start(ctx context.Context, interval time.Duration) {
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
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("cleanup run failed", zap.Error(err))
			}
		}
	}
}
