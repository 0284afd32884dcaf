package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"prolink-chat/pkg/logger"
)

const DefaultRetentionCron = "0 3 * * *"

// Purger deletes read notifications created before cutoff.
type Purger interface {
	PurgeReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RetentionConfig struct {
	Cron string
	Days int
}

// Retention removes read notifications older than the configured age on a cron schedule.
type Retention struct {
	purger Purger
	cron   string
	maxAge time.Duration
	log    *logger.Logger
	now    func() time.Time
}

func NewRetention(purger Purger, cfg RetentionConfig, log *logger.Logger) (*Retention, error) {
	expr := cfg.Cron
	if expr == "" {
		expr = DefaultRetentionCron
	}
	if !gronx.IsValid(expr) {
		return nil, fmt.Errorf("invalid retention cron expression: %q", cfg.Cron)
	}
	if cfg.Days <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", cfg.Days)
	}
	return &Retention{
		purger: purger,
		cron:   expr,
		maxAge: time.Duration(cfg.Days) * 24 * time.Hour,
		log:    log.Named("retention"),
		now:    time.Now,
	}, nil
}

// RunOnce purges everything past the retention age.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().UTC().Add(-r.maxAge)
	n, err := r.purger.PurgeReadBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	r.log.Logger.Info("retention_run_complete", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	return n, nil
}

// Next returns the first scheduled run strictly after t.
func (r *Retention) Next(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(r.cron, t.UTC(), false)
}

// Run sleeps until each scheduled tick and purges, until ctx is done.
func (r *Retention) Run(ctx context.Context) {
	r.log.Logger.Info("retention_scheduler_started", zap.String("cron", r.cron), zap.Duration("max_age", r.maxAge))
	for {
		next, err := r.Next(r.now())
		if err != nil {
			r.log.Logger.Error("retention_nexttick_failed", zap.String("cron", r.cron), zap.Error(err))
			next = r.now().Add(time.Minute)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			r.log.Logger.Info("retention_scheduler_stopping")
			return
		case <-timer.C:
		}

		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Logger.Error("retention_run_error", zap.Error(err))
		}
	}
}
