package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matkalabs/matkad/internal/domain"
	"github.com/matkalabs/matkad/internal/result"
	"github.com/matkalabs/matkad/internal/schedule"
)

// DailyReset clears every market's result back to the sentinel record and
// reopens betting for the next cycle. The reset is a single bulk write so
// all markets flip together.
type DailyReset struct {
	markets domain.MarketStore
	audit   domain.AuditStore
	clock   schedule.Clock
	logger  *slog.Logger

	// onReset, when set, is called after a completed reset run.
	onReset func(ctx context.Context, count int64)
}

// NewDailyReset creates a DailyReset job.
func NewDailyReset(markets domain.MarketStore, audit domain.AuditStore, clock schedule.Clock, logger *slog.Logger) *DailyReset {
	return &DailyReset{
		markets: markets,
		audit:   audit,
		clock:   clock,
		logger:  logger,
	}
}

// OnReset registers a callback invoked after each completed reset run.
func (r *DailyReset) OnReset(fn func(ctx context.Context, count int64)) {
	r.onReset = fn
}

// Run executes a single reset: every market gets the sentinel result and
// both window flags set true. Returns the number of markets reset.
func (r *DailyReset) Run(ctx context.Context) (int64, error) {
	delta := domain.FlagsDelta{
		OpenBetting:   domain.BoolPtr(true),
		IsBettingOpen: domain.BoolPtr(true),
	}

	count, err := r.markets.ResetAllResults(ctx, result.Sentinel(), delta)
	if err != nil {
		return 0, fmt.Errorf("scheduler: daily reset: %w", err)
	}

	r.logger.Info("daily reset complete", slog.Int64("markets", count))

	if r.audit != nil {
		if err := r.audit.Log(ctx, "reset.daily", map[string]any{
			"markets": count,
			"at":      r.clock.Now().Format(time.RFC3339),
		}); err != nil {
			r.logger.Error("daily reset audit log failed", slog.String("error", err.Error()))
		}
	}

	if r.onReset != nil {
		r.onReset(ctx, count)
	}
	return count, nil
}

// RunCron runs the reset on a cron schedule until the context is
// cancelled. The schedule is evaluated against the clock's location, so
// "0 20 * * *" means 8 PM market time every day.
func (r *DailyReset) RunCron(ctx context.Context, cronExpr string) error {
	r.logger.Info("daily reset cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, r.clock.Now())
		if err != nil {
			return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
		}

		waitDuration := next.Sub(r.clock.Now())
		r.logger.Info("daily reset waiting for next trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("daily reset cron stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := r.Run(ctx); err != nil {
				r.logger.Error("daily reset failed", slog.String("error", err.Error()))
			}
		}
	}
}
