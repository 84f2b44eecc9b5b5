package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// ArchiveJob is the cold-storage archival loop. Optional; nil disables it.
type ArchiveJob interface {
	RunCron(ctx context.Context, cronExpr string) error
}

// Orchestrator manages the background goroutines: the window scheduler
// tick loop, the daily reset cron, and optional cold-storage archival.
type Orchestrator struct {
	windows      *WindowScheduler
	reset        *DailyReset
	archiver     ArchiveJob
	tickInterval time.Duration
	resetCron    string
	archiveCron  string
	logger       *slog.Logger
}

// NewOrchestrator creates an Orchestrator. archiver may be nil when cold
// storage is not configured.
func NewOrchestrator(
	windows *WindowScheduler,
	reset *DailyReset,
	archiver ArchiveJob,
	tickInterval time.Duration,
	resetCron string,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		windows:      windows,
		reset:        reset,
		archiver:     archiver,
		tickInterval: tickInterval,
		resetCron:    resetCron,
		archiveCron:  archiveCron,
		logger:       logger,
	}
}

// Run starts all loops as concurrent goroutines using an errgroup. Each
// goroutine respects ctx cancellation. If any goroutine returns a
// non-context error, the errgroup cancels the shared context and Run
// returns that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("scheduler orchestrator starting",
		slog.Duration("tick_interval", o.tickInterval),
		slog.String("reset_cron", o.resetCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	// 1. Window scheduler on ticker.
	g.Go(func() error {
		o.logger.Info("starting window scheduler loop")
		err := o.windows.RunLoop(ctx, o.tickInterval)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("window scheduler: %w", err)
	})

	// 2. Daily reset on cron schedule.
	g.Go(func() error {
		o.logger.Info("starting daily reset cron")
		err := o.reset.RunCron(ctx, o.resetCron)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("daily reset: %w", err)
	})

	// 3. Archiver on cron schedule, when configured.
	if o.archiver != nil {
		g.Go(func() error {
			o.logger.Info("starting archiver cron")
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("scheduler orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("scheduler orchestrator stopped cleanly")
	return nil
}
