package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matkalabs/matkad/internal/notify"
	"github.com/matkalabs/matkad/internal/schedule"
	"github.com/matkalabs/matkad/internal/scheduler"
	"github.com/matkalabs/matkad/internal/server"
	"github.com/matkalabs/matkad/internal/server/handler"
	"github.com/matkalabs/matkad/internal/server/ws"
	"github.com/matkalabs/matkad/internal/service"
)

// shutdownTimeout bounds graceful HTTP shutdown on context cancellation.
const shutdownTimeout = 5 * time.Second

// ServerMode runs only the HTTP + WebSocket API. Use this when the window
// scheduler runs in a separate process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// SchedulerMode runs only the background control loops: the window
// scheduler, the daily reset cron, and optional archival. No API.
func (a *App) SchedulerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scheduler mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startScheduler(ctx, g, deps); err != nil {
		return fmt.Errorf("scheduler mode: %w", err)
	}
	return g.Wait()
}

// FullMode runs everything in one process: the API server plus all
// background loops.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startScheduler(ctx, g, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	return g.Wait()
}

// startScheduler assembles the background control loops and adds them to
// the errgroup as a single orchestrator goroutine.
func (a *App) startScheduler(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	eval := schedule.Evaluator{
		CloseOffset:     a.cfg.Scheduler.CloseOffset.Duration,
		ReopenStartHour: a.cfg.Scheduler.ReopenStartHour,
		ReopenEndHour:   a.cfg.Scheduler.ReopenEndHour,
	}

	windows := scheduler.NewWindowScheduler(deps.MarketStore, eval, deps.Clock, a.logger)
	windows.OnChange(func(ctx context.Context, marketID string, d schedule.Decision) {
		a.publishWindowChange(ctx, deps, marketID)
	})

	reset := scheduler.NewDailyReset(deps.MarketStore, deps.AuditStore, deps.Clock, a.logger)
	reset.OnReset(func(ctx context.Context, count int64) {
		a.publishDailyReset(ctx, deps, count)
	})

	var archiver scheduler.ArchiveJob
	if deps.Archiver != nil {
		archiver = scheduler.NewArchiveRunner(
			deps.Archiver,
			deps.HistoryStore,
			deps.AuditStore,
			a.cfg.S3.RetentionDays,
			deps.Clock,
			a.logger,
		)
	}

	// Optionally force every window open before the first tick. The tick
	// immediately re-closes anything past its deadline, so this only
	// matters for markets with corrupt flags and a schedule still open.
	if a.cfg.Scheduler.OpenAllOnStart {
		markets := service.NewMarketService(deps.MarketStore, deps.MarketCache, deps.AuditStore, a.logger)
		opened, err := markets.OpenAll(ctx)
		if err != nil {
			a.logger.WarnContext(ctx, "open-all on start failed", slog.String("error", err.Error()))
		} else if opened > 0 {
			a.logger.InfoContext(ctx, "opened markets on start", slog.Int64("opened", opened))
		}
	}

	orch := scheduler.NewOrchestrator(
		windows,
		reset,
		archiver,
		a.cfg.Scheduler.TickInterval.Duration,
		a.cfg.Scheduler.DailyResetCron,
		a.cfg.S3.ArchiveCron,
		a.logger,
	)

	g.Go(func() error {
		return orch.Run(ctx)
	})
	return nil
}

// publishWindowChange invalidates the cached market and pushes the fresh
// row onto the signal bus so WebSocket clients see the flag change live.
// All steps are best effort.
func (a *App) publishWindowChange(ctx context.Context, deps *Dependencies, marketID string) {
	if err := deps.MarketCache.Invalidate(ctx, marketID); err != nil {
		a.logger.WarnContext(ctx, "cache invalidation failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	m, err := deps.MarketStore.GetByMarketID(ctx, marketID)
	if err != nil {
		a.logger.WarnContext(ctx, "window event: market reload failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return
	}

	payload, err := json.Marshal(service.MarketEvent{
		Type:     "window.changed",
		MarketID: marketID,
		Market:   m,
		At:       deps.Clock.Now(),
	})
	if err != nil {
		return
	}
	if err := deps.SignalBus.Publish(ctx, service.EventChannel, payload); err != nil {
		a.logger.WarnContext(ctx, "window event publish failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}

// publishDailyReset announces a completed daily reset on the signal bus
// and through the configured alert channels.
func (a *App) publishDailyReset(ctx context.Context, deps *Dependencies, count int64) {
	payload, err := json.Marshal(service.MarketEvent{
		Type: notify.EventDailyReset,
		At:   deps.Clock.Now(),
	})
	if err == nil {
		if err := deps.SignalBus.Publish(ctx, service.EventChannel, payload); err != nil {
			a.logger.WarnContext(ctx, "reset event publish failed", slog.String("error", err.Error()))
		}
	}

	if deps.Notifier != nil {
		_ = deps.Notifier.Notify(ctx, notify.EventDailyReset,
			"Daily reset complete",
			fmt.Sprintf("%d markets reset for the next cycle", count),
		)
	}
}

// startHTTPServer builds the services, handlers, and WebSocket hub, and
// adds the server plus its shutdown watcher to the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	marketSvc := service.NewMarketService(deps.MarketStore, deps.MarketCache, deps.AuditStore, a.logger)
	declSvc := service.NewDeclarationService(
		deps.MarketStore,
		deps.HistoryStore,
		deps.MarketCache,
		deps.LockManager,
		deps.SignalBus,
		deps.AuditStore,
		deps.Notifier,
		deps.Clock,
		a.logger,
	)

	hub := ws.NewHub(deps.SignalBus, service.EventChannel, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return err
	})

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		},
		server.Handlers{
			Health:       handler.NewHealthHandler(a.logger),
			Markets:      handler.NewMarketHandler(marketSvc, a.logger),
			Declarations: handler.NewDeclarationHandler(declSvc, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
