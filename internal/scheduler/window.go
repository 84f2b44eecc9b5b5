// Package scheduler drives the two background control loops: the
// per-minute window scheduler that converges market flags toward their
// schedules, and the once-daily reset job that clears results for the
// next cycle.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matkalabs/matkad/internal/domain"
	"github.com/matkalabs/matkad/internal/schedule"
)

// WindowScheduler walks every market each tick and writes the minimal
// flag delta needed to match its schedule. Each tick reads fresh state
// and carries nothing over, so a missed or failed tick is repaired by
// the next one.
type WindowScheduler struct {
	markets domain.MarketStore
	eval    schedule.Evaluator
	clock   schedule.Clock
	logger  *slog.Logger

	// onChange, when set, is called after a market's flags were updated.
	// The signal publisher hangs off this.
	onChange func(ctx context.Context, marketID string, d schedule.Decision)
}

// NewWindowScheduler creates a WindowScheduler.
func NewWindowScheduler(markets domain.MarketStore, eval schedule.Evaluator, clock schedule.Clock, logger *slog.Logger) *WindowScheduler {
	return &WindowScheduler{
		markets: markets,
		eval:    eval,
		clock:   clock,
		logger:  logger,
	}
}

// OnChange registers a callback invoked after each applied flag change.
func (s *WindowScheduler) OnChange(fn func(ctx context.Context, marketID string, d schedule.Decision)) {
	s.onChange = fn
}

// Tick executes a single pass over all markets. A failure on one market
// is logged and does not stop the others; the first error is returned
// after the pass completes.
func (s *WindowScheduler) Tick(ctx context.Context) error {
	now := s.clock.Now()

	markets, err := s.markets.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: listing markets: %w", err)
	}

	var firstErr error
	updated := 0
	for _, m := range markets {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scheduler: tick cancelled: %w", err)
		}

		changed, err := s.tickMarket(ctx, m, now)
		if err != nil {
			s.logger.Error("window update failed",
				slog.String("market_id", m.MarketID),
				slog.String("market", m.Name),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if changed {
			updated++
		}
	}

	if updated > 0 {
		s.logger.Info("window tick applied changes",
			slog.Int("updated", updated),
			slog.Int("markets", len(markets)),
		)
	}
	return firstErr
}

func (s *WindowScheduler) tickMarket(ctx context.Context, m domain.Market, now time.Time) (bool, error) {
	decision, err := s.eval.Evaluate(m, now)
	if err != nil {
		return false, err
	}

	delta := decision.Delta(m)
	if delta.IsZero() {
		return false, nil
	}

	if err := s.markets.UpdateFlags(ctx, m.MarketID, delta); err != nil {
		return false, fmt.Errorf("updating flags for %s: %w", m.MarketID, err)
	}

	s.logger.Info("betting window changed",
		slog.String("market_id", m.MarketID),
		slog.String("market", m.Name),
		slog.Bool("open_betting", decision.OpenBetting),
		slog.Bool("is_betting_open", decision.IsBettingOpen),
		slog.Bool("reopen_window", decision.Reopen),
	)

	if s.onChange != nil {
		s.onChange(ctx, m.MarketID, decision)
	}
	return true, nil
}

// RunLoop runs the scheduler on a repeating interval until the context
// is cancelled.
func (s *WindowScheduler) RunLoop(ctx context.Context, interval time.Duration) error {
	// Run immediately on start.
	if err := s.Tick(ctx); err != nil {
		s.logger.Error("window tick failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("window scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("window tick failed", slog.String("error", err.Error()))
			}
		}
	}
}
