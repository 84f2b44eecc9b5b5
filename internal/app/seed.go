package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/matkalabs/matkad/internal/domain"
	"github.com/matkalabs/matkad/internal/service"
)

// seedMarket is one well-known market created by Seed.
type seedMarket struct {
	name      string
	openTime  string
	closeTime string
}

// defaultMarkets are the classic markets seeded into a fresh install.
var defaultMarkets = []seedMarket{
	{name: "Milan Morning", openTime: "10:15 AM", closeTime: "11:15 AM"},
	{name: "Kalyan", openTime: "3:45 PM", closeTime: "5:45 PM"},
	{name: "Milan Day", openTime: "2:15 PM", closeTime: "4:15 PM"},
	{name: "Rajdhani Night", openTime: "9:30 PM", closeTime: "11:45 PM"},
}

// Seed creates the default markets, skipping any that already exist. It
// wires dependencies itself so it can run before the normal modes start.
func (a *App) Seed(ctx context.Context) error {
	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: seed: wire dependencies: %w", err)
	}
	defer cleanup()

	markets := service.NewMarketService(deps.MarketStore, deps.MarketCache, deps.AuditStore, a.logger)

	created := 0
	for _, sm := range defaultMarkets {
		m, err := markets.CreateMarket(ctx, sm.name, sm.openTime, sm.closeTime)
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				a.logger.InfoContext(ctx, "seed: market already exists", slog.String("market", sm.name))
				continue
			}
			return fmt.Errorf("app: seed %q: %w", sm.name, err)
		}
		created++
		a.logger.InfoContext(ctx, "seed: market created",
			slog.String("market_id", m.MarketID),
			slog.String("market", m.Name),
			slog.String("open_time", m.OpenTime),
			slog.String("close_time", m.CloseTime),
		)
	}

	a.logger.InfoContext(ctx, "seed complete", slog.Int("created", created))
	return nil
}
