// Package service holds the application use-cases: market registry
// administration and result declaration.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/matkalabs/matkad/internal/domain"
	"github.com/matkalabs/matkad/internal/result"
	"github.com/matkalabs/matkad/internal/schedule"
)

// MarketService manages the market registry: create, update, delete, and
// cached reads.
type MarketService struct {
	markets domain.MarketStore
	cache   domain.MarketCache
	audit   domain.AuditStore
	logger  *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	markets domain.MarketStore,
	cache domain.MarketCache,
	audit domain.AuditStore,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets: markets,
		cache:   cache,
		audit:   audit,
		logger:  logger,
	}
}

// CreateMarket registers a new market with the given display name and
// civil schedule. The market starts fully open with the sentinel result.
// It returns domain.ErrAlreadyExists when the name is taken.
func (s *MarketService) CreateMarket(ctx context.Context, name, openTime, closeTime string) (domain.Market, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Market{}, fmt.Errorf("market_service: %w: name is required", domain.ErrInvalidInput)
	}
	if err := schedule.ValidateTimes(openTime, closeTime); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: %w: %v", domain.ErrInvalidInput, err)
	}

	if _, err := s.markets.GetByName(ctx, name); err == nil {
		return domain.Market{}, fmt.Errorf("market_service: market %q: %w", name, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Market{}, fmt.Errorf("market_service: check name %q: %w", name, err)
	}

	m := domain.Market{
		MarketID:      "MKT-" + uuid.New().String(),
		Name:          name,
		OpenTime:      openTime,
		CloseTime:     closeTime,
		OpenBetting:   true,
		IsBettingOpen: true,
		Result:        result.Sentinel(),
	}

	created, err := s.markets.Create(ctx, m)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create %q: %w", name, err)
	}

	s.logger.InfoContext(ctx, "market created",
		slog.String("market_id", created.MarketID),
		slog.String("market", created.Name),
	)
	s.auditLog(ctx, "market.created", map[string]any{
		"market_id":  created.MarketID,
		"name":       created.Name,
		"open_time":  created.OpenTime,
		"close_time": created.CloseTime,
	})

	return created, nil
}

// UpdateMarket changes a market's name and civil schedule. The new flags
// are picked up by the scheduler on its next tick.
func (s *MarketService) UpdateMarket(ctx context.Context, marketID, name, openTime, closeTime string) (domain.Market, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Market{}, fmt.Errorf("market_service: %w: name is required", domain.ErrInvalidInput)
	}
	if err := schedule.ValidateTimes(openTime, closeTime); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: %w: %v", domain.ErrInvalidInput, err)
	}

	updated, err := s.markets.UpdateSchedule(ctx, marketID, name, openTime, closeTime)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: update %s: %w", marketID, err)
	}

	s.invalidateCache(ctx, marketID)
	s.logger.InfoContext(ctx, "market updated",
		slog.String("market_id", marketID),
		slog.String("market", updated.Name),
	)
	s.auditLog(ctx, "market.updated", map[string]any{
		"market_id":  marketID,
		"name":       updated.Name,
		"open_time":  updated.OpenTime,
		"close_time": updated.CloseTime,
	})

	return updated, nil
}

// DeleteMarket removes a market from the registry.
func (s *MarketService) DeleteMarket(ctx context.Context, marketID string) error {
	if err := s.markets.Delete(ctx, marketID); err != nil {
		return fmt.Errorf("market_service: delete %s: %w", marketID, err)
	}

	s.invalidateCache(ctx, marketID)
	s.logger.InfoContext(ctx, "market deleted", slog.String("market_id", marketID))
	s.auditLog(ctx, "market.deleted", map[string]any{"market_id": marketID})
	return nil
}

// GetMarket retrieves a market by external ID, checking the cache first
// and falling back to the store on a miss.
func (s *MarketService) GetMarket(ctx context.Context, marketID string) (domain.Market, error) {
	m, err := s.cache.Get(ctx, marketID)
	if err == nil {
		return m, nil
	}

	m, err = s.markets.GetByMarketID(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %q: %w", marketID, err)
	}

	// Back-fill cache; log but do not fail on cache write errors.
	if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "cache set failed",
			slog.String("market_id", marketID),
			slog.String("error", cacheErr.Error()),
		)
	}

	return m, nil
}

// ListMarkets returns every market directly from the store.
func (s *MarketService) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	markets, err := s.markets.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service: list: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	count, err := s.markets.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return count, nil
}

// OpenAll force-opens betting on every market. Used at startup when the
// deployment wants a clean fully-open state before the first tick.
func (s *MarketService) OpenAll(ctx context.Context) (int64, error) {
	markets, err := s.markets.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: open all: %w", err)
	}

	delta := domain.FlagsDelta{
		OpenBetting:   domain.BoolPtr(true),
		IsBettingOpen: domain.BoolPtr(true),
	}

	var opened int64
	for _, m := range markets {
		if m.OpenBetting && m.IsBettingOpen {
			continue
		}
		if err := s.markets.UpdateFlags(ctx, m.MarketID, delta); err != nil {
			return opened, fmt.Errorf("market_service: open all %s: %w", m.MarketID, err)
		}
		s.invalidateCache(ctx, m.MarketID)
		opened++
	}

	if opened > 0 {
		s.logger.InfoContext(ctx, "opened all markets", slog.Int64("count", opened))
	}
	return opened, nil
}

func (s *MarketService) invalidateCache(ctx context.Context, marketID string) {
	if err := s.cache.Invalidate(ctx, marketID); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		// Non-fatal: the cache will expire on its own.
	}
}

func (s *MarketService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
