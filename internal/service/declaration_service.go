package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/matkalabs/matkad/internal/domain"
	"github.com/matkalabs/matkad/internal/notify"
	"github.com/matkalabs/matkad/internal/result"
	"github.com/matkalabs/matkad/internal/schedule"
)

// EventChannel is the pub/sub channel market events are published on.
const EventChannel = "market.events"

// declareLockTTL bounds how long a declaration lock can be held if the
// holder dies without releasing it.
const declareLockTTL = 30 * time.Second

// MarketEvent is the JSON envelope published on the signal bus for every
// result change.
type MarketEvent struct {
	Type     string        `json:"type"`
	MarketID string        `json:"market_id"`
	Market   domain.Market `json:"market"`
	At       time.Time     `json:"at"`
}

// DeclarationService owns result declarations: full declares, open-only
// publications, and per-market resets. Concurrent declarations for the
// same market are serialized through the distributed lock.
type DeclarationService struct {
	markets  domain.MarketStore
	history  domain.ResultHistoryStore
	cache    domain.MarketCache
	locks    domain.LockManager
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier *notify.Notifier
	clock    schedule.Clock
	logger   *slog.Logger
}

// NewDeclarationService creates a DeclarationService. notifier may be nil
// when no alert channels are configured.
func NewDeclarationService(
	markets domain.MarketStore,
	history domain.ResultHistoryStore,
	cache domain.MarketCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier *notify.Notifier,
	clock schedule.Clock,
	logger *slog.Logger,
) *DeclarationService {
	return &DeclarationService{
		markets:  markets,
		history:  history,
		cache:    cache,
		locks:    locks,
		bus:      bus,
		audit:    audit,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// Declare computes and stores the full result for a market from its two
// raw 3-digit numbers, closes betting, and appends a dated history row.
// resultDate lets an admin back-date the history row; the zero time means
// "today" per the market clock.
func (s *DeclarationService) Declare(ctx context.Context, marketID, openNumber, closeNumber string, resultDate time.Time) (domain.Market, error) {
	res, err := result.Declare(openNumber, closeNumber)
	if err != nil {
		return domain.Market{}, fmt.Errorf("declaration: %w", err)
	}

	unlock, err := s.locks.Acquire(ctx, "declare:"+marketID, declareLockTTL)
	if err != nil {
		return domain.Market{}, fmt.Errorf("declaration: lock %s: %w", marketID, err)
	}
	defer unlock()

	// A full declaration ends the cycle for this market.
	delta := domain.FlagsDelta{IsBettingOpen: domain.BoolPtr(false)}

	m, err := s.markets.UpdateResult(ctx, marketID, res, delta)
	if err != nil {
		return domain.Market{}, fmt.Errorf("declaration: store result for %s: %w", marketID, err)
	}

	if resultDate.IsZero() {
		resultDate = s.clock.Now()
	}
	entry := domain.ResultEntry{
		MarketID:         m.MarketID,
		MarketName:       m.Name,
		ResultDate:       resultDate,
		OpenNumber:       res.OpenNumber,
		CloseNumber:      res.CloseNumber,
		OpenSingleDigit:  res.OpenSingleDigit,
		CloseSingleDigit: res.CloseSingleDigit,
		Jodi:             res.Jodi,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		// The declaration itself stands; history is best-effort.
		s.logger.ErrorContext(ctx, "history append failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	s.finishResultChange(ctx, m, "result.declared", map[string]any{
		"market_id":    m.MarketID,
		"open_number":  res.OpenNumber,
		"close_number": res.CloseNumber,
		"jodi":         res.Jodi,
	})
	s.sendAlert(ctx, notify.EventDeclared, "Result declared",
		fmt.Sprintf("%s: open %s / close %s (jodi %s)", m.Name, res.OpenNumber, res.CloseNumber, res.Jodi))

	return m, nil
}

// PublishOpen publishes the open-leg result only: open number, digit,
// panna, and a half jodi. Close-side fields and the betting flags for the
// close leg are left as they are, and the market keeps accepting bets.
func (s *DeclarationService) PublishOpen(ctx context.Context, marketID, openNumber string) (domain.Market, error) {
	unlock, err := s.locks.Acquire(ctx, "declare:"+marketID, declareLockTTL)
	if err != nil {
		return domain.Market{}, fmt.Errorf("declaration: lock %s: %w", marketID, err)
	}
	defer unlock()

	current, err := s.markets.GetByMarketID(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("declaration: load %s: %w", marketID, err)
	}

	res, err := result.PublishOpen(current.Result, openNumber)
	if err != nil {
		return domain.Market{}, fmt.Errorf("declaration: %w", err)
	}

	// The market stays open for close-leg bets.
	delta := domain.FlagsDelta{IsBettingOpen: domain.BoolPtr(true)}

	m, err := s.markets.UpdateResult(ctx, marketID, res, delta)
	if err != nil {
		return domain.Market{}, fmt.Errorf("declaration: store open result for %s: %w", marketID, err)
	}

	s.finishResultChange(ctx, m, "result.open_published", map[string]any{
		"market_id":   m.MarketID,
		"open_number": res.OpenNumber,
		"jodi":        res.Jodi,
	})
	s.sendAlert(ctx, notify.EventOpenPublish, "Open result published",
		fmt.Sprintf("%s: open %s (jodi %s)", m.Name, res.OpenNumber, res.Jodi))

	return m, nil
}

// ResetResult clears a single market's result back to the sentinel record
// and reopens both betting legs.
func (s *DeclarationService) ResetResult(ctx context.Context, marketID string) (domain.Market, error) {
	unlock, err := s.locks.Acquire(ctx, "declare:"+marketID, declareLockTTL)
	if err != nil {
		return domain.Market{}, fmt.Errorf("declaration: lock %s: %w", marketID, err)
	}
	defer unlock()

	delta := domain.FlagsDelta{
		OpenBetting:   domain.BoolPtr(true),
		IsBettingOpen: domain.BoolPtr(true),
	}

	m, err := s.markets.UpdateResult(ctx, marketID, result.Sentinel(), delta)
	if err != nil {
		return domain.Market{}, fmt.Errorf("declaration: reset result for %s: %w", marketID, err)
	}

	s.finishResultChange(ctx, m, "result.reset", map[string]any{
		"market_id": m.MarketID,
	})
	s.sendAlert(ctx, notify.EventReset, "Result reset", m.Name)

	return m, nil
}

// History returns declared-result rows, optionally scoped to one market.
func (s *DeclarationService) History(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.ResultEntry, error) {
	var (
		entries []domain.ResultEntry
		err     error
	)
	if marketID == "" {
		entries, err = s.history.ListAll(ctx, opts)
	} else {
		entries, err = s.history.ListByMarket(ctx, marketID, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("declaration: history: %w", err)
	}
	return entries, nil
}

// finishResultChange handles the cache, audit, and pub/sub side effects
// shared by every result mutation. All of them are best-effort.
func (s *DeclarationService) finishResultChange(ctx context.Context, m domain.Market, event string, detail map[string]any) {
	if err := s.cache.Invalidate(ctx, m.MarketID); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("market_id", m.MarketID),
			slog.String("error", err.Error()),
		)
	}

	if s.audit != nil {
		if err := s.audit.Log(ctx, event, detail); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil {
		payload, err := json.Marshal(MarketEvent{
			Type:     event,
			MarketID: m.MarketID,
			Market:   m,
			At:       s.clock.Now(),
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "event marshal failed", slog.String("error", err.Error()))
			return
		}
		if err := s.bus.Publish(ctx, EventChannel, payload); err != nil {
			s.logger.WarnContext(ctx, "event publish failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "result changed",
		slog.String("event", event),
		slog.String("market_id", m.MarketID),
		slog.String("market", m.Name),
	)
}

func (s *DeclarationService) sendAlert(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
