package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/matkalabs/matkad/internal/domain"
	"github.com/matkalabs/matkad/internal/result"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// memMarketStore is an in-memory domain.MarketStore for service tests.
type memMarketStore struct {
	markets map[string]domain.Market
	nextID  int64
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{markets: map[string]domain.Market{}}
}

func (s *memMarketStore) Create(ctx context.Context, m domain.Market) (domain.Market, error) {
	if _, ok := s.markets[m.MarketID]; ok {
		return domain.Market{}, domain.ErrAlreadyExists
	}
	s.nextID++
	m.ID = s.nextID
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	s.markets[m.MarketID] = m
	return m, nil
}

func (s *memMarketStore) ListAll(ctx context.Context) ([]domain.Market, error) {
	out := make([]domain.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	return out, nil
}

func (s *memMarketStore) GetByMarketID(ctx context.Context, marketID string) (domain.Market, error) {
	m, ok := s.markets[marketID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMarketStore) GetByName(ctx context.Context, name string) (domain.Market, error) {
	for _, m := range s.markets {
		if m.Name == name {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (s *memMarketStore) UpdateSchedule(ctx context.Context, marketID, name, openTime, closeTime string) (domain.Market, error) {
	m, ok := s.markets[marketID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	m.Name = name
	m.OpenTime = openTime
	m.CloseTime = closeTime
	s.markets[marketID] = m
	return m, nil
}

func (s *memMarketStore) UpdateFlags(ctx context.Context, marketID string, delta domain.FlagsDelta) error {
	m, ok := s.markets[marketID]
	if !ok {
		return domain.ErrNotFound
	}
	if delta.OpenBetting != nil {
		m.OpenBetting = *delta.OpenBetting
	}
	if delta.IsBettingOpen != nil {
		m.IsBettingOpen = *delta.IsBettingOpen
	}
	s.markets[marketID] = m
	return nil
}

func (s *memMarketStore) UpdateResult(ctx context.Context, marketID string, res domain.Result, delta domain.FlagsDelta) (domain.Market, error) {
	m, ok := s.markets[marketID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	m.Result = res
	if delta.OpenBetting != nil {
		m.OpenBetting = *delta.OpenBetting
	}
	if delta.IsBettingOpen != nil {
		m.IsBettingOpen = *delta.IsBettingOpen
	}
	s.markets[marketID] = m
	return m, nil
}

func (s *memMarketStore) ResetAllResults(ctx context.Context, res domain.Result, delta domain.FlagsDelta) (int64, error) {
	for id, m := range s.markets {
		m.Result = res
		if delta.OpenBetting != nil {
			m.OpenBetting = *delta.OpenBetting
		}
		if delta.IsBettingOpen != nil {
			m.IsBettingOpen = *delta.IsBettingOpen
		}
		s.markets[id] = m
	}
	return int64(len(s.markets)), nil
}

func (s *memMarketStore) Delete(ctx context.Context, marketID string) error {
	if _, ok := s.markets[marketID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.markets, marketID)
	return nil
}

func (s *memMarketStore) Count(ctx context.Context) (int64, error) {
	return int64(len(s.markets)), nil
}

// memHistory records appended entries.
type memHistory struct {
	entries []domain.ResultEntry
}

func (h *memHistory) Append(ctx context.Context, e domain.ResultEntry) error {
	h.entries = append(h.entries, e)
	return nil
}

func (h *memHistory) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.ResultEntry, error) {
	var out []domain.ResultEntry
	for _, e := range h.entries {
		if e.MarketID == marketID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (h *memHistory) ListAll(ctx context.Context, opts domain.ListOpts) ([]domain.ResultEntry, error) {
	return h.entries, nil
}

func (h *memHistory) ListBefore(ctx context.Context, before time.Time) ([]domain.ResultEntry, error) {
	return nil, nil
}

func (h *memHistory) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// nopCache satisfies domain.MarketCache with misses.
type nopCache struct{}

func (nopCache) Set(ctx context.Context, m domain.Market) error { return nil }
func (nopCache) Get(ctx context.Context, marketID string) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}
func (nopCache) Invalidate(ctx context.Context, marketID string) error { return nil }

// memLock counts acquisitions and can simulate a held lock.
type memLock struct {
	held     bool
	acquired int
}

func (l *memLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	l.acquired++
	return func() {}, nil
}

// memBus records published payloads.
type memBus struct {
	published [][]byte
}

func (b *memBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.published = append(b.published, payload)
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

// memAudit records events.
type memAudit struct {
	events []string
}

func (a *memAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (a *memAudit) ListBefore(ctx context.Context, before time.Time) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (a *memAudit) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type testEnv struct {
	markets *memMarketStore
	history *memHistory
	lock    *memLock
	bus     *memBus
	audit   *memAudit

	marketSvc  *MarketService
	declareSvc *DeclarationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		markets: newMemMarketStore(),
		history: &memHistory{},
		lock:    &memLock{},
		bus:     &memBus{},
		audit:   &memAudit{},
	}
	clock := fixedClock{now: time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)}
	env.marketSvc = NewMarketService(env.markets, nopCache{}, env.audit, discardLogger())
	env.declareSvc = NewDeclarationService(
		env.markets, env.history, nopCache{}, env.lock, env.bus, env.audit, nil, clock, discardLogger(),
	)
	return env
}

func (e *testEnv) createMarket(t *testing.T, name string) domain.Market {
	t.Helper()
	m, err := e.marketSvc.CreateMarket(context.Background(), name, "10:00 AM", "9:00 PM")
	if err != nil {
		t.Fatalf("CreateMarket(%q): %v", name, err)
	}
	return m
}

func TestCreateMarket(t *testing.T) {
	env := newTestEnv(t)
	m := env.createMarket(t, "Milan Day")

	if !strings.HasPrefix(m.MarketID, "MKT-") {
		t.Errorf("MarketID = %q, want MKT- prefix", m.MarketID)
	}
	if !m.OpenBetting || !m.IsBettingOpen {
		t.Errorf("new market flags = %v/%v, want true/true", m.OpenBetting, m.IsBettingOpen)
	}
	if m.Result != result.Sentinel() {
		t.Errorf("new market result = %+v, want sentinel", m.Result)
	}
}

func TestCreateMarketRejectsDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	env.createMarket(t, "Milan Day")

	_, err := env.marketSvc.CreateMarket(context.Background(), "Milan Day", "11:00 AM", "10:00 PM")
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("duplicate name error = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateMarketRejectsBadSchedule(t *testing.T) {
	env := newTestEnv(t)
	for _, tc := range [][3]string{
		{"", "10:00 AM", "9:00 PM"},
		{"Milan Day", "10:00", "9:00 PM"},
		{"Milan Day", "10:00 AM", "25:00 PM"},
	} {
		_, err := env.marketSvc.CreateMarket(context.Background(), tc[0], tc[1], tc[2])
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("CreateMarket(%q, %q, %q) error = %v, want ErrInvalidInput", tc[0], tc[1], tc[2], err)
		}
	}
}

func TestDeclare(t *testing.T) {
	env := newTestEnv(t)
	m := env.createMarket(t, "Milan Day")

	got, err := env.declareSvc.Declare(context.Background(), m.MarketID, "123", "456", time.Time{})
	if err != nil {
		t.Fatalf("Declare: %v", err)
	}
	if got.Result.Jodi != "65" {
		t.Errorf("Jodi = %q, want %q", got.Result.Jodi, "65")
	}
	if got.IsBettingOpen {
		t.Error("market still open for betting after full declaration")
	}
	if len(env.history.entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(env.history.entries))
	}
	if env.history.entries[0].Jodi != "65" {
		t.Errorf("history jodi = %q, want %q", env.history.entries[0].Jodi, "65")
	}
	wantDate := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	if !env.history.entries[0].ResultDate.Equal(wantDate) {
		t.Errorf("history date = %v, want clock time %v", env.history.entries[0].ResultDate, wantDate)
	}
	if len(env.bus.published) != 1 {
		t.Errorf("published events = %d, want 1", len(env.bus.published))
	}
}

func TestDeclareBackdated(t *testing.T) {
	env := newTestEnv(t)
	m := env.createMarket(t, "Milan Day")

	backdate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if _, err := env.declareSvc.Declare(context.Background(), m.MarketID, "123", "456", backdate); err != nil {
		t.Fatalf("Declare: %v", err)
	}
	if len(env.history.entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(env.history.entries))
	}
	if !env.history.entries[0].ResultDate.Equal(backdate) {
		t.Errorf("history date = %v, want %v", env.history.entries[0].ResultDate, backdate)
	}
}

func TestDeclareInvalidNumber(t *testing.T) {
	env := newTestEnv(t)
	m := env.createMarket(t, "Milan Day")

	_, err := env.declareSvc.Declare(context.Background(), m.MarketID, "12x", "456", time.Time{})
	if !errors.Is(err, domain.ErrInvalidNumber) {
		t.Errorf("error = %v, want ErrInvalidNumber", err)
	}
	// Validation failures must not touch the lock or the store.
	if env.lock.acquired != 0 {
		t.Error("lock acquired for invalid input")
	}
	if len(env.history.entries) != 0 {
		t.Error("history written for invalid input")
	}
}

func TestDeclareUnknownMarket(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.declareSvc.Declare(context.Background(), "MKT-missing", "123", "456", time.Time{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDeclareLockHeld(t *testing.T) {
	env := newTestEnv(t)
	m := env.createMarket(t, "Milan Day")
	env.lock.held = true

	_, err := env.declareSvc.Declare(context.Background(), m.MarketID, "123", "456", time.Time{})
	if !errors.Is(err, domain.ErrLockHeld) {
		t.Errorf("error = %v, want ErrLockHeld", err)
	}
}

func TestPublishOpenKeepsMarketOpen(t *testing.T) {
	env := newTestEnv(t)
	m := env.createMarket(t, "Milan Day")

	got, err := env.declareSvc.PublishOpen(context.Background(), m.MarketID, "280")
	if err != nil {
		t.Fatalf("PublishOpen: %v", err)
	}
	if !got.IsBettingOpen {
		t.Error("market closed after open-only publication")
	}
	if got.Result.OpenNumber != "280" {
		t.Errorf("OpenNumber = %q, want %q", got.Result.OpenNumber, "280")
	}
	if got.Result.CloseNumber != domain.SentinelNumber {
		t.Errorf("CloseNumber = %q, want sentinel", got.Result.CloseNumber)
	}
	if got.Result.Jodi != "0"+domain.UnknownDigitMark {
		t.Errorf("Jodi = %q, want half jodi", got.Result.Jodi)
	}
	// Open-only publication produces no history row.
	if len(env.history.entries) != 0 {
		t.Errorf("history entries = %d, want 0", len(env.history.entries))
	}
}

func TestResetResult(t *testing.T) {
	env := newTestEnv(t)
	m := env.createMarket(t, "Milan Day")

	if _, err := env.declareSvc.Declare(context.Background(), m.MarketID, "123", "456", time.Time{}); err != nil {
		t.Fatal(err)
	}

	got, err := env.declareSvc.ResetResult(context.Background(), m.MarketID)
	if err != nil {
		t.Fatalf("ResetResult: %v", err)
	}
	if got.Result != result.Sentinel() {
		t.Errorf("result = %+v, want sentinel", got.Result)
	}
	if !got.OpenBetting || !got.IsBettingOpen {
		t.Errorf("flags = %v/%v, want true/true", got.OpenBetting, got.IsBettingOpen)
	}
}

func TestOpenAll(t *testing.T) {
	env := newTestEnv(t)
	a := env.createMarket(t, "Milan Day")
	env.createMarket(t, "Rajdhani Night")

	// Close one market, then force-open everything.
	if _, err := env.declareSvc.Declare(context.Background(), a.MarketID, "123", "456", time.Time{}); err != nil {
		t.Fatal(err)
	}

	opened, err := env.marketSvc.OpenAll(context.Background())
	if err != nil {
		t.Fatalf("OpenAll: %v", err)
	}
	if opened != 1 {
		t.Errorf("opened = %d, want 1", opened)
	}
	got, err := env.markets.GetByMarketID(context.Background(), a.MarketID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsBettingOpen {
		t.Error("market still closed after OpenAll")
	}
}

func TestUpdateAndDeleteMarket(t *testing.T) {
	env := newTestEnv(t)
	m := env.createMarket(t, "Milan Day")

	updated, err := env.marketSvc.UpdateMarket(context.Background(), m.MarketID, "Milan Evening", "11:00 AM", "10:00 PM")
	if err != nil {
		t.Fatalf("UpdateMarket: %v", err)
	}
	if updated.Name != "Milan Evening" || updated.OpenTime != "11:00 AM" {
		t.Errorf("updated = %+v", updated)
	}

	if err := env.marketSvc.DeleteMarket(context.Background(), m.MarketID); err != nil {
		t.Fatalf("DeleteMarket: %v", err)
	}
	if _, err := env.marketSvc.GetMarket(context.Background(), m.MarketID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get after delete = %v, want ErrNotFound", err)
	}
}
