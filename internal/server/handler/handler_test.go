package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matkalabs/matkad/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMarketService returns canned values for the market handlers.
type fakeMarketService struct {
	market  domain.Market
	markets []domain.Market
	err     error
}

func (f *fakeMarketService) CreateMarket(ctx context.Context, name, openTime, closeTime string) (domain.Market, error) {
	return f.market, f.err
}

func (f *fakeMarketService) UpdateMarket(ctx context.Context, marketID, name, openTime, closeTime string) (domain.Market, error) {
	return f.market, f.err
}

func (f *fakeMarketService) DeleteMarket(ctx context.Context, marketID string) error {
	return f.err
}

func (f *fakeMarketService) GetMarket(ctx context.Context, marketID string) (domain.Market, error) {
	return f.market, f.err
}

func (f *fakeMarketService) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	return f.markets, f.err
}

func (f *fakeMarketService) Count(ctx context.Context) (int64, error) {
	return int64(len(f.markets)), f.err
}

// fakeDeclarationService records the last call and returns canned values.
type fakeDeclarationService struct {
	market  domain.Market
	entries []domain.ResultEntry
	err     error

	lastMarketID string
	lastOpen     string
	lastClose    string
	lastDate     time.Time
}

func (f *fakeDeclarationService) Declare(ctx context.Context, marketID, openNumber, closeNumber string, resultDate time.Time) (domain.Market, error) {
	f.lastMarketID, f.lastOpen, f.lastClose = marketID, openNumber, closeNumber
	f.lastDate = resultDate
	return f.market, f.err
}

func (f *fakeDeclarationService) PublishOpen(ctx context.Context, marketID, openNumber string) (domain.Market, error) {
	f.lastMarketID, f.lastOpen = marketID, openNumber
	return f.market, f.err
}

func (f *fakeDeclarationService) ResetResult(ctx context.Context, marketID string) (domain.Market, error) {
	f.lastMarketID = marketID
	return f.market, f.err
}

func (f *fakeDeclarationService) History(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.ResultEntry, error) {
	f.lastMarketID = marketID
	return f.entries, f.err
}

func newMux(markets MarketService, declarations DeclarationService) *http.ServeMux {
	mh := NewMarketHandler(markets, discardLogger())
	dh := NewDeclarationHandler(declarations, discardLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets", mh.ListMarkets)
	mux.HandleFunc("GET /api/markets/{marketId}", mh.GetMarket)
	mux.HandleFunc("POST /api/admin/markets", mh.CreateMarket)
	mux.HandleFunc("PUT /api/admin/markets/{marketId}", mh.UpdateMarket)
	mux.HandleFunc("DELETE /api/admin/markets/{marketId}", mh.DeleteMarket)
	mux.HandleFunc("POST /api/admin/markets/declare", dh.Declare)
	mux.HandleFunc("POST /api/admin/markets/publish-open", dh.PublishOpen)
	mux.HandleFunc("POST /api/admin/markets/reset-result", dh.ResetResult)
	mux.HandleFunc("GET /api/admin/results", dh.History)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestGetMarket(t *testing.T) {
	markets := &fakeMarketService{market: domain.Market{MarketID: "MKT-1", Name: "Milan Day"}}
	mux := newMux(markets, &fakeDeclarationService{})

	rec := doRequest(t, mux, http.MethodGet, "/api/markets/MKT-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got domain.Market
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.MarketID != "MKT-1" {
		t.Errorf("MarketID = %q", got.MarketID)
	}
}

func TestGetMarketNotFound(t *testing.T) {
	markets := &fakeMarketService{err: domain.ErrNotFound}
	mux := newMux(markets, &fakeDeclarationService{})

	rec := doRequest(t, mux, http.MethodGet, "/api/markets/MKT-missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListMarkets(t *testing.T) {
	markets := &fakeMarketService{markets: []domain.Market{
		{MarketID: "MKT-1"}, {MarketID: "MKT-2"},
	}}
	mux := newMux(markets, &fakeDeclarationService{})

	rec := doRequest(t, mux, http.MethodGet, "/api/markets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got listMarketsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Total != 2 || len(got.Markets) != 2 {
		t.Errorf("total = %d, markets = %d", got.Total, len(got.Markets))
	}
}

func TestCreateMarket(t *testing.T) {
	markets := &fakeMarketService{market: domain.Market{MarketID: "MKT-new", Name: "Milan Day"}}
	mux := newMux(markets, &fakeDeclarationService{})

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/markets",
		`{"name":"Milan Day","open_time":"10:00 AM","close_time":"9:00 PM"}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
}

func TestCreateMarketConflict(t *testing.T) {
	markets := &fakeMarketService{err: domain.ErrAlreadyExists}
	mux := newMux(markets, &fakeDeclarationService{})

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/markets",
		`{"name":"Milan Day","open_time":"10:00 AM","close_time":"9:00 PM"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestCreateMarketBadBody(t *testing.T) {
	mux := newMux(&fakeMarketService{}, &fakeDeclarationService{})

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/markets", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeclare(t *testing.T) {
	decl := &fakeDeclarationService{market: domain.Market{MarketID: "MKT-1"}}
	mux := newMux(&fakeMarketService{}, decl)

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/markets/declare",
		`{"market_id":"MKT-1","open_number":"123","close_number":"456"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if decl.lastMarketID != "MKT-1" || decl.lastOpen != "123" || decl.lastClose != "456" {
		t.Errorf("service called with %q/%q/%q", decl.lastMarketID, decl.lastOpen, decl.lastClose)
	}
	if !decl.lastDate.IsZero() {
		t.Errorf("date = %v, want zero when omitted", decl.lastDate)
	}
}

func TestDeclareBackdated(t *testing.T) {
	decl := &fakeDeclarationService{market: domain.Market{MarketID: "MKT-1"}}
	mux := newMux(&fakeMarketService{}, decl)

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/markets/declare",
		`{"market_id":"MKT-1","open_number":"123","close_number":"456","date":"2026-08-01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	want := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	if !decl.lastDate.Equal(want) {
		t.Errorf("date = %v, want %v", decl.lastDate, want)
	}
}

func TestDeclareBadDate(t *testing.T) {
	decl := &fakeDeclarationService{market: domain.Market{MarketID: "MKT-1"}}
	mux := newMux(&fakeMarketService{}, decl)

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/markets/declare",
		`{"market_id":"MKT-1","open_number":"123","close_number":"456","date":"01-08-2026"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if decl.lastMarketID != "" {
		t.Error("service called despite malformed date")
	}
}

func TestDeclareInvalidNumber(t *testing.T) {
	decl := &fakeDeclarationService{err: domain.ErrInvalidNumber}
	mux := newMux(&fakeMarketService{}, decl)

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/markets/declare",
		`{"market_id":"MKT-1","open_number":"12x","close_number":"456"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeclareMissingMarketID(t *testing.T) {
	mux := newMux(&fakeMarketService{}, &fakeDeclarationService{})

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/markets/declare",
		`{"open_number":"123","close_number":"456"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeclareLockHeld(t *testing.T) {
	decl := &fakeDeclarationService{err: domain.ErrLockHeld}
	mux := newMux(&fakeMarketService{}, decl)

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/markets/declare",
		`{"market_id":"MKT-1","open_number":"123","close_number":"456"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestPublishOpen(t *testing.T) {
	decl := &fakeDeclarationService{market: domain.Market{MarketID: "MKT-1"}}
	mux := newMux(&fakeMarketService{}, decl)

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/markets/publish-open",
		`{"market_id":"MKT-1","open_number":"280"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if decl.lastOpen != "280" {
		t.Errorf("open number = %q, want 280", decl.lastOpen)
	}
}

func TestResetResult(t *testing.T) {
	decl := &fakeDeclarationService{market: domain.Market{MarketID: "MKT-1"}}
	mux := newMux(&fakeMarketService{}, decl)

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/markets/reset-result",
		`{"market_id":"MKT-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if decl.lastMarketID != "MKT-1" {
		t.Errorf("market id = %q", decl.lastMarketID)
	}
}

func TestHistoryFiltersByMarket(t *testing.T) {
	decl := &fakeDeclarationService{entries: []domain.ResultEntry{{MarketID: "MKT-1", Jodi: "65"}}}
	mux := newMux(&fakeMarketService{}, decl)

	rec := doRequest(t, mux, http.MethodGet, "/api/admin/results?market_id=MKT-1&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if decl.lastMarketID != "MKT-1" {
		t.Errorf("market filter = %q", decl.lastMarketID)
	}

	var got historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Results) != 1 || got.Results[0].Jodi != "65" {
		t.Errorf("results = %+v", got.Results)
	}
	if got.Limit != 10 {
		t.Errorf("limit = %d, want 10", got.Limit)
	}
}
