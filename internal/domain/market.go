package domain

import "time"

// Market is a single betting pool with a daily open/close schedule and at
// most one declared result per cycle.
type Market struct {
	// ID is the internal surrogate key assigned by the store.
	ID int64 `json:"id"`

	// MarketID is the stable external identifier ("MKT-..."). Unique and
	// immutable after creation.
	MarketID string `json:"market_id"`

	// Name is the display name, unique across all markets.
	Name string `json:"name"`

	// OpenTime and CloseTime are civil times of day in the "3:04 PM"
	// format, interpreted every day in the configured market timezone.
	// They are configuration, not instants.
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`

	// OpenBetting reports whether open-leg bets are currently accepted.
	// IsBettingOpen reports whether the market accepts bets at all. The
	// open leg closes before the full market does, so these are
	// independent booleans.
	OpenBetting   bool `json:"open_betting"`
	IsBettingOpen bool `json:"is_betting_open"`

	Result Result `json:"result"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WindowState is the derived three-state view of the two window flags.
type WindowState string

const (
	WindowFullyOpen     WindowState = "fully_open"
	WindowOpenLegClosed WindowState = "open_leg_closed"
	WindowFullyClosed   WindowState = "fully_closed"
)

// Window derives the market's window state from its two flags.
func (m Market) Window() WindowState {
	switch {
	case m.OpenBetting && m.IsBettingOpen:
		return WindowFullyOpen
	case m.IsBettingOpen:
		return WindowOpenLegClosed
	default:
		return WindowFullyClosed
	}
}

// FlagsDelta is a partial update of the two window flags. Nil fields are
// left untouched by the store.
type FlagsDelta struct {
	OpenBetting   *bool
	IsBettingOpen *bool
}

// IsZero reports whether the delta changes nothing.
func (d FlagsDelta) IsZero() bool {
	return d.OpenBetting == nil && d.IsBettingOpen == nil
}

// BoolPtr is a convenience for building FlagsDelta literals.
func BoolPtr(b bool) *bool { return &b }

// ResultEntry is one dated row of declared-result history, kept for
// charts and reporting.
type ResultEntry struct {
	ID               int64     `json:"id"`
	MarketID         string    `json:"market_id"`
	MarketName       string    `json:"market_name"`
	ResultDate       time.Time `json:"result_date"`
	OpenNumber       string    `json:"open_number"`
	CloseNumber      string    `json:"close_number"`
	OpenSingleDigit  int       `json:"open_single_digit"`
	CloseSingleDigit int       `json:"close_single_digit"`
	Jodi             string    `json:"jodi"`
	CreatedAt        time.Time `json:"created_at"`
}
