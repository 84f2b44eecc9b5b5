package domain

// Sentinel values marking the parts of a result that have not been
// declared for the current cycle. A legitimate digit sum can be 0, so the
// digit sentinel is -1 rather than zero.
const (
	SentinelNumber = "***"
	SentinelDigit  = -1
	SentinelJodi   = "**"

	// UnknownDigitMark stands in for the close digit in a jodi produced
	// by an open-only publication. It is never a computed guess.
	UnknownDigitMark = "*"
)

// Result is the per-cycle result sub-record of a market. Number and panna
// fields hold 3-digit numeric strings once declared; digit fields hold
// 0-9; Jodi is the two-character concatenation of the single digits.
type Result struct {
	OpenNumber       string `json:"open_number"`
	CloseNumber      string `json:"close_number"`
	OpenSingleDigit  int    `json:"open_single_digit"`
	CloseSingleDigit int    `json:"close_single_digit"`
	Jodi             string `json:"jodi"`
	OpenSinglePanna  string `json:"open_single_panna"`
	CloseSinglePanna string `json:"close_single_panna"`
}

// OpenDeclared reports whether the open leg has a published number.
func (r Result) OpenDeclared() bool { return r.OpenNumber != SentinelNumber }

// CloseDeclared reports whether the close leg has a published number.
func (r Result) CloseDeclared() bool { return r.CloseNumber != SentinelNumber }

// Declared reports whether both legs have been declared.
func (r Result) Declared() bool { return r.OpenDeclared() && r.CloseDeclared() }
