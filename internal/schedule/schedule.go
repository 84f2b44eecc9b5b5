// Package schedule turns a market's civil open/close times into concrete
// betting-window decisions for a given wall-clock instant. All civil-time
// math happens in one configured location so that a market's "10:00 AM"
// means the same thing every day regardless of the host timezone.
package schedule

import (
	"fmt"
	"time"

	"github.com/matkalabs/matkad/internal/domain"
)

// DefaultTimezone is the market timezone used when none is configured.
const DefaultTimezone = "Asia/Kolkata"

// timeLayout is the civil time-of-day format markets are stored with.
const timeLayout = "3:04 PM"

// Clock abstracts wall-clock reads so the scheduler can be tested at
// fixed instants.
type Clock interface {
	Now() time.Time
}

// realClock reads the system clock in a fixed location.
type realClock struct {
	loc *time.Location
}

func (c realClock) Now() time.Time { return time.Now().In(c.loc) }

// NewClock returns a Clock that reports the current time in loc.
func NewClock(loc *time.Location) Clock {
	return realClock{loc: loc}
}

// ParseTimeOfDay parses a civil time-of-day string such as "10:00 AM".
// The result carries only hour and minute; callers anchor it to a date
// with OnDay.
func ParseTimeOfDay(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: parse time of day %q: %w", s, err)
	}
	return t, nil
}

// OnDay anchors a parsed time-of-day to the civil date of ref, in ref's
// location.
func OnDay(tod, ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), tod.Hour(), tod.Minute(), 0, 0, ref.Location())
}

// Deadline returns today's betting deadline for the given civil
// time-of-day string: the anchored instant minus offset.
func Deadline(timeOfDay string, ref time.Time, offset time.Duration) (time.Time, error) {
	tod, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return OnDay(tod, ref).Add(-offset), nil
}

// Decision is the flag state a market should be in at a given instant.
type Decision struct {
	OpenBetting   bool
	IsBettingOpen bool
	// Reopen reports that the decision came from the post-midnight reopen
	// window rather than from deadline comparison.
	Reopen bool
}

// Evaluator computes window decisions from market schedules.
type Evaluator struct {
	// CloseOffset is subtracted from each civil open/close time to form
	// the betting deadline.
	CloseOffset time.Duration
	// ReopenStartHour and ReopenEndHour bound the post-midnight window,
	// in civil hours [start, end), during which every market is forced
	// fully open for the new cycle.
	ReopenStartHour int
	ReopenEndHour   int
}

// NewEvaluator returns an Evaluator with the production defaults: a
// 10-minute close offset and a reopen window covering civil hours 0 and 1.
func NewEvaluator() Evaluator {
	return Evaluator{
		CloseOffset:     10 * time.Minute,
		ReopenStartHour: 0,
		ReopenEndHour:   2,
	}
}

// InReopenWindow reports whether now's civil hour falls inside the
// post-midnight reopen window.
func (e Evaluator) InReopenWindow(now time.Time) bool {
	h := now.Hour()
	return h >= e.ReopenStartHour && h < e.ReopenEndHour
}

// Evaluate returns the flag state m should hold at now. The reopen window
// takes precedence over deadline comparison; outside it, each leg is open
// strictly before its deadline and closed at or after it.
func (e Evaluator) Evaluate(m domain.Market, now time.Time) (Decision, error) {
	if e.InReopenWindow(now) {
		return Decision{OpenBetting: true, IsBettingOpen: true, Reopen: true}, nil
	}

	openDeadline, err := Deadline(m.OpenTime, now, e.CloseOffset)
	if err != nil {
		return Decision{}, fmt.Errorf("market %s open time: %w", m.MarketID, err)
	}
	closeDeadline, err := Deadline(m.CloseTime, now, e.CloseOffset)
	if err != nil {
		return Decision{}, fmt.Errorf("market %s close time: %w", m.MarketID, err)
	}

	return Decision{
		OpenBetting:   now.Before(openDeadline),
		IsBettingOpen: now.Before(closeDeadline),
	}, nil
}

// Delta compares the decision against the market's current flags and
// returns only the fields that must change. A converged market yields a
// zero delta and therefore no write.
func (d Decision) Delta(m domain.Market) domain.FlagsDelta {
	var delta domain.FlagsDelta
	if m.OpenBetting != d.OpenBetting {
		delta.OpenBetting = domain.BoolPtr(d.OpenBetting)
	}
	if m.IsBettingOpen != d.IsBettingOpen {
		delta.IsBettingOpen = domain.BoolPtr(d.IsBettingOpen)
	}
	return delta
}

// ValidateTimes checks that both civil time strings parse, for admission
// control on market create and update.
func ValidateTimes(openTime, closeTime string) error {
	if _, err := ParseTimeOfDay(openTime); err != nil {
		return fmt.Errorf("open time: %w", err)
	}
	if _, err := ParseTimeOfDay(closeTime); err != nil {
		return fmt.Errorf("close time: %w", err)
	}
	return nil
}
