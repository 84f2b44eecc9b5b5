// Package result holds the pure computation rules for matka results:
// digit sums, jodi codes, panna echoes, and the sentinel record used
// between cycles. Nothing here touches storage or the clock.
package result

import (
	"fmt"
	"strconv"

	"github.com/matkalabs/matkad/internal/domain"
)

// numberLen is the required length of a raw open/close number.
const numberLen = 3

// ValidateNumber checks that s is a 3-digit numeric string. It returns a
// domain.ErrInvalidNumber-wrapped error otherwise; callers must reject
// the input rather than coerce it.
func ValidateNumber(s string) error {
	if len(s) != numberLen {
		return fmt.Errorf("%w: %q must be exactly %d digits", domain.ErrInvalidNumber, s, numberLen)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: %q contains non-digit character %q", domain.ErrInvalidNumber, s, c)
		}
	}
	return nil
}

// DigitSum returns the mod-10 sum of the decimal digits of s. s must be
// all digits; otherwise an error is returned and the value is -1.
func DigitSum(s string) (int, error) {
	if s == "" {
		return -1, fmt.Errorf("%w: empty number", domain.ErrInvalidNumber)
	}
	sum := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return -1, fmt.Errorf("%w: %q contains non-digit character %q", domain.ErrInvalidNumber, s, c)
		}
		sum += int(c - '0')
	}
	return sum % 10, nil
}

// Sentinel returns the undeclared result record. Applying it twice is the
// same as applying it once.
func Sentinel() domain.Result {
	return domain.Result{
		OpenNumber:       domain.SentinelNumber,
		CloseNumber:      domain.SentinelNumber,
		OpenSingleDigit:  domain.SentinelDigit,
		CloseSingleDigit: domain.SentinelDigit,
		Jodi:             domain.SentinelJodi,
		OpenSinglePanna:  domain.SentinelNumber,
		CloseSinglePanna: domain.SentinelNumber,
	}
}

// Declare computes the full result record for a cycle from the two raw
// 3-digit numbers. The jodi is always exactly two characters.
func Declare(openNumber, closeNumber string) (domain.Result, error) {
	if err := ValidateNumber(openNumber); err != nil {
		return domain.Result{}, fmt.Errorf("open number: %w", err)
	}
	if err := ValidateNumber(closeNumber); err != nil {
		return domain.Result{}, fmt.Errorf("close number: %w", err)
	}

	openDigit, err := DigitSum(openNumber)
	if err != nil {
		return domain.Result{}, fmt.Errorf("open number: %w", err)
	}
	closeDigit, err := DigitSum(closeNumber)
	if err != nil {
		return domain.Result{}, fmt.Errorf("close number: %w", err)
	}

	return domain.Result{
		OpenNumber:       openNumber,
		CloseNumber:      closeNumber,
		OpenSingleDigit:  openDigit,
		CloseSingleDigit: closeDigit,
		Jodi:             strconv.Itoa(openDigit) + strconv.Itoa(closeDigit),
		OpenSinglePanna:  openNumber,
		CloseSinglePanna: closeNumber,
	}, nil
}

// PublishOpen computes the open-side fields over a market's prior result.
// Close-side fields are carried through untouched. The jodi combines the
// fresh open digit with the prior close digit when one exists, or the
// unknown marker when it does not; a missing half is never guessed.
func PublishOpen(prior domain.Result, openNumber string) (domain.Result, error) {
	if err := ValidateNumber(openNumber); err != nil {
		return domain.Result{}, fmt.Errorf("open number: %w", err)
	}

	openDigit, err := DigitSum(openNumber)
	if err != nil {
		return domain.Result{}, fmt.Errorf("open number: %w", err)
	}

	closeHalf := domain.UnknownDigitMark
	if prior.CloseSingleDigit != domain.SentinelDigit {
		closeHalf = strconv.Itoa(prior.CloseSingleDigit)
	}

	out := prior
	out.OpenNumber = openNumber
	out.OpenSingleDigit = openDigit
	out.OpenSinglePanna = openNumber
	out.Jodi = strconv.Itoa(openDigit) + closeHalf
	return out, nil
}
