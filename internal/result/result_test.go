package result

import (
	"errors"
	"testing"

	"github.com/matkalabs/matkad/internal/domain"
)

func TestDigitSum(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"000", 0},
		{"999", 7},
		{"123", 6},
		{"456", 5},
		{"190", 0},
		{"550", 0},
		{"777", 1},
	}
	for _, tc := range cases {
		got, err := DigitSum(tc.in)
		if err != nil {
			t.Fatalf("DigitSum(%q): unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("DigitSum(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDigitSumRejectsNonDigits(t *testing.T) {
	for _, in := range []string{"", "12a", "-12", "1 3"} {
		if _, err := DigitSum(in); !errors.Is(err, domain.ErrInvalidNumber) {
			t.Errorf("DigitSum(%q): want ErrInvalidNumber, got %v", in, err)
		}
	}
}

func TestValidateNumber(t *testing.T) {
	for _, in := range []string{"000", "123", "999"} {
		if err := ValidateNumber(in); err != nil {
			t.Errorf("ValidateNumber(%q): unexpected error: %v", in, err)
		}
	}
	for _, in := range []string{"", "12", "1234", "12a", "***", "-12"} {
		if err := ValidateNumber(in); !errors.Is(err, domain.ErrInvalidNumber) {
			t.Errorf("ValidateNumber(%q): want ErrInvalidNumber, got %v", in, err)
		}
	}
}

func TestDeclare(t *testing.T) {
	got, err := Declare("123", "456")
	if err != nil {
		t.Fatalf("Declare: %v", err)
	}
	want := domain.Result{
		OpenNumber:       "123",
		CloseNumber:      "456",
		OpenSingleDigit:  6,
		CloseSingleDigit: 5,
		Jodi:             "65",
		OpenSinglePanna:  "123",
		CloseSinglePanna: "456",
	}
	if got != want {
		t.Errorf("Declare(123, 456) = %+v, want %+v", got, want)
	}
}

func TestDeclareZeroDigits(t *testing.T) {
	got, err := Declare("000", "190")
	if err != nil {
		t.Fatalf("Declare: %v", err)
	}
	if got.OpenSingleDigit != 0 || got.CloseSingleDigit != 0 {
		t.Errorf("digits = %d/%d, want 0/0", got.OpenSingleDigit, got.CloseSingleDigit)
	}
	if got.Jodi != "00" {
		t.Errorf("Jodi = %q, want %q", got.Jodi, "00")
	}
}

func TestDeclareRejectsBadInput(t *testing.T) {
	cases := [][2]string{
		{"12", "456"},
		{"1234", "456"},
		{"123", "45x"},
		{"", "456"},
		{"123", ""},
	}
	for _, tc := range cases {
		if _, err := Declare(tc[0], tc[1]); !errors.Is(err, domain.ErrInvalidNumber) {
			t.Errorf("Declare(%q, %q): want ErrInvalidNumber, got %v", tc[0], tc[1], err)
		}
	}
}

func TestPublishOpenOverSentinel(t *testing.T) {
	got, err := PublishOpen(Sentinel(), "280")
	if err != nil {
		t.Fatalf("PublishOpen: %v", err)
	}
	if got.OpenNumber != "280" || got.OpenSingleDigit != 0 || got.OpenSinglePanna != "280" {
		t.Errorf("open fields = %q/%d/%q", got.OpenNumber, got.OpenSingleDigit, got.OpenSinglePanna)
	}
	if got.Jodi != "0"+domain.UnknownDigitMark {
		t.Errorf("Jodi = %q, want %q", got.Jodi, "0"+domain.UnknownDigitMark)
	}
	// The close leg must stay untouched.
	if got.CloseNumber != domain.SentinelNumber || got.CloseSingleDigit != domain.SentinelDigit || got.CloseSinglePanna != domain.SentinelNumber {
		t.Errorf("close fields mutated: %+v", got)
	}
}

func TestPublishOpenKeepsPriorClose(t *testing.T) {
	prior, err := Declare("111", "456")
	if err != nil {
		t.Fatalf("Declare: %v", err)
	}
	got, err := PublishOpen(prior, "222")
	if err != nil {
		t.Fatalf("PublishOpen: %v", err)
	}
	if got.Jodi != "65" {
		t.Errorf("Jodi = %q, want %q", got.Jodi, "65")
	}
	if got.CloseNumber != "456" || got.CloseSingleDigit != 5 || got.CloseSinglePanna != "456" {
		t.Errorf("close fields mutated: %+v", got)
	}
	if got.OpenNumber != "222" || got.OpenSingleDigit != 6 {
		t.Errorf("open fields = %q/%d", got.OpenNumber, got.OpenSingleDigit)
	}
}

func TestPublishOpenRejectsBadInput(t *testing.T) {
	if _, err := PublishOpen(Sentinel(), "22"); !errors.Is(err, domain.ErrInvalidNumber) {
		t.Errorf("want ErrInvalidNumber, got %v", err)
	}
}

func TestSentinelIsUndeclared(t *testing.T) {
	s := Sentinel()
	if s.OpenDeclared() || s.CloseDeclared() || s.Declared() {
		t.Errorf("sentinel reports declared: %+v", s)
	}
	if s != Sentinel() {
		t.Error("Sentinel is not stable across calls")
	}
}
