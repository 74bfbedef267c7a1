package billing

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.234, 1.23},
		{1.236, 1.24},
		{249.999, 250.0},
		{100.499, 100.5},
		{0, 0},
	}
	for _, c := range cases {
		if got := Round2(c.in); got != c.want {
			t.Errorf("Round2(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDiscountTypeDiscounted(t *testing.T) {
	if DiscountNone.Discounted() {
		t.Error("none should not be discounted")
	}
	if !DiscountSenior.Discounted() {
		t.Error("senior should be discounted")
	}
	if !DiscountPWD.Discounted() {
		t.Error("pwd should be discounted")
	}
}

func TestInvoiceRemaining(t *testing.T) {
	inv := &Invoice{NetAmount: 200, PaidAmount: 75.5}
	if got := inv.Remaining(); got != 124.5 {
		t.Errorf("expected remaining 124.5, got %v", got)
	}
}

func TestReceiptNumber(t *testing.T) {
	id := uuid.MustParse("3f2a9c00-0000-0000-0000-000000000000")
	at := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)

	got := ReceiptNumber(id, at, 2)
	if got != "OR-20260831-3F2A9C-02" {
		t.Errorf("unexpected receipt number: %s", got)
	}
}

func TestReceiptNumber_DeterministicPerInput(t *testing.T) {
	id := uuid.New()
	at := time.Now()
	if ReceiptNumber(id, at, 1) != ReceiptNumber(id, at, 1) {
		t.Error("expected identical inputs to produce identical receipt numbers")
	}
	if ReceiptNumber(id, at, 1) == ReceiptNumber(id, at, 2) {
		t.Error("expected sequence to vary the receipt number")
	}
	if !strings.HasPrefix(ReceiptNumber(id, at, 1), "OR-") {
		t.Error("expected OR- prefix")
	}
}

func TestStartOfDay_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("PHT", 8*3600)
	ts := time.Date(2026, 8, 31, 1, 30, 0, 0, loc)

	got := startOfDay(ts)
	want := time.Date(2026, 8, 31, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got.Location() != loc {
		t.Errorf("location must be preserved, got %v", got.Location())
	}
	// A pre-dawn timestamp east of UTC stays on its own calendar day; a UTC
	// truncation would have landed it on the 30th.
	if got.Day() != 31 {
		t.Errorf("expected day 31, got %d", got.Day())
	}
}
