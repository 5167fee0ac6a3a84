package utils

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestGenerateIDPrefixAndLength(t *testing.T) {
	id := GenerateID("abm", 6)
	if !strings.HasPrefix(id, "abm_") {
		t.Fatalf("expected prefix abm_, got %s", id)
	}
	if len(id) != len("abm_")+12 {
		t.Fatalf("expected 6 bytes hex-encoded (12 chars) after prefix, got %s", id)
	}
}

func TestGenerateIDNoPrefix(t *testing.T) {
	id := GenerateID("", 4)
	if strings.Contains(id, "_") {
		t.Fatalf("expected no separator without a prefix, got %s", id)
	}
}

func TestRoundToDecimalPlaces(t *testing.T) {
	d := decimal.NewFromFloat(1.23456789)
	got := RoundToDecimalPlaces(d, 4)
	want := decimal.NewFromFloat(1.2346)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestCalculatePercentageChange(t *testing.T) {
	got := CalculatePercentageChange(decimal.NewFromInt(100), decimal.NewFromInt(150))
	want := decimal.NewFromInt(50)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestCalculatePercentageChangeFromZero(t *testing.T) {
	got := CalculatePercentageChange(decimal.Zero, decimal.NewFromInt(150))
	if !got.IsZero() {
		t.Fatalf("expected zero when old value is zero, got %s", got)
	}
}

func TestCalculateMaxDrawdown(t *testing.T) {
	series := []decimal.Decimal{
		decimal.NewFromInt(100),
		decimal.NewFromInt(120),
		decimal.NewFromInt(60),
		decimal.NewFromInt(90),
	}
	got := CalculateMaxDrawdown(series)
	want := decimal.NewFromFloat(0.5) // peak 120 -> trough 60
	if !got.Equal(want) {
		t.Fatalf("expected drawdown %s, got %s", want, got)
	}
}

func TestCalculateMaxDrawdownTooShort(t *testing.T) {
	got := CalculateMaxDrawdown([]decimal.Decimal{decimal.NewFromInt(100)})
	if !got.IsZero() {
		t.Fatalf("expected zero drawdown for a single-value series, got %s", got)
	}
}

func TestMaxDecimal(t *testing.T) {
	a, b := decimal.NewFromInt(5), decimal.NewFromInt(9)
	if !MaxDecimal(a, b).Equal(b) {
		t.Fatalf("expected %s, got %s", b, MaxDecimal(a, b))
	}
	if !MaxDecimal(b, a).Equal(b) {
		t.Fatalf("expected %s regardless of argument order, got %s", b, MaxDecimal(b, a))
	}
}
