package vesting

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestScheduleCliffThenLinear(t *testing.T) {
	// 12-month cliff, 24-month linear vesting, no TGE unlock, 1,000,000 total.
	s := FromBucket(decimal.NewFromInt(1_000_000), 0.0, 12, 24)

	for i := 0; i < 12; i++ {
		got := s.AdvanceMonth()
		if !got.IsZero() {
			t.Fatalf("month %d: expected zero unlock during cliff, got %s", i, got)
		}
	}

	expectedMonthly := decimal.NewFromInt(1_000_000).Div(decimal.NewFromInt(24))
	for i := 12; i < 36; i++ {
		got := s.AdvanceMonth()
		if !got.Equal(expectedMonthly) {
			t.Fatalf("month %d: expected %s, got %s", i, expectedMonthly, got)
		}
	}

	got := s.AdvanceMonth()
	if !got.IsZero() {
		t.Fatalf("expected zero unlock after vesting completes, got %s", got)
	}

	if !s.RemainingLocked().IsZero() {
		t.Fatalf("expected fully unlocked allocation, remaining %s", s.RemainingLocked())
	}
}

func TestScheduleFullTGE(t *testing.T) {
	s := FromBucket(decimal.NewFromInt(500_000), 1.0, 0, 0)

	got := s.AdvanceMonth()
	if !got.Equal(decimal.NewFromInt(500_000)) {
		t.Fatalf("expected full TGE unlock, got %s", got)
	}

	got = s.AdvanceMonth()
	if !got.IsZero() {
		t.Fatalf("expected zero unlock after full TGE, got %s", got)
	}
}

func TestScheduleNoCliffWithVesting(t *testing.T) {
	// cliff == 0 with vesting: month 0 gets TGE plus one installment.
	s := FromBucket(decimal.NewFromInt(120_000), 0.1, 0, 12)

	expectedMonthly := decimal.NewFromInt(108_000).Div(decimal.NewFromInt(12))
	first := s.AdvanceMonth()
	expectedFirst := decimal.NewFromInt(12_000).Add(expectedMonthly)
	if !first.Equal(expectedFirst) {
		t.Fatalf("expected month 0 unlock %s, got %s", expectedFirst, first)
	}

	for i := 1; i < 11; i++ {
		got := s.AdvanceMonth()
		if !got.Equal(expectedMonthly) {
			t.Fatalf("month %d: expected %s, got %s", i, expectedMonthly, got)
		}
	}

	if s.RemainingLocked().IsZero() {
		t.Fatalf("did not expect fully unlocked yet")
	}
}

func TestIsCliffMonth(t *testing.T) {
	s := FromBucket(decimal.NewFromInt(1000), 0, 6, 12)
	for i := 0; i < 6; i++ {
		if s.IsCliffMonth() {
			t.Fatalf("month %d should not report cliff month yet", s.CurrentMonth())
		}
		s.AdvanceMonth()
	}
	if !s.IsCliffMonth() {
		t.Fatalf("expected cliff month at current month %d", s.CurrentMonth())
	}
}
