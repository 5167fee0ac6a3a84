// Package vesting implements TGE/cliff/linear unlock schedules for a token
// allocation bucket.
package vesting

import "github.com/shopspring/decimal"

// Config describes one bucket's vesting terms.
type Config struct {
	TotalAllocation decimal.Decimal
	TGEPercent      float64 // fraction unlocked at month 0, e.g. 0.1 for 10%
	CliffMonths     int     // months before linear vesting begins
	VestingMonths   int     // number of monthly installments after the cliff
}

// Schedule tracks the cumulative unlock state for one bucket's allocation.
type Schedule struct {
	cfg               Config
	tgeAmount         decimal.Decimal
	monthlyUnlockRate decimal.Decimal

	currentMonth     int
	cumulativeUnlock decimal.Decimal
}

// NewSchedule builds a Schedule from a Config.
func NewSchedule(cfg Config) *Schedule {
	tge := cfg.TotalAllocation.Mul(decimal.NewFromFloat(cfg.TGEPercent))
	remaining := cfg.TotalAllocation.Sub(tge)

	var rate decimal.Decimal
	if cfg.VestingMonths > 0 {
		rate = remaining.Div(decimal.NewFromInt(int64(cfg.VestingMonths)))
	}

	return &Schedule{
		cfg:               cfg,
		tgeAmount:         tge,
		monthlyUnlockRate: rate,
		cumulativeUnlock:  decimal.Zero,
	}
}

// FromBucket is a convenience constructor that takes a bucket's vesting
// terms as separate arguments instead of a Config.
func FromBucket(totalAllocation decimal.Decimal, tgePercent float64, cliffMonths, vestingMonths int) *Schedule {
	return NewSchedule(Config{
		TotalAllocation: totalAllocation,
		TGEPercent:      tgePercent,
		CliffMonths:     cliffMonths,
		VestingMonths:   vestingMonths,
	})
}

// unlockForMonth returns the amount that unlocks at the given zero-based
// month index, without mutating schedule state.
func (s *Schedule) unlockForMonth(monthIndex int) decimal.Decimal {
	if monthIndex == 0 {
		unlock := s.tgeAmount
		if s.cfg.CliffMonths == 0 && s.cfg.VestingMonths > 0 {
			unlock = unlock.Add(s.monthlyUnlockRate)
		}
		return unlock
	}

	if monthIndex < s.cfg.CliffMonths {
		return decimal.Zero
	}

	var vestingMonthIndex int
	if s.cfg.CliffMonths == 0 {
		// Month 0 already consumed vesting installment 1.
		vestingMonthIndex = monthIndex
	} else {
		vestingMonthIndex = monthIndex - s.cfg.CliffMonths
	}

	if vestingMonthIndex < s.cfg.VestingMonths {
		return s.monthlyUnlockRate
	}
	return decimal.Zero
}

// AdvanceMonth moves the schedule forward one month, returning the amount
// newly unlocked this month, and records it into cumulative unlock state.
func (s *Schedule) AdvanceMonth() decimal.Decimal {
	unlock := s.unlockForMonth(s.currentMonth)
	s.cumulativeUnlock = s.cumulativeUnlock.Add(unlock)
	s.currentMonth++
	return unlock
}

// IsCliffMonth reports whether the current month (before AdvanceMonth is
// called) is exactly the cliff boundary month.
func (s *Schedule) IsCliffMonth() bool {
	return s.cfg.CliffMonths > 0 && s.currentMonth == s.cfg.CliffMonths
}

// RemainingLocked returns the allocation still locked, floored at zero so
// rounding in the per-month installment cannot report a negative balance
// once vesting completes.
func (s *Schedule) RemainingLocked() decimal.Decimal {
	remaining := s.cfg.TotalAllocation.Sub(s.cumulativeUnlock)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// CumulativeUnlocked returns the total unlocked so far.
func (s *Schedule) CumulativeUnlocked() decimal.Decimal {
	return s.cumulativeUnlock
}

// CurrentMonth returns the next month index AdvanceMonth will process.
func (s *Schedule) CurrentMonth() int {
	return s.currentMonth
}
