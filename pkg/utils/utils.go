// Package utils provides small decimal and id helpers shared across the
// simulation engine.
package utils

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateID derives a hex id of the given byte length from a fresh random
// UUID's entropy, optionally prefixed with "prefix_".
func GenerateID(prefix string, byteLength int) string {
	u := uuid.New()
	n := byteLength
	if n > len(u) {
		n = len(u)
	}
	id := hex.EncodeToString(u[:n])
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// RoundToDecimalPlaces rounds a decimal to specified places.
func RoundToDecimalPlaces(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// CalculatePercentageChange calculates percentage change between two values.
func CalculatePercentageChange(old, new decimal.Decimal) decimal.Decimal {
	if old.IsZero() {
		return decimal.Zero
	}
	return new.Sub(old).Div(old).Mul(decimal.NewFromInt(100))
}

// CalculateMaxDrawdown calculates maximum drawdown from a value series
// (e.g. a price or supply history).
func CalculateMaxDrawdown(series []decimal.Decimal) decimal.Decimal {
	if len(series) < 2 {
		return decimal.Zero
	}

	maxDrawdown := decimal.Zero
	peak := series[0]

	for _, value := range series {
		if value.GreaterThan(peak) {
			peak = value
		}
		if peak.IsZero() {
			continue
		}
		drawdown := peak.Sub(value).Div(peak)
		if drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
		}
	}

	return maxDrawdown
}

// MaxDecimal returns the maximum of two decimals.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

