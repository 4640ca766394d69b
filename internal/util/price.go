// Package util provides common utility functions for price calculations.
package util

import "math"

// RoundToTick rounds x to the nearest tick increment.
// For example, with tick=0.01, 1.2345 becomes 1.23 or 1.24 depending on rounding.
func RoundToTick(x, tick float64) float64 {
	if tick <= 0 {
		return x
	}
	return math.Round(x/tick) * tick
}

// MidPrice returns the bid/ask midpoint rounded to cents.
func MidPrice(bid, ask float64) float64 {
	return RoundToTick((bid+ask)/2, 0.01)
}

// NearestStrike rounds a spot price to the nearest strike on a ten-point
// grid, matching the index chains the tools work with.
func NearestStrike(spot float64) float64 {
	return RoundToTick(spot, 10)
}

// PercentChange returns the change from old to new as a percentage.
// A zero old value yields zero rather than Inf.
func PercentChange(oldValue, newValue float64) float64 {
	if oldValue == 0 {
		return 0
	}
	return (newValue/oldValue - 1) * 100
}
