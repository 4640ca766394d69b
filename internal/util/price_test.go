package util

import (
	"math"
	"testing"
)

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name     string
		x        float64
		tick     float64
		expected float64
	}{
		{
			name:     "basic rounding down",
			x:        1.2345,
			tick:     0.01,
			expected: 1.23,
		},
		{
			name:     "tie rounds away from zero",
			x:        1.235,
			tick:     0.01,
			expected: 1.24,
		},
		{
			name:     "negative tie rounds away from zero",
			x:        -1.235,
			tick:     0.01,
			expected: -1.24,
		},
		{
			name:     "larger tick size",
			x:        1.27,
			tick:     0.05,
			expected: 1.25,
		},
		{
			name:     "exact multiple",
			x:        1.25,
			tick:     0.05,
			expected: 1.25,
		},
		{
			name:     "zero tick returns input",
			x:        1.2345,
			tick:     0,
			expected: 1.2345,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundToTick(tt.x, tt.tick)
			if math.Abs(result-tt.expected) > 1e-10 {
				t.Errorf("RoundToTick(%v, %v) = %v, expected %v", tt.x, tt.tick, result, tt.expected)
			}
		})
	}
}

func TestMidPrice(t *testing.T) {
	tests := []struct {
		name     string
		bid      float64
		ask      float64
		expected float64
	}{
		{name: "even spread", bid: 1.20, ask: 1.30, expected: 1.25},
		{name: "rounds to cents", bid: 1.20, ask: 1.25, expected: 1.23},
		{name: "zero bid", bid: 0, ask: 0.10, expected: 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MidPrice(tt.bid, tt.ask)
			if math.Abs(result-tt.expected) > 1e-10 {
				t.Errorf("MidPrice(%v, %v) = %v, expected %v", tt.bid, tt.ask, result, tt.expected)
			}
		})
	}
}

func TestNearestStrike(t *testing.T) {
	tests := []struct {
		spot     float64
		expected float64
	}{
		{5912.3, 5910},
		{5915.0, 5920},
		{447.8, 450},
		{443.2, 440},
	}

	for _, tt := range tests {
		if result := NearestStrike(tt.spot); math.Abs(result-tt.expected) > 1e-10 {
			t.Errorf("NearestStrike(%v) = %v, expected %v", tt.spot, result, tt.expected)
		}
	}
}

func TestPercentChange(t *testing.T) {
	if got := PercentChange(100, 110); math.Abs(got-10) > 1e-10 {
		t.Errorf("PercentChange(100, 110) = %v, expected 10", got)
	}
	if got := PercentChange(100, 90); math.Abs(got+10) > 1e-10 {
		t.Errorf("PercentChange(100, 90) = %v, expected -10", got)
	}
	if got := PercentChange(0, 50); got != 0 {
		t.Errorf("PercentChange(0, 50) = %v, expected 0", got)
	}
}
