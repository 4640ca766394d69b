// Package ivts works with the implied volatility term structure: the
// ratio of a short-dated VIX index to a longer-dated one, and the EMA
// alignment signal the VIX term-structure strategy trades on.
package ivts

import "fmt"

// Signal is the trading stance derived from the term structure.
type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}

// Ratio divides the short-term series by the long-term one pointwise.
// Both series must be the same length and the long-term values nonzero.
func Ratio(shortTerm, longTerm []float64) ([]float64, error) {
	if len(shortTerm) != len(longTerm) {
		return nil, fmt.Errorf("series length mismatch: %d vs %d", len(shortTerm), len(longTerm))
	}
	out := make([]float64, len(shortTerm))
	for i := range shortTerm {
		if longTerm[i] == 0 {
			return nil, fmt.Errorf("long-term value at index %d is zero", i)
		}
		out[i] = shortTerm[i] / longTerm[i]
	}
	return out, nil
}

// EMA computes an exponential moving average with the standard
// 2/(period+1) smoothing, seeded with the first value.
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 || period < 1 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// TermState carries the four EMA values the signal is computed from:
// short and long EMAs over each of the two VIX series.
type TermState struct {
	ShortVixShortMA float64
	ShortVixLongMA  float64
	LongVixShortMA  float64
	LongVixLongMA   float64
}

// Evaluate returns Buy when the short-dated VIX is below its own long
// EMA and the whole structure is in ascending order (calm contango),
// Sell on the mirrored condition, Hold otherwise.
func (t TermState) Evaluate() Signal {
	buy := t.ShortVixShortMA <= t.ShortVixLongMA &&
		t.ShortVixShortMA <= t.LongVixShortMA &&
		t.LongVixShortMA <= t.LongVixLongMA
	sell := t.ShortVixShortMA >= t.ShortVixLongMA &&
		t.ShortVixShortMA >= t.LongVixShortMA &&
		t.LongVixShortMA >= t.LongVixLongMA
	switch {
	case buy:
		return Buy
	case sell:
		return Sell
	default:
		return Hold
	}
}
