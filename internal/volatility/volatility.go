// Package volatility implements realized-volatility estimators over daily
// OHLC bars. All estimators return annualized figures assuming 252
// trading days; a zero result means the input was too short or degenerate.
package volatility

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const tradingDays = 252

// Bar is the OHLC slice of a daily candle.
type Bar struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// CloseToClose is the classic estimator: stdev of log close returns.
func CloseToClose(bars []Bar) float64 {
	if len(bars) < 2 {
		return 0
	}
	returns := LogReturns(bars)
	sd := stat.StdDev(returns, nil)
	return sd * math.Sqrt(tradingDays)
}

// Parkinson uses the daily high/low range, which picks up intraday
// movement the close-to-close estimator misses.
func Parkinson(bars []Bar) float64 {
	n := len(bars)
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		if b.Low <= 0 || b.High < b.Low {
			return 0
		}
		hl := math.Log(b.High / b.Low)
		sum += hl * hl
	}
	daily := math.Sqrt(sum / (4 * math.Ln2 * float64(n)))
	return daily * math.Sqrt(tradingDays)
}

// GarmanKlass extends Parkinson with the open-close drift term.
func GarmanKlass(bars []Bar) float64 {
	n := len(bars)
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		if b.Low <= 0 || b.Open <= 0 {
			return 0
		}
		hl := math.Log(b.High / b.Low)
		co := math.Log(b.Close / b.Open)
		sum += 0.5*hl*hl - (2*math.Ln2-1)*co*co
	}
	daily := math.Sqrt(sum / float64(n))
	return daily * math.Sqrt(tradingDays)
}

// YangZhang combines overnight, open-to-close and Rogers-Satchell
// variance so gaps and drift are both handled.
func YangZhang(bars []Bar) float64 {
	n := len(bars)
	if n < 2 {
		return 0
	}
	k := 0.34 / (1.34 + float64(n+1)/float64(n-1))
	overnight := gapVariance(bars)
	openClose := openCloseVariance(bars)
	rs := rogersSatchell(bars)
	variance := overnight + k*openClose + (1-k)*rs
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance) * math.Sqrt(tradingDays)
}

// LogReturns computes close-to-close log returns, one fewer than bars.
func LogReturns(bars []Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		out = append(out, math.Log(bars[i].Close/bars[i-1].Close))
	}
	return out
}

// ReturnStats returns the mean and standard deviation of simple
// (percentage) close returns.
func ReturnStats(bars []Bar) (mean, sd float64) {
	if len(bars) < 2 {
		return 0, 0
	}
	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		returns = append(returns, bars[i].Close/bars[i-1].Close-1)
	}
	return stat.Mean(returns, nil), stat.StdDev(returns, nil)
}

// EWMA computes an exponentially weighted volatility with decay lambda
// (RiskMetrics uses 0.94), annualized.
func EWMA(bars []Bar, lambda float64) float64 {
	returns := LogReturns(bars)
	if len(returns) == 0 || lambda <= 0 || lambda >= 1 {
		return 0
	}
	variance := returns[0] * returns[0]
	for _, r := range returns[1:] {
		variance = lambda*variance + (1-lambda)*r*r
	}
	return math.Sqrt(variance) * math.Sqrt(tradingDays)
}

func gapVariance(bars []Bar) float64 {
	n := len(bars)
	sum, mean := 0.0, 0.0
	for i := 1; i < n; i++ {
		r := math.Log(bars[i].Open / bars[i-1].Close)
		mean += r
		sum += r * r
	}
	mean /= float64(n - 1)
	return (sum/float64(n-1) - mean*mean) * float64(n) / float64(n-1)
}

func openCloseVariance(bars []Bar) float64 {
	n := len(bars)
	sum, mean := 0.0, 0.0
	for i := 1; i < n; i++ {
		r := math.Log(bars[i].Close / bars[i].Open)
		mean += r
		sum += r * r
	}
	mean /= float64(n - 1)
	return (sum/float64(n-1) - mean*mean) * float64(n) / float64(n-1)
}

func rogersSatchell(bars []Bar) float64 {
	n := len(bars)
	sum := 0.0
	for _, b := range bars {
		hc := math.Log(b.High / b.Close)
		ho := math.Log(b.High / b.Open)
		lc := math.Log(b.Low / b.Close)
		lo := math.Log(b.Low / b.Open)
		sum += hc*ho + lc*lo
	}
	return sum / float64(n)
}
