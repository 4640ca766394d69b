// Package pricing implements the closed-form options math used across the
// tools: Black-Scholes prices and Greeks, implied volatility, payoff
// curves for multi-leg positions and strategy-shape classification.
package pricing

import (
	"math"

	"github.com/quarrydale/tradetools/internal/models"
)

const (
	ivMaxIterations = 100
	ivEpsilon       = 1e-8
	// vegaFloor guards the Newton step against division blowing up for
	// deep OTM contracts near expiry.
	vegaFloor = 1e-10
)

// Greeks holds the first-order sensitivities of a priced contract.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// Quote is the result of pricing a single contract.
type Quote struct {
	Price             float64
	ImpliedVolatility float64
	Greeks
}

// Price returns the Black-Scholes value of a European option.
// S is spot, K strike, T time to expiry in years, r the continuously
// compounded risk-free rate and sigma the annualized volatility.
// With T or sigma at or below zero the option is worth intrinsic value.
func Price(s, k, t, r, sigma float64, optType models.OptionType) float64 {
	if t <= 0 || sigma <= 0 {
		return intrinsic(s, k, optType)
	}
	d1, d2 := dValues(s, k, t, r, sigma)
	if optType == models.Call {
		return s*normCDF(d1) - k*math.Exp(-r*t)*normCDF(d2)
	}
	return k*math.Exp(-r*t)*normCDF(-d2) - s*normCDF(-d1)
}

// Value prices a contract and computes its Greeks in one pass.
func Value(s, k, t, r, sigma float64, optType models.OptionType) Quote {
	if t <= 0 || sigma <= 0 {
		return Quote{Price: intrinsic(s, k, optType)}
	}
	d1, d2 := dValues(s, k, t, r, sigma)
	sqrtT := math.Sqrt(t)
	discount := math.Exp(-r * t)

	q := Quote{}
	q.Gamma = normPDF(d1) / (s * sigma * sqrtT)
	q.Vega = s * normPDF(d1) * sqrtT

	if optType == models.Call {
		q.Price = s*normCDF(d1) - k*discount*normCDF(d2)
		q.Delta = normCDF(d1)
		q.Theta = -(s*normPDF(d1)*sigma)/(2*sqrtT) - r*k*discount*normCDF(d2)
		q.Rho = k * t * discount * normCDF(d2)
	} else {
		q.Price = k*discount*normCDF(-d2) - s*normCDF(-d1)
		q.Delta = normCDF(d1) - 1
		q.Theta = -(s*normPDF(d1)*sigma)/(2*sqrtT) + r*k*discount*normCDF(-d2)
		q.Rho = -k * t * discount * normCDF(-d2)
	}
	return q
}

// ImpliedVolatility solves for the volatility that reproduces targetPrice
// using Newton iteration. Returns NaN when the search fails to converge.
func ImpliedVolatility(targetPrice, s, k, t, r float64, optType models.OptionType) float64 {
	if t <= 0 || targetPrice <= 0 {
		return math.NaN()
	}
	sigma := 0.5 // initial guess
	for i := 0; i < ivMaxIterations; i++ {
		price := Price(s, k, t, r, sigma, optType)
		vega := vega(s, k, t, r, sigma)
		diff := price - targetPrice
		if math.Abs(diff) < ivEpsilon {
			return sigma
		}
		if vega < vegaFloor {
			return math.NaN()
		}
		sigma -= diff / vega
		if sigma <= 0 {
			sigma = 0.0001
		}
	}
	return math.NaN()
}

// ExpectedMove estimates the one-sigma expected move implied by the ATM
// straddle: straddle mid price scaled for the remaining time. The bands
// returned are spot +/- the move.
func ExpectedMove(spot, straddleMid float64) (move, upper, lower float64) {
	move = straddleMid
	return move, spot + move, spot - move
}

// AnnualizedFromReturns converts a per-bar return standard deviation into
// annualized volatility assuming 252 trading days.
func AnnualizedFromReturns(stdReturn float64) float64 {
	return stdReturn * math.Sqrt(252)
}

func dValues(s, k, t, r, sigma float64) (d1, d2 float64) {
	d1 = (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
	d2 = d1 - sigma*math.Sqrt(t)
	return d1, d2
}

func vega(s, k, t, r, sigma float64) float64 {
	d1, _ := dValues(s, k, t, r, sigma)
	return s * normPDF(d1) * math.Sqrt(t)
}

func intrinsic(s, k float64, optType models.OptionType) float64 {
	if optType == models.Call {
		return math.Max(s-k, 0)
	}
	return math.Max(k-s, 0)
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
