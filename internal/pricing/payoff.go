package pricing

import (
	"fmt"
	"math"

	"github.com/quarrydale/tradetools/internal/models"
)

// payoffGridPoints controls the resolution of the payoff curve. A
// thousand points keeps interpolated breakevens within a cent on the
// grids the tools use.
const payoffGridPoints = 1000

// LegAnalysis summarizes a single leg in isolation.
type LegAnalysis struct {
	Leg       models.OptionLeg
	MaxProfit float64 // +Inf when unlimited
	MaxLoss   float64 // +Inf when unlimited
	Breakeven float64
}

// Analysis is the combined payoff picture for a position.
type Analysis struct {
	SpotPrice            float64
	Legs                 []LegAnalysis
	TotalPremium         float64
	MaxProfit            float64
	MaxLossUnlimited     bool
	Breakevens           []float64
	TheoreticalBreakeven []float64 // closed-form, short straddle only
	Prices               []float64
	Payoff               []float64
	Shape                Shape
}

// LegPayoffAt returns the profit of one leg at the given underlying price.
func LegPayoffAt(l models.OptionLeg, price float64) float64 {
	intrinsicVal := 0.0
	switch l.Type {
	case models.Call:
		intrinsicVal = math.Max(price-l.Strike, 0)
	case models.Put:
		intrinsicVal = math.Max(l.Strike-price, 0)
	}
	if l.Side == models.Long {
		return intrinsicVal*l.Multiplier - l.TotalPremium()
	}
	return -intrinsicVal*l.Multiplier + l.TotalPremium()
}

// LegMaxProfit returns the best case for a leg held to expiry.
func LegMaxProfit(l models.OptionLeg) float64 {
	if l.Side == models.Short {
		return l.TotalPremium()
	}
	return math.Inf(1)
}

// LegMaxLoss returns the worst case for a leg held to expiry.
func LegMaxLoss(l models.OptionLeg) float64 {
	if l.Side == models.Long {
		return l.TotalPremium()
	}
	if l.Type == models.Put {
		return l.Strike*l.Multiplier - l.TotalPremium()
	}
	return math.Inf(1)
}

// LegBreakeven returns the underlying price at which a single leg is flat.
func LegBreakeven(l models.OptionLeg) float64 {
	if l.Type == models.Put {
		return l.Strike - l.Premium
	}
	return l.Strike + l.Premium
}

// Analyze computes the combined expiry payoff of the position across a
// price grid spanning 80% of the lowest strike to 120% of the highest,
// locating breakevens where the curve crosses zero.
func Analyze(spot float64, legs []models.OptionLeg) (*Analysis, error) {
	if len(legs) == 0 {
		return nil, fmt.Errorf("no legs to analyze")
	}
	for i := range legs {
		if err := legs[i].Validate(); err != nil {
			return nil, fmt.Errorf("leg %d: %w", i+1, err)
		}
	}

	minStrike, maxStrike := legs[0].Strike, legs[0].Strike
	totalPremium := 0.0
	shortPremium := 0.0
	for _, l := range legs {
		minStrike = math.Min(minStrike, l.Strike)
		maxStrike = math.Max(maxStrike, l.Strike)
		totalPremium += l.TotalPremium()
		if l.Side == models.Short {
			shortPremium += l.TotalPremium()
		}
	}

	a := &Analysis{
		SpotPrice:    spot,
		TotalPremium: totalPremium,
		Shape:        Classify(legs),
	}

	for _, l := range legs {
		a.Legs = append(a.Legs, LegAnalysis{
			Leg:       l,
			MaxProfit: LegMaxProfit(l),
			MaxLoss:   LegMaxLoss(l),
			Breakeven: LegBreakeven(l),
		})
	}

	lo, hi := minStrike*0.8, maxStrike*1.2
	step := (hi - lo) / float64(payoffGridPoints-1)
	a.Prices = make([]float64, payoffGridPoints)
	a.Payoff = make([]float64, payoffGridPoints)
	maxProfit := math.Inf(-1)
	for i := 0; i < payoffGridPoints; i++ {
		p := lo + float64(i)*step
		total := 0.0
		for _, l := range legs {
			total += LegPayoffAt(l, p)
		}
		a.Prices[i] = p
		a.Payoff[i] = total
		maxProfit = math.Max(maxProfit, total)
	}
	a.MaxProfit = maxProfit
	a.Breakevens = zeroCrossings(a.Prices, a.Payoff)

	// Short call legs leave the upside open.
	for _, l := range legs {
		if l.Side == models.Short && l.Type == models.Call && !hasLongCallAbove(legs, l) {
			a.MaxLossUnlimited = true
		}
	}

	// Closed-form breakevens for the two-leg short straddle.
	if a.Shape == ShapeStraddle && legs[0].Side == models.Short && legs[1].Side == models.Short {
		strike := legs[0].Strike
		perContract := totalPremium / legs[0].Multiplier
		a.TheoreticalBreakeven = []float64{strike - perContract/2, strike + perContract/2}
	}

	return a, nil
}

// zeroCrossings locates sign changes in the payoff curve and linearly
// interpolates the exact crossing point within each bracketing pair.
func zeroCrossings(prices, payoff []float64) []float64 {
	var crossings []float64
	for i := 0; i+1 < len(payoff); i++ {
		y1, y2 := payoff[i], payoff[i+1]
		if y1 == 0 {
			crossings = append(crossings, prices[i])
			continue
		}
		if (y1 < 0 && y2 > 0) || (y1 > 0 && y2 < 0) {
			x1, x2 := prices[i], prices[i+1]
			crossings = append(crossings, x1+(x2-x1)*(-y1)/(y2-y1))
		}
	}
	return crossings
}

func hasLongCallAbove(legs []models.OptionLeg, short models.OptionLeg) bool {
	for _, l := range legs {
		if l.Side == models.Long && l.Type == models.Call && l.Strike >= short.Strike {
			return true
		}
	}
	return false
}
