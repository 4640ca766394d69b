package pricing

import (
	"fmt"
	"math"

	"github.com/quarrydale/tradetools/internal/models"
)

// CalendarSpread is a long back-month / short front-month pair at a
// shared strike. Prices are per contract.
type CalendarSpread struct {
	Strike         float64
	FrontPrice     float64 // premium received for the short front leg
	BackPrice      float64 // premium paid for the long back leg
	FrontDTE       float64
	BackDTE        float64
	InterestRate   float64
	OptType        models.OptionType
	FrontUnderlier float64
	BackUnderlier  float64
}

// CalendarPoint is one evaluated point on the front-expiry payoff curve.
type CalendarPoint struct {
	Underlying float64
	FrontValue float64
	BackValue  float64
	Payoff     float64
}

// CalendarResult is the full valuation of the spread at front expiry.
type CalendarResult struct {
	SetupCost  float64
	FrontIV    float64
	BackIV     float64
	Points     []CalendarPoint
	MaxProfit  float64
	MaxLoss    float64
	Breakevens []float64
}

// daysPerYear converts DTE counts into year fractions for the model.
const daysPerYear = 365

// Evaluate values the calendar at the moment the front leg expires:
// implied vols are solved from the quoted premiums, the front leg decays
// to (almost) nothing and the back leg is re-priced with its remaining
// time. The futures basis between the two underliers is held constant.
func (c *CalendarSpread) Evaluate() (*CalendarResult, error) {
	if c.FrontDTE <= 0 || c.BackDTE <= c.FrontDTE {
		return nil, fmt.Errorf("invalid DTEs: front %.1f back %.1f", c.FrontDTE, c.BackDTE)
	}

	frontIV := ImpliedVolatility(c.FrontPrice, c.FrontUnderlier, c.Strike,
		c.FrontDTE/daysPerYear, c.InterestRate, c.OptType)
	backIV := ImpliedVolatility(c.BackPrice, c.BackUnderlier, c.Strike,
		c.BackDTE/daysPerYear, c.InterestRate, c.OptType)
	if math.IsNaN(frontIV) || math.IsNaN(backIV) {
		return nil, fmt.Errorf("implied volatility failed to converge")
	}

	result := &CalendarResult{
		SetupCost: c.BackPrice - c.FrontPrice,
		FrontIV:   frontIV,
		BackIV:    backIV,
		MaxProfit: math.Inf(-1),
		MaxLoss:   math.Inf(1),
	}

	// A sliver of front time keeps the model defined right at expiry.
	frontT := 0.001 / daysPerYear
	backT := (c.BackDTE - 0.001) / daysPerYear
	basis := c.BackUnderlier - c.FrontUnderlier

	lo := 0.92 * c.FrontUnderlier
	hi := 1.10 * c.BackUnderlier
	var prices, payoffs []float64
	for p := lo; p <= hi; p += 1 {
		frontVal := Price(p, c.Strike, frontT, c.InterestRate, frontIV, c.OptType)
		backVal := Price(p+basis, c.Strike, backT, c.InterestRate, backIV, c.OptType)
		payoff := backVal - frontVal - result.SetupCost
		result.Points = append(result.Points, CalendarPoint{
			Underlying: p,
			FrontValue: frontVal,
			BackValue:  backVal,
			Payoff:     payoff,
		})
		prices = append(prices, p)
		payoffs = append(payoffs, payoff)
		result.MaxProfit = math.Max(result.MaxProfit, payoff)
		result.MaxLoss = math.Min(result.MaxLoss, payoff)
	}
	result.Breakevens = zeroCrossings(prices, payoffs)
	return result, nil
}
