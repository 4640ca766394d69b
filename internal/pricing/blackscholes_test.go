package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydale/tradetools/internal/models"
)

func TestPriceKnownValues(t *testing.T) {
	tests := []struct {
		name     string
		s, k     float64
		t, r     float64
		sigma    float64
		optType  models.OptionType
		expected float64
	}{
		{
			// Hull, Options Futures and Other Derivatives, ch. 15 example.
			name: "textbook call", s: 42, k: 40, t: 0.5, r: 0.10, sigma: 0.2,
			optType: models.Call, expected: 4.76,
		},
		{
			name: "textbook put", s: 42, k: 40, t: 0.5, r: 0.10, sigma: 0.2,
			optType: models.Put, expected: 0.81,
		},
		{
			name: "atm call one year", s: 100, k: 100, t: 1, r: 0.05, sigma: 0.2,
			optType: models.Call, expected: 10.45,
		},
		{
			name: "atm put one year", s: 100, k: 100, t: 1, r: 0.05, sigma: 0.2,
			optType: models.Put, expected: 5.57,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Price(tt.s, tt.k, tt.t, tt.r, tt.sigma, tt.optType)
			assert.InDelta(t, tt.expected, got, 0.01)
		})
	}
}

func TestPriceExpiredIsIntrinsic(t *testing.T) {
	assert.Equal(t, 5.0, Price(105, 100, 0, 0.05, 0.2, models.Call))
	assert.Equal(t, 0.0, Price(95, 100, 0, 0.05, 0.2, models.Call))
	assert.Equal(t, 5.0, Price(95, 100, 0, 0.05, 0.2, models.Put))
	assert.Equal(t, 3.0, Price(97, 100, 1, 0.05, 0, models.Put))
}

func TestValueGreeks(t *testing.T) {
	q := Value(100, 100, 1, 0.05, 0.2, models.Call)

	assert.InDelta(t, 10.45, q.Price, 0.01)
	assert.InDelta(t, 0.637, q.Delta, 0.001)
	assert.InDelta(t, 0.0188, q.Gamma, 0.001)
	assert.InDelta(t, 37.52, q.Vega, 0.05)
	assert.True(t, q.Theta < 0, "call theta should be negative")
	assert.True(t, q.Rho > 0, "call rho should be positive")

	p := Value(100, 100, 1, 0.05, 0.2, models.Put)
	assert.InDelta(t, q.Delta-1, p.Delta, 1e-9, "put-call delta parity")
	assert.InDelta(t, q.Gamma, p.Gamma, 1e-9, "gamma same for calls and puts")
	assert.InDelta(t, q.Vega, p.Vega, 1e-9, "vega same for calls and puts")
	assert.True(t, p.Rho < 0, "put rho should be negative")
}

func TestPutCallParity(t *testing.T) {
	s, k, tt, r, sigma := 95.0, 100.0, 0.75, 0.03, 0.35
	call := Price(s, k, tt, r, sigma, models.Call)
	put := Price(s, k, tt, r, sigma, models.Put)
	// C - P = S - K*exp(-rT)
	assert.InDelta(t, s-k*math.Exp(-r*tt), call-put, 1e-9)
}

func TestImpliedVolatilityRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		s, k    float64
		t, r    float64
		sigma   float64
		optType models.OptionType
	}{
		{name: "atm call", s: 100, k: 100, t: 0.5, r: 0.02, sigma: 0.25, optType: models.Call},
		{name: "otm put", s: 100, k: 90, t: 0.25, r: 0.02, sigma: 0.40, optType: models.Put},
		{name: "itm call", s: 120, k: 100, t: 1.0, r: 0.05, sigma: 0.15, optType: models.Call},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price := Price(tt.s, tt.k, tt.t, tt.r, tt.sigma, tt.optType)
			iv := ImpliedVolatility(price, tt.s, tt.k, tt.t, tt.r, tt.optType)
			require.False(t, math.IsNaN(iv), "iv should converge")
			assert.InDelta(t, tt.sigma, iv, 1e-4)
		})
	}
}

func TestImpliedVolatilityInvalidInputs(t *testing.T) {
	assert.True(t, math.IsNaN(ImpliedVolatility(5, 100, 100, 0, 0.02, models.Call)))
	assert.True(t, math.IsNaN(ImpliedVolatility(0, 100, 100, 0.5, 0.02, models.Call)))
}

func TestExpectedMove(t *testing.T) {
	move, upper, lower := ExpectedMove(450, 9.5)
	assert.Equal(t, 9.5, move)
	assert.Equal(t, 459.5, upper)
	assert.Equal(t, 440.5, lower)
}

func TestAnnualizedFromReturns(t *testing.T) {
	assert.InDelta(t, 0.01*math.Sqrt(252), AnnualizedFromReturns(0.01), 1e-12)
}
