package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydale/tradetools/internal/models"
)

func shortStraddle(strike, callPrem, putPrem float64) []models.OptionLeg {
	return []models.OptionLeg{
		{Type: models.Call, Side: models.Short, Strike: strike, Premium: callPrem, Multiplier: 100},
		{Type: models.Put, Side: models.Short, Strike: strike, Premium: putPrem, Multiplier: 100},
	}
}

func TestLegPayoffAt(t *testing.T) {
	longCall := models.OptionLeg{Type: models.Call, Side: models.Long, Strike: 100, Premium: 5, Multiplier: 100}

	// OTM: lose the premium.
	assert.InDelta(t, -500, LegPayoffAt(longCall, 90), 1e-9)
	// ITM past breakeven.
	assert.InDelta(t, 500, LegPayoffAt(longCall, 110), 1e-9)
	// Exactly at breakeven.
	assert.InDelta(t, 0, LegPayoffAt(longCall, 105), 1e-9)

	shortPut := models.OptionLeg{Type: models.Put, Side: models.Short, Strike: 100, Premium: 3, Multiplier: 100}
	assert.InDelta(t, 300, LegPayoffAt(shortPut, 110), 1e-9)
	assert.InDelta(t, -700, LegPayoffAt(shortPut, 90), 1e-9)
}

func TestLegExtremes(t *testing.T) {
	longCall := models.OptionLeg{Type: models.Call, Side: models.Long, Strike: 100, Premium: 5, Multiplier: 100}
	assert.True(t, math.IsInf(LegMaxProfit(longCall), 1))
	assert.Equal(t, 500.0, LegMaxLoss(longCall))
	assert.Equal(t, 105.0, LegBreakeven(longCall))

	shortCall := models.OptionLeg{Type: models.Call, Side: models.Short, Strike: 100, Premium: 5, Multiplier: 100}
	assert.Equal(t, 500.0, LegMaxProfit(shortCall))
	assert.True(t, math.IsInf(LegMaxLoss(shortCall), 1))

	shortPut := models.OptionLeg{Type: models.Put, Side: models.Short, Strike: 100, Premium: 3, Multiplier: 100}
	assert.Equal(t, 100.0*100-300, LegMaxLoss(shortPut))
	assert.Equal(t, 97.0, LegBreakeven(shortPut))
}

func TestAnalyzeShortStraddle(t *testing.T) {
	legs := shortStraddle(100, 4, 4)
	a, err := Analyze(100, legs)
	require.NoError(t, err)

	assert.Equal(t, ShapeStraddle, a.Shape)
	assert.InDelta(t, 800, a.TotalPremium, 1e-9)
	assert.InDelta(t, 800, a.MaxProfit, 5.0)
	assert.True(t, a.MaxLossUnlimited)

	require.Len(t, a.Breakevens, 2)
	// Breakevens at strike +/- total premium per share.
	assert.InDelta(t, 92, a.Breakevens[0], 0.1)
	assert.InDelta(t, 108, a.Breakevens[1], 0.1)

	require.Len(t, a.TheoreticalBreakeven, 2)
	assert.InDelta(t, 96, a.TheoreticalBreakeven[0], 1e-9)
	assert.InDelta(t, 104, a.TheoreticalBreakeven[1], 1e-9)
}

func TestAnalyzeLongCallSpread(t *testing.T) {
	legs := []models.OptionLeg{
		{Type: models.Call, Side: models.Long, Strike: 100, Premium: 5, Multiplier: 100},
		{Type: models.Call, Side: models.Short, Strike: 110, Premium: 2, Multiplier: 100},
	}
	a, err := Analyze(102, legs)
	require.NoError(t, err)

	assert.Equal(t, ShapeVertical, a.Shape)
	assert.False(t, a.MaxLossUnlimited, "capped by the long wing")
	// Width 10, net debit 3: max profit 700.
	assert.InDelta(t, 700, a.MaxProfit, 1.0)
	require.Len(t, a.Breakevens, 1)
	assert.InDelta(t, 103, a.Breakevens[0], 0.1)
}

func TestAnalyzeRejectsBadLegs(t *testing.T) {
	_, err := Analyze(100, nil)
	assert.Error(t, err)

	_, err = Analyze(100, []models.OptionLeg{
		{Type: "swap", Side: models.Long, Strike: 100, Premium: 1, Multiplier: 100},
	})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		legs     []models.OptionLeg
		expected Shape
	}{
		{
			name: "single",
			legs: []models.OptionLeg{
				{Type: models.Call, Side: models.Long, Strike: 100, Premium: 1, Multiplier: 100},
			},
			expected: ShapeSingle,
		},
		{
			name:     "short straddle",
			legs:     shortStraddle(100, 4, 4),
			expected: ShapeStraddle,
		},
		{
			name: "short strangle",
			legs: []models.OptionLeg{
				{Type: models.Put, Side: models.Short, Strike: 95, Premium: 2, Multiplier: 100},
				{Type: models.Call, Side: models.Short, Strike: 105, Premium: 2, Multiplier: 100},
			},
			expected: ShapeStrangle,
		},
		{
			name: "calendar",
			legs: []models.OptionLeg{
				{Type: models.Call, Side: models.Short, Strike: 100, Premium: 2, Multiplier: 100, Expiration: "2026-09-18"},
				{Type: models.Call, Side: models.Long, Strike: 100, Premium: 4, Multiplier: 100, Expiration: "2026-10-16"},
			},
			expected: ShapeCalendar,
		},
		{
			name: "iron condor",
			legs: []models.OptionLeg{
				{Type: models.Put, Side: models.Long, Strike: 90, Premium: 1, Multiplier: 100},
				{Type: models.Put, Side: models.Short, Strike: 95, Premium: 2, Multiplier: 100},
				{Type: models.Call, Side: models.Short, Strike: 105, Premium: 2, Multiplier: 100},
				{Type: models.Call, Side: models.Long, Strike: 110, Premium: 1, Multiplier: 100},
			},
			expected: ShapeIronCondor,
		},
		{
			name: "iron butterfly",
			legs: []models.OptionLeg{
				{Type: models.Put, Side: models.Long, Strike: 90, Premium: 1, Multiplier: 100},
				{Type: models.Put, Side: models.Short, Strike: 100, Premium: 4, Multiplier: 100},
				{Type: models.Call, Side: models.Short, Strike: 100, Premium: 4, Multiplier: 100},
				{Type: models.Call, Side: models.Long, Strike: 110, Premium: 1, Multiplier: 100},
			},
			expected: ShapeIronButterfly,
		},
		{
			name: "call butterfly",
			legs: []models.OptionLeg{
				{Type: models.Call, Side: models.Long, Strike: 90, Premium: 12, Multiplier: 100},
				{Type: models.Call, Side: models.Short, Strike: 100, Premium: 6, Multiplier: 200},
				{Type: models.Call, Side: models.Long, Strike: 110, Premium: 2, Multiplier: 100},
			},
			expected: ShapeButterfly,
		},
		{
			name: "custom mess",
			legs: []models.OptionLeg{
				{Type: models.Call, Side: models.Long, Strike: 100, Premium: 5, Multiplier: 100},
				{Type: models.Call, Side: models.Long, Strike: 110, Premium: 2, Multiplier: 100},
			},
			expected: ShapeCustom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.legs))
		})
	}
}

func TestCalendarSpreadEvaluate(t *testing.T) {
	spread := &CalendarSpread{
		Strike:         11000,
		FrontPrice:     85.20,
		BackPrice:      201.70,
		FrontDTE:       7,
		BackDTE:        41,
		InterestRate:   0,
		OptType:        models.Call,
		FrontUnderlier: 11030.50,
		BackUnderlier:  11046.40,
	}

	result, err := spread.Evaluate()
	require.NoError(t, err)

	assert.InDelta(t, 116.5, result.SetupCost, 0.01)
	assert.True(t, result.FrontIV > 0 && result.FrontIV < 1, "front IV in sane range: %v", result.FrontIV)
	assert.True(t, result.BackIV > 0 && result.BackIV < 1, "back IV in sane range: %v", result.BackIV)
	assert.NotEmpty(t, result.Points)

	// The calendar profits near the strike and loses far away.
	assert.True(t, result.MaxProfit > 0)
	assert.True(t, result.MaxLoss < 0)
	assert.True(t, result.MaxLoss >= -result.SetupCost-1, "loss bounded by setup cost")
	assert.Len(t, result.Breakevens, 2)
}

func TestCalendarSpreadInvalidDTE(t *testing.T) {
	spread := &CalendarSpread{FrontDTE: 30, BackDTE: 10}
	_, err := spread.Evaluate()
	assert.Error(t, err)
}
