package backtest

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydale/tradetools/internal/marketdata"
)

func barsFromCloses(closes []float64) []marketdata.OHLCV {
	bars := make([]marketdata.OHLCV, len(closes))
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = marketdata.OHLCV{
			Date:  start.AddDate(0, 0, i),
			Open:  c,
			High:  c * 1.01,
			Low:   c * 0.99,
			Close: c,
		}
	}
	return bars
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2.0, got[2], 1e-12)
	assert.InDelta(t, 3.0, got[3], 1e-12)
	assert.InDelta(t, 4.0, got[4], 1e-12)
}

func TestEMA_SeededWithSMA(t *testing.T) {
	got := EMA([]float64{2, 4, 6, 8}, 2)
	assert.True(t, math.IsNaN(got[0]))
	assert.InDelta(t, 3.0, got[1], 1e-12) // seed = SMA(2,4)
	// alpha = 2/3: 6*2/3 + 3/3 = 5
	assert.InDelta(t, 5.0, got[2], 1e-12)
	assert.InDelta(t, 7.0, got[3], 1e-12)
}

func TestRSI_Extremes(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	got := RSI(up, 3)
	assert.InDelta(t, 100.0, got[len(got)-1], 1e-9)

	down := []float64{8, 7, 6, 5, 4, 3, 2, 1}
	got = RSI(down, 3)
	assert.InDelta(t, 0.0, got[len(got)-1], 1e-9)
}

func TestATR_ConstantRange(t *testing.T) {
	// Flat closes with a constant high-low range of 2
	bars := make([]marketdata.OHLCV, 10)
	for i := range bars {
		bars[i] = marketdata.OHLCV{Open: 100, High: 101, Low: 99, Close: 100}
	}
	got := ATR(bars, 5)
	assert.InDelta(t, 2.0, got[len(got)-1], 1e-9)
}

func TestPortfolioRebalance(t *testing.T) {
	p := NewPortfolio(10000, 1)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, p.Rebalance(day, 100, 1.0))
	require.Len(t, p.Trades, 1)
	assert.Equal(t, "buy", p.Trades[0].Side)
	assert.InDelta(t, 1.0, p.Allocation(100), 0.02)

	// Sell everything at a higher price
	require.NoError(t, p.Rebalance(day.AddDate(0, 0, 1), 110, 0))
	require.Len(t, p.Trades, 2)
	assert.Equal(t, "sell", p.Trades[1].Side)
	assert.True(t, p.Shares.IsZero())

	equity, _ := p.Equity(110).Float64()
	// ~10% gain minus two commissions
	assert.InDelta(t, 10988, equity, 15)
}

func TestPortfolioRebalance_InvalidInputs(t *testing.T) {
	p := NewPortfolio(10000, 0)
	day := time.Now()
	assert.Error(t, p.Rebalance(day, -1, 0.5))
	assert.Error(t, p.Rebalance(day, 100, 1.5))
}

func TestRun_SMAScaleIn(t *testing.T) {
	// Downtrend then strong uptrend
	closes := make([]float64, 0, 60)
	for i := 0; i < 20; i++ {
		closes = append(closes, 100-float64(i))
	}
	for i := 0; i < 40; i++ {
		closes = append(closes, 81+float64(i)*2)
	}
	bars := barsFromCloses(closes)

	res, err := Run(bars, &SMAScaleIn{FastPeriod: 5, SlowPeriod: 10}, Config{InitialCash: 10000, Commission: 1})
	require.NoError(t, err)

	assert.Equal(t, "sma-scale-in", res.Strategy)
	assert.Greater(t, res.NumTrades, 0)
	assert.Greater(t, res.TotalReturn, 0.0)
	assert.Len(t, res.Curve, len(bars)-10)
	assert.LessOrEqual(t, res.MaxDrawdown, 0.0)
}

func TestRun_PctChangeEntersOnDrop(t *testing.T) {
	closes := []float64{100, 100, 100, 90, 91, 92, 93, 94, 95, 96}
	bars := barsFromCloses(closes)

	res, err := Run(bars, &PctChange{DropPct: 5, HoldDays: 4}, Config{InitialCash: 10000})
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)
	// Entry on the -10% day
	assert.Equal(t, bars[3].Date, res.Trades[0].Date)
	assert.Greater(t, res.TotalReturn, 0.0)
}

func TestRun_TrailingATRExits(t *testing.T) {
	// Rise then sharp fall: the trailing stop should cut the position
	closes := make([]float64, 0, 40)
	for i := 0; i < 25; i++ {
		closes = append(closes, 100+float64(i))
	}
	for i := 0; i < 15; i++ {
		closes = append(closes, 124-float64(i)*4)
	}
	bars := barsFromCloses(closes)

	res, err := Run(bars, &TrailingATR{EntryPeriod: 10, ATRPeriod: 5, Multiple: 2}, Config{InitialCash: 10000})
	require.NoError(t, err)

	var sold bool
	for _, tr := range res.Trades {
		if tr.Side == "sell" {
			sold = true
		}
	}
	assert.True(t, sold, "expected the trailing stop to trigger a sell")
	// Stopped out above the final low
	assert.Greater(t, res.TotalReturn, -0.5)
}

func TestRun_VIXTermStructure(t *testing.T) {
	closes := make([]float64, 30)
	shortVix := make([]float64, 30)
	longVix := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
		longVix[i] = 20
		if i < 20 {
			shortVix[i] = 15 // contango
		} else {
			shortVix[i] = 30 // inversion
		}
	}
	bars := barsFromCloses(closes)

	res, err := Run(bars, &VIXTermStructure{
		ShortVix:   shortVix,
		LongVix:    longVix,
		FastPeriod: 3,
		SlowPeriod: 5,
	}, Config{InitialCash: 10000})
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)
	assert.Equal(t, "sell", res.Trades[len(res.Trades)-1].Side)
}

func TestRun_Errors(t *testing.T) {
	bars := barsFromCloses([]float64{100, 101})
	_, err := Run(nil, &PctChange{DropPct: 1, HoldDays: 1}, Config{InitialCash: 10000})
	assert.Error(t, err)

	_, err = Run(bars, &SMAScaleIn{FastPeriod: 5, SlowPeriod: 10}, Config{InitialCash: 10000})
	assert.Error(t, err, "warmup longer than series")

	_, err = Run(bars, &PctChange{DropPct: 1, HoldDays: 1}, Config{})
	assert.Error(t, err, "zero initial cash")
}

func TestRenderResults(t *testing.T) {
	res := &Result{
		Strategy:    "pct-change",
		StartDate:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
		FinalEquity: 11000,
		TotalReturn: 0.10,
		CAGR:        0.21,
		Sharpe:      1.3,
		MaxDrawdown: -0.08,
		NumTrades:   4,
		WinRate:     0.75,
	}

	var buf bytes.Buffer
	require.NoError(t, RenderResults(&buf, []*Result{res}))
	out := buf.String()
	assert.Contains(t, out, "pct-change")
	assert.Contains(t, out, "Sharpe")
}
