package backtest

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/quarrydale/tradetools/internal/marketdata"
)

const tradingDaysPerYear = 252

// Config controls a single backtest run.
type Config struct {
	InitialCash float64
	Commission  float64 // per executed trade
}

// EquityPoint is the portfolio value at one bar's close.
type EquityPoint struct {
	Date   time.Time
	Equity float64
}

// Result carries the outcome of one strategy run.
type Result struct {
	Strategy    string
	StartDate   time.Time
	EndDate     time.Time
	FinalEquity float64
	TotalReturn float64 // fraction, 0.25 = +25%
	CAGR        float64
	Sharpe      float64
	MaxDrawdown float64 // fraction, negative
	NumTrades   int
	WinRate     float64 // fraction of profitable round trips
	Curve       []EquityPoint
	Trades      []Trade
}

// Run simulates the strategy over daily bars, rebalancing at each
// bar's close toward the strategy's target allocation.
func Run(bars []marketdata.OHLCV, strategy Strategy, cfg Config) (*Result, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars to backtest")
	}
	if cfg.InitialCash <= 0 {
		return nil, fmt.Errorf("initial cash must be positive")
	}
	warmup := strategy.Warmup()
	if warmup >= len(bars) {
		return nil, fmt.Errorf("warmup %d exceeds available bars %d", warmup, len(bars))
	}

	portfolio := NewPortfolio(cfg.InitialCash, cfg.Commission)
	curve := make([]EquityPoint, 0, len(bars)-warmup)

	for i := warmup; i < len(bars); i++ {
		target := strategy.Evaluate(i, bars)
		if err := portfolio.Rebalance(bars[i].Date, bars[i].Close, target); err != nil {
			return nil, fmt.Errorf("rebalancing at %s: %w", bars[i].Date.Format("2006-01-02"), err)
		}
		equity, _ := portfolio.Equity(bars[i].Close).Float64()
		curve = append(curve, EquityPoint{Date: bars[i].Date, Equity: equity})
	}

	res := &Result{
		Strategy:  strategy.Name(),
		StartDate: bars[warmup].Date,
		EndDate:   bars[len(bars)-1].Date,
		Curve:     curve,
		Trades:    portfolio.Trades,
		NumTrades: len(portfolio.Trades),
	}
	res.FinalEquity = curve[len(curve)-1].Equity
	res.TotalReturn = res.FinalEquity/cfg.InitialCash - 1
	res.CAGR = cagr(cfg.InitialCash, res.FinalEquity, res.StartDate, res.EndDate)
	res.Sharpe = sharpe(curve)
	res.MaxDrawdown = maxDrawdown(curve)
	res.WinRate = winRate(portfolio.Trades)
	return res, nil
}

func cagr(initial, final float64, start, end time.Time) float64 {
	years := end.Sub(start).Hours() / 24 / 365.25
	if years <= 0 || initial <= 0 || final <= 0 {
		return 0
	}
	return math.Pow(final/initial, 1/years) - 1
}

// sharpe is the annualized ratio of mean to stdev of daily equity
// returns, with a zero risk-free rate.
func sharpe(curve []EquityPoint) float64 {
	if len(curve) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1].Equity > 0 {
			returns = append(returns, curve[i].Equity/curve[i-1].Equity-1)
		}
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

func maxDrawdown(curve []EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := p.Equity/peak - 1
			if dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// winRate pairs buys with subsequent sells and counts round trips
// closed above their average entry price.
func winRate(trades []Trade) float64 {
	var wins, total int
	var entryValue, entryShares float64

	for _, t := range trades {
		sh, _ := t.Shares.Float64()
		val, _ := t.Value.Float64()
		switch t.Side {
		case "buy":
			entryValue += val
			entryShares += sh
		case "sell":
			if entryShares <= 0 {
				continue
			}
			avgEntry := entryValue / entryShares
			px, _ := t.Price.Float64()
			total++
			if px > avgEntry {
				wins++
			}
			// Reduce basis proportionally
			entryValue -= avgEntry * sh
			entryShares -= sh
			if entryShares < 1e-9 {
				entryValue, entryShares = 0, 0
			}
		}
	}

	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}
