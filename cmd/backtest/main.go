// backtest runs one of the built-in strategies over daily OHLCV bars
// from a CSV file (or downloaded on the fly) and prints the result
// table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/quarrydale/tradetools/internal/backtest"
	"github.com/quarrydale/tradetools/internal/ivts"
	"github.com/quarrydale/tradetools/internal/marketdata"
	"github.com/quarrydale/tradetools/internal/util"
)

func main() {
	var (
		name       = flag.String("strategy", "sma-scale-in", "Strategy: sma-scale-in, vix-term-structure, pct-change, trailing-atr, all")
		csvPath    = flag.String("csv", "", "OHLCV CSV input (omit to download -symbol)")
		symbol     = flag.String("symbol", "SPY", "Symbol to download when -csv is not given")
		years      = flag.Int("years", 10, "Years of history to download")
		cash       = flag.Float64("cash", 10000, "Initial cash")
		commission = flag.Float64("commission", 1, "Commission per trade")
		fast       = flag.Int("fast", 20, "Fast moving average period")
		slow       = flag.Int("slow", 50, "Slow moving average period")
		dropPct    = flag.Float64("drop", 3, "Entry drop percent for pct-change")
		holdDays   = flag.Int("hold", 5, "Holding days for pct-change")
		atrMult    = flag.Float64("atr-mult", 2.5, "ATR multiple for trailing-atr")
		shortCSV   = flag.String("short-vix-csv", "", "Short-dated VIX CSV for vix-term-structure")
		longCSV    = flag.String("long-vix-csv", "", "Long-dated VIX CSV for vix-term-structure")
		verbosity  = flag.Int("v", 0, "Verbosity: 0 warn, 1 info, 2 debug")
	)
	flag.Parse()

	logger := util.NewLogger(*verbosity)

	bars, err := loadBars(*csvPath, *symbol, *years)
	if err != nil {
		log.Fatalf("Failed to load bars: %v", err)
	}
	logger.WithField("bars", len(bars)).Info("Loaded price history")

	strategies, err := buildStrategies(*name, strategyParams{
		fast: *fast, slow: *slow,
		dropPct: *dropPct, holdDays: *holdDays,
		atrMult:  *atrMult,
		shortCSV: *shortCSV, longCSV: *longCSV,
		bars: len(bars),
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	cfg := backtest.Config{InitialCash: *cash, Commission: *commission}
	results := make([]*backtest.Result, 0, len(strategies))
	for _, s := range strategies {
		res, err := backtest.Run(bars, s, cfg)
		if err != nil {
			log.Fatalf("Backtest %s failed: %v", s.Name(), err)
		}
		results = append(results, res)
	}

	if err := backtest.RenderResults(os.Stdout, results); err != nil {
		log.Fatalf("Failed to render results: %v", err)
	}
}

type strategyParams struct {
	fast, slow         int
	dropPct            float64
	holdDays           int
	atrMult            float64
	shortCSV, longCSV  string
	bars               int
}

func buildStrategies(name string, p strategyParams) ([]backtest.Strategy, error) {
	switch name {
	case "sma-scale-in":
		return []backtest.Strategy{&backtest.SMAScaleIn{FastPeriod: p.fast, SlowPeriod: p.slow}}, nil
	case "pct-change":
		return []backtest.Strategy{&backtest.PctChange{DropPct: p.dropPct, HoldDays: p.holdDays}}, nil
	case "trailing-atr":
		return []backtest.Strategy{&backtest.TrailingATR{EntryPeriod: p.slow, ATRPeriod: 14, Multiple: p.atrMult}}, nil
	case "vix-term-structure":
		shortVix, longVix, err := loadVixSeries(p.shortCSV, p.longCSV, p.bars)
		if err != nil {
			return nil, err
		}
		return []backtest.Strategy{&backtest.VIXTermStructure{
			ShortVix:   shortVix,
			LongVix:    longVix,
			FastPeriod: p.fast,
			SlowPeriod: p.slow,
		}}, nil
	case "all":
		return []backtest.Strategy{
			&backtest.SMAScaleIn{FastPeriod: p.fast, SlowPeriod: p.slow},
			&backtest.PctChange{DropPct: p.dropPct, HoldDays: p.holdDays},
			&backtest.TrailingATR{EntryPeriod: p.slow, ATRPeriod: 14, Multiple: p.atrMult},
		}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

func loadBars(csvPath, symbol string, years int) ([]marketdata.OHLCV, error) {
	if csvPath != "" {
		f, err := os.Open(csvPath) // #nosec G304 - user-supplied input file
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = f.Close()
		}()
		return marketdata.ParseOHLCVCSV(f)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	end := time.Now()
	start := end.AddDate(-years, 0, 0)
	return marketdata.NewStooqClient().Fetch(ctx, symbol, start, end)
}

// loadVixSeries reads the short- and long-dated VIX close series and
// aligns them to the last n bars of the price history. The ratio check
// also guards against zero long-dated closes.
func loadVixSeries(shortCSV, longCSV string, n int) (shortVix, longVix []float64, err error) {
	if shortCSV == "" || longCSV == "" {
		return nil, nil, fmt.Errorf("vix-term-structure needs -short-vix-csv and -long-vix-csv")
	}
	shortBars, err := readCSV(shortCSV)
	if err != nil {
		return nil, nil, err
	}
	longBars, err := readCSV(longCSV)
	if err != nil {
		return nil, nil, err
	}

	shortVix = backtest.Closes(shortBars)
	longVix = backtest.Closes(longBars)
	if _, err := ivts.Ratio(shortVix, longVix); err != nil {
		return nil, nil, err
	}
	if len(shortVix) < n {
		return nil, nil, fmt.Errorf("vix series has %d points, need %d", len(shortVix), n)
	}
	return shortVix[len(shortVix)-n:], longVix[len(longVix)-n:], nil
}

func readCSV(path string) ([]marketdata.OHLCV, error) {
	f, err := os.Open(path) // #nosec G304 - user-supplied input file
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return marketdata.ParseOHLCVCSV(f)
}
