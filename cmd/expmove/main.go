// expmove computes the market-implied expected move for a symbol from
// the ATM straddle mid price and renders it against recent closes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/quarrydale/tradetools/internal/broker"
	"github.com/quarrydale/tradetools/internal/config"
	"github.com/quarrydale/tradetools/internal/pricing"
	"github.com/quarrydale/tradetools/internal/report"
	"github.com/quarrydale/tradetools/internal/util"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to configuration file")
		symbol     = flag.String("symbol", "", "Underlying symbol (overrides config)")
		expiration = flag.String("expiration", "", "Expiration date YYYY-MM-DD (default: nearest)")
		days       = flag.Int("days", 60, "Days of close history to chart")
		htmlOut    = flag.String("html", "", "Write an HTML chart to this path")
		verbosity  = flag.Int("v", 1, "Verbosity: 0 warn, 1 info, 2 debug")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := util.NewLogger(*verbosity)

	sym := cfg.Tracker.Symbol
	if *symbol != "" {
		sym = *symbol
	}
	if sym == "" {
		log.Fatalf("No symbol given and none configured")
	}

	var api broker.MarketData
	if cfg.Tradier.Endpoint != "" {
		api = broker.NewTradierAPIWithBaseURL(cfg.Tradier.Token, cfg.IsSandbox(), cfg.Tradier.Endpoint)
	} else {
		api = broker.NewTradierAPI(cfg.Tradier.Token, cfg.IsSandbox())
	}
	api = broker.NewCircuitBreakerClient(api)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	quote, err := api.GetQuote(sym)
	if err != nil {
		log.Fatalf("Failed to fetch quote for %s: %v", sym, err)
	}
	spot := quote.Last
	if spot == 0 {
		spot = quote.PrevClose
	}
	if spot == 0 {
		log.Fatalf("No price available for %s", sym)
	}

	expiry := *expiration
	if expiry == "" {
		expirations, err := api.GetExpirations(sym)
		if err != nil {
			log.Fatalf("Failed to fetch expirations: %v", err)
		}
		if len(expirations) == 0 {
			log.Fatalf("No expirations available for %s", sym)
		}
		expiry = expirations[0]
	}

	chain, err := api.GetOptionChainCtx(ctx, sym, expiry, true)
	if err != nil {
		log.Fatalf("Failed to fetch option chain: %v", err)
	}
	put, call := broker.FindATMByDelta(chain)
	strike := util.NearestStrike(spot)
	if put != nil && call != nil {
		strike = call.Strike
	} else {
		logger.WithField("strike", strike).Warn("No ATM pair by delta, snapping spot to the strike grid")
	}
	straddleMid, err := broker.StraddleMid(chain, strike)
	if err != nil {
		log.Fatalf("Failed to compute straddle mid: %v", err)
	}

	move, upper, lower := pricing.ExpectedMove(spot, straddleMid)

	var callOSI, putOSI string
	if put != nil && call != nil {
		callOSI, putOSI = call.Symbol, put.Symbol
	}
	if callOSI == "" || putOSI == "" {
		if expTime, perr := time.Parse("2006-01-02", expiry); perr == nil {
			callOSI, _ = broker.BuildOSISymbol(sym, expTime, "call", strike)
			putOSI, _ = broker.BuildOSISymbol(sym, expTime, "put", strike)
		}
	}

	fmt.Printf("%s  spot %.2f  expiration %s  ATM strike %.2f\n", sym, spot, expiry, strike)
	if callOSI != "" && putOSI != "" {
		fmt.Printf("Contracts:      %s / %s\n", callOSI, putOSI)
		if root := broker.UnderlyingFromOSI(callOSI); root != "" && root != sym {
			fmt.Printf("Contract root:  %s\n", root)
		}
	}
	fmt.Printf("Straddle mid:   %.2f\n", straddleMid)
	fmt.Printf("Expected move:  %.2f (%.2f%%)\n", move, move/spot*100)
	fmt.Printf("Range:          %.2f .. %.2f\n", lower, upper)

	if *htmlOut == "" {
		return
	}

	end := time.Now()
	start := end.AddDate(0, 0, -*days*2)
	history, err := api.GetHistoricalData(sym, "daily", start, end)
	if err != nil {
		log.Fatalf("Failed to fetch history: %v", err)
	}
	if len(history) > *days {
		history = history[len(history)-*days:]
	}
	dates := make([]string, len(history))
	closes := make([]float64, len(history))
	for i, p := range history {
		dates[i] = p.Date.Format("2006-01-02")
		closes[i] = p.Close
	}

	page := report.ExpectedMovePage(sym, dates, closes, spot, move)
	if err := report.WriteFile(*htmlOut, page); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	logger.WithField("path", *htmlOut).Info("Wrote expected move chart")
}
