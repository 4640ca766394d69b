// straddle walks the imported options_data history quote date by quote
// date, selling ATM straddles at a target DTE and reporting the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/quarrydale/tradetools/internal/config"
	"github.com/quarrydale/tradetools/internal/report"
	"github.com/quarrydale/tradetools/internal/storage"
	"github.com/quarrydale/tradetools/internal/straddle"
	"github.com/quarrydale/tradetools/internal/util"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to configuration file")
		symbol     = flag.String("symbol", "", "Underlying symbol (overrides config)")
		dte        = flag.Int("dte", 0, "Target DTE (overrides config)")
		delay      = flag.Int("trade-delay", -1, "Minimum days between new trades, negative disables")
		maxOpen    = flag.Int("max-open-trades", 99, "Maximum concurrent open trades")
		htmlOut    = flag.Bool("html", false, "Write an HTML equity report to the output dir")
		verbosity  = flag.Int("v", 0, "Verbosity: 0 warn, 1 info, 2 debug")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := util.NewLogger(*verbosity)

	engCfg := straddle.Config{
		Symbol:        cfg.Straddle.Symbol,
		TargetDTE:     cfg.Straddle.TargetDTE,
		ProfitTarget:  cfg.Straddle.ProfitTarget,
		StopMultiple:  cfg.Straddle.StopMultiple,
		TradeDelay:    *delay,
		MaxOpenTrades: *maxOpen,
	}
	if *symbol != "" {
		engCfg.Symbol = *symbol
	}
	if *dte > 0 {
		engCfg.TargetDTE = *dte
	}
	if engCfg.Symbol == "" || engCfg.TargetDTE <= 0 {
		log.Fatal("Need a symbol and a positive target DTE (flags or config)")
	}

	store, err := storage.NewStorage(cfg.Data.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	trades, err := straddle.New(store, logger, engCfg).Run(context.Background())
	if err != nil {
		log.Fatalf("Straddle walk failed: %v", err)
	}

	if err := straddle.RenderTrades(os.Stdout, trades); err != nil {
		log.Fatalf("Failed to render trades: %v", err)
	}

	if *htmlOut {
		path := filepath.Join(cfg.Data.OutputDir, fmt.Sprintf("straddle_%s.html", engCfg.Symbol))
		if err := report.WriteFile(path, report.EquityPage(engCfg.Symbol, trades)); err != nil {
			log.Fatalf("Failed to write HTML report: %v", err)
		}
		fmt.Printf("\nWrote %s\n", path)
	}
}
