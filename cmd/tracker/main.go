// tracker runs the 0DTE straddle tracker daemon: it polls the option
// chain on a fixed interval during market hours and records ATM leg
// prices into SQLite until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quarrydale/tradetools/internal/broker"
	"github.com/quarrydale/tradetools/internal/config"
	"github.com/quarrydale/tradetools/internal/storage"
	"github.com/quarrydale/tradetools/internal/tracker"
	"github.com/quarrydale/tradetools/internal/util"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to configuration file")
		symbol     = flag.String("symbol", "", "Symbol to track (overrides config)")
		once       = flag.Bool("once", false, "Run a single poll and exit")
		verbosity  = flag.Int("v", 0, "Verbosity: 0 warn, 1 info, 2 debug")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *symbol != "" {
		cfg.Tracker.Symbol = *symbol
	}
	if cfg.Tracker.Symbol == "" {
		log.Fatal("No tracker symbol configured")
	}

	logger := util.NewLogger(*verbosity)

	var api broker.MarketData
	if cfg.Tradier.Endpoint != "" {
		api = broker.NewTradierAPIWithBaseURL(cfg.Tradier.Token, cfg.IsSandbox(), cfg.Tradier.Endpoint)
	} else {
		api = broker.NewTradierAPI(cfg.Tradier.Token, cfg.IsSandbox())
	}
	api = broker.NewCircuitBreakerClient(api)

	store, err := storage.NewStorage(cfg.Data.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	svc := tracker.New(api, store, cfg, logger)

	if *once {
		if err := svc.Poll(context.Background(), time.Now()); err != nil {
			log.Fatalf("Poll failed: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping tracker...")
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("Tracker error: %v", err)
	}
}
