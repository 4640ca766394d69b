// dashboard serves the straddle tracker database as an HTML dashboard
// plus JSON endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quarrydale/tradetools/internal/config"
	"github.com/quarrydale/tradetools/internal/dashboard"
	"github.com/quarrydale/tradetools/internal/storage"
	"github.com/quarrydale/tradetools/internal/util"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to configuration file")
		addr       = flag.String("addr", "", "Listen address (overrides config)")
		verbosity  = flag.Int("v", 1, "Verbosity: 0 warn, 1 info, 2 debug")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := util.NewLogger(*verbosity)

	listenAddr := cfg.Dashboard.ListenAddr
	if *addr != "" {
		listenAddr = *addr
	}
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	store, err := storage.NewStorage(cfg.Data.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	srv := dashboard.NewServer(dashboard.Config{
		ListenAddr: listenAddr,
		AuthToken:  cfg.Dashboard.AuthToken,
		RefreshSec: cfg.Dashboard.RefreshSec,
		Symbol:     cfg.Tracker.Symbol,
	}, store, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Shutdown failed")
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
	logger.Info("Server stopped")
}
