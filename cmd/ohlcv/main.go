// ohlcv downloads daily price history for one or more symbols and
// writes one CSV per symbol.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quarrydale/tradetools/internal/marketdata"
	"github.com/quarrydale/tradetools/internal/util"
)

func main() {
	var (
		symbolList = flag.String("symbols", "SPY", "Comma-separated symbols to download")
		outDir     = flag.String("out", "output", "Output directory")
		years      = flag.Int("years", 10, "Years of history")
		parallel   = flag.Int("parallel", 4, "Max concurrent downloads")
		verbosity  = flag.Int("v", 0, "Verbosity: 0 warn, 1 info, 2 debug")
	)
	flag.Parse()

	logger := util.NewLogger(*verbosity)

	var symbols []string
	for _, s := range strings.Split(*symbolList, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, strings.ToUpper(s))
		}
	}
	if len(symbols) == 0 {
		log.Fatal("No symbols given")
	}

	if err := os.MkdirAll(*outDir, 0o750); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	end := time.Now()
	start := end.AddDate(-*years, 0, 0)

	logger.WithField("symbols", len(symbols)).Info("Starting download")
	data, err := marketdata.NewStooqClient().FetchMany(ctx, symbols, start, end, *parallel)
	if err != nil {
		log.Fatalf("Download failed: %v", err)
	}

	for symbol, bars := range data {
		path := filepath.Join(*outDir, symbol+".csv")
		if err := writeCSV(path, bars); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		fmt.Printf("%s: %d bars -> %s\n", symbol, len(bars), path)
	}
}

func writeCSV(path string, bars []marketdata.OHLCV) error {
	f, err := os.Create(path) // #nosec G304 - path built from output dir flag
	if err != nil {
		return err
	}
	if err := marketdata.WriteOHLCVCSV(f, bars); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
