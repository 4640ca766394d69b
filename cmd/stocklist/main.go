// stocklist downloads the exchange symbol directories, drops test
// issues and writes the combined list to CSV.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/quarrydale/tradetools/internal/marketdata"
	"github.com/quarrydale/tradetools/internal/util"
)

func main() {
	var (
		outPath    = flag.String("out", "data/alllisted.csv", "Output CSV path")
		stocksOnly = flag.Bool("stocks-only", false, "Drop ETFs and non-common-stock symbols")
		verbosity  = flag.Int("v", 0, "Verbosity: 0 warn, 1 info, 2 debug")
	)
	flag.Parse()

	logger := util.NewLogger(*verbosity)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	entries, err := marketdata.NewSymbolDirectoryClient(nil).FetchAll(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch symbol directory: %v", err)
	}
	logger.WithField("symbols", len(entries)).Info("Fetched symbol directory")

	if *stocksOnly {
		entries = marketdata.FilterCommonStock(entries)
		logger.WithField("symbols", len(entries)).Info("Filtered to common stock")
	}

	if err := writeEntries(*outPath, entries); err != nil {
		log.Fatalf("Failed to write %s: %v", *outPath, err)
	}
	fmt.Printf("Wrote %d symbols to %s\n", len(entries), *outPath)
}

func writeEntries(path string, entries []marketdata.SymbolEntry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	f, err := os.Create(path) // #nosec G304 - path from output flag
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Symbol", "Security Name", "Exchange", "ETF"}); err != nil {
		return err
	}
	for _, e := range entries {
		etf := "N"
		if e.ETF {
			etf = "Y"
		}
		if err := w.Write([]string{e.Symbol, e.SecurityName, e.Exchange, etf}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
