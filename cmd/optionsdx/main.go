// optionsdx imports OptionsDX end-of-day option chain files into the
// options_data table. Re-importing a file is safe: duplicate rows are
// skipped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/quarrydale/tradetools/internal/marketdata"
	"github.com/quarrydale/tradetools/internal/storage"
	"github.com/quarrydale/tradetools/internal/util"
)

func main() {
	var (
		dbPath     = flag.String("db-path", "data/market.db", "SQLite database path")
		underlying = flag.String("underlying", "", "Underlying symbol (default: derived from file name)")
		verbosity  = flag.Int("v", 0, "Verbosity: 0 warn, 1 info, 2 debug")
	)
	flag.Parse()

	logger := util.NewLogger(*verbosity)
	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		log.Fatal("No input files given")
	}

	store, err := storage.NewStorage(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	ctx := context.Background()
	var total int64
	for _, path := range files {
		symbol := *underlying
		if symbol == "" {
			symbol = symbolFromFilename(path)
		}
		n, err := importFile(ctx, store, path, symbol)
		if err != nil {
			log.Fatalf("Failed to import %s: %v", path, err)
		}
		logger.WithField("rows", n).Infof("Imported %s as %s", path, symbol)
		total += n
	}
	fmt.Printf("Imported %d rows from %d files\n", total, len(files))
}

func importFile(ctx context.Context, store storage.Interface, path, underlying string) (int64, error) {
	f, err := os.Open(path) // #nosec G304 - user-supplied input file
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = f.Close()
	}()

	rows, err := marketdata.ParseOptionsDX(f, underlying)
	if err != nil {
		return 0, err
	}
	return store.InsertOptionRows(ctx, rows)
}

// symbolFromFilename extracts the underlying from names like
// "spy_eod_202401.txt".
func symbolFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.IndexAny(base, "_-."); i > 0 {
		base = base[:i]
	}
	return strings.ToUpper(base)
}
