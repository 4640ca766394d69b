// shortvol imports FINRA daily short sale volume into SQLite, either
// from local pipe-delimited files or downloaded for a date range.
// Duplicate (date, symbol) rows are skipped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quarrydale/tradetools/internal/marketdata"
	"github.com/quarrydale/tradetools/internal/storage"
	"github.com/quarrydale/tradetools/internal/util"
)

func main() {
	var (
		dbPath    = flag.String("db-path", "data/market.db", "SQLite database path")
		startStr  = flag.String("start", "", "Download start date YYYY-MM-DD")
		endStr    = flag.String("end", "", "Download end date YYYY-MM-DD (default today)")
		verbosity = flag.Int("v", 0, "Verbosity: 0 warn, 1 info, 2 debug")
	)
	flag.Parse()

	logger := util.NewLogger(*verbosity)
	files := flag.Args()
	if len(files) == 0 && *startStr == "" {
		flag.Usage()
		log.Fatal("Give input files or a -start date to download")
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
		n, err := importFile(ctx, store, path)
		if err != nil {
			log.Fatalf("Failed to import %s: %v", path, err)
		}
		logger.WithField("rows", n).Infof("Imported %s", path)
		total += n
	}

	if *startStr != "" {
		n, err := downloadRange(ctx, store, logger, *startStr, *endStr)
		if err != nil {
			log.Fatalf("Download failed: %v", err)
		}
		total += n
	}

	fmt.Printf("Imported %d rows\n", total)
}

func importFile(ctx context.Context, store storage.Interface, path string) (int64, error) {
	f, err := os.Open(path) // #nosec G304 - user-supplied input file
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = f.Close()
	}()

	recs, err := marketdata.ParseShortVolume(f)
	if err != nil {
		return 0, err
	}
	return store.UpsertShortVolume(ctx, recs)
}

func downloadRange(ctx context.Context, store storage.Interface, logger *logrus.Logger, startStr, endStr string) (int64, error) {
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return 0, fmt.Errorf("bad -start date: %w", err)
	}
	end := time.Now()
	if endStr != "" {
		if end, err = time.Parse("2006-01-02", endStr); err != nil {
			return 0, fmt.Errorf("bad -end date: %w", err)
		}
	}

	client := marketdata.NewShortVolumeClient()
	var total int64
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		recs, err := client.FetchDay(ctx, day)
		if err != nil {
			// Holidays have no file; skip and move on
			logger.Warnf("Skipping %s: %v", day.Format("2006-01-02"), err)
			continue
		}
		n, err := store.UpsertShortVolume(ctx, recs)
		if err != nil {
			return total, err
		}
		logger.Infof("Imported %s: %d rows", day.Format("2006-01-02"), n)
		total += n
	}
	return total, nil
}
