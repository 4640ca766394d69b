// earnings scrapes an earnings calendar page for the coming days and
// writes the events out as JSON or CSV.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/quarrydale/tradetools/internal/marketdata"
	"github.com/quarrydale/tradetools/internal/models"
	"github.com/quarrydale/tradetools/internal/util"
)

func main() {
	var (
		baseURL   = flag.String("url", "", "Earnings calendar base URL")
		days      = flag.Int("days", 5, "Number of days ahead to scrape")
		format    = flag.String("format", "json", "Output format: json or csv")
		outPath   = flag.String("out", "", "Output file (default stdout)")
		verbosity = flag.Int("v", 0, "Verbosity: 0 warn, 1 info, 2 debug")
	)
	flag.Parse()

	logger := util.NewLogger(*verbosity)
	if *baseURL == "" {
		flag.Usage()
		log.Fatal("Missing -url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client := marketdata.NewEarningsClient(*baseURL)
	var events []models.EarningsEvent
	for i := 0; i < *days; i++ {
		day := time.Now().AddDate(0, 0, i)
		got, err := client.FetchDay(ctx, day)
		if err != nil {
			log.Fatalf("Failed to fetch %s: %v", day.Format("2006-01-02"), err)
		}
		logger.WithField("events", len(got)).Infof("Scraped %s", day.Format("2006-01-02"))
		events = append(events, got...)
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath) // #nosec G304 - path from output flag
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *outPath, err)
		}
		defer func() {
			_ = f.Close()
		}()
		out = f
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(events); err != nil {
			log.Fatalf("Failed to encode events: %v", err)
		}
	case "csv":
		w := csv.NewWriter(out)
		if err := w.Write([]string{"Symbol", "Company", "Date", "Timing", "EPS Estimate"}); err != nil {
			log.Fatalf("Failed to write CSV: %v", err)
		}
		for _, e := range events {
			rec := []string{
				e.Symbol, e.Company, e.Date.Format("2006-01-02"), e.Timing,
				strconv.FormatFloat(e.EPSEstimate, 'f', 2, 64),
			}
			if err := w.Write(rec); err != nil {
				log.Fatalf("Failed to write CSV: %v", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			log.Fatalf("Failed to flush CSV: %v", err)
		}
	default:
		log.Fatalf("Unknown format %q", *format)
	}

	if *outPath != "" {
		fmt.Printf("Wrote %d events to %s\n", len(events), *outPath)
	}
}
