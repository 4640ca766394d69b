// gex computes dealer gamma exposure from a CBOE quote-table CSV: total
// and per-strike gamma, the spot-level profile with its zero-gamma flip
// point, persistence into SQLite and an optional HTML report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"

	"github.com/quarrydale/tradetools/internal/gex"
	"github.com/quarrydale/tradetools/internal/models"
	"github.com/quarrydale/tradetools/internal/report"
	"github.com/quarrydale/tradetools/internal/storage"
	"github.com/quarrydale/tradetools/internal/util"
)

func main() {
	var (
		path      = flag.String("file", "", "Path to the CBOE quote-table CSV")
		dbPath    = flag.String("db-path", "data/market.db", "SQLite database path")
		htmlPath  = flag.String("html", "", "Optional path for an HTML gamma report")
		span      = flag.Float64("span", 0.1, "Profile half-width as a fraction of spot")
		verbosity = flag.Int("v", 0, "Verbosity: 0 warn, 1 info, 2 debug")
	)
	flag.Parse()

	logger := util.NewLogger(*verbosity)
	if *path == "" {
		flag.Usage()
		log.Fatal("Missing -file")
	}

	snap, err := gex.ParseFile(*path)
	if err != nil {
		log.Fatalf("Failed to parse quote table: %v", err)
	}
	snap.ComputeExposure()

	logger.WithField("rows", len(snap.Rows)).Info("Parsed quote table")

	fmt.Printf("Spot: %.2f on %s\n", snap.Spot, snap.QuoteDate.Format("2006-01-02"))
	fmt.Printf("Total gamma: %.3f $Bn per 1%% move\n", snap.TotalGamma())

	profile := snap.GammaProfile(snap.Spot*(1-*span), snap.Spot*(1+*span))
	if math.IsNaN(profile.ZeroGamma) {
		fmt.Println("Zero gamma: no flip point in range")
	} else {
		fmt.Printf("Zero gamma: %.2f\n", profile.ZeroGamma)
	}

	store, err := storage.NewStorage(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	n, err := store.InsertGEXRows(context.Background(), toRecords(snap))
	if err != nil {
		log.Fatalf("Failed to persist snapshot: %v", err)
	}
	logger.WithField("inserted", n).Info("Persisted gamma snapshot")

	if *htmlPath != "" {
		title := fmt.Sprintf("Gamma exposure %s", snap.QuoteDate.Format("2006-01-02"))
		if err := report.WriteFile(*htmlPath, report.GammaPage(title, snap, profile)); err != nil {
			log.Fatalf("Failed to write HTML report: %v", err)
		}
		fmt.Printf("Wrote %s\n", *htmlPath)
	}
}

func toRecords(snap *gex.Snapshot) []models.GEXRecord {
	quoteDate := snap.QuoteDate.Format("2006-01-02")
	recs := make([]models.GEXRecord, len(snap.Rows))
	for i, r := range snap.Rows {
		recs[i] = models.GEXRecord{
			QuoteDate:  quoteDate,
			Spot:       snap.Spot,
			Expiration: r.Expiration.Format("2006-01-02"),
			Strike:     r.Strike,
			CallIV:     r.CallIV,
			CallGamma:  r.CallGamma,
			CallOI:     r.CallOpenInt,
			PutIV:      r.PutIV,
			PutGamma:   r.PutGamma,
			PutOI:      r.PutOpenInt,
			CallGEX:    r.CallGEX,
			PutGEX:     r.PutGEX,
		}
	}
	return recs
}
