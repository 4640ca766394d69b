// bscalc prices a European option with Black-Scholes, prints the Greeks
// and optionally solves for implied volatility from a market price. A
// CSV of daily bars can supply a historical volatility estimate instead
// of an explicit sigma.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/quarrydale/tradetools/internal/marketdata"
	"github.com/quarrydale/tradetools/internal/models"
	"github.com/quarrydale/tradetools/internal/pricing"
	"github.com/quarrydale/tradetools/internal/volatility"
)

func main() {
	var (
		spot    = flag.Float64("spot", 0, "Underlying price")
		strike  = flag.Float64("strike", 0, "Strike price")
		days    = flag.Float64("days", 30, "Days to expiration")
		rate    = flag.Float64("r", 0.04, "Risk-free rate")
		sigma   = flag.Float64("sigma", 0, "Annualized volatility (omit to use -csv)")
		optType = flag.String("type", "call", "Option type: call or put")
		mktPx   = flag.Float64("price", 0, "Market price to solve implied volatility from")
		csvPath = flag.String("csv", "", "OHLCV CSV for historical volatility estimates")
	)
	flag.Parse()

	if *spot <= 0 || *strike <= 0 {
		flag.Usage()
		os.Exit(1)
	}
	ot := models.OptionType(*optType)
	if ot != models.Call && ot != models.Put {
		log.Fatalf("Invalid option type %q", *optType)
	}

	vol := *sigma
	if *csvPath != "" {
		bars, err := loadBars(*csvPath)
		if err != nil {
			log.Fatalf("Failed to load bars: %v", err)
		}
		printVolEstimates(bars)
		if vol == 0 {
			vol = volatility.YangZhang(bars)
		}
	}
	if vol <= 0 && *mktPx <= 0 {
		log.Fatal("Need -sigma, -csv or -price")
	}

	t := *days / 365.0

	if *mktPx > 0 {
		iv := pricing.ImpliedVolatility(*mktPx, *spot, *strike, t, *rate, ot)
		if math.IsNaN(iv) {
			log.Fatalf("Implied volatility did not converge for price %.2f", *mktPx)
		}
		fmt.Printf("Implied volatility: %.2f%%\n", iv*100)
		if vol == 0 {
			vol = iv
		}
	}

	q := pricing.Value(*spot, *strike, t, *rate, vol, ot)
	fmt.Printf("\n%s %.2f / %.0f days @ %.1f%% vol\n", ot, *strike, *days, vol*100)
	fmt.Printf("Price: %8.4f\n", q.Price)
	fmt.Printf("Delta: %8.4f\n", q.Delta)
	fmt.Printf("Gamma: %8.4f\n", q.Gamma)
	fmt.Printf("Theta: %8.4f\n", q.Theta)
	fmt.Printf("Vega:  %8.4f\n", q.Vega)
	fmt.Printf("Rho:   %8.4f\n", q.Rho)
}

func loadBars(path string) ([]volatility.Bar, error) {
	f, err := os.Open(path) // #nosec G304 - user-supplied input file
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	rows, err := marketdata.ParseOHLCVCSV(f)
	if err != nil {
		return nil, err
	}
	bars := make([]volatility.Bar, len(rows))
	for i, r := range rows {
		bars[i] = volatility.Bar{Open: r.Open, High: r.High, Low: r.Low, Close: r.Close}
	}
	return bars, nil
}

func printVolEstimates(bars []volatility.Bar) {
	fmt.Printf("Historical volatility over %d bars:\n", len(bars))
	fmt.Printf("  close-to-close: %6.2f%%\n", volatility.CloseToClose(bars)*100)
	fmt.Printf("  Parkinson:      %6.2f%%\n", volatility.Parkinson(bars)*100)
	fmt.Printf("  Garman-Klass:   %6.2f%%\n", volatility.GarmanKlass(bars)*100)
	fmt.Printf("  Yang-Zhang:     %6.2f%%\n", volatility.YangZhang(bars)*100)
}
