// optcalc analyzes an option position described in a YAML file: per-leg
// and combined payoff, max profit/loss, breakevens and strategy shape.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"gopkg.in/yaml.v3"

	"github.com/quarrydale/tradetools/internal/models"
	"github.com/quarrydale/tradetools/internal/pricing"
	"github.com/quarrydale/tradetools/internal/report"
)

type positionFile struct {
	SpotPrice float64            `yaml:"spot_price"`
	Positions []models.OptionLeg `yaml:"positions"`
}

func main() {
	var (
		path     string
		htmlPath string

		calendar   bool
		strike     float64
		frontPrice float64
		backPrice  float64
		frontDTE   float64
		backDTE    float64
		frontSpot  float64
		backSpot   float64
		rate       float64
		optType    string
	)
	flag.StringVar(&path, "file", "", "Path to the position YAML file")
	flag.StringVar(&htmlPath, "html", "", "Optional path for an HTML payoff report")
	flag.BoolVar(&calendar, "calendar", false, "Value a calendar spread from the flags below instead of a YAML file")
	flag.Float64Var(&strike, "strike", 0, "Calendar: shared strike")
	flag.Float64Var(&frontPrice, "front-price", 0, "Calendar: front-month option price")
	flag.Float64Var(&backPrice, "back-price", 0, "Calendar: back-month option price")
	flag.Float64Var(&frontDTE, "front-dte", 0, "Calendar: days to front expiry")
	flag.Float64Var(&backDTE, "back-dte", 0, "Calendar: days to back expiry")
	flag.Float64Var(&frontSpot, "front-spot", 0, "Calendar: front-month underlying price")
	flag.Float64Var(&backSpot, "back-spot", 0, "Calendar: back-month underlying price (defaults to front)")
	flag.Float64Var(&rate, "r", 0, "Calendar: interest rate")
	flag.StringVar(&optType, "type", "call", "Calendar: option type (call or put)")
	flag.Parse()

	if calendar {
		if backSpot == 0 {
			backSpot = frontSpot
		}
		runCalendar(&pricing.CalendarSpread{
			Strike:         strike,
			FrontPrice:     frontPrice,
			BackPrice:      backPrice,
			FrontDTE:       frontDTE,
			BackDTE:        backDTE,
			InterestRate:   rate,
			OptType:        models.OptionType(optType),
			FrontUnderlier: frontSpot,
			BackUnderlier:  backSpot,
		}, htmlPath)
		return
	}

	if path == "" {
		flag.Usage()
		os.Exit(1)
	}

	pos, err := loadPositions(path)
	if err != nil {
		log.Fatalf("Failed to load positions: %v", err)
	}

	analysis, err := pricing.Analyze(pos.SpotPrice, pos.Positions)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	if err := printAnalysis(analysis); err != nil {
		log.Fatalf("Failed to render analysis: %v", err)
	}

	if htmlPath != "" {
		page := report.PayoffPage(fmt.Sprintf("%s payoff", analysis.Shape), analysis)
		if err := report.WriteFile(htmlPath, page); err != nil {
			log.Fatalf("Failed to write HTML report: %v", err)
		}
		fmt.Printf("\nWrote %s\n", htmlPath)
	}
}

func runCalendar(spread *pricing.CalendarSpread, htmlPath string) {
	if spread.OptType != models.Call && spread.OptType != models.Put {
		log.Fatalf("Invalid option type %q", spread.OptType)
	}
	result, err := spread.Evaluate()
	if err != nil {
		log.Fatalf("Calendar valuation failed: %v", err)
	}

	fmt.Printf("Front month IV: %.2f%%\n", result.FrontIV*100)
	fmt.Printf("Back month IV:  %.2f%%\n", result.BackIV*100)
	fmt.Printf("Setup cost:     %.2f\n", result.SetupCost)
	fmt.Printf("Max profit:     %.2f\n", result.MaxProfit)
	fmt.Printf("Max loss:       %.2f\n", result.MaxLoss)
	fmt.Printf("Breakevens:     %v\n", formatLevels(result.Breakevens))

	if htmlPath != "" {
		title := fmt.Sprintf("Calendar spread %.2f %s", spread.Strike, spread.OptType)
		if err := report.WriteFile(htmlPath, report.CalendarPage(title, result)); err != nil {
			log.Fatalf("Failed to write HTML report: %v", err)
		}
		fmt.Printf("\nWrote %s\n", htmlPath)
	}
}

func loadPositions(path string) (*positionFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 - user-supplied input file
	if err != nil {
		return nil, err
	}
	var pos positionFile
	if err := yaml.Unmarshal(data, &pos); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if pos.SpotPrice <= 0 {
		return nil, fmt.Errorf("spot_price must be positive")
	}
	if len(pos.Positions) == 0 {
		return nil, fmt.Errorf("no positions in %s", path)
	}
	for i := range pos.Positions {
		if pos.Positions[i].Multiplier == 0 {
			pos.Positions[i].Multiplier = 100
		}
		if err := pos.Positions[i].Validate(); err != nil {
			return nil, fmt.Errorf("leg %d: %w", i+1, err)
		}
	}
	return &pos, nil
}

func printAnalysis(a *pricing.Analysis) error {
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithAlignment([]tw.Align{
			tw.AlignLeft, tw.AlignLeft, tw.AlignRight, tw.AlignRight,
			tw.AlignRight, tw.AlignRight, tw.AlignRight,
		}),
	)
	table.Header([]string{"Type", "Side", "Strike", "Premium", "Max Profit", "Max Loss", "Breakeven"})

	rows := make([][]string, 0, len(a.Legs))
	for _, leg := range a.Legs {
		rows = append(rows, []string{
			string(leg.Leg.Type),
			string(leg.Leg.Side),
			fmt.Sprintf("%.2f", leg.Leg.Strike),
			fmt.Sprintf("%.2f", leg.Leg.Premium),
			formatBound(leg.MaxProfit),
			formatBound(leg.MaxLoss),
			fmt.Sprintf("%.2f", leg.Breakeven),
		})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Printf("\nStrategy:      %s\n", a.Shape)
	fmt.Printf("Spot price:    %.2f\n", a.SpotPrice)
	fmt.Printf("Net premium:   %.2f\n", a.TotalPremium)
	fmt.Printf("Max profit:    %s\n", formatBound(a.MaxProfit))
	if a.MaxLossUnlimited {
		fmt.Println("Max loss:      unlimited")
	}
	fmt.Printf("Breakevens:    %v\n", formatLevels(a.Breakevens))
	if len(a.TheoreticalBreakeven) > 0 {
		fmt.Printf("Theoretical:   %v\n", formatLevels(a.TheoreticalBreakeven))
	}
	return nil
}

func formatBound(v float64) string {
	if math.IsInf(v, 1) {
		return "unlimited"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatLevels(levels []float64) []string {
	out := make([]string, len(levels))
	for i, v := range levels {
		out[i] = fmt.Sprintf("%.2f", v)
	}
	return out
}
