package straddle

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/quarrydale/tradetools/internal/models"
)

// Summary aggregates a finished walk.
type Summary struct {
	Trades     int
	Closed     int
	Wins       int
	WinRate    float64
	TotalPL    float64
	AvgPL      float64
	AvgPremium float64
	Curve      []EquityPoint
}

// EquityPoint is cumulative realized P&L as of a close date.
type EquityPoint struct {
	Date string
	PL   float64
}

// Summarize computes aggregate stats over the trade history. Open
// trades count toward Trades but not toward the P&L figures.
func Summarize(trades []models.TradeRecord) *Summary {
	s := &Summary{Trades: len(trades)}
	if len(trades) == 0 {
		return s
	}

	var premiumSum float64
	for _, t := range trades {
		premiumSum += t.PremiumOpen
		if t.Status == models.StatusOpen {
			continue
		}
		s.Closed++
		s.TotalPL += t.PLClose
		if t.PLClose > 0 {
			s.Wins++
		}
	}
	s.AvgPremium = premiumSum / float64(len(trades))
	if s.Closed > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Closed)
		s.AvgPL = s.TotalPL / float64(s.Closed)
	}
	s.Curve = equityCurve(trades)
	return s
}

// equityCurve accumulates realized P&L in close date order. Trade
// history rows arrive ordered by open date, which matches close order
// closely enough for a daily walk, so a single pass suffices.
func equityCurve(trades []models.TradeRecord) []EquityPoint {
	var curve []EquityPoint
	var cum float64
	for _, t := range trades {
		if t.Status == models.StatusOpen {
			continue
		}
		cum += t.PLClose
		curve = append(curve, EquityPoint{Date: t.ExpireDate, PL: cum})
	}
	return curve
}

// RenderTrades writes the trade history as a table followed by the
// summary line.
func RenderTrades(w io.Writer, trades []models.TradeRecord) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithAlignment([]tw.Align{
			tw.AlignRight, tw.AlignLeft, tw.AlignLeft, tw.AlignRight,
			tw.AlignLeft, tw.AlignRight, tw.AlignRight, tw.AlignLeft,
		}),
	)
	table.Header([]string{"ID", "Open", "Expiry", "Strike", "Status", "Premium", "P&L", "Reason"})

	green := color.New(color.FgGreen).SprintfFunc()
	red := color.New(color.FgRed).SprintfFunc()

	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		pl := ""
		if t.Status != models.StatusOpen {
			pl = fmt.Sprintf("%.2f", t.PLClose)
			if t.PLClose >= 0 {
				pl = green("%s", pl)
			} else {
				pl = red("%s", pl)
			}
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", t.ID),
			t.Date,
			t.ExpireDate,
			fmt.Sprintf("%.2f", t.StrikePrice),
			t.Status,
			fmt.Sprintf("%.2f", t.PremiumOpen),
			pl,
			t.CloseReason,
		})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	s := Summarize(trades)
	_, err := fmt.Fprintf(w, "\n%d trades, %d closed, win rate %.1f%%, total P&L %.2f, avg premium %.2f\n",
		s.Trades, s.Closed, s.WinRate*100, s.TotalPL, s.AvgPremium)
	return err
}

// HoldingDays returns the number of calendar days a closed trade was
// held, or zero when the dates do not parse.
func HoldingDays(t *models.TradeRecord) int {
	open, err1 := time.Parse("2006-01-02", t.Date)
	exp, err2 := time.Parse("2006-01-02", t.ExpireDate)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(exp.Sub(open).Hours() / 24)
}
