package report

import (
	"fmt"

	"github.com/quarrydale/tradetools/internal/gex"
	"github.com/quarrydale/tradetools/internal/models"
	"github.com/quarrydale/tradetools/internal/pricing"
	"github.com/quarrydale/tradetools/internal/straddle"
)

// PayoffPage charts the expiry payoff of a position along with its
// breakeven levels.
func PayoffPage(title string, a *pricing.Analysis) *Page {
	traces := []map[string]any{
		{
			"x":    a.Prices,
			"y":    sanitize(a.Payoff),
			"type": "scatter",
			"mode": "lines",
			"name": "P&L at expiry",
			"line": map[string]any{"color": "#1f77b4", "width": 2},
		},
	}
	for _, be := range a.Breakevens {
		traces = append(traces, map[string]any{
			"x":    []float64{be, be},
			"y":    []any{nil, nil},
			"type": "scatter",
			"mode": "lines",
			"name": fmt.Sprintf("breakeven %.2f", be),
		})
	}
	layout := map[string]any{
		"xaxis": map[string]any{"title": "Underlying price"},
		"yaxis": map[string]any{"title": "Profit / loss"},
		"shapes": []map[string]any{
			{
				"type": "line",
				"x0":   a.SpotPrice, "x1": a.SpotPrice,
				"y0": 0, "y1": 1, "yref": "paper",
				"line": map[string]any{"dash": "dot", "color": "#888"},
			},
		},
	}
	return &Page{
		Title:  title,
		Charts: []Chart{newChart("payoff", fmt.Sprintf("%s payoff", a.Shape), traces, layout)},
	}
}

// CalendarPage charts the value of a calendar spread at front expiry.
func CalendarPage(title string, r *pricing.CalendarResult) *Page {
	prices := make([]float64, len(r.Points))
	payoff := make([]float64, len(r.Points))
	for i, p := range r.Points {
		prices[i] = p.Underlying
		payoff[i] = p.Payoff
	}
	traces := []map[string]any{
		{
			"x":    prices,
			"y":    sanitize(payoff),
			"type": "scatter",
			"mode": "lines",
			"name": "P&L at front expiry",
			"line": map[string]any{"color": "#1f77b4", "width": 2},
		},
	}
	for _, be := range r.Breakevens {
		traces = append(traces, map[string]any{
			"x":    []float64{be, be},
			"y":    []any{nil, nil},
			"type": "scatter",
			"mode": "lines",
			"name": fmt.Sprintf("breakeven %.2f", be),
		})
	}
	layout := map[string]any{
		"xaxis": map[string]any{"title": "Underlying price"},
		"yaxis": map[string]any{"title": "Profit / loss"},
	}
	return &Page{
		Title:  title,
		Charts: []Chart{newChart("calendar", title, traces, layout)},
	}
}

// GammaPage charts per-strike dealer gamma and the spot gamma profile
// with its zero-gamma flip level.
func GammaPage(title string, snap *gex.Snapshot, profile *gex.Profile) *Page {
	strikes, gamma := snap.ByStrike()
	byStrike := []map[string]any{
		{
			"x":    strikes,
			"y":    sanitize(gamma),
			"type": "bar",
			"name": "Gamma by strike",
		},
	}
	strikeLayout := map[string]any{
		"xaxis": map[string]any{"title": "Strike"},
		"yaxis": map[string]any{"title": "Gamma exposure ($Bn / 1% move)"},
	}

	prof := []map[string]any{
		{"x": profile.Levels, "y": sanitize(profile.Total), "type": "scatter", "mode": "lines", "name": "All expiries"},
		{"x": profile.Levels, "y": sanitize(profile.ExNext), "type": "scatter", "mode": "lines", "name": "Ex-next expiry"},
		{"x": profile.Levels, "y": sanitize(profile.ExNextMonthly), "type": "scatter", "mode": "lines", "name": "Ex-next monthly"},
	}
	profLayout := map[string]any{
		"xaxis": map[string]any{"title": "Spot level"},
		"yaxis": map[string]any{"title": "Gamma exposure ($Bn / 1% move)"},
	}
	if fl := sanitize([]float64{profile.ZeroGamma}); fl[0] != nil {
		profLayout["shapes"] = []map[string]any{
			{
				"type": "line",
				"x0":   profile.ZeroGamma, "x1": profile.ZeroGamma,
				"y0": 0, "y1": 1, "yref": "paper",
				"line": map[string]any{"dash": "dash", "color": "#d62728"},
			},
		}
	}

	return &Page{
		Title: title,
		Charts: []Chart{
			newChart("gamma_strike", "Gamma by strike", byStrike, strikeLayout),
			newChart("gamma_profile", "Gamma profile", prof, profLayout),
		},
	}
}

// ExpectedMovePage charts close prices with the straddle-implied band
// around the latest close.
func ExpectedMovePage(symbol string, dates []string, closes []float64, spot, move float64) *Page {
	upper := spot + move
	lower := spot - move

	traces := []map[string]any{
		{"x": dates, "y": sanitize(closes), "type": "scatter", "mode": "lines", "name": symbol},
	}
	layout := map[string]any{
		"xaxis": map[string]any{"title": "Date"},
		"yaxis": map[string]any{"title": "Close"},
		"shapes": []map[string]any{
			{"type": "line", "x0": 0, "x1": 1, "xref": "paper", "y0": upper, "y1": upper,
				"line": map[string]any{"dash": "dot", "color": "#2ca02c"}},
			{"type": "line", "x0": 0, "x1": 1, "xref": "paper", "y0": lower, "y1": lower,
				"line": map[string]any{"dash": "dot", "color": "#d62728"}},
		},
	}
	title := fmt.Sprintf("%s expected move ±%.2f", symbol, move)
	return &Page{
		Title:  title,
		Charts: []Chart{newChart("expected_move", title, traces, layout)},
	}
}

// EquityPage charts cumulative straddle P&L plus per-trade results.
func EquityPage(symbol string, trades []models.TradeRecord) *Page {
	s := straddle.Summarize(trades)

	dates := make([]string, len(s.Curve))
	pl := make([]float64, len(s.Curve))
	for i, p := range s.Curve {
		dates[i] = p.Date
		pl[i] = p.PL
	}
	curve := []map[string]any{
		{"x": dates, "y": sanitize(pl), "type": "scatter", "mode": "lines+markers", "name": "Cumulative P&L"},
	}
	curveLayout := map[string]any{
		"xaxis": map[string]any{"title": "Close date"},
		"yaxis": map[string]any{"title": "P&L"},
	}

	var tradeDates []string
	var tradePL []float64
	for _, t := range trades {
		if t.Status == models.StatusOpen {
			continue
		}
		tradeDates = append(tradeDates, t.Date)
		tradePL = append(tradePL, t.PLClose)
	}
	perTrade := []map[string]any{
		{"x": tradeDates, "y": sanitize(tradePL), "type": "bar", "name": "Trade P&L"},
	}
	perTradeLayout := map[string]any{
		"xaxis": map[string]any{"title": "Open date"},
		"yaxis": map[string]any{"title": "P&L"},
	}

	return &Page{
		Title: fmt.Sprintf("%s straddle walk (%d trades, %.0f%% win rate)", symbol, s.Trades, s.WinRate*100),
		Charts: []Chart{
			newChart("equity", "Cumulative P&L", curve, curveLayout),
			newChart("trades", "Per-trade P&L", perTrade, perTradeLayout),
		},
	}
}
