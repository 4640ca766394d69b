package backtest

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// RenderResults prints one row per strategy run with the headline
// metrics, coloring returns green or red.
func RenderResults(w io.Writer, results []*Result) error {
	header := []string{"Strategy", "Period", "Final Equity", "Return", "CAGR", "Sharpe", "Max DD", "Trades", "Win Rate"}

	green := color.New(color.FgGreen).SprintfFunc()
	red := color.New(color.FgRed).SprintfFunc()

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		ret := fmt.Sprintf("%+.2f%%", r.TotalReturn*100)
		if r.TotalReturn >= 0 {
			ret = green("%s", ret)
		} else {
			ret = red("%s", ret)
		}

		rows = append(rows, []string{
			r.Strategy,
			fmt.Sprintf("%s .. %s", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02")),
			fmt.Sprintf("%.2f", r.FinalEquity),
			ret,
			fmt.Sprintf("%+.2f%%", r.CAGR*100),
			fmt.Sprintf("%.2f", r.Sharpe),
			fmt.Sprintf("%.2f%%", r.MaxDrawdown*100),
			fmt.Sprintf("%d", r.NumTrades),
			fmt.Sprintf("%.1f%%", r.WinRate*100),
		})
	}

	alignments := []tw.Align{
		tw.AlignDefault,
		tw.AlignDefault,
		tw.AlignRight,
		tw.AlignRight,
		tw.AlignRight,
		tw.AlignRight,
		tw.AlignRight,
		tw.AlignRight,
		tw.AlignRight,
	}
	tableConfig := tablewriter.WithConfig(tablewriter.Config{
		Header: tw.CellConfig{
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
		},
	})
	table := tablewriter.NewTable(w, tableConfig, tablewriter.WithAlignment(alignments))
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
