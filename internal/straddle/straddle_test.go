package straddle

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydale/tradetools/internal/models"
	"github.com/quarrydale/tradetools/internal/storage"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func chainRow(quote, exp string, strike, under, callLast, putLast float64) models.OptionRow {
	return models.OptionRow{
		Underlying:     "SPY",
		QuoteDate:      quote,
		Expiration:     exp,
		Strike:         strike,
		UnderlyingLast: under,
		CLast:          callLast,
		CBid:           callLast - 0.05,
		CAsk:           callLast + 0.05,
		PLast:          putLast,
		PBid:           putLast - 0.05,
		PAsk:           putLast + 0.05,
	}
}

func seedStore(t *testing.T, rows []models.OptionRow) *storage.MockStorage {
	t.Helper()
	store := storage.NewMockStorage()
	_, err := store.InsertOptionRows(context.Background(), rows)
	require.NoError(t, err)
	return store
}

func TestRun_OpensAndExpiresTrade(t *testing.T) {
	rows := []models.OptionRow{
		// ATM strike is 100 with the underlying at 100.2
		chainRow("2024-01-02", "2024-01-05", 99, 100.2, 2.6, 1.2),
		chainRow("2024-01-02", "2024-01-05", 100, 100.2, 2.0, 1.8),
		chainRow("2024-01-02", "2024-01-05", 101, 100.2, 1.5, 2.4),
		chainRow("2024-01-03", "2024-01-05", 100, 100.5, 1.6, 1.4),
		chainRow("2024-01-05", "2024-01-05", 100, 101.0, 1.0, 0.0),
	}
	store := seedStore(t, rows)

	eng := New(store, quietLogger(), Config{
		Symbol:     "SPY",
		TargetDTE:  3,
		TradeDelay: -1,
	})
	trades, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, "2024-01-02", tr.Date)
	assert.Equal(t, "2024-01-05", tr.ExpireDate)
	assert.Equal(t, 100.0, tr.StrikePrice)
	assert.InDelta(t, 3.8, tr.PremiumOpen, 1e-9)
	assert.Equal(t, models.StatusExpired, tr.Status)
	assert.Equal(t, ReasonExpired, tr.CloseReason)
	// Premium at expiry 1.0, P&L = 3.8 - 1.0
	assert.InDelta(t, 2.8, tr.PLClose, 1e-9)

	snaps, err := store.ContractSnapshots(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Len(t, snaps, 2) // 2024-01-03 and 2024-01-05
}

func TestRun_ClosesAtProfitTarget(t *testing.T) {
	rows := []models.OptionRow{
		chainRow("2024-01-02", "2024-01-31", 100, 100.0, 2.0, 2.0),
		// Premium collapses to 2.4, below 75% of the 4.0 open
		chainRow("2024-01-03", "2024-01-31", 100, 100.1, 1.4, 1.0),
	}
	store := seedStore(t, rows)

	eng := New(store, quietLogger(), Config{
		Symbol:       "SPY",
		TargetDTE:    20,
		ProfitTarget: 0.25,
		TradeDelay:   -1,
	})
	trades, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, trades)

	// A fresh trade opens the same day the first one closes
	tr := trades[0]
	assert.Equal(t, "2024-01-02", tr.Date)
	assert.Equal(t, models.StatusClosed, tr.Status)
	assert.Equal(t, ReasonProfitTarget, tr.CloseReason)
	assert.InDelta(t, 1.6, tr.PLClose, 1e-9)
}

func TestRun_ClosesAtStop(t *testing.T) {
	rows := []models.OptionRow{
		chainRow("2024-01-02", "2024-01-31", 100, 100.0, 2.0, 2.0),
		// Premium doubles to 8.2, past the 2x stop
		chainRow("2024-01-03", "2024-01-31", 100, 92.0, 0.4, 7.8),
	}
	store := seedStore(t, rows)

	eng := New(store, quietLogger(), Config{
		Symbol:       "SPY",
		TargetDTE:    20,
		StopMultiple: 2.0,
		TradeDelay:   -1,
	})
	trades, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, trades)

	tr := trades[0]
	assert.Equal(t, "2024-01-02", tr.Date)
	assert.Equal(t, models.StatusClosed, tr.Status)
	assert.Equal(t, ReasonStopLoss, tr.CloseReason)
	assert.InDelta(t, -4.2, tr.PLClose, 1e-9)
}

func TestRun_InvalidCloseWhenPricesMissing(t *testing.T) {
	rows := []models.OptionRow{
		chainRow("2024-01-02", "2024-01-05", 100, 100.0, 2.0, 2.0),
		// The expiry quote date exists but the strike row is gone
		chainRow("2024-01-05", "2024-02-02", 110, 101.0, 1.0, 1.0),
	}
	store := seedStore(t, rows)

	eng := New(store, quietLogger(), Config{
		Symbol:     "SPY",
		TargetDTE:  3,
		TradeDelay: -1,
	})
	trades, err := eng.Run(context.Background())
	require.NoError(t, err)

	var first models.TradeRecord
	for _, tr := range trades {
		if tr.Date == "2024-01-02" {
			first = tr
		}
	}
	require.NotZero(t, first.ID)
	assert.Equal(t, models.StatusExpired, first.Status)
	assert.Equal(t, ReasonInvalidClose, first.CloseReason)
}

func TestRun_TradeDelayBlocksEntry(t *testing.T) {
	rows := []models.OptionRow{
		chainRow("2024-01-02", "2024-02-02", 100, 100.0, 2.0, 2.0),
		chainRow("2024-01-03", "2024-02-02", 100, 100.1, 2.0, 2.0),
		chainRow("2024-01-09", "2024-02-02", 100, 100.2, 2.0, 2.0),
	}
	store := seedStore(t, rows)

	eng := New(store, quietLogger(), Config{
		Symbol:     "SPY",
		TargetDTE:  20,
		TradeDelay: 5,
	})
	trades, err := eng.Run(context.Background())
	require.NoError(t, err)

	// 2024-01-03 is only one day after the first entry, 2024-01-09 qualifies
	require.Len(t, trades, 2)
	assert.Equal(t, "2024-01-02", trades[0].Date)
	assert.Equal(t, "2024-01-09", trades[1].Date)
}

func TestRun_SkipsMissingLegPrice(t *testing.T) {
	rows := []models.OptionRow{
		chainRow("2024-01-02", "2024-02-02", 100, 100.0, 2.0, 0),
	}
	store := seedStore(t, rows)

	eng := New(store, quietLogger(), Config{Symbol: "SPY", TargetDTE: 20, TradeDelay: -1})
	trades, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestRun_NoQuoteDates(t *testing.T) {
	store := storage.NewMockStorage()
	eng := New(store, quietLogger(), Config{Symbol: "SPY", TargetDTE: 30})
	_, err := eng.Run(context.Background())
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	trades := []models.TradeRecord{
		{ID: 1, Status: models.StatusExpired, PremiumOpen: 4.0, PLClose: 2.0, ExpireDate: "2024-01-05"},
		{ID: 2, Status: models.StatusClosed, PremiumOpen: 3.0, PLClose: -1.0, ExpireDate: "2024-01-12"},
		{ID: 3, Status: models.StatusOpen, PremiumOpen: 5.0},
	}

	s := Summarize(trades)
	assert.Equal(t, 3, s.Trades)
	assert.Equal(t, 2, s.Closed)
	assert.Equal(t, 1, s.Wins)
	assert.InDelta(t, 0.5, s.WinRate, 1e-9)
	assert.InDelta(t, 1.0, s.TotalPL, 1e-9)
	assert.InDelta(t, 4.0, s.AvgPremium, 1e-9)
	require.Len(t, s.Curve, 2)
	assert.InDelta(t, 2.0, s.Curve[0].PL, 1e-9)
	assert.InDelta(t, 1.0, s.Curve[1].PL, 1e-9)
}

func TestRenderTrades(t *testing.T) {
	trades := []models.TradeRecord{
		{ID: 1, Date: "2024-01-02", ExpireDate: "2024-01-05", StrikePrice: 100,
			Status: models.StatusExpired, PremiumOpen: 3.8, PLClose: 2.8, CloseReason: ReasonExpired},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderTrades(&buf, trades))
	out := buf.String()
	assert.Contains(t, out, "2024-01-02")
	assert.Contains(t, out, ReasonExpired)
	assert.Contains(t, out, "1 trades, 1 closed")
}

func TestHoldingDays(t *testing.T) {
	tr := &models.TradeRecord{Date: "2024-01-02", ExpireDate: "2024-01-31"}
	assert.Equal(t, 29, HoldingDays(tr))

	bad := &models.TradeRecord{Date: "nope", ExpireDate: "2024-01-31"}
	assert.Equal(t, 0, HoldingDays(bad))
}
