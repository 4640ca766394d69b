// Package straddle walks an end-of-day options database quote date by
// quote date, selling ATM straddles at a target DTE and tracking each
// trade until it is closed.
package straddle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quarrydale/tradetools/internal/models"
	"github.com/quarrydale/tradetools/internal/storage"
)

// Close reasons recorded on the trade row.
const (
	ReasonExpired      = "Option Expired"
	ReasonInvalidClose = "Invalid Close"
	ReasonProfitTarget = "Profit Target"
	ReasonStopLoss     = "Stop Loss"
)

// Config controls the daily walk.
type Config struct {
	Symbol        string
	TargetDTE     int     // open at the next expiration with DTE >= this
	ProfitTarget  float64 // close early when this fraction of premium is kept
	StopMultiple  float64 // close early when premium reaches this multiple of open
	TradeDelay    int     // minimum days between new trades, negative disables
	MaxOpenTrades int
}

// Engine runs the walk against a storage backend.
type Engine struct {
	store  storage.Interface
	logger *logrus.Logger
	cfg    Config
}

func New(store storage.Interface, logger *logrus.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.MaxOpenTrades == 0 {
		cfg.MaxOpenTrades = 99
	}
	return &Engine{store: store, logger: logger, cfg: cfg}
}

// Run walks every quote date in order, updating open trades before
// considering a new entry. It returns the full trade history for the
// symbol when the walk completes.
func (e *Engine) Run(ctx context.Context) ([]models.TradeRecord, error) {
	dates, err := e.store.QuoteDates(ctx, e.cfg.Symbol)
	if err != nil {
		return nil, fmt.Errorf("loading quote dates: %w", err)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("no quote dates for %s", e.cfg.Symbol)
	}
	e.logger.WithFields(logrus.Fields{
		"symbol": e.cfg.Symbol,
		"dates":  len(dates),
	}).Info("Starting straddle walk")

	for _, quoteDate := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.updateOpenTrades(ctx, quoteDate); err != nil {
			return nil, err
		}

		ok, err := e.canOpenTrade(ctx, quoteDate)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := e.openTrade(ctx, quoteDate); err != nil {
			return nil, err
		}
	}

	return e.store.TradeHistory(ctx, e.cfg.Symbol)
}

// updateOpenTrades records a history row for every open trade and
// closes those that hit expiry, the profit target or the stop.
func (e *Engine) updateOpenTrades(ctx context.Context, quoteDate string) error {
	open, err := e.store.OpenTrades(ctx, e.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("loading open trades: %w", err)
	}

	for _, trade := range open {
		row, err := e.store.RowAtStrike(ctx, e.cfg.Symbol, quoteDate, trade.ExpireDate, trade.StrikePrice)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("loading prices for trade %d: %w", trade.ID, err)
		}

		var callPrice, putPrice, underlying float64
		if row != nil {
			callPrice = row.CLast
			putPrice = row.PLast
			underlying = row.UnderlyingLast
		}

		snap := &models.ContractSnapshot{
			TradeID:   trade.ID,
			Date:      quoteDate,
			Symbol:    e.cfg.Symbol,
			Strike:    trade.StrikePrice,
			CallPrice: callPrice,
			PutPrice:  putPrice,
		}
		if err := e.store.InsertContractSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("recording history for trade %d: %w", trade.ID, err)
		}

		premium := callPrice + putPrice
		pl := trade.PremiumOpen - premium

		status, reason := e.closeDecision(quoteDate, &trade, underlying, premium)
		if status == "" {
			e.logger.WithFields(logrus.Fields{
				"trade": trade.ID,
				"date":  quoteDate,
			}).Debug("Trade still open")
			continue
		}

		if err := e.store.CloseTrade(ctx, trade.ID, status, pl, reason); err != nil {
			return fmt.Errorf("closing trade %d: %w", trade.ID, err)
		}
		e.logger.WithFields(logrus.Fields{
			"trade":  trade.ID,
			"date":   quoteDate,
			"reason": reason,
			"pl":     pl,
		}).Info("Closed trade")
	}
	return nil
}

// closeDecision returns the status and reason to close with, or an
// empty status when the trade stays open.
func (e *Engine) closeDecision(quoteDate string, trade *models.TradeRecord, underlying, premium float64) (string, string) {
	if quoteDate >= trade.ExpireDate {
		if underlying == 0 {
			return models.StatusExpired, ReasonInvalidClose
		}
		return models.StatusExpired, ReasonExpired
	}
	if underlying == 0 || trade.PremiumOpen <= 0 {
		return "", ""
	}
	if e.cfg.StopMultiple > 1 && premium >= trade.PremiumOpen*e.cfg.StopMultiple {
		return models.StatusClosed, ReasonStopLoss
	}
	if e.cfg.ProfitTarget > 0 && premium <= trade.PremiumOpen*(1-e.cfg.ProfitTarget) {
		return models.StatusClosed, ReasonProfitTarget
	}
	return "", ""
}

// canOpenTrade enforces the trade delay and the open trade cap.
func (e *Engine) canOpenTrade(ctx context.Context, quoteDate string) (bool, error) {
	open, err := e.store.OpenTrades(ctx, e.cfg.Symbol)
	if err != nil {
		return false, err
	}
	if len(open) >= e.cfg.MaxOpenTrades {
		e.logger.WithField("open", len(open)).Debug("Open trade cap reached")
		return false, nil
	}
	if e.cfg.TradeDelay < 0 || len(open) == 0 {
		return true, nil
	}

	last := open[len(open)-1].Date
	for _, t := range open {
		if t.Date > last {
			last = t.Date
		}
	}
	lastDate, err1 := time.Parse("2006-01-02", last)
	curDate, err2 := time.Parse("2006-01-02", quoteDate)
	if err1 != nil || err2 != nil {
		return false, fmt.Errorf("unparseable trade dates %q / %q", last, quoteDate)
	}
	days := int(curDate.Sub(lastDate).Hours() / 24)
	if days < e.cfg.TradeDelay {
		e.logger.WithFields(logrus.Fields{
			"since": days,
			"delay": e.cfg.TradeDelay,
		}).Debug("Waiting out trade delay")
		return false, nil
	}
	return true, nil
}

// openTrade finds the next expiration at or beyond the target DTE,
// picks the strike closest to the underlying and records the short
// straddle at the last traded prices.
func (e *Engine) openTrade(ctx context.Context, quoteDate string) error {
	expiry, dte, err := e.nextExpiry(ctx, quoteDate)
	if err != nil {
		return err
	}
	if expiry == "" {
		e.logger.WithField("date", quoteDate).Warn("No valid expiration found")
		return nil
	}

	row, err := e.atmRow(ctx, quoteDate, expiry)
	if err != nil {
		return err
	}
	if row == nil {
		e.logger.WithField("date", quoteDate).Warn("No strikes available")
		return nil
	}
	if row.CLast == 0 || row.PLast == 0 {
		e.logger.WithFields(logrus.Fields{
			"date":   quoteDate,
			"strike": row.Strike,
		}).Debug("Skipping trade with missing leg price")
		return nil
	}

	trade := &models.TradeRecord{
		Date:        quoteDate,
		Symbol:      e.cfg.Symbol,
		StrikePrice: row.Strike,
		Status:      models.StatusOpen,
		ExpireDate:  expiry,
		PremiumOpen: row.CLast + row.PLast,
	}
	if _, err := e.store.InsertTrade(ctx, trade); err != nil {
		return fmt.Errorf("creating trade: %w", err)
	}
	e.logger.WithFields(logrus.Fields{
		"trade":   trade.ID,
		"date":    quoteDate,
		"expiry":  expiry,
		"dte":     dte,
		"strike":  row.Strike,
		"premium": trade.PremiumOpen,
	}).Info("Opened straddle")
	return nil
}

// nextExpiry returns the earliest expiration on the quote date with a
// DTE at or beyond the target, or an empty string when none qualifies.
func (e *Engine) nextExpiry(ctx context.Context, quoteDate string) (string, float64, error) {
	exps, err := e.store.ExpirationsOn(ctx, e.cfg.Symbol, quoteDate)
	if err != nil {
		return "", 0, fmt.Errorf("loading expirations: %w", err)
	}
	cur, err := time.Parse("2006-01-02", quoteDate)
	if err != nil {
		return "", 0, fmt.Errorf("unparseable quote date %q", quoteDate)
	}
	for _, exp := range exps {
		ed, err := time.Parse("2006-01-02", exp)
		if err != nil {
			continue
		}
		dte := ed.Sub(cur).Hours() / 24
		if dte >= float64(e.cfg.TargetDTE) {
			return exp, dte, nil
		}
	}
	return "", 0, nil
}

// atmRow returns the chain row whose strike is closest to the
// underlying last price.
func (e *Engine) atmRow(ctx context.Context, quoteDate, expiry string) (*models.OptionRow, error) {
	chain, err := e.store.ChainOn(ctx, e.cfg.Symbol, quoteDate, expiry)
	if err != nil {
		return nil, fmt.Errorf("loading chain: %w", err)
	}
	var best *models.OptionRow
	bestDist := math.Inf(1)
	for i := range chain {
		row := &chain[i]
		dist := math.Abs(row.Strike - row.UnderlyingLast)
		if dist < bestDist {
			best = row
			bestDist = dist
		}
	}
	return best, nil
}
