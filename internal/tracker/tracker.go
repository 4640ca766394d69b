// Package tracker polls an option chain on a fixed interval and records
// the bid prices of a same-day ATM straddle in SQLite.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/quarrydale/tradetools/internal/broker"
	"github.com/quarrydale/tradetools/internal/config"
	"github.com/quarrydale/tradetools/internal/models"
	"github.com/quarrydale/tradetools/internal/retry"
	"github.com/quarrydale/tradetools/internal/storage"
	"github.com/quarrydale/tradetools/internal/util"
)

// Service is the straddle tracker daemon.
type Service struct {
	market broker.MarketData
	store  storage.Interface
	cfg    *config.Config
	logger *logrus.Logger
	runID  string

	// First expiration is cached per quote date so only the first
	// cycle of the day pays for the lookup.
	expiryDate string
	expiry     string

	// The exchange calendar is cached per month. Holidays and early
	// closes are not visible to the configured clock gate.
	calMonth string
	calDays  map[string]broker.MarketDay
}

func New(market broker.MarketData, store storage.Interface, cfg *config.Config, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		market: market,
		store:  store,
		cfg:    cfg,
		logger: logger,
		runID:  uuid.NewString(),
	}
}

// Run polls until the context is cancelled. The first cycle fires
// immediately, later ones on the configured interval.
func (s *Service) Run(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"run":      s.runID,
		"symbol":   s.cfg.Tracker.Symbol,
		"interval": s.cfg.GetPollInterval(),
	}).Info("Tracker starting")

	ticker := time.NewTicker(s.cfg.GetPollInterval())
	defer ticker.Stop()

	s.runCycle(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			s.logger.WithField("run", s.runID).Info("Tracker stopped")
			return nil
		case <-ticker.C:
			s.runCycle(ctx, time.Now())
		}
	}
}

func (s *Service) runCycle(ctx context.Context, now time.Time) {
	if !s.cfg.IsWithinMarketHours(now) {
		s.logger.Debug("Outside market hours, skipping cycle")
		return
	}
	day, err := s.marketDayOn(now)
	if err != nil {
		s.logger.WithError(err).Warn("Calendar lookup failed, assuming a session day")
	} else if !s.sessionOpenAt(day, now) {
		s.logger.WithFields(logrus.Fields{
			"date":   now.Format("2006-01-02"),
			"status": day.Status,
		}).Debug("No open session, skipping cycle")
		return
	}
	if err := s.Poll(ctx, now); err != nil {
		s.logger.WithError(err).Error("Poll failed")
	}
}

// marketDayOn returns the exchange calendar entry for the given day,
// fetching the month's calendar on first use.
func (s *Service) marketDayOn(now time.Time) (broker.MarketDay, error) {
	month := now.Format("2006-01")
	if s.calMonth != month {
		cal, err := s.market.GetMarketCalendar(int(now.Month()), now.Year())
		if err != nil {
			return broker.MarketDay{}, err
		}
		days := make(map[string]broker.MarketDay, len(cal.Calendar.Days.Day))
		for _, d := range cal.Calendar.Days.Day {
			days[d.Date] = d
		}
		s.calMonth = month
		s.calDays = days
	}
	day, ok := s.calDays[now.Format("2006-01-02")]
	if !ok {
		return broker.MarketDay{}, fmt.Errorf("no calendar entry for %s", now.Format("2006-01-02"))
	}
	return day, nil
}

// sessionOpenAt reports whether the calendar day has an open session
// covering the wall-clock time, so holidays and early closes are
// skipped even when the configured hours say otherwise. Session times
// are exchange-local.
func (s *Service) sessionOpenAt(day broker.MarketDay, now time.Time) bool {
	if day.Status != "open" || day.Open == nil {
		return false
	}
	tz := s.cfg.Tracker.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		now = now.In(loc)
	}
	hm := now.Format("15:04")
	return hm >= day.Open.Start && hm < day.Open.End
}

// Poll runs a single tracking cycle: ensure today's trade exists, then
// record the current leg prices against it.
func (s *Service) Poll(ctx context.Context, now time.Time) error {
	symbol := s.cfg.Tracker.Symbol
	date := now.Format("2006-01-02")

	expiry, err := s.todaysExpiry(ctx, symbol, date)
	if err != nil {
		return fmt.Errorf("finding today's expiry: %w", err)
	}

	chain, err := retry.Do(ctx, s.logger, retry.DefaultConfig, "chain fetch",
		func(ctx context.Context) ([]broker.Option, error) {
			return s.market.GetOptionChainCtx(ctx, symbol, expiry, true)
		})
	if err != nil {
		return fmt.Errorf("fetching chain for %s %s: %w", symbol, expiry, err)
	}

	trade, err := s.openTradeOn(ctx, symbol, date)
	if err != nil {
		return err
	}

	var call, put *broker.Option
	if trade == nil {
		put, call = broker.FindATMByDelta(chain)
		if put == nil || call == nil {
			// Thin chains can have no call above 0.5 delta; fall back
			// to the contracts nearest the target.
			put, call = broker.FindStrikesByDelta(chain, 0.5)
		}
		if put == nil || call == nil {
			return fmt.Errorf("no ATM pair found in %d contracts", len(chain))
		}
		trade = &models.TradeRecord{
			Date:        date,
			Symbol:      symbol,
			StrikePrice: call.Strike,
			Status:      models.StatusOpen,
			ExpireDate:  expiry,
			PremiumOpen: util.RoundToTick(call.Bid+put.Bid, 0.01),
		}
		if _, err := s.store.InsertTrade(ctx, trade); err != nil {
			return fmt.Errorf("creating trade: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"run":     s.runID,
			"trade":   trade.ID,
			"strike":  trade.StrikePrice,
			"expiry":  expiry,
			"premium": trade.PremiumOpen,
		}).Info("Opened straddle at ATM strike")
	} else {
		call, put = legsAtStrike(chain, trade.StrikePrice)
		if call == nil || put == nil {
			return fmt.Errorf("chain missing legs at strike %.2f", trade.StrikePrice)
		}
	}

	callData, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("encoding call contract: %w", err)
	}
	putData, err := json.Marshal(put)
	if err != nil {
		return fmt.Errorf("encoding put contract: %w", err)
	}

	snap := &models.ContractSnapshot{
		TradeID:   trade.ID,
		Date:      date,
		Time:      now.Format("15:04:05"),
		Symbol:    symbol,
		Strike:    trade.StrikePrice,
		CallPrice: call.Bid,
		PutPrice:  put.Bid,
		CallData:  string(callData),
		PutData:   string(putData),
	}
	if err := s.store.InsertContractSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("recording snapshot: %w", err)
	}

	if ratio := legRatio(call.Bid, put.Bid); ratio >= s.cfg.Tracker.RatioThreshold {
		s.logger.WithFields(logrus.Fields{
			"run":    s.runID,
			"trade":  trade.ID,
			"ratio":  ratio,
			"call":   call.Bid,
			"put":    put.Bid,
			"strike": trade.StrikePrice,
		}).Warn("Leg ratio past threshold, adjustment may be needed")
	}
	return nil
}

// todaysExpiry returns the nearest expiration for the symbol, cached
// for the rest of the quote date.
func (s *Service) todaysExpiry(ctx context.Context, symbol, date string) (string, error) {
	if s.expiryDate == date && s.expiry != "" {
		return s.expiry, nil
	}
	exps, err := retry.Do(ctx, s.logger, retry.DefaultConfig, "expirations fetch",
		func(context.Context) ([]string, error) {
			return s.market.GetExpirations(symbol)
		})
	if err != nil {
		return "", err
	}
	if len(exps) == 0 {
		return "", fmt.Errorf("no expirations for %s", symbol)
	}
	s.expiryDate = date
	s.expiry = exps[0]
	return s.expiry, nil
}

// openTradeOn returns today's open trade for the symbol, or nil.
func (s *Service) openTradeOn(ctx context.Context, symbol, date string) (*models.TradeRecord, error) {
	open, err := s.store.OpenTrades(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("loading open trades: %w", err)
	}
	for i := range open {
		if open[i].Date == date {
			return &open[i], nil
		}
	}
	return nil, nil
}

// legsAtStrike returns the call and put contracts at the given strike.
// Chains that omit option_type are classified from the OSI symbol.
func legsAtStrike(chain []broker.Option, strike float64) (call, put *broker.Option) {
	for i := range chain {
		opt := &chain[i]
		if math.Abs(opt.Strike-strike) > broker.StrikeMatchEpsilon {
			continue
		}
		legType := opt.OptionType
		if legType == "" {
			legType = broker.OptionTypeFromOSI(opt.Symbol)
		}
		switch legType {
		case "call":
			call = opt
		case "put":
			put = opt
		}
	}
	return call, put
}

// legRatio is the ratio of the richer leg to the cheaper one. A dead
// leg makes the ratio infinite so the threshold always trips.
func legRatio(callBid, putBid float64) float64 {
	hi := math.Max(callBid, putBid)
	lo := math.Min(callBid, putBid)
	if hi <= 0 {
		return 0
	}
	if lo <= 0 {
		return math.Inf(1)
	}
	return hi / lo
}
