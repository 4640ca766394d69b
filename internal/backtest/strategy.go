package backtest

import (
	"math"

	"github.com/quarrydale/tradetools/internal/ivts"
	"github.com/quarrydale/tradetools/internal/marketdata"
	"github.com/quarrydale/tradetools/internal/util"
)

// Strategy decides the target equity allocation for each bar. Evaluate
// is called in bar order starting at Warmup, so stateful strategies can
// track entries across calls.
type Strategy interface {
	Name() string
	Warmup() int
	// Evaluate returns the desired allocation fraction in [0,1] as of
	// the close of bar i.
	Evaluate(i int, bars []marketdata.OHLCV) float64
}

// SMAScaleIn holds a full position above the slow SMA, a half position
// when only the fast SMA is reclaimed, and cash below both.
type SMAScaleIn struct {
	FastPeriod int
	SlowPeriod int

	closes []float64
	fast   []float64
	slow   []float64
}

func (s *SMAScaleIn) Name() string { return "sma-scale-in" }

func (s *SMAScaleIn) Warmup() int { return s.SlowPeriod }

func (s *SMAScaleIn) Evaluate(i int, bars []marketdata.OHLCV) float64 {
	if len(s.closes) != len(bars) {
		s.closes = Closes(bars)
		s.fast = SMA(s.closes, s.FastPeriod)
		s.slow = SMA(s.closes, s.SlowPeriod)
	}

	c := bars[i].Close
	switch {
	case !math.IsNaN(s.slow[i]) && c > s.slow[i]:
		return 1.0
	case !math.IsNaN(s.fast[i]) && c > s.fast[i]:
		return 0.5
	default:
		return 0
	}
}

// VIXTermStructure trades the EMA alignment of a short-dated and a
// long-dated VIX series: fully invested on a buy-aligned structure
// (calm contango), flat once it inverts, holding in between. Both
// series must be aligned 1:1 with the bars.
type VIXTermStructure struct {
	ShortVix   []float64
	LongVix    []float64
	FastPeriod int
	SlowPeriod int

	shortFast []float64
	shortSlow []float64
	longFast  []float64
	longSlow  []float64
	target    float64
}

func (s *VIXTermStructure) Name() string { return "vix-term-structure" }

func (s *VIXTermStructure) Warmup() int { return s.SlowPeriod }

func (s *VIXTermStructure) Evaluate(i int, bars []marketdata.OHLCV) float64 {
	if s.shortFast == nil {
		s.shortFast = ivts.EMA(s.ShortVix, s.FastPeriod)
		s.shortSlow = ivts.EMA(s.ShortVix, s.SlowPeriod)
		s.longFast = ivts.EMA(s.LongVix, s.FastPeriod)
		s.longSlow = ivts.EMA(s.LongVix, s.SlowPeriod)
		s.target = 1.0 // start invested like the buy-and-hold baseline
	}
	if i >= len(s.shortFast) {
		return s.target
	}
	state := ivts.TermState{
		ShortVixShortMA: s.shortFast[i],
		ShortVixLongMA:  s.shortSlow[i],
		LongVixShortMA:  s.longFast[i],
		LongVixLongMA:   s.longSlow[i],
	}
	switch state.Evaluate() {
	case ivts.Buy:
		s.target = 1.0
	case ivts.Sell:
		s.target = 0
	}
	return s.target
}

// PctChange buys after a single-day drop of at least DropPct percent
// and holds for HoldDays bars.
type PctChange struct {
	DropPct  float64 // e.g. 3 means -3%
	HoldDays int

	exitBar int
}

func (s *PctChange) Name() string { return "pct-change" }

func (s *PctChange) Warmup() int { return 1 }

func (s *PctChange) Evaluate(i int, bars []marketdata.OHLCV) float64 {
	if i < s.exitBar {
		return 1.0
	}

	prev := bars[i-1].Close
	if prev <= 0 {
		return 0
	}
	change := util.PercentChange(prev, bars[i].Close)
	if change <= -s.DropPct {
		s.exitBar = i + s.HoldDays
		return 1.0
	}
	return 0
}

// TrailingATR enters above the entry SMA and exits when the close falls
// more than Multiple ATRs below the highest close since entry.
type TrailingATR struct {
	EntryPeriod int // SMA entry filter
	ATRPeriod   int
	Multiple    float64

	closes    []float64
	sma       []float64
	atr       []float64
	inTrade   bool
	highWater float64
}

func (s *TrailingATR) Name() string { return "trailing-atr" }

func (s *TrailingATR) Warmup() int {
	if s.EntryPeriod > s.ATRPeriod {
		return s.EntryPeriod
	}
	return s.ATRPeriod + 1
}

func (s *TrailingATR) Evaluate(i int, bars []marketdata.OHLCV) float64 {
	if len(s.closes) != len(bars) {
		s.closes = Closes(bars)
		s.sma = SMA(s.closes, s.EntryPeriod)
		s.atr = ATR(bars, s.ATRPeriod)
	}

	c := bars[i].Close
	if s.inTrade {
		if c > s.highWater {
			s.highWater = c
		}
		if !math.IsNaN(s.atr[i]) && c < s.highWater-s.Multiple*s.atr[i] {
			s.inTrade = false
			return 0
		}
		return 1.0
	}

	if !math.IsNaN(s.sma[i]) && c > s.sma[i] {
		s.inTrade = true
		s.highWater = c
		return 1.0
	}
	return 0
}
