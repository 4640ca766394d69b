// Package gex computes dealer gamma exposure from a CBOE quote-table
// CSV export: per-strike exposure, the spot-level gamma profile and the
// zero-gamma flip point.
package gex

import (
	"math"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

const (
	contractMultiplier = 100
	pctMove            = 0.01
	billions           = 1e9
	// Business days per year used for option time decay, matching the
	// CBOE data cadence.
	busDaysPerYear = 262
	profileLevels  = 60
)

// Row is one strike/expiry line of the quote table.
type Row struct {
	Expiration   time.Time
	Strike       float64
	CallIV       float64
	CallGamma    float64
	CallOpenInt  float64
	PutIV        float64
	PutGamma     float64
	PutOpenInt   float64
	CallGEX      float64
	PutGEX       float64
	DaysTillExp  float64
	IsThirdFri   bool
	SpotPrice    float64
	QuoteDate    time.Time
}

// Snapshot is the full parsed chain plus the quote-time spot.
type Snapshot struct {
	Spot      float64
	QuoteDate time.Time
	Rows      []Row
}

// Profile is the gamma exposure evaluated across a range of spot levels.
type Profile struct {
	Levels        []float64
	Total         []float64 // all expirations, $Bn per 1% move
	ExNext        []float64 // excluding the nearest expiry
	ExNextMonthly []float64 // excluding the nearest third-Friday expiry
	ZeroGamma     float64   // flip point; NaN when the curve never crosses
}

// ComputeExposure fills the per-row GEX columns using the dealer-flow
// convention: calls positive, puts negative, dollars per 1% move.
func (s *Snapshot) ComputeExposure() {
	for i := range s.Rows {
		r := &s.Rows[i]
		r.CallGEX = r.CallGamma * r.CallOpenInt * contractMultiplier * s.Spot * s.Spot * pctMove
		r.PutGEX = r.PutGamma * r.PutOpenInt * contractMultiplier * s.Spot * s.Spot * pctMove * -1
	}
}

// TotalGamma sums the net exposure across the chain, in $Bn per 1% move.
func (s *Snapshot) TotalGamma() float64 {
	total := 0.0
	for _, r := range s.Rows {
		total += r.CallGEX + r.PutGEX
	}
	return total / billions
}

// ByStrike aggregates net gamma per strike, ascending. The treemap keeps
// the strikes ordered without a separate sort pass.
func (s *Snapshot) ByStrike() (strikes, gamma []float64) {
	m := treemap.NewWith(utils.Float64Comparator)
	for _, r := range s.Rows {
		net := (r.CallGEX + r.PutGEX) / billions
		if existing, found := m.Get(r.Strike); found {
			net += existing.(float64)
		}
		m.Put(r.Strike, net)
	}
	it := m.Iterator()
	for it.Next() {
		strikes = append(strikes, it.Key().(float64))
		gamma = append(gamma, it.Value().(float64))
	}
	return strikes, gamma
}

// GammaProfile recomputes Black-Scholes gamma for every option at each
// of 60 spot levels between fromSpot and toSpot, aggregating net dealer
// exposure per level. Puts are subtracted per the cross-check identity
// (gamma is the same for calls and puts at a strike).
func (s *Snapshot) GammaProfile(fromSpot, toSpot float64) *Profile {
	p := &Profile{ZeroGamma: math.NaN()}

	nextExpiry := s.nextExpiry()
	nextMonthly := s.nextMonthlyExpiry()

	step := (toSpot - fromSpot) / float64(profileLevels-1)
	for i := 0; i < profileLevels; i++ {
		level := fromSpot + float64(i)*step
		var total, exNext, exMonthly float64
		for _, r := range s.Rows {
			call := gammaExposureAt(level, r.Strike, r.CallIV, r.DaysTillExp/busDaysPerYear, r.CallOpenInt, true)
			put := gammaExposureAt(level, r.Strike, r.PutIV, r.DaysTillExp/busDaysPerYear, r.PutOpenInt, false)
			net := call - put
			total += net
			if !r.Expiration.Equal(nextExpiry) {
				exNext += net
			}
			if !r.Expiration.Equal(nextMonthly) {
				exMonthly += net
			}
		}
		p.Levels = append(p.Levels, level)
		p.Total = append(p.Total, total/billions)
		p.ExNext = append(p.ExNext, exNext/billions)
		p.ExNextMonthly = append(p.ExNextMonthly, exMonthly/billions)
	}

	p.ZeroGamma = zeroGammaFlip(p.Levels, p.Total)
	return p
}

// gammaExposureAt prices gamma for a single option at the given spot
// level. Calls use d1, puts the discounted d2 identity as a cross-check.
func gammaExposureAt(spot, strike, vol, t, openInterest float64, isCall bool) float64 {
	if t == 0 || vol == 0 {
		return 0
	}
	dp := (math.Log(spot/strike) + 0.5*vol*vol*t) / (vol * math.Sqrt(t))
	dm := dp - vol*math.Sqrt(t)

	var gamma float64
	if isCall {
		gamma = normPDF(dp) / (spot * vol * math.Sqrt(t))
	} else {
		gamma = strike * normPDF(dm) / (spot * spot * vol * math.Sqrt(t))
	}
	return openInterest * contractMultiplier * spot * spot * pctMove * gamma
}

// zeroGammaFlip interpolates the level where net gamma crosses zero.
func zeroGammaFlip(levels, total []float64) float64 {
	for i := 0; i+1 < len(total); i++ {
		if sign(total[i]) != sign(total[i+1]) && total[i] != 0 {
			neg, pos := total[i], total[i+1]
			negLevel, posLevel := levels[i], levels[i+1]
			return posLevel - (posLevel-negLevel)*pos/(pos-neg)
		}
	}
	return math.NaN()
}

func (s *Snapshot) nextExpiry() time.Time {
	var next time.Time
	for _, r := range s.Rows {
		if next.IsZero() || r.Expiration.Before(next) {
			next = r.Expiration
		}
	}
	return next
}

func (s *Snapshot) nextMonthlyExpiry() time.Time {
	var next time.Time
	for _, r := range s.Rows {
		if !r.IsThirdFri {
			continue
		}
		if next.IsZero() || r.Expiration.Before(next) {
			next = r.Expiration
		}
	}
	return next
}

// IsThirdFriday reports whether d falls on the monthly expiration Friday.
func IsThirdFriday(d time.Time) bool {
	return d.Weekday() == time.Friday && d.Day() >= 15 && d.Day() <= 21
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
