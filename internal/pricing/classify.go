package pricing

import (
	"sort"

	"github.com/quarrydale/tradetools/internal/models"
)

// Shape names the recognized strategy silhouettes. Classification is a
// closed set of predicates checked most-specific-first; anything that
// falls through is ShapeCustom.
type Shape string

const (
	ShapeSingle        Shape = "single"
	ShapeVertical      Shape = "vertical spread"
	ShapeStraddle      Shape = "straddle"
	ShapeStrangle      Shape = "strangle"
	ShapeIronCondor    Shape = "iron condor"
	ShapeIronButterfly Shape = "iron butterfly"
	ShapeButterfly     Shape = "butterfly"
	ShapeCalendar      Shape = "calendar spread"
	ShapeCustom        Shape = "custom"
)

// Classify determines the strategy shape from the legs alone. Quantity
// is carried in the multiplier so the predicates only look at type,
// side, strike and expiration.
func Classify(legs []models.OptionLeg) Shape {
	switch len(legs) {
	case 1:
		return ShapeSingle
	case 2:
		return classifyTwoLegs(legs)
	case 3:
		if isButterfly(legs) {
			return ShapeButterfly
		}
	case 4:
		if isIronButterfly(legs) {
			return ShapeIronButterfly
		}
		if isIronCondor(legs) {
			return ShapeIronCondor
		}
	}
	return ShapeCustom
}

func classifyTwoLegs(legs []models.OptionLeg) Shape {
	a, b := legs[0], legs[1]

	// Same type and strike across two expirations is a calendar.
	if a.Type == b.Type && a.Strike == b.Strike &&
		a.Expiration != "" && b.Expiration != "" && a.Expiration != b.Expiration &&
		a.Side != b.Side {
		return ShapeCalendar
	}
	if sameExpiry(legs) {
		if a.Type != b.Type && a.Strike == b.Strike && a.Side == b.Side {
			return ShapeStraddle
		}
		if a.Type != b.Type && a.Strike != b.Strike && a.Side == b.Side {
			return ShapeStrangle
		}
		if a.Type == b.Type && a.Strike != b.Strike && a.Side != b.Side {
			return ShapeVertical
		}
	}
	return ShapeCustom
}

// isButterfly checks the 1-2-1 same-type wing pattern: long wings with a
// doubled short body (or the inverse), evenly spaced strikes.
func isButterfly(legs []models.OptionLeg) bool {
	if !sameExpiry(legs) {
		return false
	}
	t := legs[0].Type
	for _, l := range legs {
		if l.Type != t {
			return false
		}
	}
	sorted := sortedByStrike(legs)
	lo, mid, hi := sorted[0], sorted[1], sorted[2]
	if lo.Side != hi.Side || mid.Side == lo.Side {
		return false
	}
	if mid.Multiplier != 2*lo.Multiplier || lo.Multiplier != hi.Multiplier {
		return false
	}
	return mid.Strike-lo.Strike == hi.Strike-mid.Strike
}

// isIronCondor checks short put spread below short call spread: four
// distinct strikes, long wings outside short body.
func isIronCondor(legs []models.OptionLeg) bool {
	if !sameExpiry(legs) {
		return false
	}
	puts, calls := splitByType(legs)
	if len(puts) != 2 || len(calls) != 2 {
		return false
	}
	puts = sortedByStrike(puts)
	calls = sortedByStrike(calls)
	if puts[0].Strike == puts[1].Strike || calls[0].Strike == calls[1].Strike {
		return false
	}
	// Wings long, bodies short (or the inverted condor).
	bodyShort := puts[1].Side == models.Short && calls[0].Side == models.Short &&
		puts[0].Side == models.Long && calls[1].Side == models.Long
	bodyLong := puts[1].Side == models.Long && calls[0].Side == models.Long &&
		puts[0].Side == models.Short && calls[1].Side == models.Short
	if !bodyShort && !bodyLong {
		return false
	}
	return puts[1].Strike < calls[0].Strike
}

// isIronButterfly is the condor with the body strikes pinned together.
func isIronButterfly(legs []models.OptionLeg) bool {
	if !sameExpiry(legs) {
		return false
	}
	puts, calls := splitByType(legs)
	if len(puts) != 2 || len(calls) != 2 {
		return false
	}
	puts = sortedByStrike(puts)
	calls = sortedByStrike(calls)
	bodyShort := puts[1].Side == models.Short && calls[0].Side == models.Short &&
		puts[0].Side == models.Long && calls[1].Side == models.Long
	if !bodyShort {
		return false
	}
	return puts[1].Strike == calls[0].Strike
}

func sameExpiry(legs []models.OptionLeg) bool {
	for _, l := range legs {
		if l.Expiration != legs[0].Expiration {
			return false
		}
	}
	return true
}

func splitByType(legs []models.OptionLeg) (puts, calls []models.OptionLeg) {
	for _, l := range legs {
		if l.Type == models.Put {
			puts = append(puts, l)
		} else {
			calls = append(calls, l)
		}
	}
	return puts, calls
}

func sortedByStrike(legs []models.OptionLeg) []models.OptionLeg {
	out := make([]models.OptionLeg, len(legs))
	copy(out, legs)
	sort.Slice(out, func(i, j int) bool { return out[i].Strike < out[j].Strike })
	return out
}
