package gex

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleQuoteTable = `SPX (S&P 500 INDEX),
"Jan 03 2025 @ 15:45 ET,Bid,4995.00,Ask,5005.00,Size,1x1,Last:5000.00,"
,
Expiration Date,Calls,Last Sale,Net,Bid,Ask,Volume,IV,Delta,Gamma,Open Interest,Strike,Puts,Last Sale,Net,Bid,Ask,Volume,IV,Delta,Gamma,Open Interest
Fri Jan 03 2025,SPXW250103C04900000,101.0,1.0,100.0,102.0,10,0.25,0.80,0.0010,1000,4900,SPXW250103P04900000,2.0,0.1,1.9,2.1,20,0.28,-0.20,0.0010,4000
Fri Jan 03 2025,SPXW250103C05000000,51.0,1.0,50.0,52.0,10,0.22,0.50,0.0050,2000,5000,SPXW250103P05000000,50.0,0.1,49.0,51.0,20,0.22,-0.50,0.0050,2500
Fri Jan 17 2025,SPX250117C05100000,20.0,1.0,19.0,21.0,10,0.20,0.30,0.0030,1500,5100,SPX250117P05100000,110.0,0.1,109.0,111.0,20,0.21,-0.70,0.0030,500
`

func TestParse(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleQuoteTable))
	require.NoError(t, err)

	assert.Equal(t, 5000.0, s.Spot)
	require.Len(t, s.Rows, 3)

	first := s.Rows[0]
	assert.Equal(t, 4900.0, first.Strike)
	assert.Equal(t, 0.25, first.CallIV)
	assert.Equal(t, 1000.0, first.CallOpenInt)
	assert.Equal(t, time.January, first.Expiration.Month())
	assert.Equal(t, 16, first.Expiration.Hour(), "expiry set to the close")

	// Same-day expiration counts as a single business day.
	assert.Equal(t, 1.0, first.DaysTillExp)
	// Jan 3 2025 is a Friday; Jan 17 2025 is the third Friday.
	assert.True(t, s.Rows[2].IsThirdFri)
	assert.Equal(t, 10.0, s.Rows[2].DaysTillExp)
}

func TestParseMissingSpot(t *testing.T) {
	_, err := Parse(strings.NewReader("a\nb\nc\nd\n"))
	assert.Error(t, err)
}

func TestComputeExposure(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleQuoteTable))
	require.NoError(t, err)
	s.ComputeExposure()

	r := s.Rows[0]
	expectedCall := 0.0010 * 1000 * 100 * 5000.0 * 5000.0 * 0.01
	expectedPut := -0.0010 * 4000 * 100 * 5000.0 * 5000.0 * 0.01
	assert.InDelta(t, expectedCall, r.CallGEX, 1e-6)
	assert.InDelta(t, expectedPut, r.PutGEX, 1e-6)

	// Row 0 puts outweigh calls 4:1, rows 1-2 contribute the rest.
	total := s.TotalGamma()
	assert.False(t, math.IsNaN(total))
}

func TestByStrikeSorted(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleQuoteTable))
	require.NoError(t, err)
	s.ComputeExposure()

	strikes, gamma := s.ByStrike()
	require.Len(t, strikes, 3)
	assert.Equal(t, []float64{4900, 5000, 5100}, strikes)
	require.Len(t, gamma, 3)
	// First strike is put dominated.
	assert.True(t, gamma[0] < 0)
}

func TestGammaProfile(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleQuoteTable))
	require.NoError(t, err)
	s.ComputeExposure()

	p := s.GammaProfile(0.8*s.Spot, 1.2*s.Spot)
	require.Len(t, p.Levels, profileLevels)
	require.Len(t, p.Total, profileLevels)
	require.Len(t, p.ExNext, profileLevels)
	require.Len(t, p.ExNextMonthly, profileLevels)

	// Excluding the nearest expiry leaves only the Jan 17 row.
	for i := range p.ExNext {
		assert.True(t, math.Abs(p.ExNext[i]) <= math.Abs(p.Total[i])+1e-9 ||
			sign(p.ExNext[i]) != sign(p.Total[i]))
	}

	// Deep put dominance below spot flips to call dominance above:
	// the profile should cross zero somewhere in the range.
	if !math.IsNaN(p.ZeroGamma) {
		assert.Greater(t, p.ZeroGamma, p.Levels[0])
		assert.Less(t, p.ZeroGamma, p.Levels[len(p.Levels)-1])
	}
}

func TestZeroGammaFlipInterpolation(t *testing.T) {
	levels := []float64{90, 100, 110}
	total := []float64{-1, 1, 2}
	flip := zeroGammaFlip(levels, total)
	assert.InDelta(t, 95, flip, 1e-9)
}

func TestIsThirdFriday(t *testing.T) {
	assert.True(t, IsThirdFriday(time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)))
	assert.False(t, IsThirdFriday(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)))
	assert.False(t, IsThirdFriday(time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)))
}
