package volatility

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// syntheticBars builds bars whose closes follow an alternating +1%/-1%
// pattern, giving a known close-to-close return stdev.
func syntheticBars(n int) []Bar {
	bars := make([]Bar, n)
	price := 100.0
	for i := range bars {
		if i%2 == 0 {
			price *= 1.01
		} else {
			price *= 0.99
		}
		bars[i] = Bar{
			Open:  price * 0.999,
			High:  price * 1.005,
			Low:   price * 0.995,
			Close: price,
		}
	}
	return bars
}

func TestCloseToClose(t *testing.T) {
	bars := syntheticBars(100)
	vol := CloseToClose(bars)

	// Alternating +/-1% log returns have stdev ~= 0.01, annualized ~0.159.
	assert.InDelta(t, 0.01*math.Sqrt(252), vol, 0.005)
}

func TestCloseToCloseTooShort(t *testing.T) {
	assert.Equal(t, 0.0, CloseToClose(nil))
	assert.Equal(t, 0.0, CloseToClose([]Bar{{Close: 100}}))
}

func TestParkinsonConstantRange(t *testing.T) {
	// Fixed 1% high/low range every day gives a directly computable value.
	bars := make([]Bar, 50)
	for i := range bars {
		bars[i] = Bar{Open: 100, High: 100.5, Low: 99.5, Close: 100}
	}
	hl := math.Log(100.5 / 99.5)
	expected := math.Sqrt(hl*hl/(4*math.Ln2)) * math.Sqrt(252)
	assert.InDelta(t, expected, Parkinson(bars), 1e-9)
}

func TestParkinsonRejectsBadBars(t *testing.T) {
	assert.Equal(t, 0.0, Parkinson([]Bar{{High: 99, Low: 100, Close: 100, Open: 100}}))
	assert.Equal(t, 0.0, Parkinson(nil))
}

func TestGarmanKlassFlatDaysIsZeroish(t *testing.T) {
	bars := make([]Bar, 30)
	for i := range bars {
		bars[i] = Bar{Open: 100, High: 100, Low: 100, Close: 100}
	}
	assert.InDelta(t, 0.0, GarmanKlass(bars), 1e-12)
}

func TestEstimatorsAgreeOnOrderOfMagnitude(t *testing.T) {
	bars := syntheticBars(252)

	cc := CloseToClose(bars)
	pk := Parkinson(bars)
	gk := GarmanKlass(bars)
	yz := YangZhang(bars)

	for name, v := range map[string]float64{"parkinson": pk, "garman-klass": gk, "yang-zhang": yz} {
		assert.True(t, v > 0, "%s should be positive", name)
		assert.True(t, v < 3*cc+0.5, "%s within range of close-to-close (%v vs %v)", name, v, cc)
	}
}

func TestReturnStats(t *testing.T) {
	bars := []Bar{{Close: 100}, {Close: 110}, {Close: 99}}
	mean, sd := ReturnStats(bars)
	assert.InDelta(t, (0.10-0.10)/2, mean, 1e-9)
	assert.True(t, sd > 0)
}

func TestEWMA(t *testing.T) {
	bars := syntheticBars(100)
	vol := EWMA(bars, 0.94)
	assert.True(t, vol > 0)
	// Uniform-magnitude returns: EWMA should land near close-to-close.
	assert.InDelta(t, CloseToClose(bars), vol, 0.05)

	assert.Equal(t, 0.0, EWMA(bars, 1.5), "invalid lambda")
	assert.Equal(t, 0.0, EWMA(nil, 0.94))
}
