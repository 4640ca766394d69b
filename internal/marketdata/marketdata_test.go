package marketdata

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stooqCSV = `Date,Open,High,Low,Close,Volume
2024-01-03,468.79,470.99,467.05,468.79,78954200
2024-01-02,472.16,473.67,470.49,472.65,81919800
bad-row,x,y,z,w
`

func TestParseOHLCVCSV(t *testing.T) {
	bars, err := ParseOHLCVCSV(strings.NewReader(stooqCSV))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	// Sorted ascending regardless of input order
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.InDelta(t, 472.65, bars[0].Close, 1e-9)
	assert.Equal(t, int64(81919800), bars[0].Volume)
}

func TestWriteOHLCVCSV_RoundTrip(t *testing.T) {
	orig, err := ParseOHLCVCSV(strings.NewReader(stooqCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteOHLCVCSV(&buf, orig))

	back, err := ParseOHLCVCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestStooqFetchMany(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "spy.us", r.URL.Query().Get("s"))
		_, _ = w.Write([]byte(stooqCSV))
	}))
	defer srv.Close()

	client := NewStooqClient().WithBaseURL(srv.URL)
	out, err := client.FetchMany(context.Background(), []string{"SPY"}, time.Time{}, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, out["SPY"], 2)
	assert.Equal(t, 1, requests)
}

func TestStooqFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewStooqClient().WithBaseURL(srv.URL).Fetch(context.Background(), "NOPE", time.Time{}, time.Time{})
	assert.Error(t, err)
}

const nasdaqListedFixture = `Symbol|Security Name|Market Category|Test Issue|Financial Status|Round Lot Size|ETF|NextShares
AAPL|Apple Inc. - Common Stock|Q|N|N|100|N|N
QQQ|Invesco QQQ Trust, Series 1|G|N|N|100|Y|N
ZXZZT|NASDAQ TEST STOCK|G|Y|N|100|N|N
File Creation Time: 0102202422:01|||||||
`

const otherListedFixture = `ACT Symbol|Security Name|Exchange|CQS Symbol|ETF|Round Lot Size|Test Issue|NASDAQ Symbol
SPY|SPDR S&P 500 ETF Trust|P|SPY|Y|100|N|SPY
BRK.A|Berkshire Hathaway Inc.|N|BRK A|N|100|N|BRK.A
File Creation Time: 0102202422:01|||||||
`

func TestParseSymbolDirectory(t *testing.T) {
	entries, err := ParseSymbolDirectory(strings.NewReader(nasdaqListedFixture), "NASDAQ")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "AAPL", entries[0].Symbol)
	assert.Equal(t, "NASDAQ", entries[0].Exchange)
	assert.False(t, entries[0].ETF)
	assert.True(t, entries[1].ETF)
	assert.True(t, entries[2].TestIssue)
}

func TestParseSymbolDirectory_OtherListed(t *testing.T) {
	entries, err := ParseSymbolDirectory(strings.NewReader(otherListedFixture), "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "P", entries[0].Exchange)
	assert.Equal(t, "BRK.A", entries[1].Symbol)
}

func TestSymbolDirectoryFetchAll(t *testing.T) {
	nasdaqSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(nasdaqListedFixture))
	}))
	defer nasdaqSrv.Close()
	otherSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(otherListedFixture))
	}))
	defer otherSrv.Close()

	client := NewSymbolDirectoryClient(nil).WithURLs(nasdaqSrv.URL, otherSrv.URL)
	entries, err := client.FetchAll(context.Background())
	require.NoError(t, err)

	// Test issue dropped, 2 + 2 remain
	require.Len(t, entries, 4)

	common := FilterCommonStock(entries)
	require.Len(t, common, 1)
	assert.Equal(t, "AAPL", common[0].Symbol)
}

const optionsDXFixture = `[QUOTE_UNIXTIME], [QUOTE_DATE], [UNDERLYING_LAST], [EXPIRE_DATE], [DTE], [C_DELTA], [C_IV], [C_VOLUME], [C_BID], [C_ASK], [STRIKE], [P_BID], [P_ASK], [P_DELTA], [P_IV], [P_VOLUME]
1704229200, 2024-01-02, 472.65, 2024-02-16, 45.0, 0.72, 0.14, 1523, 23.1, 23.5, 450.0, 2.4, 2.6, -0.28, 0.16, 3411
1704229200, 2024-01-02, 472.65, 2024-02-16, 45.0, 0.51, 0.12, 8899, 8.9, 9.1, 470.0, 8.2, 8.4, -0.49, 0.13, 7100
1704229200, , 472.65, 2024-02-16, 45.0, , , , , , 480.0, , , , ,
`

func TestParseOptionsDX(t *testing.T) {
	rows, err := ParseOptionsDX(strings.NewReader(optionsDXFixture), "spy")
	require.NoError(t, err)
	require.Len(t, rows, 2) // row without quote date skipped

	r := rows[0]
	assert.Equal(t, "SPY", r.Underlying)
	assert.Equal(t, "2024-01-02", r.QuoteDate)
	assert.Equal(t, "2024-02-16", r.Expiration)
	assert.Equal(t, 450.0, r.Strike)
	assert.InDelta(t, 45.0, r.DTE, 1e-9)
	assert.InDelta(t, 23.3, r.CallMid(), 1e-9)
	assert.Equal(t, int64(1523), r.CVolume)
	assert.InDelta(t, -0.28, r.PDelta, 1e-9)
}

func TestParseOptionsDX_MissingColumn(t *testing.T) {
	_, err := ParseOptionsDX(strings.NewReader("[QUOTE_DATE], [EXPIRE_DATE]\n2024-01-02, 2024-02-16\n"), "SPY")
	assert.Error(t, err)
}

const shortVolFixture = `Date|Symbol|ShortVolume|ShortExemptVolume|TotalVolume|Market
20240102|GME|500000|1000|1000000|B,Q,N
20240102|AMC|250000|500|800000|B,Q,N
garbage line
20240102|BAD|x|y|z|B
`

func TestParseShortVolume(t *testing.T) {
	recs, err := ParseShortVolume(strings.NewReader(shortVolFixture))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "2024-01-02", recs[0].Date)
	assert.Equal(t, "GME", recs[0].Symbol)
	assert.Equal(t, int64(500000), recs[0].ShortVolume)
	assert.InDelta(t, 0.5, recs[0].Ratio(), 1e-9)
	assert.Equal(t, "B,Q,N", recs[0].Market)
}

func TestShortVolumeClientFetchDay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/CNMSshvol20240102.txt", r.URL.Path)
		_, _ = w.Write([]byte(shortVolFixture))
	}))
	defer srv.Close()

	client := NewShortVolumeClient().WithBaseURL(srv.URL)
	recs, err := client.FetchDay(context.Background(), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

const earningsFixture = `<html><body>
<table class="earnings-calendar"><tbody>
<tr><td class="symbol">MSFT</td><td class="company">Microsoft Corp</td><td class="time">After Market Close</td><td class="eps-estimate">$2.78</td></tr>
<tr><td class="symbol">ko</td><td class="company">Coca-Cola Co</td><td class="time">Before Market Open</td><td class="eps-estimate">$0.49</td></tr>
<tr><td class="symbol"></td><td class="company">ad row</td></tr>
</tbody></table>
</body></html>`

func TestParseEarningsDoc(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(earningsFixture))
	require.NoError(t, err)

	day := time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)
	events := parseEarningsDoc(doc, day)
	require.Len(t, events, 2)

	assert.Equal(t, "MSFT", events[0].Symbol)
	assert.Equal(t, "AMC", events[0].Timing)
	assert.InDelta(t, 2.78, events[0].EPSEstimate, 1e-9)
	assert.Equal(t, "KO", events[1].Symbol)
	assert.Equal(t, "BMO", events[1].Timing)
}

func TestNormalizeTiming(t *testing.T) {
	assert.Equal(t, "BMO", normalizeTiming("Before Market Open"))
	assert.Equal(t, "AMC", normalizeTiming("amc"))
	assert.Equal(t, "unknown", normalizeTiming("time not supplied"))
}
