// Package marketdata fetches and parses the external data feeds the
// tools import: Stooq daily bars, the NASDAQ symbol directory, FINRA
// short sale volume files, optionsDX chain exports and the earnings
// calendar.
package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// OHLCV is one daily bar.
type OHLCV struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

const stooqBaseURL = "https://stooq.com/q/d/l/"

// StooqClient downloads daily history from stooq.com as CSV.
type StooqClient struct {
	client  *http.Client
	baseURL string
}

// NewStooqClient creates a client with a default timeout.
func NewStooqClient() *StooqClient {
	return &StooqClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: stooqBaseURL,
	}
}

// WithBaseURL overrides the endpoint, used in tests.
func (s *StooqClient) WithBaseURL(u string) *StooqClient {
	s.baseURL = strings.TrimRight(u, "/") + "/"
	return s
}

// WithHTTPClient overrides the HTTP client.
func (s *StooqClient) WithHTTPClient(c *http.Client) *StooqClient {
	if c != nil {
		s.client = c
	}
	return s
}

// Fetch downloads daily bars for a symbol. US tickers get the ".us"
// suffix Stooq expects; symbols already carrying a dot are passed
// through unchanged.
func (s *StooqClient) Fetch(ctx context.Context, symbol string, from, to time.Time) ([]OHLCV, error) {
	sym := strings.ToLower(symbol)
	if !strings.Contains(sym, ".") {
		sym += ".us"
	}

	params := url.Values{}
	params.Set("s", sym)
	params.Set("i", "d")
	if !from.IsZero() {
		params.Set("d1", from.Format("20060102"))
	}
	if !to.IsZero() {
		params.Set("d2", to.Format("20060102"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s from stooq: %w", symbol, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stooq returned status %d for %s", resp.StatusCode, symbol)
	}

	bars, err := ParseOHLCVCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing stooq CSV for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no data returned for %s", symbol)
	}
	return bars, nil
}

// FetchMany downloads several symbols concurrently, at most maxParallel
// at a time. Results are keyed by the requested symbol; the first
// failure cancels the rest.
func (s *StooqClient) FetchMany(ctx context.Context, symbols []string, from, to time.Time, maxParallel int) (map[string][]OHLCV, error) {
	if maxParallel < 1 {
		maxParallel = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	var mu sync.Mutex
	out := make(map[string][]OHLCV, len(symbols))

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			bars, err := s.Fetch(gctx, symbol, from, to)
			if err != nil {
				return err
			}
			mu.Lock()
			out[symbol] = bars
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseOHLCVCSV reads "Date,Open,High,Low,Close,Volume" rows. Rows with
// unparseable numbers are skipped; a missing Volume column is tolerated.
func ParseOHLCVCSV(r io.Reader) ([]OHLCV, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	start := 0
	if strings.EqualFold(strings.TrimSpace(records[0][0]), "date") {
		start = 1
	}

	var bars []OHLCV
	for _, rec := range records[start:] {
		if len(rec) < 5 {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(rec[0]))
		if err != nil {
			continue
		}
		o, err1 := strconv.ParseFloat(rec[1], 64)
		h, err2 := strconv.ParseFloat(rec[2], 64)
		l, err3 := strconv.ParseFloat(rec[3], 64)
		c, err4 := strconv.ParseFloat(rec[4], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		var v int64
		if len(rec) > 5 && rec[5] != "" {
			// Stooq sometimes emits fractional volume
			if f, err := strconv.ParseFloat(rec[5], 64); err == nil {
				v = int64(f)
			}
		}
		bars = append(bars, OHLCV{Date: date, Open: o, High: h, Low: l, Close: c, Volume: v})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// WriteOHLCVCSV writes bars in the same "Date,Open,High,Low,Close,Volume"
// layout the parsers accept.
func WriteOHLCVCSV(w io.Writer, bars []OHLCV) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Open", "High", "Low", "Close", "Volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Date.Format("2006-01-02"),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
