// Package broker provides the Tradier market-data API client used by the
// downloaders, the straddle walker, and the contract price tracker.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quarrydale/tradetools/internal/util"
)

// Market clock state constants
const (
	marketStateOpen       = "open"
	marketStatePreMarket  = "premarket"
	marketStatePostMarket = "postmarket"
)

// StrikeMatchEpsilon defines the precision tolerance for matching strike prices
const StrikeMatchEpsilon = 1e-3

// APIError represents an API error with status code and response body
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// TradierAPI is a read-only client for the Tradier market-data endpoints.
type TradierAPI struct {
	client  *http.Client
	apiKey  string
	baseURL string
	sandbox bool
	timeout time.Duration // configurable timeout for HTTP requests
}

// NewTradierAPI creates a new TradierAPI client with default settings.
func NewTradierAPI(apiKey string, sandbox bool) *TradierAPI {
	return NewTradierAPIWithBaseURL(apiKey, sandbox, "")
}

// NewTradierAPIWithBaseURL creates a new TradierAPI client with an optional
// custom baseURL, used in tests to point at a local server.
func NewTradierAPIWithBaseURL(apiKey string, sandbox bool, baseURL string) *TradierAPI {
	if baseURL == "" {
		if sandbox {
			baseURL = "https://sandbox.tradier.com/v1"
		} else {
			baseURL = "https://api.tradier.com/v1"
		}
	}
	// Normalize once
	baseURL = strings.TrimRight(baseURL, "/")

	const defaultTimeout = 10 * time.Second
	return &TradierAPI{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		sandbox: sandbox,
		timeout: defaultTimeout,
	}
}

// WithHTTPClient allows overriding the HTTP client (tests, custom transport).
func (t *TradierAPI) WithHTTPClient(c *http.Client) *TradierAPI {
	if c != nil {
		t.client = c
	}
	return t
}

// WithTimeout sets the HTTP client timeout duration.
func (t *TradierAPI) WithTimeout(timeout time.Duration) *TradierAPI {
	t.timeout = timeout
	if t.client != nil {
		t.client.Timeout = timeout
	}
	return t
}

// ============ API Response Structures ============

// Handle single-object vs array responses from Tradier
type singleOrArray[T any] []T

func (s *singleOrArray[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		return json.Unmarshal(b, (*[]T)(s))
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*s = append(*s, one)
	return nil
}

// OptionChainResponse represents the API response for option chain requests.
type OptionChainResponse struct {
	Options struct {
		Option singleOrArray[Option] `json:"option"`
	} `json:"options"`
}

// Option represents an option contract from the Tradier API.
type Option struct {
	Greeks         *Greeks `json:"greeks,omitempty"`
	Symbol         string  `json:"symbol"`
	Description    string  `json:"description"`
	OptionType     string  `json:"option_type"`
	ExpirationDate string  `json:"expiration_date"`
	Underlying     string  `json:"underlying"`
	Bid            float64 `json:"bid"`
	Ask            float64 `json:"ask"`
	Last           float64 `json:"last"`
	BidSize        int     `json:"bid_size"`
	AskSize        int     `json:"ask_size"`
	Volume         int64   `json:"volume"`
	OpenInterest   int64   `json:"open_interest"`
	ExpirationDay  int     `json:"expiration_day"`
	Strike         float64 `json:"strike"`
}

// Mid returns the bid/ask midpoint for the contract.
func (o *Option) Mid() float64 {
	return (o.Bid + o.Ask) / 2
}

// Greeks contains option Greeks data from the Tradier API.
type Greeks struct {
	UpdatedAt string  `json:"updated_at"`
	Delta     float64 `json:"delta"`
	Gamma     float64 `json:"gamma"`
	Theta     float64 `json:"theta"`
	Vega      float64 `json:"vega"`
	Rho       float64 `json:"rho"`
	Phi       float64 `json:"phi"`
	BidIV     float64 `json:"bid_iv"`
	MidIV     float64 `json:"mid_iv"`
	AskIV     float64 `json:"ask_iv"`
	SmvVol    float64 `json:"smv_vol"`
}

// QuotesResponse represents the quotes response from the Tradier API.
type QuotesResponse struct {
	Quotes struct {
		Quote singleOrArray[QuoteItem] `json:"quote"`
	} `json:"quotes"`
}

// QuoteItem represents a single quote item from the Tradier API.
type QuoteItem struct {
	Symbol           string  `json:"symbol"`
	Description      string  `json:"description"`
	Exch             string  `json:"exch"`
	Type             string  `json:"type"`
	TradeDate        int64   `json:"trade_date"`
	Low              float64 `json:"low"`
	AverageVolume    int64   `json:"average_volume"`
	LastVolume       int64   `json:"last_volume"`
	ChangePercentage float64 `json:"change_percentage"`
	Open             float64 `json:"open"`
	High             float64 `json:"high"`
	Volume           int64   `json:"volume"`
	Close            float64 `json:"close"`
	PrevClose        float64 `json:"prevclose"`
	Bid              float64 `json:"bid"`
	BidSize          int     `json:"bidsize"`
	Change           float64 `json:"change"`
	Ask              float64 `json:"ask"`
	AskSize          int     `json:"asksize"`
	Last             float64 `json:"last"`
}

// ExpirationsResponse represents the expirations response from the Tradier API.
type ExpirationsResponse struct {
	Expirations struct {
		Date []string `json:"date"`
	} `json:"expirations"`
}

// MarketClockResponse represents the market clock response from the Tradier API.
type MarketClockResponse struct {
	Clock struct {
		Date        string `json:"date"`
		Description string `json:"description"`
		State       string `json:"state"`
		Timestamp   int64  `json:"timestamp"`
		NextChange  string `json:"next_change"`
		NextState   string `json:"next_state"`
	} `json:"clock"`
}

// MarketCalendarResponse represents the market calendar response from the Tradier API.
type MarketCalendarResponse struct {
	Calendar struct {
		Month int `json:"month"`
		Year  int `json:"year"`
		Days  struct {
			Day []MarketDay `json:"day"`
		} `json:"days"`
	} `json:"calendar"`
}

// MarketDay represents a single day in the market calendar.
type MarketDay struct {
	Date        string         `json:"date"`
	Status      string         `json:"status"`
	Description string         `json:"description"`
	Open        *MarketSession `json:"open,omitempty"`
}

// MarketSession holds the regular session times of a trading day,
// exchange-local in "15:04" form.
type MarketSession struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// HistoricalDataPoint represents a single historical bar
type HistoricalDataPoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// HistoricalDataResponse represents the response from the history endpoint
type HistoricalDataResponse struct {
	History struct {
		Day []struct {
			Date   string  `json:"date"`
			Open   float64 `json:"open"`
			High   float64 `json:"high"`
			Low    float64 `json:"low"`
			Close  float64 `json:"close"`
			Volume int64   `json:"volume"`
		} `json:"day"`
	} `json:"history"`
}

// ============ API Methods ============

// GetQuote retrieves the current market quote for a symbol.
func (t *TradierAPI) GetQuote(symbol string) (*QuoteItem, error) {
	quotes, err := t.GetQuotesCtx(context.Background(), []string{symbol})
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no quote found for symbol: %s", symbol)
	}
	first := quotes[0]
	return &first, nil
}

// GetQuotes retrieves quotes for multiple symbols in one request.
func (t *TradierAPI) GetQuotes(symbols []string) ([]QuoteItem, error) {
	return t.GetQuotesCtx(context.Background(), symbols)
}

// GetQuotesCtx retrieves quotes for multiple symbols with context support.
func (t *TradierAPI) GetQuotesCtx(ctx context.Context, symbols []string) ([]QuoteItem, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("greeks", "false")
	endpoint := t.baseURL + "/markets/quotes?" + params.Encode()

	var response QuotesResponse
	if err := t.makeRequestCtx(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, err
	}

	return []QuoteItem(response.Quotes.Quote), nil
}

// GetExpirations retrieves available expiration dates for options on a symbol.
func (t *TradierAPI) GetExpirations(symbol string) ([]string, error) {
	return t.GetExpirationsCtx(context.Background(), symbol)
}

// GetExpirationsCtx retrieves available expiration dates for options on a symbol with context support.
func (t *TradierAPI) GetExpirationsCtx(ctx context.Context, symbol string) ([]string, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("includeAllRoots", "true")
	params.Set("strikes", "false")
	endpoint := t.baseURL + "/markets/options/expirations?" + params.Encode()

	var response ExpirationsResponse
	if err := t.makeRequestCtx(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, err
	}

	return response.Expirations.Date, nil
}

// GetOptionChain retrieves the option chain for a symbol and expiration date.
func (t *TradierAPI) GetOptionChain(symbol, expiration string, greeks bool) ([]Option, error) {
	return t.GetOptionChainCtx(context.Background(), symbol, expiration, greeks)
}

// GetOptionChainCtx retrieves the option chain for a symbol and expiration date with context.
func (t *TradierAPI) GetOptionChainCtx(ctx context.Context, symbol, expiration string, greeks bool) ([]Option, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", expiration)
	params.Set("greeks", fmt.Sprintf("%t", greeks))
	endpoint := t.baseURL + "/markets/options/chains?" + params.Encode()

	var response OptionChainResponse
	if err := t.makeRequestCtx(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, err
	}

	return []Option(response.Options.Option), nil
}

// GetMarketClock retrieves the current market clock status.
func (t *TradierAPI) GetMarketClock(delayed bool) (*MarketClockResponse, error) {
	endpoint := fmt.Sprintf("%s/markets/clock?delayed=%t", t.baseURL, delayed)

	var response MarketClockResponse
	if err := t.makeRequest("GET", endpoint, nil, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// GetMarketCalendar retrieves the market calendar for a specific month/year.
// If month/year are 0, uses current month/year.
func (t *TradierAPI) GetMarketCalendar(month, year int) (*MarketCalendarResponse, error) {
	return t.GetMarketCalendarCtx(context.Background(), month, year)
}

// GetMarketCalendarCtx retrieves the market calendar with context support.
func (t *TradierAPI) GetMarketCalendarCtx(ctx context.Context, month, year int) (*MarketCalendarResponse, error) {
	endpoint := fmt.Sprintf("%s/markets/calendar", t.baseURL)

	params := url.Values{}
	if month > 0 {
		params.Add("month", fmt.Sprintf("%02d", month))
	}
	if year > 0 {
		params.Add("year", fmt.Sprintf("%04d", year))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var response MarketCalendarResponse
	if err := t.makeRequestCtx(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// GetHistoricalData retrieves historical price bars for a symbol.
func (t *TradierAPI) GetHistoricalData(symbol string, interval string, startDate, endDate time.Time) ([]HistoricalDataPoint, error) {
	return t.GetHistoricalDataCtx(context.Background(), symbol, interval, startDate, endDate)
}

// GetHistoricalDataCtx retrieves historical price bars with context support.
func (t *TradierAPI) GetHistoricalDataCtx(ctx context.Context, symbol string, interval string, startDate, endDate time.Time) ([]HistoricalDataPoint, error) {
	endpoint := fmt.Sprintf("%s/markets/history", t.baseURL)

	params := url.Values{}
	params.Add("symbol", symbol)
	if interval != "" {
		params.Add("interval", interval)
	} else {
		params.Add("interval", "daily")
	}
	params.Add("start", startDate.Format("2006-01-02"))
	params.Add("end", endDate.Format("2006-01-02"))
	endpoint += "?" + params.Encode()

	var response HistoricalDataResponse
	if err := t.makeRequestCtx(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
	}

	dataPoints := make([]HistoricalDataPoint, len(response.History.Day))
	for i, day := range response.History.Day {
		date, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date %s: %w", day.Date, err)
		}

		dataPoints[i] = HistoricalDataPoint{
			Date:   date,
			Open:   day.Open,
			High:   day.High,
			Low:    day.Low,
			Close:  day.Close,
			Volume: day.Volume,
		}
	}

	return dataPoints, nil
}

// IsTradingDay returns true on a trading session day (open, premarket, or postmarket).
func (t *TradierAPI) IsTradingDay(delayed bool) (bool, error) {
	clock, err := t.GetMarketClock(delayed)
	if err != nil {
		return false, err
	}

	state := clock.Clock.State
	return state == marketStateOpen || state == marketStatePreMarket || state == marketStatePostMarket, nil
}

// Helper method for making HTTP requests
func (t *TradierAPI) makeRequest(method, endpoint string, params url.Values, response interface{}) error {
	return t.makeRequestCtx(context.Background(), method, endpoint, params, response)
}

// makeRequestCtx makes an HTTP request with context support for timeout/cancellation
func (t *TradierAPI) makeRequestCtx(ctx context.Context, method, endpoint string,
	params url.Values, response interface{}) error {
	var req *http.Request
	var err error

	if method == "POST" && params != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if err != nil {
			return err
		}
		req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, http.NoBody)
		if err != nil {
			return err
		}
	}

	req.Header.Add("Authorization", "Bearer "+t.apiKey)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("User-Agent", "tradetools/1.0 (+tradier)")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close response body")
		}
	}()

	// Check rate limit headers
	remaining := resp.Header.Get("X-Ratelimit-Available")
	if remaining == "" {
		remaining = resp.Header.Get("X-RateLimit-Available")
		if remaining == "" {
			remaining = resp.Header.Get("X-RateLimit-Remaining")
		}
	}
	if remaining != "" && t.sandbox {
		logrus.Debugf("rate limit remaining: %s", remaining)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap to avoid huge payloads
		if err != nil {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> failed to read error body", method, endpoint)}
		}
		ct := resp.Header.Get("Content-Type")
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s (%s) -> %s (retry-after: %s)", method, endpoint, ct, string(body), ra)}
		}
		return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s (%s) -> %s", method, endpoint, ct, string(body))}
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(response); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// ============ Helper Functions ============

// FindStrikesByDelta finds the put and call contracts closest to the target
// absolute delta. Contracts without Greeks are skipped.
func FindStrikesByDelta(options []Option, targetDelta float64) (put, call *Option) {
	bestPutDiff := 999.0
	bestCallDiff := 999.0

	for i := range options {
		opt := &options[i]
		if opt.Greeks == nil {
			continue
		}

		switch opt.OptionType {
		case "put":
			// Put deltas are negative, so we use absolute value
			delta := opt.Greeks.Delta
			if delta < 0 {
				delta = -delta
			}
			diff := math.Abs(delta - targetDelta)
			if diff < bestPutDiff {
				bestPutDiff = diff
				put = opt
			}
		case "call":
			diff := math.Abs(opt.Greeks.Delta - targetDelta)
			if diff < bestCallDiff {
				bestCallDiff = diff
				call = opt
			}
		}
	}

	return put, call
}

// FindATMByDelta picks the at-the-money pair the way delta defines it: the
// call with the smallest delta above 0.5 and the put with the smallest
// delta above -0.5.
func FindATMByDelta(options []Option) (put, call *Option) {
	bestCallDelta := math.Inf(1)
	bestPutDelta := math.Inf(1)

	for i := range options {
		opt := &options[i]
		if opt.Greeks == nil {
			continue
		}

		switch opt.OptionType {
		case "call":
			if opt.Greeks.Delta > 0.5 && opt.Greeks.Delta < bestCallDelta {
				bestCallDelta = opt.Greeks.Delta
				call = opt
			}
		case "put":
			if opt.Greeks.Delta > -0.5 && opt.Greeks.Delta < bestPutDelta {
				bestPutDelta = opt.Greeks.Delta
				put = opt
			}
		}
	}

	return put, call
}

// StraddleMid returns the combined bid/ask midpoint of the put and call at
// the given strike.
func StraddleMid(options []Option, strike float64) (float64, error) {
	var putMid, callMid float64
	var putFound, callFound bool

	for _, opt := range options {
		if math.Abs(opt.Strike-strike) > StrikeMatchEpsilon {
			continue
		}
		switch opt.OptionType {
		case "put":
			putMid = util.MidPrice(opt.Bid, opt.Ask)
			putFound = true
		case "call":
			callMid = util.MidPrice(opt.Bid, opt.Ask)
			callFound = true
		}
		if putFound && callFound {
			break
		}
	}

	if !putFound || !callFound {
		return 0, fmt.Errorf("missing legs at strike %.2f: putFound=%t callFound=%t",
			strike, putFound, callFound)
	}

	return putMid + callMid, nil
}

// BuildOSISymbol encodes an option contract in OSI format:
// UNDERLYING + YYMMDD + P/C + strike in eighths of a cent, 8 digits.
// e.g. SPY, 2024-12-20, put, 450 -> "SPY241220P00450000"
func BuildOSISymbol(underlying string, expiration time.Time, optionType string, strike float64) (string, error) {
	var typeChar string
	switch strings.ToLower(optionType) {
	case "put", "p":
		typeChar = "P"
	case "call", "c":
		typeChar = "C"
	default:
		return "", fmt.Errorf("invalid option type: %s", optionType)
	}

	const eps = 1e-9
	strikeInt := int(math.Round(strike*1000 + eps))
	if strikeInt <= 0 || strikeInt > 99999999 {
		return "", fmt.Errorf("strike %.3f out of OSI range", strike)
	}

	return fmt.Sprintf("%s%s%s%08d", strings.ToUpper(underlying),
		expiration.Format("060102"), typeChar, strikeInt), nil
}

// UnderlyingFromOSI extracts the underlying symbol from an OSI-formatted
// option symbol, e.g. "SPY241220P00450000" -> "SPY".
func UnderlyingFromOSI(s string) string {
	// OSI format: UNDERLYING + YYMMDD + P/C + 8-digit strike
	trimmedS := strings.TrimSpace(s)
	if len(trimmedS) < 16 { // minimum length for a valid option symbol
		return ""
	}

	for i := 0; i <= len(trimmedS)-15; i++ {
		if isSixDigits(trimmedS[i : i+6]) {
			// Reject 6-digit sequences that are part of a longer numeric run
			if i > 0 && trimmedS[i-1] >= '0' && trimmedS[i-1] <= '9' {
				continue
			}

			expirationEnd := i + 6
			typeChar := trimmedS[expirationEnd]
			if typeChar != 'P' && typeChar != 'C' && typeChar != 'p' && typeChar != 'c' {
				continue
			}

			strikeStart := expirationEnd + 1
			if !isEightDigits(trimmedS[strikeStart : strikeStart+8]) {
				continue
			}

			if strikeStart+8 != len(trimmedS) {
				continue
			}

			return strings.TrimSpace(trimmedS[:i])
		}
	}

	return ""
}

// OptionTypeFromOSI returns "put" | "call" | "" from OSI-like symbols.
func OptionTypeFromOSI(s string) string {
	if len(s) < 9 {
		return ""
	}
	// Walk backward over the 8 trailing strike digits
	i := len(s) - 1
	digits := 0
	for i >= 0 && digits < 8 {
		if s[i] < '0' || s[i] > '9' {
			return ""
		}
		i--
		digits++
	}
	if i < 0 {
		return ""
	}
	switch s[i] {
	case 'P', 'p':
		return "put"
	case 'C', 'c':
		return "call"
	default:
		return ""
	}
}

// isSixDigits checks if a string consists of exactly 6 digits
func isSixDigits(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// isEightDigits checks if a string consists of exactly 8 digits
func isEightDigits(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
