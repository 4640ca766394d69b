package marketdata

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SymbolEntry is one listing from the NASDAQ trader symbol directory.
type SymbolEntry struct {
	Symbol       string
	SecurityName string
	Exchange     string
	ETF          bool
	TestIssue    bool
}

const (
	nasdaqListedURL = "https://www.nasdaqtrader.com/dynamic/SymDir/nasdaqlisted.txt"
	otherListedURL  = "https://www.nasdaqtrader.com/dynamic/SymDir/otherlisted.txt"
)

// SymbolDirectoryClient downloads the NASDAQ trader listing files.
type SymbolDirectoryClient struct {
	client         *http.Client
	nasdaqURL      string
	otherListedURL string
}

// NewSymbolDirectoryClient creates a client with the public URLs.
func NewSymbolDirectoryClient(client *http.Client) *SymbolDirectoryClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &SymbolDirectoryClient{
		client:         client,
		nasdaqURL:      nasdaqListedURL,
		otherListedURL: otherListedURL,
	}
}

// WithURLs overrides both listing URLs, used in tests.
func (c *SymbolDirectoryClient) WithURLs(nasdaq, other string) *SymbolDirectoryClient {
	c.nasdaqURL = nasdaq
	c.otherListedURL = other
	return c
}

// FetchAll downloads and merges both listing files. Test issues are
// dropped.
func (c *SymbolDirectoryClient) FetchAll(ctx context.Context) ([]SymbolEntry, error) {
	nasdaq, err := c.fetch(ctx, c.nasdaqURL, "NASDAQ")
	if err != nil {
		return nil, err
	}
	other, err := c.fetch(ctx, c.otherListedURL, "")
	if err != nil {
		return nil, err
	}

	out := make([]SymbolEntry, 0, len(nasdaq)+len(other))
	for _, e := range append(nasdaq, other...) {
		if e.TestIssue {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *SymbolDirectoryClient) fetch(ctx context.Context, u, exchange string) ([]SymbolEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching symbol directory: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("symbol directory returned status %d", resp.StatusCode)
	}
	return ParseSymbolDirectory(resp.Body, exchange)
}

// ParseSymbolDirectory reads the pipe-delimited listing format. The
// final "File Creation Time" footer row is skipped. When exchange is
// empty the per-row Exchange column (otherlisted.txt) is used.
func ParseSymbolDirectory(r io.Reader, exchange string) ([]SymbolEntry, error) {
	scanner := bufio.NewScanner(r)

	var header []string
	colIndex := map[string]int{}
	var out []SymbolEntry

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "File Creation Time") {
			continue
		}
		fields := strings.Split(line, "|")

		if header == nil {
			header = fields
			for i, name := range fields {
				colIndex[strings.TrimSpace(name)] = i
			}
			continue
		}
		if len(fields) < len(header) {
			continue
		}

		get := func(names ...string) string {
			for _, n := range names {
				if i, ok := colIndex[n]; ok && i < len(fields) {
					return strings.TrimSpace(fields[i])
				}
			}
			return ""
		}

		sym := get("Symbol", "ACT Symbol", "NASDAQ Symbol")
		if sym == "" {
			continue
		}

		exch := exchange
		if exch == "" {
			exch = get("Exchange")
		}

		out = append(out, SymbolEntry{
			Symbol:       sym,
			SecurityName: get("Security Name"),
			Exchange:     exch,
			ETF:          get("ETF") == "Y",
			TestIssue:    get("Test Issue") == "Y",
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FilterCommonStock drops ETFs and symbols with share-class suffixes
// (dots and dollar signs) so screens run over plain common stock.
func FilterCommonStock(entries []SymbolEntry) []SymbolEntry {
	var out []SymbolEntry
	for _, e := range entries {
		if e.ETF {
			continue
		}
		if strings.ContainsAny(e.Symbol, ".$") {
			continue
		}
		out = append(out, e)
	}
	return out
}
