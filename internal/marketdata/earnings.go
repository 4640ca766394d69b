package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/quarrydale/tradetools/internal/models"
)

// EarningsClient scrapes the earnings calendar pages.
type EarningsClient struct {
	client  *http.Client
	baseURL string
}

// NewEarningsClient creates a client with a default timeout.
func NewEarningsClient(baseURL string) *EarningsClient {
	return &EarningsClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// WithHTTPClient overrides the HTTP client.
func (c *EarningsClient) WithHTTPClient(h *http.Client) *EarningsClient {
	if h != nil {
		c.client = h
	}
	return c
}

// FetchDay scrapes the announcements scheduled for one day.
func (c *EarningsClient) FetchDay(ctx context.Context, day time.Time) ([]models.EarningsEvent, error) {
	u := fmt.Sprintf("%s/earnings?day=%s", c.baseURL, day.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; tradetools/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching earnings calendar: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("earnings calendar returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing earnings page: %w", err)
	}

	return parseEarningsDoc(doc, day), nil
}

// parseEarningsDoc walks the calendar table. Each row carries the
// ticker, company name, report timing and consensus EPS estimate; rows
// without a ticker are headers or ads and get skipped.
func parseEarningsDoc(doc *goquery.Document, day time.Time) []models.EarningsEvent {
	var events []models.EarningsEvent

	doc.Find("table.earnings-calendar tbody tr").Each(func(_ int, row *goquery.Selection) {
		symbol := strings.TrimSpace(row.Find("td.symbol").First().Text())
		if symbol == "" {
			return
		}

		event := models.EarningsEvent{
			Symbol:  strings.ToUpper(symbol),
			Company: strings.TrimSpace(row.Find("td.company").First().Text()),
			Date:    day,
			Timing:  normalizeTiming(row.Find("td.time").First().Text()),
		}

		epsText := strings.TrimSpace(row.Find("td.eps-estimate").First().Text())
		epsText = strings.TrimPrefix(epsText, "$")
		if eps, err := strconv.ParseFloat(epsText, 64); err == nil {
			event.EPSEstimate = eps
		}

		events = append(events, event)
	})

	return events
}

// normalizeTiming maps the page's timing labels to BMO/AMC.
func normalizeTiming(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, "before"), strings.Contains(s, "bmo"), strings.Contains(s, "pre"):
		return "BMO"
	case strings.Contains(s, "after"), strings.Contains(s, "amc"), strings.Contains(s, "post"):
		return "AMC"
	default:
		return "unknown"
	}
}
