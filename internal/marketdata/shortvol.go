package marketdata

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quarrydale/tradetools/internal/models"
)

const finraShortVolBaseURL = "https://cdn.finra.org/equity/regsho/daily"

// ShortVolumeClient downloads FINRA consolidated daily short sale
// volume files.
type ShortVolumeClient struct {
	client  *http.Client
	baseURL string
}

// NewShortVolumeClient creates a client with a default timeout.
func NewShortVolumeClient() *ShortVolumeClient {
	return &ShortVolumeClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: finraShortVolBaseURL,
	}
}

// WithBaseURL overrides the endpoint, used in tests.
func (c *ShortVolumeClient) WithBaseURL(u string) *ShortVolumeClient {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// FetchDay downloads and parses the consolidated file for one date.
// FINRA publishes nothing on market holidays; those days return a 404
// which surfaces as an error the caller can skip.
func (c *ShortVolumeClient) FetchDay(ctx context.Context, day time.Time) ([]models.ShortVolumeRecord, error) {
	u := fmt.Sprintf("%s/CNMSshvol%s.txt", c.baseURL, day.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching short volume for %s: %w", day.Format("2006-01-02"), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("short volume file for %s returned status %d", day.Format("2006-01-02"), resp.StatusCode)
	}

	return ParseShortVolume(resp.Body)
}

// ParseShortVolume reads the pipe-delimited FINRA format:
// Date|Symbol|ShortVolume|ShortExemptVolume|TotalVolume|Market
// with dates as YYYYMMDD. Malformed rows are skipped.
func ParseShortVolume(r io.Reader) ([]models.ShortVolumeRecord, error) {
	scanner := bufio.NewScanner(r)
	// Consolidated files run past bufio's default token size
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []models.ShortVolumeRecord
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if first {
			first = false
			if strings.HasPrefix(line, "Date|") {
				continue
			}
		}

		fields := strings.Split(line, "|")
		if len(fields) < 5 {
			continue
		}

		date, err := time.Parse("20060102", strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}
		short, err1 := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
		exempt, err2 := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
		total, err3 := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}

		rec := models.ShortVolumeRecord{
			Date:              date.Format("2006-01-02"),
			Symbol:            strings.TrimSpace(fields[1]),
			ShortVolume:       short,
			ShortExemptVolume: exempt,
			TotalVolume:       total,
		}
		if len(fields) > 5 {
			rec.Market = strings.TrimSpace(fields[5])
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
