package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/quarrydale/tradetools/internal/models"
)

// ParseOptionsDX reads an optionsDX end-of-day chain export into wide
// option rows. Headers arrive bracketed and unevenly spaced, e.g.
// "[QUOTE_DATE], [UNDERLYING_LAST], [C_BID]"; they are normalized
// before matching. Empty numeric cells become zero. Rows missing the
// quote date, expiration or strike are skipped.
func ParseOptionsDX(r io.Reader, underlying string) ([]models.OptionRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[normalizeHeader(name)] = i
	}

	required := []string{"QUOTE_DATE", "EXPIRE_DATE", "STRIKE"}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing required column %s", name)
		}
	}

	var rows []models.OptionRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		cell := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		num := func(name string) float64 {
			v, err := strconv.ParseFloat(cell(name), 64)
			if err != nil {
				return 0
			}
			return v
		}
		count := func(name string) int64 {
			// Volume columns sometimes carry a decimal point
			return int64(num(name))
		}

		quoteDate := normalizeDate(cell("QUOTE_DATE"))
		expireDate := normalizeDate(cell("EXPIRE_DATE"))
		strike := num("STRIKE")
		if quoteDate == "" || expireDate == "" || strike == 0 {
			continue
		}

		rows = append(rows, models.OptionRow{
			Underlying:     strings.ToUpper(underlying),
			QuoteDate:      quoteDate,
			Expiration:     expireDate,
			DTE:            num("DTE"),
			Strike:         strike,
			UnderlyingLast: num("UNDERLYING_LAST"),

			CBid:    num("C_BID"),
			CAsk:    num("C_ASK"),
			CLast:   num("C_LAST"),
			CVolume: count("C_VOLUME"),
			COI:     count("C_OI"),
			CIV:     num("C_IV"),
			CDelta:  num("C_DELTA"),
			CGamma:  num("C_GAMMA"),
			CTheta:  num("C_THETA"),
			CVega:   num("C_VEGA"),
			CRho:    num("C_RHO"),

			PBid:    num("P_BID"),
			PAsk:    num("P_ASK"),
			PLast:   num("P_LAST"),
			PVolume: count("P_VOLUME"),
			POI:     count("P_OI"),
			PIV:     num("P_IV"),
			PDelta:  num("P_DELTA"),
			PGamma:  num("P_GAMMA"),
			PTheta:  num("P_THETA"),
			PVega:   num("P_VEGA"),
			PRho:    num("P_RHO"),
		})
	}

	return rows, nil
}

// normalizeHeader strips brackets and whitespace and uppercases, so
// "[c_bid] " and "[C_BID]" both match C_BID.
func normalizeHeader(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	return strings.ToUpper(strings.TrimSpace(s))
}

// normalizeDate accepts "2024-01-02" or "2024-01-02 16:00" and returns
// the date part, empty if unparseable.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		s = s[:10]
	}
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return ""
	}
	return s
}
