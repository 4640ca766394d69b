package gex

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// The CBOE quote-table export is not a plain CSV: two title lines, a
// spot-price line containing "Last:", a header line, then fixed
// 22-column data rows.
const (
	cboeHeaderLines = 4
	cboeColumns     = 22
	expiryLayout    = "Mon Jan 02 2006"
)

// Column offsets within a data row.
const (
	colExpiration = iota
	colCalls
	colCallLastSale
	colCallNet
	colCallBid
	colCallAsk
	colCallVol
	colCallIV
	colCallDelta
	colCallGamma
	colCallOpenInt
	colStrike
	colPuts
	colPutLastSale
	colPutNet
	colPutBid
	colPutAsk
	colPutVol
	colPutIV
	colPutDelta
	colPutGamma
	colPutOpenInt
)

// ParseFile reads a CBOE quote-table CSV from disk.
func ParseFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the quote table from r, extracting the spot price from
// the "Last:" line and every option row after the header.
func Parse(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)

	var headerLines []string
	for i := 0; i < cboeHeaderLines; i++ {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		headerLines = append(headerLines, line)
		if err == io.EOF {
			break
		}
	}

	spot, err := extractSpot(headerLines)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	s := &Snapshot{Spot: spot}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading quote table: %w", err)
		}
		if len(record) < cboeColumns {
			continue
		}
		row, err := parseRow(record)
		if err != nil {
			// Malformed rows are skipped, not fatal; the importers
			// behave the same way.
			continue
		}
		row.SpotPrice = spot
		s.Rows = append(s.Rows, row)
	}
	if len(s.Rows) == 0 {
		return nil, fmt.Errorf("no option rows found in quote table")
	}

	// The first row's expiration stands in for the quote date; day
	// offsets below are computed against it.
	s.QuoteDate = s.Rows[0].Expiration
	for i := range s.Rows {
		r := &s.Rows[i]
		r.QuoteDate = s.QuoteDate
		days := businessDaysBetween(s.QuoteDate, r.Expiration)
		if days == 0 {
			r.DaysTillExp = 1.0
		} else {
			r.DaysTillExp = float64(days)
		}
		r.IsThirdFri = IsThirdFriday(r.Expiration)
	}
	return s, nil
}

func extractSpot(lines []string) (float64, error) {
	for _, line := range lines {
		idx := strings.Index(line, "Last:")
		if idx < 0 {
			continue
		}
		rest := line[idx+len("Last:"):]
		if comma := strings.Index(rest, ","); comma >= 0 {
			rest = rest[:comma]
		}
		spot, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing spot price %q: %w", rest, err)
		}
		return spot, nil
	}
	return 0, fmt.Errorf("spot price line (\"Last:\") not found")
}

func parseRow(record []string) (Row, error) {
	expiry, err := time.Parse(expiryLayout, strings.TrimSpace(record[colExpiration]))
	if err != nil {
		return Row{}, err
	}
	// Options settle at the 16:00 close.
	expiry = expiry.Add(16 * time.Hour)

	fields := map[string]int{
		"strike":        colStrike,
		"call iv":       colCallIV,
		"call gamma":    colCallGamma,
		"call open int": colCallOpenInt,
		"put iv":        colPutIV,
		"put gamma":     colPutGamma,
		"put open int":  colPutOpenInt,
	}
	values := map[string]float64{}
	for name, idx := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
		if err != nil {
			return Row{}, fmt.Errorf("parsing %s: %w", name, err)
		}
		values[name] = v
	}

	return Row{
		Expiration:  expiry,
		Strike:      values["strike"],
		CallIV:      values["call iv"],
		CallGamma:   values["call gamma"],
		CallOpenInt: values["call open int"],
		PutIV:       values["put iv"],
		PutGamma:    values["put gamma"],
		PutOpenInt:  values["put open int"],
	}, nil
}

// businessDaysBetween counts weekdays in [from, to), ignoring holidays.
func businessDaysBetween(from, to time.Time) int {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	if !fromDay.Before(toDay) {
		return 0
	}
	days := 0
	for d := fromDay; d.Before(toDay); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			days++
		}
	}
	return days
}
