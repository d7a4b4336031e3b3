// Package data loads and writes bar series as CSV.
package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantlab/barsim/market"
)

// ErrNoBars is returned when a file parses but yields no usable bars.
var ErrNoBars = errors.New("no bars")

var headerAliases = map[string][]string{
	"time":   {"time", "ts", "timestamp", "timestampms", "date", "datetime", "begin"},
	"open":   {"open", "o"},
	"high":   {"high", "h"},
	"low":    {"low", "l"},
	"close":  {"close", "c"},
	"volume": {"volume", "vol", "v"},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func norm(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

// columns maps a logical field name to its column index.
type columns map[string]int

func detectHeader(row []string) (columns, bool) {
	cols := columns{}
	for i, cell := range row {
		n := norm(cell)
		for field, aliases := range headerAliases {
			for _, a := range aliases {
				if n == a {
					if _, taken := cols[field]; !taken {
						cols[field] = i
					}
				}
			}
		}
	}
	for _, need := range []string{"open", "high", "low", "close"} {
		if _, ok := cols[need]; !ok {
			return nil, false
		}
	}
	return cols, true
}

// defaultColumns is used for header-less files: time,open,high,low,close[,volume].
var defaultColumns = columns{"time": 0, "open": 1, "high": 2, "low": 3, "close": 4, "volume": 5}

// ReadCSV parses bars from r. A header row is optional; when present, column
// names are matched case-insensitively against common aliases. Rows that are
// blank or too short are skipped. Bars are returned sorted by time.
func ReadCSV(r io.Reader) ([]market.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		cols    columns
		bars    []market.Bar
		lineNum int
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		lineNum++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if cols == nil {
			if h, ok := detectHeader(row); ok {
				cols = h
				continue
			}
			cols = defaultColumns
		}

		b, ok, err := parseRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if !ok {
			continue
		}
		bars = append(bars, b)
	}

	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time < bars[j].Time })
	return bars, nil
}

// LoadCSV opens path and parses it with ReadCSV.
func LoadCSV(path string) ([]market.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

func parseRow(row []string, cols columns) (market.Bar, bool, error) {
	get := func(field string) (string, bool) {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}

	var b market.Bar
	var err error
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close},
	} {
		s, ok := get(f.name)
		if !ok || s == "" {
			return market.Bar{}, false, nil
		}
		if *f.dst, err = parseFloat(s); err != nil {
			return market.Bar{}, false, fmt.Errorf("bad %s %q: %w", f.name, s, err)
		}
	}

	if s, ok := get("volume"); ok && s != "" {
		if b.Volume, err = parseFloat(s); err != nil {
			return market.Bar{}, false, fmt.Errorf("bad volume %q: %w", s, err)
		}
	}
	if s, ok := get("time"); ok && s != "" {
		if b.Time, err = parseTime(s); err != nil {
			return market.Bar{}, false, err
		}
	}
	return b, true, nil
}

// parseFloat accepts "1234.5", "1 234,5" and "1234,5".
func parseFloat(s string) (float64, error) {
	s = strings.NewReplacer(" ", "", "\u00a0", "").Replace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2006-01-02",
	"20060102",
}

// parseTime returns epoch seconds. Numeric stamps above 1e12 are treated as
// milliseconds.
func parseTime(s string) (int64, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "-:") && len(s) != 8 {
		ts := int64(f)
		if ts > 1e12 {
			ts /= 1000
		}
		return ts, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("bad time %q", s)
}

// WriteCSV writes bars with a time,open,high,low,close,volume header. Prices
// are written with a fixed number of decimal places.
func WriteCSV(w io.Writer, bars []market.Bar, places int32) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		row := []string{
			strconv.FormatInt(b.Time, 10),
			fixed(b.Open, places),
			fixed(b.High, places),
			fixed(b.Low, places),
			fixed(b.Close, places),
			fixed(b.Volume, 2),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
