// Package universe loads the trading universe from CSV files: stock
// tickers, sector ETF symbols, and the ticker→sector-ETF mapping.
package universe

import (
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	apperrors "poos-backtester/internal/errors"
)

type tickerRow struct {
	Ticker string `csv:"ticker"`
}

type sectorRow struct {
	Ticker    string `csv:"ticker"`
	SectorETF string `csv:"sector_etf"`
}

// ReadTickers reads a one-column ticker CSV, returning upper-cased,
// deduplicated symbols in lexical order.
func ReadTickers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var rows []tickerRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, apperrors.Wrapf(err, "parsing %s", path)
	}

	seen := make(map[string]bool, len(rows))
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		t := strings.ToUpper(strings.TrimSpace(r.Ticker))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// ReadSectorETFs reads the sector ETF list. The index symbol must be
// present in this file; the caller validates that.
func ReadSectorETFs(path string) ([]string, error) {
	return ReadTickers(path)
}

// ReadTickerSectorMap reads the ticker→sector-ETF mapping.
func ReadTickerSectorMap(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var rows []sectorRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, apperrors.Wrapf(err, "parsing %s", path)
	}

	m := make(map[string]string, len(rows))
	for _, r := range rows {
		t := strings.ToUpper(strings.TrimSpace(r.Ticker))
		s := strings.ToUpper(strings.TrimSpace(r.SectorETF))
		if t != "" && s != "" {
			m[t] = s
		}
	}
	return m, nil
}
