package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	apperrors "poos-backtester/internal/errors"
	"poos-backtester/internal/models"
)

// Paths lists the artifacts one run writes.
type Paths struct {
	EquityCSV   string
	TradesCSV   string
	MetricsJSON string
	SkipsCSV    string
}

// Save writes the run artifacts into outDir, creating it if needed.
func Save(outDir string, snapshots []models.EquityPoint, trades []models.Trade, metrics Metrics, skips []models.Skip) (Paths, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return Paths{}, apperrors.Wrapf(err, "creating %s", outDir)
	}

	paths := Paths{
		EquityCSV:   filepath.Join(outDir, "equity.csv"),
		TradesCSV:   filepath.Join(outDir, "trades.csv"),
		MetricsJSON: filepath.Join(outDir, "metrics.json"),
		SkipsCSV:    filepath.Join(outDir, "skips.csv"),
	}

	if err := writeCSV(paths.EquityCSV, &snapshots); err != nil {
		return Paths{}, err
	}
	if err := writeCSV(paths.TradesCSV, &trades); err != nil {
		return Paths{}, err
	}

	skipRows := make([]skipRow, len(skips))
	for i, s := range skips {
		skipRows[i] = skipRow{
			Ticker: s.Ticker,
			Date:   s.Date.Format("2006-01-02"),
			Reason: s.Reason,
		}
	}
	if err := writeCSV(paths.SkipsCSV, &skipRows); err != nil {
		return Paths{}, err
	}

	f, err := os.Create(paths.MetricsJSON)
	if err != nil {
		return Paths{}, apperrors.Wrapf(err, "creating %s", paths.MetricsJSON)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(metrics); err != nil {
		return Paths{}, apperrors.Wrap(err, "writing metrics")
	}

	return paths, nil
}

type skipRow struct {
	Ticker string `csv:"ticker"`
	Date   string `csv:"date"`
	Reason string `csv:"reason"`
}

func writeCSV(path string, rows interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(rows, f); err != nil {
		return apperrors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// EquityCurveASCII renders the equity snapshot sequence as a terminal
// chart sized width×height.
func EquityCurveASCII(snapshots []models.EquityPoint, width, height int) string {
	if len(snapshots) == 0 {
		return "No data to display"
	}

	minEq := snapshots[0].Equity
	maxEq := snapshots[0].Equity
	for _, s := range snapshots {
		if s.Equity < minEq {
			minEq = s.Equity
		}
		if s.Equity > maxEq {
			maxEq = s.Equity
		}
	}

	span := maxEq - minEq
	if span == 0 {
		span = 1
	}
	minEq -= span * 0.05
	maxEq += span * 0.05
	span = maxEq - minEq

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	step := len(snapshots) / width
	if step == 0 {
		step = 1
	}

	for x := 0; x < width && x*step < len(snapshots); x++ {
		pt := snapshots[x*step]
		y := int((pt.Equity - minEq) / span * float64(height-1))
		if y >= 0 && y < height {
			grid[height-1-y][x] = '█'
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Equity Curve (%.0f - %.0f)\n", minEq, maxEq))
	sb.WriteString(strings.Repeat("─", width+2) + "\n")
	for _, row := range grid {
		sb.WriteRune('│')
		sb.WriteString(string(row))
		sb.WriteRune('│')
		sb.WriteRune('\n')
	}
	sb.WriteString(strings.Repeat("─", width+2) + "\n")

	return sb.String()
}
