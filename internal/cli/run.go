package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"poos-backtester/internal/backtest"
	apperrors "poos-backtester/internal/errors"
	"poos-backtester/internal/logging"
	"poos-backtester/internal/marketdata"
	"poos-backtester/internal/models"
	"poos-backtester/internal/report"
	"poos-backtester/internal/series"
	"poos-backtester/internal/universe"
)

func addRunCommand(root *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the backtest over cached daily bars",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd.Context(), cmd, app)
		},
	}
	root.AddCommand(cmd)
}

func runBacktest(ctx context.Context, cmd *cobra.Command, app *App) error {
	out := NewOutput(cmd)
	cfg := app.Config

	start, end, err := resolveWindow(cfg.Run.EndDate, cfg.Run.Days)
	if err != nil {
		return err
	}

	tickers, err := universe.ReadTickers(cfg.Data.TickersFile)
	if err != nil {
		return err
	}
	sectorETFs, err := universe.ReadSectorETFs(cfg.Data.SectorETFsFile)
	if err != nil {
		return err
	}
	sectorOf, err := universe.ReadTickerSectorMap(cfg.Data.TickerSectorFile)
	if err != nil {
		return err
	}
	if !contains(sectorETFs, cfg.Data.IndexSymbol) {
		return apperrors.NewConfigError("data.sector_etfs_file", cfg.Data.SectorETFsFile,
			fmt.Sprintf("must include the index symbol %s", cfg.Data.IndexSymbol))
	}

	cache, err := marketdata.NewBarCache(cfg.Data.CachePath)
	if err != nil {
		return err
	}
	defer cache.Close()

	raw := make(map[string][]models.Bar)
	for _, sym := range append(append([]string{}, sectorETFs...), tickers...) {
		bars, err := cache.GetBars(ctx, sym, start, end)
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			app.Logger.Warn().Str("ticker", sym).Msg("No cached bars; run 'poos fetch' first")
			continue
		}
		raw[sym] = bars
	}

	store, err := series.Build(cfg.Data.IndexSymbol, raw, sectorETFs, sectorOf)
	if err != nil {
		return err
	}

	runID := fmt.Sprintf("run_%s_%dd", end.Format("2006-01-02"), cfg.Run.Days)
	logger := logging.WithRun(app.Logger, runID)
	logger.Info().
		Int("days", len(store.Calendar)).
		Int("stocks", len(store.Stocks)).
		Int("sectors", len(store.Sectors)).
		Int("dropped", len(store.Dropped)).
		Msg("Universe aligned")

	engine := backtest.NewEngine(store, cfg, logger)
	result := engine.Run()

	metrics := report.Compute(result.Snapshots, result.Trades, result.Skips)

	outDir := filepath.Join(cfg.Run.OutDir, runID)
	paths, err := report.Save(outDir, result.Snapshots, result.Trades, metrics, result.Skips)
	if err != nil {
		return err
	}
	logger.Info().Str("out_dir", outDir).Msg("Run complete")

	if out.IsJSON() {
		return out.JSON(map[string]interface{}{
			"run_id":  runID,
			"metrics": metrics,
			"paths":   paths,
		})
	}

	out.Println(report.EquityCurveASCII(result.Snapshots, 70, 12))
	printSummary(out, metrics, result)
	out.Printf("\nArtifacts written to %s\n", outDir)
	return nil
}

func printSummary(out *Output, m report.Metrics, result *backtest.Result) {
	color.Cyan("POOS Backtest Summary")
	out.Printf("  Start equity:   %12.2f\n", m.StartEquity)
	out.Printf("  End equity:     %12.2f\n", m.EndEquity)

	ret := color.GreenString("%+.2f%%", m.TotalReturn*100)
	if m.TotalReturn < 0 {
		ret = color.RedString("%+.2f%%", m.TotalReturn*100)
	}
	out.Printf("  Total return:   %s\n", ret)
	out.Printf("  CAGR:           %+.2f%%\n", m.CAGR*100)
	out.Printf("  Max drawdown:   %.2f%%\n", m.MaxDrawdown*100)
	out.Printf("  Sharpe:         %.2f\n", m.SharpeRatio)
	out.Printf("  Trades:         %d (win rate %.1f%%)\n", m.TradeCount, m.WinRate*100)
	out.Printf("  Avg win/loss:   %.2f / %.2f\n", m.AvgWin, m.AvgLoss)
	out.Printf("  Profit factor:  %.2f\n", m.ProfitFactor)
	out.Printf("  Expectancy:     %.2f\n", m.Expectancy)
	if len(result.Skips) > 0 {
		color.Yellow("  Skipped %d ticker-days (see skips.csv)", len(result.Skips))
	}
}

// resolveWindow turns the configured end date and day count into a
// concrete date range. An empty end date means today (UTC).
func resolveWindow(endDate string, days int) (time.Time, time.Time, error) {
	var end time.Time
	if endDate == "" {
		now := time.Now().UTC()
		end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		var err error
		end, err = time.Parse("2006-01-02", endDate)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.NewConfigError("run.end_date", endDate, "must be YYYY-MM-DD")
		}
	}
	start := end.AddDate(0, 0, -days)
	return start, end, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
