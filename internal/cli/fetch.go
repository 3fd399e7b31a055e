package cli

import (
	"context"

	"github.com/spf13/cobra"

	"poos-backtester/internal/logging"
	"poos-backtester/internal/marketdata"
	"poos-backtester/internal/universe"
)

func addFetchCommand(root *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download daily bars for the universe into the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetchUniverse(cmd.Context(), cmd, app)
		},
	}
	root.AddCommand(cmd)
}

func fetchUniverse(ctx context.Context, cmd *cobra.Command, app *App) error {
	out := NewOutput(cmd)
	cfg := app.Config

	tickers, err := universe.ReadTickers(cfg.Data.TickersFile)
	if err != nil {
		return err
	}
	sectorETFs, err := universe.ReadSectorETFs(cfg.Data.SectorETFsFile)
	if err != nil {
		return err
	}

	cache, err := marketdata.NewBarCache(cfg.Data.CachePath)
	if err != nil {
		return err
	}
	defer cache.Close()

	client := marketdata.NewStooqClient()

	var fetched, failed int
	for _, sym := range append(append([]string{}, sectorETFs...), tickers...) {
		logger := logging.WithTicker(app.Logger, sym)
		bars, err := client.FetchDaily(ctx, sym)
		if err != nil {
			// One bad ticker never halts the fetch.
			logger.Warn().Err(err).Msg("Fetch failed")
			failed++
			continue
		}
		if err := cache.SaveBars(ctx, sym, bars); err != nil {
			return err
		}
		logger.Info().Int("bars", len(bars)).Msg("Cached")
		fetched++
	}

	if out.IsJSON() {
		return out.JSON(map[string]int{"fetched": fetched, "failed": failed})
	}
	out.Printf("Fetched %d symbols (%d failed)\n", fetched, failed)
	return nil
}
