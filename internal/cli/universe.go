package cli

import (
	"github.com/spf13/cobra"

	"poos-backtester/internal/universe"
)

func addUniverseCommand(root *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "universe",
		Short: "Show the configured trading universe",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			sectorOf, err := universe.ReadTickerSectorMap(cfg.Data.TickerSectorFile)
			if err != nil {
				return err
			}

			if out.IsJSON() {
				return out.JSON(map[string]interface{}{
					"index":       cfg.Data.IndexSymbol,
					"tickers":     tickers,
					"sector_etfs": sectorETFs,
					"sector_map":  sectorOf,
				})
			}

			out.Printf("Index: %s\n", cfg.Data.IndexSymbol)
			out.Printf("Sector ETFs (%d): %v\n", len(sectorETFs), sectorETFs)
			out.Printf("Tickers (%d):\n", len(tickers))
			for _, t := range tickers {
				sector := sectorOf[t]
				if sector == "" {
					sector = "-"
				}
				out.Printf("  %-8s %s\n", t, sector)
			}
			return nil
		},
	}
	root.AddCommand(cmd)
}
