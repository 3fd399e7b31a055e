package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"poos-backtester/internal/config"
	"poos-backtester/internal/logging"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "poos",
		Short: "POOS backtester - rules-based equity strategy simulation",
		Long: `POOS backtester simulates a rules-based equity trading strategy over
historical daily price data, producing a trade log, an equity curve,
and summary performance metrics.

Use 'poos fetch' to download and cache daily bars for the universe,
then 'poos run' to simulate the strategy over the cached data.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/poos)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addFetchCommand(rootCmd, app)
	addRunCommand(rootCmd, app)
	addUniverseCommand(rootCmd, app)

	return rootCmd
}
