// Package config provides configuration management for the backtester.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	apperrors "poos-backtester/internal/errors"
)

// CommissionModel selects how per-leg commission is computed.
type CommissionModel string

const (
	CommissionFixed      CommissionModel = "fixed"
	CommissionPerShare   CommissionModel = "pershare"
	CommissionPercentage CommissionModel = "percentage"
)

// Config holds all application configuration.
type Config struct {
	Run     RunConfig     `mapstructure:"run"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Costs   CostConfig    `mapstructure:"costs"`
	Filters FilterConfig  `mapstructure:"filters"`
	Data    DataConfig    `mapstructure:"data"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RunConfig holds simulation window parameters.
type RunConfig struct {
	Days      int     `mapstructure:"days"`     // calendar days of history
	EndDate   string  `mapstructure:"end_date"` // YYYY-MM-DD, empty = today
	StartCash float64 `mapstructure:"start_cash"`
	OutDir    string  `mapstructure:"out_dir"`
}

// RiskConfig holds position sizing and exposure parameters.
type RiskConfig struct {
	RiskPerTrade     float64 `mapstructure:"risk_per_trade"`     // fraction of equity risked per position
	MaxPositionPct   float64 `mapstructure:"max_position_pct"`   // cap on position notional vs equity
	HeatCap          float64 `mapstructure:"heat_cap"`           // max total allocated risk vs equity
	BreakevenTrigger float64 `mapstructure:"breakeven_trigger"`  // unrealized gain that ratchets the stop
	GapMaxPct        float64 `mapstructure:"gap_max_pct"`        // max open gap below trigger for a valid fill
	ATRStopMultiple  float64 `mapstructure:"atr_stop_multiple"`  // initial stop distance in ATR14 units
}

// CostConfig holds commission and slippage parameters.
type CostConfig struct {
	SlippageBps        float64         `mapstructure:"slippage_bps"`
	CommissionModel    CommissionModel `mapstructure:"commission_model"`
	CommissionFixed    float64         `mapstructure:"commission_fixed"`     // flat fee per leg
	CommissionPerShare float64         `mapstructure:"commission_per_share"` // rate per share
	CommissionMin      float64         `mapstructure:"commission_min"`       // floor for the per-share model
	CommissionPct      float64         `mapstructure:"commission_pct"`       // fraction of notional
}

// FilterConfig holds candidate selection parameters.
type FilterConfig struct {
	PriceMax          float64 `mapstructure:"price_max"`
	Perf3MMin         float64 `mapstructure:"perf_3m_min"`
	MinDollarVolume   float64 `mapstructure:"min_dollar_volume"`
	LiquidityWindow   int     `mapstructure:"liquidity_window"`    // trailing days for avg dollar volume
	RSWindow          int     `mapstructure:"rs_window"`           // trailing days for ticker-vs-sector RS trend
	SectorTrendWindow int     `mapstructure:"sector_trend_window"` // trailing days for sector RS EMA trend
}

// DataConfig holds data source and universe file locations.
type DataConfig struct {
	IndexSymbol      string `mapstructure:"index_symbol"`
	TickersFile      string `mapstructure:"tickers_file"`
	SectorETFsFile   string `mapstructure:"sector_etfs_file"`
	TickerSectorFile string `mapstructure:"ticker_sector_file"`
	CachePath        string `mapstructure:"cache_path"`
}

// LoggingConfig holds log output parameters.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  bool   `mapstructure:"file"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/poos"
	}
	return filepath.Join(home, ".config", "poos")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Days:      1095,
			StartCash: 100000,
			OutDir:    "out",
		},
		Risk: RiskConfig{
			RiskPerTrade:     0.02,
			MaxPositionPct:   0.10,
			HeatCap:          0.06,
			BreakevenTrigger: 0.01,
			GapMaxPct:        0.02,
			ATRStopMultiple:  1.0,
		},
		Costs: CostConfig{
			SlippageBps:        2.0,
			CommissionModel:    CommissionPerShare,
			CommissionFixed:    1.0,
			CommissionPerShare: 0.005,
			CommissionMin:      1.0,
			CommissionPct:      0.001,
		},
		Filters: FilterConfig{
			PriceMax:          70.0,
			Perf3MMin:         0.60,
			MinDollarVolume:   5_000_000,
			LiquidityWindow:   20,
			RSWindow:          1,
			SectorTrendWindow: 1,
		},
		Data: DataConfig{
			IndexSymbol:      "SPY",
			TickersFile:      "data/tickers.csv",
			SectorETFsFile:   "data/sector_etfs.csv",
			TickerSectorFile: "data/ticker_sector_etf.csv",
			CachePath:        filepath.Join(DefaultConfigDir(), "bars.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  true,
		},
	}
}

// Load loads configuration from the specified directory, layering
// config.yaml and POOS_* environment variables over the defaults.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("POOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperrors.Wrap(err, "reading config file")
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(err, "parsing config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("run.days", cfg.Run.Days)
	v.SetDefault("run.end_date", cfg.Run.EndDate)
	v.SetDefault("run.start_cash", cfg.Run.StartCash)
	v.SetDefault("run.out_dir", cfg.Run.OutDir)
	v.SetDefault("risk.risk_per_trade", cfg.Risk.RiskPerTrade)
	v.SetDefault("risk.max_position_pct", cfg.Risk.MaxPositionPct)
	v.SetDefault("risk.heat_cap", cfg.Risk.HeatCap)
	v.SetDefault("risk.breakeven_trigger", cfg.Risk.BreakevenTrigger)
	v.SetDefault("risk.gap_max_pct", cfg.Risk.GapMaxPct)
	v.SetDefault("risk.atr_stop_multiple", cfg.Risk.ATRStopMultiple)
	v.SetDefault("costs.slippage_bps", cfg.Costs.SlippageBps)
	v.SetDefault("costs.commission_model", string(cfg.Costs.CommissionModel))
	v.SetDefault("costs.commission_fixed", cfg.Costs.CommissionFixed)
	v.SetDefault("costs.commission_per_share", cfg.Costs.CommissionPerShare)
	v.SetDefault("costs.commission_min", cfg.Costs.CommissionMin)
	v.SetDefault("costs.commission_pct", cfg.Costs.CommissionPct)
	v.SetDefault("filters.price_max", cfg.Filters.PriceMax)
	v.SetDefault("filters.perf_3m_min", cfg.Filters.Perf3MMin)
	v.SetDefault("filters.min_dollar_volume", cfg.Filters.MinDollarVolume)
	v.SetDefault("filters.liquidity_window", cfg.Filters.LiquidityWindow)
	v.SetDefault("filters.rs_window", cfg.Filters.RSWindow)
	v.SetDefault("filters.sector_trend_window", cfg.Filters.SectorTrendWindow)
	v.SetDefault("data.index_symbol", cfg.Data.IndexSymbol)
	v.SetDefault("data.tickers_file", cfg.Data.TickersFile)
	v.SetDefault("data.sector_etfs_file", cfg.Data.SectorETFsFile)
	v.SetDefault("data.ticker_sector_file", cfg.Data.TickerSectorFile)
	v.SetDefault("data.cache_path", cfg.Data.CachePath)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
}

// Validate checks all parameters. Validation failures are fatal and
// surface before the simulation loop starts.
func (c *Config) Validate() error {
	if c.Run.Days <= 0 {
		return apperrors.NewConfigError("run.days", c.Run.Days, "must be positive")
	}
	if c.Run.StartCash <= 0 {
		return apperrors.NewConfigError("run.start_cash", c.Run.StartCash, "must be positive")
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade >= 1 {
		return apperrors.NewConfigError("risk.risk_per_trade", c.Risk.RiskPerTrade, "must be in (0, 1)")
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 1 {
		return apperrors.NewConfigError("risk.max_position_pct", c.Risk.MaxPositionPct, "must be in (0, 1]")
	}
	if c.Risk.HeatCap < c.Risk.RiskPerTrade {
		return apperrors.NewConfigError("risk.heat_cap", c.Risk.HeatCap, "must be at least risk_per_trade")
	}
	if c.Risk.BreakevenTrigger <= 0 {
		return apperrors.NewConfigError("risk.breakeven_trigger", c.Risk.BreakevenTrigger, "must be positive")
	}
	if c.Risk.GapMaxPct < 0 {
		return apperrors.NewConfigError("risk.gap_max_pct", c.Risk.GapMaxPct, "must not be negative")
	}
	if c.Risk.ATRStopMultiple <= 0 {
		return apperrors.NewConfigError("risk.atr_stop_multiple", c.Risk.ATRStopMultiple, "must be positive")
	}
	if c.Costs.SlippageBps < 0 {
		return apperrors.NewConfigError("costs.slippage_bps", c.Costs.SlippageBps, "must not be negative")
	}
	switch c.Costs.CommissionModel {
	case CommissionFixed, CommissionPerShare, CommissionPercentage:
	default:
		return apperrors.NewConfigError("costs.commission_model", string(c.Costs.CommissionModel),
			"must be one of: fixed, pershare, percentage")
	}
	if c.Costs.CommissionFixed < 0 || c.Costs.CommissionPerShare < 0 ||
		c.Costs.CommissionMin < 0 || c.Costs.CommissionPct < 0 {
		return apperrors.NewConfigError("costs", nil, "commission rates must not be negative")
	}
	if c.Filters.PriceMax <= 0 {
		return apperrors.NewConfigError("filters.price_max", c.Filters.PriceMax, "must be positive")
	}
	if c.Filters.MinDollarVolume < 0 {
		return apperrors.NewConfigError("filters.min_dollar_volume", c.Filters.MinDollarVolume, "must not be negative")
	}
	if c.Filters.LiquidityWindow <= 0 {
		return apperrors.NewConfigError("filters.liquidity_window", c.Filters.LiquidityWindow, "must be positive")
	}
	if c.Filters.RSWindow <= 0 {
		return apperrors.NewConfigError("filters.rs_window", c.Filters.RSWindow, "must be positive")
	}
	if c.Filters.SectorTrendWindow <= 0 {
		return apperrors.NewConfigError("filters.sector_trend_window", c.Filters.SectorTrendWindow, "must be positive")
	}
	if c.Data.IndexSymbol == "" {
		return apperrors.NewConfigError("data.index_symbol", "", "must not be empty")
	}
	return nil
}
