// Package config provides configuration management for the trading tools.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultPollInterval is used when tracker.poll_interval is unset
	defaultPollInterval = "5m"
	// defaultRatioThreshold triggers a tracker strike adjustment when the
	// straddle leg price ratio exceeds it
	defaultRatioThreshold = 5.0
	// defaultProfitTarget is used when straddle.profit_target is unset
	defaultProfitTarget = 0.25
	// defaultStopMultiple is used when straddle.stop_multiple is unset
	defaultStopMultiple = 2.0
	// defaultRiskFreeRate is used when pricing.risk_free_rate is unset
	defaultRiskFreeRate = 0.04
)

// tokenEnvVar is the environment variable consulted when tradier.token
// is absent from the config file.
const tokenEnvVar = "TRADIER_TOKEN"

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Tradier     TradierConfig     `yaml:"tradier"`
	Data        DataConfig        `yaml:"data"`
	Pricing     PricingConfig     `yaml:"pricing"`
	Tracker     TrackerConfig     `yaml:"tracker"`
	Straddle    StraddleConfig    `yaml:"straddle"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // sandbox | production
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// TradierConfig defines market-data API settings.
type TradierConfig struct {
	Token    string `yaml:"token"`
	Endpoint string `yaml:"endpoint"`
}

// DataConfig defines file and database locations.
type DataConfig struct {
	DBPath    string `yaml:"db_path"`
	OutputDir string `yaml:"output_dir"`
}

// PricingConfig defines model inputs shared by the pricing tools.
type PricingConfig struct {
	RiskFreeRate float64 `yaml:"risk_free_rate"`
}

// TrackerConfig defines the contract price tracker daemon settings.
type TrackerConfig struct {
	Symbol         string  `yaml:"symbol"`
	PollInterval   string  `yaml:"poll_interval"`
	RatioThreshold float64 `yaml:"ratio_threshold"`
	Timezone       string  `yaml:"timezone"`      // e.g. "America/New_York"
	MarketOpen     string  `yaml:"market_open"`   // "HH:MM"
	MarketClose    string  `yaml:"market_close"`  // "HH:MM"
	AfterHoursPoll bool    `yaml:"after_hours_poll"`
}

// StraddleConfig defines the short-straddle walk parameters.
type StraddleConfig struct {
	Symbol       string  `yaml:"symbol"`
	TargetDTE    int     `yaml:"target_dte"`
	ProfitTarget float64 `yaml:"profit_target"`
	StopMultiple float64 `yaml:"stop_multiple"`
}

// DashboardConfig defines the report dashboard server settings.
type DashboardConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	AuthToken  string `yaml:"auth_token"`
	RefreshSec int    `yaml:"refresh_sec"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	// A local .env can carry the API token; missing file is fine.
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if config.Tradier.Token == "" {
		config.Tradier.Token = os.Getenv(tokenEnvVar)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Environment.Mode != "sandbox" && c.Environment.Mode != "production" {
		return fmt.Errorf("environment.mode must be 'sandbox' or 'production'")
	}

	c.normalize()

	if c.Pricing.RiskFreeRate < 0 || c.Pricing.RiskFreeRate > 0.5 {
		return fmt.Errorf("pricing.risk_free_rate must be between 0 and 0.5")
	}

	if c.Tracker.Symbol != "" {
		if _, err := time.ParseDuration(c.Tracker.PollInterval); err != nil {
			return fmt.Errorf("tracker.poll_interval invalid: %w", err)
		}
		if c.Tracker.RatioThreshold <= 1 {
			return fmt.Errorf("tracker.ratio_threshold must be > 1")
		}
		tz := c.Tracker.Timezone
		if tz == "" {
			tz = "America/New_York"
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			// Fallback for minimal containers
			loc = time.FixedZone("ET", -5*60*60)
		}
		s, err1 := time.ParseInLocation("15:04", c.Tracker.MarketOpen, loc)
		e, err2 := time.ParseInLocation("15:04", c.Tracker.MarketClose, loc)
		if err1 != nil || err2 != nil || (s.Hour() > e.Hour() || (s.Hour() == e.Hour() && s.Minute() >= e.Minute())) {
			return fmt.Errorf("tracker market window invalid (open/close parse/order)")
		}
	}

	if c.Straddle.Symbol != "" {
		if c.Straddle.TargetDTE <= 0 {
			return fmt.Errorf("straddle.target_dte must be > 0")
		}
		if c.Straddle.ProfitTarget <= 0 || c.Straddle.ProfitTarget >= 1 {
			return fmt.Errorf("straddle.profit_target must be in (0,1)")
		}
		if c.Straddle.StopMultiple <= 1 {
			return fmt.Errorf("straddle.stop_multiple must be > 1")
		}
	}

	if c.Dashboard.ListenAddr != "" && c.Dashboard.RefreshSec < 0 {
		return fmt.Errorf("dashboard.refresh_sec must be >= 0")
	}

	return nil
}

// IsSandbox returns true when the tools point at the Tradier sandbox.
func (c *Config) IsSandbox() bool {
	return c.Environment.Mode == "sandbox"
}

// GetPollInterval returns the configured tracker poll interval duration.
func (c *Config) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.Tracker.PollInterval)
	if err != nil {
		return 5 * time.Minute // default
	}
	return d
}

// IsWithinMarketHours checks if the given time falls within the
// configured tracker market window.
func (c *Config) IsWithinMarketHours(now time.Time) bool {
	if c.Tracker.AfterHoursPoll {
		return true
	}
	tz := c.Tracker.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		if fallbackLoc, err2 := time.LoadLocation("America/New_York"); err2 == nil {
			loc = fallbackLoc
		} else {
			loc = time.FixedZone("ET", -5*60*60)
		}
	}
	today := now.In(loc)

	if today.Weekday() == time.Saturday || today.Weekday() == time.Sunday {
		return false
	}

	openClock, err1 := time.ParseInLocation("15:04", c.Tracker.MarketOpen, loc)
	closeClock, err2 := time.ParseInLocation("15:04", c.Tracker.MarketClose, loc)
	if err1 != nil || err2 != nil {
		// Safe defaults if misconfigured
		openClock = time.Date(0, 1, 1, 9, 30, 0, 0, loc)
		closeClock = time.Date(0, 1, 1, 16, 0, 0, 0, loc)
	}
	open := time.Date(today.Year(), today.Month(), today.Day(),
		openClock.Hour(), openClock.Minute(), 0, 0, loc)
	closeAt := time.Date(today.Year(), today.Month(), today.Day(),
		closeClock.Hour(), closeClock.Minute(), 0, 0, loc)

	// Inclusive open, exclusive close
	return !today.Before(open) && today.Before(closeAt)
}

// normalize fills in defaults for unset optional fields.
func (c *Config) normalize() {
	if c.Tracker.PollInterval == "" {
		c.Tracker.PollInterval = defaultPollInterval
	}
	if c.Tracker.RatioThreshold == 0 {
		c.Tracker.RatioThreshold = defaultRatioThreshold
	}
	if c.Tracker.MarketOpen == "" {
		c.Tracker.MarketOpen = "09:30"
	}
	if c.Tracker.MarketClose == "" {
		c.Tracker.MarketClose = "16:00"
	}
	if c.Straddle.ProfitTarget == 0 {
		c.Straddle.ProfitTarget = defaultProfitTarget
	}
	if c.Straddle.StopMultiple == 0 {
		c.Straddle.StopMultiple = defaultStopMultiple
	}
	if c.Pricing.RiskFreeRate == 0 {
		c.Pricing.RiskFreeRate = defaultRiskFreeRate
	}
	if c.Data.DBPath == "" {
		c.Data.DBPath = "data/market.db"
	}
	if c.Data.OutputDir == "" {
		c.Data.OutputDir = "output"
	}
	if c.Dashboard.RefreshSec == 0 {
		c.Dashboard.RefreshSec = 60
	}
}
