package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// CarrierConfig holds carrier registry settings.
type CarrierConfig struct {
	// MissingQualifier is "reject" or "first_row".
	MissingQualifier string `mapstructure:"missing_qualifier"`
}

// SearchConfig holds trial sampling settings.
type SearchConfig struct {
	Trials     int      `mapstructure:"trials"`
	Seed       uint64   `mapstructure:"seed"`
	// Tolerance is the overdimensioning factor a capacity group may reach
	// relative to its bound; it is at least 1.
	Tolerance  float64  `mapstructure:"tolerance"`
	Brackets   int      `mapstructure:"brackets"`
	Objectives []string `mapstructure:"objectives"`
}

// Config holds all runtime configuration for a caldera invocation.
// Values are populated from .caldera.yaml, CALDERA_* env vars, and CLI flags.
type Config struct {
	Database  string        `mapstructure:"database"`
	Archive   string        `mapstructure:"archive"`
	Telemetry string        `mapstructure:"telemetry"`
	Verbose   bool          `mapstructure:"verbose"`
	Carriers  CarrierConfig `mapstructure:"carriers"`
	Search    SearchConfig  `mapstructure:"search"`
}

// EnvKeyReplacer maps nested keys such as search.trials onto
// CALDERA_SEARCH_TRIALS.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("database", "db")
	viper.SetDefault("archive", "")
	viper.SetDefault("telemetry", "")
	viper.SetDefault("verbose", false)
	viper.SetDefault("carriers.missing_qualifier", "reject")
	viper.SetDefault("search.trials", 200)
	viper.SetDefault("search.seed", 0)
	viper.SetDefault("search.tolerance", 1.2)
	viper.SetDefault("search.brackets", 20)
	viper.SetDefault("search.objectives", []string{"cost", "ghg_emissions", "system_energy_demand", "anthropogenic_heat"})

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Search.Trials <= 0:
		return fmt.Errorf("config: search.trials must be positive, got %d", c.Search.Trials)
	case c.Search.Tolerance < 1:
		return fmt.Errorf("config: search.tolerance must be at least 1, got %v", c.Search.Tolerance)
	case c.Search.Brackets <= 0:
		return fmt.Errorf("config: search.brackets must be positive, got %d", c.Search.Brackets)
	}
	return nil
}
