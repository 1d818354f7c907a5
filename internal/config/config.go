// Package config provides a reusable loader for the registrar's
// configuration file and environment variable overrides. It mirrors the
// loader shape used across Synnergy's other services so operators see one
// consistent config story.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the unified configuration for a registrar engine instance. Field
// names mirror the flat key/value configuration keys named in spec.md §6.
type Config struct {
	QueuePath      string `mapstructure:"queue_path"`
	PollInterval   int    `mapstructure:"poll_interval"`
	APIPort        int    `mapstructure:"api_endpoint_port"`
	Server         string `mapstructure:"server"`
	Port           int    `mapstructure:"port"`
	StorageDrivers string `mapstructure:"storage_drivers"`
	StorageDriversRequiredWrite string `mapstructure:"storage_drivers_required_write"`

	TxMinConfirmations     int `mapstructure:"tx_min_confirmations"`
	DefaultMinPaymentConfs int `mapstructure:"default_min_payment_confs"`
	PreorderConfirmWindow  int `mapstructure:"preorder_confirm_window"`
	ChainRPCTimeoutSeconds int `mapstructure:"chain_rpc_timeout"`
}

// ConfigDir returns the directory the config file lives in, used to place
// the lockfile alongside it (spec.md §4.1: "<configDir>/registrar.lock").
func (c *Config) ConfigDir(configPath string) string {
	return dirOf(configPath)
}

// RequiredStorageDrivers resolves the storage_drivers_required_write /
// storage_drivers fallback described in spec.md §6.
func (c *Config) RequiredStorageDrivers() []string {
	v := c.StorageDriversRequiredWrite
	if v == "" {
		v = c.StorageDrivers
	}
	return splitNonEmpty(v)
}

// PollIntervalDuration returns PollInterval as a time.Duration.
func (c *Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// ChainTimeout returns the configured chain RPC timeout, defaulting to 30s.
func (c *Config) ChainTimeout() time.Duration {
	if c.ChainRPCTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ChainRPCTimeoutSeconds) * time.Second
}

func defaults(v *viper.Viper) {
	v.SetDefault("poll_interval", 60)
	v.SetDefault("api_endpoint_port", 6270)
	v.SetDefault("tx_min_confirmations", 6)
	v.SetDefault("default_min_payment_confs", 6)
	v.SetDefault("preorder_confirm_window", 4320)
	v.SetDefault("chain_rpc_timeout", 30)
}

// Load reads the configuration file at configPath (YAML or flat key/value,
// auto-detected by viper) and merges environment variable overrides loaded
// via godotenv. It never looks outside configPath: registrar config is
// always explicit, never discovered via AddConfigPath search paths.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(dirOf(configPath) + "/.env")

	v := viper.New()
	defaults(v)
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("REGISTRAR")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", configPath, err)
	}
	if cfg.QueuePath == "" {
		return nil, fmt.Errorf("config %s: queue_path is required", configPath)
	}
	return &cfg, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func splitNonEmpty(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
