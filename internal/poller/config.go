package poller

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines the evaluation poll schedule.
type Config struct {
	Interval      time.Duration
	Lookback      time.Duration
	RouterKPIs    []string
	InterfaceKPIs []string
}

type fileConfig struct {
	Interval      string   `yaml:"interval"`
	Lookback      string   `yaml:"lookback"`
	RouterKPIs    []string `yaml:"router_kpis"`
	InterfaceKPIs []string `yaml:"interface_kpis"`
}

// LoadConfig loads config from yaml or env. The POLLER_CONFIG path wins
// over individual environment variables.
func LoadConfig() (Config, error) {
	cfg := Config{
		Interval:      getenvDurationDefault("POLL_INTERVAL", time.Minute),
		Lookback:      getenvDurationDefault("POLL_LOOKBACK", 30*time.Minute),
		RouterKPIs:    splitCSV(getenvDefault("POLL_ROUTER_KPIS", "CPU,RAM")),
		InterfaceKPIs: splitCSV(getenvDefault("POLL_INTERFACE_KPIS", "TRAFFIC")),
	}

	if path := os.Getenv("POLLER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, err
		}
		if file.Interval != "" {
			parsed, err := time.ParseDuration(file.Interval)
			if err != nil {
				return cfg, errors.New("poller: invalid interval in config file")
			}
			cfg.Interval = parsed
		}
		if file.Lookback != "" {
			parsed, err := time.ParseDuration(file.Lookback)
			if err != nil {
				return cfg, errors.New("poller: invalid lookback in config file")
			}
			cfg.Lookback = parsed
		}
		if len(file.RouterKPIs) > 0 {
			cfg.RouterKPIs = file.RouterKPIs
		}
		if len(file.InterfaceKPIs) > 0 {
			cfg.InterfaceKPIs = file.InterfaceKPIs
		}
	}

	if cfg.Interval <= 0 {
		return cfg, errors.New("poller: interval must be positive")
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 5 * cfg.Interval
	}
	if len(cfg.RouterKPIs) == 0 && len(cfg.InterfaceKPIs) == 0 {
		return cfg, errors.New("poller: no KPIs configured")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		if seconds, convErr := strconv.Atoi(value); convErr == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
