// FILE: logthrottle/src/internal/config/status.go
package config

import (
	"fmt"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

// StatusConfig configures the HTTP status endpoint
type StatusConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int64  `toml:"port"`
	Path    string `toml:"path"`

	// Request timeouts in milliseconds
	ReadTimeout  int64 `toml:"read_timeout_ms"`
	WriteTimeout int64 `toml:"write_timeout_ms"`
}

func DefaultStatusConfig() *StatusConfig {
	return &StatusConfig{
		Enabled:      false,
		Host:         "0.0.0.0",
		Port:         9090,
		Path:         "/status",
		ReadTimeout:  5000,
		WriteTimeout: 5000,
	}
}

func validateStatusConfig(cfg *StatusConfig) error {
	if cfg == nil {
		return fmt.Errorf("status config is nil")
	}
	if !cfg.Enabled {
		return nil
	}

	if err := lconfig.Port(cfg.Port); err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Host != "0.0.0.0" {
		if err := lconfig.IPAddress(cfg.Host); err != nil {
			return fmt.Errorf("status: %w", err)
		}
	}

	if cfg.Path == "" {
		cfg.Path = "/status"
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		return fmt.Errorf("status: path must start with /")
	}

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5000
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5000
	}

	return nil
}
