// FILE: logthrottle/src/internal/config/validation.go
package config

import (
	"fmt"
)

// validateConfig is the centralized validator for the entire configuration
func validateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := validateLogConfig(cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := validateTailConfig(cfg.Tail); err != nil {
		return fmt.Errorf("tail config: %w", err)
	}

	if err := validateGroupConfig(cfg.Group); err != nil {
		return fmt.Errorf("group config: %w", err)
	}

	if err := validateStatusConfig(cfg.Status); err != nil {
		return fmt.Errorf("status config: %w", err)
	}

	return nil
}
