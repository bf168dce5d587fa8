// FILE: logthrottle/src/internal/config/loader.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

const (
	envPrefix         = "LOGTHROTTLE_"
	defaultConfigName = "logthrottle.toml"
)

// ErrConfigFileNotFound is returned when an explicitly named config file
// does not exist
var ErrConfigFileNotFound = errors.New("config file not found")

// Load builds the configuration from defaults, the config file, environment
// and command line, in increasing priority, and validates it. A non-empty
// configFile must exist; otherwise the file from ResolveConfigPath is read
// when present.
func Load(configFile string, cliArgs []string) (*Config, error) {
	configPath := ResolveConfigPath(configFile)
	if configFile != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	}

	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix(envPrefix).
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()
	if err != nil && !errors.Is(err, lconfig.ErrConfigNotFound) {
		return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
	}

	finalConfig := &Config{}
	if err := cfg.Scan(finalConfig); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, validateConfig(finalConfig)
}

func customEnvTransform(path string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
}

// ResolveConfigPath returns the config file to read. An explicit path is
// used as given. Otherwise LOGTHROTTLE_CONFIG_FILE, relative to
// LOGTHROTTLE_CONFIG_DIR when set, then LOGTHROTTLE_CONFIG_DIR alone, then
// the user config directory.
func ResolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	configDir := os.Getenv(envPrefix + "CONFIG_DIR")
	if configFile := os.Getenv(envPrefix + "CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) || configDir == "" {
			return configFile
		}
		return filepath.Join(configDir, configFile)
	}

	if configDir != "" {
		return filepath.Join(configDir, defaultConfigName)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", defaultConfigName)
	}

	return defaultConfigName
}
