// FILE: logthrottle/src/internal/config/config.go
package config

// Config is the complete logthrottle configuration
type Config struct {
	// Suppress all console output
	Quiet bool `toml:"quiet"`

	// Disable the periodic group status log
	DisableStatusReporter bool `toml:"disable_status_reporter"`

	// Write the effective configuration to this path and exit
	ExportConfig string `toml:"export_config"`

	Logging *LogConfig    `toml:"logging"`
	Tail    *TailConfig   `toml:"tail"`
	Group   *GroupConfig  `toml:"group"`
	Status  *StatusConfig `toml:"status"`
}

func defaults() *Config {
	return &Config{
		Quiet:                 false,
		DisableStatusReporter: false,
		Logging:               DefaultLogConfig(),
		Tail:                  DefaultTailConfig(),
		Group:                 DefaultGroupConfig(),
		Status:                DefaultStatusConfig(),
	}
}
