// FILE: logthrottle/src/internal/config/tail.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

// TailConfig describes the watched files and read bounds
type TailConfig struct {
	// Directory scanned for files
	Directory string `toml:"directory"`

	// Glob matched against file names in Directory
	Pattern string `toml:"pattern"`

	// Scan and read notification period
	CheckIntervalMS int64 `toml:"check_interval_ms"`

	// Lines buffered per burst before yielding
	ReadLinesLimit int64 `toml:"read_lines_limit"`

	// Bytes pulled per read
	ReadBytesLimit int64 `toml:"read_bytes_limit"`

	// Start new files at offset 0 instead of the end
	ReadFromHead bool `toml:"read_from_head"`

	// Per-subscriber line buffer
	BufferSize int64 `toml:"buffer_size"`
}

func DefaultTailConfig() *TailConfig {
	return &TailConfig{
		Directory:       "/var/log/containers",
		Pattern:         "*.log",
		CheckIntervalMS: 1000,
		ReadLinesLimit:  1000,
		ReadBytesLimit:  8192,
		ReadFromHead:    false,
		BufferSize:      10000,
	}
}

func validateTailConfig(cfg *TailConfig) error {
	if cfg == nil {
		return fmt.Errorf("tail config is nil")
	}

	if err := lconfig.NonEmpty(cfg.Directory); err != nil {
		return fmt.Errorf("tail: directory is required")
	}
	absPath, err := filepath.Abs(cfg.Directory)
	if err != nil {
		return fmt.Errorf("tail: invalid directory %s: %w", cfg.Directory, err)
	}
	cfg.Directory = absPath

	if cfg.Pattern == "" {
		cfg.Pattern = "*"
	} else if !strings.ContainsAny(cfg.Pattern, "*?") && filepath.Base(cfg.Pattern) != cfg.Pattern {
		return fmt.Errorf("tail: pattern contains path separators")
	}

	if cfg.CheckIntervalMS < 10 {
		return fmt.Errorf("tail: check_interval_ms must be at least 10ms")
	}
	if cfg.ReadLinesLimit < 1 {
		return fmt.Errorf("tail: read_lines_limit must be positive")
	}
	if cfg.ReadBytesLimit < 1 {
		return fmt.Errorf("tail: read_bytes_limit must be positive")
	}
	if cfg.BufferSize < cfg.ReadLinesLimit {
		return fmt.Errorf("tail: buffer_size (%d) must hold at least read_lines_limit (%d) lines",
			cfg.BufferSize, cfg.ReadLinesLimit)
	}

	return nil
}
