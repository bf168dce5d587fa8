// FILE: logthrottle/src/cmd/logthrottle/bootstrap.go
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"logthrottle/src/internal/classify"
	"logthrottle/src/internal/config"
	"logthrottle/src/internal/core"
	"logthrottle/src/internal/group"
	"logthrottle/src/internal/status"
	"logthrottle/src/internal/tail"
	"logthrottle/src/internal/throttle"
	"logthrottle/src/internal/version"

	"github.com/lixenwraith/log"
)

// service holds the running components
type service struct {
	source    *tail.Source
	server    *status.Server
	collector *status.Collector
	entries   <-chan core.LogEntry
}

// Shutdown stops the status server and the source; the entry channel is
// closed once every watcher has exited
func (s *service) Shutdown() {
	if s.server != nil {
		s.server.Stop()
	}
	s.source.Stop()
}

// bootstrapService wires classifier, throttle gate, tail source and the
// optional status server
func bootstrapService(ctx context.Context, cfg *config.Config) (*service, error) {
	classifier, err := buildClassifier(cfg.Group)
	if err != nil {
		return nil, err
	}

	gate := throttle.NewGate(classifier)

	source, err := tail.NewSource(tail.Options{
		Directory:     cfg.Tail.Directory,
		Pattern:       cfg.Tail.Pattern,
		CheckInterval: time.Duration(cfg.Tail.CheckIntervalMS) * time.Millisecond,
		ReadFromHead:  cfg.Tail.ReadFromHead,
		BufferSize:    int(cfg.Tail.BufferSize),
		Reader: throttle.ReaderConfig{
			ChunkSize: int(cfg.Tail.ReadBytesLimit),
			MaxLines:  int(cfg.Tail.ReadLinesLimit),
		},
	}, classifier, gate, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create tail source: %w", err)
	}

	svc := &service{
		source:    source,
		collector: status.NewCollector(cfg.Group.Mode, classifier, gate, source),
		entries:   source.Subscribe(),
	}

	if err := source.Start(); err != nil {
		return nil, fmt.Errorf("failed to start tail source: %w", err)
	}

	if cfg.Status.Enabled {
		server, err := status.NewServer(cfg.Status, svc.collector, logger)
		if err != nil {
			source.Stop()
			return nil, err
		}
		if err := server.Start(ctx); err != nil {
			source.Stop()
			return nil, err
		}
		svc.server = server
	}

	logger.Info("msg", "logthrottle started",
		"version", version.Short(),
		"directory", cfg.Tail.Directory,
		"group_mode", cfg.Group.Mode,
		"status_enabled", cfg.Status.Enabled)

	return svc, nil
}

// buildClassifier creates the classifier for the configured group mode
func buildClassifier(cfg *config.GroupConfig) (classify.Classifier, error) {
	switch cfg.Mode {
	case config.GroupModeMetric:
		m := cfg.Metric
		ranked := group.NewRanked(int(m.RankSize), int(m.Limit), cfg.RateWindow())
		fallback := group.NewState("default", int(m.DefaultLimit), cfg.RateWindow())
		refresh := time.Duration(m.RefreshIntervalMS) * time.Millisecond

		ranking, err := classify.NewRanking(ranked, fallback, refresh, classify.StatFile, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create ranking classifier: %w", err)
		}
		logger.Info("msg", "Ranking classifier ready",
			"component", "bootstrap",
			"rank_size", m.RankSize,
			"ranked_limit", m.Limit,
			"default_limit", m.DefaultLimit,
			"refresh_interval_ms", m.RefreshIntervalMS)
		return ranking, nil

	default:
		registry, err := group.Build(cfg.GroupRules(), cfg.RateWindow())
		if err != nil {
			return nil, fmt.Errorf("failed to resolve group rules: %w", err)
		}
		pattern, err := cfg.CompilePattern()
		if err != nil {
			return nil, err
		}

		metadata, err := classify.NewMetadata(pattern, registry, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create metadata classifier: %w", err)
		}
		for _, s := range registry.States() {
			logger.Info("msg", "Group resolved",
				"component", "bootstrap",
				"group", s.Name(),
				"limit", s.Limit(),
				"rate_window_ms", s.RateWindow().Milliseconds())
		}
		return metadata, nil
	}
}

// initializeLogger sets up the logger based on configuration
func initializeLogger(cfg *config.Config) error {
	logger = log.NewLogger()

	var configArgs []string

	if cfg.Quiet {
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_console=false",
			"level=255")

		return startLogger(configArgs)
	}

	levelValue, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	configArgs = append(configArgs, fmt.Sprintf("level=%d", levelValue))

	switch cfg.Logging.Output {
	case "none":
		configArgs = append(configArgs, "disable_file=true", "enable_console=false")

	case "stdout":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_console=true",
			"console_target=stdout")

	case "stderr":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_console=true",
			"console_target=stderr")

	case "file":
		configArgs = append(configArgs, "enable_console=false")
		configureFileLogging(&configArgs, cfg)

	case "both":
		configArgs = append(configArgs, "enable_console=true")
		configureFileLogging(&configArgs, cfg)
		configureConsoleTarget(&configArgs, cfg)

	default:
		return fmt.Errorf("invalid log output mode: %s", cfg.Logging.Output)
	}

	if cfg.Logging.Console != nil && cfg.Logging.Console.Format != "" {
		configArgs = append(configArgs, fmt.Sprintf("format=%s", cfg.Logging.Console.Format))
	}

	return startLogger(configArgs)
}

// startLogger applies the overrides on top of the library defaults and
// starts the processor
func startLogger(configArgs []string) error {
	if err := logger.ApplyConfigString(configArgs...); err != nil {
		return err
	}
	return logger.Start()
}

// configureFileLogging sets up file-based logging parameters
func configureFileLogging(configArgs *[]string, cfg *config.Config) {
	if cfg.Logging.File != nil {
		*configArgs = append(*configArgs,
			fmt.Sprintf("directory=%s", cfg.Logging.File.Directory),
			fmt.Sprintf("name=%s", cfg.Logging.File.Name),
			fmt.Sprintf("max_size_mb=%d", cfg.Logging.File.MaxSizeMB),
			fmt.Sprintf("max_total_size_mb=%d", cfg.Logging.File.MaxTotalSizeMB))

		if cfg.Logging.File.RetentionHours > 0 {
			*configArgs = append(*configArgs,
				fmt.Sprintf("retention_period_hrs=%.1f", cfg.Logging.File.RetentionHours))
		}
	}
}

// configureConsoleTarget sets up console output parameters. Tailed lines
// own stdout, so diagnostics default to stderr.
func configureConsoleTarget(configArgs *[]string, cfg *config.Config) {
	target := "stderr"

	if cfg.Logging.Console != nil && cfg.Logging.Console.Target != "" {
		target = cfg.Logging.Console.Target
	}

	*configArgs = append(*configArgs, fmt.Sprintf("console_target=%s", target))
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
