// FILE: logthrottle/src/cmd/logthrottle/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"logthrottle/src/cmd/logthrottle/commands"
	"logthrottle/src/internal/config"
	"logthrottle/src/internal/version"

	"github.com/lixenwraith/log"
)

var logger *log.Logger

func main() {
	router := commands.NewCommandRouter()
	handled, err := router.Route(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if handled {
		os.Exit(0)
	}

	app := parseAppArgs(os.Args[1:])
	InitOutputHandler(app.quiet)

	if app.showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	cfg, err := config.Load(app.configFile, app.configArgs)
	if err != nil {
		if errors.Is(err, config.ErrConfigFileNotFound) {
			FatalError(2, "%v\n", err)
		}
		FatalError(1, "Failed to load config: %v\n", err)
	}
	if app.quiet {
		cfg.Quiet = true
	}

	if cfg.ExportConfig != "" {
		if err := cfg.SaveToFile(cfg.ExportConfig); err != nil {
			FatalError(1, "Failed to export config: %v\n", err)
		}
		Print("Configuration written to %s\n", cfg.ExportConfig)
		os.Exit(0)
	}

	if err := initializeLogger(cfg); err != nil {
		FatalError(1, "Failed to initialize logger: %v\n", err)
	}
	defer shutdownLogger()

	logger.Info("msg", "logthrottle starting",
		"version", version.String(),
		"config_file", config.ResolveConfigPath(app.configFile),
		"log_output", cfg.Logging.Output,
		"group_mode", cfg.Group.Mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sh := NewSignalHandler(logger)
	defer sh.Stop()

	svc, err := bootstrapService(ctx, cfg)
	if err != nil {
		logger.Error("msg", "Failed to bootstrap service", "error", err)
		shutdownLogger()
		os.Exit(1)
	}

	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		printEntries(svc.entries, os.Stdout)
	}()

	if !cfg.DisableStatusReporter {
		go statusReporter(ctx, svc.collector)
	}

	sig := sh.Handle(ctx)
	logger.Info("msg", "Shutdown signal received, starting graceful shutdown...",
		"signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		svc.Shutdown()
		<-printerDone
		close(done)
	}()

	select {
	case <-done:
		logger.Info("msg", "Shutdown complete")
	case <-shutdownCtx.Done():
		logger.Error("msg", "Shutdown timeout exceeded - forcing exit")
		shutdownLogger()
		os.Exit(1)
	}
}

// appArgs holds the flags handled before configuration loading
type appArgs struct {
	configFile  string
	quiet       bool
	showVersion bool
	configArgs  []string
}

// parseAppArgs extracts application flags and passes every other argument
// through as a configuration override
func parseAppArgs(args []string) appArgs {
	var app appArgs
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-c" || arg == "--config":
			if i+1 < len(args) {
				app.configFile = args[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--config="):
			app.configFile = strings.TrimPrefix(arg, "--config=")
		case arg == "-q" || arg == "--quiet":
			app.quiet = true
		case arg == "-v" || arg == "--version":
			app.showVersion = true
		default:
			app.configArgs = append(app.configArgs, arg)
		}
	}
	return app
}

func shutdownLogger() {
	if logger != nil {
		if err := logger.Shutdown(2 * time.Second); err != nil {
			Error("Logger shutdown error: %v\n", err)
		}
	}
}
