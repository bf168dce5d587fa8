// FILE: logthrottle/src/cmd/logthrottle/signal.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lixenwraith/log"
)

// Manages OS signals
type SignalHandler struct {
	logger  *log.Logger
	sigChan chan os.Signal
}

func NewSignalHandler(logger *log.Logger) *SignalHandler {
	sh := &SignalHandler{
		logger:  logger,
		sigChan: make(chan os.Signal, 1),
	}

	signal.Notify(sh.sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)

	return sh
}

// Handle blocks until a termination signal arrives or ctx is done.
// SIGHUP is logged and ignored; group limits are fixed for the process
// lifetime.
func (sh *SignalHandler) Handle(ctx context.Context) os.Signal {
	for {
		select {
		case sig := <-sh.sigChan:
			if sig == syscall.SIGHUP {
				sh.logger.Info("msg", "SIGHUP ignored, restart to apply configuration changes",
					"component", "signal_handler")
				continue
			}
			return sig
		case <-ctx.Done():
			return nil
		}
	}
}

// Cleans up signal handling
func (sh *SignalHandler) Stop() {
	signal.Stop(sh.sigChan)
}
