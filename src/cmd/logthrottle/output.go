// FILE: logthrottle/src/cmd/logthrottle/output.go
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"logthrottle/src/internal/core"
)

// Manages diagnostic console output respecting quiet mode. Tailed lines
// are the program's product and are written regardless of quiet mode.
type OutputHandler struct {
	quiet  bool
	mu     sync.RWMutex
	stdout io.Writer
	stderr io.Writer
}

// Global output handler instance
var output *OutputHandler

func InitOutputHandler(quiet bool) {
	output = &OutputHandler{
		quiet:  quiet,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// Writes to stdout if not in quiet mode
func (o *OutputHandler) Print(format string, args ...any) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if !o.quiet {
		fmt.Fprintf(o.stdout, format, args...)
	}
}

// Writes to stderr if not in quiet mode
func (o *OutputHandler) Error(format string, args ...any) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if !o.quiet {
		fmt.Fprintf(o.stderr, format, args...)
	}
}

// Writes to stderr and exits (respects quiet mode)
func (o *OutputHandler) FatalError(code int, format string, args ...any) {
	o.Error(format, args...)
	os.Exit(code)
}

func Print(format string, args ...any) {
	if output != nil {
		output.Print(format, args...)
	}
}

func Error(format string, args ...any) {
	if output != nil {
		output.Error(format, args...)
	}
}

func FatalError(code int, format string, args ...any) {
	if output != nil {
		output.FatalError(code, format, args...)
	} else {
		fmt.Fprintf(os.Stderr, format, args...)
		os.Exit(code)
	}
}

// printEntries writes each line to w until entries is closed. The buffer
// is flushed whenever the channel runs dry.
func printEntries(entries <-chan core.LogEntry, w io.Writer) {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	for entry := range entries {
		bw.WriteString(entry.Message)
		bw.WriteByte('\n')
		if len(entries) == 0 {
			if err := bw.Flush(); err != nil && logger != nil {
				logger.Warn("msg", "Failed to write output",
					"component", "printer",
					"error", err)
			}
		}
	}
}
