// FILE: logthrottle/src/cmd/logthrottle/status.go
package main

import (
	"context"
	"time"

	"logthrottle/src/internal/status"
)

const statusInterval = 30 * time.Second

// Periodically logs group counters
func statusReporter(ctx context.Context, collector *status.Collector) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("msg", "Panic in status reporter",
							"component", "status_reporter",
							"panic", r)
					}
				}()

				groups := collector.Groups()
				logger.Debug("msg", "Status report",
					"component", "status_reporter",
					"groups", len(groups),
					"time", time.Now().Format("15:04:05"))

				for _, g := range groups {
					logGroupStatus(g)
				}
			}()
		}
	}
}

// Logs the counters of one group
func logGroupStatus(stats map[string]any) {
	statusFields := []any{
		"msg", "Group status",
		"component", "status_reporter",
	}

	for _, key := range []string{"group", "limit", "file_count", "fair_share", "lines_read", "rank_size"} {
		if v, ok := stats[key]; ok {
			statusFields = append(statusFields, key, v)
		}
	}

	logger.Debug(statusFields...)
}
