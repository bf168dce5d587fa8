// FILE: logthrottle/src/internal/status/collector.go
package status

import (
	"time"

	"logthrottle/src/internal/classify"
	"logthrottle/src/internal/tail"
	"logthrottle/src/internal/throttle"
	"logthrottle/src/internal/version"
)

// statsProvider is implemented by both classifiers
type statsProvider interface {
	GetStats() map[string]any
}

// Collector assembles a status snapshot from the running components
type Collector struct {
	mode       string
	classifier classify.Classifier
	gate       *throttle.Gate
	source     *tail.Source
	startTime  time.Time
}

// NewCollector creates a collector. gate and source may be nil.
func NewCollector(mode string, classifier classify.Classifier, gate *throttle.Gate, source *tail.Source) *Collector {
	return &Collector{
		mode:       mode,
		classifier: classifier,
		gate:       gate,
		source:     source,
		startTime:  time.Now(),
	}
}

// Groups returns the counters of every group
func (c *Collector) Groups() []map[string]any {
	if c.classifier == nil {
		return nil
	}
	groups := c.classifier.Groups()
	out := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Stats)
	}
	return out
}

// Snapshot returns the full status document
func (c *Collector) Snapshot() map[string]any {
	snapshot := map[string]any{
		"service":        version.Name,
		"version":        version.Short(),
		"uptime_seconds": int(time.Since(c.startTime).Seconds()),
		"mode":           c.mode,
		"groups":         c.Groups(),
	}

	if sp, ok := c.classifier.(statsProvider); ok {
		snapshot["classifier"] = sp.GetStats()
	}

	if ranking, ok := c.classifier.(*classify.Ranking); ok {
		rates := ranking.Rates()
		ranked := make([]map[string]any, 0, len(rates))
		for _, r := range rates {
			ranked = append(ranked, map[string]any{
				"path":          r.Path,
				"bytes_per_sec": r.BytesPerSec,
			})
		}
		snapshot["ranking"] = ranked
	}

	if c.gate != nil {
		snapshot["throttle"] = c.gate.GetStats()
	}

	if c.source != nil {
		stats := c.source.GetStats()
		snapshot["source"] = map[string]any{
			"total_entries":   stats.TotalEntries,
			"refused_batches": stats.RefusedBatches,
			"start_time":      stats.StartTime,
			"last_entry_time": stats.LastEntryTime,
			"details":         stats.Details,
		}
	}

	return snapshot
}
