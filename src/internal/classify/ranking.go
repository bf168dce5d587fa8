// FILE: logthrottle/src/internal/classify/ranking.go
package classify

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"syscall"
	"time"

	"logthrottle/src/internal/group"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// Identity is the rotation-detecting snapshot of a watched file
type Identity struct {
	Size  int64
	Inode uint64
}

// Target is a watched file as seen by the ranking classifier
type Target interface {
	Path() string
	// Identity returns the last size and inode known to the tailer
	Identity() Identity
}

// StatFunc reads the current identity of a file
type StatFunc func(path string) (Identity, error)

// StatFile is the default StatFunc backed by os.Stat
func StatFile(path string) (Identity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Identity{}, err
	}
	id := Identity{Size: info.Size()}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		id.Inode = stat.Ino
	}
	return id, nil
}

// FileRate is one entry of a ranking cycle
type FileRate struct {
	Path        string
	BytesPerSec float64
}

// Ranking assigns the fastest growing files to the ranked group and every
// other file to the default group
type Ranking struct {
	ranked          *group.Ranked
	fallback        *group.State
	refreshInterval time.Duration
	stat            StatFunc
	logger          *log.Logger

	mu        sync.Mutex
	assigned  map[string]struct{}
	snapshots map[string]Identity
	rates     []FileRate
	cycles    uint64

	statWarn rate.Sometimes
}

// NewRanking creates a ranking classifier. refreshInterval normalizes size
// deltas into rates.
func NewRanking(ranked *group.Ranked, fallback *group.State, refreshInterval time.Duration, stat StatFunc, logger *log.Logger) (*Ranking, error) {
	if ranked == nil || fallback == nil {
		return nil, fmt.Errorf("ranked and default groups are required")
	}
	if refreshInterval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive: %s", refreshInterval)
	}
	if stat == nil {
		stat = StatFile
	}

	return &Ranking{
		ranked:          ranked,
		fallback:        fallback,
		refreshInterval: refreshInterval,
		stat:            stat,
		logger:          logger,
		assigned:        make(map[string]struct{}),
		snapshots:       make(map[string]Identity),
		statWarn:        rate.Sometimes{First: 10, Interval: 30 * time.Second},
	}, nil
}

// RefreshInterval returns the configured refresh period
func (r *Ranking) RefreshInterval() time.Duration {
	return r.refreshInterval
}

// Assign places a newly watched file in the default group until the next refresh
func (r *Ranking) Assign(path string) *group.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.assigned[path] = struct{}{}
	if r.ranked.Contains(path) {
		return r.ranked.State
	}
	r.fallback.Add(path)
	return r.fallback
}

func (r *Ranking) Release(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.assigned, path)
	delete(r.snapshots, path)
	r.ranked.Remove(path)
	r.fallback.Remove(path)
}

func (r *Ranking) StateFor(path string) *group.State {
	if r.ranked.Contains(path) {
		return r.ranked.State
	}
	if r.fallback.Contains(path) {
		return r.fallback
	}
	return nil
}

// Refresh ranks targets by bytes produced since the previous cycle and
// rebuilds both groups' membership. Files that cannot be statted, and
// assigned files missing from targets, are not ranked and go to the
// default group.
func (r *Ranking) Refresh(targets []Target) []FileRate {
	r.mu.Lock()
	defer r.mu.Unlock()

	seconds := r.refreshInterval.Seconds()
	rates := make([]FileRate, 0, len(targets))
	var unranked []string
	seen := make(map[string]struct{}, len(targets))

	for _, t := range targets {
		path := t.Path()
		if _, ok := r.assigned[path]; !ok {
			continue
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}

		current, err := r.stat(path)
		if err != nil {
			r.statWarn.Do(func() {
				r.logger.Warn("msg", "Failed to stat file for ranking, excluding from cycle",
					"component", "ranking_classifier",
					"path", path,
					"error", err)
			})
			unranked = append(unranked, path)
			continue
		}

		previous, ok := r.snapshots[path]
		if !ok {
			previous = t.Identity()
		}
		r.snapshots[path] = current

		produced := current.Size - previous.Size
		if current.Inode != previous.Inode || current.Size < previous.Size {
			// rotated: everything in the new file is fresh
			produced = current.Size
		}
		rates = append(rates, FileRate{Path: path, BytesPerSec: float64(produced) / seconds})
	}

	for path := range r.snapshots {
		if _, ok := seen[path]; !ok {
			delete(r.snapshots, path)
		}
	}
	for path := range r.assigned {
		if _, ok := seen[path]; !ok {
			unranked = append(unranked, path)
		}
	}

	sort.SliceStable(rates, func(i, j int) bool {
		return rates[i].BytesPerSec > rates[j].BytesPerSec
	})

	top := r.ranked.RankSize
	if top > len(rates) {
		top = len(rates)
	}
	rankedPaths := make([]string, 0, top)
	for _, fr := range rates[:top] {
		rankedPaths = append(rankedPaths, fr.Path)
	}
	defaultPaths := make([]string, 0, len(unranked)+len(rates)-top)
	defaultPaths = append(defaultPaths, unranked...)
	for _, fr := range rates[top:] {
		defaultPaths = append(defaultPaths, fr.Path)
	}

	// Files demoted from the ranked group join the default group before
	// leaving the ranked one so they are never observed without a group.
	for _, p := range defaultPaths {
		r.fallback.Add(p)
	}
	r.ranked.SetMembers(rankedPaths)
	r.fallback.SetMembers(defaultPaths)

	r.rates = rates
	r.cycles++

	r.logger.Debug("msg", "Ranking refreshed",
		"component", "ranking_classifier",
		"files", len(targets),
		"ranked", len(rankedPaths),
		"excluded", len(unranked))

	return rates
}

// Rates returns the ranking computed by the last refresh
func (r *Ranking) Rates() []FileRate {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]FileRate, len(r.rates))
	copy(out, r.rates)
	return out
}

func (r *Ranking) Groups() []GroupStats {
	return []GroupStats{
		{Name: r.ranked.Name(), Stats: r.ranked.Stats()},
		{Name: r.fallback.Name(), Stats: r.fallback.Stats()},
	}
}

// GetStats returns classifier counters
func (r *Ranking) GetStats() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return map[string]any{
		"mode":                "metric",
		"rank_size":           r.ranked.RankSize,
		"refresh_interval_ms": r.refreshInterval.Milliseconds(),
		"refresh_cycles":      r.cycles,
		"tracked_files":       len(r.snapshots),
	}
}
