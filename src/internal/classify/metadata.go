// FILE: logthrottle/src/internal/classify/metadata.go
package classify

import (
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"

	"logthrottle/src/internal/group"

	"github.com/lixenwraith/log"
)

const (
	captureNamespace = "namespace"
	capturePod       = "pod"
)

// Metadata classifies files by namespace and pod extracted from their path
type Metadata struct {
	pattern  *regexp.Regexp
	nsIndex  int
	podIndex int
	registry *group.Registry
	logger   *log.Logger

	mu       sync.RWMutex
	assigned map[string]*group.State

	missCount   atomic.Uint64
	assignCount atomic.Uint64
}

// NewMetadata creates a metadata classifier. The pattern must define the
// named captures "namespace" and "pod".
func NewMetadata(pattern *regexp.Regexp, registry *group.Registry, logger *log.Logger) (*Metadata, error) {
	if pattern == nil {
		return nil, fmt.Errorf("metadata pattern cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("group registry cannot be nil")
	}

	nsIndex := pattern.SubexpIndex(captureNamespace)
	podIndex := pattern.SubexpIndex(capturePod)
	if nsIndex < 0 || podIndex < 0 {
		return nil, fmt.Errorf("pattern %q must define named captures %q and %q",
			pattern.String(), captureNamespace, capturePod)
	}

	return &Metadata{
		pattern:  pattern,
		nsIndex:  nsIndex,
		podIndex: podIndex,
		registry: registry,
		logger:   logger,
		assigned: make(map[string]*group.State),
	}, nil
}

// Classify resolves path to a group without changing membership.
// Paths that do not match the pattern go to the default group.
func (m *Metadata) Classify(path string) *group.State {
	match := m.pattern.FindStringSubmatch(path)
	if match == nil {
		// Classification runs once per file, so every miss is reported
		misses := m.missCount.Add(1)
		m.logger.Warn("msg", "Cannot find group from metadata, adding file to the default group",
			"component", "metadata_classifier",
			"path", path,
			"misses", misses)
		return m.registry.Default()
	}

	return m.registry.Lookup(match[m.nsIndex], match[m.podIndex])
}

func (m *Metadata) Assign(path string) *group.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.assigned[path]; ok {
		return s
	}

	s := m.Classify(path)
	s.Add(path)
	m.assigned[path] = s
	m.assignCount.Add(1)

	m.logger.Debug("msg", "File assigned to group",
		"component", "metadata_classifier",
		"path", path,
		"group", s.Name(),
		"limit", s.Limit())
	return s
}

func (m *Metadata) Release(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.assigned[path]
	if !ok {
		return
	}
	s.Remove(path)
	delete(m.assigned, path)
}

func (m *Metadata) StateFor(path string) *group.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assigned[path]
}

// Misses returns how many paths failed to match the pattern
func (m *Metadata) Misses() uint64 {
	return m.missCount.Load()
}

func (m *Metadata) Groups() []GroupStats {
	states := m.registry.States()
	groups := make([]GroupStats, 0, len(states))
	for _, s := range states {
		groups = append(groups, GroupStats{Name: s.Name(), Stats: s.Stats()})
	}
	return groups
}

// GetStats returns classifier counters
func (m *Metadata) GetStats() map[string]any {
	m.mu.RLock()
	watched := len(m.assigned)
	m.mu.RUnlock()

	return map[string]any{
		"mode":            "metadata",
		"pattern":         m.pattern.String(),
		"watched_files":   watched,
		"total_assigned":  m.assignCount.Load(),
		"metadata_misses": m.missCount.Load(),
	}
}
