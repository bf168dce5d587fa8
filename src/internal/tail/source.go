// FILE: logthrottle/src/internal/tail/source.go
package tail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"logthrottle/src/internal/classify"
	"logthrottle/src/internal/core"
	"logthrottle/src/internal/throttle"

	"github.com/lixenwraith/log"
)

// Options configures a Source
type Options struct {
	Directory     string
	Pattern       string
	CheckInterval time.Duration
	ReadFromHead  bool
	BufferSize    int
	Reader        throttle.ReaderConfig
}

// Stats describes a running source
type Stats struct {
	TotalEntries   uint64
	RefusedBatches uint64
	StartTime      time.Time
	LastEntryTime  time.Time
	Details        map[string]any
}

// Source tails every file in a directory matching a glob, reading each
// through the throttle strategy of the group its classifier assigns
type Source struct {
	opts       Options
	re         *regexp.Regexp
	classifier classify.Classifier
	ranking    *classify.Ranking
	strategy   throttle.Strategy

	subscribers []chan core.LogEntry
	watchers    map[string]*fileWatcher
	mu          sync.RWMutex
	publishMu   sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	totalEntries   atomic.Uint64
	refusedBatches atomic.Uint64
	startTime      time.Time
	lastEntryTime  atomic.Value // time.Time
	logger         *log.Logger
}

// NewSource creates a directory tailing source. A *classify.Ranking
// classifier is refreshed periodically while the source runs.
func NewSource(opts Options, classifier classify.Classifier, strategy throttle.Strategy, logger *log.Logger) (*Source, error) {
	if classifier == nil || strategy == nil {
		return nil, fmt.Errorf("classifier and strategy are required")
	}
	if opts.Directory == "" {
		return nil, fmt.Errorf("tail source requires a directory")
	}
	if opts.Pattern == "" {
		opts.Pattern = "*"
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Second
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	// A delivered batch must fit an empty subscriber buffer
	if opts.Reader.MaxLines <= 0 {
		opts.Reader.MaxLines = throttle.DefaultMaxLines
	}
	opts.Reader.MaxLines = min(opts.Reader.MaxLines, opts.BufferSize)

	absPath, err := filepath.Abs(opts.Directory)
	if err != nil {
		return nil, fmt.Errorf("invalid path %s: %w", opts.Directory, err)
	}
	opts.Directory = absPath

	re, err := regexp.Compile(globToRegex(opts.Pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern regex: %w", err)
	}

	s := &Source{
		opts:       opts,
		re:         re,
		classifier: classifier,
		strategy:   strategy,
		watchers:   make(map[string]*fileWatcher),
		startTime:  time.Now(),
		logger:     logger,
	}
	if ranking, ok := classifier.(*classify.Ranking); ok {
		s.ranking = ranking
	}
	s.lastEntryTime.Store(time.Time{})

	return s, nil
}

func (s *Source) Subscribe() <-chan core.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan core.LogEntry, s.opts.BufferSize)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Source) Start() error {
	if _, err := os.Stat(s.opts.Directory); err != nil {
		return fmt.Errorf("tail directory: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go s.monitorLoop()

	if s.ranking != nil {
		s.wg.Add(1)
		go s.refreshLoop()
	}

	s.logger.Info("msg", "Tail source started",
		"component", "tail_source",
		"path", s.opts.Directory,
		"pattern", s.opts.Pattern,
		"check_interval_ms", s.opts.CheckInterval.Milliseconds(),
		"read_from_head", s.opts.ReadFromHead)
	return nil
}

func (s *Source) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
	s.mu.Unlock()

	s.logger.Info("msg", "Tail source stopped",
		"component", "tail_source",
		"path", s.opts.Directory)
}

func (s *Source) GetStats() Stats {
	lastEntry, _ := s.lastEntryTime.Load().(time.Time)

	s.mu.RLock()
	watcherCount := int64(len(s.watchers))
	watchers := make([]map[string]any, 0, watcherCount)
	for _, w := range s.watchers {
		info := w.getInfo()
		watchers = append(watchers, map[string]any{
			"path":          info.Path,
			"size":          info.Size,
			"position":      info.Position,
			"read_position": info.ReadPosition,
			"rotations":     info.Rotations,
			"last_read":     info.LastReadTime,
			"reader":        info.Reader,
		})
	}
	s.mu.RUnlock()

	sort.Slice(watchers, func(i, j int) bool {
		return watchers[i]["path"].(string) < watchers[j]["path"].(string)
	})

	return Stats{
		TotalEntries:   s.totalEntries.Load(),
		RefusedBatches: s.refusedBatches.Load(),
		StartTime:      s.startTime,
		LastEntryTime:  lastEntry,
		Details: map[string]any{
			"path":            s.opts.Directory,
			"pattern":         s.opts.Pattern,
			"active_watchers": watcherCount,
			"watchers":        watchers,
		},
	}
}

// publish hands a batch of lines to every subscriber. The batch is refused
// as a whole when any subscriber lacks room for it, leaving the lines with
// the reader for the next burst.
func (s *Source) publish(path string, lines []string) bool {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subscribers {
		if cap(ch)-len(ch) < len(lines) {
			s.refusedBatches.Add(1)
			s.logger.Debug("msg", "Subscriber buffer full, deferring lines",
				"component", "tail_source",
				"path", path,
				"lines", len(lines))
			return false
		}
	}

	groupName := ""
	if st := s.classifier.StateFor(path); st != nil {
		groupName = st.Name()
	}

	now := time.Now()
	s.totalEntries.Add(uint64(len(lines)))
	s.lastEntryTime.Store(now)

	for _, line := range lines {
		entry := core.LogEntry{
			Time:    now,
			Source:  path,
			Group:   groupName,
			Message: line,
			RawSize: int64(len(line)),
		}
		for _, ch := range s.subscribers {
			ch <- entry
		}
	}
	return true
}

func (s *Source) monitorLoop() {
	defer s.wg.Done()

	s.checkTargets()

	ticker := time.NewTicker(s.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkTargets()
		}
	}
}

func (s *Source) refreshLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.ranking.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.refreshRanking()
		}
	}
}

func (s *Source) refreshRanking() {
	s.mu.RLock()
	targets := make([]classify.Target, 0, len(s.watchers))
	for _, w := range s.watchers {
		targets = append(targets, w)
	}
	s.mu.RUnlock()

	rates := s.ranking.Refresh(targets)
	if len(rates) > 0 {
		s.logger.Debug("msg", "Fastest file",
			"component", "tail_source",
			"path", rates[0].Path,
			"bytes_per_sec", rates[0].BytesPerSec)
	}
}

func (s *Source) checkTargets() {
	files, err := s.scanDirectory()
	if err != nil {
		s.logger.Warn("msg", "Failed to scan directory",
			"component", "tail_source",
			"path", s.opts.Directory,
			"pattern", s.opts.Pattern,
			"error", err)
		return
	}

	for _, file := range files {
		s.ensureWatcher(file)
	}

	s.cleanupWatchers()
}

func (s *Source) scanDirectory() ([]string, error) {
	entries, err := os.ReadDir(s.opts.Directory)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if s.re.MatchString(name) {
			files = append(files, filepath.Join(s.opts.Directory, name))
		}
	}

	return files, nil
}

func (s *Source) ensureWatcher(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.watchers[path]; exists {
		return
	}

	w, err := newFileWatcher(path, s.opts, s.strategy, s.publish, s.logger)
	if err != nil {
		s.logger.Warn("msg", "Failed to create file watcher",
			"component", "tail_source",
			"path", path,
			"error", err)
		return
	}

	state := s.classifier.Assign(path)
	s.watchers[path] = w

	s.logger.Debug("msg", "Created file watcher",
		"component", "tail_source",
		"path", path,
		"group", state.Name())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := w.watch(s.ctx); err != nil {
			switch {
			case errors.Is(err, context.Canceled):
				s.logger.Debug("msg", "Watcher cancelled",
					"component", "tail_source",
					"path", path)
			case errors.Is(err, errWatcherStopped):
				s.logger.Debug("msg", "Watcher stopped",
					"component", "tail_source",
					"path", path)
			default:
				s.logger.Error("msg", "Watcher failed",
					"component", "tail_source",
					"path", path,
					"error", err)
			}
		}

		// Release under the lock so a watcher recreated for the same path
		// never loses its fresh assignment
		s.mu.Lock()
		if s.watchers[path] == w {
			delete(s.watchers, path)
		}
		s.classifier.Release(path)
		s.mu.Unlock()
	}()
}

// cleanupWatchers stops watchers of vanished files; each watcher removes
// itself once its goroutine exits
func (s *Source) cleanupWatchers() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for path, w := range s.watchers {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			w.stop()
			s.logger.Debug("msg", "Stopping watcher for non-existent file",
				"component", "tail_source",
				"path", path)
		}
	}
}

func globToRegex(glob string) string {
	regex := regexp.QuoteMeta(glob)
	regex = strings.ReplaceAll(regex, `\*`, `.*`)
	regex = strings.ReplaceAll(regex, `\?`, `.`)
	return "^" + regex + "$"
}
