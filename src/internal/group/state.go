// FILE: logthrottle/src/internal/group/state.go
package group

import (
	"sort"
	"sync"
	"time"
)

// Unlimited is the limit value that disables throttling for a group
const Unlimited = -1

// fileCounter tracks one file's consumption in its current rate window.
// A zero windowStart means no window is open.
type fileCounter struct {
	linesRead   int
	windowStart time.Time
}

// State is the throttle window of one group. The limit is a pool shared
// fairly between the files currently assigned to the group.
type State struct {
	key        Key
	name       string
	limit      int
	rateWindow time.Duration
	now        func() time.Time

	mu    sync.Mutex
	files map[string]*fileCounter
}

func newState(key Key, limit int, rateWindow time.Duration, now func() time.Time) *State {
	return &State{
		key:        key,
		name:       key.String(),
		limit:      limit,
		rateWindow: rateWindow,
		now:        now,
		files:      make(map[string]*fileCounter),
	}
}

// NewState creates a standalone state, used by ranking groups
func NewState(name string, limit int, rateWindow time.Duration, opts ...Option) *State {
	o := buildOptions(opts)
	s := newState(DefaultKey(), limit, rateWindow, o.clock)
	s.name = name
	return s
}

// Key returns the group key; standalone states report the default key
func (s *State) Key() Key {
	return s.key
}

// Name returns a printable group name
func (s *State) Name() string {
	return s.name
}

// Limit returns the resolved line limit per rate window
func (s *State) Limit() int {
	return s.limit
}

// RateWindow returns the window after which counters reset
func (s *State) RateWindow() time.Duration {
	return s.rateWindow
}

// Add registers path as a member with fresh counters. Re-adding is a no-op.
func (s *State) Add(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[path]; !exists {
		s.files[path] = &fileCounter{}
	}
}

// Remove drops path from the group
func (s *State) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

// Contains reports membership of path
func (s *State) Contains(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

// Len returns the number of files sharing the limit
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Members returns the member paths in lexical order
func (s *State) Members() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// SetMembers replaces the membership wholesale. Files that stay members keep
// their counters, newcomers start idle.
func (s *State) SetMembers(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*fileCounter, len(paths))
	for _, p := range paths {
		if fc, ok := s.files[p]; ok {
			next[p] = fc
		} else {
			next[p] = &fileCounter{}
		}
	}
	s.files = next
}

// MarkWindowStart opens a window for path if none is open
func (s *State) MarkWindowStart(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fc, ok := s.files[path]; ok && fc.windowStart.IsZero() {
		fc.windowStart = s.now()
	}
}

// AddLines adjusts the line counter of path by delta, never below zero
func (s *State) AddLines(path string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fc, ok := s.files[path]
	if !ok {
		return
	}
	fc.linesRead += delta
	if fc.linesRead < 0 {
		fc.linesRead = 0
	}
}

// LinesRead returns the counter of path in the current window
func (s *State) LinesRead(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fc, ok := s.files[path]; ok {
		return fc.linesRead
	}
	return 0
}

// Reset closes the window of path and zeroes its counter
func (s *State) Reset(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fc, ok := s.files[path]; ok {
		fc.linesRead = 0
		fc.windowStart = time.Time{}
	}
}

// ResetIfElapsed resets path when its window has run for the full rate window.
// Returns true if a reset happened.
func (s *State) ResetIfElapsed(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	fc, ok := s.files[path]
	if !ok || fc.windowStart.IsZero() {
		return false
	}
	if s.now().Sub(fc.windowStart) < s.rateWindow {
		return false
	}
	fc.linesRead = 0
	fc.windowStart = time.Time{}
	return true
}

// LimitReached reports whether path must stop reading for now.
// A path that is not a member is always exhausted.
func (s *State) LimitReached(path string) bool {
	if s.limit == 0 {
		return true
	}
	if s.limit < 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fc, ok := s.files[path]
	if !ok {
		return true
	}
	share := s.limit / len(s.files)
	if fc.linesRead < share {
		return false
	}

	if !fc.windowStart.IsZero() && s.now().Sub(fc.windowStart) < s.rateWindow {
		return true
	}

	// Window over, or never opened. A zero share stays exhausted until
	// membership shrinks.
	fc.linesRead = 0
	fc.windowStart = time.Time{}
	return share == 0
}

// Stats returns group counters for status reporting
func (s *State) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int
	var earliest time.Time
	files := make(map[string]any, len(s.files))
	for p, fc := range s.files {
		total += fc.linesRead
		if !fc.windowStart.IsZero() && (earliest.IsZero() || fc.windowStart.Before(earliest)) {
			earliest = fc.windowStart
		}
		files[p] = map[string]any{
			"lines_read":   fc.linesRead,
			"window_start": fc.windowStart,
		}
	}

	share := s.limit
	if s.limit > 0 && len(s.files) > 0 {
		share = s.limit / len(s.files)
	}

	return map[string]any{
		"group":          s.name,
		"limit":          s.limit,
		"rate_window_ms": s.rateWindow.Milliseconds(),
		"file_count":     len(s.files),
		"fair_share":     share,
		"lines_read":     total,
		"window_start":   earliest,
		"files":          files,
	}
}
