// FILE: logthrottle/src/internal/tail/source_test.go
package tail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"logthrottle/src/internal/classify"
	"logthrottle/src/internal/core"
	"logthrottle/src/internal/group"
	"logthrottle/src/internal/throttle"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// singleGroup assigns every file to one state
type singleGroup struct {
	state *group.State

	mu       sync.Mutex
	released []string
}

func (c *singleGroup) Assign(path string) *group.State {
	c.state.Add(path)
	return c.state
}

func (c *singleGroup) Release(path string) {
	c.state.Remove(path)
	c.mu.Lock()
	c.released = append(c.released, path)
	c.mu.Unlock()
}

func (c *singleGroup) StateFor(path string) *group.State {
	if c.state.Contains(path) {
		return c.state
	}
	return nil
}

func (c *singleGroup) Groups() []classify.GroupStats {
	return []classify.GroupStats{{Name: c.state.Name(), Stats: c.state.Stats()}}
}

func (c *singleGroup) releasedPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.released...)
}

func testOptions(dir string) Options {
	return Options{
		Directory:     dir,
		Pattern:       "*.log",
		CheckInterval: 10 * time.Millisecond,
		BufferSize:    1000,
		Reader:        throttle.ReaderConfig{ChunkSize: 64, MaxLines: 100},
	}
}

func startSource(t *testing.T, opts Options, c classify.Classifier) (*Source, <-chan core.LogEntry) {
	t.Helper()
	src, err := NewSource(opts, c, throttle.NewGate(c), log.NewLogger())
	require.NoError(t, err)
	ch := src.Subscribe()
	require.NoError(t, src.Start())
	t.Cleanup(src.Stop)
	return src, ch
}

func waitForWatchers(t *testing.T, src *Source, n int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return src.GetStats().Details["active_watchers"] == n
	}, 2*time.Second, 5*time.Millisecond)
}

func appendFile(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func collect(t *testing.T, ch <-chan core.LogEntry, n int) []core.LogEntry {
	t.Helper()
	var out []core.LogEntry
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case e := <-ch:
			out = append(out, e)
		case <-timeout:
			t.Fatalf("received %d of %d entries", len(out), n)
		}
	}
	return out
}

func messages(entries []core.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func TestSource_StartsAtEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	appendFile(t, path, "old\n")

	c := &singleGroup{state: group.NewState("all", group.Unlimited, time.Second)}
	src, ch := startSource(t, testOptions(dir), c)
	waitForWatchers(t, src, 1)

	appendFile(t, path, "new1\nnew2\n")
	got := collect(t, ch, 2)
	assert.Equal(t, []string{"new1", "new2"}, messages(got))
	assert.Equal(t, path, got[0].Source)
	assert.Equal(t, "all", got[0].Group)
}

func TestSource_ReadFromHead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	appendFile(t, path, "first\nsecond\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x\n"), 0644))

	opts := testOptions(dir)
	opts.ReadFromHead = true
	c := &singleGroup{state: group.NewState("all", group.Unlimited, time.Second)}
	src, ch := startSource(t, opts, c)

	got := collect(t, ch, 2)
	assert.Equal(t, []string{"first", "second"}, messages(got))
	assert.Equal(t, int64(1), src.GetStats().Details["active_watchers"])
	assert.Equal(t, uint64(2), src.GetStats().TotalEntries)
}

func TestSource_EnforcesGroupLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noisy.log")
	appendFile(t, path, strings.Repeat("spam\n", 20))

	opts := testOptions(dir)
	opts.ReadFromHead = true
	opts.Reader = throttle.ReaderConfig{ChunkSize: 5}
	c := &singleGroup{state: group.NewState("limited", 3, time.Hour)}
	_, ch := startSource(t, opts, c)

	got := collect(t, ch, 3)
	assert.Len(t, got, 3)

	select {
	case e := <-ch:
		t.Fatalf("unexpected entry past the limit: %q", e.Message)
	case <-time.After(200 * time.Millisecond):
	}
	assert.True(t, c.state.LimitReached(path))
}

func TestSource_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	appendFile(t, path, "aaaa\nbbbb\n")

	opts := testOptions(dir)
	opts.ReadFromHead = true
	c := &singleGroup{state: group.NewState("all", group.Unlimited, time.Second)}
	src, ch := startSource(t, opts, c)

	assert.Equal(t, []string{"aaaa", "bbbb"}, messages(collect(t, ch, 2)))

	require.NoError(t, os.WriteFile(path, []byte("c\n"), 0644))
	assert.Equal(t, []string{"c"}, messages(collect(t, ch, 1)))

	watchers := src.GetStats().Details["watchers"].([]map[string]any)
	require.Len(t, watchers, 1)
	assert.GreaterOrEqual(t, watchers[0]["rotations"], 1)
}

func TestSource_RemovedFileReleased(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.log")
	appendFile(t, path, "x\n")

	c := &singleGroup{state: group.NewState("all", group.Unlimited, time.Second)}
	src, _ := startSource(t, testOptions(dir), c)
	waitForWatchers(t, src, 1)
	assert.True(t, c.state.Contains(path))

	require.NoError(t, os.Remove(path))
	waitForWatchers(t, src, 0)

	assert.False(t, c.state.Contains(path))
	assert.Equal(t, []string{path}, c.releasedPaths())
}

func TestSource_BackpressureKeepsLines(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.BufferSize = 2

	c := &singleGroup{state: group.NewState("all", group.Unlimited, time.Second)}
	src, err := NewSource(opts, c, throttle.NewGate(c), log.NewLogger())
	require.NoError(t, err)
	ch := src.Subscribe()

	assert.False(t, src.publish("f", []string{"a", "b", "c"}))
	assert.True(t, src.publish("f", []string{"a", "b"}))
	assert.False(t, src.publish("f", []string{"c"}), "buffer still full")

	<-ch
	assert.True(t, src.publish("f", []string{"c"}))
	assert.Equal(t, uint64(2), src.GetStats().RefusedBatches)
	assert.Equal(t, uint64(3), src.GetStats().TotalEntries)
}

func TestSource_DenseChunkSmallBuffer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dense.log")
	appendFile(t, path, "")

	opts := testOptions(dir)
	opts.BufferSize = 4
	opts.Reader = throttle.ReaderConfig{ChunkSize: 64, MaxLines: 4}
	c := &singleGroup{state: group.NewState("all", group.Unlimited, time.Second)}
	src, ch := startSource(t, opts, c)
	waitForWatchers(t, src, 1)

	appendFile(t, path, strings.Repeat("a\n", 20))
	got := collect(t, ch, 20)
	assert.Len(t, got, 20)
	assert.Equal(t, uint64(20), src.GetStats().TotalEntries)
}

func TestNewSource_LineCapFitsBuffer(t *testing.T) {
	c := &singleGroup{state: group.NewState("g", group.Unlimited, time.Second)}

	opts := Options{Directory: t.TempDir(), BufferSize: 8}
	src, err := NewSource(opts, c, throttle.NewGate(c), log.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, 8, src.opts.Reader.MaxLines)

	opts.Reader.MaxLines = 3
	src, err = NewSource(opts, c, throttle.NewGate(c), log.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, src.opts.Reader.MaxLines)
}

func TestWatcher_RotationKeepsRefusedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	appendFile(t, path, "l1\nl2\nl3\n")

	c := &singleGroup{state: group.NewState("all", group.Unlimited, time.Second)}
	c.Assign(path)

	accept := false
	var delivered []string
	receive := func(_ string, lines []string) bool {
		if !accept {
			return false
		}
		delivered = append(delivered, lines...)
		return true
	}

	opts := testOptions(dir)
	opts.ReadFromHead = true
	w, err := newFileWatcher(path, opts, throttle.NewGate(c), receive, log.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.checkFile())
	_, err = w.reader.HandleNotify(ctx)
	require.NoError(t, err)
	queued, _ := w.reader.Pending()
	require.Equal(t, 3, queued)

	require.NoError(t, os.WriteFile(path, []byte("n1\n"), 0644))
	require.NoError(t, w.checkFile())
	assert.Equal(t, 1, w.getInfo().Rotations)

	accept = true
	for i := 0; i < 2; i++ {
		_, err = w.reader.HandleNotify(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"l1", "l2", "l3", "n1"}, delivered)
	assert.Equal(t, int64(3), w.getInfo().Position)
}

func TestSource_RankingRefresh(t *testing.T) {
	dir := t.TempDir()
	fast := filepath.Join(dir, "fast.log")
	slow := filepath.Join(dir, "slow.log")
	appendFile(t, fast, "")
	appendFile(t, slow, "")

	ranked := group.NewRanked(1, group.Unlimited, time.Second)
	fallback := group.NewState("default", group.Unlimited, time.Second)
	ranking, err := classify.NewRanking(ranked, fallback, 20*time.Millisecond, classify.StatFile, log.NewLogger())
	require.NoError(t, err)

	src, _ := startSource(t, testOptions(dir), ranking)
	waitForWatchers(t, src, 2)

	i := 0
	require.Eventually(t, func() bool {
		i++
		if f, err := os.OpenFile(fast, os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			fmt.Fprintf(f, "burst %d %s\n", i, strings.Repeat("x", 256))
			f.Close()
		}
		return ranked.Contains(fast) && fallback.Contains(slow)
	}, 2*time.Second, 10*time.Millisecond)

	assert.NotEmpty(t, ranking.Rates())
}

func TestGlobToRegex(t *testing.T) {
	tests := []struct {
		glob  string
		name  string
		match bool
	}{
		{"*.log", "app.log", true},
		{"*.log", "app.log.1", false},
		{"app?.log", "app1.log", true},
		{"app?.log", "app12.log", false},
		{"a+b.log", "a+b.log", true},
		{"*", "anything", true},
	}

	for _, tt := range tests {
		t.Run(tt.glob+"_"+tt.name, func(t *testing.T) {
			src, err := NewSource(Options{Directory: t.TempDir(), Pattern: tt.glob},
				&singleGroup{state: group.NewState("g", group.Unlimited, time.Second)},
				throttle.NewGate(nil), log.NewLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.match, src.re.MatchString(tt.name))
		})
	}
}

func TestNewSource_Validation(t *testing.T) {
	c := &singleGroup{state: group.NewState("g", group.Unlimited, time.Second)}

	_, err := NewSource(Options{}, c, throttle.NewGate(c), log.NewLogger())
	assert.Error(t, err)

	_, err = NewSource(Options{Directory: t.TempDir()}, nil, throttle.NewGate(c), log.NewLogger())
	assert.Error(t, err)
}
