// FILE: logthrottle/src/internal/classify/ranking_test.go
package classify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"logthrottle/src/internal/group"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	path string
	id   Identity
}

func (f fakeTarget) Path() string       { return f.path }
func (f fakeTarget) Identity() Identity { return f.id }

// fakeFS serves identities from memory
type fakeFS struct {
	mu    sync.Mutex
	files map[string]Identity
}

func (fs *fakeFS) set(path string, size int64, inode uint64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = Identity{Size: size, Inode: inode}
}

func (fs *fakeFS) stat(path string) (Identity, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	id, ok := fs.files[path]
	if !ok {
		return Identity{}, os.ErrNotExist
	}
	return id, nil
}

func newTestRanking(t *testing.T, rankSize int) (*Ranking, *fakeFS) {
	t.Helper()
	fs := &fakeFS{files: make(map[string]Identity)}
	ranked := group.NewRanked(rankSize, 100, time.Second)
	fallback := group.NewState("default", group.Unlimited, time.Second)

	r, err := NewRanking(ranked, fallback, time.Second, fs.stat, newTestLogger())
	require.NoError(t, err)
	return r, fs
}

func targetsFor(paths ...string) []Target {
	targets := make([]Target, 0, len(paths))
	for _, p := range paths {
		targets = append(targets, fakeTarget{path: p, id: Identity{Inode: 1}})
	}
	return targets
}

func TestNewRanking(t *testing.T) {
	ranked := group.NewRanked(1, 10, time.Second)
	fallback := group.NewState("default", -1, time.Second)

	_, err := NewRanking(ranked, fallback, 0, nil, newTestLogger())
	assert.Error(t, err)

	_, err = NewRanking(nil, fallback, time.Second, nil, newTestLogger())
	assert.Error(t, err)
}

func TestRanking_TopN(t *testing.T) {
	r, fs := newTestRanking(t, 2)

	paths := []string{"a", "b", "c", "d", "e"}
	sizes := []int64{10, 500, 30, 400, 20}
	for i, p := range paths {
		r.Assign(p)
		fs.set(p, sizes[i], 1)
	}

	rates := r.Refresh(targetsFor(paths...))
	require.Len(t, rates, 5)
	assert.Equal(t, "b", rates[0].Path)
	assert.Equal(t, "d", rates[1].Path)

	assert.ElementsMatch(t, []string{"b", "d"}, r.ranked.Members())
	assert.ElementsMatch(t, []string{"a", "c", "e"}, r.fallback.Members())
	assert.Same(t, r.ranked.State, r.StateFor("b"))
	assert.Same(t, r.fallback, r.StateFor("a"))

	// next cycle: a and c produce the most, no carry-over from the previous ranking
	fs.set("a", 10+1000, 1)
	fs.set("b", 500+5, 1)
	fs.set("c", 30+900, 1)
	fs.set("d", 400, 1)
	fs.set("e", 20+1, 1)

	rates = r.Refresh(targetsFor(paths...))
	assert.InDelta(t, 1000.0, rates[0].BytesPerSec, 0.001)
	assert.ElementsMatch(t, []string{"a", "c"}, r.ranked.Members())
	assert.ElementsMatch(t, []string{"b", "d", "e"}, r.fallback.Members())
}

func TestRanking_RotationReportsCurrentSize(t *testing.T) {
	r, fs := newTestRanking(t, 1)
	r.Assign("rotated")
	r.Assign("steady")

	fs.set("rotated", 1000, 1)
	fs.set("steady", 1000, 2)
	r.Refresh(targetsFor("rotated", "steady"))

	t.Run("InodeChange", func(t *testing.T) {
		fs.set("rotated", 300, 9)
		fs.set("steady", 1200, 2)
		rates := r.Refresh(targetsFor("rotated", "steady"))
		assert.Equal(t, "rotated", rates[0].Path)
		assert.InDelta(t, 300.0, rates[0].BytesPerSec, 0.001)
		assert.InDelta(t, 200.0, rates[1].BytesPerSec, 0.001)
	})

	t.Run("Truncation", func(t *testing.T) {
		fs.set("steady", 50, 2)
		rates := r.Refresh(targetsFor("rotated", "steady"))
		assert.Equal(t, "steady", rates[0].Path)
		assert.InDelta(t, 50.0, rates[0].BytesPerSec, 0.001)
	})
}

func TestRanking_FirstCycleUsesTailerIdentity(t *testing.T) {
	r, fs := newTestRanking(t, 1)
	r.Assign("f")
	fs.set("f", 800, 3)

	rates := r.Refresh([]Target{fakeTarget{path: "f", id: Identity{Size: 600, Inode: 3}}})
	require.Len(t, rates, 1)
	assert.InDelta(t, 200.0, rates[0].BytesPerSec, 0.001)
}

func TestRanking_StatErrorExcluded(t *testing.T) {
	r, fs := newTestRanking(t, 1)
	r.Assign("gone")
	r.Assign("ok")
	fs.set("ok", 10, 1)

	rates := r.Refresh(targetsFor("gone", "ok"))
	require.Len(t, rates, 1)
	assert.Equal(t, "ok", rates[0].Path)
	assert.Equal(t, []string{"ok"}, r.ranked.Members())
	assert.True(t, r.fallback.Contains("gone"))
}

func TestRanking_AssignedBetweenRefreshes(t *testing.T) {
	r, fs := newTestRanking(t, 1)
	fs.set("late", 10, 1)

	s := r.Assign("late")
	assert.Same(t, r.fallback, s)

	r.Refresh(nil)
	assert.True(t, r.fallback.Contains("late"), "assigned files keep a group even when not ranked")

	r.Release("late")
	assert.Nil(t, r.StateFor("late"))
	r.Refresh(targetsFor("late"))
	assert.Nil(t, r.StateFor("late"), "released files are not re-added")
}

func TestStatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.log")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	id, err := StatFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(6), id.Size)
	assert.NotZero(t, id.Inode)

	_, err = StatFile(path + ".missing")
	assert.True(t, errors.Is(err, os.ErrNotExist), fmt.Sprint(err))
}
