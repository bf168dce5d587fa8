// FILE: logthrottle/src/internal/tail/watcher.go
package tail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"logthrottle/src/internal/classify"
	"logthrottle/src/internal/throttle"

	"github.com/lixenwraith/log"
)

var errWatcherStopped = errors.New("watcher stopped")

// WatcherInfo contains information about a file watcher
type WatcherInfo struct {
	Path         string
	Size         int64
	Position     int64
	ReadPosition int64
	ModTime      time.Time
	LastReadTime time.Time
	Rotations    int
	Reader       map[string]any
}

// fileWatcher follows one file and drives its throttled reader. It is the
// throttle.Target and classify.Target of that file.
type fileWatcher struct {
	path     string
	interval time.Duration
	reader   *throttle.Reader
	kick     chan struct{}

	mu          sync.Mutex
	position    int64 // first byte not yet delivered
	readPos     int64 // first byte not yet read
	size        int64
	inode       uint64
	modTime     time.Time
	stopped     bool
	rotationSeq int

	lastReadTime atomic.Value // time.Time
	logger       *log.Logger
}

func newFileWatcher(path string, opts Options, strategy throttle.Strategy, receive throttle.Receiver, logger *log.Logger) (*fileWatcher, error) {
	w := &fileWatcher{
		path:     path,
		interval: opts.CheckInterval,
		kick:     make(chan struct{}, 1),
		logger:   logger,
	}
	w.lastReadTime.Store(time.Time{})

	reader, err := throttle.NewReader(w, strategy, receive, opts.Reader, logger)
	if err != nil {
		return nil, err
	}
	w.reader = reader

	if err := w.seek(opts.ReadFromHead); err != nil {
		return nil, fmt.Errorf("initial seek failed: %w", err)
	}
	return w, nil
}

// seek places the initial position at the start or end of the file
func (w *fileWatcher) seek(fromHead bool) error {
	info, err := os.Stat(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			w.modTime = time.Now()
			return nil
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.size = info.Size()
	w.modTime = info.ModTime()
	w.inode = inodeOf(info)
	if !fromHead {
		w.position = w.size
		w.readPos = w.size
	}
	return nil
}

func (w *fileWatcher) watch(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.kick:
		}

		if w.isStopped() {
			return errWatcherStopped
		}

		if err := w.checkFile(); err != nil {
			w.logger.Warn("msg", "checkFile error",
				"component", "file_watcher",
				"path", w.path,
				"error", err)
			continue
		}

		more, err := w.reader.HandleNotify(ctx)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				w.logger.Warn("msg", "Read burst failed",
					"component", "file_watcher",
					"path", w.path,
					"error", err)
			}
			continue
		}
		if more {
			w.notify()
		}
	}
}

// notify schedules another read burst without waiting for the ticker
func (w *fileWatcher) notify() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// checkFile refreshes size and inode and handles rotation
func (w *fileWatcher) checkFile() error {
	info, err := os.Stat(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Removed or mid-rotation, the directory scan decides
			return nil
		}
		return err
	}

	currentSize := info.Size()
	currentInode := inodeOf(info)

	w.mu.Lock()
	oldSize := w.size
	oldInode := w.inode
	readPos := w.readPos

	rotationReason := ""
	switch {
	case currentSize < oldSize:
		rotationReason = "size decrease"
	case oldInode != 0 && currentInode != 0 && currentInode != oldInode:
		rotationReason = "inode change"
	case readPos > currentSize:
		rotationReason = "position beyond file size"
	}

	w.size = currentSize
	w.inode = currentInode
	w.modTime = info.ModTime()

	var seq int
	if rotationReason != "" {
		w.rotationSeq++
		seq = w.rotationSeq
		w.position = 0
		w.readPos = 0
	}
	w.mu.Unlock()

	if rotationReason != "" {
		w.reader.Reset()
		w.logger.Info("msg", "Log rotation detected",
			"component", "file_watcher",
			"path", w.path,
			"sequence", seq,
			"reason", rotationReason)
	}

	return nil
}

func (w *fileWatcher) Path() string {
	return w.path
}

// Open returns a cursor at the first byte not yet read
func (w *fileWatcher) Open() (throttle.Cursor, error) {
	file, err := os.Open(w.path)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	start := w.readPos
	w.mu.Unlock()

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		file.Close()
		return nil, err
	}
	return &fileCursor{file: file, w: w, offset: start}, nil
}

func (w *fileWatcher) SavePosition(pos int64) {
	w.mu.Lock()
	w.position = pos
	w.mu.Unlock()
	w.lastReadTime.Store(time.Now())
}

// Identity returns the size and inode seen by the last check
func (w *fileWatcher) Identity() classify.Identity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return classify.Identity{Size: w.size, Inode: w.inode}
}

func (w *fileWatcher) getInfo() WatcherInfo {
	w.mu.Lock()
	info := WatcherInfo{
		Path:         w.path,
		Size:         w.size,
		Position:     w.position,
		ReadPosition: w.readPos,
		ModTime:      w.modTime,
		Rotations:    w.rotationSeq,
	}
	w.mu.Unlock()

	if lastRead, ok := w.lastReadTime.Load().(time.Time); ok {
		info.LastReadTime = lastRead
	}
	info.Reader = w.reader.GetStats()

	return info
}

func (w *fileWatcher) stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.notify()
}

func (w *fileWatcher) isStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// fileCursor tracks the offset reached through one open handle
type fileCursor struct {
	file   *os.File
	w      *fileWatcher
	offset int64
}

func (c *fileCursor) Read(p []byte) (int, error) {
	n, err := c.file.Read(p)
	c.offset += int64(n)
	return n, err
}

func (c *fileCursor) Offset() int64 {
	return c.offset
}

// Close records the read offset so the next cursor continues from it
func (c *fileCursor) Close() error {
	c.w.mu.Lock()
	c.w.readPos = c.offset
	c.w.mu.Unlock()
	return c.file.Close()
}

func inodeOf(info os.FileInfo) uint64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return stat.Ino
	}
	return 0
}
