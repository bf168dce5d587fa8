// FILE: logthrottle/src/internal/throttle/reader.go
package throttle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/lixenwraith/log"
)

const (
	// DefaultChunkSize is the number of bytes pulled per read
	DefaultChunkSize = 8192
	// DefaultMaxLines caps buffered lines per burst
	DefaultMaxLines = 1000
)

// Cursor is a scoped open handle on a tailed file
type Cursor interface {
	io.ReadCloser
	// Offset returns the byte offset reached by the reads so far
	Offset() int64
}

// Target is the tailed file a Reader drains
type Target interface {
	Path() string
	// Open returns a cursor positioned after the last byte read through a
	// previous cursor
	Open() (Cursor, error)
	// SavePosition persists the offset of the first byte not yet delivered
	SavePosition(pos int64)
}

// Receiver accepts complete lines. Returning false refuses them and they are
// offered again on the next notification.
type Receiver func(path string, lines []string) bool

// ReaderConfig tunes a Reader
type ReaderConfig struct {
	ChunkSize int
	MaxLines  int
}

// Reader drives throttled read bursts for one file. A Reader is not safe
// for concurrent use; each file has its own.
type Reader struct {
	target   Target
	strategy Strategy
	receive  Receiver
	logger   *log.Logger

	chunkSize int
	maxLines  int

	buf     []byte
	partial []byte
	lines   []string
	sizes   []int // raw bytes behind each queued line
	stale   int   // leading queued lines read before a rotation
	eof     bool

	linesRead   atomic.Uint64
	bursts      atomic.Uint64
	throttled   atomic.Uint64
	lineCapHits atomic.Uint64
}

// NewReader creates a reader for target
func NewReader(target Target, strategy Strategy, receive Receiver, cfg ReaderConfig, logger *log.Logger) (*Reader, error) {
	if target == nil || strategy == nil || receive == nil {
		return nil, fmt.Errorf("target, strategy and receiver are required")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = DefaultMaxLines
	}

	return &Reader{
		target:    target,
		strategy:  strategy,
		receive:   receive,
		logger:    logger,
		chunkSize: cfg.ChunkSize,
		maxLines:  cfg.MaxLines,
		buf:       make([]byte, cfg.ChunkSize),
	}, nil
}

// HandleNotify runs one read burst. Queued lines are offered at most
// MaxLines at a time. more is true when lines remain queued or the burst
// stopped on the line cap, and the caller should notify again soon.
func (r *Reader) HandleNotify(ctx context.Context) (more bool, err error) {
	path := r.target.Path()

	if !r.strategy.MayRead(path) {
		r.throttled.Add(1)
		return false, nil
	}

	cursor, err := r.target.Open()
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer cursor.Close()

	r.bursts.Add(1)

	if len(r.lines) == 0 {
		more, err = r.fill(ctx, cursor, path)
	}

	r.strategy.OnBurstEnd(path)

	if len(r.lines) > 0 {
		n := min(len(r.lines), r.maxLines)
		if r.receive(path, r.lines[:n]) {
			r.consume(n)
			r.target.SavePosition(cursor.Offset() - r.pendingBytes())
			if len(r.lines) > 0 {
				more = true
			}
		} else {
			more = false
		}
	}

	return more, err
}

// fill reads chunks until the quota is exhausted, the context is done, the
// line cap is hit or the file is drained
func (r *Reader) fill(ctx context.Context, cursor Cursor, path string) (bool, error) {
	for {
		n, err := cursor.Read(r.buf)
		if n > 0 {
			r.eof = false
			before := len(r.lines)
			r.partial = append(r.partial, r.buf[:n]...)
			r.splitLines()
			delta := len(r.lines) - before
			r.linesRead.Add(uint64(delta))
			r.strategy.OnChunkRead(path, delta)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true
				return false, nil
			}
			return false, fmt.Errorf("read %s: %w", path, err)
		}

		if !r.strategy.MayRead(path) || ctx.Err() != nil {
			return false, nil
		}
		if len(r.lines) >= r.maxLines {
			r.lineCapHits.Add(1)
			return true, nil
		}
	}
}

// splitLines moves complete lines from partial into lines
func (r *Reader) splitLines() {
	for {
		idx := bytes.IndexByte(r.partial, '\n')
		if idx < 0 {
			break
		}
		line := r.partial[:idx]
		line = bytes.TrimSuffix(line, []byte{'\r'})
		r.lines = append(r.lines, string(line))
		r.sizes = append(r.sizes, idx+1)
		r.partial = r.partial[idx+1:]
	}
	if len(r.partial) == 0 {
		r.partial = nil
	}
}

// consume drops the first n queued lines after delivery
func (r *Reader) consume(n int) {
	r.lines = r.lines[n:]
	r.sizes = r.sizes[n:]
	r.stale = max(r.stale-n, 0)
	if len(r.lines) == 0 {
		r.lines = nil
		r.sizes = nil
	}
}

// pendingBytes is the number of bytes of the current file read but not yet
// delivered
func (r *Reader) pendingBytes() int64 {
	pending := int64(len(r.partial))
	for _, size := range r.sizes[r.stale:] {
		pending += int64(size)
	}
	return pending
}

// Pending returns buffered lines and bytes awaiting a newline
func (r *Reader) Pending() (lines int, partialBytes int) {
	return len(r.lines), len(r.partial)
}

// Reset is called when the file is rotated. The unterminated tail of the
// old file is dropped; complete lines already counted stay queued.
func (r *Reader) Reset() {
	r.partial = nil
	r.stale = len(r.lines)
	r.eof = false
}

// EOF reports whether the last burst drained the file
func (r *Reader) EOF() bool {
	return r.eof
}

// GetStats returns reader counters
func (r *Reader) GetStats() map[string]any {
	return map[string]any{
		"lines_read":    r.linesRead.Load(),
		"bursts":        r.bursts.Load(),
		"throttled":     r.throttled.Load(),
		"line_cap_hits": r.lineCapHits.Load(),
	}
}
