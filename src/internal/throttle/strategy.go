// FILE: logthrottle/src/internal/throttle/strategy.go
package throttle

import (
	"sync/atomic"

	"logthrottle/src/internal/group"
)

// Strategy is consulted by the read loop around every read burst
type Strategy interface {
	// MayRead reports whether path may pull more data right now
	MayRead(path string) bool

	// OnChunkRead reports the change in complete lines after a chunk
	OnChunkRead(path string, delta int)

	// OnBurstEnd is called once the burst stops pulling data
	OnBurstEnd(path string)
}

// Resolver returns the group currently holding a path
type Resolver interface {
	StateFor(path string) *group.State
}

// Gate enforces group line limits through a Resolver.
// Paths without a group are treated as exhausted.
type Gate struct {
	resolver Resolver

	skipped atomic.Uint64
	resets  atomic.Uint64
}

// NewGate creates a gate over the given resolver
func NewGate(resolver Resolver) *Gate {
	return &Gate{resolver: resolver}
}

func (g *Gate) MayRead(path string) bool {
	s := g.resolver.StateFor(path)
	if s == nil || s.LimitReached(path) {
		g.skipped.Add(1)
		return false
	}
	return true
}

func (g *Gate) OnChunkRead(path string, delta int) {
	s := g.resolver.StateFor(path)
	if s == nil {
		return
	}
	s.MarkWindowStart(path)
	s.AddLines(path, delta)
}

func (g *Gate) OnBurstEnd(path string) {
	s := g.resolver.StateFor(path)
	if s == nil {
		return
	}
	if s.ResetIfElapsed(path) {
		g.resets.Add(1)
	}
}

// GetStats returns gate counters
func (g *Gate) GetStats() map[string]any {
	return map[string]any{
		"throttled_checks": g.skipped.Load(),
		"window_resets":    g.resets.Load(),
	}
}
