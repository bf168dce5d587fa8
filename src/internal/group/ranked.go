// FILE: logthrottle/src/internal/group/ranked.go
package group

import "time"

// Ranked is the metric-mode group holding the top RankSize files by
// production rate. Membership is recomputed on every refresh.
type Ranked struct {
	*State
	RankSize int
}

// NewRanked creates the ranked group
func NewRanked(rankSize, limit int, rateWindow time.Duration, opts ...Option) *Ranked {
	return &Ranked{
		State:    NewState("ranked", limit, rateWindow, opts...),
		RankSize: rankSize,
	}
}

// Stats adds the rank size to the group counters
func (r *Ranked) Stats() map[string]any {
	stats := r.State.Stats()
	stats["rank_size"] = r.RankSize
	return stats
}
