// FILE: logthrottle/src/internal/group/registry.go
package group

import "time"

type podEntry struct {
	pod   Matcher
	state *State
}

// bucket holds the pod groups of one namespace matcher in declaration order
type bucket struct {
	namespace Matcher
	pods      []*podEntry
}

func (b *bucket) find(pod Matcher) *podEntry {
	for _, e := range b.pods {
		if e.pod == pod {
			return e
		}
	}
	return nil
}

func (b *bucket) wildcard() *State {
	if e := b.find(Wildcard()); e != nil {
		return e.state
	}
	return nil
}

// Registry maps (namespace, pod) matchers to group states.
// It is immutable once returned by Build; only the states mutate.
type Registry struct {
	buckets    []*bucket
	rateWindow time.Duration
}

func (r *Registry) findBucket(ns Matcher) *bucket {
	for _, b := range r.buckets {
		if b.namespace == ns {
			return b
		}
	}
	return nil
}

// Lookup returns the group for the extracted namespace and pod values.
// The first declared non-wildcard matcher wins at each level, falling back
// to the wildcard entry.
func (r *Registry) Lookup(namespace, pod string) *State {
	var nsBucket *bucket
	for _, b := range r.buckets {
		if !b.namespace.IsWildcard() && b.namespace.Match(namespace) {
			nsBucket = b
			break
		}
	}
	if nsBucket == nil {
		nsBucket = r.findBucket(Wildcard())
	}

	for _, e := range nsBucket.pods {
		if !e.pod.IsWildcard() && e.pod.Match(pod) {
			return e.state
		}
	}
	return nsBucket.wildcard()
}

// Default returns the wildcard/wildcard group
func (r *Registry) Default() *State {
	return r.findBucket(Wildcard()).wildcard()
}

// Get returns the group registered under key
func (r *Registry) Get(key Key) (*State, bool) {
	b := r.findBucket(key.Namespace)
	if b == nil {
		return nil, false
	}
	e := b.find(key.Pod)
	if e == nil {
		return nil, false
	}
	return e.state, true
}

// States returns all groups in declaration order
func (r *Registry) States() []*State {
	var states []*State
	for _, b := range r.buckets {
		for _, e := range b.pods {
			states = append(states, e.state)
		}
	}
	return states
}

// RateWindow returns the window shared by all groups
func (r *Registry) RateWindow() time.Duration {
	return r.rateWindow
}
