// FILE: logthrottle/src/internal/group/resolver.go
package group

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidRateWindow = errors.New("rate window must be positive")
	ErrInvalidLimit      = errors.New("group limit must be >= -1")
	ErrQuotaResolution   = errors.New("group line limit resolution failed")
)

// Rule is a validated grouping rule. An empty namespace or pod list means
// the wildcard matcher. Limit -1 is unlimited, 0 blocks the group.
type Rule struct {
	Namespaces []string
	Pods       []string
	Limit      int
}

func (r Rule) matchers() ([]Matcher, []Matcher) {
	toMatchers := func(patterns []string) []Matcher {
		if len(patterns) == 0 {
			return []Matcher{Wildcard()}
		}
		ms := make([]Matcher, 0, len(patterns))
		for _, p := range patterns {
			ms = append(ms, Literal(p))
		}
		return ms
	}
	return toMatchers(r.Namespaces), toMatchers(r.Pods)
}

// Build resolves rules into a frozen registry.
// Each rule's limit is split evenly over its namespace x pod pairs, every
// namespace gets a wildcard-pod group and a wildcard/wildcard group always
// exists. Limited catch-all groups are then reduced by the limits carved
// out of them, and a negative remainder fails the build.
func Build(rules []Rule, rateWindow time.Duration, opts ...Option) (*Registry, error) {
	if rateWindow <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRateWindow, rateWindow)
	}
	o := buildOptions(opts)

	r := &Registry{rateWindow: rateWindow}
	newGroup := func(key Key, limit int) *State {
		return newState(key, limit, rateWindow, o.clock)
	}

	for i, rule := range rules {
		if rule.Limit < Unlimited {
			return nil, fmt.Errorf("rule %d: %w, got %d", i, ErrInvalidLimit, rule.Limit)
		}

		namespaces, pods := rule.matchers()
		perPair := Unlimited
		if rule.Limit >= 0 {
			perPair = rule.Limit / (len(namespaces) * len(pods))
		}

		for _, ns := range namespaces {
			b := r.findBucket(ns)
			if b == nil {
				b = &bucket{namespace: ns}
				r.buckets = append(r.buckets, b)
			}

			for _, pod := range pods {
				key := Key{Namespace: ns, Pod: pod}
				if e := b.find(pod); e != nil {
					e.state = newGroup(key, perPair)
				} else {
					b.pods = append(b.pods, &podEntry{pod: pod, state: newGroup(key, perPair)})
				}
			}

			if b.wildcard() == nil {
				key := Key{Namespace: ns, Pod: Wildcard()}
				b.pods = append(b.pods, &podEntry{pod: Wildcard(), state: newGroup(key, Unlimited)})
			}
		}
	}

	if r.findBucket(Wildcard()) == nil {
		r.buckets = append(r.buckets, &bucket{namespace: Wildcard()})
	}
	if defaults := r.findBucket(Wildcard()); defaults.wildcard() == nil {
		defaults.pods = append(defaults.pods, &podEntry{pod: Wildcard(), state: newGroup(DefaultKey(), Unlimited)})
	}

	if err := r.resolveNamespaceBuckets(); err != nil {
		return nil, err
	}
	if err := r.resolveWildcardNamespace(); err != nil {
		return nil, err
	}

	return r, nil
}

// committed returns the part of a limit that counts against a parent bucket
func committed(limit int) int {
	if limit < 0 {
		return 0
	}
	return limit
}

// resolveNamespaceBuckets reduces each limited wildcard-pod group by the
// explicit pod groups of the same namespace
func (r *Registry) resolveNamespaceBuckets() error {
	for _, b := range r.buckets {
		parent := b.wildcard()
		if parent.limit == Unlimited {
			continue
		}

		for _, e := range b.pods {
			if !e.pod.IsWildcard() {
				parent.limit -= committed(e.state.limit)
			}
		}
		if parent.limit < 0 {
			return fmt.Errorf("%w: namespace %s, pod *", ErrQuotaResolution, b.namespace)
		}
	}
	return nil
}

// resolveWildcardNamespace reduces each limited pod group of the wildcard
// namespace by the same pod key declared under explicit namespaces
func (r *Registry) resolveWildcardNamespace() error {
	defaults := r.findBucket(Wildcard())

	for _, e := range defaults.pods {
		if e.pod.IsWildcard() || e.state.limit == Unlimited {
			continue
		}

		for _, b := range r.buckets {
			if b.namespace.IsWildcard() {
				continue
			}
			if child := b.find(e.pod); child != nil {
				e.state.limit -= committed(child.state.limit)
			}
		}
		if e.state.limit < 0 {
			return fmt.Errorf("%w: namespace *, pod %s", ErrQuotaResolution, e.pod)
		}
	}
	return nil
}
