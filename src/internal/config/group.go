// FILE: logthrottle/src/internal/config/group.go
package config

import (
	"fmt"
	"regexp"
	"time"

	"logthrottle/src/internal/group"

	lconfig "github.com/lixenwraith/config"
)

const (
	GroupModeMetadata = "metadata"
	GroupModeMetric   = "metric"
)

// DefaultGroupPattern extracts pod and namespace from kubelet container log names
const DefaultGroupPattern = `var/log/containers/(?P<pod>[a-z0-9]([-a-z0-9]*[a-z0-9])?(/[a-z0-9]([-a-z0-9]*[a-z0-9])?)*)_(?P<namespace>[^_]+)_(?P<container>.+)-(?P<docker_id>[a-z0-9]{64})\.log$`

// GroupConfig selects how files are grouped and throttled
type GroupConfig struct {
	// "metadata" groups by namespace/pod from the path, "metric" by production rate
	Mode string `toml:"mode"`

	// Path regex with named captures "namespace" and "pod" (metadata mode)
	Pattern string `toml:"pattern"`

	// Window over which group limits apply
	RatePeriodMS int64 `toml:"rate_period_ms"`

	Rules []RuleConfig `toml:"rules"`

	Metric *MetricGroupConfig `toml:"metric"`
}

// RuleConfig limits the lines of the namespace x pod groups it names.
// Omitted lists match anything; omitted limit is unlimited.
type RuleConfig struct {
	Namespaces []string `toml:"namespaces"`
	Pods       []string `toml:"pods"`
	Limit      *int64   `toml:"limit"`
}

// MetricGroupConfig configures ranking by production rate
type MetricGroupConfig struct {
	// Number of fastest files placed in the ranked group
	RankSize int64 `toml:"rank_size"`

	// Line limit of the ranked group, -1 unlimited
	Limit int64 `toml:"limit"`

	// Line limit of the group holding every other file
	DefaultLimit int64 `toml:"default_limit"`

	// Ranking refresh period, also the rate normalization interval
	RefreshIntervalMS int64 `toml:"refresh_interval_ms"`
}

func DefaultGroupConfig() *GroupConfig {
	return &GroupConfig{
		Mode:         GroupModeMetadata,
		Pattern:      DefaultGroupPattern,
		RatePeriodMS: 5000,
		Metric: &MetricGroupConfig{
			RankSize:          5,
			Limit:             group.Unlimited,
			DefaultLimit:      group.Unlimited,
			RefreshIntervalMS: 10000,
		},
	}
}

// RateWindow returns the rate period as a duration
func (g *GroupConfig) RateWindow() time.Duration {
	return time.Duration(g.RatePeriodMS) * time.Millisecond
}

// GroupRules converts rule configs into resolver input
func (g *GroupConfig) GroupRules() []group.Rule {
	rules := make([]group.Rule, 0, len(g.Rules))
	for _, r := range g.Rules {
		limit := group.Unlimited
		if r.Limit != nil {
			limit = int(*r.Limit)
		}
		rules = append(rules, group.Rule{
			Namespaces: r.Namespaces,
			Pods:       r.Pods,
			Limit:      limit,
		})
	}
	return rules
}

// CompilePattern compiles the metadata pattern
func (g *GroupConfig) CompilePattern() (*regexp.Regexp, error) {
	re, err := regexp.Compile(g.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid group pattern: %w", err)
	}
	for _, name := range []string{"namespace", "pod"} {
		if re.SubexpIndex(name) < 0 {
			return nil, fmt.Errorf("group pattern must define named capture %q", name)
		}
	}
	return re, nil
}

func validateGroupConfig(cfg *GroupConfig) error {
	if cfg == nil {
		return fmt.Errorf("group config is nil")
	}

	if cfg.RatePeriodMS <= 0 {
		return fmt.Errorf("rate_period_ms must be > 0, got %d", cfg.RatePeriodMS)
	}

	for i, rule := range cfg.Rules {
		if err := validateRule(i, &rule); err != nil {
			return err
		}
	}

	switch cfg.Mode {
	case GroupModeMetadata:
		if _, err := cfg.CompilePattern(); err != nil {
			return err
		}
	case GroupModeMetric:
		if err := validateMetricGroup(cfg.Metric); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid group mode '%s' (must be '%s' or '%s')",
			cfg.Mode, GroupModeMetadata, GroupModeMetric)
	}

	return nil
}

func validateRule(index int, r *RuleConfig) error {
	for j, ns := range r.Namespaces {
		if err := lconfig.NonEmpty(ns); err != nil {
			return fmt.Errorf("group rule[%d] namespace[%d]: empty pattern", index, j)
		}
	}
	for j, pod := range r.Pods {
		if err := lconfig.NonEmpty(pod); err != nil {
			return fmt.Errorf("group rule[%d] pod[%d]: empty pattern", index, j)
		}
	}
	if r.Limit != nil && *r.Limit < group.Unlimited {
		return fmt.Errorf("group rule[%d]: limit must be >= -1, got %d", index, *r.Limit)
	}
	return nil
}

func validateMetricGroup(m *MetricGroupConfig) error {
	if m == nil {
		return fmt.Errorf("metric mode requires [group.metric]")
	}
	if m.RankSize < 0 {
		return fmt.Errorf("group metric: rank_size cannot be negative")
	}
	if m.Limit < group.Unlimited {
		return fmt.Errorf("group metric: limit must be >= -1, got %d", m.Limit)
	}
	if m.DefaultLimit < group.Unlimited {
		return fmt.Errorf("group metric: default_limit must be >= -1, got %d", m.DefaultLimit)
	}
	if m.RefreshIntervalMS < 100 {
		return fmt.Errorf("group metric: refresh_interval_ms must be at least 100ms")
	}
	return nil
}
