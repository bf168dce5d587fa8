// FILE: logthrottle/src/internal/group/matcher.go
package group

import "strings"

// MatcherKind tags a Matcher as a wildcard or a literal pattern
type MatcherKind uint8

const (
	// MatchAny accepts every value
	MatchAny MatcherKind = iota
	// MatchLiteral accepts values containing the pattern text
	MatchLiteral
)

// Matcher selects namespace or pod values for a group key.
// Two matchers are equal when both tag and pattern text are equal.
type Matcher struct {
	kind    MatcherKind
	pattern string
}

// Wildcard returns the match-anything matcher
func Wildcard() Matcher {
	return Matcher{kind: MatchAny}
}

// Literal returns a matcher accepting values that contain pattern
func Literal(pattern string) Matcher {
	return Matcher{kind: MatchLiteral, pattern: pattern}
}

// Kind returns the matcher tag
func (m Matcher) Kind() MatcherKind {
	return m.kind
}

// Pattern returns the literal text, empty for the wildcard
func (m Matcher) Pattern() string {
	return m.pattern
}

// IsWildcard reports whether m is the match-anything matcher
func (m Matcher) IsWildcard() bool {
	return m.kind == MatchAny
}

// Match reports whether value is accepted
func (m Matcher) Match(value string) bool {
	if m.kind == MatchAny {
		return true
	}
	return strings.Contains(value, m.pattern)
}

func (m Matcher) String() string {
	if m.kind == MatchAny {
		return "*"
	}
	return m.pattern
}

// Key identifies a metadata group
type Key struct {
	Namespace Matcher
	Pod       Matcher
}

// DefaultKey is the wildcard/wildcard key
func DefaultKey() Key {
	return Key{Namespace: Wildcard(), Pod: Wildcard()}
}

func (k Key) String() string {
	return k.Namespace.String() + "/" + k.Pod.String()
}
