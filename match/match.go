// Package match selects cache keys for invalidation.
//
// A Matcher is one of a small closed set of variants:
//
//	match.All()              every key
//	match.Exact("scans_1")   one key
//	match.Prefix("scans_")   every key of a resource
//	match.Regexp(re)         every key the expression matches
//	match.Func(fn)           any predicate
package match

import (
	"regexp"
	"strings"
)

// Matcher reports whether a cache key is selected.
type Matcher interface {
	Match(key string) bool
}

// Exact selects a single key.
type Exact string

func (e Exact) Match(key string) bool { return key == string(e) }

// Prefix selects every key starting with the prefix.
type Prefix string

func (p Prefix) Match(key string) bool { return strings.HasPrefix(key, string(p)) }

// Func selects every key for which the function returns true.
// A nil Func selects nothing.
//
// The cache calls it while holding its write lock, so the function must not
// call back into the cache that is being invalidated.
type Func func(key string) bool

func (f Func) Match(key string) bool { return f != nil && f(key) }

type all struct{}

func (all) Match(string) bool { return true }

// All selects every key.
func All() Matcher { return all{} }

// IsAll reports whether m selects everything without looking at keys.
// A nil matcher counts as All.
func IsAll(m Matcher) bool {
	if m == nil {
		return true
	}
	_, ok := m.(all)
	return ok
}

type pattern struct {
	re *regexp.Regexp
}

func (p pattern) Match(key string) bool { return p.re.MatchString(key) }

func (p pattern) String() string { return p.re.String() }

// Regexp selects every key the expression matches. It panics if re is nil.
func Regexp(re *regexp.Regexp) Matcher {
	if re == nil {
		panic("match: Regexp called with a nil *regexp.Regexp")
	}
	return pattern{re: re}
}

// MustRegexp compiles expr and panics if it is invalid.
func MustRegexp(expr string) Matcher { return Regexp(regexp.MustCompile(expr)) }
