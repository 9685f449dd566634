// Package router maps structural paths to table identities.
//
// Rules are regular expressions anchored at both ends and tried in
// registration order; the first match wins. Aliases redirect one path to
// another before any rule is consulted. Both are append-only.
package router

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrAliasCycle is returned by Alias when the redirect would loop.
var ErrAliasCycle = errors.New("alias cycle")

type rule struct {
	pattern *regexp.Regexp
	source  string
	target  string
}

// Router resolves paths to table identities.
type Router struct {
	rules   []rule
	aliases map[string]string
}

func New() *Router {
	return &Router{aliases: make(map[string]string)}
}

// Register appends one rule per pattern, all pointing at target.
func (r *Router) Register(patterns []string, target string) error {
	compiled := make([]rule, 0, len(patterns))
	for _, pat := range patterns {
		re, err := regexp.Compile("^(?:" + pat + ")$")
		if err != nil {
			return fmt.Errorf("invalid path pattern %q: %w", pat, err)
		}
		compiled = append(compiled, rule{pattern: re, source: pat, target: target})
	}
	r.rules = append(r.rules, compiled...)
	return nil
}

// RegisterPath routes exactly path to target.
func (r *Router) RegisterPath(path, target string) {
	r.rules = append(r.rules, rule{
		pattern: regexp.MustCompile("^" + regexp.QuoteMeta(path) + "$"),
		source:  regexp.QuoteMeta(path),
		target:  target,
	})
}

// Alias makes path behave exactly like canonical, including for every path
// reached through it.
func (r *Router) Alias(path, canonical string) error {
	if err := r.CheckAlias(path, canonical); err != nil {
		return err
	}
	r.aliases[path] = canonical
	return nil
}

// CheckAlias reports the error Alias would return, without recording the
// alias.
func (r *Router) CheckAlias(path, canonical string) error {
	if path == canonical {
		return fmt.Errorf("%w: %q aliased to itself", ErrAliasCycle, path)
	}
	if r.Canonical(canonical) == path {
		return fmt.Errorf("%w: %q -> %q", ErrAliasCycle, path, canonical)
	}
	return nil
}

// Canonical follows alias redirects starting at path.
func (r *Router) Canonical(path string) string {
	for range len(r.aliases) + 1 {
		next, ok := r.aliases[path]
		if !ok {
			return path
		}
		path = next
	}
	return path
}

// Resolve returns the table identity for path.
func (r *Router) Resolve(path string) (string, bool) {
	path = r.Canonical(path)
	for _, rl := range r.rules {
		if rl.pattern.MatchString(path) {
			return rl.target, true
		}
	}
	return "", false
}

// Rules lists the registered patterns in order, for diagnostics.
func (r *Router) Rules() []string {
	pats := make([]string, len(r.rules))
	for i, rl := range r.rules {
		pats[i] = rl.source + " -> " + rl.target
	}
	return pats
}
