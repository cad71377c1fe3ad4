// Package pattern holds the keyword-pattern registry that routes inbound
// messages to tools. The registry is copy-on-write: readers take a
// snapshot (an immutable ordered slice) with no lock; writes are
// serialized and publish a new snapshot atomically.
package pattern

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/synthlang/gateway/internal/auth"
)

// Pattern binds a compiled regex with named capture groups to a tool.
type Pattern struct {
	Name         string
	Regex        *regexp.Regexp
	Tool         string
	Description  string
	Priority     int
	RequiredRole string
	Enabled      bool
}

// MatchResult is returned by Matcher.Match on a successful match.
type MatchResult struct {
	Pattern *Pattern
	Tool    string
	Params  map[string]string
}

// Flags carries the per-request overrides that influence matching.
type Flags struct {
	DisableKeywordDetection bool
}

var (
	// ErrDuplicateName is returned by Add when a pattern with the same
	// name is already registered.
	ErrDuplicateName = fmt.Errorf("pattern: duplicate name")
	// ErrNotFound is returned by Remove/Update for an unknown name.
	ErrNotFound = fmt.Errorf("pattern: not found")
	// ErrNoNamedGroups is returned by Add when parametersRequired is true
	// and the regex exposes no named capture groups.
	ErrNoNamedGroups = fmt.Errorf("pattern: regex has no named capture groups")
)

// Registry is a process-wide, read-mostly store of Patterns. Writers are
// serialized under mu; readers call Snapshot and see a consistent,
// immutable ordered slice with no locking.
type Registry struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[[]*Pattern]
	enabled  bool // global ENABLE_KEYWORD_DETECTION toggle
}

// NewRegistry returns an empty registry. enabled is the global
// ENABLE_KEYWORD_DETECTION setting; it can still be overridden per request
// via Flags.DisableKeywordDetection.
func NewRegistry(enabled bool) *Registry {
	r := &Registry{enabled: enabled}
	empty := []*Pattern{}
	r.snapshot.Store(&empty)
	return r
}

// Snapshot returns the current immutable ordered slice of patterns,
// sorted by descending priority then ascending name.
func (r *Registry) Snapshot() []*Pattern {
	return *r.snapshot.Load()
}

// Add registers a new pattern. parametersRequired, when true, rejects a
// regex that exposes no named capture group.
func (r *Registry) Add(p Pattern, parametersRequired bool) error {
	if parametersRequired {
		named := false
		for _, name := range p.Regex.SubexpNames() {
			if name != "" {
				named = true
				break
			}
		}
		if !named {
			return ErrNoNamedGroups
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.Snapshot()
	for _, existing := range cur {
		if existing.Name == p.Name {
			return ErrDuplicateName
		}
	}
	next := append(append([]*Pattern{}, cur...), &p)
	r.publish(next)
	return nil
}

// Remove deletes a pattern by name.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.Snapshot()
	next := make([]*Pattern, 0, len(cur))
	found := false
	for _, p := range cur {
		if p.Name == name {
			found = true
			continue
		}
		next = append(next, p)
	}
	if !found {
		return ErrNotFound
	}
	r.publish(next)
	return nil
}

// Update replaces the pattern's mutable fields in place, publishing a new
// snapshot. The regex and name are not mutated by Update; to change a
// pattern's regex, remove and re-add it.
func (r *Registry) Update(name string, fn func(*Pattern)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.Snapshot()
	next := make([]*Pattern, len(cur))
	found := false
	for i, p := range cur {
		cp := *p
		if cp.Name == name {
			fn(&cp)
			cp.Name, cp.Regex = p.Name, p.Regex
			found = true
		}
		next[i] = &cp
	}
	if !found {
		return ErrNotFound
	}
	r.publish(next)
	return nil
}

// List returns all patterns regardless of enabled state, in snapshot order.
func (r *Registry) List() []*Pattern {
	return r.Snapshot()
}

// publish sorts and atomically installs a new snapshot. Callers must hold mu.
func (r *Registry) publish(patterns []*Pattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].Priority != patterns[j].Priority {
			return patterns[i].Priority > patterns[j].Priority
		}
		return patterns[i].Name < patterns[j].Name
	})
	r.snapshot.Store(&patterns)
}

// Matcher evaluates a Registry's snapshot against inbound messages.
type Matcher struct {
	registry *Registry
}

// NewMatcher builds a Matcher bound to a Registry.
func NewMatcher(r *Registry) *Matcher {
	return &Matcher{registry: r}
}

// Match iterates the registry snapshot in descending priority, ascending
// name order and returns the first pattern whose regex matches
// messageText, skipping disabled patterns and those gated behind a role
// the principal lacks. It returns ok=false when keyword detection is
// globally or per-request disabled, or when nothing matches.
func (m *Matcher) Match(messageText string, principal *auth.Principal, flags Flags) (*MatchResult, bool) {
	if !m.registry.enabled || flags.DisableKeywordDetection {
		return nil, false
	}
	for _, p := range m.registry.Snapshot() {
		if !p.Enabled {
			continue
		}
		if p.RequiredRole != "" && !principal.HasRole(p.RequiredRole) {
			continue
		}
		matches := p.Regex.FindStringSubmatch(messageText)
		if matches == nil {
			continue
		}
		params := make(map[string]string)
		for i, name := range p.Regex.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			params[name] = matches[i]
		}
		return &MatchResult{Pattern: p, Tool: p.Tool, Params: params}, true
	}
	return nil, false
}
