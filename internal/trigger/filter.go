// Package trigger decides whether a push event fires a job.
//
// A changed path matches when it matches no exclude glob and at least one
// include glob. Excludes are checked first, so their declaration order relative
// to includes does not matter. An empty include list includes every path.
// Matching is case-sensitive; "*" stays inside one path segment and "**"
// matches zero or more whole segments.
package trigger

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sourceplane/litejob/internal/model"
)

// ErrInvalidPattern is returned for globs doublestar cannot parse
var ErrInvalidPattern = errors.New("invalid glob pattern")

// Skip reasons reported by Evaluate
const (
	ReasonNoChanges      = "no changed paths"
	ReasonBranchFiltered = "branch not matched by branch filter"
	ReasonNoPathMatched  = "no changed path matched the path filter"
)

// Filter evaluates push events against a job's branch and path filters
type Filter struct {
	paths    model.PatternSet
	branches model.PatternSet
}

// PathDecision explains the outcome for a single changed path
type PathDecision struct {
	Path     string `json:"path" yaml:"path"`
	Matched  bool   `json:"matched" yaml:"matched"`
	Excluded bool   `json:"excluded" yaml:"excluded"`
	Pattern  string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Result is the outcome of evaluating one push event
type Result struct {
	Fired        bool           `json:"fired" yaml:"fired"`
	Reason       string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	MatchedPaths []string       `json:"matchedPaths" yaml:"matchedPaths"`
	Decisions    []PathDecision `json:"decisions" yaml:"decisions"`
}

// New builds a filter from a git push trigger, rejecting malformed globs
func New(t model.GitPushTrigger) (*Filter, error) {
	if err := ValidatePatterns(t.PathFilter); err != nil {
		return nil, fmt.Errorf("path filter: %w", err)
	}
	if err := ValidatePatterns(t.Branches); err != nil {
		return nil, fmt.Errorf("branch filter: %w", err)
	}

	return &Filter{
		paths:    normalizeSet(t.PathFilter),
		branches: t.Branches,
	}, nil
}

// ValidatePatterns checks every include and exclude glob of a pattern set
func ValidatePatterns(set model.PatternSet) error {
	for _, list := range [][]string{set.Include, set.Exclude} {
		for _, p := range list {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
			}
			if !doublestar.ValidatePattern(p) {
				return fmt.Errorf("%w: %q", ErrInvalidPattern, p)
			}
		}
	}
	return nil
}

// MatchPath decides a single changed path
func (f *Filter) MatchPath(p string) PathDecision {
	p = NormalizePath(p)
	decision := PathDecision{Path: p}
	if p == "" {
		return decision
	}

	if pattern, ok := firstMatch(f.paths.Exclude, p); ok {
		decision.Excluded = true
		decision.Pattern = pattern
		return decision
	}

	if len(f.paths.Include) == 0 {
		decision.Matched = true
		return decision
	}

	if pattern, ok := firstMatch(f.paths.Include, p); ok {
		decision.Matched = true
		decision.Pattern = pattern
	}
	return decision
}

// ShouldFire reports whether at least one changed path matches. An empty set never fires.
func (f *Filter) ShouldFire(changedPaths []string) bool {
	for _, p := range changedPaths {
		if f.MatchPath(p).Matched {
			return true
		}
	}
	return false
}

// MatchBranch applies the branch filter. An empty include list accepts every branch.
func (f *Filter) MatchBranch(branch string) bool {
	if _, ok := firstMatch(f.branches.Exclude, branch); ok {
		return false
	}
	if len(f.branches.Include) == 0 {
		return true
	}
	_, ok := firstMatch(f.branches.Include, branch)
	return ok
}

// Evaluate runs the branch filter then the path filter against a push event
func (f *Filter) Evaluate(event model.PushEvent) Result {
	result := Result{
		MatchedPaths: []string{},
		Decisions:    make([]PathDecision, 0, len(event.ChangedPaths)),
	}

	if len(event.ChangedPaths) == 0 {
		result.Reason = ReasonNoChanges
		return result
	}

	if !f.MatchBranch(event.BranchName()) {
		result.Reason = ReasonBranchFiltered
		return result
	}

	seen := make(map[string]bool)
	for _, p := range event.ChangedPaths {
		decision := f.MatchPath(p)
		if seen[decision.Path] {
			continue
		}
		seen[decision.Path] = true

		result.Decisions = append(result.Decisions, decision)
		if decision.Matched {
			result.MatchedPaths = append(result.MatchedPaths, decision.Path)
		}
	}

	result.Fired = len(result.MatchedPaths) > 0
	if !result.Fired {
		result.Reason = ReasonNoPathMatched
	}
	return result
}

// NormalizePath converts a changed path to the form globs are matched against:
// forward slashes, no leading "./" or "/", cleaned.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}

	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}

func normalizeSet(set model.PatternSet) model.PatternSet {
	out := model.PatternSet{
		Include: make([]string, 0, len(set.Include)),
		Exclude: make([]string, 0, len(set.Exclude)),
	}
	for _, p := range set.Include {
		out.Include = append(out.Include, normalizePattern(p))
	}
	for _, p := range set.Exclude {
		out.Exclude = append(out.Exclude, normalizePattern(p))
	}
	return out
}

func normalizePattern(p string) string {
	p = strings.TrimSpace(p)
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	return strings.TrimLeft(p, "/")
}

// firstMatch returns the first pattern matching name. Patterns are validated in New.
func firstMatch(patterns []string, name string) (string, bool) {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return pattern, true
		}
	}
	return "", false
}
