package usecases

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/lo"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

// ErrInvalidIgnorePattern indicates an ignore-conflict glob could not be compiled.
var ErrInvalidIgnorePattern = errors.New("invalid ignore-conflict pattern")

// IgnoreRuleSet is an unordered set of path globs. A path is ignorable when any
// glob matches it; patterns have no precedence over each other.
type IgnoreRuleSet struct {
	patterns []string
	globs    []glob.Glob
}

// NewIgnoreRuleSet compiles patterns. Blank patterns are skipped and duplicates
// are collapsed. `*` matches across directory separators.
func NewIgnoreRuleSet(patterns []string) (*IgnoreRuleSet, error) {
	cleaned := lo.Uniq(lo.Compact(lo.Map(patterns, func(p string, _ int) string {
		return strings.TrimSpace(p)
	})))

	rules := &IgnoreRuleSet{patterns: cleaned}
	for _, pattern := range cleaned {
		compiled, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidIgnorePattern, pattern, err)
		}
		rules.globs = append(rules.globs, compiled)
	}

	return rules, nil
}

// Matches reports whether any glob matches path.
func (s *IgnoreRuleSet) Matches(path string) bool {
	if s == nil {
		return false
	}
	return lo.SomeBy(s.globs, func(g glob.Glob) bool {
		return g.Match(path)
	})
}

// Patterns returns the compiled patterns.
func (s *IgnoreRuleSet) Patterns() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.patterns...)
}

// Len returns the number of patterns.
func (s *IgnoreRuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.globs)
}

// Classification is the verdict on one merge attempt.
type Classification struct {
	// Allowed is true when every conflict may be resolved by taking the upstream version.
	Allowed bool

	// Offending is the first path that vetoed auto-resolution.
	Offending string
}

// ConflictClassifier decides whether a conflicted merge attempt may be auto-resolved.
type ConflictClassifier struct{}

// NewConflictClassifier creates a ConflictClassifier.
func NewConflictClassifier() *ConflictClassifier {
	return &ConflictClassifier{}
}

// Classify allows an attempt only when every conflicting path matches rules and has
// an upstream version to restage. A single offending path blocks the whole attempt.
// An empty conflict list is trivially allowed.
func (c *ConflictClassifier) Classify(conflicts []domain.ConflictPath, rules *IgnoreRuleSet) Classification {
	for _, conflict := range conflicts {
		if conflict.Theirs == nil || !rules.Matches(conflict.Path) {
			return Classification{Offending: conflict.Path}
		}
	}
	return Classification{Allowed: true}
}
