package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

func TestNewIgnoreRuleSet(t *testing.T) {
	rules, err := NewIgnoreRuleSet([]string{" Cargo.lock ", "", "Cargo.lock", "**/package-lock.json"})

	require.NoError(t, err)
	assert.Equal(t, 2, rules.Len())
	assert.Equal(t, []string{"Cargo.lock", "**/package-lock.json"}, rules.Patterns())
}

func TestNewIgnoreRuleSet_InvalidPattern(t *testing.T) {
	rules, err := NewIgnoreRuleSet([]string{"ok.lock", "[unterminated"})

	require.Error(t, err)
	assert.Nil(t, rules)
	assert.ErrorIs(t, err, ErrInvalidIgnorePattern)
	assert.Contains(t, err.Error(), "[unterminated")
}

func TestIgnoreRuleSet_Matches(t *testing.T) {
	rules, err := NewIgnoreRuleSet([]string{"Cargo.lock", "*.sum", "gen/{a,b}.txt", "docs/?.md"})
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{path: "Cargo.lock", want: true},
		{path: "crates/Cargo.lock", want: false},
		{path: "go.sum", want: true},
		{path: "tools/go.sum", want: true},
		{path: "gen/a.txt", want: true},
		{path: "gen/c.txt", want: false},
		{path: "docs/x.md", want: true},
		{path: "docs/xy.md", want: false},
		{path: "src/main.rs", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Matches(tt.path))
		})
	}
}

func TestIgnoreRuleSet_NilMatchesNothing(t *testing.T) {
	var rules *IgnoreRuleSet

	assert.False(t, rules.Matches("Cargo.lock"))
	assert.Equal(t, 0, rules.Len())
	assert.Nil(t, rules.Patterns())
}

func TestConflictClassifier_Classify(t *testing.T) {
	rules, err := NewIgnoreRuleSet([]string{"Cargo.lock", "*.sum"})
	require.NoError(t, err)
	empty, err := NewIgnoreRuleSet(nil)
	require.NoError(t, err)

	tests := []struct {
		name      string
		conflicts []domain.ConflictPath
		rules     *IgnoreRuleSet
		want      Classification
	}{
		{
			name:      "every path ignorable",
			conflicts: []domain.ConflictPath{conflict("Cargo.lock"), conflict("go.sum")},
			rules:     rules,
			want:      Classification{Allowed: true},
		},
		{
			name:      "one path vetoes the attempt",
			conflicts: []domain.ConflictPath{conflict("Cargo.lock"), conflict("src/lib.rs"), conflict("go.sum")},
			rules:     rules,
			want:      Classification{Offending: "src/lib.rs"},
		},
		{
			name:      "first offending path is reported",
			conflicts: []domain.ConflictPath{conflict("a.txt"), conflict("b.txt")},
			rules:     rules,
			want:      Classification{Offending: "a.txt"},
		},
		{
			name:      "no rules blocks everything",
			conflicts: []domain.ConflictPath{conflict("Cargo.lock")},
			rules:     empty,
			want:      Classification{Offending: "Cargo.lock"},
		},
		{
			name:      "nil rules blocks everything",
			conflicts: []domain.ConflictPath{conflict("Cargo.lock")},
			rules:     nil,
			want:      Classification{Offending: "Cargo.lock"},
		},
		{
			name:      "upstream deletion is never ignorable",
			conflicts: []domain.ConflictPath{{Path: "Cargo.lock"}},
			rules:     rules,
			want:      Classification{Offending: "Cargo.lock"},
		},
		{
			name:  "no conflicts",
			rules: empty,
			want:  Classification{Allowed: true},
		},
	}

	classifier := NewConflictClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifier.Classify(tt.conflicts, tt.rules))
		})
	}
}
