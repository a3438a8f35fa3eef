package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

// WalkInput contains the parameters of a merge walk.
type WalkInput struct {
	// Head is the commit HEAD points at when the walk starts.
	Head domain.CommitID

	// Revisions are merged oldest first.
	Revisions domain.RevisionRange

	// Rules select the conflicts that may be resolved by taking the upstream version.
	Rules *IgnoreRuleSet
}

// walkState is built once per walk and mutated in place.
type walkState struct {
	head            domain.CommitID
	pending         []domain.CommitID
	ignoredSoFar    map[string]struct{}
	failingRevision domain.CommitID
	lastMerged      domain.CommitID
	created         []domain.CommitID
	succeededCount  int
	skippedCount    int
}

func (s *walkState) pop() domain.CommitID {
	revision := s.pending[0]
	s.pending = s.pending[1:]
	return revision
}

func (s *walkState) report(outcome domain.WalkOutcome) *domain.WalkReport {
	ignored := lo.Keys(s.ignoredSoFar)
	sort.Strings(ignored)

	return &domain.WalkReport{
		Outcome:         outcome,
		Head:            s.head,
		Created:         s.created,
		LastMerged:      s.lastMerged,
		IgnoredPaths:    ignored,
		FailingRevision: s.failingRevision,
		SucceededCount:  s.succeededCount,
		SkippedCount:    s.skippedCount,
	}
}

// MergeWalker merges upstream revisions into HEAD one at a time, oldest first,
// and stops at the first revision whose conflicts are not all ignorable.
type MergeWalker struct {
	repo       domain.Repository
	classifier *ConflictClassifier
	logger     Logger
}

// NewMergeWalker creates a MergeWalker.
func NewMergeWalker(repo domain.Repository, classifier *ConflictClassifier, log Logger) *MergeWalker {
	return &MergeWalker{
		repo:       repo,
		classifier: classifier,
		logger:     log,
	}
}

// Walk runs the walk to completion or to the first blocking revision. Only a prefix
// of input.Revisions is ever merged; revisions after a blocking one are not inspected.
//
// Returns domain.ErrUncommittedChanges before writing anything if the work tree is
// dirty. Repository failures abort the walk and are returned unchanged, wrapped with
// the revision being processed; commits already written stay in place and the work
// tree is checked out at the last of them so the next run can resume.
func (w *MergeWalker) Walk(ctx context.Context, input WalkInput) (*domain.WalkReport, error) {
	dirty, err := w.repo.HasUncommittedChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check work tree: %w", err)
	}
	if dirty {
		return nil, domain.ErrUncommittedChanges
	}

	state := &walkState{
		head:         input.Head,
		pending:      append([]domain.CommitID(nil), input.Revisions...),
		ignoredSoFar: make(map[string]struct{}),
	}

	w.logger.Info(ctx, "starting merge walk", map[string]any{
		"head":      input.Head,
		"pending":   len(state.pending),
		"ignore_by": input.Rules.Patterns(),
	})

	outcome := domain.WalkCompleted
	for len(state.pending) > 0 {
		revision := state.pop()

		blocked, err := w.step(ctx, state, revision, input.Rules)
		if err != nil {
			stepErr := fmt.Errorf("merging %s: %w", revision, err)
			if syncErr := w.syncWorkTree(ctx, state); syncErr != nil {
				return nil, errors.Join(stepErr, syncErr)
			}
			return nil, stepErr
		}
		if blocked {
			state.failingRevision = revision
			state.skippedCount = len(state.pending) + 1
			outcome = domain.WalkBlocked
			break
		}
	}

	if err := w.syncWorkTree(ctx, state); err != nil {
		return nil, err
	}

	report := state.report(outcome)
	w.logger.Info(ctx, "merge walk finished", map[string]any{
		"outcome":          report.Outcome.String(),
		"head":             report.Head,
		"succeeded":        report.SucceededCount,
		"skipped":          report.SkippedCount,
		"failing_revision": report.FailingRevision,
		"ignored":          len(report.IgnoredPaths),
	})

	return report, nil
}

// syncWorkTree checks out the new HEAD once the walk has moved it.
func (w *MergeWalker) syncWorkTree(ctx context.Context, state *walkState) error {
	if len(state.created) == 0 {
		return nil
	}
	if err := w.repo.ForceCheckout(ctx, state.head); err != nil {
		return fmt.Errorf("failed to check out %s: %w", state.head, err)
	}
	return nil
}

// step merges one revision. It returns true when the revision blocks the walk.
func (w *MergeWalker) step(
	ctx context.Context,
	state *walkState,
	revision domain.CommitID,
	rules *IgnoreRuleSet,
) (bool, error) {
	result, err := w.repo.AttemptMerge(ctx, state.head, revision)
	if err != nil {
		return false, err
	}

	tree := result.Tree
	resolved := result.AutoResolved

	if result.Outcome == domain.MergeConflicted {
		verdict := w.classifier.Classify(result.Conflicts, rules)
		if !verdict.Allowed {
			w.logger.Info(ctx, "merge blocked by conflict", map[string]any{
				"revision":  revision,
				"path":      verdict.Offending,
				"conflicts": len(result.Conflicts),
			})
			return true, nil
		}

		resolved = make([]string, 0, len(result.Conflicts))
		for _, conflict := range result.Conflicts {
			tree, err = w.repo.RestageWithTheirs(ctx, tree, conflict)
			if err != nil {
				return false, fmt.Errorf("failed to restage %s: %w", conflict.Path, err)
			}
			resolved = append(resolved, conflict.Path)
		}

		w.logger.Debug(ctx, "auto-resolved conflicts with upstream version", map[string]any{
			"revision": revision,
			"paths":    resolved,
		})
	}

	commit, err := w.repo.WriteCommit(ctx, tree, []domain.CommitID{state.head, revision}, domain.NoConflictMessage(revision))
	if err != nil {
		return false, fmt.Errorf("failed to write merge commit: %w", err)
	}
	if err := w.repo.MoveHead(ctx, commit, state.head); err != nil {
		return false, fmt.Errorf("failed to advance HEAD: %w", err)
	}

	w.logger.Debug(ctx, "merged revision", map[string]any{
		"revision": revision,
		"commit":   commit,
	})

	for _, path := range resolved {
		state.ignoredSoFar[path] = struct{}{}
	}
	state.head = commit
	state.lastMerged = revision
	state.created = append(state.created, commit)
	state.succeededCount++

	return false, nil
}
