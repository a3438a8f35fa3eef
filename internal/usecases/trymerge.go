// Package usecases contains the application business logic.
// This package orchestrates domain entities and interfaces to fulfill use cases.
package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

// Logger defines the logging interface required by the use cases.
// This abstracts the logger dependency to avoid coupling to a specific implementation.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]any)
	Debug(ctx context.Context, msg string, fields map[string]any)
	Warn(ctx context.Context, msg string, fields map[string]any)
	Error(ctx context.Context, msg string, err error, fields map[string]any)
}

// Settings is the immutable configuration of a run.
type Settings struct {
	// Remote provides the default target when no revision is given.
	Remote string

	// DefaultSquash squashes after a no-op walk even without the flag.
	DefaultSquash bool

	// Rules select conflicts resolved by taking the upstream version.
	Rules *IgnoreRuleSet

	// SquashScanLimit bounds the history read by the squasher.
	SquashScanLimit int
}

// TryMerge drives a try-merge invocation: it picks the target, gates on a clean work
// tree, and runs either the merge walk or the squash.
type TryMerge struct {
	repo     domain.Repository
	upstream domain.Upstream
	handOff  domain.MergeHandOff
	reporter domain.ReportWriter
	settings Settings
	walker   *MergeWalker
	squasher *Squasher
	logger   Logger
}

// NewTryMerge creates a TryMerge with the given dependencies.
func NewTryMerge(
	repo domain.Repository,
	upstream domain.Upstream,
	handOff domain.MergeHandOff,
	reporter domain.ReportWriter,
	settings Settings,
	log Logger,
) *TryMerge {
	if settings.Remote == "" {
		settings.Remote = domain.DefaultRemote
	}

	return &TryMerge{
		repo:     repo,
		upstream: upstream,
		handOff:  handOff,
		reporter: reporter,
		settings: settings,
		walker:   NewMergeWalker(repo, NewConflictClassifier(), log),
		squasher: NewSquasher(repo, settings.SquashScanLimit, log),
		logger:   log,
	}
}

// Run advances HEAD towards input.Revision and writes the report. The report of a
// blocked walk is written before the hand-off starts.
//
// Returns domain.ErrUncommittedChanges if the work tree is dirty and
// domain.ErrRevisionNotFound if the target does not resolve. A blocked walk is not an
// error: it is reported with StatusBlocked and, unless input.NoMerge is set, handed to
// the merge tool whose exit code is returned in the output.
func (t *TryMerge) Run(ctx context.Context, input domain.TryMergeInput) (*domain.TryMergeOutput, error) {
	target := input.Revision
	if target == "" {
		defaultTarget, err := t.upstream.DefaultUpstream(ctx, t.settings.Remote)
		if err != nil {
			return nil, fmt.Errorf("failed to determine default branch of %s: %w", t.settings.Remote, err)
		}
		target = defaultTarget
	}

	if strings.Contains(target, "/") {
		if err := t.upstream.UpdateRemoteTracking(ctx, target); err != nil {
			return nil, fmt.Errorf("failed to update %s: %w", target, err)
		}
	}

	dirty, err := t.repo.HasUncommittedChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check work tree: %w", err)
	}
	if dirty {
		return nil, domain.ErrUncommittedChanges
	}

	head, err := t.repo.Resolve(ctx, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	top, err := t.repo.Resolve(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", target, err)
	}

	revisions, err := t.repo.RevisionsBetween(ctx, head, top)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions between HEAD and %s: %w", target, err)
	}

	t.logger.Info(ctx, "computed revisions to merge", map[string]any{
		"target":  target,
		"head":    head,
		"top":     top,
		"pending": len(revisions),
	})

	output := &domain.TryMergeOutput{Target: target}

	if len(revisions) == 0 {
		output.Status = domain.StatusUpToDate
		if input.Squash || t.settings.DefaultSquash {
			result, err := t.squasher.Squash(ctx, SquashInput{Head: head, Top: top, Target: target})
			if err != nil {
				return nil, err
			}
			if result.Squashed {
				output.Status = domain.StatusSquashed
				output.SquashCommit = result.Commit
			}
		}
		return output, t.report(output)
	}

	report, err := t.walker.Walk(ctx, WalkInput{Head: head, Revisions: revisions, Rules: t.settings.Rules})
	if err != nil {
		return nil, err
	}
	output.Walk = report

	if report.Outcome == domain.WalkCompleted {
		output.Status = domain.StatusCompleted
		return output, t.report(output)
	}

	output.Status = domain.StatusBlocked
	if err := t.report(output); err != nil {
		return nil, err
	}
	if input.NoMerge {
		return output, nil
	}

	t.logger.Info(ctx, "handing conflicting revision to git merge", map[string]any{
		"revision": report.FailingRevision,
		"args":     input.MergeArgs,
	})

	code, err := t.handOff.HandOff(ctx, report.FailingRevision, domain.ConflictMessage(report.FailingRevision), input.MergeArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to run git merge on %s: %w", report.FailingRevision, err)
	}
	output.HandedOff = true
	output.ExitCode = code

	return output, nil
}

func (t *TryMerge) report(output *domain.TryMergeOutput) error {
	if err := t.reporter.WriteReport(output); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
