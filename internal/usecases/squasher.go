package usecases

import (
	"context"
	"fmt"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

// SquashInput contains the parameters of a squash.
type SquashInput struct {
	// Head is the commit HEAD points at.
	Head domain.CommitID

	// Top is the upstream commit HEAD is caught up with.
	Top domain.CommitID

	// Target is the name of the upstream revision, used in the commit message.
	Target string
}

// SquashResult describes a squash.
type SquashResult struct {
	// Squashed is false when fewer than two generated merges were found.
	Squashed bool

	// Commit is the new merge commit.
	Commit domain.CommitID

	// Base is the first parent of the new commit.
	Base domain.CommitID

	// Folded is the number of generated merges replaced.
	Folded int
}

// Squasher collapses a run of generated merge commits at the tip of HEAD into a
// single merge of the upstream target.
type Squasher struct {
	repo      domain.Repository
	scanLimit int
	logger    Logger
}

// NewSquasher creates a Squasher reading at most scanLimit first-parent ancestors.
func NewSquasher(repo domain.Repository, scanLimit int, log Logger) *Squasher {
	if scanLimit <= 0 {
		scanLimit = domain.DefaultSquashScanLimit
	}
	return &Squasher{
		repo:      repo,
		scanLimit: scanLimit,
		logger:    log,
	}
}

// Squash replaces the maximal first-parent run of generated merges ending at HEAD
// with one commit whose tree is HEAD's tree and whose parents are the commit before
// the run and input.Top. User-authored commits end the run and are never folded.
// A run that fills the whole scan window may continue below it, so it is left alone
// rather than folded partially.
func (s *Squasher) Squash(ctx context.Context, input SquashInput) (*SquashResult, error) {
	history, err := s.repo.FirstParentHistory(ctx, input.Head, s.scanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history of %s: %w", input.Head, err)
	}

	run := 0
	for run < len(history) && history[run].IsMarker() {
		run++
	}

	if run == len(history) && run == s.scanLimit {
		s.logger.Warn(ctx, "generated merges exceed the scan limit, not squashing", map[string]any{
			"head":       input.Head,
			"scan_limit": s.scanLimit,
		})
		return &SquashResult{}, nil
	}

	if run < 2 {
		s.logger.Debug(ctx, "nothing to squash", map[string]any{
			"head":          input.Head,
			"marker_merges": run,
		})
		return &SquashResult{}, nil
	}

	last := history[run-1]
	base, ok := last.FirstParent()
	if !ok {
		return nil, fmt.Errorf("generated merge %s has no parent", last.ID)
	}

	tree := history[0].Tree
	commit, err := s.repo.WriteCommit(ctx, tree, []domain.CommitID{base, input.Top}, domain.SquashMessage(input.Target))
	if err != nil {
		return nil, fmt.Errorf("failed to write squashed merge: %w", err)
	}
	if err := s.repo.MoveHead(ctx, commit, input.Head); err != nil {
		return nil, fmt.Errorf("failed to move HEAD to squashed merge: %w", err)
	}

	s.logger.Info(ctx, "squashed generated merges", map[string]any{
		"commit": commit,
		"base":   base,
		"top":    input.Top,
		"folded": run,
	})

	return &SquashResult{
		Squashed: true,
		Commit:   commit,
		Base:     base,
		Folded:   run,
	}, nil
}
