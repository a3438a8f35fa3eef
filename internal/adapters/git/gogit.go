// Package git provides adapters for interacting with local Git repositories.
// This package implements the domain.LocalGitRepository interface using go-git/v5,
// falling back to the git binary for merge computation, topological revision listing
// and the interactive merge hand-off.
package git

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

// Logger defines the logging interface for the git adapter.
// This interface enables dependency injection and testability.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]any)
	Debug(ctx context.Context, msg string, fields map[string]any)
	Warn(ctx context.Context, msg string, fields map[string]any)
}

// GoGitRepository implements domain.LocalGitRepository using go-git/v5.
type GoGitRepository struct {
	repo   *git.Repository
	path   string
	root   string
	runner CommandRunner
	auth   *AuthProvider
	logger Logger
}

// Option customises a GoGitRepository.
type Option func(*GoGitRepository)

// WithCommandRunner replaces the runner used for native git invocations.
func WithCommandRunner(runner CommandRunner) Option {
	return func(r *GoGitRepository) {
		r.runner = runner
	}
}

// WithAuthProvider sets the credentials used when fetching.
func WithAuthProvider(auth *AuthProvider) Option {
	return func(r *GoGitRepository) {
		r.auth = auth
	}
}

// NewGoGitRepository opens the repository containing path, searching parent
// directories for the .git directory.
// Returns domain.ErrRepositoryNotFound if no repository is found.
func NewGoGitRepository(path string, log Logger, opts ...Option) (*GoGitRepository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRepositoryNotFound, path)
	}

	root := path
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}

	r := &GoGitRepository{
		repo:   repo,
		path:   path,
		root:   root,
		runner: NewOSCommandRunner(),
		auth:   NewAuthProvider(""),
		logger: log,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// SetAuthProvider replaces the fetch credentials once configuration is loaded.
func (r *GoGitRepository) SetAuthProvider(auth *AuthProvider) {
	if auth != nil {
		r.auth = auth
	}
}

// Root returns the top-level directory of the work tree.
func (r *GoGitRepository) Root() string {
	return r.root
}

// Resolve resolves a branch, tag, remote-tracking name or hash to a commit id.
func (r *GoGitRepository) Resolve(_ context.Context, name string) (domain.CommitID, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(name))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrRevisionNotFound, name, err)
	}
	return domain.CommitID(hash.String()), nil
}

// FirstParentHistory follows first parents from `from`, newest first, reading at
// most limit commits.
func (r *GoGitRepository) FirstParentHistory(ctx context.Context, from domain.CommitID, limit int) ([]domain.Commit, error) {
	var history []domain.Commit
	current := plumbing.NewHash(string(from))

	for len(history) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		commit, err := r.repo.CommitObject(current)
		if err != nil {
			return nil, fmt.Errorf("failed to read commit %s: %w", current, err)
		}
		history = append(history, toDomainCommit(commit))

		if len(commit.ParentHashes) == 0 {
			break
		}
		current = commit.ParentHashes[0]
	}

	r.logger.Debug(ctx, "read first-parent history", map[string]any{
		"from":    from,
		"limit":   limit,
		"commits": len(history),
	})

	return history, nil
}

// WriteCommit stores a commit object signed with the configured user.
// No reference is updated.
func (r *GoGitRepository) WriteCommit(ctx context.Context, tree domain.TreeID, parents []domain.CommitID, message string) (domain.CommitID, error) {
	signature := r.signature(ctx, time.Now())

	parentHashes := make([]plumbing.Hash, 0, len(parents))
	for _, parent := range parents {
		parentHashes = append(parentHashes, plumbing.NewHash(string(parent)))
	}

	commit := object.Commit{
		Author:       signature,
		Committer:    signature,
		Message:      message,
		TreeHash:     plumbing.NewHash(string(tree)),
		ParentHashes: parentHashes,
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return "", fmt.Errorf("failed to encode commit: %w", err)
	}

	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("failed to store commit: %w", err)
	}

	return domain.CommitID(hash.String()), nil
}

// MoveHead points the checked-out branch, or HEAD itself when detached, at target.
// The update is a compare-and-swap against expected.
func (r *GoGitRepository) MoveHead(ctx context.Context, target, expected domain.CommitID) error {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return fmt.Errorf("failed to read HEAD: %w", err)
	}

	name := plumbing.HEAD
	if head.Type() == plumbing.SymbolicReference {
		name = head.Target()
	}

	updated := plumbing.NewHashReference(name, plumbing.NewHash(string(target)))
	previous := plumbing.NewHashReference(name, plumbing.NewHash(string(expected)))

	if err := r.repo.Storer.CheckAndSetReference(updated, previous); err != nil {
		if errors.Is(err, storage.ErrReferenceHasChanged) {
			return fmt.Errorf("%w: %s no longer points at %s", domain.ErrHeadMoved, name, expected)
		}
		return fmt.Errorf("failed to update %s: %w", name, err)
	}

	r.logger.Debug(ctx, "moved HEAD", map[string]any{
		"ref":  name.String(),
		"from": expected,
		"to":   target,
	})

	return nil
}

// HasUncommittedChanges reports staged or unstaged changes to tracked files.
// Untracked files are ignored.
func (r *GoGitRepository) HasUncommittedChanges(_ context.Context) (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to open work tree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("failed to read work tree status: %w", err)
	}

	for _, file := range status {
		if file.Staging == git.Untracked && file.Worktree == git.Untracked {
			continue
		}
		if file.Staging != git.Unmodified || file.Worktree != git.Unmodified {
			return true, nil
		}
	}

	return false, nil
}

// ForceCheckout resets the index and work tree to commit.
func (r *GoGitRepository) ForceCheckout(ctx context.Context, commit domain.CommitID) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open work tree: %w", err)
	}

	if err := wt.Reset(&git.ResetOptions{
		Commit: plumbing.NewHash(string(commit)),
		Mode:   git.HardReset,
	}); err != nil {
		return fmt.Errorf("failed to check out %s: %w", commit, err)
	}

	r.logger.Debug(ctx, "checked out work tree", map[string]any{
		"commit": commit,
	})

	return nil
}

// Close releases any resources held by the repository.
// For go-git, this is a no-op as the repository doesn't hold persistent resources.
func (r *GoGitRepository) Close() error {
	return nil
}

func toDomainCommit(commit *object.Commit) domain.Commit {
	parents := make([]domain.CommitID, 0, len(commit.ParentHashes))
	for _, parent := range commit.ParentHashes {
		parents = append(parents, domain.CommitID(parent.String()))
	}
	return domain.Commit{
		ID:      domain.CommitID(commit.Hash.String()),
		Parents: parents,
		Message: commit.Message,
		Tree:    domain.TreeID(commit.TreeHash.String()),
	}
}
