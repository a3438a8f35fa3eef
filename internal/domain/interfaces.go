// Package domain defines the core entities and interfaces for git-try-merge.
// This package contains no external dependencies and represents the innermost layer
// of the CLEAN architecture.
package domain

import (
	"context"
	"errors"
)

// Domain errors.
var (
	// ErrRepositoryNotFound indicates the specified path is not a valid Git repository.
	ErrRepositoryNotFound = errors.New("git repository not found at specified path")

	// ErrUncommittedChanges indicates the work tree or index differs from HEAD.
	ErrUncommittedChanges = errors.New("the repository has uncommitted changes, aborting")

	// ErrRevisionNotFound indicates a name could not be resolved to a commit.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrInvalidPathEncoding indicates a conflicting path is not valid UTF-8.
	ErrInvalidPathEncoding = errors.New("conflicting path is not valid UTF-8")

	// ErrHeadMoved indicates HEAD changed under a run that was about to move it.
	ErrHeadMoved = errors.New("HEAD was moved by another process")

	// ErrMergeFailed indicates the merge engine failed without producing a result.
	ErrMergeFailed = errors.New("merge computation failed")

	// ErrNoRemote indicates the remote of a remote-tracking name is not configured.
	ErrNoRemote = errors.New("remote not configured")
)

// Repository is the façade over the version-control engine consumed by the merge walk
// and the squasher. Every call is blocking and synchronous.
type Repository interface {
	// Resolve resolves a branch, tag, remote-tracking name or hash to a commit.
	// Returns ErrRevisionNotFound if the name does not resolve.
	Resolve(ctx context.Context, name string) (CommitID, error)

	// RevisionsBetween lists commits reachable from upper and not from lower,
	// topologically sorted oldest first.
	RevisionsBetween(ctx context.Context, lower, upper CommitID) (RevisionRange, error)

	// AttemptMerge computes the three-way merge of theirs into ours without touching
	// branch pointers, the index or the work tree. Every conflicting path is reported.
	AttemptMerge(ctx context.Context, ours, theirs CommitID) (MergeAttemptResult, error)

	// RestageWithTheirs returns tree with conflict.Path replaced by the upstream version.
	RestageWithTheirs(ctx context.Context, tree TreeID, conflict ConflictPath) (TreeID, error)

	// WriteCommit stores a commit object. The commit is not reachable until MoveHead.
	WriteCommit(ctx context.Context, tree TreeID, parents []CommitID, message string) (CommitID, error)

	// MoveHead points the checked-out branch (or a detached HEAD) at target, provided
	// it still points at expected. Returns ErrHeadMoved otherwise.
	MoveHead(ctx context.Context, target, expected CommitID) error

	// HasUncommittedChanges reports staged or unstaged changes to tracked files.
	HasUncommittedChanges(ctx context.Context) (bool, error)

	// ForceCheckout syncs the index and work tree to commit, discarding changes.
	ForceCheckout(ctx context.Context, commit CommitID) error

	// FirstParentHistory returns from and its first-parent ancestors, newest first,
	// at most limit commits.
	FirstParentHistory(ctx context.Context, from CommitID, limit int) ([]Commit, error)
}

// Upstream gives access to remote-tracking state.
type Upstream interface {
	// DefaultUpstream returns "<remote>/<branch>" for the remote's default branch,
	// or "<remote>/master" when the remote HEAD is unknown.
	DefaultUpstream(ctx context.Context, remote string) (string, error)

	// UpdateRemoteTracking fetches name from its remote when name is a
	// remote-tracking branch. Other names are left alone.
	UpdateRemoteTracking(ctx context.Context, name string) error
}

// MergeHandOff passes a conflicting revision to the interactive merge primitive.
type MergeHandOff interface {
	// HandOff merges revision in conflict-preserving mode and returns the exit code
	// of the merge tool.
	HandOff(ctx context.Context, revision CommitID, message string, extraArgs []string) (int, error)
}

// LocalGitRepository is everything try-merge needs from a local checkout.
type LocalGitRepository interface {
	Repository
	Upstream
	MergeHandOff

	// Close releases any resources held by the repository.
	Close() error
}

// ReportWriter renders the outcome of a run for the user.
type ReportWriter interface {
	// WriteReport writes the human-readable summary of output.
	WriteReport(output *TryMergeOutput) error
}

// TryMerger drives a whole try-merge invocation.
type TryMerger interface {
	// Run advances HEAD towards the requested revision.
	Run(ctx context.Context, input TryMergeInput) (*TryMergeOutput, error)
}
