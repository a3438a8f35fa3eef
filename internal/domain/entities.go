// Package domain defines the core entities and interfaces for git-try-merge.
package domain

import (
	"fmt"
	"strings"
)

// CommitID is the full hexadecimal object id of a commit.
type CommitID string

// String returns the id as text.
func (id CommitID) String() string {
	return string(id)
}

// TreeID is the full hexadecimal object id of a tree.
type TreeID string

// Commit is an immutable snapshot node.
type Commit struct {
	// ID is the commit's object id.
	ID CommitID

	// Parents are ordered; the first parent is the line the commit was made on.
	Parents []CommitID

	// Message is the raw commit message.
	Message string

	// Tree is the snapshot the commit records.
	Tree TreeID
}

// FirstParent returns the first parent and whether the commit has one.
func (c Commit) FirstParent() (CommitID, bool) {
	if len(c.Parents) == 0 {
		return "", false
	}
	return c.Parents[0], true
}

// IsMarker reports whether the commit was generated by an automatic merge step.
func (c Commit) IsMarker() bool {
	return strings.HasPrefix(c.Message, MarkerPrefix)
}

// RevisionRange is a topologically sorted, oldest-first list of commits that are
// reachable from an upper bound and not from a lower bound. The lower bound is never
// part of the range.
type RevisionRange []CommitID

// ConflictEntry is the stage-3 ("theirs") index entry of a conflicted path.
type ConflictEntry struct {
	// Mode is the octal file mode, e.g. "100644".
	Mode string

	// Object is the blob id of the upstream version.
	Object string
}

// ConflictPath is a repository-relative path the merge engine could not reconcile.
type ConflictPath struct {
	// Path is slash separated and relative to the repository root.
	Path string

	// Theirs is nil when the upstream side has no version of the path (deleted).
	Theirs *ConflictEntry
}

// MergeOutcome tags a MergeAttemptResult.
type MergeOutcome int

const (
	// MergeClean means the engine produced a tree without conflicts.
	MergeClean MergeOutcome = iota
	// MergeConflicted means at least one path conflicted.
	MergeConflicted
)

// String implements fmt.Stringer.
func (o MergeOutcome) String() string {
	switch o {
	case MergeClean:
		return "merged"
	case MergeConflicted:
		return "conflicted"
	default:
		return fmt.Sprintf("MergeOutcome(%d)", int(o))
	}
}

// MergeAttemptResult is the result of a merge computation. Exactly one of
// AutoResolved (for MergeClean) or Conflicts (for MergeConflicted) is meaningful.
type MergeAttemptResult struct {
	Outcome MergeOutcome

	// Tree is the computed tree. For a conflicted attempt it contains conflict
	// markers and must not be committed as is.
	Tree TreeID

	// AutoResolved lists paths that conflicted but were resolved by policy.
	AutoResolved []string

	// Conflicts lists every conflicting path of a conflicted attempt.
	Conflicts []ConflictPath
}

// Merged builds a clean merge result.
func Merged(tree TreeID, autoResolved []string) MergeAttemptResult {
	return MergeAttemptResult{Outcome: MergeClean, Tree: tree, AutoResolved: autoResolved}
}

// Conflicted builds a conflicted merge result.
func Conflicted(tree TreeID, conflicts []ConflictPath) MergeAttemptResult {
	return MergeAttemptResult{Outcome: MergeConflicted, Tree: tree, Conflicts: conflicts}
}

// WalkOutcome is the terminal state of a merge walk.
type WalkOutcome int

const (
	// WalkCompleted means every pending revision was merged.
	WalkCompleted WalkOutcome = iota
	// WalkBlocked means the walk stopped on a revision with a genuine conflict.
	WalkBlocked
)

// String implements fmt.Stringer.
func (o WalkOutcome) String() string {
	switch o {
	case WalkCompleted:
		return "completed"
	case WalkBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("WalkOutcome(%d)", int(o))
	}
}

// WalkReport is what remains of a walk once it has terminated.
type WalkReport struct {
	Outcome WalkOutcome

	// Head is HEAD after the walk.
	Head CommitID

	// Created lists the merge commits written, oldest first.
	Created []CommitID

	// LastMerged is the last revision merged successfully, empty if none.
	LastMerged CommitID

	// IgnoredPaths are the paths that conflicted but were ignored, sorted and without duplicates.
	IgnoredPaths []string

	// FailingRevision is the blocking revision; empty unless Outcome is WalkBlocked.
	FailingRevision CommitID

	// SucceededCount is the number of revisions merged.
	SucceededCount int

	// SkippedCount is the number of revisions not merged, the failing one included.
	SkippedCount int
}

// RunStatus is the overall result of a try-merge invocation.
type RunStatus int

const (
	// StatusUpToDate means there was nothing to merge and nothing to squash.
	StatusUpToDate RunStatus = iota
	// StatusSquashed means generated merge commits were squashed.
	StatusSquashed
	// StatusCompleted means every upstream revision was merged.
	StatusCompleted
	// StatusBlocked means the walk stopped on a conflicting revision.
	StatusBlocked
)

// String implements fmt.Stringer.
func (s RunStatus) String() string {
	switch s {
	case StatusUpToDate:
		return "up-to-date"
	case StatusSquashed:
		return "squashed"
	case StatusCompleted:
		return "completed"
	case StatusBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("RunStatus(%d)", int(s))
	}
}

// TryMergeInput contains the parameters of a try-merge invocation.
type TryMergeInput struct {
	// Revision is the upstream target; empty selects the remote's default branch.
	Revision string

	// Squash requests squashing generated merges when already caught up.
	Squash bool

	// NoMerge suppresses the manual-resolution hand-off.
	NoMerge bool

	// MergeArgs are forwarded verbatim to the hand-off.
	MergeArgs []string
}

// TryMergeOutput is the result of a try-merge invocation.
type TryMergeOutput struct {
	Status RunStatus

	// Target is the revision name the branch was advanced towards.
	Target string

	// Walk is set when a walk ran.
	Walk *WalkReport

	// SquashCommit is the new merge commit when Status is StatusSquashed.
	SquashCommit CommitID

	// HandedOff is true when the failing revision was passed to the merge tool.
	HandedOff bool

	// ExitCode is the exit code of the hand-off, zero otherwise.
	ExitCode int
}

// Generated commit messages. The squasher recognises its input by MarkerPrefix.
const (
	MarkerPrefix = "Merge commit"

	noConflictMessageFormat = "Merge commit %s (no conflict)\n\n"
	conflictMessageFormat   = "Merge commit %s (conflicts)\n\n"
	squashMessageFormat     = "Merge branch %s"
)

// NoConflictMessage is the message of an automatic merge step.
func NoConflictMessage(revision CommitID) string {
	return fmt.Sprintf(noConflictMessageFormat, revision)
}

// ConflictMessage is the message handed to the manual merge of a blocking revision.
func ConflictMessage(revision CommitID) string {
	return fmt.Sprintf(conflictMessageFormat, revision)
}

// SquashMessage is the message of a squashed merge.
func SquashMessage(target string) string {
	return fmt.Sprintf(squashMessageFormat, target)
}

// Defaults.
const (
	// DefaultRemote is the remote whose default branch is the implicit target.
	DefaultRemote = "origin"

	// DefaultSquashScanLimit bounds the first-parent history read by the squasher.
	DefaultSquashScanLimit = 1000
)
