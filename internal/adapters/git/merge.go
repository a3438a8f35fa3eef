package git

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

// merge-tree exit codes.
const (
	mergeTreeClean     = 0
	mergeTreeConflicts = 1
)

// theirsStage is the index stage holding the merged-in side of a conflict.
const theirsStage = "3"

// AttemptMerge computes the three-way merge of theirs into ours with
// `git merge-tree --write-tree`. Only objects are written; refs, the index and the
// work tree are untouched.
func (r *GoGitRepository) AttemptMerge(ctx context.Context, ours, theirs domain.CommitID) (domain.MergeAttemptResult, error) {
	result, err := r.runner.Run(ctx, r.root,
		"merge-tree", "--write-tree", "-z", "--no-messages", string(ours), string(theirs))
	if err != nil {
		return domain.MergeAttemptResult{}, fmt.Errorf("%w: %w", domain.ErrMergeFailed, err)
	}

	switch result.ExitCode {
	case mergeTreeClean, mergeTreeConflicts:
	default:
		return domain.MergeAttemptResult{}, fmt.Errorf("%w: git merge-tree exited with %d: %s",
			domain.ErrMergeFailed, result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	tree, conflicts, err := parseMergeTree(result.Stdout)
	if err != nil {
		return domain.MergeAttemptResult{}, err
	}

	r.logger.Debug(ctx, "computed merge", map[string]any{
		"ours":      ours,
		"theirs":    theirs,
		"tree":      tree,
		"conflicts": len(conflicts),
	})

	if result.ExitCode == mergeTreeClean {
		return domain.Merged(tree, nil), nil
	}
	if len(conflicts) == 0 {
		return domain.MergeAttemptResult{}, fmt.Errorf("%w: merge of %s reported conflicts without paths",
			domain.ErrMergeFailed, theirs)
	}
	return domain.Conflicted(tree, conflicts), nil
}

// parseMergeTree reads the NUL-separated output of `merge-tree --write-tree -z`:
// the tree id followed by "<mode> <object> <stage>\t<path>" entries, one per stage
// of each conflicting path.
func parseMergeTree(output string) (domain.TreeID, []domain.ConflictPath, error) {
	fields := strings.Split(output, "\x00")
	tree := strings.TrimSpace(fields[0])
	if tree == "" {
		return "", nil, fmt.Errorf("%w: merge-tree printed no tree", domain.ErrMergeFailed)
	}

	var conflicts []domain.ConflictPath
	byPath := make(map[string]int)

	for _, field := range fields[1:] {
		if field == "" {
			continue
		}

		meta, path, ok := strings.Cut(field, "\t")
		if !ok {
			return "", nil, fmt.Errorf("%w: malformed merge-tree entry %q", domain.ErrMergeFailed, field)
		}
		parts := strings.Fields(meta)
		if len(parts) != 3 {
			return "", nil, fmt.Errorf("%w: malformed merge-tree entry %q", domain.ErrMergeFailed, field)
		}
		if !utf8.ValidString(path) {
			return "", nil, fmt.Errorf("%w: %q", domain.ErrInvalidPathEncoding, path)
		}

		i, seen := byPath[path]
		if !seen {
			i = len(conflicts)
			byPath[path] = i
			conflicts = append(conflicts, domain.ConflictPath{Path: path})
		}

		if parts[2] == theirsStage {
			conflicts[i].Theirs = &domain.ConflictEntry{Mode: parts[0], Object: parts[1]}
		}
	}

	return domain.TreeID(tree), conflicts, nil
}

// RevisionsBetween lists the commits reachable from upper but not from lower,
// parents before children.
func (r *GoGitRepository) RevisionsBetween(ctx context.Context, lower, upper domain.CommitID) (domain.RevisionRange, error) {
	result, err := r.runner.Run(ctx, r.root,
		"rev-list", "--topo-order", "--reverse", string(upper), "^"+string(lower))
	if err != nil {
		return nil, fmt.Errorf("failed to run git rev-list: %w", err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("git rev-list exited with %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	var revisions domain.RevisionRange
	for _, line := range strings.Split(result.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			revisions = append(revisions, domain.CommitID(line))
		}
	}

	return revisions, nil
}

// HandOff runs `git merge --no-ff` on revision attached to the terminal so the user
// can resolve the conflicts, and returns the exit code of git.
func (r *GoGitRepository) HandOff(ctx context.Context, revision domain.CommitID, message string, extraArgs []string) (int, error) {
	args := append([]string{"merge", "--no-ff", string(revision), "-m", message}, extraArgs...)

	r.logger.Info(ctx, "running git merge", map[string]any{
		"revision": revision,
		"args":     extraArgs,
	})

	code, err := r.runner.RunAttached(ctx, r.root, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to run git merge: %w", err)
	}
	return code, nil
}
