package git

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

// RestageWithTheirs writes a copy of tree in which conflict.Path holds the upstream
// blob, rewriting every tree on the way to it.
func (r *GoGitRepository) RestageWithTheirs(ctx context.Context, tree domain.TreeID, conflict domain.ConflictPath) (domain.TreeID, error) {
	if conflict.Theirs == nil {
		return "", fmt.Errorf("no upstream version of %s to restage", conflict.Path)
	}

	mode, err := filemode.New(conflict.Theirs.Mode)
	if err != nil {
		return "", fmt.Errorf("invalid mode %q for %s: %w", conflict.Theirs.Mode, conflict.Path, err)
	}

	entry := object.TreeEntry{Mode: mode, Hash: plumbing.NewHash(conflict.Theirs.Object)}
	parts := strings.Split(conflict.Path, "/")

	root, err := r.replaceEntry(plumbing.NewHash(string(tree)), parts, entry)
	if err != nil {
		return "", fmt.Errorf("failed to restage %s: %w", conflict.Path, err)
	}

	r.logger.Debug(ctx, "restaged upstream version", map[string]any{
		"path": conflict.Path,
		"tree": root,
	})

	return domain.TreeID(root.String()), nil
}

// replaceEntry stores a copy of the tree at hash (empty when zero) with the entry at
// parts replaced, and returns the new tree's hash.
func (r *GoGitRepository) replaceEntry(hash plumbing.Hash, parts []string, leaf object.TreeEntry) (plumbing.Hash, error) {
	var entries []object.TreeEntry
	if !hash.IsZero() {
		tree, err := object.GetTree(r.repo.Storer, hash)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to read tree %s: %w", hash, err)
		}
		entries = append(entries, tree.Entries...)
	}

	name := parts[0]
	pos := -1
	for i, e := range entries {
		if e.Name == name {
			pos = i
			break
		}
	}

	replacement := leaf
	replacement.Name = name
	if len(parts) > 1 {
		var subtree plumbing.Hash
		if pos >= 0 && entries[pos].Mode == filemode.Dir {
			subtree = entries[pos].Hash
		}
		sub, err := r.replaceEntry(subtree, parts[1:], leaf)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		replacement = object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: sub}
	}

	if pos >= 0 {
		entries[pos] = replacement
	} else {
		entries = append(entries, replacement)
	}
	sortTreeEntries(entries)

	return r.writeTree(entries)
}

func (r *GoGitRepository) writeTree(entries []object.TreeEntry) (plumbing.Hash, error) {
	tree := object.Tree{Entries: entries}

	obj := r.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}

	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}

	return hash, nil
}

// sortTreeEntries orders entries the way git does: by name, with directories
// compared as if their name ended in "/".
func sortTreeEntries(entries []object.TreeEntry) {
	key := func(e object.TreeEntry) string {
		if e.Mode == filemode.Dir {
			return e.Name + "/"
		}
		return e.Name
	}
	sort.Slice(entries, func(i, j int) bool {
		return key(entries[i]) < key(entries[j])
	})
}
