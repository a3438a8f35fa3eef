package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

// fallbackBranch is used when the remote HEAD is unknown.
const fallbackBranch = "master"

const remotesPrefix = "refs/remotes/"

// DefaultUpstream returns the branch refs/remotes/<remote>/HEAD points at, as
// "<remote>/<branch>", or "<remote>/master" when that ref does not exist.
// Returns domain.ErrNoRemote if the remote is not configured.
func (r *GoGitRepository) DefaultUpstream(ctx context.Context, remote string) (string, error) {
	if _, err := r.repo.Remote(remote); err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", fmt.Errorf("%w: %s", domain.ErrNoRemote, remote)
		}
		return "", fmt.Errorf("failed to read remote %s: %w", remote, err)
	}

	ref, err := r.repo.Reference(plumbing.NewRemoteHEADReferenceName(remote), false)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		target := remote + "/" + fallbackBranch
		r.logger.Debug(ctx, "remote HEAD unknown, using fallback", map[string]any{
			"remote": remote,
			"target": target,
		})
		return target, nil
	case err != nil:
		return "", fmt.Errorf("failed to read HEAD of %s: %w", remote, err)
	}

	if ref.Type() != plumbing.SymbolicReference {
		return remote + "/" + fallbackBranch, nil
	}
	return strings.TrimPrefix(ref.Target().String(), remotesPrefix), nil
}

// UpdateRemoteTracking fetches the branch behind a remote-tracking name such as
// "origin/main" into refs/remotes/origin/main. Names that are not existing
// remote-tracking branches are left alone.
func (r *GoGitRepository) UpdateRemoteTracking(ctx context.Context, name string) error {
	remote, branch, ok := r.splitRemoteName(name)
	if !ok {
		r.logger.Debug(ctx, "not a remote-tracking branch, skipping fetch", map[string]any{
			"name": name,
		})
		return nil
	}

	tracking := plumbing.NewRemoteReferenceName(remote.Config().Name, branch)
	if _, err := r.repo.Reference(tracking, false); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			r.logger.Debug(ctx, "remote-tracking ref does not exist, skipping fetch", map[string]any{
				"ref": tracking.String(),
			})
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", tracking, err)
	}

	refSpec := config.RefSpec(fmt.Sprintf("+%s:%s", plumbing.NewBranchReferenceName(branch), tracking))
	return r.fetch(ctx, remote, refSpec)
}

// splitRemoteName finds the configured remote whose name prefixes name. The longest
// match wins so remotes containing "/" are handled.
func (r *GoGitRepository) splitRemoteName(name string) (*git.Remote, string, bool) {
	remotes, err := r.repo.Remotes()
	if err != nil {
		return nil, "", false
	}

	var best *git.Remote
	for _, remote := range remotes {
		prefix := remote.Config().Name + "/"
		if !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
			continue
		}
		if best == nil || len(prefix) > len(best.Config().Name)+1 {
			best = remote
		}
	}
	if best == nil {
		return nil, "", false
	}

	return best, strings.TrimPrefix(name, best.Config().Name+"/"), true
}

// fetch tries each authentication method in turn. Only rejected credentials move on
// to the next method; any other failure is returned as is.
func (r *GoGitRepository) fetch(ctx context.Context, remote *git.Remote, refSpec config.RefSpec) error {
	remoteName := remote.Config().Name
	var url string
	if urls := remote.Config().URLs; len(urls) > 0 {
		url = urls[0]
	}

	var lastErr error
	for attempt, auth := range r.auth.Methods(url) {
		err := remote.FetchContext(ctx, &git.FetchOptions{
			RemoteName: remoteName,
			RefSpecs:   []config.RefSpec{refSpec},
			Auth:       auth,
		})
		if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
			r.logger.Debug(ctx, "fetched remote-tracking branch", map[string]any{
				"remote":  remoteName,
				"refspec": refSpec.String(),
				"attempt": attempt + 1,
			})
			return nil
		}
		if !isAuthError(err) {
			return fmt.Errorf("failed to fetch %s from %s: %w", refSpec, remoteName, err)
		}

		r.logger.Warn(ctx, "authentication rejected, trying next method", map[string]any{
			"remote":  remoteName,
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
		lastErr = err
	}

	return fmt.Errorf("failed to fetch %s from %s: %w", refSpec, remoteName, lastErr)
}
