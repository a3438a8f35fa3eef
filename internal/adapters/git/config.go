package git

import (
	"context"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Committer identity used when user.name or user.email are not configured.
const (
	fallbackName  = "git-try-merge"
	fallbackEmail = "git-try-merge@localhost"
)

// ConfigValues returns every value of section.key from the global configuration
// followed by the repository configuration. Later values take precedence for
// single-valued keys.
func (r *GoGitRepository) ConfigValues(ctx context.Context, section, key string) ([]string, error) {
	configs, err := r.configs(ctx)
	if err != nil {
		return nil, err
	}

	var values []string
	for _, cfg := range configs {
		if !cfg.Raw.HasSection(section) {
			continue
		}
		values = append(values, cfg.Raw.Section(section).Options.GetAll(key)...)
	}

	return values, nil
}

// configs loads the global and local configuration separately. go-git's scoped
// loading merges typed fields only and drops custom sections of the global file.
func (r *GoGitRepository) configs(ctx context.Context) ([]*config.Config, error) {
	var configs []*config.Config

	global, err := config.LoadConfig(config.GlobalScope)
	if err != nil {
		r.logger.Warn(ctx, "failed to read global git config", map[string]any{
			"error": err.Error(),
		})
	} else {
		configs = append(configs, global)
	}

	local, err := r.repo.Config()
	if err != nil {
		return nil, fmt.Errorf("failed to read repository config: %w", err)
	}

	return append(configs, local), nil
}

// signature builds the author and committer of generated commits from user.name and
// user.email, local configuration first.
func (r *GoGitRepository) signature(ctx context.Context, when time.Time) object.Signature {
	sig := object.Signature{When: when}

	configs, err := r.configs(ctx)
	if err == nil {
		for _, cfg := range configs {
			if cfg.User.Name != "" {
				sig.Name = cfg.User.Name
			}
			if cfg.User.Email != "" {
				sig.Email = cfg.User.Email
			}
		}
	}

	if sig.Name == "" {
		sig.Name = fallbackName
	}
	if sig.Email == "" {
		sig.Email = fallbackEmail
	}

	return sig
}
