// Package main is the entry point for the git-try-merge CLI application.
// git-try-merge merges as many upstream commits as possible into the current branch
// without conflicts, one merge commit per upstream commit.
package main

import (
	"context"
	"os"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/logger"

	"github.com/MyCarrier-DevOps/git-try-merge/cmd"
	"github.com/MyCarrier-DevOps/git-try-merge/internal/adapters/git"
	logadapter "github.com/MyCarrier-DevOps/git-try-merge/internal/adapters/logger"
	"github.com/MyCarrier-DevOps/git-try-merge/internal/adapters/output"
	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
	"github.com/MyCarrier-DevOps/git-try-merge/internal/infrastructure/config"
	"github.com/MyCarrier-DevOps/git-try-merge/internal/usecases"
)

func main() {
	// Wire up production dependencies
	deps := &cmd.Dependencies{
		// The zap logger reads LOG_LEVEL when it is built, so it is created after
		// the flags have been applied.
		LoggerFactory: func() cmd.Logger {
			return logadapter.NewZapAdapter(logger.NewZapLoggerFromConfig())
		},

		GitRepoFactory: func(path string, log cmd.Logger) (domain.LocalGitRepository, error) {
			return git.NewGoGitRepository(path, component(log, "gogit"))
		},

		ConfigLoader: func(ctx context.Context, repo domain.LocalGitRepository) (*cmd.AppConfig, error) {
			source, ok := repo.(config.Source)
			if !ok {
				return nil, newConfigTypeError("config.Source")
			}
			cfg, err := config.Load(ctx, source)
			if err != nil {
				return nil, err
			}
			return &cmd.AppConfig{
				Squash:          cfg.Squash,
				IgnoreConflicts: cfg.IgnoreConflicts,
				Remote:          cfg.Remote,
				SquashScanLimit: cfg.SquashScanLimit,
				Token:           cfg.Token,
				LogLevel:        cfg.LogLevel,
				LogAppName:      cfg.LogAppName,
			}, nil
		},

		TryMergeFactory: func(
			repo domain.LocalGitRepository,
			cfg *cmd.AppConfig,
			reporter domain.ReportWriter,
			log cmd.Logger,
		) (domain.TryMerger, error) {
			rules, err := usecases.NewIgnoreRuleSet(cfg.IgnoreConflicts)
			if err != nil {
				return nil, err
			}

			if gitRepo, ok := repo.(*git.GoGitRepository); ok {
				gitRepo.SetAuthProvider(git.NewAuthProvider(cfg.Token))
			}

			return usecases.NewTryMerge(repo, repo, repo, reporter, usecases.Settings{
				Remote:          cfg.Remote,
				DefaultSquash:   cfg.Squash,
				Rules:           rules,
				SquashScanLimit: cfg.SquashScanLimit,
			}, component(log, "trymerge")), nil
		},

		ReportWriterFactory: func() domain.ReportWriter {
			return output.NewWriter()
		},

		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	cmd.SetDefaultDependencies(deps)
	cmd.Execute()
}

// component tags entries written through log with the component name when log
// supports bound fields.
func component(log cmd.Logger, name string) cmd.Logger {
	if adapter, ok := log.(*logadapter.ZapAdapter); ok {
		return adapter.Component(name)
	}
	return log
}

func newConfigTypeError(expected string) error {
	return &configTypeError{expected: expected}
}

// configTypeError is returned when configuration type assertion fails.
type configTypeError struct {
	expected string
}

func (e *configTypeError) Error() string {
	return "invalid configuration type: expected " + e.expected
}
