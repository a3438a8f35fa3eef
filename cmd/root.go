// Package cmd provides the CLI commands for git-try-merge.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

// Logger defines the logging interface used by the command.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]any)
	Debug(ctx context.Context, msg string, fields map[string]any)
	Warn(ctx context.Context, msg string, fields map[string]any)
	Error(ctx context.Context, msg string, err error, fields map[string]any)
}

// Dependencies holds all injectable dependencies for the command.
// This enables testing by allowing mock implementations to be injected.
type Dependencies struct {
	// LoggerFactory creates a logger instance.
	LoggerFactory func() Logger

	// GitRepoFactory opens the repository containing path.
	GitRepoFactory func(path string, log Logger) (domain.LocalGitRepository, error)

	// ConfigLoader loads application configuration, including the repository's git config.
	ConfigLoader func(ctx context.Context, repo domain.LocalGitRepository) (*AppConfig, error)

	// TryMergeFactory creates the use case driving a run.
	TryMergeFactory func(
		repo domain.LocalGitRepository,
		cfg *AppConfig,
		reporter domain.ReportWriter,
		log Logger,
	) (domain.TryMerger, error)

	// ReportWriterFactory creates the writer for the run summary.
	ReportWriterFactory func() domain.ReportWriter

	// Stdout is the writer for standard output.
	Stdout io.Writer

	// Stderr is the writer for standard error (for warnings/errors).
	Stderr io.Writer
}

// AppConfig holds application configuration loaded by ConfigLoader.
type AppConfig struct {
	// Squash folds generated merges once nothing is left to merge.
	Squash bool

	// IgnoreConflicts are glob patterns of paths whose conflicts take the upstream side.
	IgnoreConflicts []string

	// Remote provides the default target revision.
	Remote string

	// SquashScanLimit bounds the history read by the squash.
	SquashScanLimit int

	// Token authenticates https fetches.
	Token string

	// LogLevel is the log level setting.
	LogLevel string

	// LogAppName is the application name for logging.
	LogAppName string
}

// ExitError carries the exit code of the merge hand-off.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("git merge exited with status %d", e.Code)
}

// options holds the command-line flags of one command instance.
type options struct {
	squash  bool
	noMerge bool
	verbose bool
	path    string
}

// defaultDeps holds the production dependencies.
// This is set by the production wiring in main or via SetDefaultDependencies.
var defaultDeps *Dependencies

// SetDefaultDependencies sets the default dependencies for production use.
// This should be called from main() before Execute().
func SetDefaultDependencies(deps *Dependencies) {
	defaultDeps = deps
}

// NewRootCmd creates the root command for git-try-merge.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(defaultDeps)
}

// NewRootCmdWithDeps creates the root command with explicit dependencies.
// This is the primary constructor that enables testing via dependency injection.
func NewRootCmdWithDeps(deps *Dependencies) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "git-try-merge [<revision>] [-- <merge args>...]",
		Short: "Merge as many upstream commits as possible without conflicts",
		Long: `git-try-merge merges the commits of an upstream revision into the current branch
one at a time, oldest first, and stops at the first commit that conflicts.

Every commit that merges cleanly gets its own merge commit. Conflicts on paths
matching a try-merge.ignore-conflict glob are resolved by taking the upstream
version. When a real conflict is found, the remaining commits are handed to
'git merge' so the conflicts can be resolved by hand.

When nothing is left to merge, --squash (or try-merge.squash) folds the merge
commits created by previous runs into a single merge.

Examples:
  # Merge the default branch of origin
  git try-merge

  # Merge a specific branch
  git try-merge origin/release

  # Report the first conflict without starting git merge
  git try-merge -u

  # Pass options to git merge
  git try-merge origin/main -- --no-edit

  # Collapse the generated merge commits
  git try-merge --squash`,
		Args: func(cmd *cobra.Command, args []string) error {
			revisions, _ := splitArgs(cmd, args)
			if len(revisions) > 1 {
				return fmt.Errorf("accepts at most 1 revision, received %d", len(revisions))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTryMerge(cmd, args, opts, deps)
		},
	}

	// Define flags
	rootCmd.Flags().BoolVar(&opts.squash, "squash", false,
		"Squash the generated merge commits when there is nothing left to merge")
	rootCmd.Flags().BoolVarP(&opts.noMerge, "no-merge", "u", false,
		"Do not run git merge on the first conflicting commit")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable verbose/debug logging")
	rootCmd.Flags().StringVarP(&opts.path, "path", "C", ".",
		"Run as if started in this directory")

	return rootCmd
}

// splitArgs separates the revision from the arguments after "--".
func splitArgs(cmd *cobra.Command, args []string) (revisions, mergeArgs []string) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}

// runTryMerge executes a try-merge run with injected dependencies.
func runTryMerge(cmd *cobra.Command, args []string, opts *options, deps *Dependencies) error {
	if deps == nil {
		return errors.New("dependencies not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	stderr := deps.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	// Set log level based on verbose flag (best-effort)
	if opts.verbose {
		if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
			writeWarningf(stderr, "warning: could not set log level: %v\n", err)
		}
	}

	log := deps.LoggerFactory()

	revisions, mergeArgs := splitArgs(cmd, args)
	input := domain.TryMergeInput{
		Squash:    opts.squash,
		NoMerge:   opts.noMerge,
		MergeArgs: mergeArgs,
	}
	if len(revisions) > 0 {
		input.Revision = revisions[0]
	}

	log.Info(ctx, "starting git-try-merge", map[string]any{
		"path":       opts.path,
		"revision":   input.Revision,
		"squash":     input.Squash,
		"no_merge":   input.NoMerge,
		"merge_args": input.MergeArgs,
	})

	gitRepo, err := deps.GitRepoFactory(opts.path, log)
	if err != nil {
		log.Error(ctx, "failed to open git repository", err, map[string]any{
			"path": opts.path,
		})
		if errors.Is(err, domain.ErrRepositoryNotFound) {
			return fmt.Errorf("not a git repository: %s", opts.path)
		}
		return err
	}
	defer func() {
		if closeErr := gitRepo.Close(); closeErr != nil {
			log.Warn(ctx, "failed to close git repository", map[string]any{
				"error": closeErr.Error(),
			})
		}
	}()

	cfg, err := deps.ConfigLoader(ctx, gitRepo)
	if err != nil {
		log.Error(ctx, "failed to load configuration", err, nil)
		return fmt.Errorf("configuration error: %w", err)
	}

	tryMerger, err := deps.TryMergeFactory(gitRepo, cfg, deps.ReportWriterFactory(), log)
	if err != nil {
		log.Error(ctx, "failed to initialize try-merge", err, nil)
		return fmt.Errorf("configuration error: %w", err)
	}

	result, err := tryMerger.Run(ctx, input)
	if err != nil {
		log.Error(ctx, "try-merge failed", err, nil)
		switch {
		case errors.Is(err, domain.ErrUncommittedChanges):
			return domain.ErrUncommittedChanges
		case errors.Is(err, domain.ErrNoRemote):
			return fmt.Errorf("no '%s' remote configured; pass the revision to merge", cfg.Remote)
		}
		return err
	}

	log.Info(ctx, "try-merge complete", map[string]any{
		"status":     result.Status.String(),
		"target":     result.Target,
		"handed_off": result.HandedOff,
		"exit_code":  result.ExitCode,
	})

	if result.HandedOff && result.ExitCode != 0 {
		return &ExitError{Code: result.ExitCode}
	}

	return nil
}

// Execute runs the root command and exits with the status of the run.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err, os.Stderr))
	}
}

// exitCode reports err and returns the process exit code for it. The exit status of
// the merge hand-off is passed through; git has already reported its own failure.
func exitCode(err error, stderr io.Writer) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	writeWarningf(stderr, "Error: %v\n", err)
	return 1
}

// writeWarningf writes a warning message to the given writer.
// This is a best-effort operation; errors are intentionally ignored
// because there is no recovery action if stderr writes fail.
func writeWarningf(w io.Writer, format string, args ...any) {
	_, err := fmt.Fprintf(w, format, args...)
	if err != nil {
		// Intentionally ignored: no recovery action for failed stderr writes
		return
	}
}
