package git

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// gitExecutable is the binary used for operations go-git does not implement.
const gitExecutable = "git"

// CommandResult holds the captured output of a git invocation.
// A non-zero ExitCode is data, not an error: merge-tree uses it to signal conflicts.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner runs the native git binary.
type CommandRunner interface {
	// Run executes git with args in dir and captures its output.
	Run(ctx context.Context, dir string, args ...string) (CommandResult, error)

	// RunAttached executes git with args in dir connected to the terminal
	// and returns its exit code.
	RunAttached(ctx context.Context, dir string, args ...string) (int, error)
}

// OSCommandRunner executes git using os/exec.
type OSCommandRunner struct{}

// NewOSCommandRunner constructs a runner backed by os/exec.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// Run executes git and captures stdout and stderr.
// Only failures to start the process are returned as errors.
func (runner *OSCommandRunner) Run(ctx context.Context, dir string, args ...string) (CommandResult, error) {
	executable := exec.CommandContext(ctx, gitExecutable, args...)
	executable.Dir = dir

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	executable.Stdout = &stdout
	executable.Stderr = &stderr

	code, err := exitCode(executable.Run())
	if err != nil {
		return CommandResult{}, err
	}

	return CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: code,
	}, nil
}

// RunAttached executes git with the process's own stdin, stdout and stderr.
func (runner *OSCommandRunner) RunAttached(ctx context.Context, dir string, args ...string) (int, error) {
	executable := exec.CommandContext(ctx, gitExecutable, args...)
	executable.Dir = dir
	executable.Stdin = os.Stdin
	executable.Stdout = os.Stdout
	executable.Stderr = os.Stderr

	return exitCode(executable.Run())
}

func exitCode(runErr error) (int, error) {
	if runErr == nil {
		return 0, nil
	}
	exitErr := &exec.ExitError{}
	if errors.As(runErr, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, runErr
}
