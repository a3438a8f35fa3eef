// Package output provides adapters for writing application output.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

// Writer renders the result of a run. The merge summary goes to stdout; the one-line
// notices of runs that had nothing to merge go to stderr.
type Writer struct {
	out    io.Writer
	errOut io.Writer
}

// NewWriter creates a new Writer that writes to stdout and stderr.
func NewWriter() *Writer {
	return &Writer{out: os.Stdout, errOut: os.Stderr}
}

// NewWriterWithOutput creates a new Writer with custom output destinations.
// This is useful for testing.
func NewWriterWithOutput(out, errOut io.Writer) *Writer {
	return &Writer{out: out, errOut: errOut}
}

// WriteReport writes the summary of output.
func (w *Writer) WriteReport(output *domain.TryMergeOutput) error {
	switch output.Status {
	case domain.StatusUpToDate:
		_, err := fmt.Fprintln(w.errOut, "Your branch is already up-to-date.")
		return err
	case domain.StatusSquashed:
		_, err := fmt.Fprintln(w.errOut, "Your merge commits have been squashed.")
		return err
	}

	if output.Walk == nil {
		return nil
	}
	return w.writeWalk(output.Target, output.Walk)
}

func (w *Writer) writeWalk(target string, report *domain.WalkReport) error {
	var lines []string

	if report.SucceededCount > 0 {
		lines = append(lines, fmt.Sprintf(
			"All the commits to %s have been merged successfully without conflict", report.LastMerged))
	}

	if len(report.IgnoredPaths) > 0 {
		lines = append(lines, "The following files had conflicts but have been ignored:")
		lines = append(lines, report.IgnoredPaths...)
	}

	if report.Outcome == domain.WalkBlocked {
		lines = append(lines,
			fmt.Sprintf("Your current branch is still behind '%s' by %d commit(s).", target, report.SkippedCount),
			fmt.Sprintf("First merge conflict detected on: %s", report.FailingRevision),
		)
	} else {
		lines = append(lines, "Nothing more to merge. Your branch is up-to-date.")
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w.out, line); err != nil {
			return err
		}
	}
	return nil
}
