package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

// mockLogger implements the Logger interface for testing.
type mockLogger struct{}

func (m *mockLogger) Info(_ context.Context, _ string, _ map[string]any)           {}
func (m *mockLogger) Debug(_ context.Context, _ string, _ map[string]any)          {}
func (m *mockLogger) Warn(_ context.Context, _ string, _ map[string]any)           {}
func (m *mockLogger) Error(_ context.Context, _ string, _ error, _ map[string]any) {}

// fakeRepo is an in-memory commit graph implementing domain.Repository.
// Merge results are scripted per "theirs" revision; unscripted merges are clean.
type fakeRepo struct {
	commits map[domain.CommitID]domain.Commit
	refs    map[string]domain.CommitID
	head    domain.CommitID
	seq     int

	mergeResults map[domain.CommitID]domain.MergeAttemptResult
	mergeErr     map[domain.CommitID]error
	dirty        bool
	dirtyErr     error
	moveErr      error
	checkoutErr  error

	attempted   []domain.CommitID
	restaged    []string
	checkedOut  []domain.CommitID
	historyArgs []int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		commits:      make(map[domain.CommitID]domain.Commit),
		refs:         make(map[string]domain.CommitID),
		mergeResults: make(map[domain.CommitID]domain.MergeAttemptResult),
		mergeErr:     make(map[domain.CommitID]error),
	}
}

// add stores a commit and returns its id.
func (f *fakeRepo) add(message string, parents ...domain.CommitID) domain.CommitID {
	f.seq++
	id := domain.CommitID(fmt.Sprintf("c%03d", f.seq))
	f.commits[id] = domain.Commit{
		ID:      id,
		Parents: parents,
		Message: message,
		Tree:    domain.TreeID("tree-" + string(id)),
	}
	return id
}

// chain adds n commits on top of parent and returns them oldest first.
func (f *fakeRepo) chain(parent domain.CommitID, prefix string, n int) []domain.CommitID {
	ids := make([]domain.CommitID, 0, n)
	for i := 0; i < n; i++ {
		parent = f.add(fmt.Sprintf("%s %d", prefix, i+1), parent)
		ids = append(ids, parent)
	}
	return ids
}

func (f *fakeRepo) ancestors(id domain.CommitID) map[domain.CommitID]struct{} {
	seen := make(map[domain.CommitID]struct{})
	stack := []domain.CommitID{id}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[current]; ok {
			continue
		}
		seen[current] = struct{}{}
		stack = append(stack, f.commits[current].Parents...)
	}
	return seen
}

func (f *fakeRepo) Resolve(_ context.Context, name string) (domain.CommitID, error) {
	if name == "HEAD" {
		return f.head, nil
	}
	if id, ok := f.refs[name]; ok {
		return id, nil
	}
	if _, ok := f.commits[domain.CommitID(name)]; ok {
		return domain.CommitID(name), nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrRevisionNotFound, name)
}

func (f *fakeRepo) RevisionsBetween(_ context.Context, lower, upper domain.CommitID) (domain.RevisionRange, error) {
	hidden := f.ancestors(lower)
	var visit func(id domain.CommitID)
	var out domain.RevisionRange
	seen := make(map[domain.CommitID]struct{})
	visit = func(id domain.CommitID) {
		if _, ok := hidden[id]; ok {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		for _, parent := range f.commits[id].Parents {
			visit(parent)
		}
		out = append(out, id)
	}
	visit(upper)
	return out, nil
}

func (f *fakeRepo) AttemptMerge(_ context.Context, ours, theirs domain.CommitID) (domain.MergeAttemptResult, error) {
	f.attempted = append(f.attempted, theirs)
	if err := f.mergeErr[theirs]; err != nil {
		return domain.MergeAttemptResult{}, err
	}
	if result, ok := f.mergeResults[theirs]; ok {
		return result, nil
	}
	return domain.Merged(domain.TreeID(fmt.Sprintf("merge(%s,%s)", ours, theirs)), nil), nil
}

func (f *fakeRepo) RestageWithTheirs(_ context.Context, tree domain.TreeID, conflict domain.ConflictPath) (domain.TreeID, error) {
	f.restaged = append(f.restaged, conflict.Path)
	return domain.TreeID(fmt.Sprintf("%s+%s", tree, conflict.Path)), nil
}

func (f *fakeRepo) WriteCommit(_ context.Context, tree domain.TreeID, parents []domain.CommitID, message string) (domain.CommitID, error) {
	id := f.add(message, parents...)
	commit := f.commits[id]
	commit.Tree = tree
	f.commits[id] = commit
	return id, nil
}

func (f *fakeRepo) MoveHead(_ context.Context, target, expected domain.CommitID) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	if f.head != expected {
		return domain.ErrHeadMoved
	}
	f.head = target
	return nil
}

func (f *fakeRepo) HasUncommittedChanges(_ context.Context) (bool, error) {
	return f.dirty, f.dirtyErr
}

func (f *fakeRepo) ForceCheckout(_ context.Context, commit domain.CommitID) error {
	if f.checkoutErr != nil {
		return f.checkoutErr
	}
	f.checkedOut = append(f.checkedOut, commit)
	return nil
}

func (f *fakeRepo) FirstParentHistory(_ context.Context, from domain.CommitID, limit int) ([]domain.Commit, error) {
	f.historyArgs = append(f.historyArgs, limit)
	var history []domain.Commit
	current := from
	for len(history) < limit {
		commit, ok := f.commits[current]
		if !ok {
			break
		}
		history = append(history, commit)
		parent, ok := commit.FirstParent()
		if !ok {
			break
		}
		current = parent
	}
	return history, nil
}

// mergedRevisions returns every second parent reachable from head by first parents.
func (f *fakeRepo) mergedRevisions(head domain.CommitID) []domain.CommitID {
	merged := []domain.CommitID{}
	for current := head; current != ""; {
		commit := f.commits[current]
		if len(commit.Parents) == 2 {
			merged = append([]domain.CommitID{commit.Parents[1]}, merged...)
		}
		parent, _ := commit.FirstParent()
		current = parent
	}
	return merged
}

// fakeUpstream implements domain.Upstream.
type fakeUpstream struct {
	defaultTarget string
	defaultErr    error
	updated       []string
	updateErr     error
}

func (f *fakeUpstream) DefaultUpstream(_ context.Context, remote string) (string, error) {
	if f.defaultErr != nil {
		return "", f.defaultErr
	}
	if f.defaultTarget != "" {
		return f.defaultTarget, nil
	}
	return remote + "/master", nil
}

func (f *fakeUpstream) UpdateRemoteTracking(_ context.Context, name string) error {
	f.updated = append(f.updated, name)
	return f.updateErr
}

// fakeHandOff implements domain.MergeHandOff.
type fakeHandOff struct {
	calls    []domain.CommitID
	messages []string
	args     [][]string
	code     int
	err      error
}

func (f *fakeHandOff) HandOff(_ context.Context, revision domain.CommitID, message string, extraArgs []string) (int, error) {
	f.calls = append(f.calls, revision)
	f.messages = append(f.messages, message)
	f.args = append(f.args, extraArgs)
	return f.code, f.err
}

// recordingReporter implements domain.ReportWriter.
type recordingReporter struct {
	reports []*domain.TryMergeOutput
	err     error
}

func (r *recordingReporter) WriteReport(output *domain.TryMergeOutput) error {
	copied := *output
	r.reports = append(r.reports, &copied)
	return r.err
}

func conflict(path string) domain.ConflictPath {
	return domain.ConflictPath{
		Path:   path,
		Theirs: &domain.ConflictEntry{Mode: "100644", Object: "blob-" + strings.ReplaceAll(path, "/", "_")},
	}
}
