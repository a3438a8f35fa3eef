package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

// walkFixture is a local branch one commit ahead of a common base and an upstream
// line of n commits on top of the same base.
type walkFixture struct {
	repo     *fakeRepo
	base     domain.CommitID
	local    domain.CommitID
	upstream []domain.CommitID
}

func newWalkFixture(n int) *walkFixture {
	repo := newFakeRepo()
	base := repo.add("initial")
	local := repo.add("local work", base)
	upstream := repo.chain(base, "upstream", n)
	repo.head = local
	if n > 0 {
		repo.refs["origin/main"] = upstream[n-1]
	} else {
		repo.refs["origin/main"] = base
	}
	return &walkFixture{repo: repo, base: base, local: local, upstream: upstream}
}

func mustRules(t *testing.T, patterns ...string) *IgnoreRuleSet {
	t.Helper()
	rules, err := NewIgnoreRuleSet(patterns)
	require.NoError(t, err)
	return rules
}

func newTestWalker(repo domain.Repository) *MergeWalker {
	return NewMergeWalker(repo, NewConflictClassifier(), &mockLogger{})
}

func TestMergeWalker_AllClean(t *testing.T) {
	fx := newWalkFixture(3)
	walker := newTestWalker(fx.repo)

	report, err := walker.Walk(context.Background(), WalkInput{
		Head:      fx.local,
		Revisions: fx.upstream,
		Rules:     mustRules(t),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.WalkCompleted, report.Outcome)
	assert.Equal(t, 3, report.SucceededCount)
	assert.Equal(t, 0, report.SkippedCount)
	assert.Empty(t, report.FailingRevision)
	assert.Empty(t, report.IgnoredPaths)
	assert.Len(t, report.Created, 3)
	assert.Equal(t, fx.upstream[2], report.LastMerged)
	assert.Equal(t, fx.repo.head, report.Head)
	assert.Equal(t, []domain.CommitID{fx.repo.head}, fx.repo.checkedOut)

	// Every written commit has exactly [prior HEAD, merged revision] as parents.
	prior := fx.local
	for i, id := range report.Created {
		commit := fx.repo.commits[id]
		assert.Equal(t, []domain.CommitID{prior, fx.upstream[i]}, commit.Parents)
		assert.Equal(t, domain.NoConflictMessage(fx.upstream[i]), commit.Message)
		prior = id
	}
}

func TestMergeWalker_IgnorableConflictIsResolvedWithTheirs(t *testing.T) {
	fx := newWalkFixture(2)
	fx.repo.mergeResults[fx.upstream[1]] = domain.Conflicted("conflicted-tree", []domain.ConflictPath{
		conflict("Cargo.lock"),
		conflict("nested/Cargo.lock"),
	})
	walker := newTestWalker(fx.repo)

	report, err := walker.Walk(context.Background(), WalkInput{
		Head:      fx.local,
		Revisions: fx.upstream,
		Rules:     mustRules(t, "Cargo.lock", "**/Cargo.lock"),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.WalkCompleted, report.Outcome)
	assert.Equal(t, 2, report.SucceededCount)
	assert.Equal(t, []string{"Cargo.lock", "nested/Cargo.lock"}, report.IgnoredPaths)
	assert.Equal(t, []string{"Cargo.lock", "nested/Cargo.lock"}, fx.repo.restaged)

	last := fx.repo.commits[report.Head]
	assert.Equal(t, domain.TreeID("conflicted-tree+Cargo.lock+nested/Cargo.lock"), last.Tree)
	assert.Equal(t, domain.NoConflictMessage(fx.upstream[1]), last.Message)
}

func TestMergeWalker_AutoResolvedPathsFromEngineAreReported(t *testing.T) {
	fx := newWalkFixture(1)
	fx.repo.mergeResults[fx.upstream[0]] = domain.Merged("clean", []string{"go.sum"})
	walker := newTestWalker(fx.repo)

	report, err := walker.Walk(context.Background(), WalkInput{Head: fx.local, Revisions: fx.upstream})

	require.NoError(t, err)
	assert.Equal(t, []string{"go.sum"}, report.IgnoredPaths)
}

func TestMergeWalker_BlocksOnFirstRevision(t *testing.T) {
	fx := newWalkFixture(2)
	fx.repo.mergeResults[fx.upstream[0]] = domain.Conflicted("t", []domain.ConflictPath{conflict("src/main.rs")})
	walker := newTestWalker(fx.repo)

	report, err := walker.Walk(context.Background(), WalkInput{
		Head:      fx.local,
		Revisions: fx.upstream,
		Rules:     mustRules(t, "Cargo.lock"),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.WalkBlocked, report.Outcome)
	assert.Equal(t, fx.upstream[0], report.FailingRevision)
	assert.Equal(t, 2, report.SkippedCount)
	assert.Equal(t, 0, report.SucceededCount)
	assert.Empty(t, report.Created)
	assert.Equal(t, fx.local, report.Head)
	assert.Equal(t, fx.local, fx.repo.head)
	assert.Equal(t, []domain.CommitID{fx.upstream[0]}, fx.repo.attempted)
	assert.Empty(t, fx.repo.checkedOut)
}

func TestMergeWalker_VetoTotality(t *testing.T) {
	fx := newWalkFixture(3)
	fx.repo.mergeResults[fx.upstream[1]] = domain.Conflicted("t", []domain.ConflictPath{
		conflict("Cargo.lock"),
		conflict("README.md"),
	})
	walker := newTestWalker(fx.repo)

	report, err := walker.Walk(context.Background(), WalkInput{
		Head:      fx.local,
		Revisions: fx.upstream,
		Rules:     mustRules(t, "Cargo.lock"),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.WalkBlocked, report.Outcome)
	assert.Equal(t, fx.upstream[1], report.FailingRevision)
	assert.Equal(t, 1, report.SucceededCount)
	assert.Equal(t, 2, report.SkippedCount)
	// The ignorable half of the vetoed attempt was not applied.
	assert.Empty(t, fx.repo.restaged)
	assert.Empty(t, report.IgnoredPaths)
	assert.Equal(t, []domain.CommitID{fx.upstream[0]}, fx.repo.mergedRevisions(fx.repo.head))
}

func TestMergeWalker_PrefixProperty(t *testing.T) {
	for blockAt := 0; blockAt < 5; blockAt++ {
		fx := newWalkFixture(5)
		fx.repo.mergeResults[fx.upstream[blockAt]] = domain.Conflicted("t", []domain.ConflictPath{conflict("x")})
		walker := newTestWalker(fx.repo)

		report, err := walker.Walk(context.Background(), WalkInput{Head: fx.local, Revisions: fx.upstream})

		require.NoError(t, err)
		assert.Equal(t, fx.upstream[:blockAt], fx.repo.mergedRevisions(fx.repo.head))
		assert.Equal(t, fx.upstream[:blockAt+1], fx.repo.attempted)
		assert.Equal(t, 5-blockAt, report.SkippedCount)
		assert.Equal(t, blockAt, report.SucceededCount)
	}
}

func TestMergeWalker_DirtyWorkTree(t *testing.T) {
	fx := newWalkFixture(2)
	fx.repo.dirty = true
	walker := newTestWalker(fx.repo)

	report, err := walker.Walk(context.Background(), WalkInput{Head: fx.local, Revisions: fx.upstream})

	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, domain.ErrUncommittedChanges)
	assert.Empty(t, fx.repo.attempted)
	assert.Equal(t, fx.local, fx.repo.head)
}

func TestMergeWalker_StatusError(t *testing.T) {
	fx := newWalkFixture(1)
	fx.repo.dirtyErr = errors.New("index locked")
	walker := newTestWalker(fx.repo)

	_, err := walker.Walk(context.Background(), WalkInput{Head: fx.local, Revisions: fx.upstream})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "index locked")
	assert.Empty(t, fx.repo.attempted)
}

func TestMergeWalker_AdapterFailureIsPropagated(t *testing.T) {
	fx := newWalkFixture(3)
	engineErr := errors.New("object database corrupt")
	fx.repo.mergeErr[fx.upstream[1]] = engineErr
	walker := newTestWalker(fx.repo)

	report, err := walker.Walk(context.Background(), WalkInput{Head: fx.local, Revisions: fx.upstream})

	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, engineErr)
	assert.Contains(t, err.Error(), string(fx.upstream[1]))
	// No retry; the merged prefix stays in place.
	assert.Equal(t, fx.upstream[:2], fx.repo.attempted)
	assert.Equal(t, fx.upstream[:1], fx.repo.mergedRevisions(fx.repo.head))
	// The work tree follows the moved HEAD so the next run is not refused as dirty.
	assert.Equal(t, []domain.CommitID{fx.repo.head}, fx.repo.checkedOut)
}

func TestMergeWalker_AdapterFailureBeforeProgressLeavesWorkTree(t *testing.T) {
	fx := newWalkFixture(2)
	fx.repo.mergeErr[fx.upstream[0]] = errors.New("object database corrupt")
	walker := newTestWalker(fx.repo)

	_, err := walker.Walk(context.Background(), WalkInput{Head: fx.local, Revisions: fx.upstream})

	require.Error(t, err)
	assert.Equal(t, fx.local, fx.repo.head)
	assert.Empty(t, fx.repo.checkedOut)
}

func TestMergeWalker_CheckoutFailureAfterAdapterFailure(t *testing.T) {
	fx := newWalkFixture(3)
	engineErr := errors.New("object database corrupt")
	checkoutErr := errors.New("index.lock exists")
	fx.repo.mergeErr[fx.upstream[1]] = engineErr
	fx.repo.checkoutErr = checkoutErr
	walker := newTestWalker(fx.repo)

	_, err := walker.Walk(context.Background(), WalkInput{Head: fx.local, Revisions: fx.upstream})

	require.Error(t, err)
	assert.ErrorIs(t, err, engineErr)
	assert.ErrorIs(t, err, checkoutErr)
}

func TestMergeWalker_HeadMovedByAnotherWriter(t *testing.T) {
	fx := newWalkFixture(1)
	fx.repo.moveErr = domain.ErrHeadMoved
	walker := newTestWalker(fx.repo)

	_, err := walker.Walk(context.Background(), WalkInput{Head: fx.local, Revisions: fx.upstream})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHeadMoved)
	assert.Equal(t, fx.local, fx.repo.head)
}

func TestMergeWalker_EmptyRange(t *testing.T) {
	fx := newWalkFixture(0)
	walker := newTestWalker(fx.repo)

	report, err := walker.Walk(context.Background(), WalkInput{Head: fx.local})

	require.NoError(t, err)
	assert.Equal(t, domain.WalkCompleted, report.Outcome)
	assert.Equal(t, fx.local, report.Head)
	assert.Empty(t, fx.repo.checkedOut)
}

func TestMergeWalker_DoesNotMutateInput(t *testing.T) {
	fx := newWalkFixture(2)
	revisions := append(domain.RevisionRange(nil), fx.upstream...)
	walker := newTestWalker(fx.repo)

	_, err := walker.Walk(context.Background(), WalkInput{Head: fx.local, Revisions: revisions})

	require.NoError(t, err)
	assert.Equal(t, domain.RevisionRange(fx.upstream), revisions)
}
