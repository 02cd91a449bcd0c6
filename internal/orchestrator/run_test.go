package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passion1014/axlrator-continue/internal/catalog"
	"github.com/passion1014/axlrator-continue/internal/planner"
)

// recordingArtifact logs every call it receives, in order, so tests can
// assert on sequencing without standing up real chunk/fts/vector stores.
type recordingArtifact struct {
	id    string
	calls []string
	err   error
}

func (a *recordingArtifact) ID() string { return a.id }

func (a *recordingArtifact) Compute(_ context.Context, _ catalog.Tag, item catalog.PathAndCacheKey) error {
	a.calls = append(a.calls, "compute:"+item.Path)
	return a.err
}
func (a *recordingArtifact) AddTag(_ context.Context, _ catalog.Tag, item catalog.PathAndCacheKey) error {
	a.calls = append(a.calls, "add_tag:"+item.Path)
	return a.err
}
func (a *recordingArtifact) RemoveTag(_ context.Context, _ catalog.Tag, item catalog.PathAndCacheKey) error {
	a.calls = append(a.calls, "remove_tag:"+item.Path)
	return a.err
}
func (a *recordingArtifact) Del(_ context.Context, _ catalog.Tag, item catalog.PathAndCacheKey) error {
	a.calls = append(a.calls, "del:"+item.Path)
	return a.err
}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Open("", catalog.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func TestRunBuckets_ProcessesBuildPhaseInOrder(t *testing.T) {
	cat := newTestCatalog(t)
	tag := catalog.Tag{Directory: "/ws", Branch: "main", ArtifactID: "chunks"}
	a := &recordingArtifact{id: "chunks"}

	plan := planner.RefreshPlan{
		TouchLastUpdated: []catalog.PathAndCacheKey{{Path: "/ws/touched.go", CacheKey: "t1"}},
		Compute:          []catalog.PathAndCacheKey{{Path: "/ws/new.go", CacheKey: "c1"}},
		AddTag:           []catalog.PathAndCacheKey{{Path: "/ws/shared.go", CacheKey: "s1"}},
	}
	complete := func(items []catalog.PathAndCacheKey, kind catalog.ApplyKind) error {
		return cat.Apply(tag, items, kind)
	}

	out := make(chan ProgressUpdate, 16)
	counter := &progressCounter{total: 3}
	err := runBuckets(context.Background(), NewPauseToken(), tag, a.ID(), buildBuckets(plan, a), complete, 500, counter, out)
	require.NoError(t, err)

	require.Equal(t, []string{"compute:/ws/new.go", "add_tag:/ws/shared.go"}, a.calls)
	assert.Equal(t, 2, counter.done)
	assert.InDelta(t, 2.0/3.0, counter.fraction(), 1e-9)

	items, err := cat.GetSavedItems(tag)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestRunBuckets_TeardownRunsRemoveTagBeforeDel(t *testing.T) {
	cat := newTestCatalog(t)
	tag := catalog.Tag{Directory: "/ws", Branch: "main", ArtifactID: "chunks"}
	a := &recordingArtifact{id: "chunks"}

	plan := planner.RefreshPlan{
		RemoveTag: []catalog.PathAndCacheKey{{Path: "/ws/b.go", CacheKey: "b1"}},
		Del:       []catalog.PathAndCacheKey{{Path: "/ws/a.go", CacheKey: "a1"}},
	}
	complete := func(items []catalog.PathAndCacheKey, kind catalog.ApplyKind) error {
		return cat.Apply(tag, items, kind)
	}

	out := make(chan ProgressUpdate, 16)
	counter := &progressCounter{total: 2}
	err := runBuckets(context.Background(), NewPauseToken(), tag, a.ID(), teardownBuckets(plan, a), complete, 500, counter, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"remove_tag:/ws/b.go", "del:/ws/a.go"}, a.calls)
}

func TestRunBuckets_StopsAndWrapsErrorOnArtifactFailure(t *testing.T) {
	cat := newTestCatalog(t)
	tag := catalog.Tag{Directory: "/ws", Branch: "main", ArtifactID: "chunks"}
	boom := errors.New("boom")
	a := &recordingArtifact{id: "chunks", err: boom}

	plan := planner.RefreshPlan{
		Compute: []catalog.PathAndCacheKey{{Path: "/ws/a.go", CacheKey: "a1"}, {Path: "/ws/b.go", CacheKey: "b1"}},
	}
	complete := func(items []catalog.PathAndCacheKey, kind catalog.ApplyKind) error {
		return cat.Apply(tag, items, kind)
	}

	out := make(chan ProgressUpdate, 16)
	counter := &progressCounter{total: 2}
	err := runBuckets(context.Background(), NewPauseToken(), tag, a.ID(), buildBuckets(plan, a), complete, 500, counter, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.calls, 1, "must stop after the first failing item")
}

func TestRunBuckets_HonorsCancellationBetweenItems(t *testing.T) {
	cat := newTestCatalog(t)
	tag := catalog.Tag{Directory: "/ws", Branch: "main", ArtifactID: "chunks"}
	a := &recordingArtifact{id: "chunks"}

	plan := planner.RefreshPlan{
		Compute: []catalog.PathAndCacheKey{{Path: "/ws/a.go", CacheKey: "a1"}, {Path: "/ws/b.go", CacheKey: "b1"}},
	}
	complete := func(items []catalog.PathAndCacheKey, kind catalog.ApplyKind) error {
		return cat.Apply(tag, items, kind)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan ProgressUpdate, 16)
	counter := &progressCounter{total: 2}
	err := runBuckets(ctx, NewPauseToken(), tag, a.ID(), buildBuckets(plan, a), complete, 500, counter, out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, a.calls)
}

func TestRunBuckets_BatchesByFilesPerBatch(t *testing.T) {
	cat := newTestCatalog(t)
	tag := catalog.Tag{Directory: "/ws", Branch: "main", ArtifactID: "chunks"}
	a := &recordingArtifact{id: "chunks"}

	plan := planner.RefreshPlan{
		Compute: []catalog.PathAndCacheKey{
			{Path: "/ws/a.go", CacheKey: "a1"},
			{Path: "/ws/b.go", CacheKey: "b1"},
			{Path: "/ws/c.go", CacheKey: "c1"},
		},
	}
	complete := func(items []catalog.PathAndCacheKey, kind catalog.ApplyKind) error {
		return cat.Apply(tag, items, kind)
	}

	out := make(chan ProgressUpdate, 16)
	counter := &progressCounter{total: 3}
	err := runBuckets(context.Background(), NewPauseToken(), tag, a.ID(), buildBuckets(plan, a), complete, 2, counter, out)
	require.NoError(t, err)
	assert.Len(t, a.calls, 3)
}

func TestProgressCounter_FractionIsMonotonicAndCapsAtOne(t *testing.T) {
	c := &progressCounter{total: 0}
	assert.Equal(t, 1.0, c.fraction(), "zero-total counter reports complete")

	c = &progressCounter{total: 4}
	var last float64
	for i := 0; i < 4; i++ {
		c.done++
		f := c.fraction()
		assert.GreaterOrEqual(t, f, last)
		last = f
	}
	assert.Equal(t, 1.0, last)
}
