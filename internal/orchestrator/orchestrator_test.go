package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passion1014/axlrator-continue/internal/catalog"
	"github.com/passion1014/axlrator-continue/internal/config"
	"github.com/passion1014/axlrator-continue/internal/scanner"
	"github.com/passion1014/axlrator-continue/internal/tagindex/chunkindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/ftsindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/snippetindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/vectorindex"
)

func newTestOrchestrator(t *testing.T, artifacts config.ArtifactsConfig) (*Orchestrator, *catalog.Catalog) {
	t.Helper()
	cat := newTestCatalog(t)
	sc, err := scanner.New()
	require.NoError(t, err)

	snippets, err := snippetindex.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = snippets.Close() })

	o := New(
		cat,
		sc,
		chunkindex.New(cat),
		vectorindex.NewManager(t.TempDir(), nil),
		ftsindex.New(cat),
		snippets,
		artifacts,
		os.ReadFile,
		func(string) string { return "main" },
		func(string) string { return "" },
	)
	return o, cat
}

func drain(ch <-chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for u := range ch {
		out = append(out, u)
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRefreshDirs_IndexesFilesAndSkipsVectorsWithoutEmbedder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sample.go"), goSource)

	o, _ := newTestOrchestrator(t, config.ArtifactsConfig{
		Chunks: true, FTS: true, Snippets: true, Vectors: true, FilesPerBatch: 500,
	})

	updates := drain(o.RefreshDirs(context.Background(), []string{dir}))
	require.NotEmpty(t, updates)

	last := updates[len(updates)-1]
	assert.Equal(t, StatusDone, last.Status)
	assert.Equal(t, 1.0, last.Fraction)

	var sawDisabled bool
	for _, u := range updates {
		if u.Status == StatusDisabled {
			sawDisabled = true
		}
		assert.NotEqual(t, StatusFailed, u.Status)
	}
	assert.True(t, sawDisabled, "vectors should report disabled, not fail, without an embedder")
}

func TestRefreshDirs_SecondCallWithNoChangesProducesNoWork(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sample.go"), goSource)

	o, _ := newTestOrchestrator(t, config.ArtifactsConfig{
		Chunks: true, FTS: true, FilesPerBatch: 500,
	})

	first := drain(o.RefreshDirs(context.Background(), []string{dir}))
	require.NotEmpty(t, first)
	assert.Equal(t, StatusDone, first[len(first)-1].Status)

	second := drain(o.RefreshDirs(context.Background(), []string{dir}))
	require.NotEmpty(t, second)
	last := second[len(second)-1]
	assert.Equal(t, StatusDone, last.Status)
}

func TestRefreshDirs_CancelledContextEmitsCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sample.go"), goSource)

	o, _ := newTestOrchestrator(t, config.ArtifactsConfig{Chunks: true, FilesPerBatch: 500})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	updates := drain(o.RefreshDirs(ctx, []string{dir}))
	require.NotEmpty(t, updates)
	assert.Equal(t, StatusCancelled, updates[len(updates)-1].Status)
}

func TestRefreshFiles_OnlyReplansRequestedPaths(t *testing.T) {
	dir := t.TempDir()
	keepPath := filepath.Join(dir, "keep.go")
	changePath := filepath.Join(dir, "change.go")
	writeFile(t, keepPath, "package sample\n\nfunc Keep() {}\n")
	writeFile(t, changePath, "package sample\n\nfunc Change() {}\n")

	o, cat := newTestOrchestrator(t, config.ArtifactsConfig{Chunks: true, FTS: true, FilesPerBatch: 500})

	require.NotEmpty(t, drain(o.RefreshDirs(context.Background(), []string{dir})))

	tag := catalog.Tag{Directory: dir, Branch: "main", ArtifactID: "chunks"}
	before, err := cat.GetSavedItems(tag)
	require.NoError(t, err)
	require.Len(t, before, 2)

	// Mutate change.go's content and on-disk mtime so the planner sees it
	// as modified, then refresh only that path.
	writeFile(t, changePath, "package sample\n\nfunc Change() { /* edited */ }\n")
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(changePath, future, future))

	updates := drain(o.RefreshFiles(context.Background(), dir, []string{changePath}))
	require.NotEmpty(t, updates)
	assert.Equal(t, StatusDone, updates[len(updates)-1].Status)

	after, err := cat.GetSavedItems(tag)
	require.NoError(t, err)
	require.Len(t, after, 2, "keep.go must still be tracked, not deleted by the narrower refresh")

	byPath := make(map[string]catalog.SavedItem)
	for _, it := range after {
		byPath[it.Path] = it
	}
	var beforeChange catalog.SavedItem
	for _, it := range before {
		if it.Path == changePath {
			beforeChange = it
		}
	}
	assert.NotEqual(t, beforeChange.CacheKey, byPath[changePath].CacheKey, "change.go's cache key must be updated")
}

func TestRefreshFiles_EmptyPlanSkipsArtifactEntirely(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sample.go"), goSource)

	o, _ := newTestOrchestrator(t, config.ArtifactsConfig{Chunks: true, FilesPerBatch: 500})
	require.NotEmpty(t, drain(o.RefreshDirs(context.Background(), []string{dir})))

	// Re-requesting the same unchanged file should produce an empty plan,
	// not a failure.
	updates := drain(o.RefreshFiles(context.Background(), dir, []string{filepath.Join(dir, "sample.go")}))
	require.NotEmpty(t, updates)
	assert.Equal(t, StatusDone, updates[len(updates)-1].Status)
	for _, u := range updates {
		assert.NotEqual(t, StatusFailed, u.Status)
	}
}

func TestClearIndexes_ResetsCatalogAndVectorDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sample.go"), goSource)

	o, cat := newTestOrchestrator(t, config.ArtifactsConfig{Chunks: true, FilesPerBatch: 500})
	require.NotEmpty(t, drain(o.RefreshDirs(context.Background(), []string{dir})))

	tag := catalog.Tag{Directory: dir, Branch: "main", ArtifactID: "chunks"}
	items, err := cat.GetSavedItems(tag)
	require.NoError(t, err)
	require.NotEmpty(t, items)

	o.ClearIndexes()

	items, err = cat.GetSavedItems(tag)
	require.NoError(t, err)
	assert.Empty(t, items, "clear_indexes must wipe the catalog")
}

func TestPauseResume_BlocksThenReleasesARefresh(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sample.go"), goSource)

	o, _ := newTestOrchestrator(t, config.ArtifactsConfig{Chunks: true, FilesPerBatch: 500})
	o.Pause()

	ch := o.RefreshDirs(context.Background(), []string{dir})

	select {
	case u, ok := <-ch:
		if ok {
			require.NotEqual(t, StatusDone, u.Status, "refresh must not complete while paused")
		}
	case <-time.After(150 * time.Millisecond):
	}

	o.Resume()

	updates := drain(ch)
	if len(updates) > 0 {
		assert.Equal(t, StatusDone, updates[len(updates)-1].Status)
	}
}
