package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/passion1014/axlrator-continue/internal/catalog"
	"github.com/passion1014/axlrator-continue/internal/config"
	"github.com/passion1014/axlrator-continue/internal/planner"
	"github.com/passion1014/axlrator-continue/internal/scanner"
	"github.com/passion1014/axlrator-continue/internal/tagindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/chunkindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/ftsindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/snippetindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/vectorindex"
)

// BranchFunc and RepoNameFunc mirror the Messenger's getBranch/getRepoName
// calls: IDE-supplied lookups the orchestrator needs to build a tag, never
// invoked by shelling out to git itself.
type BranchFunc func(dir string) string
type RepoNameFunc func(dir string) string

// Orchestrator drives refresh_dirs/refresh_files/clear_indexes against a
// shared catalog and a fixed set of per-tag artifacts, generalizing
// internal/index.Coordinator's single-file-event model into a batching,
// pausable directory walker driven by internal/planner's classified plans.
type Orchestrator struct {
	cat    *catalog.Catalog
	scan   *scanner.Scanner
	vecMgr *vectorindex.Manager

	cfg       config.ArtifactsConfig
	readFile  ReadFileFunc
	getBranch BranchFunc
	getRepo   RepoNameFunc

	pause *PauseToken

	chunks   *chunkArtifact
	vectors  *vectorArtifact
	fts      *ftsArtifact
	snippets *snippetArtifact
}

// New builds an Orchestrator over already-open per-tag stores. getBranch and
// getRepo may be nil, in which case every tag uses an empty branch and an
// empty repo hint.
func New(
	cat *catalog.Catalog,
	sc *scanner.Scanner,
	chunks *chunkindex.Store,
	vectors *vectorindex.Manager,
	fts *ftsindex.Index,
	snippets *snippetindex.Index,
	cfg config.ArtifactsConfig,
	readFile ReadFileFunc,
	getBranch BranchFunc,
	getRepo RepoNameFunc,
) *Orchestrator {
	return &Orchestrator{
		cat:       cat,
		scan:      sc,
		vecMgr:    vectors,
		cfg:       cfg,
		readFile:  readFile,
		getBranch: getBranch,
		getRepo:   getRepo,
		pause:     NewPauseToken(),
		chunks:    newChunkArtifact(chunks, readFile),
		vectors:   newVectorArtifact(chunks, vectors),
		fts:       newFTSArtifact(chunks, fts),
		snippets:  newSnippetArtifact(chunks, snippets),
	}
}

// Pause suspends any in-flight refresh at its next poll point.
func (o *Orchestrator) Pause() { o.pause.Pause() }

// Resume clears a pause set by Pause.
func (o *Orchestrator) Resume() { o.pause.Resume() }

// dependents returns the configured artifacts that read chunk rows
// chunkArtifact owns, in the order their build phase must run (and the
// reverse of the order their teardown phase must run).
func (o *Orchestrator) dependents() []Artifact {
	var deps []Artifact
	if o.cfg.Vectors {
		deps = append(deps, o.vectors)
	}
	if o.cfg.FTS {
		deps = append(deps, o.fts)
	}
	if o.cfg.Snippets {
		deps = append(deps, o.snippets)
	}
	return deps
}

func planSize(p planner.RefreshPlan) int {
	return len(p.Compute) + len(p.Del) + len(p.AddTag) + len(p.RemoveTag) + len(p.TouchLastUpdated)
}

func (o *Orchestrator) branchAndRepo(dir string) (branch, repo string) {
	if o.getBranch != nil {
		branch = o.getBranch(dir)
	}
	if o.getRepo != nil {
		repo = o.getRepo(dir)
	}
	return branch, repo
}

// artifactWork is one artifact's classified plan for one tag, paired with
// the completion callback planner.Plan built for it.
type artifactWork struct {
	artifact Artifact
	tag      catalog.Tag
	plan     planner.RefreshPlan
	complete planner.CompleteFunc
}

// dirWork is everything RefreshDirs needs to process one directory: the
// chunk artifact's work (always first and last) plus its dependents'.
type dirWork struct {
	chunk artifactWork
	deps  []artifactWork
}

// scanStats walks dir with the scanner and collects a planner.FileStats
// snapshot, checking cancellation between every file discovered.
func (o *Orchestrator) scanStats(ctx context.Context, dir string) (planner.FileStats, error) {
	results, err := o.scan.Scan(ctx, &scanner.ScanOptions{
		RootDir:          dir,
		RespectGitignore: true,
	})
	if err != nil {
		return nil, err
	}

	stats := make(planner.FileStats)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res, ok := <-results:
			if !ok {
				return stats, nil
			}
			if res.Error != nil {
				continue
			}
			stats[res.File.AbsPath] = planner.FileStat{
				Size:         res.File.Size,
				LastModified: res.File.ModTime,
			}
		}
	}
}

// planDir builds every configured artifact's plan for one directory tag.
func (o *Orchestrator) planDir(ctx context.Context, dir string) (dirWork, int, error) {
	var dw dirWork
	if !o.cfg.Chunks {
		return dw, 0, nil
	}

	stats, err := o.scanStats(ctx, dir)
	if err != nil {
		return dw, 0, err
	}
	branch, repo := o.branchAndRepo(dir)

	chunkTag := catalog.Tag{Directory: dir, Branch: branch, ArtifactID: o.chunks.ID()}
	chunkPlan, chunkComplete, err := planner.Plan(ctx, o.cat, chunkTag, stats, o.readFile, repo)
	if err != nil {
		return dw, 0, err
	}
	dw.chunk = artifactWork{artifact: o.chunks, tag: chunkTag, plan: chunkPlan, complete: chunkComplete}
	total := planSize(chunkPlan)

	for _, dep := range o.dependents() {
		depTag := catalog.Tag{Directory: dir, Branch: branch, ArtifactID: dep.ID()}
		depPlan, depComplete, err := planner.Plan(ctx, o.cat, depTag, stats, o.readFile, repo)
		if err != nil {
			return dw, 0, err
		}
		dw.deps = append(dw.deps, artifactWork{artifact: dep, tag: depTag, plan: depPlan, complete: depComplete})
		total += planSize(depPlan)
	}

	return dw, total, nil
}

// RefreshDirs walks each directory, plans every configured artifact against
// it, and streams progress as it brings the catalog in sync. The chunk
// artifact's build phase runs before any dependent's build phase; dependents'
// teardown phases run before the chunk artifact's own teardown phase, since
// vector/fts/snippet read chunk rows the chunk artifact owns.
func (o *Orchestrator) RefreshDirs(ctx context.Context, dirs []string) <-chan ProgressUpdate {
	out := make(chan ProgressUpdate, 16)

	go func() {
		defer close(out)

		o.send(ctx, out, progress(0, StatusLoading, "scanning %d director(ies)", len(dirs)))

		work := make([]dirWork, 0, len(dirs))
		total := 0
		for _, dir := range dirs {
			if err := ctx.Err(); err != nil {
				o.send(ctx, out, progress(0, StatusCancelled, "cancelled"))
				return
			}
			dw, n, err := o.planDir(ctx, dir)
			if err != nil {
				o.sendTerminal(ctx, out, err)
				return
			}
			work = append(work, dw)
			total += n
		}

		if total == 0 {
			o.send(ctx, out, progress(1, StatusDone, "nothing to refresh"))
			return
		}

		counter := &progressCounter{total: total}
		for _, dw := range work {
			if !o.runDirWork(ctx, dw, counter, out) {
				return
			}
		}

		o.send(ctx, out, progress(1, StatusDone, "refresh complete"))
	}()

	return out
}

// runDirWork drives one directory's chunk-first-build / dependents-build /
// dependents-teardown / chunk-last-teardown sequence. It returns false if the
// caller should stop (a terminal update was already sent).
func (o *Orchestrator) runDirWork(ctx context.Context, dw dirWork, counter *progressCounter, out chan<- ProgressUpdate) bool {
	if dw.chunk.artifact == nil {
		return true
	}

	if err := runBuckets(ctx, o.pause, dw.chunk.tag, dw.chunk.artifact.ID(), buildBuckets(dw.chunk.plan, dw.chunk.artifact), dw.chunk.complete, o.cfg.FilesPerBatch, counter, out); err != nil {
		return o.handleArtifactErr(ctx, out, err)
	}

	for _, dep := range dw.deps {
		if dep.plan.IsEmpty() {
			continue
		}
		if err := runBuckets(ctx, o.pause, dep.tag, dep.artifact.ID(), buildBuckets(dep.plan, dep.artifact), dep.complete, o.cfg.FilesPerBatch, counter, out); err != nil {
			if errors.Is(err, tagindex.ErrEmbedderUnavailable) {
				o.send(ctx, out, progress(counter.fraction(), StatusDisabled, "%s: embedder unavailable", dep.artifact.ID()))
				continue
			}
			return o.handleArtifactErr(ctx, out, err)
		}
	}

	for i := len(dw.deps) - 1; i >= 0; i-- {
		dep := dw.deps[i]
		if dep.plan.IsEmpty() {
			continue
		}
		if err := runBuckets(ctx, o.pause, dep.tag, dep.artifact.ID(), teardownBuckets(dep.plan, dep.artifact), dep.complete, o.cfg.FilesPerBatch, counter, out); err != nil {
			if errors.Is(err, tagindex.ErrEmbedderUnavailable) {
				continue
			}
			return o.handleArtifactErr(ctx, out, err)
		}
	}

	if err := runBuckets(ctx, o.pause, dw.chunk.tag, dw.chunk.artifact.ID(), teardownBuckets(dw.chunk.plan, dw.chunk.artifact), dw.chunk.complete, o.cfg.FilesPerBatch, counter, out); err != nil {
		return o.handleArtifactErr(ctx, out, err)
	}

	return true
}

func (o *Orchestrator) handleArtifactErr(ctx context.Context, out chan<- ProgressUpdate, err error) bool {
	o.sendTerminal(ctx, out, err)
	return false
}

// send delivers one update. It does not race against ctx: callers decide
// whether to stop by checking ctx.Err() explicitly at their own loop
// boundaries, so a terminal update is always guaranteed to reach the
// channel once a caller commits to sending it.
func (o *Orchestrator) send(_ context.Context, out chan<- ProgressUpdate, u ProgressUpdate) bool {
	out <- u
	return true
}

// sendTerminal emits the right final update for err: cancelled if it is a
// context error, otherwise failed with the catalog's clear-indexes verdict.
func (o *Orchestrator) sendTerminal(ctx context.Context, out chan<- ProgressUpdate, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		o.send(ctx, out, progress(0, StatusCancelled, "cancelled"))
		return
	}
	o.send(ctx, out, failed(err, catalog.ShouldClearIndexes(err)))
}

// RefreshFiles re-plans exactly the given files under dir, leaving every
// other path the tag already tracks untouched (backfilled as a no-op so the
// planner's "missing from the snapshot means deleted" rule never fires for
// paths outside the request). If an artifact's resulting plan is empty, it
// is skipped entirely.
func (o *Orchestrator) RefreshFiles(ctx context.Context, dir string, files []string) <-chan ProgressUpdate {
	out := make(chan ProgressUpdate, 16)

	go func() {
		defer close(out)

		if !o.cfg.Chunks {
			o.send(ctx, out, progress(1, StatusDone, "chunks disabled"))
			return
		}

		requested := make(map[string]struct{}, len(files))
		live := make(planner.FileStats, len(files))
		for _, f := range files {
			requested[f] = struct{}{}
			if info, err := os.Stat(f); err == nil {
				live[f] = planner.FileStat{Size: info.Size(), LastModified: info.ModTime()}
			}
		}

		branch, repo := o.branchAndRepo(dir)

		var (
			work  dirWork
			total int
		)

		chunkTag := catalog.Tag{Directory: dir, Branch: branch, ArtifactID: o.chunks.ID()}
		chunkStats, err := o.mergeWithUnchanged(chunkTag, requested, live)
		if err != nil {
			o.sendTerminal(ctx, out, err)
			return
		}
		chunkPlan, chunkComplete, err := planner.Plan(ctx, o.cat, chunkTag, chunkStats, o.readFile, repo)
		if err != nil {
			o.sendTerminal(ctx, out, err)
			return
		}
		if !chunkPlan.IsEmpty() {
			work.chunk = artifactWork{artifact: o.chunks, tag: chunkTag, plan: chunkPlan, complete: chunkComplete}
			total += planSize(chunkPlan)
		}

		for _, dep := range o.dependents() {
			depTag := catalog.Tag{Directory: dir, Branch: branch, ArtifactID: dep.ID()}
			depStats, err := o.mergeWithUnchanged(depTag, requested, live)
			if err != nil {
				o.sendTerminal(ctx, out, err)
				return
			}
			depPlan, depComplete, err := planner.Plan(ctx, o.cat, depTag, depStats, o.readFile, repo)
			if err != nil {
				o.sendTerminal(ctx, out, err)
				return
			}
			if depPlan.IsEmpty() {
				continue
			}
			work.deps = append(work.deps, artifactWork{artifact: dep, tag: depTag, plan: depPlan, complete: depComplete})
			total += planSize(depPlan)
		}

		if total == 0 {
			o.send(ctx, out, progress(1, StatusDone, "nothing to refresh"))
			return
		}

		counter := &progressCounter{total: total}
		if work.chunk.artifact == nil {
			// Chunks had nothing to do but a dependent still does (e.g. a
			// tag rebuild after AddTag reuse); give runDirWork a harmless
			// no-op chunk unit so its build/teardown bracketing still holds.
			work.chunk = artifactWork{artifact: o.chunks, tag: chunkTag, complete: chunkComplete}
		}
		if !o.runDirWork(ctx, work, counter, out) {
			return
		}

		o.send(ctx, out, progress(1, StatusDone, "refresh complete"))
	}()

	return out
}

// mergeWithUnchanged returns a FileStats snapshot containing live (the
// requested files' current on-disk stat, sparse where a file no longer
// exists) plus, for every path the tag already tracks outside the requested
// set, a synthetic stat equal to its last known update time so the planner
// classifies it as unchanged rather than deleted.
func (o *Orchestrator) mergeWithUnchanged(tag catalog.Tag, requested map[string]struct{}, live planner.FileStats) (planner.FileStats, error) {
	rows, err := o.cat.AllRows(tag)
	if err != nil {
		return nil, err
	}

	stats := make(planner.FileStats, len(live)+len(rows))
	for path, fs := range live {
		stats[path] = fs
	}
	for _, r := range rows {
		if _, ok := requested[r.Path]; ok {
			continue
		}
		if existing, ok := stats[r.Path]; ok && existing.LastModified.Unix() >= r.LastUpdated.Unix() {
			continue
		}
		stats[r.Path] = planner.FileStat{LastModified: r.LastUpdated}
	}
	return stats, nil
}

// ClearIndexes deletes the catalog database and the entire vector-store
// directory tree. Failures are logged rather than returned: a partial clear
// still leaves the next refresh able to rebuild whatever it can see.
func (o *Orchestrator) ClearIndexes() {
	if err := o.cat.Reset(); err != nil {
		slog.Warn("clear_indexes_catalog_failed", slog.String("error", err.Error()))
	}
	if err := o.vecMgr.ClearAll(); err != nil {
		slog.Warn("clear_indexes_vectors_failed", slog.String("error", err.Error()))
	}
}
