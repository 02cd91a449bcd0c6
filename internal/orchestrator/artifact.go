package orchestrator

import (
	"context"
	"fmt"

	"github.com/passion1014/axlrator-continue/internal/catalog"
	"github.com/passion1014/axlrator-continue/internal/chunk"
	"github.com/passion1014/axlrator-continue/internal/scanner"
	"github.com/passion1014/axlrator-continue/internal/tagindex/chunkindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/ftsindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/snippetindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/vectorindex"
)

// ReadFileFunc reads a file's full contents, shared with internal/planner's
// identically-shaped type so the orchestrator and the planner read through
// the same Messenger-backed implementation.
type ReadFileFunc func(path string) ([]byte, error)

// Artifact is one per-tag index the orchestrator drives through a classified
// refresh plan. Compute/AddTag produce or reuse content; RemoveTag/Del drop
// it. A no-op method is valid: an artifact that stores nothing per-tag
// (RemoveTag on every artifact here, since tag membership itself is the
// catalog's concern) simply returns nil.
type Artifact interface {
	ID() string
	Compute(ctx context.Context, tag catalog.Tag, item catalog.PathAndCacheKey) error
	AddTag(ctx context.Context, tag catalog.Tag, item catalog.PathAndCacheKey) error
	RemoveTag(ctx context.Context, tag catalog.Tag, item catalog.PathAndCacheKey) error
	Del(ctx context.Context, tag catalog.Tag, item catalog.PathAndCacheKey) error
}

// chunkArtifact produces AST-derived chunks via internal/chunk and persists
// them through chunkindex.Store. It must run its build phase before every
// other artifact and its teardown phase after every other artifact, since
// vector/fts/snippet all read chunk rows chunkArtifact owns.
type chunkArtifact struct {
	store    *chunkindex.Store
	code     chunk.Chunker
	markdown chunk.Chunker
	readFile ReadFileFunc
}

func newChunkArtifact(store *chunkindex.Store, readFile ReadFileFunc) *chunkArtifact {
	return &chunkArtifact{
		store:    store,
		code:     chunk.NewCodeChunker(),
		markdown: chunk.NewMarkdownChunker(),
		readFile: readFile,
	}
}

func (a *chunkArtifact) ID() string { return "chunks" }

func (a *chunkArtifact) Compute(ctx context.Context, _ catalog.Tag, item catalog.PathAndCacheKey) error {
	content, err := a.readFile(item.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", item.Path, err)
	}

	language := scanner.DetectLanguage(item.Path)
	contentType := scanner.DetectContentType(language)

	chunker := a.code
	if contentType == scanner.ContentTypeMarkdown {
		chunker = a.markdown
	}

	chunks, err := chunker.Chunk(ctx, &chunk.FileInput{
		Path:     item.Path,
		Content:  content,
		Language: language,
		CacheKey: item.CacheKey,
	})
	if err != nil {
		return fmt.Errorf("chunk %s: %w", item.Path, err)
	}
	return a.store.SaveChunks(ctx, chunks)
}

// AddTag reuses chunks another tag already computed for the same
// (path, cache_key); the chunk rows are keyed by content, not by tag, so
// there is nothing further to store.
func (a *chunkArtifact) AddTag(context.Context, catalog.Tag, catalog.PathAndCacheKey) error {
	return nil
}

// RemoveTag leaves chunk rows in place; another tag may still reference them.
func (a *chunkArtifact) RemoveTag(context.Context, catalog.Tag, catalog.PathAndCacheKey) error {
	return nil
}

func (a *chunkArtifact) Del(ctx context.Context, _ catalog.Tag, item catalog.PathAndCacheKey) error {
	return a.store.DeleteChunksByFile(ctx, item.Path, item.CacheKey)
}

// ftsArtifact indexes chunk content for trigram full-text search. It reads
// chunks chunkArtifact already wrote, so it must run after chunkArtifact's
// build phase and before chunkArtifact's teardown phase.
type ftsArtifact struct {
	chunks *chunkindex.Store
	index  *ftsindex.Index
}

func newFTSArtifact(chunks *chunkindex.Store, index *ftsindex.Index) *ftsArtifact {
	return &ftsArtifact{chunks: chunks, index: index}
}

func (a *ftsArtifact) ID() string { return "fts" }

func (a *ftsArtifact) Compute(ctx context.Context, _ catalog.Tag, item catalog.PathAndCacheKey) error {
	return a.index.Add(ctx, item.Path, item.CacheKey, joinChunkContent(ctx, a.chunks, item))
}

func (a *ftsArtifact) AddTag(ctx context.Context, tag catalog.Tag, item catalog.PathAndCacheKey) error {
	// Metadata-only: the underlying FTS row already exists from whichever
	// tag computed it first.
	return nil
}

func (a *ftsArtifact) RemoveTag(context.Context, catalog.Tag, catalog.PathAndCacheKey) error {
	return nil
}

func (a *ftsArtifact) Del(ctx context.Context, _ catalog.Tag, item catalog.PathAndCacheKey) error {
	return a.index.Remove(ctx, item.Path, item.CacheKey)
}

func joinChunkContent(ctx context.Context, store *chunkindex.Store, item catalog.PathAndCacheKey) string {
	chunks, err := store.GetChunksByFile(ctx, item.Path, item.CacheKey)
	if err != nil || len(chunks) == 0 {
		return ""
	}
	var out []byte
	for i, ch := range chunks {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, ch.Content...)
	}
	return string(out)
}

// vectorArtifact embeds chunk content into the tag's HNSW graph. Like
// ftsArtifact it depends on chunkArtifact's build phase having already run.
type vectorArtifact struct {
	chunks  *chunkindex.Store
	vectors *vectorindex.Manager
}

func newVectorArtifact(chunks *chunkindex.Store, vectors *vectorindex.Manager) *vectorArtifact {
	return &vectorArtifact{chunks: chunks, vectors: vectors}
}

func (a *vectorArtifact) ID() string { return "vectors" }

func (a *vectorArtifact) Compute(ctx context.Context, tag catalog.Tag, item catalog.PathAndCacheKey) error {
	chunks, err := a.chunks.GetChunksByFile(ctx, item.Path, item.CacheKey)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
		texts[i] = ch.Content
	}
	return a.vectors.Upsert(ctx, tag, ids, texts)
}

func (a *vectorArtifact) AddTag(context.Context, catalog.Tag, catalog.PathAndCacheKey) error {
	return nil
}

func (a *vectorArtifact) RemoveTag(context.Context, catalog.Tag, catalog.PathAndCacheKey) error {
	return nil
}

func (a *vectorArtifact) Del(ctx context.Context, tag catalog.Tag, item catalog.PathAndCacheKey) error {
	chunks, err := a.chunks.GetChunksByFile(ctx, item.Path, item.CacheKey)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}
	return a.vectors.Delete(ctx, tag, ids)
}

// snippetArtifact extracts the symbols already attached to each chunk
// (populated by the chunker's tree-sitter walk) and indexes them by name for
// completion's root-path lookup.
type snippetArtifact struct {
	chunks   *chunkindex.Store
	snippets *snippetindex.Index
}

func newSnippetArtifact(chunks *chunkindex.Store, snippets *snippetindex.Index) *snippetArtifact {
	return &snippetArtifact{chunks: chunks, snippets: snippets}
}

func (a *snippetArtifact) ID() string { return "snippets" }

func (a *snippetArtifact) Compute(ctx context.Context, _ catalog.Tag, item catalog.PathAndCacheKey) error {
	chunks, err := a.chunks.GetChunksByFile(ctx, item.Path, item.CacheKey)
	if err != nil {
		return err
	}
	entries := make(map[string]snippetindex.Snippet)
	for _, ch := range chunks {
		for i, sym := range ch.Symbols {
			docID := fmt.Sprintf("%s#%d", ch.ID, i)
			entries[docID] = snippetindex.Snippet{
				ChunkID:    ch.ID,
				SymbolName: sym.Name,
				SymbolType: string(sym.Type),
				FilePath:   ch.FilePath,
				Signature:  sym.Signature,
			}
		}
	}
	return a.snippets.AddBatch(ctx, entries)
}

func (a *snippetArtifact) AddTag(context.Context, catalog.Tag, catalog.PathAndCacheKey) error {
	return nil
}

func (a *snippetArtifact) RemoveTag(context.Context, catalog.Tag, catalog.PathAndCacheKey) error {
	return nil
}

func (a *snippetArtifact) Del(ctx context.Context, _ catalog.Tag, item catalog.PathAndCacheKey) error {
	chunks, err := a.chunks.GetChunksByFile(ctx, item.Path, item.CacheKey)
	if err != nil {
		return err
	}
	for _, ch := range chunks {
		if err := a.snippets.DeleteByChunk(ctx, ch.ID); err != nil {
			return err
		}
	}
	return nil
}
