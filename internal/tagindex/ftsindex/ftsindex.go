// Package ftsindex is the full-text-search artifact behind a tag. It is a
// thin wrapper over internal/catalog's trigram FTS5 table: the catalog
// already owns the schema and the tag-scoped identity, so indexing here
// just means recording and retrieving chunk content by (path, cache_key).
package ftsindex

import (
	"context"

	"github.com/passion1014/axlrator-continue/internal/catalog"
)

// Index indexes and searches chunk content through a shared catalog.
type Index struct {
	cat *catalog.Catalog
}

// New wraps an already-open catalog.
func New(cat *catalog.Catalog) *Index {
	return &Index{cat: cat}
}

// Add records one chunk's content for full-text retrieval.
func (i *Index) Add(ctx context.Context, path, cacheKey, content string) error {
	return i.cat.IndexChunkContent(path, cacheKey, content)
}

// Remove drops one (path, cache_key)'s indexed content.
func (i *Index) Remove(ctx context.Context, path, cacheKey string) error {
	return i.cat.RemoveChunkContent(path, cacheKey)
}

// Search runs a trigram query, returning the matching (path, cache_key) pairs.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]catalog.PathAndCacheKey, error) {
	return i.cat.SearchFTS(query, limit)
}
