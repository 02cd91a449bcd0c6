// Package globalcache is a read-only view of the cross-tag content cache.
// Mutation happens as a side effect of catalog.Catalog.Apply during
// planning, driven by the refresh planner's complete callback, not by this
// package; globalcache only answers "which tags already have this content
// under this artifact", letting the planner reuse indexed content instead
// of recomputing it.
package globalcache

import "github.com/passion1014/axlrator-continue/internal/catalog"

// Reader answers lookups against the shared content cache.
type Reader struct {
	cat *catalog.Catalog
}

// New wraps an already-open catalog.
func New(cat *catalog.Catalog) *Reader {
	return &Reader{cat: cat}
}

// TagsFor returns every tag that already has cacheKey indexed under artifactID.
func (r *Reader) TagsFor(cacheKey, artifactID string) ([]catalog.Tag, error) {
	return r.cat.GetTagsFor(cacheKey, artifactID)
}

// HasAny reports whether any tag already has cacheKey indexed under artifactID.
func (r *Reader) HasAny(cacheKey, artifactID string) (bool, error) {
	tags, err := r.cat.GetTagsFor(cacheKey, artifactID)
	if err != nil {
		return false, err
	}
	return len(tags) > 0, nil
}
