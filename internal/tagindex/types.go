// Package tagindex holds the per-artifact indexes that sit behind a tag:
// chunk storage, the vector graph, full-text search, symbol snippets, and
// the cross-tag content cache. Each sub-package owns one artifact and is
// driven by the refresh planner's classified operations.
package tagindex

import "errors"

// ErrEmbedderUnavailable is returned by vectorindex operations when no
// embedding function was configured. Callers (the orchestrator) treat this
// as "skip the vector artifact for this run", not a fatal error.
var ErrEmbedderUnavailable = errors.New("tagindex: embedder unavailable")
