// Package planner computes the work needed to bring one tag's artifact
// index into sync with the current state of a workspace, by diffing the
// durable catalog against a snapshot of the files on disk.
package planner

import (
	"time"

	"github.com/passion1014/axlrator-continue/internal/catalog"
)

// FileStat describes one file as seen on disk at planning time.
type FileStat struct {
	Size         int64
	LastModified time.Time
}

// FileStats maps an absolute path to its current on-disk stat.
type FileStats map[string]FileStat

// maxFileSize files larger than this are dropped from consideration before
// planning, matching the catalog's tolerance for large blobs.
const maxFileSize = 5 * 1024 * 1024

// RefreshPlan is the classified work for one tag/artifact pair.
type RefreshPlan struct {
	Compute          []catalog.PathAndCacheKey
	Del              []catalog.PathAndCacheKey
	AddTag           []catalog.PathAndCacheKey
	RemoveTag        []catalog.PathAndCacheKey
	TouchLastUpdated []catalog.PathAndCacheKey
}

// IsEmpty reports whether the plan has no work of any kind.
func (p RefreshPlan) IsEmpty() bool {
	return len(p.Compute) == 0 && len(p.Del) == 0 && len(p.AddTag) == 0 &&
		len(p.RemoveTag) == 0 && len(p.TouchLastUpdated) == 0
}

// CompleteFunc persists the outcome of applying one classified slice of the
// plan. kind must be one of catalog.Compute, catalog.Add, catalog.Remove,
// catalog.UpdateLastUpdated, catalog.UpdateNewVersion, catalog.UpdateOldVersion.
type CompleteFunc func(items []catalog.PathAndCacheKey, kind catalog.ApplyKind) error

// ReadFileFunc reads a file's full contents for hashing.
type ReadFileFunc func(path string) ([]byte, error)
