package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/passion1014/axlrator-continue/internal/catalog"
)

// maxConcurrentReads bounds the number of files hashed concurrently while
// planning, matching the scanner's worker-pool pattern without unbounded
// goroutine fan-out.
const maxConcurrentReads = 10

// pathHistory is one path's catalog history: every cache_key ever seen for
// it under the tag, plus the most recently updated one.
type pathHistory struct {
	latestKey     string
	latestUpdated int64
	allKeys       []string
}

// Plan computes a RefreshPlan for tag against the given file snapshot,
// using cat to read catalog state and the global cache, and readFile to
// hash new or changed content. repo is accepted for parity with the
// contract but not currently consulted by the classification rules.
func Plan(ctx context.Context, cat *catalog.Catalog, tag catalog.Tag, stats FileStats, readFile ReadFileFunc, repo string) (RefreshPlan, CompleteFunc, error) {
	filtered := make(FileStats, len(stats))
	for path, fs := range stats {
		if fs.Size > maxFileSize {
			continue
		}
		filtered[path] = fs
	}

	rows, err := cat.AllRows(tag)
	if err != nil {
		return RefreshPlan{}, nil, fmt.Errorf("load catalog rows: %w", err)
	}

	byPath := make(map[string]*pathHistory)
	for _, r := range rows {
		h, ok := byPath[r.Path]
		if !ok {
			h = &pathHistory{}
			byPath[r.Path] = h
		}
		h.allKeys = append(h.allKeys, r.CacheKey)
		unixSec := r.LastUpdated.Unix()
		if unixSec >= h.latestUpdated {
			h.latestUpdated = unixSec
			h.latestKey = r.CacheKey
		}
	}

	var add, del, touchLastUpdated, updateNewVersion, updateOldVersion []catalog.PathAndCacheKey

	for path, hist := range byPath {
		fs, present := filtered[path]
		if !present {
			for _, key := range hist.allKeys {
				del = append(del, catalog.PathAndCacheKey{Path: path, CacheKey: key})
			}
			continue
		}
		if fs.LastModified.Unix() <= hist.latestUpdated {
			continue
		}

		content, err := readFile(path)
		if err != nil {
			return RefreshPlan{}, nil, fmt.Errorf("read %s: %w", path, err)
		}
		newKey := hashContent(content)

		if newKey == hist.latestKey {
			touchLastUpdated = append(touchLastUpdated, catalog.PathAndCacheKey{Path: path, CacheKey: hist.latestKey})
			for _, key := range hist.allKeys {
				if key != hist.latestKey {
					updateOldVersion = append(updateOldVersion, catalog.PathAndCacheKey{Path: path, CacheKey: key})
				}
			}
			continue
		}

		updateNewVersion = append(updateNewVersion, catalog.PathAndCacheKey{Path: path, CacheKey: newKey})
		for _, key := range hist.allKeys {
			updateOldVersion = append(updateOldVersion, catalog.PathAndCacheKey{Path: path, CacheKey: key})
		}
	}

	var newPaths []string
	for path := range filtered {
		if _, seen := byPath[path]; !seen {
			newPaths = append(newPaths, path)
		}
	}

	newKeys, err := hashConcurrently(ctx, newPaths, readFile)
	if err != nil {
		return RefreshPlan{}, nil, err
	}
	for _, pk := range newKeys {
		add = append(add, pk)
	}

	plan := RefreshPlan{TouchLastUpdated: touchLastUpdated}

	for _, pk := range append(append([]catalog.PathAndCacheKey{}, add...), updateNewVersion...) {
		tags, err := cat.GetTagsFor(pk.CacheKey, tag.ArtifactID)
		if err != nil {
			return RefreshPlan{}, nil, fmt.Errorf("get tags for %s: %w", pk.CacheKey, err)
		}
		if len(tags) > 0 {
			plan.AddTag = append(plan.AddTag, pk)
		} else {
			plan.Compute = append(plan.Compute, pk)
		}
	}

	for _, pk := range append(append([]catalog.PathAndCacheKey{}, del...), updateOldVersion...) {
		tags, err := cat.GetTagsFor(pk.CacheKey, tag.ArtifactID)
		if err != nil {
			return RefreshPlan{}, nil, fmt.Errorf("get tags for %s: %w", pk.CacheKey, err)
		}
		stillReferenced := false
		for _, t := range tags {
			if t != tag {
				stillReferenced = true
				break
			}
		}
		if stillReferenced {
			plan.RemoveTag = append(plan.RemoveTag, pk)
		} else {
			plan.Del = append(plan.Del, pk)
		}
	}

	complete := makeComplete(cat, tag)
	return plan, complete, nil
}

// hashConcurrently reads and hashes paths with bounded concurrency.
func hashConcurrently(ctx context.Context, paths []string, readFile ReadFileFunc) ([]catalog.PathAndCacheKey, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	sem := semaphore.NewWeighted(maxConcurrentReads)
	results := make([]catalog.PathAndCacheKey, len(paths))
	errs := make([]error, len(paths))

	done := make(chan int, len(paths))
	for i, p := range paths {
		i, p := i, p
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("acquire read slot: %w", err)
		}
		go func() {
			defer sem.Release(1)
			content, err := readFile(p)
			if err != nil {
				errs[i] = err
			} else {
				results[i] = catalog.PathAndCacheKey{Path: p, CacheKey: hashContent(content)}
			}
			done <- i
		}()
	}
	for range paths {
		<-done
	}

	var out []catalog.PathAndCacheKey
	for i, r := range results {
		if errs[i] != nil {
			return nil, fmt.Errorf("hash %s: %w", paths[i], errs[i])
		}
		out = append(out, r)
	}
	return out, nil
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// makeComplete builds the idempotent callback that persists a classified
// slice of the plan. It never touches the global cache for UpdateLastUpdated
// or UpdateNewVersion, matching the planner's contract.
func makeComplete(cat *catalog.Catalog, tag catalog.Tag) CompleteFunc {
	return func(items []catalog.PathAndCacheKey, kind catalog.ApplyKind) error {
		return cat.Apply(tag, items, kind)
	}
}
