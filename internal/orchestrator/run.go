package orchestrator

import (
	"context"
	"fmt"

	"github.com/passion1014/axlrator-continue/internal/catalog"
	"github.com/passion1014/axlrator-continue/internal/planner"
)

// applyFunc performs one artifact's side effect for one classified item.
type applyFunc func(ctx context.Context, tag catalog.Tag, item catalog.PathAndCacheKey) error

// bucket pairs one classified slice of a plan with the ApplyKind its
// completion should be recorded under and the artifact method that
// processes it.
type bucket struct {
	items []catalog.PathAndCacheKey
	kind  catalog.ApplyKind
	apply applyFunc
}

// buildBuckets returns the buckets an artifact's build phase must process:
// timestamp bookkeeping first (no artifact work), then newly- or
// previously-computed content, in the order spec.md §4.5 requires.
func buildBuckets(plan planner.RefreshPlan, a Artifact) []bucket {
	return []bucket{
		{plan.TouchLastUpdated, catalog.UpdateLastUpdated, noopApply},
		{plan.Compute, catalog.Compute, a.Compute},
		{plan.AddTag, catalog.Add, a.AddTag},
	}
}

// teardownBuckets returns the buckets an artifact's teardown phase must
// process, in order.
func teardownBuckets(plan planner.RefreshPlan, a Artifact) []bucket {
	return []bucket{
		{plan.RemoveTag, catalog.Remove, a.RemoveTag},
		{plan.Del, catalog.Remove, a.Del},
	}
}

func noopApply(context.Context, catalog.Tag, catalog.PathAndCacheKey) error { return nil }

// progressCounter tracks how many items have completed against a fixed
// total, reporting fraction in [0,1]; fraction is monotonic by construction
// since done only ever increases within one counter's lifetime.
type progressCounter struct {
	done, total int
}

func (c *progressCounter) fraction() float64 {
	if c.total == 0 {
		return 1
	}
	return float64(c.done) / float64(c.total)
}

// runBuckets drives one artifact's buckets against its plan, honoring pause
// and cancellation between every batch and every item, and completing each
// item individually so a crash mid-batch leaves the catalog consistent with
// what was actually durable.
func runBuckets(ctx context.Context, pt *PauseToken, tag catalog.Tag, artifactID string, buckets []bucket, complete planner.CompleteFunc, filesPerBatch int, counter *progressCounter, out chan<- ProgressUpdate) error {
	if filesPerBatch <= 0 {
		filesPerBatch = 500
	}

	for _, b := range buckets {
		for start := 0; start < len(b.items); start += filesPerBatch {
			end := start + filesPerBatch
			if end > len(b.items) {
				end = len(b.items)
			}
			if err := pt.wait(ctx); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			for _, item := range b.items[start:end] {
				if err := pt.wait(ctx); err != nil {
					return err
				}
				if err := ctx.Err(); err != nil {
					return err
				}

				if err := b.apply(ctx, tag, item); err != nil {
					return fmt.Errorf("%s: %s: %w", artifactID, item.Path, err)
				}
				if err := complete([]catalog.PathAndCacheKey{item}, b.kind); err != nil {
					return fmt.Errorf("%s: complete %s: %w", artifactID, item.Path, err)
				}

				counter.done++
				select {
				case out <- progress(counter.fraction(), StatusIndexing, "%s: %s", artifactID, item.Path):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return nil
}
