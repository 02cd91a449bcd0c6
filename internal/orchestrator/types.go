// Package orchestrator turns a directory or file-set refresh request into
// the sequence of per-artifact updates that bring a tag's indexes in sync
// with disk, generalizing internal/index.Coordinator's single-file-event
// model into a batching, pausable, cancellable directory walker driven by
// internal/planner's classified plans.
package orchestrator

import "fmt"

// Status is the coarse state of one refresh_dirs/refresh_files call, mirrored
// straight onto the IDE-facing progress message.
type Status string

const (
	StatusLoading   Status = "loading"
	StatusIndexing  Status = "indexing"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusDisabled  Status = "disabled"
)

// ProgressUpdate is one point in the stream a refresh call emits. Fraction
// is monotonic within a call except for the initial 0 and on a
// failure/pause/cancel transition, per the ordering guarantee every
// artifact's update loop must honor.
type ProgressUpdate struct {
	Fraction           float64
	Description        string
	Status             Status
	ShouldClearIndexes bool
	DebugInfo          string
}

func progress(fraction float64, status Status, format string, args ...any) ProgressUpdate {
	return ProgressUpdate{
		Fraction:    fraction,
		Description: fmt.Sprintf(format, args...),
		Status:      status,
	}
}

func failed(err error, shouldClear bool) ProgressUpdate {
	return ProgressUpdate{
		Fraction:           0,
		Description:        err.Error(),
		Status:             StatusFailed,
		ShouldClearIndexes: shouldClear,
		DebugInfo:          fmt.Sprintf("%+v", err),
	}
}
