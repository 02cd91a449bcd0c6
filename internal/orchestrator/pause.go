package orchestrator

import (
	"context"
	"sync/atomic"
	"time"
)

// pausePollInterval is how often a paused refresh re-checks the token,
// matching the 100ms pause-polling interval spec.md's concurrency model
// requires.
const pausePollInterval = 100 * time.Millisecond

// PauseToken is a cooperative suspend switch shared across goroutines,
// generalized from the ctx.Done() checks coordinator.go sprinkles through
// applyFileChanges into an explicit, independently-settable signal.
type PauseToken struct {
	paused atomic.Bool
}

// NewPauseToken returns a token that starts in the running state.
func NewPauseToken() *PauseToken {
	return &PauseToken{}
}

// Pause suspends any refresh watching this token at its next poll point.
func (t *PauseToken) Pause() { t.paused.Store(true) }

// Resume clears a pause set by Pause.
func (t *PauseToken) Resume() { t.paused.Store(false) }

// IsPaused reports the token's current state.
func (t *PauseToken) IsPaused() bool { return t.paused.Load() }

// wait busy-waits in pausePollInterval slices while the token is paused,
// still honoring ctx cancellation. It returns ctx.Err() if ctx is done
// first, or nil once the token is no longer paused.
func (t *PauseToken) wait(ctx context.Context) error {
	if !t.paused.Load() {
		return nil
	}
	ticker := time.NewTicker(pausePollInterval)
	defer ticker.Stop()
	for t.paused.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
