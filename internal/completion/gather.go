package completion

import (
	"context"
	"sync"
	"time"

	"github.com/passion1014/axlrator-continue/internal/errors"
)

// SnippetFunc gathers one kind of snippet for in. It is raced against a
// per-source timeout; a source that times out or errors contributes an
// empty list rather than failing the whole collection.
type SnippetFunc func(ctx context.Context, in Input) ([]Snippet, error)

// Gatherer runs a fixed set of named snippet sources in parallel, each
// guarded by its own internal/errors.CircuitBreaker so a source that is
// persistently failing (an unavailable clipboard provider, a VCS repo that
// errors on every diff) stops being retried on every keystroke instead of
// eating its 100ms timeout budget forever.
type Gatherer struct {
	timeout  time.Duration
	mu       sync.Mutex
	sources  map[string]SnippetFunc
	breakers map[string]*errors.CircuitBreaker
}

// NewGatherer builds an empty gatherer with the given per-source timeout.
func NewGatherer(timeout time.Duration) *Gatherer {
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	return &Gatherer{
		timeout:  timeout,
		sources:  make(map[string]SnippetFunc),
		breakers: make(map[string]*errors.CircuitBreaker),
	}
}

// Register adds a named snippet source. Re-registering a name replaces it
// and resets its circuit breaker.
func (g *Gatherer) Register(name string, fn SnippetFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sources[name] = fn
	g.breakers[name] = errors.NewCircuitBreaker(name, errors.WithMaxFailures(3), errors.WithResetTimeout(30*time.Second))
}

// Collect runs every registered source concurrently and returns their
// combined, still-source-tagged results. A source whose breaker is open,
// or that exceeds the per-source timeout, contributes nothing for this
// call but is not otherwise penalized beyond its breaker's own bookkeeping.
func (g *Gatherer) Collect(ctx context.Context, in Input) []Snippet {
	g.mu.Lock()
	names := make([]string, 0, len(g.sources))
	for name := range g.sources {
		names = append(names, name)
	}
	g.mu.Unlock()

	results := make([][]Snippet, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = g.collectOne(ctx, name, in)
		}(i, name)
	}
	wg.Wait()

	var out []Snippet
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func (g *Gatherer) collectOne(ctx context.Context, name string, in Input) []Snippet {
	g.mu.Lock()
	fn := g.sources[name]
	cb := g.breakers[name]
	g.mu.Unlock()

	if fn == nil || !cb.Allow() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		snippets []Snippet
		err      error
	}
	done := make(chan result, 1)
	go func() {
		snippets, err := fn(ctx, in)
		done <- result{snippets, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			cb.RecordFailure()
			return nil
		}
		cb.RecordSuccess()
		return r.snippets
	case <-ctx.Done():
		cb.RecordFailure()
		return nil
	}
}
