package completion

import (
	"context"
	"strings"
	"sync"
)

// StartStreamFunc begins a raw model token stream for prompt, returning a
// channel of characters that closes when the model finishes or ctx is
// cancelled.
type StartStreamFunc func(ctx context.Context, prompt string) (<-chan rune, error)

// Generator wraps one in-flight model stream, recording everything it has
// produced so a later request that extends the same prefix can tee from it
// instead of starting a fresh model call.
type Generator struct {
	Prefix string

	mu       sync.Mutex
	cond     *sync.Cond
	produced []rune
	finished bool
	cancel   context.CancelFunc
}

// NewGenerator starts pumping raw's output into an internal buffer and
// returns immediately; callers read it via Tee.
func NewGenerator(parent context.Context, prefix, prompt string, start StartStreamFunc) (*Generator, error) {
	ctx, cancel := context.WithCancel(parent)

	raw, err := start(ctx, prompt)
	if err != nil {
		cancel()
		return nil, err
	}

	g := &Generator{Prefix: prefix, cancel: cancel}
	g.cond = sync.NewCond(&g.mu)

	go func() {
		<-ctx.Done()
		g.mu.Lock()
		g.cond.Broadcast()
		g.mu.Unlock()
	}()

	go func() {
		for r := range raw {
			g.mu.Lock()
			g.produced = append(g.produced, r)
			g.cond.Broadcast()
			g.mu.Unlock()
		}
		g.mu.Lock()
		g.finished = true
		g.cond.Broadcast()
		g.mu.Unlock()
	}()

	return g, nil
}

// Cancel stops the underlying model stream.
func (g *Generator) Cancel() { g.cancel() }

// SoFarProduced returns everything streamed so far.
func (g *Generator) SoFarProduced() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return string(g.produced)
}

// Tee replays produced characters starting at skip, then continues with
// live output as it arrives, until the generator finishes, runs out of
// subscribers, or ctx is cancelled.
func (g *Generator) Tee(ctx context.Context, skip int) <-chan rune {
	out := make(chan rune)
	go func() {
		defer close(out)
		i := skip
		for {
			g.mu.Lock()
			for i >= len(g.produced) && !g.finished && ctx.Err() == nil {
				g.cond.Wait()
			}
			if ctx.Err() != nil {
				g.mu.Unlock()
				return
			}
			if i >= len(g.produced) && g.finished {
				g.mu.Unlock()
				return
			}
			r := g.produced[i]
			i++
			g.mu.Unlock()

			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// ReuseManager holds the single pending generator for a completion session
// (one per open file/request stream), implementing spec.md §4.6 step 6:
// tee from the prior generator when the new prefix is still a continuation
// of what it has already produced, otherwise cancel and restart.
type ReuseManager struct {
	mu     sync.Mutex
	active *Generator
}

// NewReuseManager creates an empty manager.
func NewReuseManager() *ReuseManager {
	return &ReuseManager{}
}

// Acquire returns a generator streaming for prefix plus how many already-
// produced characters to skip before the caller starts consuming it. When
// reuse applies, the returned generator is the prior one (skip > 0 is
// possible); otherwise a fresh generator is started via start and skip is 0.
func (m *ReuseManager) Acquire(ctx context.Context, prefix, prompt string, start StartStreamFunc) (*Generator, int, error) {
	m.mu.Lock()
	prior := m.active
	m.mu.Unlock()

	if prior != nil {
		combined := prior.Prefix + prior.SoFarProduced()
		if len(prefix) >= len(prior.Prefix) && strings.HasPrefix(combined, prefix) {
			return prior, len(prefix) - len(prior.Prefix), nil
		}
		prior.Cancel()
	}

	g, err := NewGenerator(ctx, prefix, prompt, start)
	if err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	m.active = g
	m.mu.Unlock()
	return g, 0, nil
}
