package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatherer_CollectMergesAllSources(t *testing.T) {
	g := NewGatherer(50 * time.Millisecond)
	g.Register("a", func(ctx context.Context, in Input) ([]Snippet, error) {
		return []Snippet{{Source: SourceRootPath, Content: "a"}}, nil
	})
	g.Register("b", func(ctx context.Context, in Input) ([]Snippet, error) {
		return []Snippet{{Source: SourceImport, Content: "b"}}, nil
	})

	out := g.Collect(context.Background(), Input{})
	require.Len(t, out, 2)
}

func TestGatherer_SlowSourceContributesNothing(t *testing.T) {
	g := NewGatherer(10 * time.Millisecond)
	g.Register("slow", func(ctx context.Context, in Input) ([]Snippet, error) {
		select {
		case <-time.After(time.Second):
			return []Snippet{{Content: "too late"}}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	out := g.Collect(context.Background(), Input{})
	assert.Empty(t, out)
}

func TestGatherer_FailingSourceTripsBreaker(t *testing.T) {
	g := NewGatherer(50 * time.Millisecond)
	calls := 0
	g.Register("flaky", func(ctx context.Context, in Input) ([]Snippet, error) {
		calls++
		return nil, errors.New("boom")
	})

	for i := 0; i < 5; i++ {
		g.Collect(context.Background(), Input{})
	}
	assert.Less(t, calls, 5, "circuit breaker should stop calling a persistently failing source")
}

func TestGatherer_UnregisteredSourceIsNoop(t *testing.T) {
	g := NewGatherer(time.Millisecond)
	out := g.Collect(context.Background(), Input{})
	assert.Empty(t, out)
}
