package completion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamOf(runes string) StartStreamFunc {
	return func(ctx context.Context, prompt string) (<-chan rune, error) {
		out := make(chan rune)
		go func() {
			defer close(out)
			for _, r := range runes {
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	}
}

func drain(t *testing.T, ch <-chan rune, timeout time.Duration) string {
	t.Helper()
	var b []rune
	deadline := time.After(timeout)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return string(b)
			}
			b = append(b, r)
		case <-deadline:
			t.Fatal("timed out draining generator output")
			return ""
		}
	}
}

func TestGenerator_TeeFromStart(t *testing.T) {
	g, err := NewGenerator(context.Background(), "func f() {", "prompt", streamOf("return 1\n}"))
	require.NoError(t, err)

	got := drain(t, g.Tee(context.Background(), 0), time.Second)
	assert.Equal(t, "return 1\n}", got)
}

func TestGenerator_TeeSkipsAlreadyProduced(t *testing.T) {
	g, err := NewGenerator(context.Background(), "func f() {", "prompt", streamOf("abcdef"))
	require.NoError(t, err)

	got := drain(t, g.Tee(context.Background(), 3), time.Second)
	assert.Equal(t, "def", got)
}

func TestReuseManager_ReusesContinuingPrefix(t *testing.T) {
	m := NewReuseManager()
	g1, skip, err := m.Acquire(context.Background(), "func f() {", "p", streamOf("return 1\n}"))
	require.NoError(t, err)
	assert.Equal(t, 0, skip)
	// give the generator time to stream its output before the next prefix
	// is evaluated against it.
	time.Sleep(50 * time.Millisecond)

	g2, skip, err := m.Acquire(context.Background(), "func f() {return", "p", streamOf("should not be used"))
	require.NoError(t, err)
	assert.Same(t, g1, g2)
	assert.Equal(t, len("func f() {return")-len("func f() {"), skip)
}

func TestReuseManager_RestartsOnDivergentPrefix(t *testing.T) {
	m := NewReuseManager()
	g1, _, err := m.Acquire(context.Background(), "func f() {", "p", streamOf("return 1\n}"))
	require.NoError(t, err)

	g2, skip, err := m.Acquire(context.Background(), "func other() {", "p", streamOf("return 2\n}"))
	require.NoError(t, err)
	assert.NotSame(t, g1, g2)
	assert.Equal(t, 0, skip)
}
