package completion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipeline(t *testing.T, startStream StartStreamFunc) *Pipeline {
	t.Helper()
	cfg := Config{
		DebounceDelay:    time.Millisecond,
		SnippetTimeout:   50 * time.Millisecond,
		DisplayTimeout:   time.Second,
		MaxPromptTokens:  2048,
		ModelTimeout:     200 * time.Millisecond,
		DisabledPatterns: nil,
	}
	return NewPipeline(cfg, func() bool { return true }, startStream)
}

func TestPipeline_ProvideReturnsFilteredCompletion(t *testing.T) {
	p := testPipeline(t, streamOf("return 1"))

	in := Input{
		RequestID:     "req-1",
		FilePath:      "/ws/main.go",
		Language:      "go",
		ManualTrigger: true,
		Prefix:        "func f() int {\n\t",
		Suffix:        "\n}",
		FileContent:   "package sample\n\nfunc f() int {\n\t\n}\n",
	}

	result, err := p.Provide(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "return 1", result.Text)
	assert.True(t, result.Multiline, "bare go code outside a comment allows multiline")
}

func TestPipeline_ProvideAbortsOnPrefilter(t *testing.T) {
	p := testPipeline(t, streamOf("unused"))
	p.cfg.DisabledPatterns = []string{"*.prompt"}
	p.disable = newDisableMatcher(p.cfg)

	result, err := p.Provide(context.Background(), Input{FilePath: "/ws/notes.prompt", FileContent: "x", ManualTrigger: true})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestPipeline_AbortCancelsInFlightRequest(t *testing.T) {
	block := make(chan struct{})
	p := testPipeline(t, func(ctx context.Context, prompt string) (<-chan rune, error) {
		out := make(chan rune)
		go func() {
			defer close(out)
			select {
			case <-block:
			case <-ctx.Done():
			}
		}()
		return out, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := p.Provide(context.Background(), Input{
			RequestID: "req-abort", FilePath: "/ws/main.go", Language: "go",
			ManualTrigger: true, FileContent: "package sample\n",
		})
		done <- err
	}()

	// give Provide time to register the request before aborting it.
	time.Sleep(20 * time.Millisecond)
	assert.True(t, p.Abort("req-abort"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected aborted Provide call to return")
	}
}

func TestPipeline_AcceptSeedsBracketService(t *testing.T) {
	p := testPipeline(t, streamOf("x"))
	p.Accept("req-1", "/ws/main.go", "foo(bar")
	// Accept should not panic even with no matching display entry tracked.
}
