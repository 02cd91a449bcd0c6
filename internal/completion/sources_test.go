package completion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentlyEditedSource_MostRecentFirst(t *testing.T) {
	in := Input{RecentEdits: []RecentEdit{
		{FilePath: "/ws/a.go", Text: "func A() {}", SavedAt: time.Unix(1, 0)},
		{FilePath: "/ws/b.go", Text: "func B() {}", SavedAt: time.Unix(2, 0)},
	}}
	out, err := RecentlyEditedSource(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "func B() {}", out[0].Content)
	assert.Equal(t, SourceRecentlyEdited, out[0].Source)
}

func TestRecentlyEditedSource_SkipsEmptyEdits(t *testing.T) {
	in := Input{RecentEdits: []RecentEdit{{FilePath: "/ws/a.go", Text: ""}}}
	out, err := RecentlyEditedSource(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestClipboardSource_ReturnsAndCaches(t *testing.T) {
	src := NewClipboardSource()
	out, err := src.Collect(context.Background(), Input{ClipboardText: "copied text", FilePath: "/ws/a.go"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, SourceClipboard, out[0].Source)
	assert.Equal(t, "copied text", out[0].Content)

	// second call with identical clipboard text should hit the cache and
	// still return the same content.
	out2, err := src.Collect(context.Background(), Input{ClipboardText: "copied text", FilePath: "/ws/a.go"})
	require.NoError(t, err)
	assert.Equal(t, out, out2)
}

func TestClipboardSource_EmptyIsNoop(t *testing.T) {
	src := NewClipboardSource()
	out, err := src.Collect(context.Background(), Input{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDiffSource_SplitsHunks(t *testing.T) {
	diff := "diff --git a/x.go b/x.go\n@@ -1,2 +1,2 @@\n-old\n+new\n@@ -10,1 +10,1 @@\n-foo\n+bar\n"
	src := NewDiffSource()
	out, err := src.Collect(context.Background(), Input{VCSDiff: diff})
	require.NoError(t, err)
	require.Len(t, out, 3) // the "diff --git" header line and each @@ hunk
	for _, s := range out {
		assert.Equal(t, SourceDiff, s.Source)
	}
	assert.Contains(t, out[0].Content, "diff --git")
	assert.Contains(t, out[1].Content, "old")
	assert.Contains(t, out[2].Content, "foo")
}

func TestDiffSource_EmptyIsNoop(t *testing.T) {
	src := NewDiffSource()
	out, err := src.Collect(context.Background(), Input{})
	require.NoError(t, err)
	assert.Empty(t, out)
}
