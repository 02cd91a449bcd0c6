package ide

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passion1014/axlrator-continue/internal/orchestrator"
)

type fakeMessenger struct {
	sent []orchestrator.ProgressUpdate
}

func (f *fakeMessenger) WorkspaceDirs(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeMessenger) FileStats(ctx context.Context, paths []string) (map[string]FileStats, error) {
	return nil, nil
}
func (f *fakeMessenger) ReadFile(ctx context.Context, path string) (string, error) { return "", nil }
func (f *fakeMessenger) ReadRange(ctx context.Context, r FileRange) (string, error) { return "", nil }
func (f *fakeMessenger) Branch(ctx context.Context, dir string) (string, error)     { return "", nil }
func (f *fakeMessenger) RepoName(ctx context.Context, dir string) (*string, error)  { return nil, nil }
func (f *fakeMessenger) Diff(ctx context.Context, includeUntracked bool) ([]string, error) {
	return nil, nil
}
func (f *fakeMessenger) Clipboard(ctx context.Context) (ClipboardContent, error) {
	return ClipboardContent{}, nil
}
func (f *fakeMessenger) GotoDefinition(ctx context.Context, path string, pos FileRange) ([]FileRange, error) {
	return nil, nil
}
func (f *fakeMessenger) Settings(ctx context.Context) (IDESettings, error) { return IDESettings{}, nil }
func (f *fakeMessenger) SendProgress(ctx context.Context, update orchestrator.ProgressUpdate) error {
	f.sent = append(f.sent, update)
	return nil
}
func (f *fakeMessenger) RefreshSubmenuItems(ctx context.Context, providers []string) error {
	return nil
}

func TestAsProgressSink_ForwardsToMessenger(t *testing.T) {
	m := &fakeMessenger{}
	sink := AsProgressSink(m)

	update := orchestrator.ProgressUpdate{Fraction: 0.5, Status: orchestrator.StatusIndexing, Description: "halfway"}
	require.NoError(t, sink.Progress(context.Background(), update))

	require.Len(t, m.sent, 1)
	assert.Equal(t, update, m.sent[0])
}

func TestCompletionRequest_ToInput_SplitsAtCursor(t *testing.T) {
	content := "line one\nline two\nline three"
	req := CompletionRequest{FilePath: "x.go", Line: 1, Character: 5}

	in := req.ToInput(content)

	assert.Equal(t, "line one\nline ", in.Prefix)
	assert.Equal(t, "two\nline three", in.Suffix)
	assert.Equal(t, content, in.FileContent)
	assert.Equal(t, "x.go", in.FilePath)
}

func TestCompletionRequest_ToInput_ManualPrefixOverrides(t *testing.T) {
	content := "abc\ndef"
	manual := "custom prefix"
	req := CompletionRequest{FilePath: "x.go", Line: 1, Character: 1, ManuallyPassedPrefix: &manual}

	in := req.ToInput(content)

	assert.Equal(t, manual, in.Prefix)
}

func TestCompletionRequest_ToInput_CursorAtStart(t *testing.T) {
	content := "hello world"
	req := CompletionRequest{FilePath: "x.go", Line: 0, Character: 0}

	in := req.ToInput(content)

	assert.Equal(t, "", in.Prefix)
	assert.Equal(t, "hello world", in.Suffix)
}

func TestCompletionRequest_ToInput_CursorAtEnd(t *testing.T) {
	content := "hello"
	req := CompletionRequest{FilePath: "x.go", Line: 0, Character: 5}

	in := req.ToInput(content)

	assert.Equal(t, "hello", in.Prefix)
	assert.Equal(t, "", in.Suffix)
}
