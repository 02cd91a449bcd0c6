// Package ide defines the seams a real editor integration implements to
// drive the orchestrator and completion pipeline over a transport, without
// picking or implementing one. No component in this repository speaks
// JSON-RPC, LSP, or any other wire protocol over these interfaces; an
// adapter binding them to an actual IDE process is out of scope here the
// same way internal/embed defines Embedder without shipping every possible
// model runtime.
package ide

import (
	"context"
	"time"

	"github.com/passion1014/axlrator-continue/internal/completion"
	"github.com/passion1014/axlrator-continue/internal/orchestrator"
)

// FileRange is a byte or line/column span inside a file, independent of
// completion.Range so a transport layer can marshal it without importing
// the completion package's internal cursor representation.
type FileRange struct {
	Path       string
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
}

// FileStats is the per-file metadata an IDE reports back for a set of
// paths, keyed by path in the map the Messenger method returns.
type FileStats struct {
	Size         int64
	LastModified time.Time
}

// ClipboardContent is the IDE's current clipboard snapshot, timestamped so
// a snippet source can decide whether it is stale.
type ClipboardContent struct {
	Text     string
	CopiedAt time.Time
}

// IDESettings carries the handful of editor-side preferences the pipeline
// reads but never writes: whether the user has autocomplete enabled at
// all, and which model the IDE wants used.
type IDESettings struct {
	EnableAutocomplete bool
	ModelID            string
}

// Messenger is everything the core asks of or reports to an editor
// integration. Methods prefixed by what spec the wire protocol calls them
// ("Consumes from IDE" vs "Emits to IDE") are kept in the same interface
// since a real transport binds both directions to the same connection.
type Messenger interface {
	// WorkspaceDirs returns every open workspace root, as the core sees
	// them at the start of a refresh.
	WorkspaceDirs(ctx context.Context) ([]string, error)

	// FileStats returns size/mtime for each of paths, used by the refresh
	// planner to skip files that have not changed since the catalog's
	// recorded cache key was computed.
	FileStats(ctx context.Context, paths []string) (map[string]FileStats, error)

	// ReadFile returns a file's full current content, which may differ
	// from what is on disk if the IDE has unsaved changes.
	ReadFile(ctx context.Context, path string) (string, error)

	// ReadRange returns the text inside one range of one file, used by
	// goto-definition snippet expansion without reading the whole file.
	ReadRange(ctx context.Context, r FileRange) (string, error)

	// Branch returns the current VCS branch for dir, or "" if dir is not
	// under version control. A Messenger that cannot determine this
	// returns "" rather than an error, matching orchestrator.BranchFunc's
	// nil-means-unknown contract.
	Branch(ctx context.Context, dir string) (string, error)

	// RepoName returns a human-readable repository name for dir, or nil
	// if none applies.
	RepoName(ctx context.Context, dir string) (*string, error)

	// Diff returns the current VCS diff as one unified-diff patch per
	// changed file. includeUntracked adds untracked files as whole-file
	// patches.
	Diff(ctx context.Context, includeUntracked bool) ([]string, error)

	// Clipboard returns the IDE's current clipboard snapshot.
	Clipboard(ctx context.Context) (ClipboardContent, error)

	// GotoDefinition resolves the symbol at pos and returns every range it
	// is defined in.
	GotoDefinition(ctx context.Context, path string, pos FileRange) ([]FileRange, error)

	// Settings returns the IDE's current autocomplete configuration.
	Settings(ctx context.Context) (IDESettings, error)

	// SendProgress reports one orchestrator.ProgressUpdate to the IDE,
	// the Go realization of the emitted indexProgress message.
	SendProgress(ctx context.Context, update orchestrator.ProgressUpdate) error

	// RefreshSubmenuItems tells the IDE which context-menu providers are
	// currently available, or that availability now depends on indexing
	// having finished (providers == nil in that case).
	RefreshSubmenuItems(ctx context.Context, providers []string) error
}

// ProgressSink is the narrower interface the orchestrator's own refresh
// loop actually needs: somewhere to forward each ProgressUpdate as it is
// produced, without requiring the full bidirectional Messenger. A
// Messenger satisfies ProgressSink trivially through SendProgress.
type ProgressSink interface {
	Progress(ctx context.Context, update orchestrator.ProgressUpdate) error
}

// messengerProgressSink adapts a Messenger's SendProgress method to the
// narrower ProgressSink interface, the same "wide interface, narrow
// consumer" shape internal/orchestrator.Artifact uses for its own
// dependencies.
type messengerProgressSink struct {
	m Messenger
}

// AsProgressSink returns a ProgressSink backed by m, for callers (like an
// orchestrator refresh loop) that only need to forward progress and should
// not see the rest of Messenger's surface.
func AsProgressSink(m Messenger) ProgressSink {
	return messengerProgressSink{m: m}
}

func (s messengerProgressSink) Progress(ctx context.Context, update orchestrator.ProgressUpdate) error {
	return s.m.SendProgress(ctx, update)
}

// CompletionRequest is the wire shape of an autocomplete/complete call,
// translated into completion.Input by a transport adapter once it has
// resolved FilePath's buffer content and cursor position into a
// prefix/suffix split the same way cmd/axlrator/cmd/complete.go's
// splitAtCursor does for the CLI.
type CompletionRequest struct {
	FilePath              string
	Line, Character       int
	RecentlyEditedRanges  []FileRange
	RecentlyVisitedRanges []FileRange
	ManuallyPassedPrefix  *string
}

// ToInput resolves req against the full current buffer content, returning
// the completion.Input the pipeline expects. It does not gather snippets
// from recentlyVisitedRanges itself; a transport adapter reads those
// ranges through Messenger.ReadRange before constructing req.
func (req CompletionRequest) ToInput(content string) completion.Input {
	prefix, suffix := splitAtCursor(content, req.Line, req.Character)
	if req.ManuallyPassedPrefix != nil {
		prefix = *req.ManuallyPassedPrefix
	}
	return completion.Input{
		FilePath:    req.FilePath,
		Prefix:      prefix,
		Suffix:      suffix,
		FileContent: content,
	}
}

// splitAtCursor mirrors cmd/axlrator/cmd/complete.go's helper of the same
// name; duplicated rather than imported because cmd/axlrator/cmd is an
// application package this library package must not depend on.
func splitAtCursor(content string, line, col int) (prefix, suffix string) {
	start := 0
	cur := 0
	ln := 0
	for i, r := range content {
		if ln == line && cur == col {
			start = i
			break
		}
		if r == '\n' {
			ln++
			cur = 0
			if ln > line {
				start = i
				break
			}
			continue
		}
		cur++
		start = i + 1
	}
	return content[:start], content[start:]
}
