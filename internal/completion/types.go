// Package completion implements the autocomplete request pipeline:
// prefilter, debounce, snippet gathering, prompt rendering, multiline
// decision, generator reuse, stream filtering, and display lifecycle. It is
// new to this codebase (the teacher has no completion surface), assembled
// from internal/debounce, internal/filterpipeline, internal/cache,
// internal/gitignore and internal/chunk the same way internal/orchestrator
// assembles internal/planner and internal/tagindex.
package completion

import "time"

// Range is a half-open or point selection inside a file, 0-indexed like
// chunk.Point.
type Range struct {
	StartLine, StartCol int
	EndLine, EndCol     int
}

// RecentEdit is one entry of the IDE's recently-edited-ranges buffer.
type RecentEdit struct {
	FilePath string
	Range    Range
	Text     string
	SavedAt  time.Time
}

// Input is everything the pipeline needs to produce one completion. Fields
// the IDE cannot supply (clipboard, recent edits, VCS diff, IDE-provided
// snippets) are optional; a nil/empty value just means that source
// contributes nothing.
type Input struct {
	RequestID     string
	FilePath      string // absolute path on disk
	WorkspaceRoot string
	Language      string
	ModelID       string

	Prefix string // buffer text before the cursor
	Suffix string // buffer text after the cursor

	// FileContent is the full current buffer, possibly unsaved. Used to
	// reparse the AST for root-path lookups rather than re-reading disk.
	FileContent string

	// SelectedCompletionInfo is true when the IDE's own completion popup is
	// currently visible, which forces a single-line result.
	SelectedCompletionInfo bool

	ManualTrigger bool // bypasses debounce when true

	ClipboardText string
	RecentEdits   []RecentEdit
	VCSDiff       string
	IDESnippets   []Snippet

	RepoName string
}

// SnippetSource names where a gathered Snippet came from, matching the
// priority table in the prompt-render step.
type SnippetSource string

const (
	SourceClipboard       SnippetSource = "clipboard"
	SourceRecentlyVisited SnippetSource = "recently_visited"
	SourceRecentlyEdited  SnippetSource = "recently_edited"
	SourceDiff            SnippetSource = "diff"
	SourceImport          SnippetSource = "import"
	SourceRootPath        SnippetSource = "root_path"
	SourceIDE             SnippetSource = "ide"
)

// Snippet is one candidate piece of context for the prompt.
type Snippet struct {
	Source   SnippetSource
	FilePath string
	Content  string
}

// Completion is one streamed or finished completion result.
type Completion struct {
	RequestID    string
	Text         string
	Prefix       string
	Suffix       string
	StopTokens   []string
	Multiline    bool
	FilePath     string
	FirstLine    string
	Debounced    bool
	ShownAt      time.Time
}

// Config tunes one pipeline instance. NewConfigFromCompletion builds this
// from internal/config.CompletionConfig, parsing its string durations once.
type Config struct {
	DebounceDelay    time.Duration
	SnippetCacheSize int
	SnippetTimeout   time.Duration
	DisplayTimeout   time.Duration
	MaxPromptTokens  int
	DisabledPatterns []string
	ConfigFilePath   string // the engine's own config file, always prefiltered out
	UserStopTokens   []string
	ModelTimeout     time.Duration // filter pipeline's soft timeout
}

// DefaultStopTokens is spec.md's fixed stop-token set, unioned with any
// user-configured tokens and model-family-specific ones.
var DefaultStopTokens = []string{"/src/", "#- coding: utf-8", "``` "}
