package completion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// savedCache memoizes a SnippetFunc's result under a key and a timestamp,
// so the clipboard and diff sources don't redo the same work for every
// debounced request in between. Both sources key it by a hash of their
// input text and pass a zero timestamp.
type savedCache struct {
	mu      sync.Mutex
	key     string
	at      time.Time
	results []Snippet
}

func (c *savedCache) get(key string, at time.Time) ([]Snippet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key == key && c.at.Equal(at) {
		return c.results, true
	}
	return nil, false
}

func (c *savedCache) put(key string, at time.Time, results []Snippet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	c.at = at
	c.results = results
}

// RecentlyEditedSource turns in.RecentEdits into snippets, most recent
// first, tagged SourceRecentlyEdited. Edits with empty text are skipped.
// Nothing is cached: every call rebuilds the snippets from in.RecentEdits,
// and SavedAt is not consulted.
func RecentlyEditedSource(ctx context.Context, in Input) ([]Snippet, error) {
	edits := in.RecentEdits
	if len(edits) == 0 {
		return nil, nil
	}

	out := make([]Snippet, 0, len(edits))
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		if e.Text == "" {
			continue
		}
		out = append(out, Snippet{Source: SourceRecentlyEdited, FilePath: e.FilePath, Content: e.Text})
	}
	return out, nil
}

// ClipboardSource exposes the IDE's clipboard contents as a single
// candidate snippet, per spec.md's highest-priority tier. Results are
// cached by a hash of the clipboard text itself, since the pipeline has no
// independent "last copied at" timestamp to key on.
type ClipboardSource struct {
	cache savedCache
}

// NewClipboardSource builds a ClipboardSource.
func NewClipboardSource() *ClipboardSource {
	return &ClipboardSource{}
}

// Collect implements SnippetFunc.
func (c *ClipboardSource) Collect(ctx context.Context, in Input) ([]Snippet, error) {
	if in.ClipboardText == "" {
		return nil, nil
	}

	key := contentHash(in.ClipboardText)
	if cached, ok := c.cache.get(key, time.Time{}); ok {
		return cached, nil
	}

	out := []Snippet{{Source: SourceClipboard, FilePath: in.FilePath, Content: in.ClipboardText}}
	c.cache.put(key, time.Time{}, out)
	return out, nil
}

// DiffSource turns the workspace's pending VCS diff into one candidate
// snippet per changed hunk, tagged SourceDiff. The whole diff is cached
// keyed by its own content hash, which is cheap to compute and avoids
// re-splitting the same diff text on every keystroke between saves.
type DiffSource struct {
	cache savedCache
}

// NewDiffSource builds a DiffSource.
func NewDiffSource() *DiffSource {
	return &DiffSource{}
}

// Collect implements SnippetFunc.
func (d *DiffSource) Collect(ctx context.Context, in Input) ([]Snippet, error) {
	if in.VCSDiff == "" {
		return nil, nil
	}

	key := contentHash(in.VCSDiff)
	if cached, ok := d.cache.get(key, time.Time{}); ok {
		return cached, nil
	}

	out := splitDiffHunks(in.VCSDiff)
	d.cache.put(key, time.Time{}, out)
	return out, nil
}

// splitDiffHunks breaks a unified diff into one snippet per "diff --git" or
// "@@" hunk header, so a large changeset doesn't collapse into a single
// snippet that either blows the token budget or gets dropped outright.
func splitDiffHunks(diff string) []Snippet {
	var out []Snippet
	start := 0
	flush := func(end int) {
		if end > start {
			out = append(out, Snippet{Source: SourceDiff, Content: diff[start:end]})
		}
	}
	for i := 0; i < len(diff); i++ {
		if i > 0 && diff[i-1] == '\n' && (strings.HasPrefix(diff[i:], "@@") || strings.HasPrefix(diff[i:], "diff --git")) {
			flush(i)
			start = i
		}
	}
	flush(len(diff))
	if len(out) == 0 {
		out = append(out, Snippet{Source: SourceDiff, Content: diff})
	}
	return out
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
