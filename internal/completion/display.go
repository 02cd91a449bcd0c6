package completion

import (
	"strings"
	"sync"
	"time"
)

// mergeWindow is spec.md's fixed 500ms window for treating two displayed
// completions as the same user intention.
const mergeWindow = 500 * time.Millisecond

type displayEntry struct {
	firstLine   string
	displayedAt time.Time
	timer       *time.Timer
	resolved    bool
}

// DisplayTracker implements spec.md §4.6 step 8's display lifecycle: a
// displayed completion is presumed rejected after a timeout unless
// Accept(id) arrives first, and a second completion displayed soon after
// that looks like a refinement of the first's opening line cancels the
// first's rejection timer instead of reporting it rejected.
type DisplayTracker struct {
	mu       sync.Mutex
	timeout  time.Duration
	onReject func(id string)
	entries  map[string]*displayEntry
	lastID   string
}

// NewDisplayTracker builds a tracker with the given display timeout and a
// callback invoked (on its own goroutine) when an entry's timer fires
// without a matching Accept or merge.
func NewDisplayTracker(timeout time.Duration, onReject func(id string)) *DisplayTracker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DisplayTracker{
		timeout:  timeout,
		onReject: onReject,
		entries:  make(map[string]*displayEntry),
	}
}

// Display registers id as shown to the user with the given first line, and
// starts its rejection timer. If id was displayed within mergeWindow of the
// previously displayed completion and one's first line is a prefix or
// suffix of the other's, the previous entry's timer is cancelled first,
// since the two represent the same edit in progress.
func (t *DisplayTracker) Display(id, firstLine string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.entries[t.lastID]; ok && !prev.resolved {
		if time.Since(prev.displayedAt) <= mergeWindow && linesRelated(prev.firstLine, firstLine) {
			t.resolveLocked(t.lastID, false)
		}
	}

	entry := &displayEntry{firstLine: firstLine, displayedAt: time.Now()}
	entry.timer = time.AfterFunc(t.timeout, func() { t.timeout_(id) })
	t.entries[id] = entry
	t.lastID = id
}

func (t *DisplayTracker) timeout_(id string) {
	t.mu.Lock()
	entry, ok := t.entries[id]
	if !ok || entry.resolved {
		t.mu.Unlock()
		return
	}
	entry.resolved = true
	t.mu.Unlock()

	if t.onReject != nil {
		t.onReject(id)
	}
}

// Accept marks id accepted, cancelling its rejection timer. It reports
// whether id was a tracked, still-pending display.
func (t *DisplayTracker) Accept(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[id]
	if !ok || entry.resolved {
		return false
	}
	t.resolveLocked(id, true)
	return true
}

// resolveLocked stops id's timer and marks it resolved. Callers hold t.mu.
func (t *DisplayTracker) resolveLocked(id string, _ bool) {
	entry, ok := t.entries[id]
	if !ok {
		return
	}
	entry.resolved = true
	entry.timer.Stop()
}

// linesRelated reports whether a and b are equal, or one is a prefix or
// suffix of the other, matching spec.md's "prefix/suffix of the prior's
// first line" merge condition.
func linesRelated(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a) ||
		strings.HasSuffix(a, b) || strings.HasSuffix(b, a)
}
