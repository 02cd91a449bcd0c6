package filterpipeline

import (
	"strings"
	"time"
)

// StopAtLines ends the stream before emitting any line containing one of phrases.
func StopAtLines(phrases []string) LineFilter {
	return func(in <-chan string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			for line := range in {
				for _, p := range phrases {
					if strings.Contains(line, p) {
						return
					}
				}
				out <- line
			}
		}()
		return out
	}
}

// StopAtLinesExact ends the stream when the first non-blank line matches
// belowCursorLine exactly, without emitting it — the model has started
// reproducing the line that already follows the cursor.
func StopAtLinesExact(belowCursorLine string) LineFilter {
	return func(in <-chan string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			checked := false
			for line := range in {
				if !checked && strings.TrimSpace(line) != "" {
					checked = true
					if line == belowCursorLine {
						return
					}
				}
				out <- line
			}
		}()
		return out
	}
}

// StopAtRepeatingLines ends the stream once the same exact line has been
// seen three times in a row, without emitting the third occurrence.
func StopAtRepeatingLines() LineFilter {
	return func(in <-chan string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			var last string
			count := 0
			for line := range in {
				if line == last {
					count++
				} else {
					last = line
					count = 1
				}
				if count >= 3 {
					return
				}
				out <- line
			}
		}()
		return out
	}
}

// AvoidEmptyComments drops lines that are nothing but a bare comment marker.
func AvoidEmptyComments(commentPrefix string) LineFilter {
	return dropIf(func(line string) bool {
		return strings.TrimSpace(line) == strings.TrimSpace(commentPrefix)
	})
}

// AvoidPathLine drops injected "// Path: ..." style headers the model
// sometimes copies from the prompt's file markers.
func AvoidPathLine(commentPrefix string) LineFilter {
	marker := strings.TrimSpace(commentPrefix) + " Path:"
	return dropIf(func(line string) bool {
		return strings.HasPrefix(strings.TrimSpace(line), marker)
	})
}

// SkipPrefixes drops lines that, once trimmed, start with one of the given markers.
func SkipPrefixes(prefixes []string) LineFilter {
	return dropIf(func(line string) bool {
		trimmed := strings.TrimSpace(line)
		for _, p := range prefixes {
			if strings.HasPrefix(trimmed, p) {
				return true
			}
		}
		return false
	})
}

// SkipLines drops lines that, once trimmed, exactly equal one of the given markers.
func SkipLines(markers []string) LineFilter {
	return dropIf(func(line string) bool {
		trimmed := strings.TrimSpace(line)
		for _, m := range markers {
			if trimmed == m {
				return true
			}
		}
		return false
	})
}

func dropIf(match func(string) bool) LineFilter {
	return func(in <-chan string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			for line := range in {
				if match(line) {
					continue
				}
				out <- line
			}
		}()
		return out
	}
}

// FilterCodeBlockLines tracks fenced-code-block nesting, drops the opening
// fence line, and ends the stream at the matching closing fence.
func FilterCodeBlockLines() LineFilter {
	return func(in <-chan string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			depth := 0
			for line := range in {
				trimmed := strings.TrimSpace(line)
				if strings.HasPrefix(trimmed, "```") {
					if depth == 0 {
						depth++
						continue
					}
					depth--
					return
				}
				out <- line
			}
		}()
		return out
	}
}

var englishPreamblePhrases = []string{"here is", "here's", "sure,", "certainly", "i'll", "let me"}

// FilterEnglishLinesAtStart drops a short English preamble line: the first
// emitted line is dropped if it starts with a stock phrase or ends with a
// colon that isn't a code keyword's colon (e.g. "else:").
func FilterEnglishLinesAtStart() LineFilter {
	return func(in <-chan string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			first := true
			for line := range in {
				if first {
					first = false
					if looksLikeEnglishPreamble(line) {
						continue
					}
				}
				out <- line
			}
		}()
		return out
	}
}

func looksLikeEnglishPreamble(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	for _, p := range englishPreamblePhrases {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	if strings.HasSuffix(lower, ":") && !isCodeKeywordColon(lower) {
		return true
	}
	return false
}

func isCodeKeywordColon(lower string) bool {
	for _, kw := range []string{"else:", "try:", "finally:", "default:", "case"} {
		if strings.HasSuffix(lower, kw) || strings.HasPrefix(lower, kw) {
			return true
		}
	}
	return false
}

// FilterEnglishLinesAtEnd drops every non-fence line after the stream has
// seen a closing code fence, treating them as an English postamble; lines
// that start with a fence are still passed through.
func FilterEnglishLinesAtEnd() LineFilter {
	return func(in <-chan string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			seenFenceClose := false
			fenceOpen := false
			for line := range in {
				trimmed := strings.TrimSpace(line)
				if strings.HasPrefix(trimmed, "```") {
					if !fenceOpen {
						fenceOpen = true
					} else {
						fenceOpen = false
						seenFenceClose = true
					}
					out <- line
					continue
				}
				if seenFenceClose {
					continue
				}
				out <- line
			}
		}()
		return out
	}
}

// NoDoubleNewLine ends the stream at the second consecutive blank line.
func NoDoubleNewLine() LineFilter {
	return func(in <-chan string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			blankRun := 0
			for line := range in {
				if strings.TrimSpace(line) == "" {
					blankRun++
					if blankRun >= 2 {
						return
					}
				} else {
					blankRun = 0
				}
				out <- line
			}
		}()
		return out
	}
}

// FilterLeadingNewline drops a single leading blank line, if the stream starts with one.
func FilterLeadingNewline() LineFilter {
	return func(in <-chan string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			first := true
			for line := range in {
				if first {
					first = false
					if strings.TrimSpace(line) == "" {
						continue
					}
				}
				out <- line
			}
		}()
		return out
	}
}

// RemoveTrailingWhitespace right-trims every line.
func RemoveTrailingWhitespace() LineFilter {
	return func(in <-chan string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			for line := range in {
				out <- strings.TrimRight(line, " \t")
			}
		}()
		return out
	}
}

// StopAtSimilarLine ends the stream when a line is near-identical to
// belowCursorLine (Levenshtein distance over line length below 0.1),
// meaning the model is retyping text that already exists below the cursor.
func StopAtSimilarLine(belowCursorLine string) LineFilter {
	return func(in <-chan string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			for line := range in {
				if len(line) > 0 {
					dist := levenshtein(line, belowCursorLine)
					if float64(dist)/float64(len(line)) < 0.1 {
						return
					}
				}
				out <- line
			}
		}()
		return out
	}
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	m, n := len(ra), len(rb)
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}
	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[n]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// ShowWhateverWeHaveAtXMs is a soft timeout: once timeout has elapsed and at
// least one non-blank line has already been emitted, the stream ends even
// if the producer still has more to send.
func ShowWhateverWeHaveAtXMs(timeout time.Duration) LineFilter {
	return func(in <-chan string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			deadline := time.NewTimer(timeout)
			defer deadline.Stop()
			emittedNonBlank := false

			for {
				select {
				case line, ok := <-in:
					if !ok {
						return
					}
					out <- line
					if strings.TrimSpace(line) != "" {
						emittedNonBlank = true
					}
				case <-deadline.C:
					if emittedNonBlank {
						return
					}
					// No content yet; keep waiting rather than cutting off
					// the very first line.
					deadline.Reset(timeout)
				}
			}
		}()
		return out
	}
}

// InterleaveNewlines rejoins a line stream into text fragments, reinserting
// the newline each SplitLines call stripped.
func InterleaveNewlines() LineFilter {
	return func(in <-chan string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			for line := range in {
				out <- line + "\n"
			}
		}()
		return out
	}
}
