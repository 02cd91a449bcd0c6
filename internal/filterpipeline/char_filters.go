package filterpipeline

import "strings"

// StopAtStopTokens buffers up to the longest stop token's length worth of
// characters; once the buffer starts with a stop token the stream ends.
// Otherwise the oldest buffered character is flushed and the window slides.
// On EOF any stop-token substring left in the tail is stripped before the
// remainder is flushed.
func StopAtStopTokens(stopTokens []string) CharFilter {
	maxLen := 0
	for _, t := range stopTokens {
		if len(t) > maxLen {
			maxLen = len(t)
		}
	}

	return func(in <-chan rune) <-chan rune {
		out := make(chan rune)
		go func() {
			defer close(out)
			var buf []rune

			for r := range in {
				buf = append(buf, r)
				if bufferStartsWithStopToken(buf, stopTokens) {
					return
				}
				if maxLen > 0 && len(buf) > maxLen {
					out <- buf[0]
					buf = buf[1:]
				}
			}

			// EOF: strip any trailing stop-token substring, flush the rest.
			tail := string(buf)
			for _, tok := range stopTokens {
				if idx := strings.Index(tail, tok); idx >= 0 {
					tail = tail[:idx]
					break
				}
			}
			for _, r := range tail {
				out <- r
			}
		}()
		return out
	}
}

func bufferStartsWithStopToken(buf []rune, stopTokens []string) bool {
	s := string(buf)
	for _, tok := range stopTokens {
		if tok != "" && strings.HasPrefix(s, tok) {
			return true
		}
	}
	return false
}

// StopAtStartOf ends the stream once a sliding window of up to 1.5*L
// characters from the start of suffix (leading whitespace trimmed) appears
// anywhere in the accumulated output, meaning the model has started
// reproducing text that already follows the cursor.
func StopAtStartOf(suffix string, l int) CharFilter {
	trimmed := strings.TrimLeft(suffix, " \t\r\n")
	windowLen := int(1.5 * float64(l))
	if windowLen > len(trimmed) {
		windowLen = len(trimmed)
	}
	window := trimmed[:windowLen]

	return func(in <-chan rune) <-chan rune {
		out := make(chan rune)
		go func() {
			defer close(out)
			if window == "" {
				for r := range in {
					out <- r
				}
				return
			}

			var acc strings.Builder
			for r := range in {
				acc.WriteRune(r)
				out <- r
				if strings.Contains(acc.String(), window) {
					return
				}
			}
		}()
		return out
	}
}

// OnlyWhitespaceAfterEndOfLine ends the stream if, immediately after a
// newline, a character that is neither whitespace nor one of allowed
// arrives — used for languages where the model should only ever indent
// after a line break, never start a new statement mid-completion.
func OnlyWhitespaceAfterEndOfLine(allowed string) CharFilter {
	return func(in <-chan rune) <-chan rune {
		out := make(chan rune)
		go func() {
			defer close(out)
			afterNewline := false
			for r := range in {
				if afterNewline && r != ' ' && r != '\t' && r != '\n' && r != '\r' && !strings.ContainsRune(allowed, r) {
					return
				}
				afterNewline = r == '\n'
				out <- r
			}
		}()
		return out
	}
}

// NoFirstCharNewline drops a leading newline the model sometimes emits
// before any real content, without ending the stream.
func NoFirstCharNewline() CharFilter {
	return func(in <-chan rune) <-chan rune {
		out := make(chan rune)
		go func() {
			defer close(out)
			first := true
			for r := range in {
				if first {
					first = false
					if r == '\n' {
						continue
					}
				}
				out <- r
			}
		}()
		return out
	}
}

// SplitLines turns a character stream into a stream of complete lines, none
// of which carry their trailing newline. A final partial line at EOF is
// still emitted.
func SplitLines(in <-chan rune) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		var line strings.Builder
		for r := range in {
			if r == '\n' {
				out <- line.String()
				line.Reset()
				continue
			}
			line.WriteRune(r)
		}
		if line.Len() > 0 {
			out <- line.String()
		}
	}()
	return out
}
