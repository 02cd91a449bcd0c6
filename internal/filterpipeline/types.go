// Package filterpipeline is the two-stage stream filter that turns a raw
// model token stream into the text actually shown to the user: a character
// stage that can end the stream early or drop individual characters, and a
// line stage that operates once the stream is split on newlines. Each stage
// is built from small `func(<-chan T) <-chan T` pipeline stages, grounded on
// the teacher's idiom of consuming a result channel with `for v := range ch`
// until the producer closes it (internal/index/runner.go).
package filterpipeline

// CharFilter transforms a character stream. A filter that wants to end the
// stream early simply stops reading from in and closes its out channel;
// downstream stages see that as normal completion.
type CharFilter func(in <-chan rune) <-chan rune

// LineFilter transforms a stream of complete lines (no trailing newline).
type LineFilter func(in <-chan string) <-chan string
