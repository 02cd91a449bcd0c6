package filterpipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sendLines(lines ...string) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, l := range lines {
			ch <- l
		}
	}()
	return ch
}

func TestStopAtLines_EndsBeforeMatchingLine(t *testing.T) {
	out := StopAtLines([]string{"# End of file."})(sendLines("a", "b", "# End of file.", "c"))
	require.Equal(t, []string{"a", "b"}, drainLines(out))
}

func TestStopAtLinesExact_OnlyChecksFirstNonBlankLine(t *testing.T) {
	out := StopAtLinesExact("return x")(sendLines("", "return x", "more"))
	require.Equal(t, []string{""}, drainLines(out))
}

func TestStopAtRepeatingLines_EndsOnThirdRepeat(t *testing.T) {
	out := StopAtRepeatingLines()(sendLines("a", "b", "b", "b", "c"))
	require.Equal(t, []string{"a", "b", "b"}, drainLines(out))
}

func TestAvoidEmptyComments_DropsBareMarker(t *testing.T) {
	out := AvoidEmptyComments("//")(sendLines("// ", "// real comment", "code"))
	require.Equal(t, []string{"// real comment", "code"}, drainLines(out))
}

func TestAvoidPathLine_DropsPathHeader(t *testing.T) {
	out := AvoidPathLine("//")(sendLines("// Path: src/main.go", "code"))
	require.Equal(t, []string{"code"}, drainLines(out))
}

func TestSkipPrefixes_DropsMarkerLines(t *testing.T) {
	out := SkipPrefixes(DefaultWrapperMarkers)(sendLines("<COMPLETION>", "real code", "</START EDITING HERE>"))
	require.Equal(t, []string{"real code"}, drainLines(out))
}

func TestFilterCodeBlockLines_DropsFencesAndEndsAtClose(t *testing.T) {
	out := FilterCodeBlockLines()(sendLines("```go", "code line", "```", "trailing"))
	require.Equal(t, []string{"code line"}, drainLines(out))
}

func TestNoDoubleNewLine_EndsAtSecondBlank(t *testing.T) {
	out := NoDoubleNewLine()(sendLines("a", "", "", "b"))
	require.Equal(t, []string{"a", ""}, drainLines(out))
}

func TestFilterLeadingNewline_DropsOnlyFirstBlank(t *testing.T) {
	out := FilterLeadingNewline()(sendLines("", "a", "", "b"))
	require.Equal(t, []string{"a", "", "b"}, drainLines(out))
}

func TestRemoveTrailingWhitespace_Trims(t *testing.T) {
	out := RemoveTrailingWhitespace()(sendLines("a  ", "b\t"))
	require.Equal(t, []string{"a", "b"}, drainLines(out))
}

func TestStopAtSimilarLine_EndsOnNearMatch(t *testing.T) {
	out := StopAtSimilarLine("return result")(sendLines("alpha", "return result"))
	require.Equal(t, []string{"alpha"}, drainLines(out))
}

func TestShowWhateverWeHaveAtXMs_StopsAfterTimeoutOnceContentSeen(t *testing.T) {
	in := make(chan string)
	out := ShowWhateverWeHaveAtXMs(20 * time.Millisecond)(in)

	go func() {
		in <- "first"
		time.Sleep(50 * time.Millisecond)
		in <- "second"
		close(in)
	}()

	got := drainLines(out)
	require.Equal(t, []string{"first"}, got)
}

func TestInterleaveNewlines_AppendsNewline(t *testing.T) {
	out := InterleaveNewlines()(sendLines("a", "b"))
	require.Equal(t, []string{"a\n", "b\n"}, drainLines(out))
}

func TestLevenshtein(t *testing.T) {
	require.Equal(t, 0, levenshtein("abc", "abc"))
	require.Equal(t, 1, levenshtein("abc", "abd"))
	require.Equal(t, 3, levenshtein("", "abc"))
}
