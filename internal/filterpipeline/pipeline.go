package filterpipeline

import "time"

// Config parameterizes the filter chain for one completion stream.
type Config struct {
	StopTokens      []string
	Suffix          string
	StartOfWindow   int // L in stop_at_start_of; defaults to 20
	BelowCursorLine string
	CommentPrefix   string
	WrapperMarkers  []string // <COMPLETION>, [CODE], <START EDITING HERE>, ...
	CharFilters     []CharFilter
	LineFilters     []LineFilter
	SoftTimeout     time.Duration
}

// DefaultStartOfWindow is spec.md's default L for stop_at_start_of.
const DefaultStartOfWindow = 20

// Build assembles the full character-stage + line-stage pipeline in the
// fixed order: stop_at_stop_tokens -> stop_at_start_of -> language char
// filters -> split-lines -> stop_at_lines -> stop_at_lines_exact ->
// stop_at_repeating_lines -> avoid_empty_comments -> avoid_path_line ->
// skip_prefixes -> no_double_new_line -> language line filters ->
// stop_at_similar_line -> show_whatever_we_have_at_x_ms -> interleave newlines.
func Build(cfg Config) func(in <-chan rune) <-chan string {
	window := cfg.StartOfWindow
	if window <= 0 {
		window = DefaultStartOfWindow
	}
	timeout := cfg.SoftTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return func(in <-chan rune) <-chan string {
		chars := in
		chars = StopAtStopTokens(cfg.StopTokens)(chars)
		chars = StopAtStartOf(cfg.Suffix, window)(chars)
		for _, f := range cfg.CharFilters {
			chars = f(chars)
		}

		lines := SplitLines(chars)
		lines = StopAtLines([]string{"# End of file.", "<STOP EDITING HERE"})(lines)
		lines = StopAtLinesExact(cfg.BelowCursorLine)(lines)
		lines = StopAtRepeatingLines()(lines)
		lines = AvoidEmptyComments(cfg.CommentPrefix)(lines)
		lines = AvoidPathLine(cfg.CommentPrefix)(lines)
		lines = SkipPrefixes(cfg.WrapperMarkers)(lines)
		lines = NoDoubleNewLine()(lines)
		for _, f := range cfg.LineFilters {
			lines = f(lines)
		}
		lines = StopAtSimilarLine(cfg.BelowCursorLine)(lines)
		lines = ShowWhateverWeHaveAtXMs(timeout)(lines)
		lines = InterleaveNewlines()(lines)

		return lines
	}
}

// DefaultWrapperMarkers is spec.md's fixed list of wrapper markers models
// sometimes echo from the prompt.
var DefaultWrapperMarkers = []string{
	"<COMPLETION>", "[CODE]", "<START EDITING HERE>", "{{FILL_HERE}}", "</START EDITING HERE>",
}
