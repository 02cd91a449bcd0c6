package completion

import "strings"

// commentPrefixByLanguage is the single-line comment marker per language,
// used to force a single-line completion when the cursor sits inside one.
var commentPrefixByLanguage = map[string]string{
	"go":         "//",
	"typescript": "//",
	"javascript": "//",
	"python":     "#",
}

// MultilineConfig tunes the multiline decision beyond the IDE/language
// signals already carried on Input.
type MultilineConfig struct {
	// ForceSingleLine is an explicit user configuration override.
	ForceSingleLine bool
	// SingleLineLanguages names languages that never produce multiline
	// completions regardless of cursor position (empty by default; every
	// language internal/chunk recognizes supports multiline completion).
	SingleLineLanguages map[string]bool
}

// DecideMultiline reports whether in's completion may span multiple lines.
// It is forced to single-line when: configuration says so, the IDE's own
// completion popup is visible, the cursor's line is (or begins) a
// single-line comment, or the language is configured single-line-only.
func DecideMultiline(in Input, cfg MultilineConfig) bool {
	if cfg.ForceSingleLine {
		return false
	}
	if in.SelectedCompletionInfo {
		return false
	}
	if cfg.SingleLineLanguages[in.Language] {
		return false
	}

	prefix := commentPrefixByLanguage[in.Language]
	if prefix != "" {
		line := lastLine(in.Prefix)
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			return false
		}
	}
	return true
}

func lastLine(s string) string {
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
