package completion

import (
	"path/filepath"
	"strings"

	"github.com/passion1014/axlrator-continue/internal/gitignore"
)

// alwaysDisabledPatterns is unioned with the configured disable-pattern
// list; spec.md requires *.prompt files to be skipped regardless of
// configuration.
var alwaysDisabledPatterns = []string{"*.prompt"}

// disableMatcher wraps a gitignore.Matcher over the configured and
// always-disabled patterns, built once per Config rather than per request.
type disableMatcher struct {
	m *gitignore.Matcher
}

func newDisableMatcher(cfg Config) *disableMatcher {
	m := gitignore.New()
	for _, p := range alwaysDisabledPatterns {
		m.AddPattern(p)
	}
	for _, p := range cfg.DisabledPatterns {
		m.AddPattern(p)
	}
	return &disableMatcher{m: m}
}

// Prefilter reports whether in should abort before any further pipeline
// work: autocomplete disabled entirely, a disabled-pattern match, the
// engine's own config file, or an unnamed empty buffer. A non-empty reason
// explains which check fired.
func (d *disableMatcher) Prefilter(enabled bool, cfg Config, in Input) (abort bool, reason string) {
	if !enabled {
		return true, "autocomplete disabled"
	}
	if in.FilePath == "" && in.FileContent == "" {
		return true, "unnamed empty buffer"
	}
	if cfg.ConfigFilePath != "" && samePath(in.FilePath, cfg.ConfigFilePath) {
		return true, "editing the config file itself"
	}
	if d.m.Match(in.FilePath, false) {
		return true, "file matches a disabled pattern"
	}
	return false, ""
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

// LooksLikeConfigPattern reports whether pattern is one of the fixed
// disable patterns always applied, useful for IDE-side diagnostics/help
// text listing effective defaults.
func LooksLikeConfigPattern(pattern string) bool {
	for _, p := range alwaysDisabledPatterns {
		if strings.EqualFold(p, pattern) {
			return true
		}
	}
	return false
}
