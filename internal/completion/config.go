package completion

import (
	"time"

	"github.com/passion1014/axlrator-continue/internal/config"
)

// defaults mirror internal/config's documented defaults for the fields
// that need parsing.
const (
	defaultDebounceDelay  = 350 * time.Millisecond
	defaultSnippetTimeout = 100 * time.Millisecond
	defaultDisplayTimeout = 10 * time.Second
	defaultModelTimeout   = 30 * time.Second
)

// NewConfigFromCompletion builds a pipeline Config from the engine's YAML-
// sourced CompletionConfig, parsing its string durations once up front
// rather than on every request.
func NewConfigFromCompletion(cc config.CompletionConfig) (Config, error) {
	cfg := Config{
		SnippetCacheSize: cc.SnippetCacheSize,
		MaxPromptTokens:  cc.MaxPromptTokens,
		DisabledPatterns: cc.DisabledPatterns,
		ModelTimeout:     defaultModelTimeout,
	}

	var err error
	if cfg.DebounceDelay, err = parseDurationOr(cc.DebounceDelay, defaultDebounceDelay); err != nil {
		return Config{}, err
	}
	if cfg.SnippetTimeout, err = parseDurationOr(cc.SnippetTimeout, defaultSnippetTimeout); err != nil {
		return Config{}, err
	}
	if cfg.DisplayTimeout, err = parseDurationOr(cc.DisplayTimeout, defaultDisplayTimeout); err != nil {
		return Config{}, err
	}
	if cfg.MaxPromptTokens <= 0 {
		cfg.MaxPromptTokens = 2048
	}
	if cfg.SnippetCacheSize <= 0 {
		cfg.SnippetCacheSize = 100
	}
	return cfg, nil
}

func parseDurationOr(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
