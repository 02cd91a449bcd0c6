package completion

import (
	"github.com/passion1014/axlrator-continue/internal/config"
	"github.com/passion1014/axlrator-continue/internal/tagindex/snippetindex"
)

// NewDefaultPipeline builds a Pipeline wired against a shared snippet index
// the same way internal/orchestrator.New wires a fixed set of artifacts
// against a shared catalog: one constructor, full of already-decided
// defaults, so callers don't have to know which sources exist to stand up
// a working pipeline.
func NewDefaultPipeline(
	cc config.CompletionConfig,
	snippets *snippetindex.Index,
	enabled func() bool,
	startStream StartStreamFunc,
) (*Pipeline, error) {
	cfg, err := NewConfigFromCompletion(cc)
	if err != nil {
		return nil, err
	}

	rootPath, err := NewRootPathCollector(snippets, cfg.SnippetCacheSize)
	if err != nil {
		return nil, err
	}
	imports, err := NewImportCollector(snippets, cfg.SnippetCacheSize)
	if err != nil {
		return nil, err
	}

	p := NewPipeline(cfg, enabled, startStream)
	p.RegisterSnippetSource("root_path", rootPath.Collect)
	p.RegisterSnippetSource("import", imports.Collect)
	p.RegisterSnippetSource("recently_edited", RecentlyEditedSource)
	p.RegisterSnippetSource("clipboard", NewClipboardSource().Collect)
	p.RegisterSnippetSource("diff", NewDiffSource().Collect)
	return p, nil
}
