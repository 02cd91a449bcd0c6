package completion

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/passion1014/axlrator-continue/internal/debounce"
	"github.com/passion1014/axlrator-continue/internal/filterpipeline"
	"github.com/passion1014/axlrator-continue/internal/filterpipeline/bracket"
)

// windowChars bounds how much of the prefix/suffix around the cursor
// counts as "the window" for dedup and token-budget accounting.
const windowChars = 200

// Pipeline is one running instance of the completion orchestrator: prefilter
// through display, holding the stateful pieces (debouncer, abort registry,
// generator-reuse manager, bracket service, display tracker) that must
// persist across requests in the same editing session.
type Pipeline struct {
	cfg       Config
	enabled   func() bool
	disable   *disableMatcher
	debouncer *debounce.Debouncer
	aborts    *debounce.AbortRegistry
	gatherer  *Gatherer
	reuse     *ReuseManager
	bracket   *bracket.Service
	display   *DisplayTracker

	priorities   PriorityOverrides
	multilineCfg MultilineConfig
	startStream  StartStreamFunc
}

// NewPipeline builds a Pipeline. enabled reports whether autocomplete is on
// at all (checked fresh on every request, since it can be toggled live);
// startStream begins one raw model stream for a rendered prompt.
func NewPipeline(cfg Config, enabled func() bool, startStream StartStreamFunc) *Pipeline {
	p := &Pipeline{
		cfg:          cfg,
		enabled:      enabled,
		disable:      newDisableMatcher(cfg),
		debouncer:    debounce.NewDebouncer(cfg.DebounceDelay),
		aborts:       debounce.NewAbortRegistry(),
		gatherer:     NewGatherer(cfg.SnippetTimeout),
		reuse:        NewReuseManager(),
		bracket:      bracket.New(),
		multilineCfg: MultilineConfig{},
		startStream:  startStream,
	}
	p.display = NewDisplayTracker(cfg.DisplayTimeout, p.onRejected)
	return p
}

// RegisterSnippetSource adds a named snippet-gathering source, run in
// parallel with every other source on each request.
func (p *Pipeline) RegisterSnippetSource(name string, fn SnippetFunc) {
	p.gatherer.Register(name, fn)
}

// SetPriorityOverrides installs configuration-provided snippet priority
// overrides (see OrderSnippets).
func (p *Pipeline) SetPriorityOverrides(overrides PriorityOverrides) {
	p.priorities = overrides
}

// SetMultilineConfig installs multiline-decision configuration.
func (p *Pipeline) SetMultilineConfig(cfg MultilineConfig) {
	p.multilineCfg = cfg
}

func (p *Pipeline) onRejected(id string) {
	p.aborts.Abort(id)
}

// Abort cancels a specific in-flight request, per spec.md's
// message_id -> cancel_token abort registry.
func (p *Pipeline) Abort(id string) bool {
	return p.aborts.Abort(id)
}

// Accept records that a displayed completion was accepted, cancelling its
// rejection timer and seeding the bracket service with its text for the
// next completion in the same file.
func (p *Pipeline) Accept(id, fileURI, acceptedText string) {
	p.display.Accept(id)
	p.bracket.OnAccept(fileURI, acceptedText)
}

// Provide runs the full pipeline for in and returns the finished
// completion. It returns nil if the request aborted at the prefilter or was
// cancelled before completing, and a Completion carrying only RequestID and
// Debounced=true if a newer request debounced it.
func (p *Pipeline) Provide(ctx context.Context, in Input) (*Completion, error) {
	if abort, _ := p.disable.Prefilter(p.enabled(), p.cfg, in); abort {
		return nil, nil
	}

	ctx = p.aborts.Register(ctx, in.RequestID)
	defer p.aborts.Release(in.RequestID)

	if !in.ManualTrigger {
		if p.debouncer.Wait(ctx, in.RequestID) {
			return &Completion{RequestID: in.RequestID, Debounced: true}, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil
	}

	gathered := p.gatherer.Collect(ctx, in)
	gathered = append(gathered, in.IDESnippets...)

	window := windowAround(in)
	ordered := OrderSnippets(gathered, p.priorities, window)
	budget := p.cfg.MaxPromptTokens - estimateTokens(window) - 10
	included := FillBudget(ordered, budget)

	vars := PromptVars{
		Prefix:   in.Prefix,
		Suffix:   in.Suffix,
		Filename: filepath.Base(in.FilePath),
		Reponame: in.RepoName,
		Language: in.Language,
		Snippets: included,
	}
	prompt, prefix, suffix, err := RenderPrompt(in.ModelID, vars)
	if err != nil {
		return nil, err
	}
	stopTokens := BuildStopTokens(p.cfg.UserStopTokens, in.ModelID)
	multiline := DecideMultiline(in, p.multilineCfg)

	gen, skip, err := p.reuse.Acquire(ctx, prefix, prompt, p.startStream)
	if err != nil {
		return nil, err
	}
	raw := gen.Tee(ctx, skip)

	tracker := p.bracket.Seed(in.FilePath, multiline, lastLine(in.Prefix), firstLine(in.Suffix))
	pcfg := filterpipeline.Config{
		StopTokens:      stopTokens,
		Suffix:          suffix,
		BelowCursorLine: belowCursorLine(in.Suffix),
		CommentPrefix:   commentPrefixByLanguage[in.Language],
		WrapperMarkers:  filterpipeline.DefaultWrapperMarkers,
		CharFilters:     []filterpipeline.CharFilter{bracketCharFilter(tracker)},
		SoftTimeout:     p.cfg.ModelTimeout,
	}
	lines := filterpipeline.Build(pcfg)(raw)

	var b strings.Builder
	first := true
	for line := range lines {
		if !first {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		first = false
	}

	text := b.String()
	result := &Completion{
		RequestID:  in.RequestID,
		Text:       text,
		Prefix:     prefix,
		Suffix:     suffix,
		StopTokens: stopTokens,
		Multiline:  multiline,
		FilePath:   in.FilePath,
		FirstLine:  firstLine(text),
	}
	p.display.Display(in.RequestID, result.FirstLine)
	return result, nil
}

// bracketCharFilter wraps a bracket.Tracker as a character-stage filter,
// ending the stream right after an unmatched closing bracket per spec.md's
// Bracket-Matching Service.
func bracketCharFilter(t *bracket.Tracker) filterpipeline.CharFilter {
	return func(in <-chan rune) <-chan rune {
		out := make(chan rune)
		go func() {
			defer close(out)
			for r := range in {
				ok := t.Push(r)
				out <- r
				if !ok {
					return
				}
			}
		}()
		return out
	}
}

func windowAround(in Input) string {
	prefix := in.Prefix
	if len(prefix) > windowChars {
		prefix = prefix[len(prefix)-windowChars:]
	}
	suffix := in.Suffix
	if len(suffix) > windowChars {
		suffix = suffix[:windowChars]
	}
	return prefix + suffix
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func belowCursorLine(suffix string) string {
	idx := strings.IndexByte(suffix, '\n')
	if idx < 0 {
		return ""
	}
	rest := suffix[idx+1:]
	if idx2 := strings.IndexByte(rest, '\n'); idx2 >= 0 {
		return rest[:idx2]
	}
	return rest
}
