package completion

import (
	"math/rand"
	"strings"
	"text/template"
)

// sourcePriority orders snippet sources from highest to lowest priority,
// per spec.md §4.6 step 4: clipboard, recently-visited, recently-edited,
// diff, then the unordered base group (imports ∪ root-path). IDE-provided
// snippets slot in alongside recently-visited since they represent the same
// "IDE already knows about this" tier.
var sourcePriority = map[SnippetSource]int{
	SourceClipboard:       0,
	SourceRecentlyVisited: 1,
	SourceIDE:             1,
	SourceRecentlyEdited:  2,
	SourceDiff:            3,
	SourceImport:          4,
	SourceRootPath:        4,
}

// PriorityOverrides lets configuration override or disable a source's
// priority tier; a negative value disables the source entirely.
type PriorityOverrides map[SnippetSource]int

// OrderSnippets groups snippets by priority tier (lowest number first),
// drops any whose source is disabled by overrides, shuffles the base tier
// (imports ∪ root-path, tier 4) to vary which snippets survive the token
// budget across repeated requests for the same cursor position, and
// deduplicates any snippet whose content already appears verbatim inside
// window (the text visible around the cursor).
func OrderSnippets(snippets []Snippet, overrides PriorityOverrides, window string) []Snippet {
	tiers := make(map[int][]Snippet)
	for _, s := range snippets {
		p, ok := sourcePriority[s.Source]
		if !ok {
			p = 4
		}
		if ov, ok := overrides[s.Source]; ok {
			if ov < 0 {
				continue
			}
			p = ov
		}
		if window != "" && strings.Contains(window, s.Content) {
			continue
		}
		tiers[p] = append(tiers[p], s)
	}

	keys := make([]int, 0, len(tiers))
	for k := range tiers {
		keys = append(keys, k)
	}
	sortInts(keys)

	var out []Snippet
	for _, k := range keys {
		group := tiers[k]
		if k == 4 {
			rand.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		}
		out = append(out, group...)
	}
	return dedupeByContent(out)
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func dedupeByContent(snippets []Snippet) []Snippet {
	seen := make(map[string]bool, len(snippets))
	out := make([]Snippet, 0, len(snippets))
	for _, s := range snippets {
		if seen[s.Content] {
			continue
		}
		seen[s.Content] = true
		out = append(out, s)
	}
	return out
}

// estimateTokens approximates token count the same way internal/chunk does
// for chunk-size budgeting: four characters per token.
func estimateTokens(s string) int {
	return len(s) / 4
}

// FillBudget greedily includes ordered snippets (already priority-sorted),
// skipping any snippet that would push the total past budget tokens and
// going on with the rest, matching spec.md's
// "fill a token budget ... by greedy inclusion".
func FillBudget(ordered []Snippet, budget int) []Snippet {
	if budget <= 0 {
		return nil
	}
	var out []Snippet
	used := 0
	for _, s := range ordered {
		n := estimateTokens(s.Content)
		if used+n > budget {
			continue
		}
		out = append(out, s)
		used += n
	}
	return out
}

// PromptVars are the template variables spec.md names for the Handlebars-
// like prompt template, realized here as Go's text/template with `{{`/`}}`
// delimiters (already Handlebars-compatible) since no third-party
// templating dependency appears anywhere in the corpus.
type PromptVars struct {
	Prefix   string
	Suffix   string
	Filename string
	Reponame string
	Language string
	Snippets []Snippet
}

// DefaultTemplate is used when no model-specific template is registered.
const DefaultTemplate = `{{range .Snippets}}{{.Content}}

{{end}}{{.Prefix}}`

// TemplateFunc renders a prompt from vars, returning (prompt, prefix,
// suffix) as spec.md's model-specific function templates do; the default
// string-template path only fills in prompt and passes prefix/suffix
// through unchanged.
type TemplateFunc func(vars PromptVars) (prompt, prefix, suffix string, err error)

// templatesByModel holds any model-specific function templates registered
// via RegisterTemplate, falling back to DefaultTemplate otherwise.
var templatesByModel = map[string]TemplateFunc{}

// RegisterTemplate installs a model-specific function template.
func RegisterTemplate(modelID string, fn TemplateFunc) {
	templatesByModel[modelID] = fn
}

// RenderPrompt renders vars through modelID's registered template, or
// DefaultTemplate via text/template if none is registered or modelID is
// empty.
func RenderPrompt(modelID string, vars PromptVars) (prompt, prefix, suffix string, err error) {
	if fn, ok := templatesByModel[modelID]; ok {
		return fn(vars)
	}

	tmpl, err := template.New("completion").Parse(DefaultTemplate)
	if err != nil {
		return "", "", "", err
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", "", "", err
	}
	return b.String(), vars.Prefix, vars.Suffix, nil
}

// modelFamilyArtifactTokens are stop tokens specific to known model
// families, unioned into the final stop-token set alongside spec.md's
// fixed set and any user configuration.
var modelFamilyArtifactTokens = map[string][]string{
	"starcoder": {"<|endoftext|>", "<fim_prefix>", "<fim_suffix>", "<fim_middle>"},
	"codellama": {"<EOT>"},
	"deepseek":  {"<|EOT|>"},
}

// BuildStopTokens unions user-configured tokens, spec.md's fixed set, and
// any tokens specific to modelID's family (matched by substring since model
// identifiers are typically "<family>:<size>" or "<family>-<variant>").
func BuildStopTokens(userConfigured []string, modelID string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(tokens []string) {
		for _, t := range tokens {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}

	add(userConfigured)
	add(DefaultStopTokens)

	lowerModel := strings.ToLower(modelID)
	for family, tokens := range modelFamilyArtifactTokens {
		if strings.Contains(lowerModel, family) {
			add(tokens)
		}
	}
	return out
}
