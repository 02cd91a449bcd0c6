package completion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/passion1014/axlrator-continue/internal/cache"
	"github.com/passion1014/axlrator-continue/internal/chunk"
	"github.com/passion1014/axlrator-continue/internal/tagindex/snippetindex"
)

// identifierNodeType is the tree-sitter node type that names a symbol,
// across the languages internal/chunk registers (golang, typescript,
// javascript, python grammars all use "identifier" for a bare name).
const identifierNodeType = "identifier"

// importDeclNodeTypes names the grammar node types that hold import
// statements per language, matching internal/chunk.CodeChunker's
// extractGoContext/extractJSContext/extractPythonContext node-type choices.
var importDeclNodeTypes = map[string][]string{
	"go":         {"import_declaration"},
	"typescript": {"import_statement"},
	"javascript": {"import_statement"},
	"python":     {"import_statement", "import_from_statement"},
}

// RootPathCollector resolves the chain of AST ancestors around the cursor
// into go-to-definition-shaped snippets, backed by the symbol snippet index
// built during chunking. Results are memoized in an LRU keyed by a
// SHA-256 chain of parent node types and byte spans, so repeated lookups
// for the same cursor position across keystrokes in unrelated parts of the
// file don't re-walk the tree.
type RootPathCollector struct {
	parser   *chunk.Parser
	snippets *snippetindex.Index
	cache    *cache.LRU[string, []Snippet]
}

// NewRootPathCollector builds a collector with its own parser instance
// (tree-sitter parsers are not safe for concurrent use) and an LRU sized
// from cfg.SnippetCacheSize.
func NewRootPathCollector(snippets *snippetindex.Index, cacheSize int) (*RootPathCollector, error) {
	c, err := cache.New[string, []Snippet](cacheSize)
	if err != nil {
		return nil, err
	}
	return &RootPathCollector{
		parser:   chunk.NewParser(),
		snippets: snippets,
		cache:    c,
	}, nil
}

// Collect parses in.FileContent, finds the ancestor chain around the
// cursor (end of in.Prefix), and for each identifier-shaped ancestor
// resolves a symbol snippet through the shared index.
func (c *RootPathCollector) Collect(ctx context.Context, in Input) ([]Snippet, error) {
	if in.FileContent == "" || c.snippets == nil {
		return nil, nil
	}

	tree, err := c.parser.Parse(ctx, []byte(in.FileContent), in.Language)
	if err != nil {
		return nil, err
	}

	offset := len(in.Prefix)
	chain := ancestorChain(tree.Root, uint32(offset))
	if len(chain) == 0 {
		return nil, nil
	}

	key := chainCacheKey(in.FilePath, chain)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	var out []Snippet
	seen := make(map[string]bool)
	source := []byte(in.FileContent)
	// Walk from the innermost node outward; the first few named identifiers
	// on the path are the most relevant go-to-definition targets.
	for i := len(chain) - 1; i >= 0 && len(out) < 5; i-- {
		node := chain[i]
		if node.Type != identifierNodeType {
			continue
		}
		name := node.GetContent(source)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		hits, err := c.snippets.Lookup(ctx, name)
		if err != nil {
			continue
		}
		for _, h := range hits {
			out = append(out, Snippet{Source: SourceRootPath, FilePath: h.FilePath, Content: snippetContent(h)})
		}
	}

	c.cache.Add(key, out)
	return out, nil
}

// ancestorChain returns the path of nodes from root down to the innermost
// node whose byte span contains offset, root first.
func ancestorChain(root *chunk.Node, offset uint32) []*chunk.Node {
	if root == nil || offset < root.StartByte || offset > root.EndByte {
		return nil
	}
	chain := []*chunk.Node{root}
	current := root
	for {
		next := childContaining(current, offset)
		if next == nil {
			return chain
		}
		chain = append(chain, next)
		current = next
	}
}

func childContaining(n *chunk.Node, offset uint32) *chunk.Node {
	for _, child := range n.Children {
		if offset >= child.StartByte && offset <= child.EndByte {
			return child
		}
	}
	return nil
}

func chainCacheKey(filePath string, chain []*chunk.Node) string {
	var b strings.Builder
	b.WriteString(filePath)
	for _, n := range chain {
		fmt.Fprintf(&b, "|%s:%d:%d", n.Type, n.StartByte, n.EndByte)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ImportCollector resolves identifiers near the cursor that reference an
// imported symbol through the file's own import block, cached per file by
// content hash so re-parsing the import list on every keystroke is
// avoided unless the buffer actually changed.
type ImportCollector struct {
	parser   *chunk.Parser
	snippets *snippetindex.Index
	cache    *cache.LRU[string, map[string]string]
}

// NewImportCollector builds a collector with its own parser and an LRU of
// import maps keyed by file+content hash.
func NewImportCollector(snippets *snippetindex.Index, cacheSize int) (*ImportCollector, error) {
	c, err := cache.New[string, map[string]string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &ImportCollector{
		parser:   chunk.NewParser(),
		snippets: snippets,
		cache:    c,
	}, nil
}

// Collect resolves the identifiers in the cursor's current line against the
// file's import map and looks up a symbol snippet for any that match an
// imported alias.
func (c *ImportCollector) Collect(ctx context.Context, in Input) ([]Snippet, error) {
	if in.FileContent == "" || c.snippets == nil {
		return nil, nil
	}

	imports, err := c.importMap(ctx, in)
	if err != nil || len(imports) == 0 {
		return nil, err
	}

	line := currentLine(in.Prefix, in.Suffix)
	var out []Snippet
	for alias := range imports {
		if !strings.Contains(line, alias+".") {
			continue
		}
		hits, err := c.snippets.LookupPrefix(ctx, alias+".")
		if err != nil {
			continue
		}
		for _, h := range hits {
			out = append(out, Snippet{Source: SourceImport, FilePath: h.FilePath, Content: snippetContent(h)})
		}
	}
	return out, nil
}

func (c *ImportCollector) importMap(ctx context.Context, in Input) (map[string]string, error) {
	sum := sha256.Sum256([]byte(in.FileContent))
	key := in.FilePath + ":" + hex.EncodeToString(sum[:8])
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	declTypes, ok := importDeclNodeTypes[in.Language]
	if !ok {
		return nil, nil
	}

	tree, err := c.parser.Parse(ctx, []byte(in.FileContent), in.Language)
	if err != nil {
		return nil, err
	}

	imports := make(map[string]string)
	source := []byte(in.FileContent)
	for _, declType := range declTypes {
		for _, decl := range tree.Root.FindAllByType(declType) {
			// Go groups multiple entries under import_spec children; other
			// grammars put the identifier/string directly on the statement
			// node, so fall back to the declaration itself when no spec
			// children are found.
			specs := decl.FindAllByType("import_spec")
			if len(specs) == 0 {
				specs = []*chunk.Node{decl}
			}
			for _, spec := range specs {
				if alias, path := parseImportSpec(spec, source); alias != "" {
					imports[alias] = path
				}
			}
		}
	}

	c.cache.Add(key, imports)
	return imports, nil
}

// parseImportSpec extracts an alias and path from one import entry. It
// takes the last path segment of the quoted string as the default alias
// when no explicit identifier child is present, matching Go's unaliased-
// import convention.
func parseImportSpec(node *chunk.Node, source []byte) (alias, path string) {
	var raw string
	node.Walk(func(n *chunk.Node) bool {
		switch {
		case (n.Type == identifierNodeType || n.Type == "package_identifier") && alias == "":
			alias = n.GetContent(source)
		case strings.Contains(n.Type, "string") && raw == "":
			raw = strings.Trim(n.GetContent(source), "\"'`")
		}
		return raw == "" || alias == ""
	})
	if raw == "" {
		return "", ""
	}
	if alias == "" {
		segs := strings.Split(raw, "/")
		alias = segs[len(segs)-1]
	}
	return alias, raw
}

func currentLine(prefix, suffix string) string {
	before := prefix
	if idx := strings.LastIndexByte(before, '\n'); idx >= 0 {
		before = before[idx+1:]
	}
	after := suffix
	if idx := strings.IndexByte(after, '\n'); idx >= 0 {
		after = after[:idx]
	}
	return before + after
}

// snippetContent renders an indexed symbol as prompt-ready text: its
// signature, or just its name when no signature was captured.
func snippetContent(s snippetindex.Snippet) string {
	if s.Signature != "" {
		return s.Signature
	}
	return s.SymbolName
}
