package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// CodeChunkerOptions configures the code chunker behavior.
type CodeChunkerOptions struct {
	MaxChunkTokens int // Maximum tokens per chunk (default: DefaultMaxChunkTokens)
}

// CodeChunker implements AST-aware code chunking using tree-sitter. It walks
// the parsed syntax tree and, for files too large to fit in one chunk,
// recursively emits a function-level chunk (signature plus a collapsed body
// placeholder) and a container-level chunk (the container's header with its
// direct function children collapsed) for every matching node, so the same
// symbol appears at more than one level of detail in the chunk stream by
// design.
type CodeChunker struct {
	parser    *Parser
	extractor *SymbolExtractor
	registry  *LanguageRegistry
	options   CodeChunkerOptions
}

// NewCodeChunker creates a new code chunker with default options.
func NewCodeChunker() *CodeChunker {
	return NewCodeChunkerWithOptions(CodeChunkerOptions{})
}

// NewCodeChunkerWithOptions creates a new code chunker with custom options.
func NewCodeChunkerWithOptions(opts CodeChunkerOptions) *CodeChunker {
	if opts.MaxChunkTokens == 0 {
		opts.MaxChunkTokens = DefaultMaxChunkTokens
	}

	registry := DefaultRegistry()
	return &CodeChunker{
		parser:    NewParserWithRegistry(registry),
		extractor: NewSymbolExtractorWithRegistry(registry),
		registry:  registry,
		options:   opts,
	}
}

// Close releases chunker resources.
func (c *CodeChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// SupportedExtensions returns file extensions this chunker handles.
func (c *CodeChunker) SupportedExtensions() []string {
	return c.registry.SupportedExtensions()
}

// Chunk splits a file into semantic chunks using the smart-collapsed AST
// algorithm when a parser is registered for the language, falling back to
// basic line accumulation otherwise.
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if shouldSkipChunking(file) {
		return nil, nil
	}

	now := time.Now()

	var chunks []*Chunk
	config, supported := c.registry.GetByName(file.Language)
	if !supported {
		chunks = c.chunkBasic(file, now)
	} else {
		tree, err := c.parser.Parse(ctx, file.Content, file.Language)
		if err != nil {
			chunks = c.chunkBasic(file, now)
		} else {
			chunks = c.chunkSmartCollapse(tree, file, config, now)
		}
	}

	chunks = discardOversized(chunks, c.options.MaxChunkTokens)
	for i, ch := range chunks {
		ch.Index = i
		ch.Digest = file.CacheKey
	}
	return chunks, nil
}

// shouldSkipChunking reports the conditions under which chunking is
// bypassed entirely regardless of mode.
func shouldSkipChunking(file *FileInput) bool {
	if len(file.Content) == 0 || len(file.Content) > 1_000_000 {
		return true
	}
	return !strings.Contains(filepath.Base(file.Path), ".")
}

// discardOversized drops any chunk whose rendered content still exceeds the
// token bound after construction; such chunks are never split further.
func discardOversized(chunks []*Chunk, maxTokens int) []*Chunk {
	kept := chunks[:0]
	for _, ch := range chunks {
		if estimateTokens(ch.Content) <= maxTokens {
			kept = append(kept, ch)
		}
	}
	return kept
}

// chunkSmartCollapse implements the AST mode of the chunking algorithm.
func (c *CodeChunker) chunkSmartCollapse(tree *Tree, file *FileInput, config *LanguageConfig, now time.Time) []*Chunk {
	source := tree.Source
	fileContext := c.enrichContextWithFilePath(file.Path, file.Language, c.extractFileContext(tree, source, file.Language))

	rootContent := tree.Root.GetContent(source)
	if estimateTokens(rootContent) <= c.options.MaxChunkTokens {
		return []*Chunk{c.buildChunk(file, rootContent, rootContent, fileContext, tree.Root, nil, now)}
	}

	var chunks []*Chunk
	c.walkCollapse(tree.Root, tree, file, config, fileContext, false, "", now, &chunks)
	return chunks
}

// walkCollapse recurses depth-first, emitting a chunk at every
// function-like or container-like node, then descending into every child
// regardless of whether this node emitted, so nested symbols are always
// reachable and duplication across levels is intentional.
func (c *CodeChunker) walkCollapse(node *Node, tree *Tree, file *FileInput, config *LanguageConfig, fileContext string, nestedInContainer bool, containerHeader string, now time.Time, out *[]*Chunk) {
	source := tree.Source

	switch {
	case isFunctionType(node.Type, config):
		sig := firstLine(node, source)
		body := placeholderBody(sig, config.BraceLanguage)
		content := body
		if nestedInContainer && containerHeader != "" {
			content = containerHeader + "\n...\n" + body
		}
		*out = append(*out, c.buildChunk(file, content, content, "", node, c.symbolForNode(node, source, config, file.Language), now))

	case isContainerType(node.Type, config):
		content := c.buildContainerContent(node, source, config, c.options.MaxChunkTokens)
		*out = append(*out, c.buildChunk(file, content, content, "", node, c.symbolForNode(node, source, config, file.Language), now))
	}

	childNestedInContainer := isContainerType(node.Type, config)
	childHeader := ""
	if childNestedInContainer {
		childHeader = firstLine(node, source)
	}

	for _, child := range node.Children {
		c.walkCollapse(child, tree, file, config, fileContext, childNestedInContainer, childHeader, now, out)
	}
}

// buildContainerContent renders a container's header plus its body with
// each direct function/method child collapsed to a placeholder. If the
// result still exceeds the token bound, placeholders are progressively
// dropped from the end (in source order) until it fits or none remain.
func (c *CodeChunker) buildContainerContent(node *Node, source []byte, config *LanguageConfig, maxTokens int) string {
	var funcChildren []*Node
	for _, child := range node.Children {
		if isFunctionType(child.Type, config) {
			funcChildren = append(funcChildren, child)
		}
	}

	keep := len(funcChildren)
	content := renderContainer(node, source, funcChildren, keep, config.BraceLanguage)
	for estimateTokens(content) > maxTokens && keep > 0 {
		keep--
		content = renderContainer(node, source, funcChildren, keep, config.BraceLanguage)
	}
	return content
}

var blankRunPattern = regexp.MustCompile(`\n{3,}`)

func renderContainer(node *Node, source []byte, funcChildren []*Node, keep int, braceLanguage bool) string {
	var b strings.Builder
	cursor := node.StartByte
	for i, child := range funcChildren {
		b.Write(source[cursor:child.StartByte])
		if i < keep {
			sig := firstLine(child, source)
			b.WriteString(placeholderBody(sig, braceLanguage))
		}
		cursor = child.EndByte
	}
	b.Write(source[cursor:node.EndByte])
	return blankRunPattern.ReplaceAllString(b.String(), "\n\n")
}

// isFunctionType reports whether nodeType denotes a function/method
// declaration for config's language.
func isFunctionType(nodeType string, config *LanguageConfig) bool {
	for _, t := range config.FunctionTypes {
		if t == nodeType {
			return true
		}
	}
	for _, t := range config.MethodTypes {
		if t == nodeType {
			return true
		}
	}
	return false
}

// isContainerType reports whether nodeType denotes a class/struct/impl
// container for config's language.
func isContainerType(nodeType string, config *LanguageConfig) bool {
	for _, t := range config.ContainerTypes {
		if t == nodeType {
			return true
		}
	}
	return false
}

// symbolForNode extracts a descriptive Symbol (name, signature, doc comment)
// for a collapsed node, falling back to a bare type/line-range symbol when
// the extractor doesn't recognize the node.
func (c *CodeChunker) symbolForNode(node *Node, source []byte, config *LanguageConfig, language string) *Symbol {
	if sym := c.extractor.extractSymbolFromNode(node, source, config, language); sym != nil {
		return sym
	}
	symType := SymbolTypeFunction
	if isContainerType(node.Type, config) {
		symType = SymbolTypeClass
	}
	return &Symbol{
		Type:      symType,
		StartLine: int(node.StartPoint.Row),
		EndLine:   int(node.EndPoint.Row),
	}
}

// firstLine returns node's first source line, trimmed of a trailing '\r'.
func firstLine(node *Node, source []byte) string {
	content := node.GetContent(source)
	if idx := strings.IndexByte(content, '\n'); idx != -1 {
		return strings.TrimRight(content[:idx], "\r")
	}
	return content
}

// placeholderBody appends a collapsed-body placeholder to a signature line:
// "{ ... }" for brace-block languages, "..." otherwise.
func placeholderBody(sigLine string, braceLanguage bool) string {
	if braceLanguage {
		return sigLine + "\n    ...\n}"
	}
	return sigLine + "\n    ..."
}

// buildChunk assembles a Chunk from rendered content.
func (c *CodeChunker) buildChunk(file *FileInput, content, rawContent, context string, node *Node, symbol *Symbol, now time.Time) *Chunk {
	var symbols []*Symbol
	if symbol != nil {
		symbols = []*Symbol{symbol}
	}
	startLine, endLine := 0, 0
	if node != nil {
		startLine = int(node.StartPoint.Row)
		endLine = int(node.EndPoint.Row)
	}
	return &Chunk{
		ID:          generateChunkID(file.Path, content),
		FilePath:    file.Path,
		Content:     content,
		RawContent:  rawContent,
		Context:     context,
		ContentType: ContentTypeCode,
		Language:    file.Language,
		StartLine:   startLine,
		EndLine:     endLine,
		Symbols:     symbols,
		Metadata:    make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// extractFileContext extracts package declaration and imports from a file.
func (c *CodeChunker) extractFileContext(tree *Tree, source []byte, language string) string {
	var parts []string

	switch language {
	case "go":
		parts = c.extractGoContext(tree, source)
	case "typescript", "tsx":
		parts = c.extractTSContext(tree, source)
	case "javascript", "jsx":
		parts = c.extractJSContext(tree, source)
	case "python":
		parts = c.extractPythonContext(tree, source)
	}

	return strings.Join(parts, "\n\n")
}

func (c *CodeChunker) extractGoContext(tree *Tree, source []byte) []string {
	var parts []string
	for _, node := range tree.Root.Children {
		if node.Type == "package_clause" {
			parts = append(parts, node.GetContent(source))
			break
		}
	}
	for _, node := range tree.Root.Children {
		if node.Type == "import_declaration" {
			parts = append(parts, node.GetContent(source))
		}
	}
	return parts
}

func (c *CodeChunker) extractTSContext(tree *Tree, source []byte) []string {
	return c.extractJSContext(tree, source)
}

func (c *CodeChunker) extractJSContext(tree *Tree, source []byte) []string {
	var parts []string
	for _, node := range tree.Root.Children {
		if node.Type == "import_statement" {
			parts = append(parts, node.GetContent(source))
		}
	}
	return parts
}

func (c *CodeChunker) extractPythonContext(tree *Tree, source []byte) []string {
	var parts []string
	for _, node := range tree.Root.Children {
		if node.Type == "import_statement" || node.Type == "import_from_statement" {
			parts = append(parts, node.GetContent(source))
		}
	}
	return parts
}

// chunkBasic accumulates lines, flushing whenever the next line would push
// the accumulator past MaxChunkTokens-5 tokens. Individually oversized
// lines are dropped rather than split.
func (c *CodeChunker) chunkBasic(file *FileInput, now time.Time) []*Chunk {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	threshold := c.options.MaxChunkTokens - 5
	lines := strings.Split(content, "\n")

	var chunks []*Chunk
	var acc []string
	accStart := 0

	flush := func(end int) {
		if len(acc) == 0 {
			return
		}
		chunkContent := strings.Join(acc, "\n")
		chunks = append(chunks, &Chunk{
			ID:          generateChunkID(file.Path, chunkContent),
			FilePath:    file.Path,
			Content:     chunkContent,
			RawContent:  chunkContent,
			ContentType: ContentTypeText,
			Language:    file.Language,
			StartLine:   accStart,
			EndLine:     end,
			Metadata:    make(map[string]string),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		acc = nil
	}

	for i, line := range lines {
		if estimateTokens(line) > threshold {
			continue
		}
		candidate := append(append([]string{}, acc...), line)
		if estimateTokens(strings.Join(candidate, "\n")) > threshold && len(acc) > 0 {
			flush(i - 1)
			accStart = i
			acc = []string{line}
			continue
		}
		if len(acc) == 0 {
			accStart = i
		}
		acc = append(acc, line)
	}
	flush(len(lines) - 1)

	return chunks
}

// enrichContextWithFilePath prepends a file path marker to the context,
// using language-appropriate comment syntax.
func (c *CodeChunker) enrichContextWithFilePath(filePath, language, existingContext string) string {
	if filePath == "" {
		return existingContext
	}

	var marker string
	switch language {
	case "python":
		marker = fmt.Sprintf("# File: %s", filePath)
	default:
		marker = fmt.Sprintf("// File: %s", filePath)
	}

	if existingContext == "" {
		return marker
	}
	return marker + "\n" + existingContext
}

// generateChunkID generates a content-addressable chunk ID from file path
// and content, stable across line-number shifts elsewhere in the file.
func generateChunkID(filePath string, content string) string {
	contentHash := sha256.Sum256([]byte(content))
	contentHashStr := hex.EncodeToString(contentHash[:])[:16]

	input := fmt.Sprintf("%s:%s", filePath, contentHashStr)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// estimateTokens estimates the number of tokens in content.
func estimateTokens(content string) int {
	return len(content) / TokensPerChar
}
