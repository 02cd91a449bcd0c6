package completion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passion1014/axlrator-continue/internal/chunk"
	"github.com/passion1014/axlrator-continue/internal/tagindex/snippetindex"
)

const rootPathGoSource = `package sample

import greet "example.com/greeter"

func handler() {
	greet.Hello()
}
`

func newTestSnippetIndex(t *testing.T) *snippetindex.Index {
	t.Helper()
	idx, err := snippetindex.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestRootPathCollector_ResolvesIdentifierAncestors(t *testing.T) {
	idx := newTestSnippetIndex(t)
	require.NoError(t, idx.Add(context.Background(), "chunk-1", snippetindex.Snippet{
		ChunkID: "chunk-1", SymbolName: "handler", SymbolType: "function",
		FilePath: "/ws/sample.go", Signature: "func handler()",
	}))

	c, err := NewRootPathCollector(idx, 10)
	require.NoError(t, err)

	offset := len("package sample\n\nimport greet \"example.com/greeter\"\n\nfunc handler")
	in := Input{
		FilePath:    "/ws/sample.go",
		Language:    "go",
		FileContent: rootPathGoSource,
		Prefix:      rootPathGoSource[:offset],
	}

	snippets, err := c.Collect(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, snippets)
	assert.Equal(t, SourceRootPath, snippets[0].Source)
	assert.Contains(t, snippets[0].Content, "handler")
}

func TestRootPathCollector_EmptyContentIsNoop(t *testing.T) {
	idx := newTestSnippetIndex(t)
	c, err := NewRootPathCollector(idx, 10)
	require.NoError(t, err)

	snippets, err := c.Collect(context.Background(), Input{})
	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestImportCollector_ResolvesAliasedImport(t *testing.T) {
	idx := newTestSnippetIndex(t)
	require.NoError(t, idx.Add(context.Background(), "chunk-2", snippetindex.Snippet{
		ChunkID: "chunk-2", SymbolName: "greet.Hello", SymbolType: "function",
		FilePath: "/ws/greeter/greeter.go", Signature: "func Hello()",
	}))

	c, err := NewImportCollector(idx, 10)
	require.NoError(t, err)

	in := Input{
		FilePath:    "/ws/sample.go",
		Language:    "go",
		FileContent: rootPathGoSource,
		Prefix:      "package sample\n\nimport greet \"example.com/greeter\"\n\nfunc handler() {\n\tgreet.",
		Suffix:      "Hello()\n}\n",
	}

	snippets, err := c.Collect(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, snippets)
	assert.Equal(t, SourceImport, snippets[0].Source)
}

func TestImportCollector_UnrelatedLineYieldsNothing(t *testing.T) {
	idx := newTestSnippetIndex(t)
	require.NoError(t, idx.Add(context.Background(), "chunk-2", snippetindex.Snippet{
		ChunkID: "chunk-2", SymbolName: "greet.Hello", FilePath: "/ws/greeter/greeter.go", Signature: "func Hello()",
	}))
	c, err := NewImportCollector(idx, 10)
	require.NoError(t, err)

	in := Input{
		FilePath:    "/ws/sample.go",
		Language:    "go",
		FileContent: rootPathGoSource,
		Prefix:      "package sample\n\nimport greet \"example.com/greeter\"\n\nfunc handler() {\n\t",
		Suffix:      "\n}\n",
	}
	snippets, err := c.Collect(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestParseImportSpec_DefaultsAliasFromPath(t *testing.T) {
	p := chunk.NewParser()
	tree, err := p.Parse(context.Background(), []byte("package sample\n\nimport \"fmt\"\n"), "go")
	require.NoError(t, err)

	decl := tree.Root.FindChildByType("import_declaration")
	require.NotNil(t, decl)
	specs := decl.FindAllByType("import_spec")
	require.Len(t, specs, 1)

	alias, path := parseImportSpec(specs[0], []byte("package sample\n\nimport \"fmt\"\n"))
	assert.Equal(t, "fmt", alias)
	assert.Equal(t, "fmt", path)
}
