// Package snippetindex is the symbol-snippet artifact behind a tag: an
// inverted index from symbol name to the chunk(s) that define it, backed by
// Bleve. The teacher answers this question with a single SQL LIKE query
// (store.MetadataStore.SearchSymbols); this generalizes that into a proper
// index so completion's root-path lookup (SPEC_FULL.md's AST-aware prompt
// assembly) can resolve a symbol without scanning every chunk row.
package snippetindex

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Snippet is one indexed symbol occurrence.
type Snippet struct {
	ChunkID    string `json:"chunk_id"`
	SymbolName string `json:"symbol_name"`
	SymbolType string `json:"symbol_type"`
	FilePath   string `json:"file_path"`
	Signature  string `json:"signature"`
}

// Index wraps a Bleve index keyed by symbol name.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// Open creates or opens a snippet index at path. path == "" opens an
// in-memory index, useful for tests.
func Open(path string) (*Index, error) {
	m := buildMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("snippetindex: open %s: %w", path, err)
	}
	return &Index{index: idx, path: path}, nil
}

func buildMapping() *mapping.IndexMappingImpl {
	symbolField := bleve.NewTextFieldMapping()
	symbolField.Analyzer = "keyword"

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("symbol_name", symbolField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Add indexes one snippet, keyed by its chunk id (one chunk may hold several
// symbols; index with one Snippet call per symbol and a composite doc id so
// they don't overwrite each other).
func (i *Index) Add(ctx context.Context, docID string, s Snippet) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return fmt.Errorf("snippetindex: index is closed")
	}
	return i.index.Index(docID, s)
}

// AddBatch indexes several snippets in one write.
func (i *Index) AddBatch(ctx context.Context, entries map[string]Snippet) error {
	if len(entries) == 0 {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return fmt.Errorf("snippetindex: index is closed")
	}
	batch := i.index.NewBatch()
	for docID, s := range entries {
		if err := batch.Index(docID, s); err != nil {
			return fmt.Errorf("snippetindex: batch index %s: %w", docID, err)
		}
	}
	return i.index.Batch(batch)
}

// DeleteByChunk removes every snippet doc id that belongs to chunkID. Doc ids
// are composite ("<chunkID>#<n>"); this scans matches rather than requiring
// callers to track the per-chunk doc id set.
func (i *Index) DeleteByChunk(ctx context.Context, chunkID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return fmt.Errorf("snippetindex: index is closed")
	}

	query := bleve.NewTermQuery(chunkID)
	query.SetField("chunk_id")
	req := bleve.NewSearchRequest(query)
	req.Size = 10000
	req.Fields = []string{}

	result, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("snippetindex: find docs for chunk %s: %w", chunkID, err)
	}
	if len(result.Hits) == 0 {
		return nil
	}

	batch := i.index.NewBatch()
	for _, hit := range result.Hits {
		batch.Delete(hit.ID)
	}
	return i.index.Batch(batch)
}

// Lookup returns every snippet whose symbol name exactly matches name.
func (i *Index) Lookup(ctx context.Context, name string) ([]Snippet, error) {
	q := bleve.NewTermQuery(strings.ToLower(name))
	q.SetField("symbol_name")
	return i.run(ctx, q)
}

// LookupPrefix returns snippets whose symbol name starts with prefix, for
// fuzzy root-path resolution when the caret sits mid-identifier.
func (i *Index) LookupPrefix(ctx context.Context, prefix string) ([]Snippet, error) {
	q := bleve.NewPrefixQuery(strings.ToLower(prefix))
	q.SetField("symbol_name")
	return i.run(ctx, q)
}

// Close releases the underlying index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.index.Close()
}

func (i *Index) run(ctx context.Context, query bleve.Query) ([]Snippet, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, fmt.Errorf("snippetindex: index is closed")
	}

	req := bleve.NewSearchRequest(query)
	req.Size = 100
	req.Fields = []string{"chunk_id", "symbol_name", "symbol_type", "file_path", "signature"}

	result, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("snippetindex: search: %w", err)
	}

	out := make([]Snippet, 0, len(result.Hits))
	for _, hit := range result.Hits {
		out = append(out, Snippet{
			ChunkID:    fieldString(hit.Fields, "chunk_id"),
			SymbolName: fieldString(hit.Fields, "symbol_name"),
			SymbolType: fieldString(hit.Fields, "symbol_type"),
			FilePath:   fieldString(hit.Fields, "file_path"),
			Signature:  fieldString(hit.Fields, "signature"),
		})
	}
	return out, nil
}

func fieldString(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
