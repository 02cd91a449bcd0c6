// Package vectorindex is the vector-graph artifact behind a tag. It wraps
// internal/store's HNSWStore, generalized from the teacher's single global
// graph to one graph per tag, and embeds chunk text through an injected
// internal/embed.Embedder. A nil embedder is a supported configuration
// (BM25-only indexing); operations that would need one return
// tagindex.ErrEmbedderUnavailable instead of failing hard.
package vectorindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/passion1014/axlrator-continue/internal/catalog"
	"github.com/passion1014/axlrator-continue/internal/embed"
	"github.com/passion1014/axlrator-continue/internal/store"
	"github.com/passion1014/axlrator-continue/internal/tagindex"
)

// Manager owns one HNSWStore per tag, lazily created and persisted under dir.
type Manager struct {
	mu       sync.Mutex
	dir      string
	embedder embed.Embedder
	graphs   map[string]*store.HNSWStore
}

// NewManager creates a manager rooted at dir. embedder may be nil; callers
// that never invoke Upsert/Search with text never notice.
func NewManager(dir string, embedder embed.Embedder) *Manager {
	return &Manager{
		dir:      dir,
		embedder: embedder,
		graphs:   make(map[string]*store.HNSWStore),
	}
}

func tagFileKey(tag catalog.Tag) string {
	sum := sha256.Sum256([]byte(tag.Directory + "\x00" + tag.Branch + "\x00" + tag.ArtifactID))
	return hex.EncodeToString(sum[:])
}

// graphFor returns the tag's graph, creating and loading it from disk on
// first use.
func (m *Manager) graphFor(tag catalog.Tag) (*store.HNSWStore, error) {
	key := tagFileKey(tag)

	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.graphs[key]; ok {
		return g, nil
	}

	dims := embed.StaticDimensions
	if m.embedder != nil {
		dims = m.embedder.Dimensions()
	}
	g, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		return nil, fmt.Errorf("vectorindex: create graph for %s/%s/%s: %w", tag.Directory, tag.Branch, tag.ArtifactID, err)
	}

	path := m.pathFor(key)
	if _, statErr := os.Stat(path); statErr == nil {
		if err := g.Load(path); err != nil {
			return nil, fmt.Errorf("vectorindex: load graph %s: %w", path, err)
		}
	}

	m.graphs[key] = g
	return g, nil
}

func (m *Manager) pathFor(key string) string {
	return filepath.Join(m.dir, key+".hnsw")
}

// Upsert embeds texts and stores them under ids in the tag's graph. Returns
// tagindex.ErrEmbedderUnavailable if no embedder was configured.
func (m *Manager) Upsert(ctx context.Context, tag catalog.Tag, ids []string, texts []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(texts) {
		return fmt.Errorf("vectorindex: ids and texts length mismatch: %d vs %d", len(ids), len(texts))
	}
	if m.embedder == nil {
		return tagindex.ErrEmbedderUnavailable
	}

	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("vectorindex: embed batch: %w", err)
	}

	g, err := m.graphFor(tag)
	if err != nil {
		return err
	}
	if err := g.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("vectorindex: add to graph: %w", err)
	}
	return m.persist(tag, g)
}

// Search embeds query and returns the k nearest chunk ids in the tag's graph.
func (m *Manager) Search(ctx context.Context, tag catalog.Tag, query string, k int) ([]*store.VectorResult, error) {
	if m.embedder == nil {
		return nil, tagindex.ErrEmbedderUnavailable
	}
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: embed query: %w", err)
	}
	g, err := m.graphFor(tag)
	if err != nil {
		return nil, err
	}
	return g.Search(ctx, vec, k)
}

// Delete removes ids from the tag's graph.
func (m *Manager) Delete(ctx context.Context, tag catalog.Tag, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	g, err := m.graphFor(tag)
	if err != nil {
		return err
	}
	if err := g.Delete(ctx, ids); err != nil {
		return fmt.Errorf("vectorindex: delete from graph: %w", err)
	}
	return m.persist(tag, g)
}

// Clear drops the tag's graph and its on-disk file entirely.
func (m *Manager) Clear(tag catalog.Tag) error {
	key := tagFileKey(tag)

	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.graphs[key]; ok {
		_ = g.Close()
		delete(m.graphs, key)
	}
	path := m.pathFor(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vectorindex: remove graph file %s: %w", path, err)
	}
	return nil
}

func (m *Manager) persist(tag catalog.Tag, g *store.HNSWStore) error {
	if m.dir == "" {
		return nil
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("vectorindex: create dir %s: %w", m.dir, err)
	}
	path := m.pathFor(tagFileKey(tag))
	if err := g.Save(path); err != nil {
		return fmt.Errorf("vectorindex: save graph %s: %w", path, err)
	}
	return nil
}

// ClearAll drops every open graph and removes the entire vector-store
// directory tree, for a full clear_indexes reset rather than a single tag's.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, g := range m.graphs {
		_ = g.Close()
	}
	m.graphs = make(map[string]*store.HNSWStore)

	if m.dir == "" {
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("vectorindex: clear dir %s: %w", m.dir, err)
	}
	return nil
}

// Close releases every open graph.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for _, g := range m.graphs {
		if err := g.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.graphs = make(map[string]*store.HNSWStore)
	return first
}
