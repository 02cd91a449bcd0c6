// Package chunkindex is the chunk-storage artifact behind a tag: it persists
// chunk.Chunk values keyed by id and by the (path, cache_key) of the file
// version that produced them. The method shapes mirror
// internal/store.MetadataStore's chunk methods; the storage itself is fresh
// SQLite on top of internal/catalog, since no concrete MetadataStore
// implementation exists to adapt.
package chunkindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/passion1014/axlrator-continue/internal/catalog"
	"github.com/passion1014/axlrator-continue/internal/chunk"
)

// Store persists chunks for one catalog. A single Store is shared across all
// tags that resolve to the same catalog database; callers distinguish tags
// by the (path, cache_key) pairs they pass in, same as the catalog itself.
type Store struct {
	cat *catalog.Catalog
}

// New wraps an already-open catalog.
func New(cat *catalog.Catalog) *Store {
	return &Store{cat: cat}
}

// SaveChunks persists chunks, replacing any existing row with the same id.
func (s *Store) SaveChunks(ctx context.Context, chunks []*chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]catalog.ChunkRow, 0, len(chunks))
	for _, ch := range chunks {
		data, err := json.Marshal(ch)
		if err != nil {
			return fmt.Errorf("chunkindex: marshal chunk %s: %w", ch.ID, err)
		}
		rows = append(rows, catalog.ChunkRow{
			ID:       ch.ID,
			Path:     ch.FilePath,
			CacheKey: ch.Digest,
			Data:     data,
		})
	}
	return s.cat.SaveChunks(rows)
}

// GetChunk fetches one chunk by id. ok is false when absent.
func (s *Store) GetChunk(ctx context.Context, id string) (*chunk.Chunk, bool, error) {
	row, ok, err := s.cat.GetChunk(id)
	if err != nil || !ok {
		return nil, ok, err
	}
	ch, err := decode(row)
	if err != nil {
		return nil, false, err
	}
	return ch, true, nil
}

// GetChunks fetches chunks by id, omitting any that are missing.
func (s *Store) GetChunks(ctx context.Context, ids []string) ([]*chunk.Chunk, error) {
	rows, err := s.cat.GetChunks(ids)
	if err != nil {
		return nil, err
	}
	return decodeAll(rows)
}

// GetChunksByFile fetches every chunk produced for one (path, cache_key) file version.
func (s *Store) GetChunksByFile(ctx context.Context, path, cacheKey string) ([]*chunk.Chunk, error) {
	rows, err := s.cat.GetChunksByFile(path, cacheKey)
	if err != nil {
		return nil, err
	}
	return decodeAll(rows)
}

// DeleteChunks removes chunks by id.
func (s *Store) DeleteChunks(ctx context.Context, ids []string) error {
	return s.cat.DeleteChunks(ids)
}

// DeleteChunksByFile removes every chunk produced for one (path, cache_key) file version.
func (s *Store) DeleteChunksByFile(ctx context.Context, path, cacheKey string) error {
	return s.cat.DeleteChunksByFile(path, cacheKey)
}

func decode(row catalog.ChunkRow) (*chunk.Chunk, error) {
	var ch chunk.Chunk
	if err := json.Unmarshal(row.Data, &ch); err != nil {
		return nil, fmt.Errorf("chunkindex: unmarshal chunk %s: %w", row.ID, err)
	}
	return &ch, nil
}

func decodeAll(rows []catalog.ChunkRow) ([]*chunk.Chunk, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]*chunk.Chunk, 0, len(rows))
	for _, row := range rows {
		ch, err := decode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}
