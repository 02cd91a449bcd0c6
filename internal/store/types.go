// Package store is the HNSW vector-graph persistence layer behind
// internal/tagindex/vectorindex: one store per tag, holding chunk-id-keyed
// embeddings and answering k-nearest-neighbor queries. The teacher's
// broader store package also carried a SQLite metadata store and a BM25
// index; neither is exercised here (internal/catalog owns metadata and
// internal/tagindex/ftsindex answers full-text queries through it instead),
// so only the vector-store surface survives in this tree.
package store

import (
	"context"
	"fmt"
)

// VectorResult is a single vector search result.
type VectorResult struct {
	ID       string  // chunk ID
	Distance float32 // lower is more similar (0-2 for cosine)
	Score    float32 // normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension, sized to whichever
	// internal/embed.Embedder produced the vectors (or
	// embed.StaticDimensions when indexing without one).
	Dimensions int

	// Quantization is the vector precision: "f32", "f16", "i8" (default: "f16")
	Quantization string

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (default: 32)
	M int

	// EfConstruction is HNSW build-time search width (default: 128)
	EfConstruction int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for a vector store of
// the given dimensionality.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Quantization:   "f16",
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides semantic search using the HNSW algorithm.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds the k nearest neighbors to query.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns every vector ID in the store, for consistency checks.
	AllIDs() []string

	// Contains reports whether id exists.
	Contains(id string) bool

	// Count returns the number of vectors stored.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector was added or queried with a
// dimensionality different from the store's configured one, typically
// meaning the embedder changed since the store was last built.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (clear and rebuild the index)", e.Expected, e.Got)
}
