package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/passion1014/axlrator-continue/internal/catalog"
	"github.com/passion1014/axlrator-continue/internal/config"
	"github.com/passion1014/axlrator-continue/internal/embed"
	"github.com/passion1014/axlrator-continue/internal/logging"
	"github.com/passion1014/axlrator-continue/internal/output"
	"github.com/passion1014/axlrator-continue/internal/scanner"
	"github.com/passion1014/axlrator-continue/internal/tagindex/chunkindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/ftsindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/vectorindex"
)

type searchOptions struct {
	limit      int
	language   string
	format     string // "text", "json"
	ftsOnly    bool
	semanticOnly bool
}

type searchResult struct {
	Path    string  `json:"path"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search the indexed codebase using hybrid search.

Combines full-text keyword matching with semantic vector similarity,
merging the two ranked lists with Reciprocal Rank Fusion.

Examples:
  axlrator search "authentication middleware"
  axlrator search "handleRequest" --limit 5
  axlrator search "error handling" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Filter by language (e.g., go, python)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.ftsOnly, "fts-only", false, "Use keyword search only (skip semantic search)")
	cmd.Flags().BoolVar(&opts.semanticOnly, "semantic-only", false, "Use semantic search only (skip keyword search)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if _, cleanup, err := logging.Setup(logCfg); err == nil {
		defer cleanup()
	}

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	out := output.New(cmd.OutOrStdout())

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	dataDir := filepath.Join(root, ".axlrator")
	catalogPath := filepath.Join(dataDir, "catalog.db")
	if _, err := os.Stat(catalogPath); os.IsNotExist(err) {
		return fmt.Errorf("no index found, run 'axlrator index' first")
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cat, err := catalog.Open(catalogPath, catalog.Options{})
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer cat.Close()

	chunks := chunkindex.New(cat)

	results, err := hybridSearch(ctx, root, dataDir, cat, chunks, cfg, query, opts)
	if err != nil {
		return err
	}
	if opts.language != "" {
		filtered := results[:0]
		for _, r := range results {
			if scanner.DetectLanguage(r.Path) == opts.language {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	if len(results) > opts.limit {
		results = results[:opts.limit]
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		out.Status("∅", "No results found")
		return nil
	}
	for i, r := range results {
		out.Statusf(fmt.Sprintf("%d.", i+1), "%s (score %.3f)", r.Path, r.Score)
		out.Code(r.Snippet)
	}
	return nil
}

// hybridSearch merges full-text and semantic candidates with Reciprocal
// Rank Fusion, the same scoring shape internal/config.SearchConfig documents
// (score = sum of 1/(k+rank) across the lists a chunk appears in).
func hybridSearch(
	ctx context.Context,
	root, dataDir string,
	cat *catalog.Catalog,
	chunks *chunkindex.Store,
	cfg *config.Config,
	query string,
	opts searchOptions,
) ([]searchResult, error) {
	k := cfg.Search.RRFConstant
	if k <= 0 {
		k = 60
	}

	fused := map[string]float64{}
	cacheKeys := map[string]string{}
	order := []string{}
	touch := func(path, cacheKey string, rank int) {
		if _, ok := fused[path]; !ok {
			order = append(order, path)
		}
		fused[path] += 1.0 / float64(k+rank)
		cacheKeys[path] = cacheKey
	}

	if !opts.semanticOnly {
		matches, err := ftsindex.New(cat).Search(ctx, query, cfg.Search.MaxResults)
		if err != nil {
			return nil, fmt.Errorf("fts search: %w", err)
		}
		for i, m := range matches {
			touch(m.Path, m.CacheKey, i+1)
		}
	}

	if !opts.ftsOnly {
		embedder, err := embed.NewEmbedder(ctx, embed.ProviderType(cfg.Embeddings.Provider), cfg.Embeddings.Model)
		if err != nil {
			slog.Warn("semantic_search_unavailable", slog.String("error", err.Error()))
		} else {
			vecMgr := vectorindex.NewManager(dataDir, embedder)
			defer vecMgr.Close()
			tag := catalog.Tag{Directory: root, ArtifactID: "vectors"}
			hits, err := vecMgr.Search(ctx, tag, query, cfg.Search.MaxResults)
			if err != nil {
				slog.Warn("semantic_search_failed", slog.String("error", err.Error()))
			} else {
				for i, h := range hits {
					c, ok, err := chunks.GetChunk(ctx, h.ID)
					if err != nil || !ok {
						continue
					}
					touch(c.FilePath, c.Digest, i+1)
				}
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return fused[order[i]] > fused[order[j]] })

	results := make([]searchResult, 0, len(order))
	for _, path := range order {
		rows, err := chunks.GetChunksByFile(ctx, path, cacheKeys[path])
		snippet := ""
		if err == nil && len(rows) > 0 {
			snippet = rows[0].RawContent
		}
		results = append(results, searchResult{Path: path, Snippet: snippet, Score: fused[path]})
	}
	return results, nil
}
