package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/passion1014/axlrator-continue/internal/catalog"
	"github.com/passion1014/axlrator-continue/internal/config"
	"github.com/passion1014/axlrator-continue/internal/embed"
	"github.com/passion1014/axlrator-continue/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and storage usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	dataDir := filepath.Join(root, ".axlrator")
	catalogPath := filepath.Join(dataDir, "catalog.db")

	info := ui.StatusInfo{
		ProjectName:   filepath.Base(root),
		WatcherStatus: "n/a",
	}

	if _, err := os.Stat(catalogPath); os.IsNotExist(err) {
		info.EmbedderStatus = "offline"
		return renderStatus(cmd, info, jsonOutput)
	}

	cat, err := catalog.Open(catalogPath, catalog.Options{})
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer cat.Close()

	chunkRows, err := cat.AllRows(catalog.Tag{Directory: root, ArtifactID: "chunks"})
	if err == nil {
		info.TotalChunks = len(chunkRows)
		seen := make(map[string]struct{}, len(chunkRows))
		var latest int64
		for _, r := range chunkRows {
			seen[r.Path] = struct{}{}
			if t := r.LastUpdated.Unix(); t > latest {
				latest = t
			}
		}
		info.TotalFiles = len(seen)
		if latest > 0 {
			info.LastIndexed = chunkRows[0].LastUpdated
			for _, r := range chunkRows {
				if r.LastUpdated.After(info.LastIndexed) {
					info.LastIndexed = r.LastUpdated
				}
			}
		}
	}

	info.MetadataSize = fileSize(catalogPath)
	info.FTSSize = info.MetadataSize // FTS5 content lives in the same SQLite catalog
	info.VectorSize = dirSize(dataDir, ".hnsw")
	info.TotalSize = info.MetadataSize + info.VectorSize + dirSize(dataDir, ".bleve")

	cfg, err := config.Load(root)
	if err == nil {
		info.EmbedderType = cfg.Embeddings.Provider
		if info.EmbedderType == "" {
			info.EmbedderType = "auto"
		}
		info.EmbedderModel = cfg.Embeddings.Model
		if _, err := embed.NewEmbedder(cmd.Context(), embed.ProviderType(cfg.Embeddings.Provider), cfg.Embeddings.Model); err != nil {
			info.EmbedderStatus = "offline"
		} else {
			info.EmbedderStatus = "ready"
		}
	}

	return renderStatus(cmd, info, jsonOutput)
}

func renderStatus(cmd *cobra.Command, info ui.StatusInfo, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), false)
	return renderer.Render(info)
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}

func dirSize(dir, ext string) int64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		if st, err := e.Info(); err == nil {
			total += st.Size()
		}
	}
	return total
}
