package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/passion1014/axlrator-continue/internal/catalog"
	"github.com/passion1014/axlrator-continue/internal/config"
	"github.com/passion1014/axlrator-continue/internal/embed"
	"github.com/passion1014/axlrator-continue/internal/logging"
	"github.com/passion1014/axlrator-continue/internal/orchestrator"
	"github.com/passion1014/axlrator-continue/internal/scanner"
	"github.com/passion1014/axlrator-continue/internal/tagindex/chunkindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/ftsindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/snippetindex"
	"github.com/passion1014/axlrator-continue/internal/tagindex/vectorindex"
	"github.com/passion1014/axlrator-continue/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var (
		noTUI   bool
		force   bool
		backend string
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory for searching and completion",
		Long: `Index a directory: scan its files, chunk them, and build the
full-text, vector, and symbol-snippet indexes used by search and complete.

Reindexing is incremental by default — unchanged files are skipped because
the catalog already knows their content hash. Use --force to drop the
existing index for the directory and rebuild it from scratch.

Backend Selection:
  (default)          Auto-detect: MLX on Apple Silicon, Ollama otherwise
  --backend=mlx      Use MLX (Apple Silicon)
  --backend=ollama   Use Ollama
  --backend=static   Use the deterministic static embedder (no model needed)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			if backend != "" {
				os.Setenv("AXLRATOR_EMBEDDER", backend)
			}

			return runIndex(ctx, cmd, path, noTUI, force, watch)
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&force, "force", false, "Clear the existing index for this directory and rebuild it")
	cmd.Flags().StringVar(&backend, "backend", "", "Embedding backend: auto-detect (default), mlx, ollama, or static")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and reindex files as they change")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, noTUI, force, watch bool) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", absPath)
	}

	root, err := config.FindProjectRoot(absPath)
	if err != nil {
		root = absPath
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dataDir := filepath.Join(root, ".axlrator")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	cat, err := catalog.Open(filepath.Join(dataDir, "catalog.db"), catalog.Options{})
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer cat.Close()

	if force {
		if err := cat.Reset(); err != nil {
			return fmt.Errorf("failed to clear catalog: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cleared existing index data, starting fresh...")
	}

	embedder, err := embed.NewEmbedder(ctx, embed.ProviderType(cfg.Embeddings.Provider), cfg.Embeddings.Model)
	if err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: embedder unavailable (%v); falling back to the static embedder\n", err)
		embedder = embed.NewStaticEmbedder768()
	}

	sc, err := scanner.New()
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	chunks := chunkindex.New(cat)
	vectors := vectorindex.NewManager(dataDir, embedder)
	defer vectors.Close()
	fts := ftsindex.New(cat)

	snippets, err := snippetindex.Open(filepath.Join(dataDir, "snippets.bleve"))
	if err != nil {
		return fmt.Errorf("failed to open snippet index: %w", err)
	}
	defer snippets.Close()

	readFile := func(p string) ([]byte, error) { return os.ReadFile(p) }

	orch := orchestrator.New(cat, sc, chunks, vectors, fts, snippets, cfg.Artifacts, readFile, nil, nil)

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(noTUI), ui.WithProjectDir(root)))
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start renderer: %w", err)
	}
	defer renderer.Stop()

	var filesSeen, chunksSeen, errCount int
	for update := range orch.RefreshDirs(ctx, []string{root}) {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageIndexing,
			Current: int(update.Fraction * 100),
			Total:   100,
			Message: update.Description,
		})
		if update.Status == orchestrator.StatusFailed {
			errCount++
			renderer.AddError(ui.ErrorEvent{Err: fmt.Errorf("%s", update.Description)})
		}
	}

	rows, err := cat.AllRows(catalog.Tag{Directory: root, ArtifactID: "chunks"})
	if err == nil {
		chunksSeen = len(rows)
		seen := make(map[string]struct{}, len(rows))
		for _, r := range rows {
			seen[r.Path] = struct{}{}
		}
		filesSeen = len(seen)
	}

	renderer.Complete(ui.CompletionStats{
		Files:  filesSeen,
		Chunks: chunksSeen,
		Errors: errCount,
		Embedder: ui.EmbedderInfo{
			Backend:    string(embed.ProviderType(cfg.Embeddings.Provider)),
			Model:      embedder.ModelName(),
			Dimensions: embedder.Dimensions(),
		},
	})

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if watch {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes, press Ctrl+C to stop...")
		return watchAndReindex(ctx, cmd, root, orch)
	}
	return nil
}

// watchAndReindex keeps orch's index current as files change, grounded on
// the teacher's fsnotify-primary file watcher but trimmed to the single
// case the orchestrator needs: a debounced batch of changed paths fed to
// RefreshFiles.
func watchAndReindex(ctx context.Context, cmd *cobra.Command, root string, orch *orchestrator.Orchestrator) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	const debounce = 400 * time.Millisecond
	pending := map[string]struct{}{}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	flush := func() {
		if len(pending) == 0 {
			return
		}
		files := make([]string, 0, len(pending))
		for f := range pending {
			files = append(files, f)
		}
		pending = map[string]struct{}{}
		for update := range orch.RefreshFiles(ctx, root, files) {
			if update.Status == orchestrator.StatusFailed {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "reindex error: %s\n", update.Description)
			}
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Reindexed %d file(s)\n", len(files))
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == 0 && event.Op&fsnotify.Create == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				_ = watcher.Add(event.Name)
				continue
			}
			pending[event.Name] = struct{}{}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		case <-timer.C:
			flush()
		}
	}
}

// addRecursive registers root and every subdirectory fsnotify should watch,
// skipping directories the scanner would exclude from indexing anyway.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		base := d.Name()
		if base != "." && (base == ".git" || base == ".axlrator" || base == "node_modules" || base == "vendor") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
