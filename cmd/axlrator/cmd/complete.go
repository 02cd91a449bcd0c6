package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/passion1014/axlrator-continue/internal/completion"
	"github.com/passion1014/axlrator-continue/internal/config"
	"github.com/passion1014/axlrator-continue/internal/scanner"
	"github.com/passion1014/axlrator-continue/internal/tagindex/snippetindex"
)

func newCompleteCmd() *cobra.Command {
	var (
		line int
		col  int
	)

	cmd := &cobra.Command{
		Use:   "complete <file>",
		Short: "Run one completion request against a file's cursor position",
		Long: `Drive the autocomplete pipeline for a single file and cursor
position: prefilter, snippet gathering, prompt rendering, multiline
decision, and display lifecycle, the same path an editor integration
drives on every keystroke.

No language model backend is wired into the CLI: its model stream
produces no tokens, so the completion text is always empty; this command
exists to exercise and debug the pipeline, not to serve real completions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(cmd.Context(), cmd, args[0], line, col)
		},
	}

	cmd.Flags().IntVar(&line, "line", 0, "0-indexed cursor line")
	cmd.Flags().IntVar(&col, "col", 0, "0-indexed cursor column")

	return cmd
}

func runComplete(ctx context.Context, cmd *cobra.Command, path string, line, col int) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	prefix, suffix := splitAtCursor(string(content), line, col)

	root, err := config.FindProjectRoot(filepath.Dir(absPath))
	if err != nil {
		root = filepath.Dir(absPath)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dataDir := filepath.Join(root, ".axlrator")
	snippets, err := snippetindex.Open(filepath.Join(dataDir, "snippets.bleve"))
	if err != nil {
		return fmt.Errorf("failed to open snippet index: %w", err)
	}
	defer snippets.Close()

	pipeline, err := completion.NewDefaultPipeline(cfg.Completion, snippets, func() bool { return true }, echoStream)
	if err != nil {
		return fmt.Errorf("failed to build completion pipeline: %w", err)
	}

	result, err := pipeline.Provide(ctx, completion.Input{
		RequestID:     "cli-complete",
		FilePath:      absPath,
		WorkspaceRoot: root,
		Language:      scanner.DetectLanguage(absPath),
		Prefix:        prefix,
		Suffix:        suffix,
		FileContent:   string(content),
		ManualTrigger: true,
	})
	if err != nil {
		return fmt.Errorf("completion request failed: %w", err)
	}
	if result == nil {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "(no completion: request was filtered or debounced)")
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Text)
	return err
}

// splitAtCursor locates a 0-indexed line/col inside content and returns the
// text before and after it.
func splitAtCursor(content string, line, col int) (prefix, suffix string) {
	lines := strings.Split(content, "\n")
	if line < 0 {
		line = 0
	}
	if line >= len(lines) {
		return content, ""
	}
	target := lines[line]
	if col < 0 {
		col = 0
	}
	if col > len(target) {
		col = len(target)
	}

	before := strings.Join(lines[:line], "\n")
	if line > 0 {
		before += "\n"
	}
	before += target[:col]

	after := target[col:]
	if line < len(lines)-1 {
		after += "\n" + strings.Join(lines[line+1:], "\n")
	}
	return before, after
}

// echoStream is a placeholder generator: it produces no tokens, since no
// language model backend is configured for the CLI.
func echoStream(ctx context.Context, prompt string) (<-chan rune, error) {
	ch := make(chan rune)
	close(ch)
	return ch, nil
}
