package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/passion1014/axlrator-continue/configs"
	"github.com/passion1014/axlrator-continue/internal/config"
	"github.com/passion1014/axlrator-continue/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user and project configuration",
		Long: `Manage axlrator's configuration.

User configuration applies to every project on this machine (embedding
backend, Ollama/MLX endpoints, thermal tuning). Project configuration is
version-controlled with the repo (path filters, search weights, artifact
toggles).

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/axlrator/config.yaml)
  3. Project config (.axlrator.yaml)
  4. Environment variables (AXLRATOR_*)`,
		Example: `  # Create user config from template
  axlrator config init

  # Create .axlrator.yaml at the project root
  axlrator config init --project

  # Show effective configuration (merged from all sources)
  axlrator config show

  # Print the user config file path
  axlrator config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force   bool
		project bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from a template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if project {
				return runConfigInitProject(cmd, force)
			}
			return runConfigInitUser(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	cmd.Flags().BoolVar(&project, "project", false, "Create .axlrator.yaml at the project root instead of the user config")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := config.FindProjectRoot(".")
			if err != nil {
				root, _ = os.Getwd()
			}
			cfg, err := config.Load(root)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			out := output.New(cmd.OutOrStdout())
			out.KeyValue("Embedder", 16, cfg.Embeddings.Provider)
			out.KeyValue("Model", 16, cfg.Embeddings.Model)
			out.KeyValue("BM25 weight", 16, fmt.Sprintf("%.2f", cfg.Search.BM25Weight))
			out.KeyValue("Semantic weight", 16, fmt.Sprintf("%.2f", cfg.Search.SemanticWeight))
			out.KeyValue("Files/batch", 16, fmt.Sprintf("%d", cfg.Artifacts.FilesPerBatch))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func runConfigInitUser(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	configPath := config.GetUserConfigPath()
	configDir := config.GetUserConfigDir()

	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("📁", "Location: %s", configPath)
			return nil
		}
		return runConfigUpgrade(out, configPath)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created user configuration")
	out.Statusf("📁", "Location: %s", configPath)
	return nil
}

func runConfigInitProject(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	configPath := filepath.Join(root, ".axlrator.yaml")

	if _, err := os.Stat(configPath); err == nil && !force {
		out.Warning("Project configuration already exists")
		out.Statusf("📁", "Location: %s", configPath)
		return nil
	}

	if err := os.WriteFile(configPath, []byte(configs.ProjectConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created project configuration")
	out.Statusf("📁", "Location: %s", configPath)
	return nil
}

func runConfigUpgrade(out *output.Writer, configPath string) error {
	backupPath, err := config.BackupUserConfig()
	if err != nil {
		return fmt.Errorf("failed to backup config: %w", err)
	}

	existingCfg, err := config.LoadUserConfig()
	if err != nil {
		return fmt.Errorf("failed to load existing config: %w", err)
	}
	if existingCfg == nil {
		return fmt.Errorf("config file disappeared during upgrade")
	}

	newFields := existingCfg.MergeNewDefaults()

	if err := existingCfg.WriteYAML(configPath); err != nil {
		return fmt.Errorf("failed to write upgraded config: %w", err)
	}

	out.Success("Configuration upgraded")
	out.Statusf("📁", "Location: %s", configPath)
	out.Statusf("💾", "Backup: %s", backupPath)
	if len(newFields) > 0 {
		out.Statusf("✨", "New fields: %v", newFields)
	}
	return nil
}
