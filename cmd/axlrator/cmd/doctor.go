package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/passion1014/axlrator-continue/internal/config"
	"github.com/passion1014/axlrator-continue/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and diagnose issues",
		Long: `Run diagnostics to ensure axlrator can index and embed successfully.

Checks:
  - Disk space (100MB minimum)
  - Memory availability (1GB minimum)
  - Write permissions
  - File descriptor limits (1024 minimum)
  - Embedding model download status and disk space

Embedder checks are non-critical warnings: indexing falls back to the
static embedder when no model backend is available.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)

	results := checker.RunAll(cmd.Context(), root)

	if jsonOutput {
		if err := outputJSON(cmd, checker, results); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)

		dataDir := filepath.Join(root, ".axlrator")
		if !preflight.NeedsCheck(dataDir) {
			if age := preflight.MarkerAge(dataDir); age > 0 {
				cmd.Printf("\nLast successful check: %s ago\n", formatDuration(age))
			}
		}
	}

	if checker.HasCriticalFailures(results) {
		return &doctorError{message: "system check failed"}
	}
	return nil
}

type doctorError struct{ message string }

func (e *doctorError) Error() string { return e.message }

type jsonOutputDoc struct {
	Status   string            `json:"status"`
	Checks   []jsonCheckResult `json:"checks"`
	Warnings []string          `json:"warnings,omitempty"`
	Errors   []string          `json:"errors,omitempty"`
}

type jsonCheckResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
	Details  string `json:"details,omitempty"`
}

func outputJSON(cmd *cobra.Command, checker *preflight.Checker, results []preflight.CheckResult) error {
	doc := jsonOutputDoc{
		Status: checker.SummaryStatus(results),
		Checks: make([]jsonCheckResult, len(results)),
	}

	for i, r := range results {
		doc.Checks[i] = jsonCheckResult{
			Name:     r.Name,
			Status:   statusToString(r.Status),
			Message:  r.Message,
			Required: r.Required,
			Details:  r.Details,
		}
		if r.IsCritical() {
			doc.Errors = append(doc.Errors, r.Name+": "+r.Message)
		} else if r.Status == preflight.StatusWarn {
			doc.Warnings = append(doc.Warnings, r.Name+": "+r.Message)
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

func statusToString(s preflight.CheckStatus) string {
	switch s {
	case preflight.StatusPass:
		return "pass"
	case preflight.StatusWarn:
		return "warn"
	case preflight.StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

func formatDuration(d interface{ Hours() float64 }) string {
	hours := d.Hours()
	switch {
	case hours < 1:
		return "less than 1 hour"
	case hours < 24:
		return pluralize(int(hours), "hour")
	default:
		return pluralize(int(hours/24), "day")
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
