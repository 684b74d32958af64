package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/k6lunge/internal/output"
	"github.com/wesleyorama2/k6lunge/internal/runner"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a k6 test once",
		Long: `Apply a load profile to a script and run it once.

Local run from a file:
  k6lunge run --file test.js --stages "30s:10,2m:10,30s:0"

Stored script with per-stage flags:
  k6lunge run --env stage --app ab --id smoke-test \
    --steady-vus 20 --steady-duration 5m

Submit to the cluster and print JSON:
  k6lunge run --file test.js --profile load.yaml --mode cluster --format json

The exit code is 99 when a local run violates its thresholds.`,
		Args: cobra.NoArgs,
		RunE: runTest,
	}

	addScriptFlags(cmd)
	addProfileFlags(cmd)
	cmd.Flags().String("mode", "", "Execution mode override (local, cluster)")
	cmd.Flags().String("format", "text", "Output format (text, json, yaml, junit)")
	cmd.Flags().String("html", "", "Write an HTML report to this path")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	return cmd
}

func runTest(cmd *cobra.Command, _ []string) error {
	formatFlag, _ := cmd.Flags().GetString("format")
	htmlPath, _ := cmd.Flags().GetString("html")
	noColor, _ := cmd.Flags().GetBool("no-color")
	modeFlag, _ := cmd.Flags().GetString("mode")

	format, err := output.ParseFormat(formatFlag)
	if err != nil {
		return err
	}
	p, err := loadProfile(cmd)
	if err != nil {
		return err
	}
	src, err := scriptSource(cmd)
	if err != nil {
		return err
	}

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = env.log.Sync() }()

	mode, err := env.mode(modeFlag)
	if err != nil {
		return err
	}
	d, err := env.dispatcher(mode)
	if err != nil {
		return err
	}

	res, err := d.Run(cmd.Context(), src, p)
	if err != nil {
		output.NewConsole(cmd.ErrOrStderr(), noColor).PrintError(err)
		return reportedError{err}
	}

	if err := output.WriteResult(cmd.OutOrStdout(), format, res, noColor); err != nil {
		return err
	}
	if htmlPath != "" {
		if err := writeHTMLReport(cmd, res, htmlPath); err != nil {
			return err
		}
	}

	if res.ThresholdViolated {
		return errThresholdViolated
	}
	return nil
}

// writeHTMLReport generates and saves an HTML report
func writeHTMLReport(cmd *cobra.Command, res *runner.RunResult, path string) error {
	if !strings.HasSuffix(strings.ToLower(path), ".html") {
		path += ".html"
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := output.GenerateHTML(res, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Report: %s\n", path)
	return nil
}
