package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"embedkeeper/internal/app"
	"embedkeeper/internal/formatting"
)

var (
	runOnce    bool
	runOutput  string
	runQuiet   bool
	runNoColor bool
)

// runCmd keeps the configured report sessions fresh.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch and keep embed credentials fresh for the configured reports",
	Long: `Fetches an embed credential for every configured report in parallel and
schedules a refresh 30 seconds before each credential expires. The live
session set is rendered on every change.

A report that fails to load is reported and left out; the others continue.
With --once the session set is rendered a single time and the command exits,
failing only when no report could be loaded.

When watching is enabled in the configuration, edits to the config file
reload the report set without a restart.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	format := formatting.OutputFormat(runOutput)
	switch format {
	case formatting.FormatTable, formatting.FormatConsole, formatting.FormatJSON, formatting.FormatYAML:
	default:
		return fmt.Errorf("unsupported output format %q (use table, console, json or yaml)", runOutput)
	}

	cfg := app.NewConfig(app.ModeRun, debug, configPath)
	cfg.Once = runOnce
	cfg.Format = format
	cfg.Quiet = runQuiet
	cfg.Color = !runNoColor
	cfg.Output = cmd.OutOrStdout()

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runOnce, "once", false, "Render the session set once and exit")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", string(formatting.FormatTable), "Output format (table, console, json, yaml)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress decorative output and the progress spinner")
	runCmd.Flags().BoolVar(&runNoColor, "no-color", false, "Disable colored output")
}
