package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"embedkeeper/internal/app"
)

// serveCmd runs the credential-issuing backend.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backend that issues embed credentials",
	Long: `Starts an HTTP server that issues embed credentials for report/dataset
pairs. The server authenticates as the configured service principal using the
OAuth2 client credentials flow and asks the reporting service to generate an
embed token for each request.

Endpoints:
  GET /api/embedded-tokens?reportId=..&datasetId=..
  GET /api/user/settings
  GET /healthz

Secrets in the config file may reference environment variables, for example
clientSecret: ${EMBEDKEEPER_CLIENT_SECRET}.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(app.ModeServe, debug, configPath)
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
	rootCmd.AddCommand(serveCmd)
}
