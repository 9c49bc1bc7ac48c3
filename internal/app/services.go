package app

import (
	"context"
	"net/http"

	"embedkeeper/internal/credential"
	"embedkeeper/internal/formatting"
	"embedkeeper/internal/issuer"
	"embedkeeper/internal/lifecycle"
	"embedkeeper/pkg/logging"
)

// Services holds the components wired for one mode. Fields a mode does not
// use stay nil.
type Services struct {
	// Run mode
	Controller *lifecycle.Controller
	Settings   *credential.SettingsClient
	Formatter  formatting.Formatter

	// Serve mode
	Server *issuer.Server
}

// InitializeServices builds the services for cfg.Mode from cfg.Settings.
func InitializeServices(cfg *Config) (*Services, error) {
	settings := cfg.Settings
	services := &Services{}

	if cfg.Mode == ModeServe {
		services.Server = issuer.NewServer(context.Background(), settings.Server)
		logging.Debug("Services", "Initialized credential issuer for tenant %s", settings.Server.TenantID)
		return services, nil
	}

	httpClient := &http.Client{Timeout: settings.Endpoint.Timeout}

	opts := []credential.Option{credential.WithHTTPClient(httpClient)}
	for k, v := range settings.Endpoint.Headers {
		opts = append(opts, credential.WithHeader(k, v))
	}
	fetcher := credential.NewHTTPFetcher(settings.Endpoint.URL, opts...)

	if settings.Endpoint.SettingsURL != "" {
		services.Settings = credential.NewSettingsClient(settings.Endpoint.SettingsURL, httpClient)
	}

	services.Controller = lifecycle.New(lifecycle.Options{
		Fetcher:              fetcher,
		Reporter:             lifecycle.LogReporter{},
		EmbedBaseURL:         settings.Embed.BaseURL,
		WorkspaceID:          settings.Embed.WorkspaceID,
		MaxConcurrentFetches: settings.Embed.MaxConcurrentFetches,
	})

	services.Formatter = formatting.NewFactory().CreateFormatter(formatting.Options{
		Format: cfg.Format,
		Quiet:  cfg.Quiet,
		Color:  cfg.Color,
	})

	logging.Debug("Services", "Initialized session manager for %d reports against %s",
		len(settings.Reports), settings.Endpoint.URL)
	return services, nil
}
