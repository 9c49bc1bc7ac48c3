package config

import (
	"time"

	"embedkeeper/internal/embed"
)

const (
	// DefaultEmbedBaseURL is the Power BI report embed page.
	DefaultEmbedBaseURL = "https://app.powerbi.com/reportEmbed"

	// DefaultAuthority is the Azure AD login host.
	DefaultAuthority = "https://login.microsoftonline.com"

	// DefaultPowerBIScope is the client-credentials scope for the Power BI REST API.
	DefaultPowerBIScope = "https://analysis.windows.net/powerbi/api/.default"

	// DefaultPowerBIAPIURL is the Power BI REST API root.
	DefaultPowerBIAPIURL = "https://api.powerbi.com/v1.0/myorg"

	DefaultServerHost      = "localhost"
	DefaultServerPort      = 5000
	DefaultEndpointTimeout = 30 * time.Second
	DefaultWatchDebounce   = 500 * time.Millisecond
)

// GetDefaultConfig returns the configuration every loaded file is merged onto.
func GetDefaultConfig() Config {
	return Config{
		Endpoint: EndpointConfig{
			Timeout: DefaultEndpointTimeout,
		},
		Embed: EmbedConfig{
			BaseURL: DefaultEmbedBaseURL,
			DefaultOptions: embed.ViewOptions{
				embed.OptionFilterPane:            true,
				embed.OptionFilterPaneExpanded:    false,
				embed.OptionTransparentBackground: true,
			},
		},
		Server: ServerConfig{
			Host:          DefaultServerHost,
			Port:          DefaultServerPort,
			Authority:     DefaultAuthority,
			Scope:         DefaultPowerBIScope,
			PowerBIAPIURL: DefaultPowerBIAPIURL,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: DefaultWatchDebounce,
		},
	}
}
