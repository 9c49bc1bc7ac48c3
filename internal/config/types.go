package config

import (
	"time"

	"embedkeeper/internal/embed"
)

// Config is the top-level configuration structure for embedkeeper.
type Config struct {
	Endpoint EndpointConfig `yaml:"endpoint"`
	Embed    EmbedConfig    `yaml:"embed"`
	Reports  []ReportConfig `yaml:"reports"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Watch    WatchConfig    `yaml:"watch"`
}

// EndpointConfig points the manager at the credential-issuing endpoint.
type EndpointConfig struct {
	URL         string            `yaml:"url"`                   // e.g. http://localhost:5000/api/embedded-tokens
	SettingsURL string            `yaml:"settingsUrl,omitempty"` // optional; enables enabledBy gating
	Timeout     time.Duration     `yaml:"timeout,omitempty"`     // per request (default: 30s)
	Headers     map[string]string `yaml:"headers,omitempty"`     // static headers, values support ${ENV}
}

// EmbedConfig controls how embed targets are built.
type EmbedConfig struct {
	BaseURL              string            `yaml:"baseUrl,omitempty"`
	WorkspaceID          string            `yaml:"workspaceId,omitempty"`
	MaxConcurrentFetches int               `yaml:"maxConcurrentFetches,omitempty"` // 0 = unlimited
	DefaultOptions       embed.ViewOptions `yaml:"defaultOptions,omitempty"`
}

// ReportConfig is one entry of the ordered reports list.
type ReportConfig struct {
	embed.ReportDescriptor `yaml:",inline"`

	// EnabledBy names a user setting that must be true for the report to be
	// shown.
	EnabledBy string `yaml:"enabledBy,omitempty"`
}

// ServerConfig configures the credential-issuing backend run by `serve`.
type ServerConfig struct {
	Host           string   `yaml:"host,omitempty"`
	Port           int      `yaml:"port,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`

	Authority    string `yaml:"authority,omitempty"`
	TenantID     string `yaml:"tenantId,omitempty"`
	ClientID     string `yaml:"clientId,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty"`
	Scope        string `yaml:"scope,omitempty"`

	PowerBIAPIURL string          `yaml:"powerBiApiUrl,omitempty"`
	WorkspaceID   string          `yaml:"workspaceId,omitempty"`
	Identity      *IdentityConfig `yaml:"identity,omitempty"`

	// Settings is served verbatim on /api/user/settings.
	Settings map[string]bool `yaml:"settings,omitempty"`
}

// IdentityConfig is the effective identity passed to GenerateToken for
// row-level security.
type IdentityConfig struct {
	Username string   `yaml:"username"`
	Roles    []string `yaml:"roles,omitempty"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// WatchConfig controls reloading on config file changes.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// Descriptors returns the report descriptors in configured order. A report
// gated by EnabledBy is included only when settings holds true for that key.
// Embed default options are applied beneath each report's own options.
func (c Config) Descriptors(settings map[string]bool) []embed.ReportDescriptor {
	out := make([]embed.ReportDescriptor, 0, len(c.Reports))
	for _, r := range c.Reports {
		if r.EnabledBy != "" && !settings[r.EnabledBy] {
			continue
		}

		d := r.ReportDescriptor
		opts := c.Embed.DefaultOptions.Clone()
		if opts == nil && len(d.Options) > 0 {
			opts = make(embed.ViewOptions, len(d.Options))
		}
		for k, v := range d.Options {
			opts[k] = v
		}
		d.Options = opts
		out = append(out, d)
	}
	return out
}

// NeedsSettings reports whether any report is gated on a user setting.
func (c Config) NeedsSettings() bool {
	for _, r := range c.Reports {
		if r.EnabledBy != "" {
			return true
		}
	}
	return false
}
