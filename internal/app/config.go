package app

import (
	"io"
	"os"

	"embedkeeper/internal/config"
	"embedkeeper/internal/formatting"
)

// Mode selects what the application runs.
type Mode int

const (
	// ModeRun keeps embed sessions fresh and renders them.
	ModeRun Mode = iota
	// ModeServe runs the credential-issuing backend.
	ModeServe
)

// Config holds the application configuration
type Config struct {
	Mode Mode

	// Debug settings
	Debug bool

	// ConfigPath is the YAML file to load; empty means the default path.
	ConfigPath string

	// Once initializes, renders one snapshot and exits (run mode).
	Once bool

	// Output settings for the session renderer
	Format formatting.OutputFormat
	Quiet  bool
	Color  bool
	Output io.Writer

	// LogOutput receives log records; defaults to stderr.
	LogOutput io.Writer

	// Settings is the loaded file configuration, set during bootstrap.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(mode Mode, debug bool, configPath string) *Config {
	return &Config{
		Mode:       mode,
		Debug:      debug,
		ConfigPath: configPath,
		Format:     formatting.FormatTable,
		Output:     os.Stdout,
		LogOutput:  os.Stderr,
	}
}

func (c *Config) validationMode() config.Mode {
	if c.Mode == ModeServe {
		return config.ModeServe
	}
	return config.ModeRun
}
