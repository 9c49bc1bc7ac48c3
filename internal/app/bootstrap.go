package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"embedkeeper/internal/config"
	"embedkeeper/pkg/logging"
)

// Application bootstraps and runs embedkeeper in one of its modes.
//
// Initialization is two-phase: NewApplication loads configuration, sets up
// logging and wires services; Run executes the selected mode until the
// context is cancelled or the work is done.
//
// Example usage:
//
//	cfg := app.NewConfig(app.ModeRun, false, "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads and validates the configuration file, configures
// logging from it and initializes the services the selected mode needs.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.LogOutput == nil {
		cfg.LogOutput = os.Stderr
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}

	// Early logging so config loading is visible; replaced below.
	earlyLevel := logging.LevelInfo
	if cfg.Debug {
		earlyLevel = logging.LevelDebug
	}
	logging.InitForCLI(earlyLevel, cfg.LogOutput)

	path := cfg.ConfigPath
	if path == "" {
		defaultPath, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}
	cfg.ConfigPath = path

	settings, err := config.LoadAndValidate(path, cfg.validationMode())
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration from %s", path)
		return nil, err
	}
	cfg.Settings = &settings

	level, err := logging.ParseLevel(settings.Logging.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.Init(level, settings.Logging.Format, cfg.LogOutput)

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services exposes the wired components, mainly for tests.
func (a *Application) Services() *Services {
	return a.services
}

// Run executes the selected mode and blocks until it finishes.
func (a *Application) Run(ctx context.Context) error {
	switch a.config.Mode {
	case ModeServe:
		return runServeMode(ctx, a.config, a.services)
	default:
		return runManagerMode(ctx, a.config, a.services)
	}
}
