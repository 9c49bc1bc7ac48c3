package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"

	"embedkeeper/internal/config"
	"embedkeeper/internal/embed"
	"embedkeeper/internal/formatting"
	"embedkeeper/internal/lifecycle"
	"embedkeeper/internal/watcher"
	"embedkeeper/pkg/logging"
)

// shutdownTimeout bounds the graceful shutdown of the issuer server.
const shutdownTimeout = 10 * time.Second

// runManagerMode populates the session set, renders it and, unless Once is
// set, keeps it fresh until the context is cancelled or a signal arrives.
// Every store change re-renders the snapshot. With watching enabled, edits
// to the config file reload the report set.
func runManagerMode(ctx context.Context, cfg *Config, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := services.Controller
	defer controller.Close()

	events, unsubscribe := controller.Subscribe()
	defer unsubscribe()

	descriptors := resolveDescriptors(ctx, services, cfg.Settings)
	result := withSpinner(cfg, len(descriptors), func() lifecycle.Result {
		return controller.Initialize(ctx, descriptors)
	})
	// Events queued by the population are covered by this render. Anything
	// after the drain stays queued for the loop below.
	drain(events)
	render(cfg, services)

	if cfg.Once {
		if len(result.Loaded) == 0 && len(result.Failed) > 0 {
			return fmt.Errorf("none of %d reports could be loaded", len(result.Failed))
		}
		return nil
	}

	if cfg.Settings.Watch.Enabled {
		w, err := watcher.New(cfg.ConfigPath, cfg.Settings.Watch.Debounce, func() {
			reload(ctx, cfg, services)
		})
		if err == nil {
			err = w.Start(ctx)
		}
		if err != nil {
			logging.Warn("Manager", "Config watching disabled: %v", err)
		} else {
			defer w.Stop()
		}
	}

	logging.Info("Manager", "Keeping %d sessions fresh, press Ctrl+C to stop", len(result.Loaded))
	for {
		select {
		case <-ctx.Done():
			logging.Info("Manager", "Shutting down")
			return nil
		case _, ok := <-events:
			if !ok {
				return nil
			}
			// Coalesce bursts into one render.
			drain(events)
			render(cfg, services)
		}
	}
}

// runServeMode runs the credential issuer until the context is cancelled,
// a signal arrives or the server fails.
func runServeMode(ctx context.Context, cfg *Config, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := services.Server
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start issuer: %w", err)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info("Serve", "Shutting down")
	case err, ok := <-server.Errors():
		if ok && err != nil {
			serveErr = err
			logging.Error("Serve", err, "Issuer stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// resolveDescriptors returns the visible reports for settings, consulting
// the user settings endpoint when a report is gated. Gated reports stay
// hidden when the settings cannot be read.
func resolveDescriptors(ctx context.Context, services *Services, settings *config.Config) []embed.ReportDescriptor {
	var flags map[string]bool
	if settings.NeedsSettings() && services.Settings != nil {
		fetched, err := services.Settings.Fetch(ctx)
		if err != nil {
			logging.Warn("Manager", "Could not read user settings, gated reports are hidden: %v", err)
		} else {
			flags = fetched
		}
	}
	return settings.Descriptors(flags)
}

// reload re-reads the config file and replaces the session set. An invalid
// file keeps the current sessions.
func reload(ctx context.Context, cfg *Config, services *Services) {
	if ctx.Err() != nil {
		return
	}

	next, err := config.LoadAndValidate(cfg.ConfigPath, config.ModeRun)
	if err != nil {
		logging.Error("Manager", err, "Ignoring config change in %s", cfg.ConfigPath)
		return
	}

	current := cfg.Settings
	if next.Endpoint.URL != current.Endpoint.URL ||
		next.Endpoint.SettingsURL != current.Endpoint.SettingsURL ||
		next.Endpoint.Timeout != current.Endpoint.Timeout {
		logging.Warn("Manager", "Endpoint changes take effect after a restart")
		next.Endpoint = current.Endpoint
	}
	cfg.Settings = &next

	logging.Info("Manager", "Configuration changed, reloading %d reports", len(next.Reports))
	services.Controller.SetEmbedTarget(next.Embed.BaseURL, next.Embed.WorkspaceID)
	services.Controller.Reload(ctx, resolveDescriptors(ctx, services, &next))
}

func withSpinner(cfg *Config, count int, fn func() lifecycle.Result) lifecycle.Result {
	if cfg.Quiet || count == 0 {
		return fn()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cfg.LogOutput))
	s.Suffix = fmt.Sprintf(" Fetching credentials for %d reports...", count)
	s.Start()
	defer s.Stop()
	return fn()
}

func render(cfg *Config, services *Services) {
	view := formatting.SessionView{
		Now:      time.Now(),
		Sessions: services.Controller.Snapshot(),
		Pending:  services.Controller.Pending(),
	}
	if err := services.Formatter.FormatSessions(cfg.Output, view); err != nil {
		logging.Error("Manager", err, "Failed to render sessions")
	}
}

func drain[T any](ch <-chan T) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
