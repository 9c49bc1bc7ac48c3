// Package logging provides subsystem-tagged structured logging for embedkeeper.
//
// It is a thin layer over Go's log/slog. Every record carries a "subsystem"
// attribute so output from the scheduler, the session store and the issuing
// backend can be told apart in a single stream.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//
//	logging.Info("Lifecycle", "Populated %d sessions", n)
//	logging.Debug("Scheduler", "Armed refresh for %s at %s", id, fireAt)
//	logging.Warn("Scheduler", "Credential for %s already inside safety buffer", id)
//	logging.Error("Fetcher", err, "Credential request for %s failed", id)
//
// Components that accept a *slog.Logger (for example the issuing backend's
// HTTP server) get one through Logger(subsystem).
//
// Access tokens must never be logged in full; use RedactToken.
package logging
