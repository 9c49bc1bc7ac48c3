// Package app bootstraps embedkeeper and runs its modes.
//
// NewApplication loads and validates the YAML configuration for the selected
// mode, configures logging from it and wires the services:
//
//   - Run mode builds a credential fetcher, an optional user settings client,
//     a lifecycle controller and a session formatter. The manager populates
//     the session set, renders it and keeps it fresh until interrupted. With
//     Once set it renders one snapshot and exits. Edits to the config file
//     reload the report set when watching is enabled.
//   - Serve mode builds the credential issuer, an HTTP backend that turns
//     report/dataset pairs into embed credentials.
//
// Both modes stop cleanly on SIGINT or SIGTERM.
package app
