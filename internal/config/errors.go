package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ConfigurationError represents a structured error found while loading or
// validating a configuration file.
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`    // Full path to the file that caused the error
	Section     string   `json:"section"`     // Dotted config path, e.g. reports[2].id
	ErrorType   string   `json:"errorType"`   // io, parse or validation
	Message     string   `json:"message"`     // Human-readable error message
	Details     string   `json:"details"`     // Additional details about the error
	LineNumber  int      `json:"lineNumber"`  // Line number where error occurred (if available)
	Suggestions []string `json:"suggestions"` // Actionable suggestions to fix the error
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	file := filepath.Base(ce.FilePath)
	if ce.Section == "" {
		return fmt.Sprintf("%s: %s", file, ce.Message)
	}
	return fmt.Sprintf("%s: %s: %s", file, ce.Section, ce.Message)
}

// DetailedError returns a detailed error message with all context
func (ce ConfigurationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Configuration Error in %s", filepath.Base(ce.FilePath)))
	parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	if ce.Section != "" {
		parts = append(parts, fmt.Sprintf("  Section: %s", ce.Section))
	}
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))

	if ce.LineNumber > 0 {
		parts = append(parts, fmt.Sprintf("  Line: %d", ce.LineNumber))
	}

	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if ce.Details != "" {
		parts = append(parts, fmt.Sprintf("  Details: %s", ce.Details))
	}

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

// ConfigurationErrorCollection holds multiple configuration errors
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError `json:"errors"`
}

// Error implements the error interface for the collection
func (cec *ConfigurationErrorCollection) Error() string {
	if len(cec.Errors) == 0 {
		return "no configuration errors"
	}

	if len(cec.Errors) == 1 {
		return cec.Errors[0].Error()
	}

	return fmt.Sprintf("%d configuration errors: %s (and %d more)",
		len(cec.Errors), cec.Errors[0].Error(), len(cec.Errors)-1)
}

// HasErrors returns true if there are any errors in the collection
func (cec *ConfigurationErrorCollection) HasErrors() bool {
	return len(cec.Errors) > 0
}

// Count returns the number of errors in the collection
func (cec *ConfigurationErrorCollection) Count() int {
	return len(cec.Errors)
}

// Add adds a new error to the collection
func (cec *ConfigurationErrorCollection) Add(err ConfigurationError) {
	cec.Errors = append(cec.Errors, err)
}

// AddError adds a validation error for section.
func (cec *ConfigurationErrorCollection) AddError(filePath, section, message string, suggestions ...string) {
	cec.Add(ConfigurationError{
		FilePath:    filePath,
		Section:     section,
		ErrorType:   "validation",
		Message:     message,
		Suggestions: suggestions,
	})
}

// GetErrorsBySection returns errors whose section starts with prefix.
func (cec *ConfigurationErrorCollection) GetErrorsBySection(prefix string) []ConfigurationError {
	var filtered []ConfigurationError
	for _, err := range cec.Errors {
		if strings.HasPrefix(err.Section, prefix) {
			filtered = append(filtered, err)
		}
	}
	return filtered
}

// GetDetailedReport returns a detailed report of all errors
func (cec *ConfigurationErrorCollection) GetDetailedReport() string {
	if len(cec.Errors) == 0 {
		return "No configuration errors to report"
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Detailed Configuration Error Report (%d errors):", len(cec.Errors)))
	parts = append(parts, strings.Repeat("=", 60))

	for i, err := range cec.Errors {
		parts = append(parts, fmt.Sprintf("\nError %d:", i+1))
		parts = append(parts, err.DetailedError())

		if i < len(cec.Errors)-1 {
			parts = append(parts, strings.Repeat("-", 40))
		}
	}

	return strings.Join(parts, "\n")
}

// NewConfigurationError creates a new configuration error with basic information
func NewConfigurationError(filePath, section, errorType, message string) ConfigurationError {
	return ConfigurationError{
		FilePath:  filePath,
		Section:   section,
		ErrorType: errorType,
		Message:   message,
	}
}

// NewConfigurationErrorWithDetails creates a new configuration error with additional details
func NewConfigurationErrorWithDetails(filePath, section, errorType, message, details string, suggestions []string) ConfigurationError {
	return ConfigurationError{
		FilePath:    filePath,
		Section:     section,
		ErrorType:   errorType,
		Message:     message,
		Details:     details,
		Suggestions: suggestions,
	}
}

// NewConfigurationErrorCollection creates a new empty error collection
func NewConfigurationErrorCollection() *ConfigurationErrorCollection {
	return &ConfigurationErrorCollection{
		Errors: make([]ConfigurationError, 0),
	}
}
