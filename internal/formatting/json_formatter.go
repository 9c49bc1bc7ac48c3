package formatting

import (
	"io"
	"time"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{
		options: options,
	}
}

type sessionDocument struct {
	GeneratedAt string          `json:"generatedAt" yaml:"generatedAt"`
	Count       int             `json:"count" yaml:"count"`
	Sessions    []sessionRecord `json:"sessions" yaml:"sessions"`
}

func newDocument(view SessionView) sessionDocument {
	return sessionDocument{
		GeneratedAt: view.Now.UTC().Format(time.RFC3339),
		Count:       len(view.Sessions),
		Sessions:    records(view),
	}
}

// FormatSessions writes the view as an indented JSON document.
func (f *JSONFormatter) FormatSessions(w io.Writer, view SessionView) error {
	_, err := io.WriteString(w, PrettyJSON(newDocument(view))+"\n")
	return err
}

// SetOptions updates the formatter options
func (f *JSONFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *JSONFormatter) GetOptions() Options {
	return f.options
}
