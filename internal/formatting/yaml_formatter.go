package formatting

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{
		options: options,
	}
}

// FormatSessions writes the view as a YAML document.
func (f *YAMLFormatter) FormatSessions(w io.Writer, view SessionView) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(view)); err != nil {
		return err
	}
	return enc.Close()
}

// SetOptions updates the formatter options
func (f *YAMLFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *YAMLFormatter) GetOptions() Options {
	return f.options
}
