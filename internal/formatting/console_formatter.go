package formatting

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ConsoleFormatter provides simple console output formatting
type ConsoleFormatter struct {
	options Options
}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter(options Options) Formatter {
	return &ConsoleFormatter{
		options: options,
	}
}

// FormatSessions writes one line per session.
func (f *ConsoleFormatter) FormatSessions(w io.Writer, view SessionView) error {
	if len(view.Sessions) == 0 {
		_, err := io.WriteString(w, "No active sessions.\n")
		return err
	}

	var output []string
	if !f.options.Quiet {
		output = append(output, fmt.Sprintf("Active sessions (%d):", len(view.Sessions)))
	}
	for i, r := range records(view) {
		next := "no refresh scheduled"
		if r.NextRefresh != nil {
			next = "refresh at " + r.NextRefresh.Format(time.RFC3339)
		}
		output = append(output, fmt.Sprintf("  %d. %-30s %s  token %s  expires in %s  %s",
			i+1, r.Name, r.ID, r.Token, r.ExpiresIn, next))
	}
	if orphans := orphanedRefreshes(view); len(orphans) > 0 && !f.options.Quiet {
		output = append(output, fmt.Sprintf("Pending refreshes without a session: %s", strings.Join(orphans, ", ")))
	}

	_, err := io.WriteString(w, strings.Join(output, "\n")+"\n")
	return err
}

// SetOptions updates the formatter options
func (f *ConsoleFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *ConsoleFormatter) GetOptions() Options {
	return f.options
}
