package formatting

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"embedkeeper/pkg/strings"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{
		options: options,
	}
}

// FormatSessions renders one row per session in snapshot order.
func (f *TableFormatter) FormatSessions(w io.Writer, view SessionView) error {
	if len(view.Sessions) == 0 {
		_, err := io.WriteString(w, f.formatEmptyMessage("📋", "No active sessions"))
		return err
	}

	t := f.createTable()
	t.AppendHeader(table.Row{
		f.paint(text.FgHiCyan, "NAME"),
		f.paint(text.FgHiCyan, "REPORT"),
		f.paint(text.FgHiCyan, "TOKEN"),
		f.paint(text.FgHiCyan, "EXPIRES IN"),
		f.paint(text.FgHiCyan, "NEXT REFRESH"),
		f.paint(text.FgHiCyan, "STATUS"),
	})

	for _, r := range records(view) {
		next := "-"
		if r.NextRefresh != nil {
			next = r.NextRefresh.Format(time.TimeOnly)
		}
		t.AppendRow(table.Row{
			strings.Truncate(r.Name, strings.DefaultNameMaxLen),
			r.ID,
			r.Token,
			r.ExpiresIn,
			next,
			f.paint(statusColor(r.Status), string(r.Status)),
		})
	}

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}

	if !f.options.Quiet {
		_, err := fmt.Fprintf(w, "%s %s %s\n",
			f.paint(text.FgHiBlue, "Total:"),
			f.paint(text.FgHiWhite, fmt.Sprint(len(view.Sessions))),
			f.paint(text.FgHiBlue, "sessions"))
		return err
	}
	return nil
}

// SetOptions updates the formatter options
func (f *TableFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *TableFormatter) GetOptions() Options {
	return f.options
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	if f.options.Quiet {
		t.SetStyle(table.StyleLight)
	} else {
		t.SetStyle(table.StyleRounded)
	}
	return t
}

// formatEmptyMessage formats empty result messages
func (f *TableFormatter) formatEmptyMessage(icon, message string) string {
	if f.options.Quiet {
		return message + "\n"
	}
	return fmt.Sprintf("%s %s\n", f.paint(text.FgYellow, icon), f.paint(text.FgYellow, message))
}

func (f *TableFormatter) paint(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

func statusColor(s Status) text.Color {
	switch s {
	case StatusOK:
		return text.FgGreen
	case StatusExpiring, StatusUnscheduled:
		return text.FgYellow
	default:
		return text.FgRed
	}
}
