// Package formatting renders the session snapshot for humans and scripts.
//
// The console, table, JSON and YAML formatters all render the same
// SessionView; tokens are always redacted.
package formatting

import (
	"io"
	"sort"
	"time"

	"embedkeeper/internal/embed"
	"embedkeeper/pkg/logging"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatConsole OutputFormat = "console" // Simple console output
	FormatJSON    OutputFormat = "json"    // JSON output
	FormatYAML    OutputFormat = "yaml"    // YAML output
	FormatTable   OutputFormat = "table"   // Rich table output
)

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Quiet  bool // Suppress decorative elements
	Color  bool // Enable colored output
}

// SessionView is one rendering of the session store.
type SessionView struct {
	Now      time.Time
	Sessions []embed.EmbedSession
	Pending  []embed.PendingRefresh
}

// Formatter renders session views.
type Formatter interface {
	FormatSessions(w io.Writer, view SessionView) error

	// Configuration
	SetOptions(options Options)
	GetOptions() Options
}

// Factory creates formatters for different output formats
type Factory interface {
	CreateFormatter(options Options) Formatter
}

// NewFactory creates a new formatter factory
func NewFactory() Factory {
	return &factory{}
}

// factory implements the Factory interface
type factory struct{}

// CreateFormatter creates the appropriate formatter based on options
func (f *factory) CreateFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	case FormatTable:
		return NewTableFormatter(options)
	case FormatConsole:
		fallthrough
	default:
		return NewConsoleFormatter(options)
	}
}

// Status classifies a session for display.
type Status string

const (
	StatusOK          Status = "ok"
	StatusExpiring    Status = "expiring"
	StatusExpired     Status = "expired"
	StatusUnscheduled Status = "unscheduled"
)

// expiringWindow marks credentials close enough to expiry to highlight.
const expiringWindow = 2 * time.Minute

// sessionRecord is the serializable, redacted form of one session.
type sessionRecord struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	EmbedURL    string     `json:"embedUrl,omitempty" yaml:"embedUrl,omitempty"`
	Token       string     `json:"token" yaml:"token"`
	TokenID     string     `json:"tokenId,omitempty" yaml:"tokenId,omitempty"`
	ExpiresAt   time.Time  `json:"expiresAt" yaml:"expiresAt"`
	ExpiresIn   string     `json:"expiresIn" yaml:"expiresIn"`
	NextRefresh *time.Time `json:"nextRefresh,omitempty" yaml:"nextRefresh,omitempty"`
	Status      Status     `json:"status" yaml:"status"`
}

// records joins sessions with their pending refreshes, preserving session
// order.
func records(view SessionView) []sessionRecord {
	pending := make(map[string]time.Time, len(view.Pending))
	for _, p := range view.Pending {
		pending[p.ID] = p.FireAt
	}

	out := make([]sessionRecord, 0, len(view.Sessions))
	for _, s := range view.Sessions {
		remaining := s.Credential.Remaining(view.Now)
		r := sessionRecord{
			ID:        s.ID,
			Name:      s.Name,
			EmbedURL:  s.EmbedURL,
			Token:     logging.RedactToken(s.Credential.Token),
			TokenID:   s.Credential.TokenID,
			ExpiresAt: s.Credential.ExpiresAt,
			ExpiresIn: FormatRemaining(remaining),
		}
		if at, ok := pending[s.ID]; ok {
			r.NextRefresh = &at
		}
		r.Status = classify(remaining, r.NextRefresh != nil)
		out = append(out, r)
	}
	return out
}

func classify(remaining time.Duration, scheduled bool) Status {
	switch {
	case remaining <= 0:
		return StatusExpired
	case !scheduled:
		return StatusUnscheduled
	case remaining <= expiringWindow:
		return StatusExpiring
	default:
		return StatusOK
	}
}

// orphanedRefreshes returns pending ids with no session, sorted.
func orphanedRefreshes(view SessionView) []string {
	known := make(map[string]bool, len(view.Sessions))
	for _, s := range view.Sessions {
		known[s.ID] = true
	}
	var out []string
	for _, p := range view.Pending {
		if !known[p.ID] {
			out = append(out, p.ID)
		}
	}
	sort.Strings(out)
	return out
}
