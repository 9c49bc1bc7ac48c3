// Package embed defines the data model shared by the credential fetcher,
// the session store and the refresh scheduler.
package embed

import (
	"maps"
	"time"
)

// Well-known view option keys. The bag is open; these are the flags the
// console renderer and the embed page understand.
const (
	OptionNavContentPane        = "navContentPaneEnabled"
	OptionFilterPane            = "filterPaneEnabled"
	OptionFilterPaneExpanded    = "filterPaneExpanded"
	OptionTransparentBackground = "transparentBackground"
)

// ViewOptions is the per-report bag of view flags.
type ViewOptions map[string]bool

// Enabled reports whether the flag is set. Missing flags are false.
func (o ViewOptions) Enabled(key string) bool {
	return o[key]
}

// Clone returns an independent copy. A nil bag stays nil.
func (o ViewOptions) Clone() ViewOptions {
	if o == nil {
		return nil
	}
	return maps.Clone(o)
}

// ReportDescriptor is the static configuration identifying one embeddable report.
type ReportDescriptor struct {
	// ID is the report identifier, unique within a descriptor set.
	ID string `yaml:"id" json:"id"`

	// DatasetID references the dataset backing the report.
	DatasetID string `yaml:"datasetId" json:"datasetId"`

	// Name is the display name (tab title).
	Name string `yaml:"name" json:"name"`

	// EmbedURL overrides the embed target derived from the configured base URL.
	EmbedURL string `yaml:"embedUrl,omitempty" json:"embedUrl,omitempty"`

	// Options holds the per-report view flags.
	Options ViewOptions `yaml:"options,omitempty" json:"options,omitempty"`
}

// Credential is an access token plus its absolute expiration instant.
type Credential struct {
	Token     string    `json:"accessToken"`
	ExpiresAt time.Time `json:"expiration"`
	TokenID   string    `json:"tokenId,omitempty"`
}

// Remaining returns the lifetime left at now. Negative once expired.
func (c Credential) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// ExpiredWithin reports whether the credential expires within margin of now.
func (c Credential) ExpiredWithin(now time.Time, margin time.Duration) bool {
	return !now.Add(margin).Before(c.ExpiresAt)
}

// EmbedSession is the unit the render collaborator consumes.
type EmbedSession struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	EmbedURL   string      `json:"embedUrl"`
	Credential Credential  `json:"credential"`
	Options    ViewOptions `json:"options,omitempty"`
}

// Clone returns a deep copy so readers cannot mutate store-owned state.
func (s EmbedSession) Clone() EmbedSession {
	s.Options = s.Options.Clone()
	return s
}

// PendingRefresh is a scheduled, not yet fired refresh for one report.
type PendingRefresh struct {
	ID     string    `json:"id"`
	FireAt time.Time `json:"fireAt"`
}
