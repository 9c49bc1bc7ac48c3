package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"embedkeeper/internal/clock"
	"embedkeeper/internal/credential"
	"embedkeeper/internal/embed"
	"embedkeeper/internal/scheduler"
	"embedkeeper/internal/session"
	"embedkeeper/pkg/logging"
)

// ErrDuplicateReport rejects a descriptor whose identifier already appeared
// earlier in the same set.
var ErrDuplicateReport = errors.New("duplicate report identifier")

// Options configures a Controller.
type Options struct {
	Fetcher  credential.Fetcher
	Reporter Reporter
	Clock    clock.Clock

	// EmbedBaseURL builds embed targets for descriptors without an explicit EmbedURL.
	EmbedBaseURL string
	// WorkspaceID is appended as groupId when set.
	WorkspaceID string

	// MaxConcurrentFetches limits parallel fetches during Initialize; 0 means unlimited.
	MaxConcurrentFetches int
}

// Failure is one descriptor that could not be populated.
type Failure struct {
	ID  string
	Err error
}

// Result summarizes an Initialize call.
type Result struct {
	Loaded []string
	Failed []Failure
}

// Controller owns population and teardown of a session set.
type Controller struct {
	// mu serializes Initialize, Dispose and Reload.
	mu sync.Mutex

	fetcher   credential.Fetcher
	reporter  Reporter
	store     *session.Store
	scheduler *scheduler.Scheduler

	embedBaseURL string
	workspaceID  string
	limit        int
}

// New creates a controller with its own session store and scheduler.
func New(opts Options) *Controller {
	if opts.Reporter == nil {
		opts.Reporter = LogReporter{}
	}

	store := session.NewStore()
	return &Controller{
		fetcher:  opts.Fetcher,
		reporter: opts.Reporter,
		store:    store,
		scheduler: scheduler.New(scheduler.Config{
			Clock:    opts.Clock,
			Fetcher:  opts.Fetcher,
			Store:    store,
			Reporter: opts.Reporter,
		}),
		embedBaseURL: opts.EmbedBaseURL,
		workspaceID:  opts.WorkspaceID,
		limit:        opts.MaxConcurrentFetches,
	}
}

type outcome struct {
	cred embed.Credential
	err  error
}

// Initialize fetches credentials for all descriptors in parallel, populates
// the store with the successes in descriptor order and schedules their
// refreshes. One failing descriptor never blocks the others; each failure
// goes to the reporter and is returned in Result.Failed.
func (c *Controller) Initialize(ctx context.Context, descriptors []embed.ReportDescriptor) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializeLocked(ctx, descriptors)
}

func (c *Controller) initializeLocked(ctx context.Context, descriptors []embed.ReportDescriptor) Result {
	// No stale timer may survive into the new population.
	c.scheduler.CancelAll()

	logging.Info("Lifecycle", "Fetching credentials for %d reports", len(descriptors))

	outcomes := make([]outcome, len(descriptors))
	seen := make(map[string]bool, len(descriptors))

	var g errgroup.Group
	if c.limit > 0 {
		g.SetLimit(c.limit)
	}
	for i, desc := range descriptors {
		if desc.ID != "" && seen[desc.ID] {
			outcomes[i].err = fmt.Errorf("%w: %s", ErrDuplicateReport, desc.ID)
			continue
		}
		seen[desc.ID] = true

		g.Go(func() error {
			cred, err := c.fetcher.Fetch(ctx, desc)
			outcomes[i] = outcome{cred: cred, err: err}
			// Failures stay per item; returning nil keeps the batch going.
			return nil
		})
	}
	_ = g.Wait()

	var result Result
	entries := make([]session.Entry, 0, len(descriptors))
	for i, desc := range descriptors {
		o := outcomes[i]
		if o.err != nil {
			result.Failed = append(result.Failed, Failure{ID: desc.ID, Err: o.err})
			c.reporter.Report(desc.ID, o.err)
			continue
		}
		entries = append(entries, session.Entry{
			Descriptor: desc,
			Credential: o.cred,
			EmbedURL:   ResolveEmbedURL(c.embedBaseURL, c.workspaceID, desc),
		})
		result.Loaded = append(result.Loaded, desc.ID)
	}

	c.store.Populate(entries)
	for _, e := range entries {
		c.scheduler.Schedule(e.Descriptor.ID, e.Credential.ExpiresAt)
	}

	logging.Info("Lifecycle", "Populated %d of %d reports (%d failed)", len(result.Loaded), len(descriptors), len(result.Failed))
	return result
}

// Dispose cancels every pending refresh and empties the store. Safe to call
// repeatedly and on an empty controller.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposeLocked()
}

func (c *Controller) disposeLocked() {
	c.scheduler.CancelAll()
	c.store.Clear()
	logging.Debug("Lifecycle", "Disposed session set")
}

// Reload replaces the session set: Dispose followed by Initialize.
func (c *Controller) Reload(ctx context.Context, descriptors []embed.ReportDescriptor) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposeLocked()
	return c.initializeLocked(ctx, descriptors)
}

// SetEmbedTarget changes how embed targets are built for the next
// Initialize or Reload. Existing sessions keep their URLs.
func (c *Controller) SetEmbedTarget(base, workspaceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embedBaseURL = base
	c.workspaceID = workspaceID
}

// Close disposes the session set and stops the scheduler for good.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposeLocked()
	c.scheduler.Close()
}

// Snapshot returns the current sessions in descriptor order.
func (c *Controller) Snapshot() []embed.EmbedSession {
	return c.store.Snapshot()
}

// Subscribe registers for store change events.
func (c *Controller) Subscribe() (<-chan session.Event, func()) {
	return c.store.Subscribe()
}

// Pending returns the armed refreshes.
func (c *Controller) Pending() []embed.PendingRefresh {
	return c.scheduler.Pending()
}

// Metrics returns the refresh counters.
func (c *Controller) Metrics() *scheduler.Metrics {
	return c.scheduler.Metrics()
}

// ResolveEmbedURL returns the descriptor's explicit embed URL or builds one
// from base, the report id and the optional workspace.
func ResolveEmbedURL(base, workspaceID string, desc embed.ReportDescriptor) string {
	if desc.EmbedURL != "" {
		return desc.EmbedURL
	}
	if base == "" {
		return ""
	}

	u, err := url.Parse(base)
	if err != nil {
		logging.Warn("Lifecycle", "Invalid embed base URL %q: %v", base, err)
		return ""
	}
	q := u.Query()
	q.Set("reportId", desc.ID)
	if workspaceID != "" {
		q.Set("groupId", workspaceID)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
