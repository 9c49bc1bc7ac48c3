package mock

import (
	"context"
	"fmt"
	"sync"

	"embedkeeper/internal/embed"
)

// FetchResult is one scripted outcome of a credential fetch.
type FetchResult struct {
	Credential embed.Credential
	Err        error
}

// Fetcher is a scripted credential.Fetcher. Each report id has a queue of
// results consumed in order; once a queue is exhausted the last result is
// repeated. Reports without a script fail.
type Fetcher struct {
	mu      sync.Mutex
	scripts map[string][]FetchResult
	calls   []string
	gates   map[string]chan struct{}
}

// NewFetcher creates an empty scripted fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{
		scripts: make(map[string][]FetchResult),
		gates:   make(map[string]chan struct{}),
	}
}

// Script appends results for id.
func (f *Fetcher) Script(id string, results ...FetchResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[id] = append(f.scripts[id], results...)
}

// Succeed appends a successful result for id.
func (f *Fetcher) Succeed(id string, cred embed.Credential) {
	f.Script(id, FetchResult{Credential: cred})
}

// Fail appends a failing result for id.
func (f *Fetcher) Fail(id string, err error) {
	f.Script(id, FetchResult{Err: err})
}

// Gate makes fetches for id block until the returned function is called or
// the fetch context ends.
func (f *Fetcher) Gate(id string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Fetch implements credential.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, desc embed.ReportDescriptor) (embed.Credential, error) {
	f.mu.Lock()
	f.calls = append(f.calls, desc.ID)
	gate := f.gates[desc.ID]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return embed.Credential{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	script := f.scripts[desc.ID]
	if len(script) == 0 {
		return embed.Credential{}, fmt.Errorf("no scripted result for report %q", desc.ID)
	}
	result := script[0]
	if len(script) > 1 {
		f.scripts[desc.ID] = script[1:]
	}
	return result.Credential, result.Err
}

// Calls returns the report ids fetched so far, in call order.
func (f *Fetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many fetches were made for id.
func (f *Fetcher) CallCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == id {
			n++
		}
	}
	return n
}
