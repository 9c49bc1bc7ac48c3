package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"embedkeeper/internal/embed"
	"embedkeeper/pkg/logging"
)

const (
	// DefaultHTTPTimeout bounds a single credential request.
	DefaultHTTPTimeout = 30 * time.Second

	// maxBodySize caps how much of a response body is read.
	maxBodySize = 1 << 20

	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"
)

// Fetcher acquires a credential for one report. Implementations perform a
// single attempt; retry policy belongs to the caller.
type Fetcher interface {
	Fetch(ctx context.Context, desc embed.ReportDescriptor) (embed.Credential, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, desc embed.ReportDescriptor) (embed.Credential, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, desc embed.ReportDescriptor) (embed.Credential, error) {
	return f(ctx, desc)
}

// HTTPFetcher requests credentials from the token endpoint with
// GET {endpoint}?reportId=...&datasetId=...
type HTTPFetcher struct {
	endpoint   string
	httpClient *http.Client
	headers    map[string]string
	now        func() time.Time
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.httpClient = httpClient
	}
}

// WithHeader adds a static header to every request (for example an API key).
func WithHeader(key, value string) Option {
	return func(f *HTTPFetcher) {
		f.headers[key] = value
	}
}

// WithNow overrides the time source used to resolve relative lifetimes.
func WithNow(now func() time.Time) Option {
	return func(f *HTTPFetcher) {
		f.now = now
	}
}

// NewHTTPFetcher creates a fetcher for the given endpoint URL.
func NewHTTPFetcher(endpoint string, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		headers:    make(map[string]string),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch performs exactly one request for the descriptor's credential.
func (f *HTTPFetcher) Fetch(ctx context.Context, desc embed.ReportDescriptor) (embed.Credential, error) {
	if desc.ID == "" {
		return embed.Credential{}, &FetchError{Reason: "empty report identifier"}
	}

	reqURL, err := f.requestURL(desc)
	if err != nil {
		return embed.Credential{}, &FetchError{ReportID: desc.ID, Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return embed.Credential{}, &FetchError{ReportID: desc.ID, Reason: fmt.Sprintf("invalid request: %v", err)}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	logging.Debug("Fetcher", "Requesting credential for report=%s dataset=%s request_id=%s", desc.ID, desc.DatasetID, requestID)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return embed.Credential{}, &TransportError{ReportID: desc.ID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return embed.Credential{}, &TransportError{ReportID: desc.ID, Err: fmt.Errorf("reading response body: %w", err)}
	}
	receivedAt := f.now()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return embed.Credential{}, &FetchError{
			ReportID:   desc.ID,
			Reason:     errorReason(body, resp.Status),
			HTTPStatus: resp.StatusCode,
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return embed.Credential{}, &FetchError{
			ReportID:   desc.ID,
			Reason:     fmt.Sprintf("malformed response body: %v", err),
			HTTPStatus: resp.StatusCode,
		}
	}
	if tr.AccessToken == "" {
		return embed.Credential{}, &FetchError{
			ReportID:   desc.ID,
			Reason:     "malformed response body: missing accessToken",
			HTTPStatus: resp.StatusCode,
		}
	}

	expiresAt, err := tr.expiration(receivedAt)
	if err != nil {
		return embed.Credential{}, &FetchError{
			ReportID:   desc.ID,
			Reason:     fmt.Sprintf("malformed response body: %v", err),
			HTTPStatus: resp.StatusCode,
		}
	}

	logging.Debug("Fetcher", "Received credential for report=%s token=%s expires=%s request_id=%s",
		desc.ID, logging.RedactToken(tr.AccessToken), expiresAt.Format(time.RFC3339), requestID)

	return embed.Credential{
		Token:     tr.AccessToken,
		ExpiresAt: expiresAt,
		TokenID:   tr.TokenID,
	}, nil
}

func (f *HTTPFetcher) requestURL(desc embed.ReportDescriptor) (string, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", f.endpoint, err)
	}
	q := u.Query()
	q.Set("reportId", desc.ID)
	if desc.DatasetID != "" {
		q.Set("datasetId", desc.DatasetID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// errorReason extracts a human readable reason from an error body, falling
// back to the status line.
func errorReason(body []byte, status string) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
		return text
	}
	return status
}
