package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Settings is the flat flag map served by the backend's user settings
// endpoint, e.g. {"isRecruitmentReportEnabled": true}.
type Settings map[string]bool

// SettingsClient reads user settings from the backend.
type SettingsClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewSettingsClient creates a client for the given settings URL. A nil
// httpClient gets the default timeout.
func NewSettingsClient(endpoint string, httpClient *http.Client) *SettingsClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &SettingsClient{endpoint: endpoint, httpClient: httpClient}
}

// Fetch retrieves the settings. Errors use the same taxonomy as credential
// fetches, with an empty ReportID.
func (c *SettingsClient) Fetch(ctx context.Context) (Settings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, &FetchError{Reason: fmt.Sprintf("invalid request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Reason: errorReason(body, resp.Status), HTTPStatus: resp.StatusCode}
	}

	settings := Settings{}
	if err := json.Unmarshal(body, &settings); err != nil {
		return nil, &FetchError{Reason: fmt.Sprintf("malformed settings body: %v", err), HTTPStatus: resp.StatusCode}
	}
	return settings, nil
}
