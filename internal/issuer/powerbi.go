package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"embedkeeper/internal/config"
	"embedkeeper/pkg/logging"
)

const maxUpstreamBody = 1 << 20

// EmbedToken is the GenerateToken result.
type EmbedToken struct {
	Token      string    `json:"token"`
	TokenID    string    `json:"tokenId"`
	Expiration time.Time `json:"expiration"`
}

// TokenGenerator issues embed tokens for a (report, dataset) pair.
type TokenGenerator interface {
	GenerateToken(ctx context.Context, reportID, datasetID string) (EmbedToken, error)
}

// UpstreamError is a non-2xx answer from the Power BI API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("power bi GenerateToken returned %d: %s", e.StatusCode, e.Body)
}

type datasetRef struct {
	ID              string `json:"id"`
	XMLAPermissions string `json:"xmlaPermissions"`
}

type idRef struct {
	ID string `json:"id"`
}

type effectiveIdentity struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
	Datasets []string `json:"datasets"`
}

type generateTokenRequest struct {
	Datasets         []datasetRef        `json:"datasets"`
	Reports          []idRef             `json:"reports"`
	TargetWorkspaces []idRef             `json:"targetWorkspaces,omitempty"`
	Identities       []effectiveIdentity `json:"identities,omitempty"`
}

// PowerBIClient calls the multi-resource GenerateToken endpoint.
type PowerBIClient struct {
	apiURL      string
	workspaceID string
	identity    *config.IdentityConfig
	httpClient  *http.Client
}

// NewPowerBIClient creates a client. httpClient must attach the AAD bearer
// token, e.g. one built with oauth2.NewClient.
func NewPowerBIClient(cfg config.ServerConfig, httpClient *http.Client) *PowerBIClient {
	return &PowerBIClient{
		apiURL:      strings.TrimSuffix(cfg.PowerBIAPIURL, "/"),
		workspaceID: cfg.WorkspaceID,
		identity:    cfg.Identity,
		httpClient:  httpClient,
	}
}

// GenerateToken requests a read-only embed token for one report.
func (c *PowerBIClient) GenerateToken(ctx context.Context, reportID, datasetID string) (EmbedToken, error) {
	body := generateTokenRequest{
		Datasets: []datasetRef{{ID: datasetID, XMLAPermissions: "ReadOnly"}},
		Reports:  []idRef{{ID: reportID}},
	}
	if c.workspaceID != "" {
		body.TargetWorkspaces = []idRef{{ID: c.workspaceID}}
	}
	if c.identity != nil {
		body.Identities = []effectiveIdentity{{
			Username: c.identity.Username,
			Roles:    c.identity.Roles,
			Datasets: []string{datasetID},
		}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return EmbedToken{}, fmt.Errorf("failed to encode GenerateToken request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/GenerateToken", bytes.NewReader(payload))
	if err != nil {
		return EmbedToken{}, fmt.Errorf("failed to build GenerateToken request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return EmbedToken{}, fmt.Errorf("GenerateToken request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return EmbedToken{}, fmt.Errorf("failed to read GenerateToken response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return EmbedToken{}, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var token EmbedToken
	if err := json.Unmarshal(data, &token); err != nil {
		return EmbedToken{}, fmt.Errorf("failed to decode GenerateToken response: %w", err)
	}
	if token.Token == "" {
		return EmbedToken{}, fmt.Errorf("GenerateToken response carries no token")
	}

	logging.Debug("Issuer", "Generated embed token %s for report %s, expires %s",
		token.TokenID, reportID, token.Expiration.Format(time.RFC3339))
	return token, nil
}
