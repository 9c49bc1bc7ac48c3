package issuer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"embedkeeper/internal/config"
)

// newAAD serves a client-credentials token endpoint for tenant "tenant-1".
func newAAD(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/tenant-1/oauth2/v2.0/token" {
			http.NotFound(w, r)
			return
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret-1", r.PostForm.Get("client_secret"))
		assert.Equal(t, config.DefaultPowerBIScope, r.PostForm.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"aad-token","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func serverConfig(aadURL, apiURL string) config.ServerConfig {
	cfg := config.GetDefaultConfig().Server
	cfg.Authority = aadURL
	cfg.TenantID = "tenant-1"
	cfg.ClientID = "client-1"
	cfg.ClientSecret = "secret-1"
	cfg.PowerBIAPIURL = apiURL
	cfg.WorkspaceID = "ws-1"
	return cfg
}

func TestTokenURL(t *testing.T) {
	assert.Equal(t, "https://login.microsoftonline.com/t/oauth2/v2.0/token",
		TokenURL("https://login.microsoftonline.com/", "t"))
}

func TestPowerBIClient_GenerateToken(t *testing.T) {
	var aadRequests atomic.Int32
	aad := newAAD(t, &aadRequests)

	var gotBody generateTokenRequest
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1.0/myorg/GenerateToken", r.URL.Path)
		assert.Equal(t, "Bearer aad-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"token":"H4sI-embed","tokenId":"tok-1","expiration":"2026-03-01T12:00:00Z"}`)
	}))
	t.Cleanup(api.Close)

	cfg := serverConfig(aad.URL, api.URL+"/v1.0/myorg/")
	cfg.Identity = &config.IdentityConfig{Username: "13026", Roles: []string{"Admin"}}

	ctx := context.Background()
	client := NewPowerBIClient(cfg, oauth2.NewClient(ctx, NewTokenSource(ctx, cfg)))

	for range 2 {
		token, err := client.GenerateToken(ctx, "r1", "d1")
		require.NoError(t, err)
		assert.Equal(t, "H4sI-embed", token.Token)
		assert.Equal(t, "tok-1", token.TokenID)
		assert.Equal(t, expiry, token.Expiration.UTC())
	}
	assert.Equal(t, int32(1), aadRequests.Load(), "AAD token is cached until expiry")

	want := generateTokenRequest{
		Datasets:         []datasetRef{{ID: "d1", XMLAPermissions: "ReadOnly"}},
		Reports:          []idRef{{ID: "r1"}},
		TargetWorkspaces: []idRef{{ID: "ws-1"}},
		Identities: []effectiveIdentity{{
			Username: "13026",
			Roles:    []string{"Admin"},
			Datasets: []string{"d1"},
		}},
	}
	if diff := cmp.Diff(want, gotBody); diff != "" {
		t.Errorf("GenerateToken body mismatch (-want +got):\n%s", diff)
	}
}

func TestPowerBIClient_OmitsOptionalSections(t *testing.T) {
	var raw map[string]json.RawMessage
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = io.WriteString(w, `{"token":"t","expiration":"2026-03-01T12:00:00Z"}`)
	}))
	t.Cleanup(api.Close)

	cfg := serverConfig("", api.URL)
	cfg.WorkspaceID = ""
	_, err := NewPowerBIClient(cfg, api.Client()).GenerateToken(context.Background(), "r1", "d1")
	require.NoError(t, err)

	assert.Contains(t, raw, "datasets")
	assert.Contains(t, raw, "reports")
	assert.NotContains(t, raw, "identities")
	assert.NotContains(t, raw, "targetWorkspaces")
}

func TestPowerBIClient_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    string
		wantStatus int
	}{
		{name: "upstream status", status: http.StatusForbidden, body: `{"error":{"code":"PowerBINotAuthorizedException"}}`, wantStatus: http.StatusForbidden},
		{name: "bad json", status: http.StatusOK, body: `<html>`, wantErr: "failed to decode GenerateToken response"},
		{name: "no token", status: http.StatusOK, body: `{"tokenId":"x"}`, wantErr: "carries no token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			t.Cleanup(api.Close)

			_, err := NewPowerBIClient(serverConfig("", api.URL), api.Client()).
				GenerateToken(context.Background(), "r1", "d1")
			require.Error(t, err)

			if tt.wantStatus != 0 {
				var upstream *UpstreamError
				require.ErrorAs(t, err, &upstream)
				assert.Equal(t, tt.wantStatus, upstream.StatusCode)
				assert.Contains(t, upstream.Body, "PowerBINotAuthorizedException")
				return
			}
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPowerBIClient_AADFailure(t *testing.T) {
	aad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_client"}`)
	}))
	t.Cleanup(aad.Close)

	var apiCalls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
	}))
	t.Cleanup(api.Close)

	cfg := serverConfig(aad.URL, api.URL)
	ctx := context.Background()
	_, err := NewPowerBIClient(cfg, oauth2.NewClient(ctx, NewTokenSource(ctx, cfg))).GenerateToken(ctx, "r1", "d1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_client")
	assert.Zero(t, apiCalls.Load())
}
