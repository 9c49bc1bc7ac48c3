package issuer

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"embedkeeper/internal/config"
)

// TokenURL returns the Azure AD v2 token endpoint for tenantID.
func TokenURL(authority, tenantID string) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimSuffix(authority, "/"), tenantID)
}

// NewTokenSource returns an app-only token source for the Power BI REST API.
// Tokens are cached and renewed by the oauth2 package when they expire.
//
// An *http.Client stored in ctx under oauth2.HTTPClient is used for the
// token requests.
func NewTokenSource(ctx context.Context, cfg config.ServerConfig) oauth2.TokenSource {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     TokenURL(cfg.Authority, cfg.TenantID),
		Scopes:       []string{cfg.Scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return cc.TokenSource(ctx)
}
