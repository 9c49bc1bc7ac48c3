// Package issuer is the credential-issuing backend that the session manager
// fetches embed tokens from.
//
// It obtains an app-only Azure AD token through the OAuth2 client-credentials
// grant and exchanges it for a Power BI embed token via the GenerateToken
// REST call. The HTTP API is:
//
//	GET /api/embedded-tokens?reportId=...&datasetId=...
//	    200 {"accessToken": "...", "tokenId": "...", "expiration": "<RFC3339>"}
//	    400 {"error": "..."} when a parameter is missing
//	    502 {"error": "..."} when AAD or Power BI fails
//	GET /api/user/settings   the configured flag map
//	GET /healthz
//
// Concurrent requests for the same (report, dataset) pair share one
// upstream call.
package issuer
