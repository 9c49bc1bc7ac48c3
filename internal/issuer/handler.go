package issuer

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"embedkeeper/pkg/logging"
)

const (
	// generateTimeout bounds one coalesced upstream call, independent of
	// the contexts of the callers sharing it.
	generateTimeout = 30 * time.Second

	requestIDHeader = "X-Request-ID"
)

// tokenResponse is the body of a successful /api/embedded-tokens call.
type tokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenID     string    `json:"tokenId,omitempty"`
	Expiration  time.Time `json:"expiration"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the credential-issuing HTTP API.
type Handler struct {
	generator TokenGenerator
	settings  map[string]bool
	origins   []string
	group     singleflight.Group
	mux       *http.ServeMux
}

// NewHandler builds the API. allowedOrigins may contain "*" to reflect any
// origin.
func NewHandler(generator TokenGenerator, settings map[string]bool, allowedOrigins []string) *Handler {
	if settings == nil {
		settings = map[string]bool{}
	}
	h := &Handler{
		generator: generator,
		settings:  settings,
		origins:   allowedOrigins,
		mux:       http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /api/embedded-tokens", h.handleEmbeddedTokens)
	h.mux.HandleFunc("GET /api/user/settings", h.handleSettings)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return h
}

// ServeHTTP applies CORS and request-id handling, then routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, requestID)

	if origin := r.Header.Get("Origin"); origin != "" && h.originAllowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)
	logging.Debug("Issuer", "%s %s -> %d in %s (request %s)",
		r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond), requestID)
}

func (h *Handler) originAllowed(origin string) bool {
	return slices.Contains(h.origins, "*") || slices.ContainsFunc(h.origins, func(o string) bool {
		return strings.EqualFold(strings.TrimSuffix(o, "/"), origin)
	})
}

func (h *Handler) handleEmbeddedTokens(w http.ResponseWriter, r *http.Request) {
	reportID := r.URL.Query().Get("reportId")
	datasetID := r.URL.Query().Get("datasetId")
	if reportID == "" || datasetID == "" {
		logging.Warn("Issuer", "Rejected token request without reportId or datasetId")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Both reportId and datasetId are required"})
		return
	}

	v, err, shared := h.group.Do(reportID+"/"+datasetID, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), generateTimeout)
		defer cancel()
		return h.generator.GenerateToken(ctx, reportID, datasetID)
	})
	if err != nil {
		logging.Error("Issuer", err, "Failed to generate embed token for report %s", reportID)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Failed to generate embed token"})
		return
	}
	if shared {
		logging.Debug("Issuer", "Coalesced token request for report %s", reportID)
	}

	token := v.(EmbedToken)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token.Token,
		TokenID:     token.TokenID,
		Expiration:  token.Expiration,
	})
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Issuer", "Failed to write response: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
