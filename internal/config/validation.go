package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Mode selects which sections Validate requires.
type Mode int

const (
	// ModeRun validates what the session manager needs.
	ModeRun Mode = iota
	// ModeServe validates what the credential-issuing backend needs.
	ModeServe
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{Field: field, Value: value, Message: "is required"}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if strings.EqualFold(value, allowedValue) {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateHTTPURL checks that value is an absolute http(s) URL.
func ValidateHTTPURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ValidationError{Field: field, Value: value, Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// Validate checks config for the given mode and returns every problem found.
// The collection is empty when config is usable.
func Validate(config Config, filePath string, mode Mode) *ConfigurationErrorCollection {
	errs := NewConfigurationErrorCollection()
	add := func(section string, err error, suggestions ...string) {
		if err == nil {
			return
		}
		msg := err.Error()
		if ve, ok := err.(ValidationError); ok {
			msg = ve.Message
		}
		errs.AddError(filePath, section, msg, suggestions...)
	}

	add("logging.level", ValidateOneOf("level", config.Logging.Level, validLogLevels))
	add("logging.format", ValidateOneOf("format", config.Logging.Format, validLogFormats))
	if config.Watch.Debounce < 0 {
		errs.AddError(filePath, "watch.debounce", "must not be negative")
	}

	switch mode {
	case ModeRun:
		validateRun(config, filePath, errs, add)
	case ModeServe:
		validateServe(config, add)
	}
	return errs
}

func validateRun(config Config, filePath string, errs *ConfigurationErrorCollection, add func(string, error, ...string)) {
	add("endpoint.url", ValidateHTTPURL("url", config.Endpoint.URL),
		"Point endpoint.url at the /api/embedded-tokens route of the issuing backend")
	if config.Endpoint.SettingsURL != "" {
		add("endpoint.settingsUrl", ValidateHTTPURL("settingsUrl", config.Endpoint.SettingsURL))
	}
	if config.Endpoint.Timeout < 0 {
		errs.AddError(filePath, "endpoint.timeout", "must not be negative")
	}
	if config.Embed.BaseURL != "" {
		add("embed.baseUrl", ValidateHTTPURL("baseUrl", config.Embed.BaseURL))
	}
	if config.Embed.MaxConcurrentFetches < 0 {
		errs.AddError(filePath, "embed.maxConcurrentFetches", "must not be negative")
	}

	seen := make(map[string]int, len(config.Reports))
	for i, r := range config.Reports {
		section := fmt.Sprintf("reports[%d]", i)
		add(section+".id", ValidateRequired("id", r.ID))
		if r.ID != "" {
			if first, dup := seen[r.ID]; dup {
				errs.AddError(filePath, section+".id",
					fmt.Sprintf("duplicate report id %q (first used by reports[%d])", r.ID, first))
			} else {
				seen[r.ID] = i
			}
		}
		if r.EmbedURL != "" {
			add(section+".embedUrl", ValidateHTTPURL("embedUrl", r.EmbedURL))
		}
		if r.EnabledBy != "" && config.Endpoint.SettingsURL == "" {
			errs.AddError(filePath, section+".enabledBy",
				"requires endpoint.settingsUrl",
				"Set endpoint.settingsUrl to the /api/user/settings route or remove enabledBy")
		}
	}
}

func validateServe(config Config, add func(string, error, ...string)) {
	add("server.tenantId", ValidateRequired("tenantId", config.Server.TenantID))
	add("server.clientId", ValidateRequired("clientId", config.Server.ClientID))
	add("server.clientSecret", ValidateRequired("clientSecret", config.Server.ClientSecret),
		"Reference the secret from the environment, e.g. clientSecret: ${EMBEDKEEPER_CLIENT_SECRET}")
	add("server.workspaceId", ValidateRequired("workspaceId", config.Server.WorkspaceID))
	add("server.authority", ValidateHTTPURL("authority", config.Server.Authority))
	add("server.powerBiApiUrl", ValidateHTTPURL("powerBiApiUrl", config.Server.PowerBIAPIURL))
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		add("server.port", ValidationError{Field: "port", Message: "must be between 0 and 65535"})
	}
	if id := config.Server.Identity; id != nil {
		add("server.identity.username", ValidateRequired("username", id.Username))
	}
}
