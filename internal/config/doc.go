// Package config loads the embedkeeper configuration.
//
// Configuration is a single YAML file. The default location is
// ~/.config/embedkeeper/config.yaml; commands accept --config to point
// elsewhere. Values are applied on top of GetDefaultConfig, so a missing
// file or a missing section falls back to defaults.
//
// # Sections
//
//   - endpoint: the credential-issuing endpoint the manager fetches from
//   - embed: embed URL construction and default view options
//   - reports: the ordered report descriptors
//   - server: the issuing backend run by `embedkeeper serve`
//   - logging: level and format
//   - watch: reload on file change
//
// # Example
//
//	endpoint:
//	  url: http://localhost:5000/api/embedded-tokens
//	  settingsUrl: http://localhost:5000/api/user/settings
//	embed:
//	  workspaceId: 3f1c...
//	reports:
//	  - id: 6a0b...
//	    datasetId: 91dd...
//	    name: Sales
//	    options:
//	      navContentPaneEnabled: true
//	  - id: 0c42...
//	    datasetId: 55e1...
//	    name: Recruitment
//	    enabledBy: isRecruitmentReportEnabled
//	server:
//	  tenantId: ${AZURE_TENANT_ID}
//	  clientId: ${AZURE_CLIENT_ID}
//	  clientSecret: ${AZURE_CLIENT_SECRET}
//	  workspaceId: 3f1c...
//	  allowedOrigins: [http://localhost:3000]
//
// # Environment expansion
//
// ${NAME} anywhere in the file is replaced with the environment variable
// NAME before parsing. Bare $NAME is not expanded.
//
// # Validation
//
// Validate collects every problem into a ConfigurationErrorCollection rather
// than stopping at the first; GetDetailedReport renders them with
// suggestions.
package config
