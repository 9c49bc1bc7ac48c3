package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"embedkeeper/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/embedkeeper"
	configFileName = "config.yaml"
)

// osUserHomeDir is swapped in tests.
var osUserHomeDir = os.UserHomeDir

// envRef matches ${NAME} references. Bare $NAME is left alone so tokens and
// URLs containing '$' survive.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// DefaultConfigPath returns ~/.config/embedkeeper/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// LoadConfig reads the YAML file at path on top of the defaults. A missing
// file yields the defaults. ${NAME} references are expanded from the
// environment before parsing.
func LoadConfig(path string) (Config, error) {
	config := GetDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config file found at %s, using defaults", path)
			return config, nil
		}
		return Config{}, NewConfigurationError(path, "", "io", err.Error())
	}

	if err := yaml.Unmarshal(ExpandEnv(data), &config); err != nil {
		cfgErr := NewConfigurationErrorWithDetails(path, "", "parse",
			"invalid YAML", err.Error(),
			[]string{"Check indentation and that every list item under 'reports' starts with '-'"})
		cfgErr.LineNumber = yamlErrorLine(err)
		return Config{}, cfgErr
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return config, nil
}

// LoadAndValidate loads path and validates the result for mode. Validation
// failures are returned as a *ConfigurationErrorCollection.
func LoadAndValidate(path string, mode Mode) (Config, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return Config{}, err
	}
	if errs := Validate(config, path, mode); errs.HasErrors() {
		return Config{}, errs
	}
	return config, nil
}

// ExpandEnv replaces ${NAME} with the value of the environment variable NAME.
// Unset variables expand to the empty string.
func ExpandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := envRef.FindSubmatch(ref)[1]
		return []byte(os.Getenv(string(name)))
	})
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

func yamlErrorLine(err error) int {
	var typeErr *yaml.TypeError
	msg := err.Error()
	if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		msg = typeErr.Errors[0]
	}
	m := yamlLine.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	var n int
	fmt.Sscanf(m[1], "%d", &n)
	return n
}
