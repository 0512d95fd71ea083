package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// ConfigPathEnv names the environment variable holding the configuration path.
const ConfigPathEnv = "AVAROUTE_CONFIG"

// LoadConfig loads a configuration file, substitutes environment
// variables and applies defaults.
func LoadConfig(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", absPath, err)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", absPath, err)
	}
	return cfg, nil
}

// LoadConfigFromReader loads a configuration from r.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	expanded := substituteEnvVars(string(data))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewBufferString(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default}. "$${" escapes
// a literal "${".
func substituteEnvVars(s string) string {
	const marker = "\x00ESCAPED_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$${", marker)

	s = envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value, ok := os.LookupEnv(parts[1]); ok {
			return value
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})

	return strings.ReplaceAll(s, marker, "${")
}

// ResolveConfigPath picks the configuration path: the explicit path, then
// AVAROUTE_CONFIG, then the first existing well-known location.
func ResolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(ConfigPathEnv); env != "" {
		return env
	}

	for _, candidate := range []string{
		"avaroute.yaml",
		"avaroute.yml",
		"config/avaroute.yaml",
		"/etc/avaroute/avaroute.yaml",
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "avaroute.yaml"
}
