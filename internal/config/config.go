// Package config loads the service configuration for the governance core.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Paths locates the governed artifacts on disk.
type Paths struct {
	Manifest       string `yaml:"manifest"`
	LayerRegistry  string `yaml:"layer_registry"`
	EntityRegistry string `yaml:"entity_registry"`
	Ledger         string `yaml:"ledger"`
	Overrides      string `yaml:"overrides"`
}

// Ledger selects the persistence backend and startup strictness.
type Ledger struct {
	// Backend is "file" (JSONL) or "sqlite".
	Backend string `yaml:"backend"`
	// Strict makes a failed chain verification fatal at startup; otherwise
	// the failure is reported and the service continues.
	Strict bool `yaml:"strict"`
}

// Admin configures the administrative HTTP surface.
type Admin struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"api_key"`
}

// Hierarchy configures the no-downgrade verifier.
type Hierarchy struct {
	// Allowlist pins which app→profile assignments are permitted, keyed by
	// owning business id. Empty means no allowlist restriction.
	Allowlist map[string][]string `yaml:"allowlist"`
}

// Config holds all configurable service parameters.
type Config struct {
	Paths     Paths     `yaml:"paths"`
	Ledger    Ledger    `yaml:"ledger"`
	Admin     Admin     `yaml:"admin"`
	Hierarchy Hierarchy `yaml:"hierarchy"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Paths: Paths{
			Manifest:       "governance/manifest.json",
			LayerRegistry:  "governance/layers.json",
			EntityRegistry: "governance/registry.json",
			Ledger:         "governance/ledger.jsonl",
			Overrides:      "governance/overrides.json",
		},
		Ledger: Ledger{
			Backend: "file",
			Strict:  true,
		},
		Admin: Admin{
			Addr: "127.0.0.1:8787",
		},
	}
}

// defaultPath resolves the conventional config location.
func defaultPath() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(home, ".govcore", "config.yaml"), true
}

// LoadConfig loads configuration from a YAML file. Empty path falls back
// to ~/.govcore/config.yaml. Missing file returns defaults. Invalid YAML
// returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads configuration and returns the SHA-256 of the
// raw YAML bytes, for attestation in startup logs. When defaults are used
// the hash is the SHA-256 of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		p, ok := defaultPath()
		if !ok {
			return DefaultConfig(), emptyHash(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), emptyHash(), nil
		}
		return nil, "", fmt.Errorf("config: read %s: %w", path, err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, "", err
	}

	return cfg, hash, nil
}

func emptyHash() string {
	h := sha256.Sum256(nil)
	return "sha256:" + hex.EncodeToString(h[:])
}

func (c *Config) validate() error {
	switch c.Ledger.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("config: unknown ledger backend %q (want file or sqlite)", c.Ledger.Backend)
	}
	return nil
}

// DefaultConfigYAML returns a commented YAML string for govcore init.
func DefaultConfigYAML() string {
	return `# govcore service configuration
# Generated by: govcore init

# Governed artifact locations, relative to the working directory unless
# absolute.
paths:
  manifest: governance/manifest.json
  layer_registry: governance/layers.json
  entity_registry: governance/registry.json
  ledger: governance/ledger.jsonl
  overrides: governance/overrides.json

# Audit ledger settings.
#   backend: file | sqlite
#   strict: true makes a failed chain verification fatal at startup
ledger:
  backend: file
  strict: true

# Administrative HTTP surface. Requests must present the API key in the
# X-Admin-Key header. Leave api_key empty to refuse all admin requests.
admin:
  addr: 127.0.0.1:8787
  api_key: ""

# Optional app→profile allowlist, keyed by owning business id. An app
# referencing a profile outside its business's list fails verification
# even when no field downgrades.
hierarchy:
  allowlist: {}
`
}
