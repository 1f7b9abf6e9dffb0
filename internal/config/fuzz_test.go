package config

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func FuzzConfigYAML(f *testing.F) {
	// Seed with the shipped template
	f.Add([]byte(DefaultConfigYAML()))

	// Seed with minimal valid YAML
	f.Add([]byte("ledger:\n  backend: sqlite\n"))

	// Seed with empty
	f.Add([]byte{})

	// Seed with garbage
	f.Add([]byte(`{{{not yaml at all`))

	f.Fuzz(func(t *testing.T, data []byte) {
		// Must not panic on any input
		var cfg Config
		yaml.Unmarshal(data, &cfg)
	})
}
