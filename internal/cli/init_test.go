package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	configPath = path
	initForce = false
	t.Cleanup(func() { configPath = ""; initForce = false })

	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "ledger:") {
		t.Fatalf("config missing ledger section:\n%s", data)
	}

	// Second run refuses without --force.
	if err := runInit(initCmd, nil); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}
	initForce = true
	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("forced init: %v", err)
	}
}
