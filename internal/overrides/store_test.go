package overrides

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentfabric/govcore/internal/storage"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.json")
	backend, err := storage.OpenFile("", path)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return NewStore(backend), path
}

func TestAbsentMeansEnabled(t *testing.T) {
	s, _ := newTestStore(t)
	if !s.IsAgentEnabled("agent-7") {
		t.Error("unknown agent must default to enabled")
	}
	if !s.IsLayerEnabled("L01") {
		t.Error("unknown layer must default to enabled")
	}
}

func TestDisableRequiresReasonAndApproval(t *testing.T) {
	s, _ := newTestStore(t)

	err := s.SetLayerEnabled("L01", false, "", "GOV-1")
	if err == nil || !strings.Contains(err.Error(), "reason") {
		t.Fatalf("expected reason error, got %v", err)
	}
	err = s.SetLayerEnabled("L01", false, "incident response", "")
	if err == nil || !strings.Contains(err.Error(), "approval") {
		t.Fatalf("expected approval error, got %v", err)
	}
	if !s.IsLayerEnabled("L01") {
		t.Fatal("rejected disable must not change state")
	}

	if err := s.SetLayerEnabled("L01", false, "incident response", "GOV-1"); err != nil {
		t.Fatalf("valid disable: %v", err)
	}
	if s.IsLayerEnabled("L01") {
		t.Fatal("layer should be disabled")
	}

	meta := s.DisableMeta("L01")
	if meta == nil || meta.Reason != "incident response" || meta.GovApproval != "GOV-1" {
		t.Fatalf("unexpected disable meta: %+v", meta)
	}
}

func TestEnableNeedsNoJustification(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.SetAgentEnabled("agent-7", false, "drift", "GOV-2"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := s.SetAgentEnabled("agent-7", true, "", ""); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !s.IsAgentEnabled("agent-7") {
		t.Fatal("agent should be enabled again")
	}
	if s.DisableMeta("L01") != nil {
		t.Fatal("agent override must not leak into layer meta")
	}
}

func TestPersistedShape(t *testing.T) {
	s, path := newTestStore(t)
	if err := s.SetLayerEnabled("L02", false, "audit gap", "GOV-3"); err != nil {
		t.Fatalf("disable: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read doc: %v", err)
	}
	var parsed struct {
		SchemaVersion string                     `json:"schema_version"`
		Overrides     map[string]json.RawMessage `json:"overrides"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("parse doc: %v", err)
	}
	if parsed.SchemaVersion != "1.0" {
		t.Errorf("schema_version = %q", parsed.SchemaVersion)
	}
	if _, ok := parsed.Overrides["layer:L02"]; !ok {
		t.Fatalf("expected layer:L02 key, got %v", parsed.Overrides)
	}
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.json")

	backend, err := storage.OpenFile("", path)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	s := NewStore(backend)
	if err := s.SetLayerEnabled("L03", false, "rollout halt", "GOV-4"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	backend.Close()

	backend2, err := storage.OpenFile("", path)
	if err != nil {
		t.Fatalf("reopen backend: %v", err)
	}
	defer backend2.Close()
	s2 := NewStore(backend2)
	if s2.IsLayerEnabled("L03") {
		t.Fatal("override lost across reopen")
	}
}

func TestCorruptDocFailsOpen(t *testing.T) {
	s, path := newTestStore(t)
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("corrupt doc: %v", err)
	}
	if !s.IsLayerEnabled("L01") {
		t.Fatal("corrupt store must fail toward enabled")
	}
}

func TestInvalidateRereadsDisk(t *testing.T) {
	s, path := newTestStore(t)
	if s.IsLayerEnabled("L05") != true {
		t.Fatal("expected enabled before external edit")
	}

	doc := `{"schema_version":"1.0","overrides":{"layer:L05":{"enabled":false,"ts":"2026-01-01T00:00:00Z","reason":"manual","gov_approval":"GOV-9"}}}`
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatalf("write external doc: %v", err)
	}

	// Cache still serves the old answer until invalidated.
	if !s.IsLayerEnabled("L05") {
		t.Fatal("cache should still report enabled")
	}
	s.Invalidate()
	if s.IsLayerEnabled("L05") {
		t.Fatal("invalidated store must observe the external disable")
	}

	disabled := s.Disabled(KindLayer)
	if _, ok := disabled["L05"]; !ok || len(disabled) != 1 {
		t.Fatalf("unexpected disabled set: %v", disabled)
	}
}
