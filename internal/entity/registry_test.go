package entity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRegistry(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	return path
}

func TestLoadSnapshotPayloadWrapped(t *testing.T) {
	path := writeRegistry(t, `{
	  "entities": {
	    "biz-1": {"payload": {"entityType": "business", "businessId": "biz-1", "complianceProfileRef": "fintech-standard"}},
	    "app-1": {"payload": {"entityType": "app", "appId": "app-1", "owningBusinessId": "biz-1", "complianceProfileRef": "fintech-app"}},
	    "other": {"payload": {"entityType": "agent", "agentId": "a-1"}}
	  }
	}`)

	snap, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if len(snap.Businesses) != 1 || snap.Businesses[0].ComplianceProfileRef != "fintech-standard" {
		t.Fatalf("unexpected businesses: %+v", snap.Businesses)
	}
	if len(snap.Apps) != 1 || snap.Apps[0].OwningBusinessID != "biz-1" {
		t.Fatalf("unexpected apps: %+v", snap.Apps)
	}
}

func TestLoadSnapshotFlatEntities(t *testing.T) {
	path := writeRegistry(t, `{
	  "entities": {
	    "biz-2": {"type": "business", "complianceProfileRef": "global-baseline"},
	    "app-2": {"kind": "app", "owningBusinessId": "biz-2", "complianceProfileRef": "global-baseline"}
	  }
	}`)

	snap, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	// Ids fall back to the entity key when the payload omits them.
	if snap.Businesses[0].BusinessID != "biz-2" {
		t.Errorf("businessId fallback: %+v", snap.Businesses[0])
	}
	if snap.Apps[0].AppID != "app-2" {
		t.Errorf("appId fallback: %+v", snap.Apps[0])
	}
}

func TestLoadSnapshotRejectsEmptySets(t *testing.T) {
	noApps := writeRegistry(t, `{
	  "entities": {
	    "biz-1": {"type": "business", "complianceProfileRef": "p"}
	  }
	}`)
	if _, err := LoadSnapshot(noApps); err == nil || !strings.Contains(err.Error(), "no app entities") {
		t.Fatalf("expected no-app error, got %v", err)
	}

	noBiz := writeRegistry(t, `{
	  "entities": {
	    "app-1": {"type": "app", "owningBusinessId": "b", "complianceProfileRef": "p"}
	  }
	}`)
	if _, err := LoadSnapshot(noBiz); err == nil || !strings.Contains(err.Error(), "no business entities") {
		t.Fatalf("expected no-business error, got %v", err)
	}
}

func TestLoadSnapshotMissingRequiredField(t *testing.T) {
	path := writeRegistry(t, `{
	  "entities": {
	    "biz-1": {"type": "business", "complianceProfileRef": "p"},
	    "app-1": {"type": "app", "complianceProfileRef": "p"}
	  }
	}`)
	_, err := LoadSnapshot(path)
	if err == nil || !strings.Contains(err.Error(), "owningBusinessId") {
		t.Fatalf("expected missing owningBusinessId, got %v", err)
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected read error")
	}
}
