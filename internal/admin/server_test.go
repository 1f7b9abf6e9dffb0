package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentfabric/govcore/internal/checks"
	"github.com/agentfabric/govcore/internal/gate"
	"github.com/agentfabric/govcore/internal/layers"
	"github.com/agentfabric/govcore/internal/ledger"
	"github.com/agentfabric/govcore/internal/overrides"
	"github.com/agentfabric/govcore/internal/storage"
)

const testKey = "test-admin-key"

const adminRegistryDoc = `{
  "schema_version": "1.0",
  "system_invariants": {
    "global_gate_required_layers": ["L01"]
  },
  "layers": [
    {
      "layer_id": "layer-001",
      "layer_key": "L01",
      "status": "active",
      "enforcement": {
        "policy_checks": ["policy.identity.agent_id_present"],
        "risk_checks": [],
        "alignment_checks": []
      }
    }
  ]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	lr, err := layers.Parse([]byte(adminRegistryDoc))
	if err != nil {
		t.Fatalf("parse layers: %v", err)
	}
	cr := checks.NewRegistry()
	if err := checks.RegisterBuiltins(cr); err != nil {
		t.Fatalf("register builtins: %v", err)
	}

	ovBackend, err := storage.OpenFile("", filepath.Join(dir, "overrides.json"))
	if err != nil {
		t.Fatalf("open override backend: %v", err)
	}
	t.Cleanup(func() { ovBackend.Close() })

	ledBackend, err := storage.OpenFile(filepath.Join(dir, "ledger.jsonl"), "")
	if err != nil {
		t.Fatalf("open ledger backend: %v", err)
	}
	t.Cleanup(func() { ledBackend.Close() })
	led, err := ledger.Open(ledBackend)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	srv := &Server{
		Gate:   gate.New(lr, cr, overrides.NewStore(ovBackend), led),
		Ledger: led,
		APIKey: testKey,
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body, key string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if key != "" {
		req.Header.Set(apiKeyHeader, key)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		parsed = nil
	}
	return resp, parsed
}

func TestHealthzNeedsNoKey(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestAdminRequiresKey(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := do(t, ts, http.MethodGet, "/admin/gate/status", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d", resp.StatusCode)
	}
	resp, _ = do(t, ts, http.MethodGet, "/admin/gate/status", "", "wrong")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d", resp.StatusCode)
	}
	resp, body := do(t, ts, http.MethodGet, "/admin/gate/status", "", testKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid key: status = %d", resp.StatusCode)
	}
	if body["summary"] != "GATE PASS: 1/1 required layers enabled + enforced_ready." {
		t.Fatalf("summary = %v", body["summary"])
	}
	if resp.Header.Get("X-Correlation-Id") == "" {
		t.Error("missing correlation id header")
	}
}

func TestAssertReportsBlockersWith409(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := do(t, ts, http.MethodPost, "/admin/layers/L01/disable",
		`{"actor":"alice","reason":"maintenance","govApproval":"GOV-1"}`, testKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disable status = %d", resp.StatusCode)
	}

	resp, body := do(t, ts, http.MethodPost, "/admin/gate/assert", `{"route":"/run"}`, testKey)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("assert status = %d", resp.StatusCode)
	}
	if body["allowed"] != false {
		t.Fatalf("allowed = %v", body["allowed"])
	}
	blockers, ok := body["blockers"].([]any)
	if !ok || len(blockers) != 1 {
		t.Fatalf("blockers = %v", body["blockers"])
	}

	// Re-enable and the gate opens again.
	resp, _ = do(t, ts, http.MethodPost, "/admin/layers/L01/enable", `{"actor":"alice"}`, testKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enable status = %d", resp.StatusCode)
	}
	resp, body = do(t, ts, http.MethodPost, "/admin/gate/assert", `{"route":"/run"}`, testKey)
	if resp.StatusCode != http.StatusOK || body["allowed"] != true {
		t.Fatalf("assert after enable: status=%d body=%v", resp.StatusCode, body)
	}
}

func TestDisableWithoutJustificationIs400(t *testing.T) {
	ts := newTestServer(t)
	resp, body := do(t, ts, http.MethodPost, "/admin/layers/L01/disable",
		`{"actor":"alice"}`, testKey)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d body=%v", resp.StatusCode, body)
	}
}

func TestEnforceEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, ts, http.MethodPost, "/admin/enforce/L01",
		`{"route":"/run","agentId":"agent-7","input":"hello"}`, testKey)
	if resp.StatusCode != http.StatusOK || body["allowed"] != true {
		t.Fatalf("enforce pass: status=%d body=%v", resp.StatusCode, body)
	}

	// Missing agent id fails the identity check with 403.
	resp, body = do(t, ts, http.MethodPost, "/admin/enforce/L01",
		`{"route":"/run","input":"hello"}`, testKey)
	if resp.StatusCode != http.StatusForbidden || body["allowed"] != false {
		t.Fatalf("enforce fail: status=%d body=%v", resp.StatusCode, body)
	}

	resp, _ = do(t, ts, http.MethodPost, "/admin/enforce/L99", `{}`, testKey)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unknown layer: status=%d", resp.StatusCode)
	}
}

func TestHistoryAndVerifyEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp, _ := do(t, ts, http.MethodPost, "/admin/agents/agent-7/enable",
			`{"actor":"ops"}`, testKey)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("toggle %d status = %d", i, resp.StatusCode)
		}
	}

	resp, body := do(t, ts, http.MethodGet, "/admin/gate/history?limit=2", "", testKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", resp.StatusCode)
	}
	if body["count"] != float64(2) {
		t.Fatalf("count = %v", body["count"])
	}

	// Out-of-window limits clamp instead of erroring.
	resp, body = do(t, ts, http.MethodGet, "/admin/gate/history?limit=9999", "", testKey)
	if resp.StatusCode != http.StatusOK || body["count"] != float64(3) {
		t.Fatalf("clamped history: status=%d count=%v", resp.StatusCode, body["count"])
	}

	resp, body = do(t, ts, http.MethodGet, "/admin/ledger/verify", "", testKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d", resp.StatusCode)
	}
	summary, _ := body["summary"].(string)
	if !strings.HasPrefix(summary, "LEDGER PASS") {
		t.Fatalf("summary = %q", summary)
	}
}
