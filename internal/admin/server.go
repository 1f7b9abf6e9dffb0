// Package admin exposes the operator HTTP surface: gate status, ledger
// inspection, and override toggles. Every route except the health probe
// requires the shared admin key; an empty configured key refuses all
// requests rather than failing open.
package admin

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agentfabric/govcore/internal/checks"
	"github.com/agentfabric/govcore/internal/gate"
	"github.com/agentfabric/govcore/internal/ledger"
)

const apiKeyHeader = "X-Admin-Key"

// History limits. Requests outside the window are clamped, not rejected.
const (
	historyDefault = 50
	historyMin     = 1
	historyMax     = 500
)

// Server wires the governance core into HTTP handlers.
type Server struct {
	Gate   *gate.Gate
	Ledger *ledger.Ledger
	APIKey string
	Log    *slog.Logger
}

// Router builds the admin route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireKey)
		r.Use(s.logRequests)

		r.Get("/gate/status", s.handleGateStatus)
		r.Get("/gate/history", s.handleHistory)
		r.Post("/gate/assert", s.handleAssert)
		r.Post("/enforce/{key}", s.handleEnforce)

		r.Get("/ledger/verify", s.handleLedgerVerify)
		r.Get("/ledger/events", s.handleLedgerEvents)

		r.Post("/layers/{key}/enable", s.handleLayerToggle(true))
		r.Post("/layers/{key}/disable", s.handleLayerToggle(false))
		r.Post("/agents/{id}/enable", s.handleAgentToggle(true))
		r.Post("/agents/{id}/disable", s.handleAgentToggle(false))
	})

	return r
}

// requireKey compares the presented key in constant time. No configured
// key means no admin access at all.
func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get(apiKeyHeader)
		if s.APIKey == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(s.APIKey)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid admin key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logRequests tags each request with a correlation id and logs outcome.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Correlation-Id", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		if s.Log != nil {
			s.Log.Info("admin request",
				"method", r.Method,
				"path", r.URL.Path,
				"correlationId", id,
				"duration", time.Since(start).String(),
			)
		}
	})
}

func (s *Server) handleGateStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.Gate.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  st,
		"summary": st.OneLiner(),
	})
}

func (s *Server) handleAssert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Route string `json:"route"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if body.Route == "" {
		body.Route = "/run"
	}

	err := s.Gate.AssertAllowed(body.Route)
	var blocked *gate.BlockedError
	if errors.As(err, &blocked) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"allowed":  false,
			"route":    blocked.Route,
			"blockers": blocked.Blockers,
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allowed": true, "route": body.Route})
}

func (s *Server) handleEnforce(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var body struct {
		Route   string `json:"route"`
		AgentID string `json:"agentId"`
		OrgID   string `json:"orgId"`
		Input   string `json:"input"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	dec, err := s.Gate.EnforceLayer(key, checks.Context{
		Route:   body.Route,
		AgentID: body.AgentID,
		OrgID:   body.OrgID,
		Input:   body.Input,
	})
	if err != nil {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"allowed":  false,
			"error":    err.Error(),
			"decision": dec,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allowed": true, "decision": dec})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(r.URL.Query().Get("limit"))
	events, err := s.Ledger.List(limit, r.URL.Query().Get("entity"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(events), "events": events})
}

func (s *Server) handleLedgerVerify(w http.ResponseWriter, r *http.Request) {
	res, err := s.Ledger.Verify(r.URL.Query().Get("entity"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if !res.Pass {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{
		"result":  res,
		"summary": res.OneLiner(),
	})
}

func (s *Server) handleLedgerEvents(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(r.URL.Query().Get("limit"))
	events, err := s.Ledger.Read(limit, r.URL.Query().Get("entity"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(events), "events": events})
}

// toggleBody is shared by layer and agent toggles.
type toggleBody struct {
	Actor       string `json:"actor"`
	Reason      string `json:"reason"`
	GovApproval string `json:"govApproval"`
}

func (s *Server) handleLayerToggle(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		var body toggleBody
		if err := decodeBody(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		if err := s.Gate.SetLayerEnabled(key, enable, body.Actor, body.Reason, body.GovApproval); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"layerKey": key, "enabled": enable})
	}
}

func (s *Server) handleAgentToggle(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var body toggleBody
		if err := decodeBody(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		if err := s.Gate.SetAgentEnabled(id, enable, body.Actor, body.Reason, body.GovApproval); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"agentId": id, "enabled": enable})
	}
}

// clampLimit parses the limit query parameter and clamps it into the
// history window. Unparseable input gets the default.
func clampLimit(raw string) int {
	if raw == "" {
		return historyDefault
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return historyDefault
	}
	if n < historyMin {
		return historyMin
	}
	if n > historyMax {
		return historyMax
	}
	return n
}

// decodeBody tolerates an empty body; toggles from curl often send none.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
