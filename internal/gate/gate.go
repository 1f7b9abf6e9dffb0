// Package gate is the global execution gate: the single decision point
// that says whether agent execution may proceed at all, and whether one
// specific layer's enforcement passes. The gate collects every blocker
// before answering so an operator sees the full repair list, not just the
// first problem.
package gate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/agentfabric/govcore/internal/checks"
	"github.com/agentfabric/govcore/internal/layers"
	"github.com/agentfabric/govcore/internal/ledger"
	"github.com/agentfabric/govcore/internal/overrides"
)

// Blocker kinds, in the order the gate evaluates them per layer.
const (
	BlockMissingDefinition = "missing_layer_definition"
	BlockNotActive         = "layer_not_active"
	BlockDisabled          = "layer_disabled"
	BlockNotEnforcedReady  = "layer_not_enforced_ready"
)

// Blocker names one reason a required layer cannot enforce.
type Blocker struct {
	LayerKey string `json:"layerKey"`
	Kind     string `json:"kind"`
	Detail   string `json:"detail,omitempty"`
}

// BlockedError reports a refused execution with every blocker attached.
type BlockedError struct {
	Route    string
	Blockers []Blocker
}

func (e *BlockedError) Error() string {
	parts := make([]string, len(e.Blockers))
	for i, b := range e.Blockers {
		parts[i] = fmt.Sprintf("%s(%s)", b.LayerKey, b.Kind)
	}
	return fmt.Sprintf("gate: execution blocked for %s: %s", e.Route, strings.Join(parts, ", "))
}

// Gate wires the layer registry, check registry, override store, and
// ledger into one decision surface.
type Gate struct {
	layers    *layers.Registry
	checks    *checks.Registry
	overrides *overrides.Store
	ledger    *ledger.Ledger
}

// New assembles a Gate. All four collaborators are required.
func New(lr *layers.Registry, cr *checks.Registry, ov *overrides.Store, led *ledger.Ledger) *Gate {
	return &Gate{layers: lr, checks: cr, overrides: ov, ledger: led}
}

// blockersFor evaluates one required layer. All applicable blockers are
// returned, not just the first.
func (g *Gate) blockersFor(key string) []Blocker {
	l := g.layers.Layer(key)
	if l == nil {
		return []Blocker{{LayerKey: key, Kind: BlockMissingDefinition}}
	}

	var out []Blocker
	if !l.Active() {
		out = append(out, Blocker{LayerKey: key, Kind: BlockNotActive, Detail: "status=" + l.Status})
	}
	if !g.overrides.IsLayerEnabled(key) {
		detail := ""
		if meta := g.overrides.DisableMeta(key); meta != nil {
			detail = meta.Reason
		}
		out = append(out, Blocker{LayerKey: key, Kind: BlockDisabled, Detail: detail})
	}
	if ok, details := layers.EnforcedReady(l, g.checks); !ok {
		out = append(out, Blocker{LayerKey: key, Kind: BlockNotEnforcedReady, Detail: readinessDetail(details)})
	}
	return out
}

func readinessDetail(r layers.Readiness) string {
	if !r.DeclaredAny {
		return "no checks declared"
	}
	var missing []string
	for _, domain := range []string{"policy_checks", "risk_checks", "alignment_checks"} {
		missing = append(missing, r.Missing[domain]...)
	}
	sort.Strings(missing)
	return "unresolved checks: " + strings.Join(missing, ", ")
}

// AssertAllowed refuses execution on the route unless every required layer
// is defined, active, enabled, and enforced-ready. The walk never
// short-circuits: the returned error carries the complete blocker list.
func (g *Gate) AssertAllowed(route string) error {
	var blockers []Blocker
	for _, key := range g.layers.RequiredKeys() {
		blockers = append(blockers, g.blockersFor(key)...)
	}
	if len(blockers) > 0 {
		return &BlockedError{Route: route, Blockers: blockers}
	}
	return nil
}

// Decision is the outcome of enforcing one layer on one request.
type Decision struct {
	LayerKey string          `json:"layerKey"`
	Skipped  bool            `json:"skipped"`
	Run      checks.RunResult `json:"run"`
}

// EnforceLayer runs a single layer's declared checks against the request
// context. Missing, inactive, and disabled layers refuse outright; a layer
// with enforcement_required=false is skipped without running anything; a
// layer declaring zero checks refuses rather than vacuously passing. Check
// failures halt execution regardless of the declared fail behavior.
func (g *Gate) EnforceLayer(key string, ctx checks.Context) (Decision, error) {
	l := g.layers.Layer(key)
	if l == nil {
		return Decision{}, fmt.Errorf("gate: unknown layer %q", key)
	}
	if !l.Active() {
		return Decision{}, fmt.Errorf("gate: layer %s is not active", key)
	}
	if !g.overrides.IsLayerEnabled(key) {
		return Decision{}, fmt.Errorf("gate: layer %s is disabled by override", key)
	}
	if !l.Required() {
		return Decision{LayerKey: key, Skipped: true, Run: checks.RunResult{OK: true}}, nil
	}

	set := l.Enforcement.Set()
	if set.Empty() {
		return Decision{}, fmt.Errorf("gate: layer %s declares no checks and cannot enforce", key)
	}

	ctx.Layer = key
	run := g.checks.Run(set, ctx)
	dec := Decision{LayerKey: key, Run: run}
	if !run.OK {
		return dec, fmt.Errorf("gate: layer %s enforcement failed: %s", key, failedNames(run))
	}
	return dec, nil
}

func failedNames(run checks.RunResult) string {
	var names []string
	for _, r := range run.Results {
		if !r.OK {
			names = append(names, r.Name)
		}
	}
	return strings.Join(names, ", ")
}

// SetLayerEnabled toggles a layer and logs the act. Disabling needs a
// reason and a governance approval id; unknown keys are rejected so a typo
// cannot silently create a dangling override.
func (g *Gate) SetLayerEnabled(key string, enabled bool, actor, reason, govApproval string) error {
	if g.layers.Layer(key) == nil {
		return fmt.Errorf("gate: unknown layer %q", key)
	}
	if err := g.overrides.SetLayerEnabled(key, enabled, reason, govApproval); err != nil {
		return err
	}
	return g.logToggle("layer", key, enabled, actor, reason, govApproval)
}

// SetAgentEnabled toggles an agent and logs the act.
func (g *Gate) SetAgentEnabled(agentID string, enabled bool, actor, reason, govApproval string) error {
	if err := g.overrides.SetAgentEnabled(agentID, enabled, reason, govApproval); err != nil {
		return err
	}
	return g.logToggle("agent", agentID, enabled, actor, reason, govApproval)
}

// logToggle appends the override event. Every toggle is logged, including
// no-op repeats: the ledger records administrative intent, not state diffs.
func (g *Gate) logToggle(kind, name string, enabled bool, actor, reason, govApproval string) error {
	action := kind + "_disabled"
	if enabled {
		action = kind + "_enabled"
	}
	ev := ledger.Event{
		Action: action,
		Actor:  actor,
		Source: "gate",
		Reason: reason,
		Kind:   kind,
		Name:   name,
		Meta:   map[string]any{"correlationId": uuid.NewString()},
	}
	if govApproval != "" {
		ev.Meta["govApproval"] = govApproval
	}
	if _, err := g.ledger.Append(ev); err != nil {
		return fmt.Errorf("gate: log %s: %w", action, err)
	}
	return nil
}

// LayerStatus is one required layer's standing in the gate report.
type LayerStatus struct {
	LayerKey      string    `json:"layerKey"`
	Defined       bool      `json:"defined"`
	Active        bool      `json:"active"`
	Enabled       bool      `json:"enabled"`
	EnforcedReady bool      `json:"enforcedReady"`
	Blockers      []Blocker `json:"blockers,omitempty"`
}

// Status is the full gate report.
type Status struct {
	Pass     bool          `json:"pass"`
	Required []LayerStatus `json:"required"`
	Blockers []Blocker     `json:"blockers,omitempty"`
}

// OneLiner renders the auditor-safe summary.
func (s Status) OneLiner() string {
	if s.Pass {
		return fmt.Sprintf("GATE PASS: %d/%d required layers enabled + enforced_ready.",
			len(s.Required), len(s.Required))
	}
	parts := make([]string, len(s.Blockers))
	for i, b := range s.Blockers {
		parts[i] = fmt.Sprintf("%s(%s)", b.LayerKey, b.Kind)
	}
	return "GATE FAIL: blockers=" + strings.Join(parts, ",")
}

// Status reports every required layer's standing plus the aggregate
// verdict, using the same evaluation as AssertAllowed.
func (g *Gate) Status() Status {
	st := Status{Pass: true}
	for _, key := range g.layers.RequiredKeys() {
		blockers := g.blockersFor(key)
		l := g.layers.Layer(key)

		ls := LayerStatus{
			LayerKey: key,
			Defined:  l != nil,
			Enabled:  g.overrides.IsLayerEnabled(key),
			Blockers: blockers,
		}
		if l != nil {
			ls.Active = l.Active()
			ls.EnforcedReady, _ = layers.EnforcedReady(l, g.checks)
		}
		st.Required = append(st.Required, ls)
		st.Blockers = append(st.Blockers, blockers...)
	}
	st.Pass = len(st.Blockers) == 0
	return st
}
