// Package layers loads the declarative registry of enforcement layers.
// The document is read once at startup and immutable thereafter; a layer
// only counts as enforceable when every check it declares resolves in the
// check registry.
package layers

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/agentfabric/govcore/internal/checks"
)

// Layer statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Enforcement names the checks a layer requires, per domain.
type Enforcement struct {
	PolicyChecks    []string `json:"policy_checks"`
	RiskChecks      []string `json:"risk_checks"`
	AlignmentChecks []string `json:"alignment_checks"`
	FailBehavior    string   `json:"fail_behavior"`
}

// Set converts the declaration into a runnable check set.
func (e Enforcement) Set() checks.Set {
	return checks.Set{
		Policy:    e.PolicyChecks,
		Risk:      e.RiskChecks,
		Alignment: e.AlignmentChecks,
	}
}

// Layer is one declared enforcement point.
type Layer struct {
	LayerID             string      `json:"layer_id"`
	LayerKey            string      `json:"layer_key"`
	Name                string      `json:"name"`
	Status              string      `json:"status"`
	EnforcementRequired *bool       `json:"enforcement_required"`
	Enforcement         Enforcement `json:"enforcement"`
}

// Active reports whether the layer is declared active. An empty status
// defaults to active.
func (l *Layer) Active() bool {
	return l.Status == "" || l.Status == StatusActive
}

// Required reports whether enforcement is required. Absent defaults to
// true: opting out must be explicit.
func (l *Layer) Required() bool {
	return l.EnforcementRequired == nil || *l.EnforcementRequired
}

// SystemInvariants carries registry-wide settings.
type SystemInvariants struct {
	GlobalGateRequiredLayers []string `json:"global_gate_required_layers"`
}

// Registry is the loaded layer document.
type Registry struct {
	SchemaVersion    string             `json:"schema_version"`
	SystemInvariants SystemInvariants   `json:"system_invariants"`
	Layers           []Layer            `json:"layers"`
	ExprChecks       []checks.ExprCheck `json:"expr_checks"`

	byKey map[string]*Layer
}

// Load parses and validates a layer registry document. Fatal: absent layer
// list, repeated layer_id, repeated layer_key.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("layers: read registry %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates a layer registry document from raw bytes.
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("layers: parse registry: %w", err)
	}
	if reg.Layers == nil {
		return nil, fmt.Errorf("layers: registry missing top-level layers list")
	}

	reg.byKey = make(map[string]*Layer, len(reg.Layers))
	seenID := make(map[string]bool, len(reg.Layers))
	for i := range reg.Layers {
		l := &reg.Layers[i]
		if l.LayerID == "" {
			return nil, fmt.Errorf("layers: layer %d missing layer_id", i)
		}
		if seenID[l.LayerID] {
			return nil, fmt.Errorf("layers: duplicate layer_id: %s", l.LayerID)
		}
		seenID[l.LayerID] = true

		key := strings.TrimSpace(l.LayerKey)
		if key == "" {
			return nil, fmt.Errorf("layers: layer %s missing layer_key", l.LayerID)
		}
		if _, dup := reg.byKey[key]; dup {
			return nil, fmt.Errorf("layers: duplicate layer_key: %s", key)
		}
		reg.byKey[key] = l
	}

	return &reg, nil
}

// Layer returns the layer for a key, or nil.
func (r *Registry) Layer(key string) *Layer {
	return r.byKey[key]
}

// RequiredKeys returns the layer keys the global gate must hold. An empty
// list means the gate enforces nothing: explicit empty configuration is
// not itself a failure.
func (r *Registry) RequiredKeys() []string {
	return r.SystemInvariants.GlobalGateRequiredLayers
}

// RegisterExprChecks compiles and registers the document's expression
// checks. Called once during the startup wiring, before readiness is
// evaluated.
func (r *Registry) RegisterExprChecks(reg *checks.Registry) error {
	for _, ec := range r.ExprChecks {
		if err := checks.RegisterExpr(reg, ec); err != nil {
			return err
		}
	}
	return nil
}

// Readiness details why a layer is or is not enforced-ready.
type Readiness struct {
	DeclaredAny bool                `json:"declared_any"`
	Missing     map[string][]string `json:"missing"`
	Declared    map[string][]string `json:"declared"`
}

// EnforcedReady reports whether a layer can actually enforce anything:
// it must declare at least one check across the three domains, and every
// declared name must resolve in the check registry for its domain.
func EnforcedReady(l *Layer, reg *checks.Registry) (bool, Readiness) {
	enf := l.Enforcement

	missing := func(domain checks.Domain, names []string) []string {
		var out []string
		for _, n := range names {
			if !reg.Has(domain, n) {
				out = append(out, n)
			}
		}
		return out
	}

	missingPolicy := missing(checks.DomainPolicy, enf.PolicyChecks)
	missingRisk := missing(checks.DomainRisk, enf.RiskChecks)
	missingAlign := missing(checks.DomainAlignment, enf.AlignmentChecks)

	declaredAny := len(enf.PolicyChecks)+len(enf.RiskChecks)+len(enf.AlignmentChecks) > 0
	ok := declaredAny && len(missingPolicy) == 0 && len(missingRisk) == 0 && len(missingAlign) == 0

	return ok, Readiness{
		DeclaredAny: declaredAny,
		Missing: map[string][]string{
			"policy_checks":    missingPolicy,
			"risk_checks":      missingRisk,
			"alignment_checks": missingAlign,
		},
		Declared: map[string][]string{
			"policy_checks":    enf.PolicyChecks,
			"risk_checks":      enf.RiskChecks,
			"alignment_checks": enf.AlignmentChecks,
		},
	}
}
