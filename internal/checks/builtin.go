package checks

import (
	"fmt"
	"strings"
)

// secretNeedles are obvious secret markers rejected from request input.
// A guardrail, not a scanner.
var secretNeedles = []string{
	"BEGIN PRIVATE KEY",
	"api_key",
	"ADMIN_API_KEY",
	"password=",
	"Authorization:",
}

const maxInputKB = 64.0

// RegisterBuiltins installs the minimum viable check pack: safe, low-risk
// predicates that prove enforcement wiring end-to-end.
func RegisterBuiltins(r *Registry) error {
	type entry struct {
		domain Domain
		name   string
		fn     Func
	}
	pack := []entry{
		{DomainPolicy, "policy.identity.layer_key_present", layerKeyPresent},
		{DomainPolicy, "policy.identity.agent_id_present", agentIDPresent},
		{DomainRisk, "risk.payload.max_input_kb_64", payloadSize},
		{DomainRisk, "risk.payload.no_secrets_in_input", noObviousSecrets},
		{DomainAlignment, "align.execution.route_present", routePresent},
	}
	for _, e := range pack {
		if err := r.Register(e.domain, e.name, e.fn); err != nil {
			return err
		}
	}
	return nil
}

func layerKeyPresent(ctx Context) Result {
	if strings.TrimSpace(ctx.Layer) == "" {
		return Result{OK: false, Detail: "agent layer must be present"}
	}
	return Result{OK: true, Detail: "layer=" + ctx.Layer}
}

func agentIDPresent(ctx Context) Result {
	if strings.TrimSpace(ctx.AgentID) == "" {
		return Result{OK: false, Detail: "agentId must be present"}
	}
	return Result{OK: true, Detail: "agentId=" + ctx.AgentID}
}

// payloadSize caps input size to limit abuse and runaway logs.
func payloadSize(ctx Context) Result {
	s := fmt.Sprintf("%v", ctx.Input)
	kb := float64(len(s)) / 1024.0
	if kb > maxInputKB {
		return Result{OK: false, Detail: fmt.Sprintf("input %.2fKB exceeds %.0fKB limit", kb, maxInputKB)}
	}
	return Result{OK: true, Detail: fmt.Sprintf("input %.2fKB within limit", kb)}
}

func noObviousSecrets(ctx Context) Result {
	raw := strings.ToLower(fmt.Sprintf("%v", ctx.Input))
	var hits []string
	for _, n := range secretNeedles {
		if strings.Contains(raw, strings.ToLower(n)) {
			hits = append(hits, n)
		}
	}
	if len(hits) > 0 {
		return Result{OK: false, Detail: fmt.Sprintf("input contains secret markers: %v", hits)}
	}
	return Result{OK: true, Detail: "no obvious secrets in input"}
}

// routePresent asserts the context declares an execution route, required
// for audit traceability.
func routePresent(ctx Context) Result {
	if strings.TrimSpace(ctx.Route) == "" {
		return Result{OK: false, Detail: "ctx.route must be present"}
	}
	return Result{OK: true, Detail: "route=" + ctx.Route}
}
