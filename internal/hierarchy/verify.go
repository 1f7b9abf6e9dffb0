package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentfabric/govcore/internal/entity"
	"github.com/agentfabric/govcore/internal/policy"
)

// Allowlist maps a businessId to the set of app compliance profile refs its
// apps are permitted to select. A business absent from the map carries no
// restriction beyond the downgrade check.
type Allowlist map[string]map[string]bool

// Verifier walks the business/app topology against the loaded manifest.
type Verifier struct {
	Manifest  *policy.Manifest
	Allowlist Allowlist
}

// ViolationError aggregates every violation found for a single entity.
// Its presence is boot-fatal: the service must not accept traffic.
type ViolationError struct {
	EntityKind string // "business" or "app"
	EntityID   string
	Violations []string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("hierarchy: downgrade for %s %s: %s",
		e.EntityKind, e.EntityID, strings.Join(e.Violations, "; "))
}

// Verify fails loudly on any downgrade or allowlist violation. Each
// business is checked against the global policy; each app is checked
// against both the global policy and its owning business, and both edges
// must hold independently.
func (v *Verifier) Verify(snap *entity.Snapshot) error {
	global := v.Manifest.Global

	bizByID := make(map[string]entity.Business, len(snap.Businesses))
	for _, b := range snap.Businesses {
		bizByID[b.BusinessID] = b
	}

	for _, b := range snap.Businesses {
		bp, err := v.Manifest.Policy(b.ComplianceProfileRef)
		if err != nil {
			return err
		}
		if errs := DetectDowngrade(global, bp, "Global→Business"); len(errs) > 0 {
			return &ViolationError{EntityKind: "business", EntityID: b.BusinessID, Violations: errs}
		}
	}

	for _, a := range snap.Apps {
		// Allowlist guard is independent of the downgrade check: it
		// constrains which policy may be selected, not its strictness.
		if allowed, guarded := v.Allowlist[a.OwningBusinessID]; guarded && !allowed[a.ComplianceProfileRef] {
			return fmt.Errorf("hierarchy: allowlist guard: app %s owned by business %s must use one of %v (found %q)",
				a.AppID, a.OwningBusinessID, sortedKeys(allowed), a.ComplianceProfileRef)
		}

		owner, ok := bizByID[a.OwningBusinessID]
		if !ok {
			return fmt.Errorf("hierarchy: app %s references unknown owningBusinessId: %s",
				a.AppID, a.OwningBusinessID)
		}

		bp, err := v.Manifest.Policy(owner.ComplianceProfileRef)
		if err != nil {
			return err
		}
		ap, err := v.Manifest.Policy(a.ComplianceProfileRef)
		if err != nil {
			return err
		}

		var errs []string
		errs = append(errs, DetectDowngrade(global, ap, "Global→App")...)
		errs = append(errs, DetectDowngrade(bp, ap, "Business→App")...)
		if len(errs) > 0 {
			return &ViolationError{EntityKind: "app", EntityID: a.AppID, Violations: errs}
		}
	}

	return nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
