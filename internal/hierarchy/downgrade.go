// Package hierarchy enforces the no-downgrade rule across the
// global → business → app policy tree at startup.
package hierarchy

import (
	"fmt"
	"sort"

	"github.com/agentfabric/govcore/internal/policy"
)

// DetectDowngrade compares a child policy against its parent and returns
// one violation string per loosened field, labelled with the edge being
// checked (e.g. "Global→Business"). An empty result means the child is
// equal to or stricter than the parent on every governed field.
func DetectDowngrade(parent, child *policy.Document, label string) []string {
	var errs []string

	expanded := func(field string, p, c []string) {
		extra := setDiff(c, p)
		if len(extra) > 0 {
			errs = append(errs, fmt.Sprintf("%s: %s expanded by %v", label, field, extra))
		}
	}
	removed := func(field string, p, c []string) {
		gone := setDiff(p, c)
		if len(gone) > 0 {
			errs = append(errs, fmt.Sprintf("%s: %s removed %v", label, field, gone))
		}
	}
	loosenBool := func(field string, p, c bool) {
		if p && !c {
			errs = append(errs, fmt.Sprintf("%s: %s flipped true→false", label, field))
		}
	}
	loosenNum := func(field string, p, c int) {
		if c > p {
			errs = append(errs, fmt.Sprintf("%s: %s increased %d→%d", label, field, p, c))
		}
	}

	// Allowlists cannot expand.
	expanded("allowedDataClasses", parent.AllowedDataClasses, child.AllowedDataClasses)
	expanded("allowedJurisdictions", parent.AllowedJurisdictions, child.AllowedJurisdictions)
	expanded("allowedScopes", parent.AllowedScopes, child.AllowedScopes)
	expanded("allowedDataTypes", parent.AllowedDataTypes, child.AllowedDataTypes)

	// Restrictions cannot shrink.
	removed("restrictedDataTypes", parent.RestrictedDataTypes, child.RestrictedDataTypes)
	removed("prohibitedScopes", parent.ProhibitedScopes, child.ProhibitedScopes)
	removed("neverExecuteActions", parent.NeverExecuteActions, child.NeverExecuteActions)

	// Booleans cannot loosen.
	loosenBool("auditLoggingRequired", parent.AuditLogging(), child.AuditLogging())
	loosenBool("traceIdRequired", parent.TraceID(), child.TraceID())
	loosenBool("attributionRequired", parent.Attribution(), child.Attribution())
	loosenBool("consentRequired", parent.Consent(), child.Consent())
	loosenBool("disclosureRequired", parent.Disclosure(), child.Disclosure())

	// Ceilings cannot loosen.
	loosenNum("maxRetentionDays", parent.MaxRetentionDays, child.MaxRetentionDays)
	loosenNum("exportLimit", parent.ExportLimit, child.ExportLimit)

	// Risk cannot loosen; a higher rank is looser.
	if child.MaxRiskTier.Rank() > parent.MaxRiskTier.Rank() {
		errs = append(errs, fmt.Sprintf("%s: maxRiskTier increased %s→%s",
			label, parent.MaxRiskTier, child.MaxRiskTier))
	}

	return errs
}

// setDiff returns the sorted members of a that are absent from b.
func setDiff(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, v := range b {
		in[v] = true
	}
	var out []string
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		if !in[v] && !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	sort.Strings(out)
	return out
}
