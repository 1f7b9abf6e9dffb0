package hierarchy

import (
	"strings"
	"testing"

	"github.com/agentfabric/govcore/internal/policy"
)

func boolPtr(b bool) *bool { return &b }

// parentDoc is a broad parent every narrowing child must pass against.
func parentDoc() *policy.Document {
	return &policy.Document{
		PolicyID:             "parent",
		Version:              "1.0",
		AllowedDataClasses:   []string{"public", "internal"},
		AllowedJurisdictions: []string{"us", "eu"},
		AllowedScopes:        []string{"read", "write"},
		AllowedDataTypes:     []string{"text", "metrics"},
		RestrictedDataTypes:  []string{"pii"},
		ProhibitedScopes:     []string{"admin"},
		NeverExecuteActions:  []string{"delete_all"},
		MaxRetentionDays:     90,
		ExportLimit:          1000,
		MaxRiskTier:          policy.TierHigh,
	}
}

// narrowedChild strictly narrows every field of the parent.
func narrowedChild() *policy.Document {
	return &policy.Document{
		PolicyID:             "child",
		Version:              "1.0",
		AllowedDataClasses:   []string{"public"},
		AllowedJurisdictions: []string{"us"},
		AllowedScopes:        []string{"read"},
		AllowedDataTypes:     []string{"text"},
		RestrictedDataTypes:  []string{"pii", "phi"},
		ProhibitedScopes:     []string{"admin", "billing"},
		NeverExecuteActions:  []string{"delete_all", "drop_table"},
		MaxRetentionDays:     30,
		ExportLimit:          100,
		MaxRiskTier:          policy.TierLow,
	}
}

func TestNarrowedChildHasNoViolations(t *testing.T) {
	errs := DetectDowngrade(parentDoc(), narrowedChild(), "Global→Business")
	if len(errs) != 0 {
		t.Fatalf("expected no violations, got %v", errs)
	}
}

func TestEqualChildHasNoViolations(t *testing.T) {
	errs := DetectDowngrade(parentDoc(), parentDoc(), "Global→Business")
	if len(errs) != 0 {
		t.Fatalf("expected no violations for identical policies, got %v", errs)
	}
}

// Each case loosens exactly one field and must yield exactly one violation
// naming it.
func TestSingleLoosenedFieldYieldsSingleViolation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*policy.Document)
		want   string
	}{
		{"expanded allowlist", func(d *policy.Document) {
			d.AllowedScopes = append(d.AllowedScopes, "export")
		}, "allowedScopes expanded by [export]"},
		{"removed restriction", func(d *policy.Document) {
			d.RestrictedDataTypes = nil
		}, "restrictedDataTypes removed [pii]"},
		{"loosened boolean", func(d *policy.Document) {
			d.AuditLoggingRequired = boolPtr(false)
		}, "auditLoggingRequired flipped true→false"},
		{"increased retention", func(d *policy.Document) {
			d.MaxRetentionDays = 120
		}, "maxRetentionDays increased 90→120"},
		{"increased export limit", func(d *policy.Document) {
			d.ExportLimit = 5000
		}, "exportLimit increased 1000→5000"},
		{"raised risk tier", func(d *policy.Document) {
			d.MaxRiskTier = policy.TierCritical
		}, "maxRiskTier increased high→critical"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			child := parentDoc()
			child.PolicyID = "child"
			tc.mutate(child)

			errs := DetectDowngrade(parentDoc(), child, "Global→Business")
			if len(errs) != 1 {
				t.Fatalf("expected exactly one violation, got %v", errs)
			}
			if !strings.Contains(errs[0], tc.want) {
				t.Errorf("violation %q does not mention %q", errs[0], tc.want)
			}
			if !strings.HasPrefix(errs[0], "Global→Business: ") {
				t.Errorf("violation %q missing edge label", errs[0])
			}
		})
	}
}

func TestUnsetBooleanCannotLoosen(t *testing.T) {
	parent := parentDoc() // booleans unset: treated as required
	child := parentDoc()
	child.ConsentRequired = boolPtr(false)

	errs := DetectDowngrade(parent, child, "Global→App")
	if len(errs) != 1 || !strings.Contains(errs[0], "consentRequired") {
		t.Fatalf("expected consentRequired violation, got %v", errs)
	}
}

func TestConcreteRetentionScenario(t *testing.T) {
	global := &policy.Document{PolicyID: "g", MaxRetentionDays: 90, AuditLoggingRequired: boolPtr(true)}
	business := &policy.Document{PolicyID: "b", MaxRetentionDays: 120, AuditLoggingRequired: boolPtr(true)}

	errs := DetectDowngrade(global, business, "Global→Business")
	if len(errs) != 1 {
		t.Fatalf("expected one violation, got %v", errs)
	}
	if errs[0] != "Global→Business: maxRetentionDays increased 90→120" {
		t.Fatalf("unexpected violation text: %q", errs[0])
	}
}
