// Package policy loads the signed compliance manifest and the policy
// documents it references. The manifest is read once at boot and the
// resulting index is immutable for the process lifetime.
package policy

// RiskTier is the maximum risk a policy permits, totally ordered
// low < medium < high < critical.
type RiskTier string

const (
	TierLow      RiskTier = "low"
	TierMedium   RiskTier = "medium"
	TierHigh     RiskTier = "high"
	TierCritical RiskTier = "critical"
)

// riskRank maps tiers onto their order. Unknown tiers rank as low,
// the strictest interpretation.
var riskRank = map[RiskTier]int{
	TierLow:      0,
	TierMedium:   1,
	TierHigh:     2,
	TierCritical: 3,
}

// Rank returns the tier's position in the order. Higher is looser.
func (t RiskTier) Rank() int {
	return riskRank[t]
}

// Document is one compliance policy. Immutable once loaded.
//
// Allowlist fields may only shrink from parent to child, restriction
// fields may only grow, booleans may only go false→true, ceilings may
// only shrink, and maxRiskTier may only move down the order.
type Document struct {
	PolicyID string `json:"policyId"`
	Version  string `json:"version"`

	// Allowlists: values a tenant may touch.
	AllowedDataClasses   []string `json:"allowedDataClasses,omitempty"`
	AllowedJurisdictions []string `json:"allowedJurisdictions,omitempty"`
	AllowedScopes        []string `json:"allowedScopes,omitempty"`
	AllowedDataTypes     []string `json:"allowedDataTypes,omitempty"`

	// Restrictions: values explicitly forbidden.
	RestrictedDataTypes []string `json:"restrictedDataTypes,omitempty"`
	ProhibitedScopes    []string `json:"prohibitedScopes,omitempty"`
	NeverExecuteActions []string `json:"neverExecuteActions,omitempty"`

	// Required controls. Absent means required (default true).
	AuditLoggingRequired *bool `json:"auditLoggingRequired,omitempty"`
	TraceIDRequired      *bool `json:"traceIdRequired,omitempty"`
	AttributionRequired  *bool `json:"attributionRequired,omitempty"`
	ConsentRequired      *bool `json:"consentRequired,omitempty"`
	DisclosureRequired   *bool `json:"disclosureRequired,omitempty"`

	// Numeric ceilings. Absent means 0.
	MaxRetentionDays int `json:"maxRetentionDays,omitempty"`
	ExportLimit      int `json:"exportLimit,omitempty"`

	MaxRiskTier RiskTier `json:"maxRiskTier,omitempty"`
}

// The boolean getters treat absence as true: an unset control is a
// required control, so a child cannot loosen by omission.

func (d *Document) AuditLogging() bool { return boolOr(d.AuditLoggingRequired) }
func (d *Document) TraceID() bool      { return boolOr(d.TraceIDRequired) }
func (d *Document) Attribution() bool  { return boolOr(d.AttributionRequired) }
func (d *Document) Consent() bool      { return boolOr(d.ConsentRequired) }
func (d *Document) Disclosure() bool   { return boolOr(d.DisclosureRequired) }

func boolOr(p *bool) bool {
	if p == nil {
		return true
	}
	return *p
}
