// Package entity reads the business/app snapshot from the external entity
// registry. The registry is a collaborator with its own event log; the
// governance core reads it once per startup verification pass and treats
// the result as read-only.
package entity

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Business is an owning tenant and its selected compliance policy.
type Business struct {
	BusinessID           string `json:"businessId"`
	ComplianceProfileRef string `json:"complianceProfileRef"`
}

// App is an application owned by a business.
type App struct {
	AppID                string `json:"appId"`
	OwningBusinessID     string `json:"owningBusinessId"`
	ComplianceProfileRef string `json:"complianceProfileRef"`
}

// Snapshot is the read-only view taken at startup.
type Snapshot struct {
	Businesses []Business
	Apps       []App
}

// registryDoc is the registry.json on-disk shape: entities keyed by id,
// each wrapping an optional payload.
type registryDoc struct {
	Entities map[string]registryEntity `json:"entities"`
}

type registryEntity struct {
	Payload map[string]any `json:"payload"`

	// Fields may also appear at the entity level when no payload wrapper
	// is used.
	Extra map[string]any `json:"-"`
}

func (e *registryEntity) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if p, ok := raw["payload"].(map[string]any); ok {
		e.Payload = p
	}
	e.Extra = raw
	return nil
}

// payload returns the effective field map for an entity.
func (e registryEntity) payload() map[string]any {
	if e.Payload != nil {
		return e.Payload
	}
	return e.Extra
}

// LoadSnapshot reads registry.json and extracts business and app entities.
// An empty business or app set is fatal: the hierarchy check cannot run
// against nothing and silently passing would be fail-open.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("entity: read registry %s: %w", path, err)
	}

	var doc registryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("entity: parse registry %s: %w", path, err)
	}

	snap := &Snapshot{}
	for id, ent := range doc.Entities {
		p := ent.payload()
		switch entityType(id, p) {
		case "business":
			ref, err := requiredField(p, "complianceProfileRef", "business("+id+")")
			if err != nil {
				return nil, err
			}
			snap.Businesses = append(snap.Businesses, Business{
				BusinessID:           stringField(p, "businessId", id),
				ComplianceProfileRef: ref,
			})
		case "app":
			owning, err := requiredField(p, "owningBusinessId", "app("+id+")")
			if err != nil {
				return nil, err
			}
			ref, err := requiredField(p, "complianceProfileRef", "app("+id+")")
			if err != nil {
				return nil, err
			}
			snap.Apps = append(snap.Apps, App{
				AppID:                stringField(p, "appId", id),
				OwningBusinessID:     owning,
				ComplianceProfileRef: ref,
			})
		}
	}

	if len(snap.Businesses) == 0 {
		return nil, fmt.Errorf("entity: no business entities found in %s", path)
	}
	if len(snap.Apps) == 0 {
		return nil, fmt.Errorf("entity: no app entities found in %s", path)
	}
	return snap, nil
}

// entityType inspects the usual type-ish keys.
func entityType(id string, p map[string]any) string {
	for _, k := range []string{"entityType", "type", "kind", "category"} {
		if v, ok := p[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.ToLower(strings.TrimSpace(v))
		}
	}
	_ = id
	return ""
}

func stringField(p map[string]any, key, fallback string) string {
	if v, ok := p[key].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func requiredField(p map[string]any, key, ctx string) (string, error) {
	v, ok := p[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("entity: missing required field %q in %s", key, ctx)
	}
	return v, nil
}
