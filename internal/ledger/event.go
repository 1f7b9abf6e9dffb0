// Package ledger is the append-only, hash-chained governance event log.
// Every governance-relevant mutation lands here exactly once; entries are
// never mutated or deleted, and the chain makes any undetected insertion,
// deletion, or reordering detectable.
package ledger

import (
	"encoding/json"
	"fmt"
)

// stableFields is the fixed subset of event fields included in hashing.
// This list must NEVER change without a chain-format version bump, or all
// historical event ids become unverifiable.
var stableFields = []string{
	"action",
	"actor",
	"source",
	"reason",
	"orgId",
	"entityId",
	"kind",
	"name",
	"beforeHash",
	"afterHash",
	"ts",
	"tsMs",
}

// Event is one ledger entry. EventID is computed by Append, never accepted
// from a caller. Meta carries free-form fields that ride along unhashed.
type Event struct {
	EventID     string `json:"eventId"`
	PrevEventID string `json:"prevEventId"`

	Action     string `json:"action,omitempty"`
	Actor      string `json:"actor,omitempty"`
	Source     string `json:"source,omitempty"`
	Reason     string `json:"reason,omitempty"`
	OrgID      string `json:"orgId,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Name       string `json:"name,omitempty"`
	BeforeHash string `json:"beforeHash,omitempty"`
	AfterHash  string `json:"afterHash,omitempty"`
	TS         string `json:"ts,omitempty"`
	TSMs       int64  `json:"tsMs,omitempty"`

	Meta map[string]any `json:"-"`

	// present records the stable keys exactly as they appeared in the
	// stored line, including null and empty values. Hashing a parsed
	// event must reproduce the writer's payload byte for byte, so a
	// legacy event written with "reason": null still verifies.
	present map[string]any
}

// hashPayload returns the stable fields present on the event, keyed by
// wire name. Parsed events hash the keys as stored; events built in code
// omit absent (zero) fields, which is what MarshalJSON persists.
func (e *Event) hashPayload() map[string]any {
	if e.present != nil {
		payload := make(map[string]any, len(e.present))
		for k, v := range e.present {
			payload[k] = v
		}
		return payload
	}

	full := map[string]any{
		"action":     e.Action,
		"actor":      e.Actor,
		"source":     e.Source,
		"reason":     e.Reason,
		"orgId":      e.OrgID,
		"entityId":   e.EntityID,
		"kind":       e.Kind,
		"name":       e.Name,
		"beforeHash": e.BeforeHash,
		"afterHash":  e.AfterHash,
		"ts":         e.TS,
	}
	payload := make(map[string]any, len(stableFields))
	for _, k := range stableFields {
		if k == "tsMs" {
			if e.TSMs != 0 {
				payload[k] = e.TSMs
			}
			continue
		}
		if s, _ := full[k].(string); s != "" {
			payload[k] = s
		}
	}
	return payload
}

// MarshalJSON flattens Meta into the top-level object. Named fields win
// over colliding Meta keys.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Meta)+14)
	for k, v := range e.Meta {
		out[k] = v
	}
	out["eventId"] = e.EventID
	out["prevEventId"] = e.PrevEventID
	for k, v := range e.hashPayload() {
		out[k] = v
	}
	return canonJSON(out)
}

// UnmarshalJSON splits known fields from free-form Meta.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("ledger: parse event: %w", err)
	}

	e.present = make(map[string]any, len(stableFields))
	for _, k := range stableFields {
		if v, ok := raw[k]; ok {
			e.present[k] = v
		}
	}

	str := func(k string) string {
		s, _ := raw[k].(string)
		delete(raw, k)
		return s
	}

	e.EventID = str("eventId")
	e.PrevEventID = str("prevEventId")
	e.Action = str("action")
	e.Actor = str("actor")
	e.Source = str("source")
	e.Reason = str("reason")
	e.OrgID = str("orgId")
	e.EntityID = str("entityId")
	e.Kind = str("kind")
	e.Name = str("name")
	e.BeforeHash = str("beforeHash")
	e.AfterHash = str("afterHash")
	e.TS = str("ts")
	if n, ok := raw["tsMs"].(float64); ok {
		e.TSMs = int64(n)
	}
	delete(raw, "tsMs")

	if len(raw) > 0 {
		e.Meta = raw
	} else {
		e.Meta = nil
	}
	return nil
}
