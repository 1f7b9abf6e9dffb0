// Package overrides persists runtime enable/disable flags for agents and
// layers. Disabling is an administrative act that demands a reason and a
// governance approval ticket; enabling demands neither. The store is one
// keyed document rewritten atomically on every change.
package overrides

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentfabric/govcore/internal/storage"
)

const schemaVersion = "1.0"

// Target kinds.
const (
	KindAgent = "agent"
	KindLayer = "layer"
)

// Override is one enable/disable record.
type Override struct {
	Enabled     bool   `json:"enabled"`
	TS          string `json:"ts"`
	Reason      string `json:"reason,omitempty"`
	GovApproval string `json:"gov_approval,omitempty"`
}

// doc is the persisted shape.
type doc struct {
	SchemaVersion string              `json:"schema_version"`
	Overrides     map[string]Override `json:"overrides"`
}

// Store serializes all writes behind one mutex and keeps a cache of the
// persisted document. The cache can be invalidated by the file watcher
// when the backing document changes out-of-band.
type Store struct {
	backend storage.Store

	mu     sync.Mutex
	cache  *doc
	loaded bool
}

// NewStore creates a Store over the given backend.
func NewStore(backend storage.Store) *Store {
	return &Store{backend: backend}
}

// Invalidate drops the in-memory cache; the next read reloads from the
// backend. Called by the watcher on external modification.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = nil
	s.loaded = false
}

// load reads the document, tolerating absence and corruption by starting
// fresh: an unreadable override store must never take the platform down,
// it only loses overrides (which fail toward enabled).
func (s *Store) load() *doc {
	if s.loaded && s.cache != nil {
		return s.cache
	}

	d := &doc{SchemaVersion: schemaVersion, Overrides: map[string]Override{}}
	if raw, err := s.backend.ReadDoc(); err == nil && raw != nil {
		var parsed doc
		if json.Unmarshal(raw, &parsed) == nil && parsed.Overrides != nil {
			if parsed.SchemaVersion == "" {
				parsed.SchemaVersion = schemaVersion
			}
			d = &parsed
		}
	}
	s.cache = d
	s.loaded = true
	return d
}

func (s *Store) write(d *doc) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("overrides: marshal: %w", err)
	}
	if err := s.backend.ReplaceDoc(append(data, '\n')); err != nil {
		return fmt.Errorf("overrides: persist: %w", err)
	}
	return nil
}

func agentKey(agentID string) string { return KindAgent + ":" + agentID }
func layerKey(key string) string     { return KindLayer + ":" + key }

// set records an override. Disabling requires reason and approval.
func (s *Store) set(key string, enabled bool, reason, govApproval string) error {
	if !enabled {
		if reason == "" {
			return fmt.Errorf("overrides: disabling %s requires a reason", key)
		}
		if govApproval == "" {
			return fmt.Errorf("overrides: disabling %s requires a governance approval id", key)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.load()
	d.Overrides[key] = Override{
		Enabled:     enabled,
		TS:          time.Now().UTC().Format(time.RFC3339),
		Reason:      reason,
		GovApproval: govApproval,
	}
	return s.write(d)
}

// SetAgentEnabled toggles an agent. Each call persists a fresh record even
// when the effective state does not change.
func (s *Store) SetAgentEnabled(agentID string, enabled bool, reason, govApproval string) error {
	return s.set(agentKey(agentID), enabled, reason, govApproval)
}

// SetLayerEnabled toggles a layer.
func (s *Store) SetLayerEnabled(key string, enabled bool, reason, govApproval string) error {
	return s.set(layerKey(key), enabled, reason, govApproval)
}

func (s *Store) enabled(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ov, ok := s.load().Overrides[key]
	if !ok {
		return true
	}
	return ov.Enabled
}

// IsAgentEnabled reports the effective agent state; absent means enabled.
func (s *Store) IsAgentEnabled(agentID string) bool { return s.enabled(agentKey(agentID)) }

// IsLayerEnabled reports the effective layer state; absent means enabled.
func (s *Store) IsLayerEnabled(key string) bool { return s.enabled(layerKey(key)) }

// DisableMeta returns the override record only when the layer is disabled,
// for surfacing who turned it off and why.
func (s *Store) DisableMeta(key string) *Override {
	s.mu.Lock()
	defer s.mu.Unlock()

	ov, ok := s.load().Overrides[layerKey(key)]
	if !ok || ov.Enabled {
		return nil
	}
	return &ov
}

// Disabled lists currently disabled targets of the given kind, keyed by id.
func (s *Store) Disabled(kind string) map[string]Override {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := kind + ":"
	out := map[string]Override{}
	for k, ov := range s.load().Overrides {
		if !ov.Enabled && len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out[k[len(prefix):]] = ov
		}
	}
	return out
}
