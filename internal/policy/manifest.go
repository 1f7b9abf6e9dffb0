package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// profileDirPrefix is the folder prefix manifests use in relative file
// paths. Files resolve relative to the manifest's own directory, so the
// prefix is stripped to avoid doubling it.
const profileDirPrefix = "complianceProfiles/"

// BootError is a fatal configuration fault found while loading the
// manifest. The process must not start.
type BootError struct {
	Stage  string
	Detail string
}

func (e *BootError) Error() string {
	return fmt.Sprintf("compliance boot failure (%s): %s", e.Stage, e.Detail)
}

func bootErrf(stage, format string, args ...any) error {
	return &BootError{Stage: stage, Detail: fmt.Sprintf(format, args...)}
}

// Entry is one manifest reference to a policy file.
type Entry struct {
	PolicyID string `json:"policyId"`
	Version  string `json:"version"`
	File     string `json:"file"`
	SHA256   string `json:"sha256"`
}

// CIGuards controls how strictly manifest integrity is enforced.
// Both guards default to on; turning one off is an explicit, logged choice.
type CIGuards struct {
	RequireSha256Match           *bool `json:"requireSha256Match"`
	RequireVersionsMatchManifest *bool `json:"requireVersionsMatchManifest"`
}

func (g CIGuards) sha256Required() bool  { return boolOr(g.RequireSha256Match) }
func (g CIGuards) versionRequired() bool { return boolOr(g.RequireVersionsMatchManifest) }

// manifestDoc is the on-disk manifest shape.
type manifestDoc struct {
	Global   *Entry   `json:"global"`
	Profiles []Entry  `json:"profiles"`
	CIGuards CIGuards `json:"ciGuards"`
}

// Manifest is the loaded, hash-verified policy index. Immutable after Load;
// a restart is required to pick up manifest changes.
type Manifest struct {
	Global   *Document
	Guards   CIGuards
	byID     map[string]*Document
	globalID string
}

// Policy returns the document for a policyId, or an error naming the
// unknown reference.
func (m *Manifest) Policy(policyID string) (*Document, error) {
	d, ok := m.byID[policyID]
	if !ok {
		return nil, bootErrf("manifest", "unknown compliance policyId referenced: %s", policyID)
	}
	return d, nil
}

// Has reports whether a policyId is present in the index.
func (m *Manifest) Has(policyID string) bool {
	_, ok := m.byID[policyID]
	return ok
}

// PolicyIDs returns all loaded policy identifiers (unordered).
func (m *Manifest) PolicyIDs() []string {
	out := make([]string, 0, len(m.byID))
	for id := range m.byID {
		out = append(out, id)
	}
	return out
}

// NewStatic assembles a manifest from in-memory documents, bypassing file
// integrity checks. For tests and callers that build policies programmatically.
func NewStatic(global *Document, profiles ...*Document) *Manifest {
	m := &Manifest{
		Global:   global,
		byID:     map[string]*Document{global.PolicyID: global},
		globalID: global.PolicyID,
	}
	for _, p := range profiles {
		m.byID[p.PolicyID] = p
	}
	return m
}

// Load reads and verifies the compliance manifest at manifestPath.
// Every entry (global first, then profiles) is resolved relative to the
// manifest directory, hash-checked when ciGuards.requireSha256Match is on,
// and parsed; the embedded policyId must match the manifest entry, and the
// embedded version must match when ciGuards.requireVersionsMatchManifest
// is on. Any fault is fatal: governance cannot run on an unverified index.
func Load(manifestPath string) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, bootErrf("manifest", "missing compliance manifest %s: %v", manifestPath, err)
	}

	var doc manifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, bootErrf("manifest", "unreadable compliance manifest %s: %v", manifestPath, err)
	}
	if doc.Global == nil {
		return nil, bootErrf("manifest", "manifest missing global entry")
	}

	m := &Manifest{
		Guards:   doc.CIGuards,
		byID:     make(map[string]*Document),
		globalID: doc.Global.PolicyID,
	}

	dir := filepath.Dir(manifestPath)
	entries := append([]Entry{*doc.Global}, doc.Profiles...)
	for _, e := range entries {
		d, err := loadEntry(dir, e, doc.CIGuards)
		if err != nil {
			return nil, err
		}
		m.byID[e.PolicyID] = d
	}

	g, ok := m.byID[doc.Global.PolicyID]
	if !ok {
		return nil, bootErrf("manifest", "global policy not loaded")
	}
	m.Global = g

	return m, nil
}

func loadEntry(dir string, e Entry, guards CIGuards) (*Document, error) {
	if e.PolicyID == "" || e.Version == "" || e.File == "" {
		return nil, bootErrf("manifest", "manifest entry missing fields: policyId=%q version=%q file=%q",
			e.PolicyID, e.Version, e.File)
	}

	path := filepath.Join(dir, normalizeRelFile(e.File))
	if _, err := os.Stat(path); err != nil {
		return nil, bootErrf("manifest", "missing policy file for %s: %s", e.PolicyID, path)
	}

	if guards.sha256Required() {
		if e.SHA256 == "" {
			return nil, bootErrf("manifest", "missing sha256 in manifest for %s", e.PolicyID)
		}
		actual, err := hashFile(path)
		if err != nil {
			return nil, bootErrf("manifest", "cannot hash policy file for %s: %v", e.PolicyID, err)
		}
		if actual != e.SHA256 {
			return nil, bootErrf("manifest", "sha256 mismatch for %s manifest=%s actual=%s",
				e.PolicyID, e.SHA256, actual)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bootErrf("manifest", "cannot read policy file for %s: %v", e.PolicyID, err)
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, bootErrf("manifest", "cannot parse policy file for %s: %v", e.PolicyID, err)
	}

	if d.PolicyID != e.PolicyID {
		return nil, bootErrf("manifest", "policyId mismatch for %s in %s", e.PolicyID, path)
	}
	if guards.versionRequired() && d.Version != e.Version {
		return nil, bootErrf("manifest", "version mismatch for %s: manifest=%s file=%s",
			e.PolicyID, e.Version, d.Version)
	}

	return &d, nil
}

// normalizeRelFile strips the profile folder prefix and windows separators
// from a manifest-relative path.
func normalizeRelFile(rel string) string {
	rel = strings.ReplaceAll(rel, `\`, "/")
	rel = strings.TrimLeft(rel, "./")
	rel = strings.TrimPrefix(rel, profileDirPrefix)
	return rel
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
