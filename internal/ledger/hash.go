package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Genesis is the fixed sentinel used as the previous id of the first event.
const Genesis = "GENESIS"

// canonJSON produces deterministic canonical JSON for hashing: sorted keys,
// compact separators, no HTML escaping. Must remain stable across versions.
func canonJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("ledger: canonical marshal: %w", err)
	}
	// Encoder appends a newline; the canonical form has none.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ComputeEventIDV0 is the legacy format: sha256(canon(payload)), no chain
// linkage. Recognized for backward compatibility only.
func ComputeEventIDV0(e *Event) (string, error) {
	payload, err := canonJSON(e.hashPayload())
	if err != nil {
		return "", err
	}
	return sha256Hex(payload), nil
}

// ComputeEventIDV1 is the chained format:
// sha256(prevEventID + "|" + canon(payload)).
func ComputeEventIDV1(prevEventID string, e *Event) (string, error) {
	payload, err := canonJSON(e.hashPayload())
	if err != nil {
		return "", err
	}
	return sha256Hex([]byte(prevEventID + "|" + string(payload))), nil
}

// foldChain advances the derived running digest of all event ids, used for
// external cross-checking of a verification run.
func foldChain(acc, eventID string) string {
	return sha256Hex([]byte(acc + "|" + eventID))
}
