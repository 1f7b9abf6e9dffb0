package ledger

import "fmt"

// Chain formats reported by Verify.
const (
	FormatEmpty         = "empty"
	FormatV1            = "v1"
	FormatMixed         = "mixed_v0_v1"
	FormatLegacyGenesis = "mixed_legacy_unverified_genesis"
)

// VerifyResult is the outcome of a full-chain verification walk.
type VerifyResult struct {
	Pass   bool   `json:"pass"`
	Count  int    `json:"count"`
	Format string `json:"format,omitempty"`

	LegacyDetected          bool `json:"legacyDetected"`
	LegacyUnverifiedGenesis bool `json:"legacyUnverifiedGenesis"`

	// Populated on failure.
	BrokenIndex int    `json:"brokenIndex,omitempty"`
	Reason      string `json:"reason,omitempty"`
	EventID     string `json:"eventId,omitempty"`

	// Running digest of all event ids, for external cross-checking.
	DerivedChainHead string `json:"derivedChainHead,omitempty"`
	HeadEventID      string `json:"headEventId,omitempty"`
}

// OneLiner renders the auditor-safe summary of a verification result.
func (r VerifyResult) OneLiner() string {
	if !r.Pass {
		return fmt.Sprintf("LEDGER FAIL: %s at index=%d.", r.Reason, r.BrokenIndex)
	}
	switch {
	case r.Count == 0:
		return "LEDGER PASS: no events."
	case r.LegacyUnverifiedGenesis:
		return fmt.Sprintf("LEDGER PASS: events=%d (legacy genesis tolerated; derived chain active).", r.Count)
	case r.LegacyDetected:
		return fmt.Sprintf("LEDGER PASS: events=%d (legacy v0 detected; derived chain active).", r.Count)
	default:
		return fmt.Sprintf("LEDGER PASS: chained v1 verified, events=%d.", r.Count)
	}
}

// Verify walks events oldest→newest and validates the hash chain.
//
// Per event: if the stored id matches the v1 hash (using the running
// previous id) the chain extended correctly. If it matches only the v0
// hash, legacy format is noted and the walk continues through the stored
// id. A mismatch against both is tolerated only at index 0 — the single
// unverified-genesis exception for migrated history — and is a hard
// failure at any later index.
func (l *Ledger) Verify(entityID string) (VerifyResult, error) {
	events, err := l.Read(0, entityID)
	if err != nil {
		return VerifyResult{}, err
	}
	if len(events) == 0 {
		return VerifyResult{Pass: true, Format: FormatEmpty}, nil
	}

	res := VerifyResult{}
	prev := Genesis
	derived := Genesis

	for idx := range events {
		ev := &events[idx]

		if len(ev.EventID) < 8 {
			return VerifyResult{
				Count: len(events), BrokenIndex: idx, Reason: "missing_eventId",
			}, nil
		}

		v0, err := ComputeEventIDV0(ev)
		if err != nil {
			return VerifyResult{}, err
		}
		v1, err := ComputeEventIDV1(prev, ev)
		if err != nil {
			return VerifyResult{}, err
		}

		switch ev.EventID {
		case v1:
			prev = ev.EventID
		case v0:
			res.LegacyDetected = true
			prev = ev.EventID
		default:
			if idx != 0 {
				return VerifyResult{
					Count:       len(events),
					BrokenIndex: idx,
					Reason:      "hash_mismatch",
					EventID:     ev.EventID,
				}, nil
			}
			res.LegacyDetected = true
			res.LegacyUnverifiedGenesis = true
			prev = ev.EventID
		}

		derived = foldChain(derived, ev.EventID)
	}

	res.Pass = true
	res.Count = len(events)
	res.DerivedChainHead = derived
	res.HeadEventID = prev
	switch {
	case res.LegacyUnverifiedGenesis:
		res.Format = FormatLegacyGenesis
	case res.LegacyDetected:
		res.Format = FormatMixed
	default:
		res.Format = FormatV1
	}
	return res, nil
}
