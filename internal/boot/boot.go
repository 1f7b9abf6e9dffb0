// Package boot runs the startup verification sequence and assembles the
// running system. The order is deliberate: policies are proven before the
// topology is checked against them, the ledger is proven before anything
// writes to it, and the gate is built last so it only ever sees verified
// collaborators.
package boot

import (
	"fmt"
	"io"

	"github.com/agentfabric/govcore/internal/checks"
	"github.com/agentfabric/govcore/internal/config"
	"github.com/agentfabric/govcore/internal/entity"
	"github.com/agentfabric/govcore/internal/gate"
	"github.com/agentfabric/govcore/internal/hierarchy"
	"github.com/agentfabric/govcore/internal/layers"
	"github.com/agentfabric/govcore/internal/ledger"
	"github.com/agentfabric/govcore/internal/overrides"
	"github.com/agentfabric/govcore/internal/policy"
	"github.com/agentfabric/govcore/internal/storage"
)

// System is the fully verified running core.
type System struct {
	Config       *config.Config
	Manifest     *policy.Manifest
	Snapshot     *entity.Snapshot
	Layers       *layers.Registry
	Checks       *checks.Registry
	Overrides    *overrides.Store
	Ledger       *ledger.Ledger
	LedgerVerify ledger.VerifyResult
	Gate         *gate.Gate

	ledgerStore   storage.Store
	overrideStore storage.Store
}

// Close releases the persistence backends.
func (s *System) Close() error {
	var first error
	for _, st := range []storage.Store{s.ledgerStore, s.overrideStore} {
		if st == nil {
			continue
		}
		if err := st.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Up verifies and assembles the system. Progress and warnings go to logw
// (stderr in the CLI). Any returned error means the service must not
// accept traffic.
func Up(cfg *config.Config, logw io.Writer) (*System, error) {
	sys := &System{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			sys.Close()
		}
	}()

	// 1. Signed policy manifest.
	manifest, err := policy.Load(cfg.Paths.Manifest)
	if err != nil {
		return nil, err
	}
	sys.Manifest = manifest
	fmt.Fprintf(logw, "boot: manifest verified, policies=%d\n", len(manifest.PolicyIDs()))

	// 2. Entity topology snapshot.
	snap, err := entity.LoadSnapshot(cfg.Paths.EntityRegistry)
	if err != nil {
		return nil, err
	}
	sys.Snapshot = snap

	// 3. No-downgrade verification across the hierarchy.
	verifier := &hierarchy.Verifier{
		Manifest:  manifest,
		Allowlist: allowlistFrom(cfg.Hierarchy.Allowlist),
	}
	if err := verifier.Verify(snap); err != nil {
		return nil, err
	}
	fmt.Fprintf(logw, "boot: hierarchy verified, businesses=%d apps=%d\n",
		len(snap.Businesses), len(snap.Apps))

	// 4. Audit ledger: open and prove the chain before any write.
	ledStore, err := openLedgerStore(cfg)
	if err != nil {
		return nil, err
	}
	sys.ledgerStore = ledStore
	led, err := ledger.Open(ledStore)
	if err != nil {
		return nil, err
	}
	sys.Ledger = led

	res, err := led.Verify("")
	if err != nil {
		return nil, err
	}
	sys.LedgerVerify = res
	fmt.Fprintf(logw, "boot: %s\n", res.OneLiner())
	if !res.Pass {
		if cfg.Ledger.Strict {
			return nil, fmt.Errorf("boot: ledger verification failed: %s at index=%d",
				res.Reason, res.BrokenIndex)
		}
		fmt.Fprintf(logw, "boot: WARNING continuing with unverified ledger (strict=false)\n")
	}

	// 5. Check registry: builtin pack first, then declared expressions.
	cr := checks.NewRegistry()
	if err := checks.RegisterBuiltins(cr); err != nil {
		return nil, err
	}
	sys.Checks = cr

	// 6. Layer registry.
	lr, err := layers.Load(cfg.Paths.LayerRegistry)
	if err != nil {
		return nil, err
	}
	if err := lr.RegisterExprChecks(cr); err != nil {
		return nil, err
	}
	sys.Layers = lr

	// 7. Override store.
	ovStore, err := storage.OpenFile("", cfg.Paths.Overrides)
	if err != nil {
		return nil, err
	}
	sys.overrideStore = ovStore
	sys.Overrides = overrides.NewStore(ovStore)

	// 8. The gate, plus the readiness report operators read first.
	sys.Gate = gate.New(lr, cr, sys.Overrides, led)
	for _, l := range lr.Layers {
		ready, details := layers.EnforcedReady(&l, cr)
		if ready {
			continue
		}
		fmt.Fprintf(logw, "boot: layer %s not enforced-ready: declared_any=%v missing=%v\n",
			l.LayerKey, details.DeclaredAny, details.Missing)
	}
	fmt.Fprintf(logw, "boot: %s\n", sys.Gate.Status().OneLiner())

	ok = true
	return sys, nil
}

func openLedgerStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Ledger.Backend {
	case "sqlite":
		return storage.OpenSQLite(cfg.Paths.Ledger)
	default:
		return storage.OpenFile(cfg.Paths.Ledger, "")
	}
}

func allowlistFrom(m map[string][]string) hierarchy.Allowlist {
	if len(m) == 0 {
		return nil
	}
	out := make(hierarchy.Allowlist, len(m))
	for biz, profiles := range m {
		set := make(map[string]bool, len(profiles))
		for _, p := range profiles {
			set[p] = true
		}
		out[biz] = set
	}
	return out
}
