package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentfabric/govcore/internal/ledger"
	"github.com/agentfabric/govcore/internal/storage"
)

var (
	ledgerTailLines int
	ledgerEntity    string
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd)
	ledgerCmd.AddCommand(ledgerTailCmd)
	ledgerCmd.PersistentFlags().StringVar(&ledgerEntity, "entity", "", "Filter to one entityId")
	ledgerTailCmd.Flags().IntVarP(&ledgerTailLines, "lines", "n", 10, "Number of recent events to show")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Audit ledger operations",
	Long:  "Commands for verifying and inspecting the hash-chained audit ledger.",
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify hash chain integrity of the audit ledger",
	Long: "Walks the ledger oldest to newest and validates every event id\n" +
		"against the chain. Exits 0 if valid, 1 if tampered.",
	RunE: runLedgerVerify,
}

var ledgerTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent ledger events",
	RunE:  runLedgerTail,
}

// openLedger opens just the ledger from config, skipping the rest of the
// boot sequence: auditors verify chains on hosts where the manifest and
// registry may not be present.
func openLedger() (*ledger.Ledger, storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	var store storage.Store
	switch cfg.Ledger.Backend {
	case "sqlite":
		store, err = storage.OpenSQLite(cfg.Paths.Ledger)
	default:
		store, err = storage.OpenFile(cfg.Paths.Ledger, "")
	}
	if err != nil {
		return nil, nil, err
	}

	led, err := ledger.Open(store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return led, store, nil
}

func runLedgerVerify(cmd *cobra.Command, args []string) error {
	led, store, err := openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := led.Verify(ledgerEntity)
	if err != nil {
		return err
	}
	fmt.Println(res.OneLiner())
	if !res.Pass {
		os.Exit(1)
	}
	return nil
}

func runLedgerTail(cmd *cobra.Command, args []string) error {
	led, store, err := openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := led.List(ledgerTailLines, ledgerEntity)
	if err != nil {
		return err
	}
	for _, ev := range events {
		line, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		fmt.Println(string(line))
	}
	return nil
}
