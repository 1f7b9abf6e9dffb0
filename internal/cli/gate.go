package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var gateStatusJSON bool

func init() {
	rootCmd.AddCommand(gateCmd)
	gateCmd.AddCommand(gateStatusCmd)
	gateStatusCmd.Flags().BoolVar(&gateStatusJSON, "json", false, "Print the full status document")
}

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Global execution gate operations",
}

var gateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report every required layer's standing and the aggregate verdict",
	RunE:  runGateStatus,
}

func runGateStatus(cmd *cobra.Command, args []string) error {
	sys, err := bootSystem()
	if err != nil {
		return err
	}
	defer sys.Close()

	st := sys.Gate.Status()
	if gateStatusJSON {
		out, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
	fmt.Println(st.OneLiner())
	if !st.Pass {
		os.Exit(1)
	}
	return nil
}
