package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	toggleActor    string
	toggleReason   string
	toggleApproval string
)

func init() {
	rootCmd.AddCommand(layerCmd)
	rootCmd.AddCommand(agentCmd)

	layerCmd.AddCommand(layerEnableCmd)
	layerCmd.AddCommand(layerDisableCmd)
	agentCmd.AddCommand(agentEnableCmd)
	agentCmd.AddCommand(agentDisableCmd)

	for _, c := range []*cobra.Command{layerEnableCmd, layerDisableCmd, agentEnableCmd, agentDisableCmd} {
		c.Flags().StringVar(&toggleActor, "actor", "", "Who is making this change")
		c.MarkFlagRequired("actor")
	}
	for _, c := range []*cobra.Command{layerDisableCmd, agentDisableCmd} {
		c.Flags().StringVar(&toggleReason, "reason", "", "Why the target is being disabled")
		c.Flags().StringVar(&toggleApproval, "approval", "", "Governance approval id")
		c.MarkFlagRequired("reason")
		c.MarkFlagRequired("approval")
	}
}

var layerCmd = &cobra.Command{
	Use:   "layer",
	Short: "Layer override operations",
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Agent override operations",
}

var layerEnableCmd = &cobra.Command{
	Use:   "enable <layer-key>",
	Short: "Re-enable a layer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle("layer", args[0], true)
	},
}

var layerDisableCmd = &cobra.Command{
	Use:   "disable <layer-key>",
	Short: "Disable a layer (requires --reason and --approval)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle("layer", args[0], false)
	},
}

var agentEnableCmd = &cobra.Command{
	Use:   "enable <agent-id>",
	Short: "Re-enable an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle("agent", args[0], true)
	},
}

var agentDisableCmd = &cobra.Command{
	Use:   "disable <agent-id>",
	Short: "Disable an agent (requires --reason and --approval)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle("agent", args[0], false)
	},
}

// runToggle boots the full system so the toggle is validated against the
// layer registry and ledger-logged like any other administrative act.
func runToggle(kind, target string, enable bool) error {
	sys, err := bootSystem()
	if err != nil {
		return err
	}
	defer sys.Close()

	switch kind {
	case "layer":
		err = sys.Gate.SetLayerEnabled(target, enable, toggleActor, toggleReason, toggleApproval)
	case "agent":
		err = sys.Gate.SetAgentEnabled(target, enable, toggleActor, toggleReason, toggleApproval)
	}
	if err != nil {
		return err
	}

	state := "disabled"
	if enable {
		state = "enabled"
	}
	fmt.Printf("%s %s %s\n", kind, target, state)
	return nil
}
