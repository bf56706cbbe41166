package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	evidenceFramework string
	evidenceControl   string
)

var evidenceGenerateCmd = &cobra.Command{
	Use:     "generate SIGNAL_ID",
	Short:   "Generate a signed evidence record for a signal",
	Example: `  betrace evidence generate 7b9e... --framework SOC2 --control CC7.2`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		signalID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid signal id: %w", err)
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		signed, correlation, err := cli.GenerateEvidence(cmd.Context(), signalID, evidenceFramework, evidenceControl)
		if err != nil {
			return logError(err, correlation, "failed to generate evidence")
		}

		logSuccess("evidence %s generated (%s %s, key %s)",
			bold(truncate(signed.Evidence.ID.String(), 13)),
			signed.Evidence.Framework, signed.Evidence.ControlID,
			truncate(signed.KeyID, 13))
		return nil
	},
}

func init() {
	evidenceCmd.AddCommand(evidenceGenerateCmd)

	evidenceGenerateCmd.Flags().StringVar(&evidenceFramework, "framework", "", "Compliance framework (e.g. SOC2)")
	evidenceGenerateCmd.Flags().StringVar(&evidenceControl, "control", "", "Control ID within the framework (e.g. CC7.2)")
	_ = evidenceGenerateCmd.MarkFlagRequired("framework")
	_ = evidenceGenerateCmd.MarkFlagRequired("control")
}
