package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

var signalsStatusCmd = &cobra.Command{
	Use:   "status ID STATUS",
	Short: "Transition a signal's triage status",
	Long: `Moves a signal to a new triage status.
Valid transitions: open -> investigating, open -> resolved, investigating -> resolved.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid signal id: %w", err)
		}
		status := core.SignalStatus(args[1])
		if !status.IsValid() {
			return fmt.Errorf("invalid status %q", args[1])
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		sig, err := cli.SetSignalStatus(cmd.Context(), id, status)
		if err != nil {
			return logError(err, "", "failed to transition signal")
		}
		logSuccess("signal %s is now %s", bold(truncate(sig.ID.String(), 13)), string(sig.Status))
		return nil
	},
}

func init() {
	signalsCmd.AddCommand(signalsStatusCmd)
}
