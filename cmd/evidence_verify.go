package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

var evidenceVerifyCmd = &cobra.Command{
	Use:   "verify FILE",
	Short: "Verify a signed evidence record",
	Long: `Reads a signed evidence record (JSON) from FILE and checks its
signature against the server's key material. Records predating signing
support verify as "unknown", not invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading evidence file: %w", err)
		}
		var signed core.SignedEvidence
		if err := json.Unmarshal(data, &signed); err != nil {
			return fmt.Errorf("parsing evidence file: %w", err)
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		result, err := cli.VerifyEvidence(cmd.Context(), signed)
		if err != nil {
			return logError(err, "", "failed to verify evidence")
		}

		switch {
		case result.Valid == nil:
			logSuccess("record is unsigned; verification result is %s", bold("unknown"))
		case *result.Valid:
			logSuccess("signature is %s", bold("valid"))
		default:
			return logError(fmt.Errorf("%s", result.Error), "", "signature is invalid")
		}
		return nil
	},
}

func init() {
	evidenceCmd.AddCommand(evidenceVerifyCmd)
}
