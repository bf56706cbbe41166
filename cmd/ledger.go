package cmd

import (
	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Administrative ledger commands",
	Long:  `Query the append-only audit ledger. Requires an admin session token (BETRACE_TOKEN).`,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
}
