package cmd

import (
	"github.com/spf13/cobra"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "View and triage signals",
	Long:  `List signals raised by rule evaluation and change their triage status.`,
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}
