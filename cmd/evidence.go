package cmd

import (
	"github.com/spf13/cobra"
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Generate and verify compliance evidence",
	Long:  `Turn signals into signed evidence records and verify existing records.`,
}

func init() {
	rootCmd.AddCommand(evidenceCmd)
}
