package cmd

import (
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Work with trace pattern rules",
	Long:  `Utilities for checking and debugging trace pattern rules locally`,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
