package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tasksLogsTail int

var tasksLogsCmd = &cobra.Command{
	Use:   "logs NAME",
	Short: "Show the log of a maintenance task's last run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if name == "" {
			return fmt.Errorf("task name cannot be empty")
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msgf("Retrieving logs for task '%s'...", name)
		logs, err := cli.GetTaskLogs(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("retrieving task logs: %w", err)
		}
		if tasksLogsTail > 0 && len(logs) > tasksLogsTail {
			logs = logs[len(logs)-tasksLogsTail:]
		}
		if len(logs) == 0 {
			fmt.Printf("no logs for task '%s'\n", name)
			return nil
		}

		for _, entry := range logs {
			fmt.Printf("%s | %s | %s\n",
				entry.Time.Format("15:04:05"),
				levelTag(entry.Level),
				entry.Message)
		}
		return nil
	},
}

func levelTag(level string) string {
	switch level {
	case "info":
		return color.GreenString("inf")
	case "warn":
		return color.YellowString("wrn")
	case "error":
		return color.RedString("err")
	case "debug":
		return color.New(color.Faint).Sprint("dbg")
	}
	return level
}

func init() {
	tasksCmd.AddCommand(tasksLogsCmd)

	tasksLogsCmd.Flags().IntVar(&tasksLogsTail, "tail", 0, "Show only the last N log entries")
}
