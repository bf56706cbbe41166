package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tasksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the server's maintenance tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Retrieving tasks...")
		tasks, err := cli.ListTasks(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		if len(tasks) == 0 {
			fmt.Println("no maintenance tasks registered")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Task", "State", "Last Run", "Next Run", "Result"})

		for _, task := range tasks {
			state := "idle"
			if task.Running {
				state = color.BlueString("running")
			}

			result := task.LastResult
			switch {
			case result == "success":
				result = greenCheck + " success"
			case result != "":
				result = redCross + " " + result
			}

			t.AppendRow(table.Row{
				color.New(color.Bold).Sprint(task.Name),
				state,
				relativeTime(task.LastRun, "never", "%s ago", time.Since),
				relativeTime(task.NextRun, "n/a", "in %s", time.Until),
				result,
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

// relativeTime renders ts against now, or fallback for the zero time.
func relativeTime(ts time.Time, fallback, format string, rel func(time.Time) time.Duration) string {
	if ts.IsZero() {
		return fallback
	}
	return fmt.Sprintf(format, rel(ts).Round(time.Second))
}

func init() {
	tasksCmd.AddCommand(tasksListCmd)
}
