package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/pkg/client"
)

var (
	signalsListSeverity string
	signalsListStatus   string
	signalsListRule     string
	signalsListLimit    int
)

var signalsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List signals for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Retrieving signals...")
		resp, err := cli.ListSignals(cmd.Context(), client.ListSignalsOpts{
			Severity: signalsListSeverity,
			Status:   signalsListStatus,
			RuleID:   signalsListRule,
			Limit:    signalsListLimit,
		})
		if err != nil {
			return fmt.Errorf("listing signals: %w", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Rule", "Severity", "Status", "Trace", "Created"})

		for _, sig := range resp.Signals {
			t.AppendRow(table.Row{
				truncate(sig.ID.String(), 13),
				sig.RuleName,
				colorSeverity(sig.Severity),
				string(sig.Status),
				truncate(sig.TraceID, 20),
				sig.CreatedAt.Format(time.RFC3339),
			})
		}

		applyTableFormat(t)
		t.Render()

		log.Info().Msgf("Showing %d signals (next offset: %d)", len(resp.Signals), resp.NextOffset)
		return nil
	},
}

func colorSeverity(s core.Severity) string {
	switch s {
	case core.SeverityCritical:
		return color.New(color.FgRed, color.Bold).Sprint(s.String())
	case core.SeverityHigh:
		return color.RedString(s.String())
	case core.SeverityMedium:
		return color.YellowString(s.String())
	case core.SeverityLow:
		return color.CyanString(s.String())
	default:
		return faint(s.String())
	}
}

func init() {
	signalsCmd.AddCommand(signalsListCmd)

	signalsListCmd.Flags().StringVar(&signalsListSeverity, "severity", "", "Filter by severity (info, low, medium, high, critical)")
	signalsListCmd.Flags().StringVar(&signalsListStatus, "status", "", "Filter by status (open, investigating, resolved)")
	signalsListCmd.Flags().StringVar(&signalsListRule, "rule", "", "Filter by rule ID")
	signalsListCmd.Flags().IntVarP(&signalsListLimit, "limit", "n", 25, "Number of signals to retrieve")
}
