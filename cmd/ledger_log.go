package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/betrace-hq/betrace-sub002/pkg/client"
)

var (
	ledgerLogPartition string
	ledgerLogType      int
	ledgerLogLimit     int
	ledgerLogAfter     int64
)

// ledgerLogCmd represents the ledger log command
var ledgerLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Retrieve and display audit transfers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Info().Msg("Fetching ledger transfers...")
		page, err := cli.QueryLedger(cmd.Context(), client.QueryLedgerOpts{
			Partition: ledgerLogPartition,
			Type:      ledgerLogType,
			Limit:     ledgerLogLimit,
			After:     ledgerLogAfter,
		})
		if err != nil {
			return err
		}

		log.Info().Msgf("Retrieved %d transfers", len(page.Transfers))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Committed", "Type", "Trace", "Rule", "Signal", "Detail",
		})

		for _, tr := range page.Transfers {
			t.AppendRow(table.Row{
				time.Unix(0, tr.CommittedAt).UTC().Format(time.RFC3339Nano),
				tr.Type,
				truncate(tr.Metadata.TraceID, 20),
				tr.Metadata.RuleID,
				truncate(tr.Metadata.SignalID, 13),
				truncate(tr.Metadata.Detail, 40),
			})
		}

		applyTableFormat(t)
		t.Render()

		if page.NextToken != 0 {
			log.Info().Msgf("More results available, continue with --after %d", page.NextToken)
		}
		return nil
	},
}

func init() {
	ledgerCmd.AddCommand(ledgerLogCmd)

	ledgerLogCmd.Flags().StringVar(&ledgerLogPartition, "partition", "", "Ledger partition (tenant ID)")
	ledgerLogCmd.Flags().IntVar(&ledgerLogType, "type", 0, "Filter by transfer type")
	ledgerLogCmd.Flags().IntVarP(&ledgerLogLimit, "limit", "n", 25, "Number of transfers to retrieve")
	ledgerLogCmd.Flags().Int64Var(&ledgerLogAfter, "after", 0, "Continuation token from a previous page")
	_ = ledgerLogCmd.MarkFlagRequired("partition")
}
