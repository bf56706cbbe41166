package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/engine"
)

var rulesCheckCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Compile a rule source file and report pattern errors",
	Long: `Reads a trace pattern from FILE (or "-" for stdin) and compiles it.
Syntax errors are reported with their line and column.`,
	Example: `  betrace rules check slow-queries.rule
  echo 'trace has span where duration_ms > 500' | betrace rules check -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			source []byte
			err    error
		)
		if args[0] == "-" {
			source, err = os.ReadFile("/dev/stdin")
		} else {
			source, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("reading rule source: %w", err)
		}

		rule := core.Rule{
			ID:       "check",
			Name:     "check",
			Source:   string(source),
			Enabled:  true,
			Severity: core.SeverityMedium,
		}
		if _, err := engine.Compile(rule); err != nil {
			var syntaxErr core.SyntaxError
			if errors.As(err, &syntaxErr) {
				log.Error().Msgf("%s syntax error at line %d, column %d: %s",
					redCross, syntaxErr.Line, syntaxErr.Column, syntaxErr.Message)
				return BeQuietError{}
			}
			var semanticErr core.SemanticError
			if errors.As(err, &semanticErr) {
				log.Error().Msgf("%s semantic error: %s", redCross, semanticErr.Reason)
				return BeQuietError{}
			}
			return err
		}

		logSuccess("rule compiles cleanly")
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesCheckCmd)
}
