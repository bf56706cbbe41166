package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/betrace-hq/betrace-sub002/internal/config"
)

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			log.Error().Err(err).Msg("Configuration is invalid.")
			return BeQuietError{}
		}

		rules := 0
		for _, tenant := range cfg.Tenants {
			rules += len(tenant.Rules)
		}
		logSuccess("Configuration is valid (%d tenants, %d rules).", len(cfg.Tenants), rules)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
