package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/betrace-hq/betrace-sub002/internal/buildinfo"
	"github.com/betrace-hq/betrace-sub002/internal/logging"
)

// global flags
var (
	userConfig  string
	cfgFile     string
	betraceAddr string

	f = NewFactory()
)

const (
	BeTraceAddrKey = "addr"
)

var rootCmd = &cobra.Command{
	Use:   "betrace",
	Short: fmt.Sprintf("BeTrace behavioral assurance (version: %s, commit: %s)", buildinfo.Version, buildinfo.CommitHash),
	Long: `BeTrace watches distributed traces for behavioral violations.
	It assembles spans into traces, evaluates sandboxed rules against them,
	raises signals on matches and turns signals into signed compliance evidence.`,
	Version: buildinfo.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, configErr := initUserConfig()
		logging.Init(nil)
		if configErr != nil { // handle error after logging is initialized
			return configErr
		}
		if configPath != "" {
			log.Debug().Msgf("using user config file: %s", configPath)
		}
		f.RemoteAddr = betraceAddr
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		if errors.Is(err, BeQuietError{}) {
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("execution failed")
		os.Exit(1)
	}
}

func init() {
	// setup pre-flag logger
	logging.InitDefault()

	rootCmd.PersistentFlags().StringVar(&userConfig, "user-config", "",
		"User configuration file for default values (default is $HOME/.betrace.yaml)")

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "betrace.yaml",
		"Path to the BeTrace server configuration file")

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console, json)")
	flags.Bool("no-color", false, "Disable color output")
	flags.StringVar(&betraceAddr, "server", "", "Address of the remote BeTrace server")

	bindFlag(flags, logging.LevelKey, "log-level")
	bindFlag(flags, logging.FormatKey, "log-format")
	bindFlag(flags, logging.NoColorKey, "no-color")
	bindFlag(flags, BeTraceAddrKey, "server")

	rootCmd.PersistentFlags().StringVar(&f.Tenant, "tenant", "", "Tenant ID for remote operations")

	viper.SetEnvPrefix("BETRACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))

	viper.AutomaticEnv()

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

// bindFlag links a declared flag to its viper key.
func bindFlag(flags *pflag.FlagSet, viperKey, name string) {
	_ = viper.BindPFlag(viperKey, flags.Lookup(name))
}

func initUserConfig() (string, error) {
	// reads in config file and ENV variables if set.
	if userConfig != "" {
		viper.SetConfigFile(userConfig)
	} else {
		// search order: current dir, $HOME, XDG config
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}

		config, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(config + "/betrace")
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName(".betrace")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundError) {
			return "", err
		}
	} else {
		return viper.ConfigFileUsed(), nil
	}

	return "", nil
}
