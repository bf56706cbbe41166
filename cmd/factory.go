package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/betrace-hq/betrace-sub002/internal/cliconfig"
	"github.com/betrace-hq/betrace-sub002/internal/config"
	"github.com/betrace-hq/betrace-sub002/pkg/client"
)

type Factory struct {
	// RemoteAddr is the address of the BeTrace server to connect to.
	RemoteAddr string

	// Tenant is the tenant ID sent on remote requests.
	Tenant string
}

func NewFactory() *Factory {
	return &Factory{}
}

// GetClient returns an authenticated HTTP client for remote operations.
func (f *Factory) GetClient() (*client.Client, error) {
	server := f.RemoteAddr // prio 1: command-line flag
	if server == "" {
		server = viper.GetString(BeTraceAddrKey) // prio 2: config/env
	}
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set BETRACE_ADDR)")
	}

	var token string
	tenant := f.Tenant // tenant prio 1: command-line flag
	if cfg, err := cliconfig.Load(); err == nil {
		if cred, err := cfg.GetCredential(server); err == nil {
			token = cred.Token // token prio 1: saved credential
			if tenant == "" {
				tenant = cred.DefaultTenant // tenant prio 2: saved default
			}
		}
	}

	if envToken := os.Getenv("BETRACE_TOKEN"); envToken != "" { // token prio 2: env var
		token = envToken
	}

	opts := []client.Option{client.WithAuthToken(token)}
	if tenant != "" {
		opts = append(opts, client.WithTenant(tenant))
	}
	return client.New(server, opts...), nil
}

// LoadServerConfig reads the BeTrace server configuration file.
func (f *Factory) LoadServerConfig() (*config.Config, error) {
	if cfgFile == "" {
		return nil, fmt.Errorf("config file not specified (use --config)")
	}
	return config.Load(cfgFile)
}
