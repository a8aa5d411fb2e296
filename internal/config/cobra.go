package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BindFlags registers peerd's flag surface on cmd, overlaying the
// environment-variable defaults from LoadConfig (MaxIOFS-MaxIOFS's
// cobra+viper layering idiom).
func BindFlags(cmd *cobra.Command) {
	cmd.Flags().String("node-id", "", "this node's identifier")
	cmd.Flags().Int("sync-port", 7420, "TCP port for the sync protocol listener")
	cmd.Flags().String("auth-token", "", "shared secret for handshake authentication")
	cmd.Flags().Duration("sync-interval", 0, "orchestrator pull interval (0 = use default)")
	cmd.Flags().Duration("election-interval", 0, "leader election interval (0 = use default)")
	cmd.Flags().String("metrics-addr", "", "stored in the config but not listened on; /metrics is served on --debug-addr")
	cmd.Flags().String("debug-addr", "", "listen address for the debug HTTP surface")
}

// LoadFromCommand builds a Config from env vars (LoadConfig's defaults)
// overlaid with any flags the caller explicitly set on cmd.
func LoadFromCommand(cmd *cobra.Command) (*Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("node-id") {
		cfg.NodeID = v.GetString("node-id")
	}
	if cmd.Flags().Changed("sync-port") {
		cfg.SyncPort = v.GetInt("sync-port")
	}
	if cmd.Flags().Changed("auth-token") {
		cfg.AuthToken = v.GetString("auth-token")
	}
	if cmd.Flags().Changed("sync-interval") {
		cfg.SyncInterval = v.GetDuration("sync-interval")
	}
	if cmd.Flags().Changed("election-interval") {
		cfg.ElectionInterval = v.GetDuration("election-interval")
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = v.GetString("metrics-addr")
	}
	if cmd.Flags().Changed("debug-addr") {
		cfg.DebugAddr = v.GetString("debug-addr")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
