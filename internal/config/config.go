// Package config loads and validates peerd's runtime configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/peerdoc/peerdoc/internal/discovery"
	"github.com/peerdoc/peerdoc/internal/election"
	"github.com/peerdoc/peerdoc/internal/errs"
	"github.com/peerdoc/peerdoc/internal/gossip"
	"github.com/peerdoc/peerdoc/internal/health"
	"github.com/peerdoc/peerdoc/internal/orchestrator"
)

// Config holds every tunable for one peerd instance. Env var loading
// (LoadConfig) is the documented default path; cmd/peerd layers a
// cobra/viper flag overlay on top (see cobra.go).
type Config struct {
	NodeID    string `mapstructure:"node_id"`
	SyncPort  int    `mapstructure:"sync_port"`
	AuthToken string `mapstructure:"auth_token"`

	UseSecureChannel bool `mapstructure:"use_secure_channel"`
	OfferBrotli      bool `mapstructure:"offer_brotli"`

	SyncInterval  time.Duration `mapstructure:"sync_interval"`
	PullBatchSize uint32        `mapstructure:"pull_batch_size"`

	GossipMaxHops       int           `mapstructure:"gossip_max_hops"`
	GossipSendDelay     time.Duration `mapstructure:"gossip_send_delay"`
	GossipSeenRetention time.Duration `mapstructure:"gossip_seen_retention"`

	ElectionInterval time.Duration `mapstructure:"election_interval"`
	HealthInterval   time.Duration `mapstructure:"health_interval"`

	DiscoveryHost              string        `mapstructure:"discovery_host"`
	DiscoveryListenAddr        string        `mapstructure:"discovery_listen_addr"`
	DiscoveryBroadcastAddr     string        `mapstructure:"discovery_broadcast_addr"`
	DiscoveryBroadcastInterval time.Duration `mapstructure:"discovery_broadcast_interval"`

	MetricsAddr string `mapstructure:"metrics_addr"`
	DebugAddr   string `mapstructure:"debug_addr"`
}

// LoadConfig builds a Config from environment variables, defaulting every
// interval to its spec value, then validates it.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		NodeID:    getEnv("NODE_ID", ""),
		SyncPort:  getIntEnv("SYNC_PORT", 7420),
		AuthToken: getEnv("AUTH_TOKEN", ""),

		UseSecureChannel: getBoolEnv("USE_SECURE_CHANNEL", true),
		OfferBrotli:      getBoolEnv("OFFER_BROTLI", true),

		SyncInterval:  getDurationEnv("SYNC_INTERVAL", orchestrator.DefaultSyncInterval),
		PullBatchSize: uint32(getIntEnv("PULL_BATCH_SIZE", orchestrator.DefaultPullBatchSize)),

		GossipMaxHops:       getIntEnv("GOSSIP_MAX_HOPS", gossip.DefaultMaxHops),
		GossipSendDelay:     getDurationEnv("GOSSIP_SEND_DELAY", gossip.DefaultSendDelay),
		GossipSeenRetention: getDurationEnv("GOSSIP_SEEN_RETENTION", gossip.DefaultSeenRetention),

		ElectionInterval: getDurationEnv("ELECTION_INTERVAL", election.DefaultInterval),
		HealthInterval:   getDurationEnv("HEALTH_INTERVAL", health.DefaultInterval),

		DiscoveryHost:              getEnv("DISCOVERY_HOST", "0.0.0.0"),
		DiscoveryListenAddr:        getEnv("DISCOVERY_LISTEN_ADDR", ":47110"),
		DiscoveryBroadcastAddr:     getEnv("DISCOVERY_BROADCAST_ADDR", "255.255.255.255:47110"),
		DiscoveryBroadcastInterval: getDurationEnv("DISCOVERY_BROADCAST_INTERVAL", discovery.DefaultBroadcastInterval),

		MetricsAddr: getEnv("METRICS_ADDR", ":9420"),
		DebugAddr:   getEnv("DEBUG_ADDR", ":7421"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants spec.md's ConfigError taxonomy entry
// names: a missing nodeId or an invalid port.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return errs.Config("NODE_ID cannot be empty", nil)
	}
	if c.SyncPort < 1 || c.SyncPort > 65535 {
		return errs.Config(fmt.Sprintf("SYNC_PORT must be a valid port, got %d", c.SyncPort), nil)
	}
	if c.PullBatchSize == 0 {
		return errs.Config(fmt.Sprintf("PULL_BATCH_SIZE must be positive, got %d", c.PullBatchSize), nil)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
