// Command peerd is the reference daemon wiring every peerdoc component
// together: the sync server and orchestrator, gossip, leader election,
// LAN discovery, health probing, and a debug HTTP surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peerdoc/peerdoc/internal/config"
	"github.com/peerdoc/peerdoc/internal/debugapi"
	"github.com/peerdoc/peerdoc/internal/discovery"
	"github.com/peerdoc/peerdoc/internal/election"
	"github.com/peerdoc/peerdoc/internal/gossip"
	"github.com/peerdoc/peerdoc/internal/health"
	"github.com/peerdoc/peerdoc/internal/hlc"
	"github.com/peerdoc/peerdoc/internal/logging"
	"github.com/peerdoc/peerdoc/internal/metrics"
	"github.com/peerdoc/peerdoc/internal/model"
	"github.com/peerdoc/peerdoc/internal/orchestrator"
	"github.com/peerdoc/peerdoc/internal/resolver"
	"github.com/peerdoc/peerdoc/internal/store"
	"github.com/peerdoc/peerdoc/internal/syncsrv"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "peerd",
		Short: "peerdoc reference daemon",
		RunE:  run,
	}
	config.BindFlags(rootCmd)
	rootCmd.Flags().Bool("dev-logging", false, "use a development (console) logger instead of JSON production logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromCommand(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dev, _ := cmd.Flags().GetBool("dev-logging")
	logger, err := logging.New(cfg.NodeID, dev)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting peerd",
		zap.String("node_id", cfg.NodeID),
		zap.Int("sync_port", cfg.SyncPort),
		zap.Bool("secure_channel", cfg.UseSecureChannel))

	m := metrics.NewMetrics("peerdoc")

	st := store.NewMemStore()
	if err := st.Initialize(context.Background()); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close(context.Background())

	clock := hlc.NewClock(cfg.NodeID)
	policy := resolver.LWW{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncServer := syncsrv.New(syncsrv.Config{
		NodeID:           cfg.NodeID,
		Store:            st,
		Clock:            clock,
		Policy:           policy,
		Authenticator:    syncsrv.SharedSecretAuthenticator{Secret: cfg.AuthToken},
		UseSecureChannel: cfg.UseSecureChannel,
		OfferBrotli:      cfg.OfferBrotli,
		Logger:           logger,
	})
	if err := syncServer.Start(cfg.SyncPort); err != nil {
		return fmt.Errorf("start sync server: %w", err)
	}
	defer syncServer.Stop()
	logger.Info("sync server listening", zap.Int("port", syncServer.Port()))

	orch := orchestrator.New(orchestrator.Config{
		NodeID: cfg.NodeID,
		Store:  st,
		Clock:  clock,
		Policy: policy,
		Dialer: orchestrator.SyncClientDialer{
			NodeID:           cfg.NodeID,
			AuthToken:        cfg.AuthToken,
			UseSecureChannel: cfg.UseSecureChannel,
		},
		SyncInterval: cfg.SyncInterval,
		BatchSize:    cfg.PullBatchSize,
		Logger:       logger,
	})

	gossiper := gossip.New(gossip.Config{
		NodeID: cfg.NodeID,
		Store:  st,
		Clock:  clock,
		Policy: policy,
		Pusher: gossip.SyncClientPusher{
			NodeID:           cfg.NodeID,
			AuthToken:        cfg.AuthToken,
			UseSecureChannel: cfg.UseSecureChannel,
		},
		MaxHops:       cfg.GossipMaxHops,
		SendDelay:     cfg.GossipSendDelay,
		SeenRetention: cfg.GossipSeenRetention,
		Logger:        logger,
	})

	livePeers := func() []model.RemotePeer {
		peers, err := st.GetRemotePeers(ctx)
		if err != nil {
			return nil
		}
		return peers
	}

	elect := election.New(election.Config{
		NodeID:   cfg.NodeID,
		Peers:    election.PeerSourceFunc(livePeers),
		Interval: cfg.ElectionInterval,
		Logger:   logger,
	})
	elect.Subscribe(func(isCloudGateway bool, leaderNodeID string) {
		m.RecordElectionFlip(isCloudGateway)
		logger.Info("cloud gateway state changed",
			zap.Bool("is_cloud_gateway", isCloudGateway),
			zap.String("leader", leaderNodeID))
	})

	healthProbe := health.New(health.Config{
		Peers: livePeers,
		Pinger: health.SecurePinger{
			NodeID:           cfg.NodeID,
			AuthToken:        cfg.AuthToken,
			UseSecureChannel: cfg.UseSecureChannel,
		},
		Interval: cfg.HealthInterval,
		Recorder: m,
		Logger:   logger,
	})

	disco := discovery.New(discovery.Config{
		NodeID:            cfg.NodeID,
		Host:              cfg.DiscoveryHost,
		Port:              cfg.SyncPort,
		ListenAddr:        cfg.DiscoveryListenAddr,
		BroadcastAddr:     cfg.DiscoveryBroadcastAddr,
		BroadcastInterval: cfg.DiscoveryBroadcastInterval,
		Store:             st,
		Logger:            logger,
	})
	if err := disco.Start(ctx); err != nil {
		return fmt.Errorf("start discovery: %w", err)
	}
	defer disco.Stop()

	go reconcilePeerSets(ctx, st, orch, gossiper, cfg.SyncInterval, logger)

	orch.Start(ctx)
	defer orch.Stop()
	gossiper.Start(ctx)
	defer gossiper.Stop()
	elect.Start(ctx)
	defer elect.Stop()
	healthProbe.Start(ctx)
	defer healthProbe.Stop()

	debugSrv := &http.Server{
		Addr:    cfg.DebugAddr,
		Handler: debugapi.NewRouter(debugapi.Deps{Store: st, Election: elect, Health: healthProbe}),
	}
	go func() {
		logger.Info("debug http surface listening", zap.String("addr", cfg.DebugAddr))
		if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("debug http surface failed", zap.Error(err))
		}
	}()
	defer debugSrv.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	return nil
}

// reconcilePeerSets adds every enabled remote peer in the store to the
// orchestrator's and gossip's independent peer registries (both dedup by
// nodeId), once at start and then on every interval. It only adds: peers
// that are disabled or gone from the store stay in both registries.
func reconcilePeerSets(ctx context.Context, st store.Contract, orch *orchestrator.Orchestrator, gossiper *gossip.Gossip, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	reconcile := func() {
		peers, err := st.GetRemotePeers(ctx)
		if err != nil {
			logger.Warn("peer reconciliation failed", zap.Error(err))
			return
		}
		for _, peer := range peers {
			if !peer.Enabled {
				continue
			}
			orch.AddPeer(peer)
			gossiper.AddPeer(peer)
		}
	}

	reconcile()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reconcile()
		}
	}
}
