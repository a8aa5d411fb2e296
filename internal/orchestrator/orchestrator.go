// Package orchestrator drives periodic pull synchronization against a set
// of known peers (spec §4.7).
package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peerdoc/peerdoc/internal/hlc"
	"github.com/peerdoc/peerdoc/internal/model"
	"github.com/peerdoc/peerdoc/internal/replicate"
	"github.com/peerdoc/peerdoc/internal/resolver"
	"github.com/peerdoc/peerdoc/internal/store"
	"github.com/peerdoc/peerdoc/internal/syncclient"
	"github.com/peerdoc/peerdoc/internal/wire"
)

// DefaultSyncInterval and DefaultPullBatchSize are spec §6's defaults.
const (
	DefaultSyncInterval  = 5 * time.Second
	DefaultPullBatchSize = 100
)

// Dialer opens a client connection to a peer and performs the application
// handshake. Extracted as an interface so tests can inject a fake.
type Dialer interface {
	Dial(peer model.RemotePeer) (PullClient, error)
}

// PullClient is the subset of syncclient.Client the orchestrator needs.
type PullClient interface {
	PullChanges(since hlc.Timestamp, batchSize uint32) (wire.ChangeSetResponse, error)
	Disconnect() error
}

// Config constructs an Orchestrator.
type Config struct {
	NodeID       string
	Store        store.Contract
	Clock        *hlc.Clock
	Policy       resolver.Policy
	Dialer       Dialer
	SyncInterval time.Duration
	BatchSize    uint32
	Logger       *zap.Logger
}

// Orchestrator maintains a deduplicated peer set and, on each tick, pulls
// every peer's oplog tail in parallel (spec §4.7).
type Orchestrator struct {
	cfg Config

	mu    sync.Mutex
	peers map[string]model.RemotePeer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Orchestrator {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultPullBatchSize
	}
	if cfg.Policy == nil {
		cfg.Policy = resolver.LWW{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, peers: make(map[string]model.RemotePeer)}
}

// AddPeer registers a peer, deduplicated by NodeID.
func (o *Orchestrator) AddPeer(peer model.RemotePeer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.peers[peer.NodeID] = peer
}

// RemovePeer drops a peer from the set.
func (o *Orchestrator) RemovePeer(nodeID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.peers, nodeID)
}

func (o *Orchestrator) snapshotPeers() []model.RemotePeer {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.RemotePeer, 0, len(o.peers))
	for _, p := range o.peers {
		out = append(out, p)
	}
	return out
}

// Start begins the periodic pull tick. Safe to call once.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	ticker := time.NewTicker(o.cfg.SyncInterval)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.tick(ctx)
			}
		}
	}()
}

// Stop cancels the tick loop and waits for any in-flight tick to finish.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

func (o *Orchestrator) tick(ctx context.Context) {
	peers := o.snapshotPeers()
	var wg sync.WaitGroup
	for _, peer := range peers {
		wg.Add(1)
		go func(p model.RemotePeer) {
			defer wg.Done()
			if err := o.syncPeer(ctx, p); err != nil {
				o.cfg.Logger.Warn("peer sync failed", zap.String("peer", p.NodeID), zap.Error(err))
			}
		}(peer)
	}
	wg.Wait()
}

// syncPeer pulls one peer's oplog tail to exhaustion, applying each batch
// before requesting the next (spec §4.7: per-peer failures do not poison
// other peers or the next tick).
func (o *Orchestrator) syncPeer(ctx context.Context, peer model.RemotePeer) error {
	client, err := o.cfg.Dialer.Dial(peer)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	since, err := o.cfg.Store.GetLatestTimestamp(ctx)
	if err != nil {
		return err
	}

	for {
		resp, err := client.PullChanges(since, o.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(resp.Entries) == 0 {
			return nil
		}

		entries := make([]model.OplogEntry, 0, len(resp.Entries))
		for _, we := range resp.Entries {
			entry, err := we.ToDomain()
			if err != nil {
				continue
			}
			entries = append(entries, entry)
			if entry.Timestamp.After(since) {
				since = entry.Timestamp
			}
		}

		if err := replicate.ApplyIncoming(ctx, o.cfg.Store, o.cfg.Clock, o.cfg.Policy, entries); err != nil {
			return err
		}

		if !resp.HasMore {
			return nil
		}
	}
}
