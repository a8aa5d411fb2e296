// Package election implements bully-style leader selection over the set
// of LAN-discovered peers (spec §4.9): lowest nodeId wins.
package election

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peerdoc/peerdoc/internal/model"
)

// DefaultInterval is spec §6's leader election interval.
const DefaultInterval = 5 * time.Second

// PeerSource returns the current set of live peers considered for election.
// It may return peers of any type; the election itself keeps only
// model.LanDiscovered peers as candidates.
type PeerSource interface {
	LivePeers() []model.RemotePeer
}

// PeerSourceFunc adapts a plain function to PeerSource.
type PeerSourceFunc func() []model.RemotePeer

func (f PeerSourceFunc) LivePeers() []model.RemotePeer { return f() }

// Subscriber is notified whenever this node's isCloudGateway state flips.
type Subscriber func(isCloudGateway bool, leaderNodeID string)

// Config constructs an Election.
type Config struct {
	NodeID   string
	Peers    PeerSource
	Interval time.Duration
	Logger   *zap.Logger
}

// Election tracks the current leader among LAN peers plus self, recomputed
// on a fixed interval starting with an immediate election (spec §4.9).
type Election struct {
	cfg Config

	mu             sync.Mutex
	leaderNodeID   string
	isCloudGateway bool
	subscribers    []Subscriber

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Election {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Election{cfg: cfg}
}

// Subscribe registers a callback invoked on every isCloudGateway flip.
func (e *Election) Subscribe(sub Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, sub)
}

// LeaderNodeID returns the currently computed leader.
func (e *Election) LeaderNodeID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leaderNodeID
}

// IsCloudGateway reports whether self is currently the elected leader.
func (e *Election) IsCloudGateway() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isCloudGateway
}

// Start runs an immediate election, then one on every tick, until Stop.
func (e *Election) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.runElection()

	ticker := time.NewTicker(e.cfg.Interval)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.runElection()
			}
		}
	}()
}

// Stop cancels the election timer. Safe to call once.
func (e *Election) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// ForceTick runs an election recompute immediately, outside the regular
// interval, and returns the resulting leader. Used by the debug HTTP
// surface's force-election-tick endpoint for local inspection/testing.
func (e *Election) ForceTick() string {
	e.runElection()
	return e.LeaderNodeID()
}

func (e *Election) runElection() {
	candidates := []string{e.cfg.NodeID}
	for _, p := range e.cfg.Peers.LivePeers() {
		if p.Type == model.LanDiscovered {
			candidates = append(candidates, p.NodeID)
		}
	}
	sort.Strings(candidates)
	leader := candidates[0]

	e.mu.Lock()
	leaderChanged := leader != e.leaderNodeID
	wasGateway := e.isCloudGateway
	nowGateway := leader == e.cfg.NodeID
	e.leaderNodeID = leader
	e.isCloudGateway = nowGateway
	subs := append([]Subscriber(nil), e.subscribers...)
	e.mu.Unlock()

	if leaderChanged {
		e.cfg.Logger.Info("election leader changed", zap.String("leader", leader))
	}
	if nowGateway != wasGateway {
		for _, sub := range subs {
			sub(nowGateway, leader)
		}
	}
}
