// Package health monitors per-peer RTT and liveness via a handshake ping.
// It is metrics-only: per spec.md's Non-goals, this module never gates
// reads or writes on peer liveness (see DESIGN.md for the rationale).
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peerdoc/peerdoc/internal/model"
)

// DefaultInterval matches the orchestrator's default pull cadence; health
// checks run independently but at the same default tempo.
const DefaultInterval = 5 * time.Second

const probeTimeout = 2 * time.Second

// Pinger performs one liveness probe against a peer and reports its RTT.
// Production wiring dials a syncclient connection and completes the
// application handshake; tests can stub this directly.
type Pinger interface {
	Ping(ctx context.Context, peer model.RemotePeer) (time.Duration, error)
}

// Recorder receives RTT samples and failure counts for metrics export.
// Kept as a narrow interface so internal/health does not import
// internal/metrics directly.
type Recorder interface {
	ObserveRTT(peerNodeID string, rtt time.Duration)
	IncFailure(peerNodeID string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRTT(string, time.Duration) {}
func (nopRecorder) IncFailure(string)                {}

// Config constructs a Probe.
type Config struct {
	Peers    func() []model.RemotePeer
	Pinger   Pinger
	Interval time.Duration
	Recorder Recorder
	Logger   *zap.Logger
}

// Probe runs periodic liveness checks against every known peer, tracking
// up/down transitions purely for observability.
type Probe struct {
	cfg Config

	mu     sync.RWMutex
	status map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Probe {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Probe{cfg: cfg, status: make(map[string]bool)}
}

// IsUp reports the last observed liveness for a peer. Unknown peers report
// false (never probed yet).
func (p *Probe) IsUp(nodeID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status[nodeID]
}

// Start launches the periodic probe loop, checking all known peers on
// every tick in parallel.
func (p *Probe) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	ticker := time.NewTicker(p.cfg.Interval)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		p.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick(ctx)
			}
		}
	}()
}

// Stop cancels the probe loop and waits for any in-flight tick to finish.
func (p *Probe) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Probe) tick(ctx context.Context) {
	peers := p.cfg.Peers()
	var wg sync.WaitGroup
	for _, peer := range peers {
		wg.Add(1)
		go func(peer model.RemotePeer) {
			defer wg.Done()
			p.checkPeer(ctx, peer)
		}(peer)
	}
	wg.Wait()
}

func (p *Probe) checkPeer(ctx context.Context, peer model.RemotePeer) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	rtt, err := p.cfg.Pinger.Ping(probeCtx, peer)

	p.mu.Lock()
	wasUp := p.status[peer.NodeID]
	p.mu.Unlock()

	if err != nil {
		p.cfg.Logger.Warn("health check failed", zap.String("peer", peer.NodeID), zap.Error(err))
		p.cfg.Recorder.IncFailure(peer.NodeID)
		p.mu.Lock()
		p.status[peer.NodeID] = false
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.status[peer.NodeID] = true
	p.mu.Unlock()

	if !wasUp {
		p.cfg.Logger.Info("peer came back up", zap.String("peer", peer.NodeID))
	}
	p.cfg.Recorder.ObserveRTT(peer.NodeID, rtt)
}
