// Package gossip implements best-effort fan-out replication with
// hop-bounded, dedup-protected re-propagation (spec §4.8).
package gossip

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peerdoc/peerdoc/internal/hlc"
	"github.com/peerdoc/peerdoc/internal/model"
	"github.com/peerdoc/peerdoc/internal/replicate"
	"github.com/peerdoc/peerdoc/internal/resolver"
	"github.com/peerdoc/peerdoc/internal/store"
	"github.com/peerdoc/peerdoc/internal/wire"
)

// Defaults from spec §6.
const (
	DefaultMaxHops       = 3
	DefaultSendDelay     = 100 * time.Millisecond
	DefaultSeenRetention = 5 * time.Minute
	cleanupInterval      = 60 * time.Second
)

// Message is one gossip envelope, matching spec §4.8's on-the-wire shape.
type Message struct {
	Entries      []model.OplogEntry
	SourceNodeID string
	Hops         int
	MessageID    string
}

// Pusher sends a push request to one peer. Implemented in production by a
// syncclient connection; a test double can stub it directly.
type Pusher interface {
	PushTo(peer model.RemotePeer, entries []wire.OplogEntry) error
}

// Config constructs a Gossip instance.
type Config struct {
	NodeID        string
	Store         store.Contract
	Clock         *hlc.Clock
	Policy        resolver.Policy
	Pusher        Pusher
	MaxHops       int
	SendDelay     time.Duration
	SeenRetention time.Duration
	Logger        *zap.Logger
}

// Gossip tracks seen message ids, a pending-send queue, and the current
// peer set, and drives the single-flight queue processor (spec §4.8).
type Gossip struct {
	cfg Config

	mu       sync.Mutex
	peers    map[string]model.RemotePeer
	seen     map[string]time.Time
	queue    []Message
	inFlight bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Gossip {
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = DefaultMaxHops
	}
	if cfg.SendDelay <= 0 {
		cfg.SendDelay = DefaultSendDelay
	}
	if cfg.SeenRetention <= 0 {
		cfg.SeenRetention = DefaultSeenRetention
	}
	if cfg.Policy == nil {
		cfg.Policy = resolver.LWW{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Gossip{
		cfg:   cfg,
		peers: make(map[string]model.RemotePeer),
		seen:  make(map[string]time.Time),
	}
}

// AddPeer / RemovePeer maintain the fan-out peer set.
func (g *Gossip) AddPeer(peer model.RemotePeer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.peers[peer.NodeID] = peer
}

func (g *Gossip) RemovePeer(nodeID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.peers, nodeID)
}

// Start launches the periodic seen-set cleanup. The queue processor is not
// started here; it starts on demand whenever a message is enqueued.
func (g *Gossip) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	g.wg.Add(1)
	go g.cleanupLoop(ctx)
}

// Stop cancels background loops and waits for them to exit.
func (g *Gossip) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
}

// PropagateChanges mints a fresh message id for a locally originated batch
// and enqueues it for fan-out (spec §4.8).
func (g *Gossip) PropagateChanges(entries []model.OplogEntry) {
	msg := Message{
		Entries:      entries,
		SourceNodeID: g.cfg.NodeID,
		Hops:         0,
		MessageID:    g.mintMessageID(),
	}

	g.mu.Lock()
	g.seen[msg.MessageID] = time.Now()
	g.queue = append(g.queue, msg)
	g.mu.Unlock()

	g.processQueueAsync(context.Background())
}

// Receive handles an inbound gossip message: drop if seen or over the hop
// limit, else mark seen, apply locally, and enqueue for re-gossip.
func (g *Gossip) Receive(ctx context.Context, msg Message) error {
	g.mu.Lock()
	if _, dup := g.seen[msg.MessageID]; dup {
		g.mu.Unlock()
		return nil
	}
	if msg.Hops >= g.cfg.MaxHops {
		g.mu.Unlock()
		return nil
	}
	g.seen[msg.MessageID] = time.Now()
	g.mu.Unlock()

	if err := replicate.ApplyIncoming(ctx, g.cfg.Store, g.cfg.Clock, g.cfg.Policy, msg.Entries); err != nil {
		return err
	}

	next := Message{Entries: msg.Entries, SourceNodeID: msg.SourceNodeID, Hops: msg.Hops + 1, MessageID: msg.MessageID}
	g.mu.Lock()
	g.queue = append(g.queue, next)
	g.mu.Unlock()

	g.processQueueAsync(ctx)
	return nil
}

func (g *Gossip) mintMessageID() string {
	return fmt.Sprintf("%s-%d-%s", g.cfg.NodeID, time.Now().UnixMilli(), randomSuffix())
}

func randomSuffix() string {
	return uuid.NewString()[:8]
}

// processQueueAsync starts the single-flight queue processor if it is not
// already running.
func (g *Gossip) processQueueAsync(ctx context.Context) {
	g.mu.Lock()
	if g.inFlight {
		g.mu.Unlock()
		return
	}
	g.inFlight = true
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.drainQueue(ctx)
	}()
}

func (g *Gossip) drainQueue(ctx context.Context) {
	for {
		g.mu.Lock()
		if len(g.queue) == 0 {
			g.inFlight = false
			g.mu.Unlock()
			return
		}
		msg := g.queue[0]
		g.queue = g.queue[1:]
		g.mu.Unlock()

		time.Sleep(g.cfg.SendDelay)
		g.fanOut(msg)
	}
}

// fanOut sends msg to every current peer except its source, isolating
// per-peer failures (spec §4.8).
func (g *Gossip) fanOut(msg Message) {
	g.mu.Lock()
	targets := make([]model.RemotePeer, 0, len(g.peers))
	for _, p := range g.peers {
		if p.NodeID != msg.SourceNodeID {
			targets = append(targets, p)
		}
	}
	g.mu.Unlock()

	wireEntries := make([]wire.OplogEntry, len(msg.Entries))
	for i, e := range msg.Entries {
		wireEntries[i] = wire.FromDomain(e)
	}

	var wg sync.WaitGroup
	for _, peer := range targets {
		wg.Add(1)
		go func(p model.RemotePeer) {
			defer wg.Done()
			if err := g.cfg.Pusher.PushTo(p, wireEntries); err != nil {
				g.cfg.Logger.Warn("gossip push failed", zap.String("peer", p.NodeID), zap.Error(err))
			}
		}(peer)
	}
	wg.Wait()
}

func (g *Gossip) cleanupLoop(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.cleanup()
		}
	}
}

func (g *Gossip) cleanup() {
	cutoff := time.Now().Add(-g.cfg.SeenRetention)
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, seenAt := range g.seen {
		if seenAt.Before(cutoff) {
			delete(g.seen, id)
		}
	}
}
