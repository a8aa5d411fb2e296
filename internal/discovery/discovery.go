// Package discovery implements a minimal LAN peer-presence beacon: each
// node periodically broadcasts {nodeId,host,port} over UDP and records
// observations of others as LanDiscovered remote peers. The wire format is
// explicitly out of scope for the core (spec §6); this is *a* concrete
// transport satisfying the adapter contract, not *the* mandated one.
package discovery

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peerdoc/peerdoc/internal/model"
	"github.com/peerdoc/peerdoc/internal/store"
)

// DefaultBroadcastInterval is spec §6's discovery broadcast interval.
const DefaultBroadcastInterval = 5 * time.Second

const maxDatagramSize = 1024

type beacon struct {
	NodeID string `json:"nodeId"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

// Config constructs an Adapter.
type Config struct {
	NodeID            string
	Host              string
	Port              int
	BroadcastAddr     string // e.g. "255.255.255.255:47110"
	ListenAddr        string // e.g. ":47110"
	BroadcastInterval time.Duration
	Store             store.Contract
	Logger            *zap.Logger
}

// Adapter broadcasts self's presence and listens for peers, recording
// observations into the store as LanDiscovered remote peers.
type Adapter struct {
	cfg  Config
	conn *net.UDPConn

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Adapter {
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = DefaultBroadcastInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg}
}

// Start opens the UDP listener and begins the broadcast and receive loops.
func (a *Adapter) Start(ctx context.Context) error {
	laddr, err := net.ResolveUDPAddr("udp4", a.cfg.ListenAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return err
	}
	a.conn = conn

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(2)
	go a.broadcastLoop(ctx)
	go a.receiveLoop(ctx)
	return nil
}

// Port returns the bound UDP listen port, useful when ListenAddr uses ":0".
func (a *Adapter) Port() int {
	return a.conn.LocalAddr().(*net.UDPAddr).Port
}

// Stop cancels both loops and closes the socket. Safe to call once.
func (a *Adapter) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.conn != nil {
		a.conn.Close()
	}
	a.wg.Wait()
}

func (a *Adapter) broadcastLoop(ctx context.Context) {
	defer a.wg.Done()

	raddr, err := net.ResolveUDPAddr("udp4", a.cfg.BroadcastAddr)
	if err != nil {
		a.cfg.Logger.Warn("discovery: invalid broadcast address", zap.Error(err))
		return
	}

	ticker := time.NewTicker(a.cfg.BroadcastInterval)
	defer ticker.Stop()

	a.sendBeacon(raddr)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sendBeacon(raddr)
		}
	}
}

func (a *Adapter) sendBeacon(raddr *net.UDPAddr) {
	payload, err := json.Marshal(beacon{NodeID: a.cfg.NodeID, Host: a.cfg.Host, Port: a.cfg.Port})
	if err != nil {
		return
	}
	if _, err := a.conn.WriteToUDP(payload, raddr); err != nil {
		a.cfg.Logger.Warn("discovery: broadcast failed", zap.Error(err))
	}
}

func (a *Adapter) receiveLoop(ctx context.Context) {
	defer a.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		a.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := a.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}

		var b beacon
		if err := json.Unmarshal(buf[:n], &b); err != nil {
			continue
		}
		if b.NodeID == a.cfg.NodeID {
			continue // ignore self-originated broadcasts
		}

		peer := model.RemotePeer{
			NodeID:   b.NodeID,
			Host:     b.Host,
			Port:     b.Port,
			Type:     model.LanDiscovered,
			LastSeen: time.Now(),
			Enabled:  true,
		}
		if err := a.cfg.Store.SaveRemotePeer(ctx, peer); err != nil {
			a.cfg.Logger.Warn("discovery: save peer failed", zap.String("peer", b.NodeID), zap.Error(err))
		}
	}
}
