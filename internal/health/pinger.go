package health

import (
	"context"
	"time"

	"github.com/peerdoc/peerdoc/internal/model"
	"github.com/peerdoc/peerdoc/internal/syncclient"
)

// SecurePinger measures RTT as the wall-clock cost of a full connect plus
// application handshake over a fresh connection, then disconnects. It does
// not reuse orchestrator/gossip connections, keeping liveness measurement
// independent of sync traffic.
type SecurePinger struct {
	NodeID           string
	AuthToken        string
	UseSecureChannel bool
}

func (sp SecurePinger) Ping(ctx context.Context, peer model.RemotePeer) (time.Duration, error) {
	start := time.Now()

	client, err := syncclient.Connect(syncclient.Config{
		NodeID:           sp.NodeID,
		Host:             peer.Host,
		Port:             peer.Port,
		AuthToken:        sp.AuthToken,
		UseSecureChannel: sp.UseSecureChannel,
	})
	if err != nil {
		return 0, err
	}
	defer client.Disconnect()

	if err := client.ApplicationHandshake(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
