package orchestrator

import (
	"github.com/peerdoc/peerdoc/internal/model"
	"github.com/peerdoc/peerdoc/internal/syncclient"
)

// SyncClientDialer is the production Dialer: it opens a real
// syncclient.Client and completes the application handshake before
// handing the connection back to the orchestrator.
type SyncClientDialer struct {
	NodeID           string
	AuthToken        string
	UseSecureChannel bool
}

func (d SyncClientDialer) Dial(peer model.RemotePeer) (PullClient, error) {
	client, err := syncclient.Connect(syncclient.Config{
		NodeID:           d.NodeID,
		Host:             peer.Host,
		Port:             peer.Port,
		AuthToken:        d.AuthToken,
		UseSecureChannel: d.UseSecureChannel,
	})
	if err != nil {
		return nil, err
	}
	if err := client.ApplicationHandshake(); err != nil {
		client.Disconnect()
		return nil, err
	}
	return client, nil
}
