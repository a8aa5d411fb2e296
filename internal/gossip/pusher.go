package gossip

import (
	"github.com/peerdoc/peerdoc/internal/model"
	"github.com/peerdoc/peerdoc/internal/syncclient"
	"github.com/peerdoc/peerdoc/internal/wire"
)

// SyncClientPusher is the production Pusher: it opens a fresh connection
// per push, completes the application handshake, sends the entries, and
// disconnects (spec §4.8's prescribed fix: a real PushChangesRequest per
// peer before disconnecting).
type SyncClientPusher struct {
	NodeID           string
	AuthToken        string
	UseSecureChannel bool
}

func (sp SyncClientPusher) PushTo(peer model.RemotePeer, entries []wire.OplogEntry) error {
	client, err := syncclient.Connect(syncclient.Config{
		NodeID:           sp.NodeID,
		Host:             peer.Host,
		Port:             peer.Port,
		AuthToken:        sp.AuthToken,
		UseSecureChannel: sp.UseSecureChannel,
	})
	if err != nil {
		return err
	}
	defer client.Disconnect()

	if err := client.ApplicationHandshake(); err != nil {
		return err
	}
	_, err = client.PushChanges(entries)
	return err
}
