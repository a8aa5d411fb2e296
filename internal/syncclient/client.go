// Package syncclient implements the sync protocol's client role: connect,
// application handshake, pull/push batches, disconnect (spec §4.6).
package syncclient

import (
	"net"
	"strconv"
	"time"

	"github.com/peerdoc/peerdoc/internal/errs"
	"github.com/peerdoc/peerdoc/internal/hlc"
	"github.com/peerdoc/peerdoc/internal/secure"
	"github.com/peerdoc/peerdoc/internal/wire"
)

// RequestTimeout bounds every request/response round trip (spec §5).
const RequestTimeout = 30 * time.Second

// Config constructs a Client (spec §4.6).
type Config struct {
	NodeID    string
	Host      string
	Port      int
	AuthToken string
	// UseSecureChannel enables the ECDH handshake + record encryption
	// before the application handshake. Disabled by default for peers
	// that only need the framed, unencrypted protocol.
	UseSecureChannel bool
}

// Client is a single connection to one remote sync server.
type Client struct {
	cfg     Config
	conn    net.Conn
	channel *secure.Channel

	serverNodeID        string
	selectedCompression string
}

// Connect dials the remote and, if configured, performs the ECDH
// handshake. It does not perform the application handshake; call
// ApplicationHandshake for that.
func Connect(cfg Config) (*Client, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, RequestTimeout)
	if err != nil {
		return nil, errs.Transport("syncclient: dial", err)
	}

	channel := secure.NewChannel(conn)
	if cfg.UseSecureChannel {
		if err := channel.Secure(true); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return &Client{cfg: cfg, conn: conn, channel: channel}, nil
}

// ApplicationHandshake sends {nodeId, authToken, supportedCompression}
// and validates the server's response. A rejected or failed handshake is
// fatal for the connection (spec §4.6).
func (c *Client) ApplicationHandshake() error {
	supported := []string{"brotli"}
	req := wire.HandshakeRequest{NodeID: c.cfg.NodeID, AuthToken: c.cfg.AuthToken, SupportedCompression: supported}

	if err := c.channel.SendFrame(req.FrameType(), req.Encode()); err != nil {
		c.conn.Close()
		return err
	}

	msgType, payload, err := c.channel.ReceiveFrame()
	if err != nil {
		c.conn.Close()
		return err
	}
	if msgType != secure.TypeHandshakeResponse {
		c.conn.Close()
		return errs.Protocol("syncclient: expected handshake response", nil)
	}

	resp, err := wire.DecodeHandshakeResponse(payload)
	if err != nil {
		c.conn.Close()
		return err
	}
	if !resp.Accepted {
		c.conn.Close()
		return errs.Auth("syncclient: handshake rejected by server", nil)
	}

	c.serverNodeID = resp.ServerNodeID
	c.selectedCompression = resp.SelectedCompression
	if resp.SelectedCompression == "brotli" {
		c.channel.EnableBrotli()
	}
	return nil
}

// PullChanges requests up to batchSize oplog entries strictly after since.
func (c *Client) PullChanges(since hlc.Timestamp, batchSize uint32) (wire.ChangeSetResponse, error) {
	req := wire.PullChangesRequest{
		SinceWall:  since.String(),
		SinceLogic: since.Counter,
		SinceNode:  since.NodeID,
		BatchSize:  batchSize,
	}
	if err := c.channel.SendFrame(req.FrameType(), req.Encode()); err != nil {
		return wire.ChangeSetResponse{}, err
	}

	msgType, payload, err := c.channel.ReceiveFrame()
	if err != nil {
		return wire.ChangeSetResponse{}, err
	}
	if msgType != secure.TypeChangeSetResp {
		return wire.ChangeSetResponse{}, errs.Protocol("syncclient: expected change set response", nil)
	}
	return wire.DecodeChangeSetResponse(payload)
}

// PushChanges sends a batch of oplog entries and waits for the ack.
func (c *Client) PushChanges(entries []wire.OplogEntry) (wire.AckResponse, error) {
	req := wire.PushChangesRequest{Entries: entries}
	if err := c.channel.SendFrame(req.FrameType(), req.Encode()); err != nil {
		return wire.AckResponse{}, err
	}

	msgType, payload, err := c.channel.ReceiveFrame()
	if err != nil {
		return wire.AckResponse{}, err
	}
	if msgType != secure.TypeAckResponse {
		return wire.AckResponse{}, errs.Protocol("syncclient: expected ack response", nil)
	}
	return wire.DecodeAckResponse(payload)
}

// Disconnect closes the underlying connection. Safe to call once.
func (c *Client) Disconnect() error {
	return c.channel.Close()
}
