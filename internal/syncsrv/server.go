// Package syncsrv implements the sync protocol's server role: listener,
// per-connection secure-channel session, pull/push dispatch (spec §4.5).
package syncsrv

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/peerdoc/peerdoc/internal/errs"
	"github.com/peerdoc/peerdoc/internal/hlc"
	"github.com/peerdoc/peerdoc/internal/model"
	"github.com/peerdoc/peerdoc/internal/replicate"
	"github.com/peerdoc/peerdoc/internal/resolver"
	"github.com/peerdoc/peerdoc/internal/secure"
	"github.com/peerdoc/peerdoc/internal/store"
	"github.com/peerdoc/peerdoc/internal/wire"
)

// Authenticator validates an application handshake's auth token. The
// default implementation is a constant-time comparison against a shared
// secret (spec §4.4); tests or richer deployments may inject their own.
type Authenticator interface {
	Authenticate(nodeID, token string) bool
}

// SharedSecretAuthenticator implements Authenticator via constant-time
// equality against one cluster-wide token.
type SharedSecretAuthenticator struct {
	Secret string
}

func (a SharedSecretAuthenticator) Authenticate(_ string, token string) bool {
	return subtle.ConstantTimeCompare([]byte(a.Secret), []byte(token)) == 1
}

// PullBatchSize is spec §6's default pull batch cap.
const PullBatchSize = 100

// Server accepts sync connections and serves pull/push requests against a
// shared store and HLC clock (spec §4.5).
type Server struct {
	nodeID        string
	store         store.Contract
	clock         *hlc.Clock
	policy        resolver.Policy
	authenticator Authenticator
	useSecure     bool
	brotliOffered bool
	logger        *zap.Logger

	listener net.Listener
}

// Config constructs a Server.
type Config struct {
	NodeID           string
	Store            store.Contract
	Clock            *hlc.Clock
	Policy           resolver.Policy
	Authenticator    Authenticator
	UseSecureChannel bool
	OfferBrotli      bool
	Logger           *zap.Logger
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := cfg.Policy
	if policy == nil {
		policy = resolver.LWW{}
	}
	return &Server{
		nodeID:        cfg.NodeID,
		store:         cfg.Store,
		clock:         cfg.Clock,
		policy:        policy,
		authenticator: cfg.Authenticator,
		useSecure:     cfg.UseSecureChannel,
		brotliOffered: cfg.OfferBrotli,
		logger:        logger,
	}
}

// Start opens a listening socket on port and begins accepting connections
// in the background. Stop closes the listener; sessions already accepted
// keep running until their connection ends, and Stop does not wait for them.
func (s *Server) Start(port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return errs.Transport("syncsrv: listen", err)
	}
	s.listener = ln
	s.logger.Info("sync server listening", zap.Int("port", port))

	go s.acceptLoop()
	return nil
}

// Port returns the bound TCP port, useful after Start(0) lets the OS pick
// an ephemeral one.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Stop closes the listener, causing acceptLoop to exit.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(conn)
	}
}

// handleConnection drives one session to completion, disconnecting on any
// error without taking down the server (spec §4.5).
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	channel := secure.NewChannel(conn)
	if s.useSecure {
		if err := channel.Secure(false); err != nil {
			s.logger.Warn("secure handshake failed", zap.Error(err))
			return
		}
	}

	if err := s.serveApplicationHandshake(channel); err != nil {
		s.logger.Warn("application handshake failed", zap.Error(err))
		return
	}

	for {
		msgType, payload, err := channel.ReceiveFrame()
		if err != nil {
			return
		}
		if err := s.dispatch(channel, msgType, payload); err != nil {
			s.logger.Warn("session error, disconnecting", zap.Error(err))
			return
		}
	}
}

func (s *Server) serveApplicationHandshake(channel *secure.Channel) error {
	msgType, payload, err := channel.ReceiveFrame()
	if err != nil {
		return err
	}
	if msgType != secure.TypeHandshakeRequest {
		return errs.Protocol("syncsrv: expected handshake request", nil)
	}

	req, err := wire.DecodeHandshakeRequest(payload)
	if err != nil {
		return err
	}

	accepted := s.authenticator == nil || s.authenticator.Authenticate(req.NodeID, req.AuthToken)

	selected := ""
	if accepted && s.brotliOffered && containsString(req.SupportedCompression, "brotli") {
		selected = "brotli"
	}

	resp := wire.HandshakeResponse{Accepted: accepted, ServerNodeID: s.nodeID, SelectedCompression: selected}
	if err := channel.SendFrame(resp.FrameType(), resp.Encode()); err != nil {
		return err
	}
	if !accepted {
		return errs.Auth(fmt.Sprintf("syncsrv: handshake rejected for node %s", req.NodeID), nil)
	}
	if selected == "brotli" {
		channel.EnableBrotli()
	}
	return nil
}

func (s *Server) dispatch(channel *secure.Channel, msgType byte, payload []byte) error {
	switch msgType {
	case secure.TypePullChangesReq:
		return s.handlePull(channel, payload)
	case secure.TypePushChangesReq:
		return s.handlePush(channel, payload)
	default:
		return errs.Protocol("syncsrv: unauthenticated or unexpected message type", nil)
	}
}

func (s *Server) handlePull(channel *secure.Channel, payload []byte) error {
	req, err := wire.DecodePullChangesRequest(payload)
	if err != nil {
		return err
	}

	since := hlc.Timestamp{LogicalTime: 0, Counter: req.SinceLogic, NodeID: req.SinceNode}
	if parsed, err := hlc.Parse(req.SinceWall); err == nil {
		since = parsed
	}

	limit := req.BatchSize
	if limit == 0 || limit > PullBatchSize {
		limit = PullBatchSize
	}

	entries, err := s.store.GetOplogAfter(context.Background(), since, int(limit))
	if err != nil {
		return errs.Store("syncsrv: get oplog after", err)
	}

	wireEntries := make([]wire.OplogEntry, len(entries))
	for i, e := range entries {
		wireEntries[i] = wire.FromDomain(e)
	}

	resp := wire.ChangeSetResponse{Entries: wireEntries, HasMore: uint32(len(entries)) == limit}
	return channel.SendFrame(resp.FrameType(), resp.Encode())
}

func (s *Server) handlePush(channel *secure.Channel, payload []byte) error {
	req, err := wire.DecodePushChangesRequest(payload)
	if err != nil {
		return err
	}

	entries := make([]model.OplogEntry, 0, len(req.Entries))
	for _, we := range req.Entries {
		entry, err := we.ToDomain()
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	if err := replicate.ApplyIncoming(context.Background(), s.store, s.clock, s.policy, entries); err != nil {
		ack := wire.AckResponse{Success: false}
		_ = channel.SendFrame(ack.FrameType(), ack.Encode())
		return errs.Store("syncsrv: apply pushed batch", err)
	}

	ack := wire.AckResponse{Success: true}
	return channel.SendFrame(ack.FrameType(), ack.Encode())
}

func containsString(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
