package election

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/peerdoc/peerdoc/internal/model"
)

type fakePeerSource struct {
	mu    sync.Mutex
	peers []model.RemotePeer
}

func (f *fakePeerSource) LivePeers() []model.RemotePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.RemotePeer, len(f.peers))
	copy(out, f.peers)
	return out
}

func (f *fakePeerSource) set(peers []model.RemotePeer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peers = peers
}

func TestElectionPicksLowestNodeIDAmongLanPeers(t *testing.T) {
	src := &fakePeerSource{peers: []model.RemotePeer{
		{NodeID: "bravo", Type: model.LanDiscovered},
		{NodeID: "alpha", Type: model.LanDiscovered},
		{NodeID: "charlie", Type: model.StaticRemote},
	}}
	e := New(Config{NodeID: "zulu", Peers: src})
	e.runElection()

	if got := e.LeaderNodeID(); got != "alpha" {
		t.Fatalf("expected alpha (lowest lan-discovered id), got %s", got)
	}
	if e.IsCloudGateway() {
		t.Fatal("self is not the leader, should not be cloud gateway")
	}
}

func TestElectionSelfWinsWhenLowest(t *testing.T) {
	src := &fakePeerSource{peers: []model.RemotePeer{
		{NodeID: "zulu", Type: model.LanDiscovered},
	}}
	e := New(Config{NodeID: "alpha", Peers: src})
	e.runElection()

	if !e.IsCloudGateway() {
		t.Fatal("expected self to win election as lowest nodeId")
	}
	if e.LeaderNodeID() != "alpha" {
		t.Fatalf("expected leader alpha, got %s", e.LeaderNodeID())
	}
}

func TestElectionNotifiesSubscribersOnlyOnFlip(t *testing.T) {
	src := &fakePeerSource{peers: []model.RemotePeer{
		{NodeID: "zulu", Type: model.LanDiscovered},
	}}
	e := New(Config{NodeID: "alpha", Peers: src})

	var mu sync.Mutex
	var notifications []bool
	e.Subscribe(func(isCloudGateway bool, leader string) {
		mu.Lock()
		defer mu.Unlock()
		notifications = append(notifications, isCloudGateway)
	})

	e.runElection() // alpha wins -> flip to true, notify
	e.runElection() // still alpha -> no flip, no notify

	src.set([]model.RemotePeer{{NodeID: "aaa", Type: model.LanDiscovered}})
	e.runElection() // aaa wins -> flip to false, notify

	mu.Lock()
	defer mu.Unlock()
	if len(notifications) != 2 {
		t.Fatalf("expected exactly 2 notifications (flips only), got %d: %v", len(notifications), notifications)
	}
	if notifications[0] != true || notifications[1] != false {
		t.Fatalf("unexpected notification sequence: %v", notifications)
	}
}

func TestElectionIgnoresNonLanPeersForCandidacy(t *testing.T) {
	src := &fakePeerSource{peers: []model.RemotePeer{
		{NodeID: "aaa", Type: model.StaticRemote},
		{NodeID: "bbb", Type: model.CloudRemote},
	}}
	e := New(Config{NodeID: "ccc", Peers: src})
	e.runElection()

	if e.LeaderNodeID() != "ccc" {
		t.Fatalf("non-lan peers must not be candidates; expected self ccc to win, got %s", e.LeaderNodeID())
	}
}

func TestStartRunsImmediateElectionBeforeFirstTick(t *testing.T) {
	src := &fakePeerSource{peers: []model.RemotePeer{{NodeID: "zzz", Type: model.LanDiscovered}}}
	e := New(Config{NodeID: "aaa", Peers: src, Interval: time.Hour})

	e.Start(context.Background())
	defer e.Stop()

	if e.LeaderNodeID() != "aaa" {
		t.Fatal("expected Start to run an election immediately, not wait for the first tick")
	}
}
