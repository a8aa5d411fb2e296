package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/peerdoc/peerdoc/internal/model"
)

type fakePinger struct {
	mu      sync.Mutex
	rtt     map[string]time.Duration
	failing map[string]bool
	calls   map[string]int
}

func newFakePinger() *fakePinger {
	return &fakePinger{rtt: map[string]time.Duration{}, failing: map[string]bool{}, calls: map[string]int{}}
}

func (f *fakePinger) Ping(ctx context.Context, peer model.RemotePeer) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[peer.NodeID]++
	if f.failing[peer.NodeID] {
		return 0, errors.New("unreachable")
	}
	return f.rtt[peer.NodeID], nil
}

type fakeRecorder struct {
	mu        sync.Mutex
	rttSeen   map[string]time.Duration
	failCount map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{rttSeen: map[string]time.Duration{}, failCount: map[string]int{}}
}

func (r *fakeRecorder) ObserveRTT(peer string, rtt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rttSeen[peer] = rtt
}

func (r *fakeRecorder) IncFailure(peer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failCount[peer]++
}

func TestCheckPeerRecordsRTTOnSuccess(t *testing.T) {
	pinger := newFakePinger()
	pinger.rtt["p1"] = 42 * time.Millisecond
	recorder := newFakeRecorder()

	p := New(Config{
		Peers:    func() []model.RemotePeer { return nil },
		Pinger:   pinger,
		Recorder: recorder,
	})

	p.checkPeer(context.Background(), model.RemotePeer{NodeID: "p1"})

	if !p.IsUp("p1") {
		t.Fatal("expected p1 to be marked up after a successful ping")
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.rttSeen["p1"] != 42*time.Millisecond {
		t.Fatalf("expected recorded rtt 42ms, got %v", recorder.rttSeen["p1"])
	}
}

func TestCheckPeerMarksDownOnFailureWithoutPanicking(t *testing.T) {
	pinger := newFakePinger()
	pinger.failing["p1"] = true
	recorder := newFakeRecorder()

	p := New(Config{
		Peers:    func() []model.RemotePeer { return nil },
		Pinger:   pinger,
		Recorder: recorder,
	})

	p.checkPeer(context.Background(), model.RemotePeer{NodeID: "p1"})

	if p.IsUp("p1") {
		t.Fatal("expected p1 to be marked down after a failed ping")
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.failCount["p1"] != 1 {
		t.Fatalf("expected 1 failure recorded, got %d", recorder.failCount["p1"])
	}
}

func TestTickChecksAllPeersConcurrentlyAndIsolatesFailures(t *testing.T) {
	pinger := newFakePinger()
	pinger.failing["bad"] = true

	p := New(Config{
		Peers: func() []model.RemotePeer {
			return []model.RemotePeer{{NodeID: "good"}, {NodeID: "bad"}}
		},
		Pinger:   pinger,
		Recorder: newFakeRecorder(),
	})

	p.tick(context.Background())

	if !p.IsUp("good") {
		t.Fatal("expected good peer to be up")
	}
	if p.IsUp("bad") {
		t.Fatal("expected bad peer to be down")
	}
}

func TestUnknownPeerReportsNotUp(t *testing.T) {
	p := New(Config{Peers: func() []model.RemotePeer { return nil }, Pinger: newFakePinger()})
	if p.IsUp("never-seen") {
		t.Fatal("expected an unprobed peer to report not up")
	}
}

func TestStartRunsImmediateTickBeforeFirstInterval(t *testing.T) {
	pinger := newFakePinger()
	p := New(Config{
		Peers:    func() []model.RemotePeer { return []model.RemotePeer{{NodeID: "p1"}} },
		Pinger:   pinger,
		Recorder: newFakeRecorder(),
		Interval: time.Hour,
	})

	p.Start(context.Background())
	defer p.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p.IsUp("p1") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected Start to run an immediate tick before the first interval elapses")
}
