package discovery

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/peerdoc/peerdoc/internal/store"
)

func startTestAdapter(t *testing.T, nodeID string) (*Adapter, store.Contract) {
	t.Helper()
	st := store.NewMemStore()
	a := New(Config{
		NodeID:            nodeID,
		Host:              "127.0.0.1",
		Port:              9000,
		ListenAddr:        "127.0.0.1:0",
		BroadcastAddr:     "127.0.0.1:1", // unused by these tests; avoids resolve errors
		BroadcastInterval: time.Hour,
		Store:             st,
	})
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(a.Stop)
	return a, st
}

func sendBeaconTo(t *testing.T, port int, b beacon) {
	t.Helper()
	conn, err := net.Dial("udp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	payload, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestReceiveLoopRecordsPeerObservation(t *testing.T) {
	a, st := startTestAdapter(t, "self")
	sendBeaconTo(t, a.Port(), beacon{NodeID: "peer-1", Host: "10.0.0.5", Port: 7000})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		peers, err := st.GetRemotePeers(context.Background())
		if err != nil {
			t.Fatalf("get remote peers: %v", err)
		}
		for _, p := range peers {
			if p.NodeID == "peer-1" {
				if p.Host != "10.0.0.5" || p.Port != 7000 {
					t.Fatalf("unexpected peer fields: %+v", p)
				}
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected peer-1 to be recorded within deadline")
}

func TestReceiveLoopIgnoresSelfOriginatedBeacons(t *testing.T) {
	a, st := startTestAdapter(t, "self")
	sendBeaconTo(t, a.Port(), beacon{NodeID: "self", Host: "127.0.0.1", Port: 9000})

	time.Sleep(100 * time.Millisecond)
	peers, err := st.GetRemotePeers(context.Background())
	if err != nil {
		t.Fatalf("get remote peers: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("expected self-originated beacon to be ignored, got %+v", peers)
	}
}
