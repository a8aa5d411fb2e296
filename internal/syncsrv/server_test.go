package syncsrv

import (
	"context"
	"testing"
	"time"

	"github.com/peerdoc/peerdoc/internal/hlc"
	"github.com/peerdoc/peerdoc/internal/model"
	"github.com/peerdoc/peerdoc/internal/resolver"
	"github.com/peerdoc/peerdoc/internal/store"
	"github.com/peerdoc/peerdoc/internal/syncclient"
	"github.com/peerdoc/peerdoc/internal/wire"
)

func startTestServer(t *testing.T, st store.Contract, secret string) (port int, stop func()) {
	t.Helper()
	srv := New(Config{
		NodeID:        "server-node",
		Store:         st,
		Clock:         hlc.NewClock("server-node"),
		Policy:        resolver.LWW{},
		Authenticator: SharedSecretAuthenticator{Secret: secret},
		OfferBrotli:   true,
	})

	if err := srv.Start(0); err != nil {
		t.Fatalf("start: %v", err)
	}
	return srv.Port(), func() { srv.Stop() }
}

func TestApplicationHandshakeAcceptsValidToken(t *testing.T) {
	st := store.NewMemStore()
	port, stop := startTestServer(t, st, "shared-secret")
	defer stop()
	time.Sleep(20 * time.Millisecond)

	client, err := syncclient.Connect(syncclient.Config{NodeID: "client-node", Host: "127.0.0.1", Port: port, AuthToken: "shared-secret"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect()

	if err := client.ApplicationHandshake(); err != nil {
		t.Fatalf("handshake: %v", err)
	}
}

func TestApplicationHandshakeRejectsInvalidToken(t *testing.T) {
	st := store.NewMemStore()
	port, stop := startTestServer(t, st, "shared-secret")
	defer stop()
	time.Sleep(20 * time.Millisecond)

	client, err := syncclient.Connect(syncclient.Config{NodeID: "client-node", Host: "127.0.0.1", Port: port, AuthToken: "wrong-token"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect()

	if err := client.ApplicationHandshake(); err == nil {
		t.Fatal("expected handshake rejection for wrong token")
	}
}

func TestPullChangesReturnsServerOplog(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()
	st.PutDocument(ctx, model.Document{Collection: "c", Key: "k1", Data: []byte(`{"a":1}`), Timestamp: hlc.Timestamp{LogicalTime: 10, NodeID: "server-node"}})
	st.PutDocument(ctx, model.Document{Collection: "c", Key: "k2", Data: []byte(`{"a":2}`), Timestamp: hlc.Timestamp{LogicalTime: 20, NodeID: "server-node"}})

	port, stop := startTestServer(t, st, "secret")
	defer stop()
	time.Sleep(20 * time.Millisecond)

	client, err := syncclient.Connect(syncclient.Config{NodeID: "client-node", Host: "127.0.0.1", Port: port, AuthToken: "secret"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect()
	if err := client.ApplicationHandshake(); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	resp, err := client.PullChanges(hlc.Zero, 100)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Entries))
	}
	if resp.HasMore {
		t.Fatal("expected hasMore=false for a batch under the cap")
	}
}

func TestPushChangesAppliesToServerStore(t *testing.T) {
	st := store.NewMemStore()
	port, stop := startTestServer(t, st, "secret")
	defer stop()
	time.Sleep(20 * time.Millisecond)

	client, err := syncclient.Connect(syncclient.Config{NodeID: "client-node", Host: "127.0.0.1", Port: port, AuthToken: "secret"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect()
	if err := client.ApplicationHandshake(); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	entry := wire.FromDomain(model.OplogEntry{
		Collection: "c", Key: "pushed",
		Data:      []byte(`{"v":1}`),
		Timestamp: hlc.Timestamp{LogicalTime: 99, NodeID: "client-node"},
		Operation: model.OpPut,
	})

	ack, err := client.PushChanges([]wire.OplogEntry{entry})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if !ack.Success {
		t.Fatal("expected push ack success")
	}

	got, ok, _ := st.GetDocument(context.Background(), "c", "pushed")
	if !ok {
		t.Fatal("expected pushed document to exist on server")
	}
	if string(got.Data) != `{"v":1}` {
		t.Fatalf("unexpected pushed data: %s", got.Data)
	}
}
