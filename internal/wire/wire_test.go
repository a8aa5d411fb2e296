package wire

import (
	"testing"

	"github.com/peerdoc/peerdoc/internal/hlc"
	"github.com/peerdoc/peerdoc/internal/model"
	"github.com/peerdoc/peerdoc/internal/secure"
)

func TestHandshakeRequestRoundTrip(t *testing.T) {
	want := HandshakeRequest{NodeID: "node-a", AuthToken: "s3cr3t", SupportedCompression: []string{"brotli", "none"}}
	got, err := DecodeHandshakeRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.NodeID != want.NodeID || got.AuthToken != want.AuthToken || len(got.SupportedCompression) != 2 {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
	if got.SupportedCompression[0] != "brotli" || got.SupportedCompression[1] != "none" {
		t.Fatalf("compression list mismatch: got %+v", got.SupportedCompression)
	}
}

func TestHandshakeResponseRoundTrip(t *testing.T) {
	want := HandshakeResponse{Accepted: true, ServerNodeID: "node-b", SelectedCompression: "brotli"}
	got, err := DecodeHandshakeResponse(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestPullChangesRequestRoundTrip(t *testing.T) {
	want := PullChangesRequest{SinceWall: "100-0-A", SinceLogic: 0, SinceNode: "A", BatchSize: 100}
	got, err := DecodePullChangesRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestOplogEntryDomainRoundTrip(t *testing.T) {
	ts := hlc.Timestamp{LogicalTime: 42, Counter: 3, NodeID: "node-a"}
	domain := model.OplogEntry{
		Collection: "users",
		Key:        "alice",
		Data:       []byte(`{"name":"Alice"}`),
		Timestamp:  ts,
		Operation:  model.OpPut,
	}

	w := FromDomain(domain)
	back, err := w.ToDomain()
	if err != nil {
		t.Fatalf("ToDomain: %v", err)
	}
	if back.Collection != domain.Collection || back.Key != domain.Key || string(back.Data) != string(domain.Data) {
		t.Fatalf("domain round trip mismatch: got %+v want %+v", back, domain)
	}
	if !back.Timestamp.Equal(domain.Timestamp) {
		t.Fatalf("timestamp mismatch: got %+v want %+v", back.Timestamp, domain.Timestamp)
	}
	if back.Operation != domain.Operation {
		t.Fatalf("operation mismatch: got %v want %v", back.Operation, domain.Operation)
	}
}

func TestChangeSetResponseRoundTripWithEntries(t *testing.T) {
	e1 := FromDomain(model.OplogEntry{Collection: "c", Key: "k1", Data: []byte(`{"a":1}`), Timestamp: hlc.Timestamp{LogicalTime: 1, NodeID: "A"}, Operation: model.OpPut})
	e2 := FromDomain(model.OplogEntry{Collection: "c", Key: "k2", Timestamp: hlc.Timestamp{LogicalTime: 2, NodeID: "A"}, Operation: model.OpDelete})

	want := ChangeSetResponse{Entries: []OplogEntry{e1, e2}, HasMore: true}
	got, err := DecodeChangeSetResponse(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.HasMore != want.HasMore || len(got.Entries) != 2 {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
	if got.Entries[0] != e1 || got.Entries[1] != e2 {
		t.Fatalf("entry mismatch: got %+v", got.Entries)
	}
}

func TestPushChangesAndAckRoundTrip(t *testing.T) {
	push := PushChangesRequest{Entries: []OplogEntry{FromDomain(model.OplogEntry{Collection: "c", Key: "k", Timestamp: hlc.Timestamp{LogicalTime: 5, NodeID: "A"}, Operation: model.OpPut})}}
	gotPush, err := DecodePushChangesRequest(push.Encode())
	if err != nil {
		t.Fatalf("decode push: %v", err)
	}
	if len(gotPush.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(gotPush.Entries))
	}

	ack := AckResponse{Success: true}
	gotAck, err := DecodeAckResponse(ack.Encode())
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if gotAck != ack {
		t.Fatalf("ack mismatch: got %+v want %+v", gotAck, ack)
	}
}

func TestFrameTypeConstantsMatchSecurePackage(t *testing.T) {
	cases := []struct {
		msg  Message
		want byte
	}{
		{HandshakeRequest{}, secure.TypeHandshakeRequest},
		{HandshakeResponse{}, secure.TypeHandshakeResponse},
		{PullChangesRequest{}, secure.TypePullChangesReq},
		{ChangeSetResponse{}, secure.TypeChangeSetResp},
		{PushChangesRequest{}, secure.TypePushChangesReq},
		{AckResponse{}, secure.TypeAckResponse},
	}
	for _, c := range cases {
		if c.msg.FrameType() != c.want {
			t.Fatalf("unexpected frame type for %T: got %d want %d", c.msg, c.msg.FrameType(), c.want)
		}
	}
}

func TestDecodeUnknownFrameType(t *testing.T) {
	if _, err := Decode(0xFF, nil); err == nil {
		t.Fatal("expected error for unknown frame type")
	}
}
