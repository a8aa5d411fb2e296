package resolver

import (
	"encoding/json"
	"testing"

	"github.com/peerdoc/peerdoc/internal/hlc"
	"github.com/peerdoc/peerdoc/internal/model"
)

func ts(l uint64, node string) hlc.Timestamp {
	return hlc.Timestamp{LogicalTime: l, NodeID: node}
}

func TestLWWNoLocalApplies(t *testing.T) {
	remote := model.OplogEntry{Collection: "c", Key: "k", Data: []byte(`{"a":1}`), Timestamp: ts(10, "A"), Operation: model.OpPut}
	res := LWW{}.Resolve(nil, remote)
	if res.Decision != Apply {
		t.Fatal("expected apply when no local document exists")
	}
}

func TestLWWNewerRemoteApplies(t *testing.T) {
	local := model.Document{Collection: "c", Key: "k", Data: []byte(`{"a":1}`), Timestamp: ts(10, "A")}
	remote := model.OplogEntry{Collection: "c", Key: "k", Data: []byte(`{"a":2}`), Timestamp: ts(20, "B"), Operation: model.OpPut}

	res := LWW{}.Resolve(&local, remote)
	if res.Decision != Apply {
		t.Fatal("expected apply for strictly newer remote")
	}
	if string(res.Document.Data) != `{"a":2}` {
		t.Fatalf("unexpected merged data: %s", res.Document.Data)
	}
}

func TestLWWOlderRemoteIgnored(t *testing.T) {
	local := model.Document{Collection: "c", Key: "k", Timestamp: ts(20, "A")}
	remote := model.OplogEntry{Collection: "c", Key: "k", Timestamp: ts(10, "B"), Operation: model.OpPut}

	res := LWW{}.Resolve(&local, remote)
	if res.Decision != Ignore {
		t.Fatal("expected ignore for older remote")
	}
}

func TestLWWIdempotent(t *testing.T) {
	local := model.Document{Collection: "c", Key: "k", Timestamp: ts(5, "A")}
	remote := model.OplogEntry{Collection: "c", Key: "k", Data: []byte(`{"a":1}`), Timestamp: ts(10, "B"), Operation: model.OpPut}

	first := LWW{}.Resolve(&local, remote)
	second := LWW{}.Resolve(&first.Document, remote)

	if second.Decision != Ignore {
		t.Fatal("re-applying the identical remote op must be a no-op (idempotent)")
	}
}

func TestLWWDeletePropagation(t *testing.T) {
	local := model.Document{Collection: "c", Key: "bob", Data: []byte(`{}`), Timestamp: ts(10, "A")}
	remote := model.OplogEntry{Collection: "c", Key: "bob", Timestamp: ts(30, "A"), Operation: model.OpDelete}

	res := LWW{}.Resolve(&local, remote)
	if res.Decision != Apply || !res.Document.Tombstone || len(res.Document.Data) != 0 {
		t.Fatalf("expected tombstone apply, got %+v", res)
	}
}

func TestRecursiveMergeObjectsAndArraysByID(t *testing.T) {
	t1 := ts(10, "A")
	t2 := ts(20, "B")

	local := model.Document{
		Collection: "c", Key: "doc1",
		Data:      []byte(`{"profile":{"name":"A","tags":[{"id":"1","v":1}]}}`),
		Timestamp: t1,
	}
	remote := model.OplogEntry{
		Collection: "c", Key: "doc1",
		Data:      []byte(`{"profile":{"age":30,"tags":[{"id":"1","v":2},{"id":"2","v":9}]}}`),
		Timestamp: t2,
		Operation: model.OpPut,
	}

	res := RecursiveMerge{}.Resolve(&local, remote)
	if res.Decision != Apply {
		t.Fatal("expected apply")
	}
	if !res.Document.Timestamp.Equal(t2) {
		t.Fatalf("expected merged timestamp == max(t1,t2) == t2, got %+v", res.Document.Timestamp)
	}

	var got map[string]any
	if err := json.Unmarshal(res.Document.Data, &got); err != nil {
		t.Fatalf("invalid merged JSON: %v", err)
	}
	profile := got["profile"].(map[string]any)
	if profile["name"] != "A" || profile["age"].(float64) != 30 {
		t.Fatalf("expected field-wise object merge, got %+v", profile)
	}
	tags := profile["tags"].([]any)
	if len(tags) != 2 {
		t.Fatalf("expected 2 merged tags, got %d: %+v", len(tags), tags)
	}
	for _, rawTag := range tags {
		tag := rawTag.(map[string]any)
		if tag["id"] == "1" && tag["v"].(float64) != 2 {
			t.Fatalf("expected tag 1 to carry remote's newer v=2, got %+v", tag)
		}
	}
}

func TestRecursiveMergeArrayFallsBackToLWWWithoutUniqueIDs(t *testing.T) {
	t1 := ts(10, "A")
	t2 := ts(20, "B")

	local := model.Document{Collection: "c", Key: "k", Data: []byte(`{"list":[1,2,3]}`), Timestamp: t1}
	remote := model.OplogEntry{Collection: "c", Key: "k", Data: []byte(`{"list":[4,5]}`), Timestamp: t2, Operation: model.OpPut}

	res := RecursiveMerge{}.Resolve(&local, remote)

	var got map[string]any
	json.Unmarshal(res.Document.Data, &got)
	list := got["list"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected whole-array LWW (remote wins, len 2), got %+v", list)
	}
}

func TestRecursiveMergeCommutativeOverDisjointKeys(t *testing.T) {
	t1 := ts(10, "A")
	t2 := ts(20, "B")

	localDoc := model.Document{Collection: "c", Key: "k", Data: []byte(`{"x":1}`), Timestamp: t1}
	remoteEntry := model.OplogEntry{Collection: "c", Key: "k", Data: []byte(`{"y":2}`), Timestamp: t2, Operation: model.OpPut}

	// merge local<-remote
	forward := RecursiveMerge{}.Resolve(&localDoc, remoteEntry)

	// merge remote<-local (roles swapped) should reach the same field set
	remoteDoc := model.Document{Collection: "c", Key: "k", Data: []byte(`{"y":2}`), Timestamp: t2}
	localEntry := model.OplogEntry{Collection: "c", Key: "k", Data: []byte(`{"x":1}`), Timestamp: t1, Operation: model.OpPut}
	backward := RecursiveMerge{}.Resolve(&remoteDoc, localEntry)

	var f, b map[string]any
	json.Unmarshal(forward.Document.Data, &f)
	json.Unmarshal(backward.Document.Data, &b)
	if f["x"] != b["x"] || f["y"] != b["y"] {
		t.Fatalf("expected commutative merge over disjoint keys, got %+v vs %+v", f, b)
	}
}

func TestRecursiveMergeDeleteUsesLWW(t *testing.T) {
	t1 := ts(10, "A")
	t2 := ts(20, "B")

	local := model.Document{Collection: "c", Key: "k", Data: []byte(`{"x":1}`), Timestamp: t1}
	remote := model.OplogEntry{Collection: "c", Key: "k", Timestamp: t2, Operation: model.OpDelete}

	res := RecursiveMerge{}.Resolve(&local, remote)
	if res.Decision != Apply || !res.Document.Tombstone {
		t.Fatalf("expected tombstone apply for newer delete, got %+v", res)
	}
}
