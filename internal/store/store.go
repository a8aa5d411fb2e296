// Package store defines the Store contract the core depends on (spec §4.10)
// and ships MemStore, an in-memory reference implementation used by tests
// and the reference daemon. A production deployment is expected to supply
// its own Contract implementation backed by a real persistence engine;
// that engine is explicitly out of scope for this module (spec §1).
package store

import (
	"context"

	"github.com/peerdoc/peerdoc/internal/hlc"
	"github.com/peerdoc/peerdoc/internal/model"
)

// QueryNode is the tagged variant the external query translator hands to
// FindDocuments. Its backend binding is out of scope; the core only needs
// the shape to exist so FindDocuments has a typed second argument.
type QueryNode interface{ queryNode() }

// Contract is every operation the core requires from a document store.
// Implementations must be safe for concurrent use from multiple goroutines.
type Contract interface {
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error

	// GetLatestTimestamp returns the maximum timestamp across all documents,
	// or hlc.Zero if the store is empty.
	GetLatestTimestamp(ctx context.Context) (hlc.Timestamp, error)

	GetDocument(ctx context.Context, collection, key string) (model.Document, bool, error)

	// PutDocument upserts doc and appends exactly one matching oplog entry
	// atomically: no reader may observe one without the other.
	PutDocument(ctx context.Context, doc model.Document) error

	// DeleteDocument upserts a tombstone for (collection,key) at timestamp
	// and appends a matching "delete" oplog entry atomically.
	DeleteDocument(ctx context.Context, collection, key string, timestamp hlc.Timestamp) error

	// GetOplogAfter returns up to limit entries strictly greater than after
	// under the HLC total order, ascending.
	GetOplogAfter(ctx context.Context, after hlc.Timestamp, limit int) ([]model.OplogEntry, error)

	// ApplyBatch upserts every document in docs and appends every entry in
	// oplog atomically; on failure the whole batch is rejected.
	ApplyBatch(ctx context.Context, docs []model.Document, oplog []model.OplogEntry) error

	GetCollections(ctx context.Context) ([]string, error)
	FindDocuments(ctx context.Context, collection string, query QueryNode) ([]model.Document, error)

	GetRemotePeers(ctx context.Context) ([]model.RemotePeer, error)
	SaveRemotePeer(ctx context.Context, peer model.RemotePeer) error
	RemoveRemotePeer(ctx context.Context, nodeID string) error
}
