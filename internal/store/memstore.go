package store

import (
	"context"
	"sync"

	"github.com/peerdoc/peerdoc/internal/hlc"
	"github.com/peerdoc/peerdoc/internal/model"
)

type docKey struct{ collection, key string }

// MemStore is the in-memory reference implementation of Contract, grounded
// on the teacher's mutex+map internal/storage.Store generalized from a
// single versioned value per key to the full (documents, oplog,
// remotePeers) shape the contract requires.
type MemStore struct {
	mu        sync.RWMutex
	documents map[docKey]model.Document
	oplog     []model.OplogEntry // append-only, kept sorted by HLC
	peers     map[string]model.RemotePeer
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		documents: make(map[docKey]model.Document),
		peers:     make(map[string]model.RemotePeer),
	}
}

func (s *MemStore) Initialize(ctx context.Context) error { return nil }
func (s *MemStore) Close(ctx context.Context) error      { return nil }

func (s *MemStore) GetLatestTimestamp(ctx context.Context) (hlc.Timestamp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := hlc.Zero
	for _, doc := range s.documents {
		if doc.Timestamp.After(latest) {
			latest = doc.Timestamp
		}
	}
	return latest, nil
}

func (s *MemStore) GetDocument(ctx context.Context, collection, key string) (model.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[docKey{collection, key}]
	return doc, ok, nil
}

func (s *MemStore) PutDocument(ctx context.Context, doc model.Document) error {
	entry := model.OplogEntry{
		Collection: doc.Collection,
		Key:        doc.Key,
		Data:       doc.Data,
		Timestamp:  doc.Timestamp,
		Operation:  model.OpPut,
	}
	if doc.Tombstone {
		entry.Operation = model.OpDelete
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[docKey{doc.Collection, doc.Key}] = doc
	s.appendOplogLocked(entry)
	return nil
}

func (s *MemStore) DeleteDocument(ctx context.Context, collection, key string, timestamp hlc.Timestamp) error {
	doc := model.Document{
		Collection: collection,
		Key:        key,
		Timestamp:  timestamp,
		Tombstone:  true,
	}
	entry := model.OplogEntry{
		Collection: collection,
		Key:        key,
		Timestamp:  timestamp,
		Operation:  model.OpDelete,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[docKey{collection, key}] = doc
	s.appendOplogLocked(entry)
	return nil
}

// appendOplogLocked inserts entry keeping s.oplog sorted by HLC order.
// Callers must hold s.mu for write.
func (s *MemStore) appendOplogLocked(entry model.OplogEntry) {
	i := len(s.oplog)
	for i > 0 && entry.Timestamp.Before(s.oplog[i-1].Timestamp) {
		i--
	}
	s.oplog = append(s.oplog, model.OplogEntry{})
	copy(s.oplog[i+1:], s.oplog[i:])
	s.oplog[i] = entry
}

func (s *MemStore) GetOplogAfter(ctx context.Context, after hlc.Timestamp, limit int) ([]model.OplogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.OplogEntry
	for _, e := range s.oplog {
		if e.Timestamp.After(after) {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemStore) ApplyBatch(ctx context.Context, docs []model.Document, oplog []model.OplogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		s.documents[docKey{doc.Collection, doc.Key}] = doc
	}
	for _, e := range oplog {
		s.appendOplogLocked(e)
	}
	return nil
}

func (s *MemStore) GetCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for k := range s.documents {
		if !seen[k.collection] {
			seen[k.collection] = true
			out = append(out, k.collection)
		}
	}
	return out, nil
}

func (s *MemStore) FindDocuments(ctx context.Context, collection string, query QueryNode) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Document
	for k, doc := range s.documents {
		if k.collection != collection || doc.Tombstone {
			continue
		}
		if query == nil || Match(query, doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *MemStore) GetRemotePeers(ctx context.Context) ([]model.RemotePeer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RemotePeer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out, nil
}

func (s *MemStore) SaveRemotePeer(ctx context.Context, peer model.RemotePeer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[peer.NodeID] = peer
	return nil
}

func (s *MemStore) RemoveRemotePeer(ctx context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, nodeID)
	return nil
}
