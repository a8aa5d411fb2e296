// Package model defines the document, oplog and remote-peer entities
// shared across every component of the core (spec §3).
package model

import (
	"strconv"
	"time"

	"github.com/peerdoc/peerdoc/internal/hlc"
)

// Operation names an oplog entry's effect.
type Operation string

const (
	OpPut    Operation = "put"
	OpDelete Operation = "delete"
)

// PeerType classifies how a RemotePeer was learned about.
type PeerType string

const (
	LanDiscovered PeerType = "lan_discovered"
	StaticRemote  PeerType = "static_remote"
	CloudRemote   PeerType = "cloud_remote"
)

// Document is the current, materialized state of one (collection, key).
// Exactly one Document exists per identity at any time (spec §3).
type Document struct {
	Collection string
	Key        string
	Data       []byte // UTF-8 JSON; empty when Tombstone is true
	Timestamp  hlc.Timestamp
	Tombstone  bool
}

// Identity returns the (collection, key) pair that uniquely names this document.
func (d Document) Identity() (string, string) { return d.Collection, d.Key }

// OplogEntry is one immutable, append-only replication record.
type OplogEntry struct {
	Collection string
	Key        string
	Data       []byte
	Timestamp  hlc.Timestamp
	Operation  Operation
}

// ToDocument renders the document state this entry implies in isolation
// (used when there is no prior local document to merge against).
func (e OplogEntry) ToDocument() Document {
	doc := Document{
		Collection: e.Collection,
		Key:        e.Key,
		Data:       e.Data,
		Timestamp:  e.Timestamp,
		Tombstone:  e.Operation == OpDelete,
	}
	if doc.Tombstone {
		doc.Data = nil
	}
	return doc
}

// RemotePeer is a known peer this node may sync or gossip with.
type RemotePeer struct {
	NodeID   string
	Host     string
	Port     int
	Type     PeerType
	LastSeen time.Time
	Enabled  bool
}

// Addr returns the "host:port" dial target for this peer.
func (p RemotePeer) Addr() string {
	return p.Host + ":" + strconv.Itoa(p.Port)
}
