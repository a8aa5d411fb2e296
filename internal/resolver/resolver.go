package resolver

import (
	"github.com/peerdoc/peerdoc/internal/hlc"
	"github.com/peerdoc/peerdoc/internal/model"
)

// Decision is the outcome of resolving a remote op against local state.
type Decision int

const (
	Ignore Decision = iota
	Apply
)

// Result carries the merged document when Decision is Apply.
type Result struct {
	Decision Decision
	Document model.Document
}

// Policy implements spec §4.2's resolve(localDoc | ∅, remoteOp) -> APPLY|IGNORE.
type Policy interface {
	Resolve(local *model.Document, remote model.OplogEntry) Result
}

// LWW is the default last-write-wins policy.
type LWW struct{}

func (LWW) Resolve(local *model.Document, remote model.OplogEntry) Result {
	if local == nil {
		return Result{Decision: Apply, Document: remote.ToDocument()}
	}
	if remote.Timestamp.After(local.Timestamp) {
		return Result{Decision: Apply, Document: remote.ToDocument()}
	}
	return Result{Decision: Ignore}
}

// RecursiveMerge deep-merges structured JSON content, falling back to LWW
// whenever a deterministic field-wise merge doesn't apply (spec §4.2).
type RecursiveMerge struct{}

func (RecursiveMerge) Resolve(local *model.Document, remote model.OplogEntry) Result {
	if local == nil {
		return LWW{}.Resolve(local, remote)
	}

	if remote.Operation == model.OpDelete {
		if remote.Timestamp.After(local.Timestamp) {
			return Result{Decision: Apply, Document: model.Document{
				Collection: remote.Collection,
				Key:        remote.Key,
				Timestamp:  remote.Timestamp,
				Tombstone:  true,
			}}
		}
		return Result{Decision: Ignore}
	}

	if local.Tombstone || len(local.Data) == 0 || len(remote.Data) == 0 {
		return LWW{}.Resolve(local, remote)
	}

	localVal, err := Decode(local.Data)
	if err != nil {
		return LWW{}.Resolve(local, remote)
	}
	remoteVal, err := Decode(remote.Data)
	if err != nil {
		return LWW{}.Resolve(local, remote)
	}
	if IsEmpty(localVal) || IsEmpty(remoteVal) {
		return LWW{}.Resolve(local, remote)
	}

	merged := mergeJSON(localVal, local.Timestamp, remoteVal, remote.Timestamp)
	mergedBytes, err := Encode(merged)
	if err != nil {
		return LWW{}.Resolve(local, remote)
	}

	return Result{
		Decision: Apply,
		Document: model.Document{
			Collection: remote.Collection,
			Key:        remote.Key,
			Data:       mergedBytes,
			Timestamp:  hlc.Max(local.Timestamp, remote.Timestamp),
		},
	}
}
