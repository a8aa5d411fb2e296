// Package replicate is the shared resolve-then-apply path used by the sync
// server's push handler, the sync orchestrator's pull loop, and gossip's
// receive path: fold each incoming entry's HLC into the local clock,
// resolve it against current document state, and apply whatever survives
// as one atomic batch (spec §4.7/§4.8's "entries feed HLC update and
// resolver externally" note).
package replicate

import (
	"context"

	"github.com/peerdoc/peerdoc/internal/errs"
	"github.com/peerdoc/peerdoc/internal/hlc"
	"github.com/peerdoc/peerdoc/internal/model"
	"github.com/peerdoc/peerdoc/internal/resolver"
	"github.com/peerdoc/peerdoc/internal/store"
)

// ApplyIncoming updates clock from every entry's timestamp, resolves each
// entry against the store's current document state under policy, and
// commits every resolved apply in a single store.ApplyBatch call.
func ApplyIncoming(ctx context.Context, st store.Contract, clock *hlc.Clock, policy resolver.Policy, entries []model.OplogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	type key struct{ collection, id string }

	docs := make([]model.Document, 0, len(entries))
	oplog := make([]model.OplogEntry, 0, len(entries))
	folded := make(map[key]int) // key -> index into docs, for entries already resolved this batch

	for _, entry := range entries {
		clock.Update(entry.Timestamp)

		k := key{entry.Collection, entry.Key}

		var localPtr *model.Document
		if idx, ok := folded[k]; ok {
			localPtr = &docs[idx]
		} else {
			local, ok, err := st.GetDocument(ctx, entry.Collection, entry.Key)
			if err != nil {
				return errs.Store("replicate: get document for resolve", err)
			}
			if ok {
				localPtr = &local
			}
		}

		result := policy.Resolve(localPtr, entry)
		if result.Decision != resolver.Apply {
			continue
		}

		if idx, ok := folded[k]; ok {
			docs[idx] = result.Document
		} else {
			folded[k] = len(docs)
			docs = append(docs, result.Document)
		}
		oplog = append(oplog, entry)
	}

	if len(docs) == 0 {
		return nil
	}
	return st.ApplyBatch(ctx, docs, oplog)
}
