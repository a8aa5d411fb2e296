package wire

import (
	"github.com/peerdoc/peerdoc/internal/hlc"
	"github.com/peerdoc/peerdoc/internal/model"
)

// OplogEntry is the wire shape of model.OplogEntry, with HLC fields
// flattened to (hlcWall, hlcLogic, hlcNode) per spec §4.4/§6.
type OplogEntry struct {
	Collection string
	Key        string
	JSONData   string
	HLCWall    string
	HLCLogic   uint32
	HLCNode    string
	Operation  string
}

// FromDomain flattens a model.OplogEntry into its wire shape.
func FromDomain(e model.OplogEntry) OplogEntry {
	return OplogEntry{
		Collection: e.Collection,
		Key:        e.Key,
		JSONData:   string(e.Data),
		HLCWall:    e.Timestamp.String(),
		HLCLogic:   e.Timestamp.Counter,
		HLCNode:    e.Timestamp.NodeID,
		Operation:  string(e.Operation),
	}
}

// ToDomain reconstructs the model.OplogEntry this wire record represents.
// HLCWall carries the canonical hlc.Timestamp.String() form; HLCLogic and
// HLCNode are redundant with it and used only for cross-schema interop
// where a peer reads the flattened fields directly rather than parsing
// HLCWall.
func (e OplogEntry) ToDomain() (model.OplogEntry, error) {
	ts, err := hlc.Parse(e.HLCWall)
	if err != nil {
		return model.OplogEntry{}, err
	}
	return model.OplogEntry{
		Collection: e.Collection,
		Key:        e.Key,
		Data:       []byte(e.JSONData),
		Timestamp:  ts,
		Operation:  model.Operation(e.Operation),
	}, nil
}

func (e OplogEntry) encode(enc *encoder) {
	enc.writeString(e.Collection)
	enc.writeString(e.Key)
	enc.writeString(e.JSONData)
	enc.writeString(e.HLCWall)
	enc.writeUint32(e.HLCLogic)
	enc.writeString(e.HLCNode)
	enc.writeString(e.Operation)
}

func decodeOplogEntry(dec *decoder) (OplogEntry, error) {
	var e OplogEntry
	var err error
	if e.Collection, err = dec.readString(); err != nil {
		return e, err
	}
	if e.Key, err = dec.readString(); err != nil {
		return e, err
	}
	if e.JSONData, err = dec.readString(); err != nil {
		return e, err
	}
	if e.HLCWall, err = dec.readString(); err != nil {
		return e, err
	}
	if e.HLCLogic, err = dec.readUint32(); err != nil {
		return e, err
	}
	if e.HLCNode, err = dec.readString(); err != nil {
		return e, err
	}
	if e.Operation, err = dec.readString(); err != nil {
		return e, err
	}
	return e, nil
}

func (enc *encoder) writeOplogEntries(entries []OplogEntry) {
	enc.writeUint32(uint32(len(entries)))
	for _, e := range entries {
		e.encode(enc)
	}
}

func (d *decoder) readOplogEntries() ([]OplogEntry, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	if n > maxFieldLen {
		return nil, errTooManyEntries
	}
	out := make([]OplogEntry, n)
	for i := range out {
		e, err := decodeOplogEntry(d)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// HandshakeRequest is the client's application-layer handshake (spec §4.4).
type HandshakeRequest struct {
	NodeID               string
	AuthToken            string
	SupportedCompression []string
}

func (m HandshakeRequest) Encode() []byte {
	var enc encoder
	enc.writeString(m.NodeID)
	enc.writeString(m.AuthToken)
	enc.writeStringSlice(m.SupportedCompression)
	return enc.bytes()
}

func DecodeHandshakeRequest(payload []byte) (HandshakeRequest, error) {
	dec := newDecoder(payload)
	var m HandshakeRequest
	var err error
	if m.NodeID, err = dec.readString(); err != nil {
		return m, err
	}
	if m.AuthToken, err = dec.readString(); err != nil {
		return m, err
	}
	if m.SupportedCompression, err = dec.readStringSlice(); err != nil {
		return m, err
	}
	return m, nil
}

// HandshakeResponse is the server's reply to HandshakeRequest.
type HandshakeResponse struct {
	Accepted            bool
	ServerNodeID        string
	SelectedCompression string
}

func (m HandshakeResponse) Encode() []byte {
	var enc encoder
	enc.writeBool(m.Accepted)
	enc.writeString(m.ServerNodeID)
	enc.writeString(m.SelectedCompression)
	return enc.bytes()
}

func DecodeHandshakeResponse(payload []byte) (HandshakeResponse, error) {
	dec := newDecoder(payload)
	var m HandshakeResponse
	var err error
	if m.Accepted, err = dec.readBool(); err != nil {
		return m, err
	}
	if m.ServerNodeID, err = dec.readString(); err != nil {
		return m, err
	}
	if m.SelectedCompression, err = dec.readString(); err != nil {
		return m, err
	}
	return m, nil
}

// PullChangesRequest asks the server for every oplog entry strictly after
// the given HLC (spec §4.4).
type PullChangesRequest struct {
	SinceWall  string
	SinceLogic uint32
	SinceNode  string
	BatchSize  uint32
}

func (m PullChangesRequest) Encode() []byte {
	var enc encoder
	enc.writeString(m.SinceWall)
	enc.writeUint32(m.SinceLogic)
	enc.writeString(m.SinceNode)
	enc.writeUint32(m.BatchSize)
	return enc.bytes()
}

func DecodePullChangesRequest(payload []byte) (PullChangesRequest, error) {
	dec := newDecoder(payload)
	var m PullChangesRequest
	var err error
	if m.SinceWall, err = dec.readString(); err != nil {
		return m, err
	}
	if m.SinceLogic, err = dec.readUint32(); err != nil {
		return m, err
	}
	if m.SinceNode, err = dec.readString(); err != nil {
		return m, err
	}
	if m.BatchSize, err = dec.readUint32(); err != nil {
		return m, err
	}
	return m, nil
}

// ChangeSetResponse carries a batch of oplog entries plus a hasMore flag
// (spec.md §9 decision: modeled as an explicit field, see DESIGN.md).
type ChangeSetResponse struct {
	Entries []OplogEntry
	HasMore bool
}

func (m ChangeSetResponse) Encode() []byte {
	var enc encoder
	enc.writeOplogEntries(m.Entries)
	enc.writeBool(m.HasMore)
	return enc.bytes()
}

func DecodeChangeSetResponse(payload []byte) (ChangeSetResponse, error) {
	dec := newDecoder(payload)
	var m ChangeSetResponse
	var err error
	if m.Entries, err = dec.readOplogEntries(); err != nil {
		return m, err
	}
	if m.HasMore, err = dec.readBool(); err != nil {
		return m, err
	}
	return m, nil
}

// PushChangesRequest carries a batch of oplog entries sent unsolicited
// (gossip fan-out) or in response to a local write.
type PushChangesRequest struct {
	Entries []OplogEntry
}

func (m PushChangesRequest) Encode() []byte {
	var enc encoder
	enc.writeOplogEntries(m.Entries)
	return enc.bytes()
}

func DecodePushChangesRequest(payload []byte) (PushChangesRequest, error) {
	dec := newDecoder(payload)
	var m PushChangesRequest
	var err error
	if m.Entries, err = dec.readOplogEntries(); err != nil {
		return m, err
	}
	return m, nil
}

// AckResponse is the server's reply to PushChangesRequest.
type AckResponse struct {
	Success bool
}

func (m AckResponse) Encode() []byte {
	var enc encoder
	enc.writeBool(m.Success)
	return enc.bytes()
}

func DecodeAckResponse(payload []byte) (AckResponse, error) {
	dec := newDecoder(payload)
	var m AckResponse
	var err error
	if m.Success, err = dec.readBool(); err != nil {
		return m, err
	}
	return m, nil
}
