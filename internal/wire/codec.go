package wire

import "github.com/peerdoc/peerdoc/internal/secure"

// Message is any of the six sync protocol payloads.
type Message interface {
	Encode() []byte
	FrameType() byte
}

func (HandshakeRequest) FrameType() byte   { return secure.TypeHandshakeRequest }
func (HandshakeResponse) FrameType() byte  { return secure.TypeHandshakeResponse }
func (PullChangesRequest) FrameType() byte { return secure.TypePullChangesReq }
func (ChangeSetResponse) FrameType() byte  { return secure.TypeChangeSetResp }
func (PushChangesRequest) FrameType() byte { return secure.TypePushChangesReq }
func (AckResponse) FrameType() byte        { return secure.TypeAckResponse }

// Decode dispatches on the outer frame type and returns the decoded
// message as one of the typed structs in this package.
func Decode(msgType byte, payload []byte) (any, error) {
	switch msgType {
	case secure.TypeHandshakeRequest:
		return DecodeHandshakeRequest(payload)
	case secure.TypeHandshakeResponse:
		return DecodeHandshakeResponse(payload)
	case secure.TypePullChangesReq:
		return DecodePullChangesRequest(payload)
	case secure.TypeChangeSetResp:
		return DecodeChangeSetResponse(payload)
	case secure.TypePushChangesReq:
		return DecodePushChangesRequest(payload)
	case secure.TypeAckResponse:
		return DecodeAckResponse(payload)
	default:
		return nil, errUnknownFrameType
	}
}
