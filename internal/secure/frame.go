// Package secure implements the framed, optionally compressed and
// encrypted transport channel used by the sync protocol (spec §4.3).
package secure

import (
	"encoding/binary"
	"io"

	"github.com/peerdoc/peerdoc/internal/errs"
)

// Outer frame type constants (spec §4.4).
const (
	TypeHandshakeRequest  byte = 1
	TypeHandshakeResponse byte = 2
	TypePullChangesReq    byte = 5
	TypeChangeSetResp     byte = 6
	TypePushChangesReq    byte = 7
	TypeAckResponse       byte = 8
	TypeSecureEnvelope    byte = 9
)

const (
	compressionNone  byte = 0
	compressionBroli byte = 1
)

// maxFrameLen guards against a malicious or corrupted length prefix
// forcing an unbounded allocation.
const maxFrameLen = 64 << 20

// Frame is one decoded logical message: [len(4,LE)][type][compression][payload].
type Frame struct {
	Type        byte
	Compression byte
	Payload     []byte
}

// WriteFrame encodes and writes f to w.
func WriteFrame(w io.Writer, f Frame) error {
	header := make([]byte, 6)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(f.Payload)))
	header[4] = f.Type
	header[5] = f.Compression

	if _, err := w.Write(header); err != nil {
		return errs.Transport("secure: write frame header", err)
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return errs.Transport("secure: write frame payload", err)
		}
	}
	return nil
}

// ReadFrame reads and decodes one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, errs.Transport("secure: read frame header", err)
	}

	length := binary.LittleEndian.Uint32(header[0:4])
	if length > maxFrameLen {
		return Frame{}, errs.Protocol("secure: frame length exceeds maximum", nil)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, errs.Transport("secure: read frame payload", err)
		}
	}

	return Frame{Type: header[4], Compression: header[5], Payload: payload}, nil
}
