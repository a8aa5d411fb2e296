package secure

import (
	"io"

	"github.com/peerdoc/peerdoc/internal/errs"
)

// Channel wraps a transport connection with optional Brotli compression
// and an optional negotiated cipher state (spec §4.3). A Channel with no
// cipher state behaves as a plain framed connection.
type Channel struct {
	rw            io.ReadWriter
	cipher        *cipherState
	brotliEnabled bool
}

// NewChannel wraps rw as a plain, unencrypted framed channel.
func NewChannel(rw io.ReadWriter) *Channel {
	return &Channel{rw: rw}
}

// Secure negotiates an ECDH handshake over the channel's transport and
// enables record encryption for every subsequent SendFrame/ReceiveFrame.
func (c *Channel) Secure(initiator bool) error {
	cs, err := PerformHandshake(c.rw, initiator)
	if err != nil {
		return err
	}
	c.cipher = cs
	return nil
}

// EnableBrotli turns on payload compression for outgoing frames whose
// size exceeds the configured threshold.
func (c *Channel) EnableBrotli() { c.brotliEnabled = true }

// SendFrame writes one logical application frame, applying compression and
// then, if a cipher is active, wrapping it in a SecureEnvelope (spec §4.3).
func (c *Channel) SendFrame(msgType byte, payload []byte) error {
	body, compression := maybeCompress(payload, c.brotliEnabled)

	if c.cipher == nil {
		return WriteFrame(c.rw, Frame{Type: msgType, Compression: compression, Payload: body})
	}

	inner := make([]byte, 0, 2+len(body))
	inner = append(inner, msgType, compression)
	inner = append(inner, body...)

	record, err := encryptRecord(c.cipher.encryptKey, inner)
	if err != nil {
		return err
	}

	return WriteFrame(c.rw, Frame{Type: TypeSecureEnvelope, Compression: compressionNone, Payload: record})
}

// ReceiveFrame reads one logical application frame, transparently undoing
// the SecureEnvelope (if present) and any compression.
func (c *Channel) ReceiveFrame() (msgType byte, payload []byte, err error) {
	frame, err := ReadFrame(c.rw)
	if err != nil {
		return 0, nil, err
	}

	if frame.Type == TypeSecureEnvelope {
		if c.cipher == nil {
			return 0, nil, errs.Protocol("secure: received envelope on unsecured channel", nil)
		}
		inner, err := decryptRecord(c.cipher.decryptKey, frame.Payload)
		if err != nil {
			return 0, nil, err
		}
		if len(inner) < 2 {
			return 0, nil, errs.Protocol("secure: envelope inner frame too short", nil)
		}
		innerType, innerCompression, innerBody := inner[0], inner[1], inner[2:]
		plain, err := decompress(innerBody, innerCompression)
		if err != nil {
			return 0, nil, errs.Crypto("secure: decompress envelope payload", err)
		}
		return innerType, plain, nil
	}

	plain, err := decompress(frame.Payload, frame.Compression)
	if err != nil {
		return 0, nil, errs.Crypto("secure: decompress frame payload", err)
	}
	return frame.Type, plain, nil
}

// Close closes the underlying transport if it supports io.Closer.
func (c *Channel) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
