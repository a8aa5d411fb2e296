package secure

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
)

// compressionThreshold and brotliQuality are spec §6's defaults.
const (
	compressionThreshold = 1024
	brotliQuality        = 4
)

// maybeCompress applies brotli at the spec's quality level when enabled and
// payload exceeds the threshold, but only keeps the result if it is
// strictly smaller than the input (spec §4.3).
func maybeCompress(payload []byte, brotliEnabled bool) (out []byte, compression byte) {
	if !brotliEnabled || len(payload) <= compressionThreshold {
		return payload, compressionNone
	}

	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotliQuality)
	if _, err := w.Write(payload); err != nil {
		return payload, compressionNone
	}
	if err := w.Close(); err != nil {
		return payload, compressionNone
	}

	if buf.Len() < len(payload) {
		return buf.Bytes(), compressionBroli
	}
	return payload, compressionNone
}

func decompress(payload []byte, compression byte) ([]byte, error) {
	if compression != compressionBroli {
		return payload, nil
	}
	r := brotli.NewReader(bytes.NewReader(payload))
	return io.ReadAll(r)
}
