// Package wire implements the schema-defined record encoding for the six
// sync protocol message types (spec §4.4/§6). Fields are fixed-order and
// length-prefixed; there is no generic schema/codegen tooling available in
// this build, so the codec is a direct, hand-written mirror of the field
// lists in spec.md.
package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/peerdoc/peerdoc/internal/errs"
)

// maxFieldLen guards against a corrupted length prefix requesting an
// unreasonable allocation.
const maxFieldLen = 64 << 20

var (
	errTooManyEntries   = errs.Protocol("wire: oplog entry count exceeds maximum", nil)
	errUnknownFrameType = errs.Protocol("wire: unknown frame type", nil)
)

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) writeUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) writeBool(v bool) {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

func (e *encoder) writeString(s string) {
	e.writeUint32(uint32(len(s)))
	e.buf.WriteString(s)
}

func (e *encoder) writeStringSlice(ss []string) {
	e.writeUint32(uint32(len(ss)))
	for _, s := range ss {
		e.writeString(s)
	}
}

func (e *encoder) bytes() []byte { return e.buf.Bytes() }

type decoder struct {
	r io.Reader
}

func newDecoder(payload []byte) *decoder {
	return &decoder{r: bytes.NewReader(payload)}
}

func (d *decoder) readUint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, errs.Protocol("wire: read uint32", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (d *decoder) readBool() (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return false, errs.Protocol("wire: read bool", err)
	}
	return b[0] != 0, nil
}

func (d *decoder) readString() (string, error) {
	length, err := d.readUint32()
	if err != nil {
		return "", err
	}
	if length > maxFieldLen {
		return "", errs.Protocol("wire: string field exceeds maximum length", nil)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", errs.Protocol("wire: read string body", err)
	}
	return string(buf), nil
}

func (d *decoder) readStringSlice() ([]string, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	if n > maxFieldLen {
		return nil, errs.Protocol("wire: string slice exceeds maximum length", nil)
	}
	out := make([]string, n)
	for i := range out {
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
