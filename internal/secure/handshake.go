package secure

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"io"
	"time"

	"github.com/peerdoc/peerdoc/internal/errs"
)

// HandshakeTimeout bounds the ECDH key exchange (spec §5).
const HandshakeTimeout = 30 * time.Second

// cipherState holds the derived, role-assigned AES/HMAC keys for one
// secure channel (spec §4.3).
type cipherState struct {
	encryptKey []byte
	decryptKey []byte
}

type deadlineConn interface {
	SetDeadline(time.Time) error
}

// PerformHandshake runs the ECDH P-256 exchange over rw and returns the
// resulting cipher state. initiator selects K1/K2 role assignment exactly
// as spec §4.3 describes: initiator encrypts with K1, decrypts with K2;
// responder is the mirror image.
func PerformHandshake(rw io.ReadWriter, initiator bool) (*cipherState, error) {
	if dc, ok := rw.(deadlineConn); ok {
		_ = dc.SetDeadline(time.Now().Add(HandshakeTimeout))
		defer dc.SetDeadline(time.Time{})
	}

	curve := ecdh.P256()
	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errs.Crypto("secure: generate ephemeral key", err)
	}

	localSPKI, err := x509.MarshalPKIXPublicKey(priv.PublicKey())
	if err != nil {
		return nil, errs.Crypto("secure: marshal SPKI public key", err)
	}

	if err := writeLengthPrefixed(rw, localSPKI); err != nil {
		return nil, err
	}

	peerSPKI, err := readLengthPrefixed(rw)
	if err != nil {
		return nil, err
	}

	peerPubAny, err := x509.ParsePKIXPublicKey(peerSPKI)
	if err != nil {
		return nil, errs.Crypto("secure: parse peer SPKI public key", err)
	}
	peerPub, err := ecdhPublicKey(peerPubAny)
	if err != nil {
		return nil, err
	}

	sharedSecret, err := priv.ECDH(peerPub)
	if err != nil {
		return nil, errs.Crypto("secure: compute ECDH shared secret", err)
	}

	k1 := sha256.Sum256(append(append([]byte{}, sharedSecret...), 0x00))
	k2 := sha256.Sum256(append(append([]byte{}, sharedSecret...), 0x01))

	if initiator {
		return &cipherState{encryptKey: k1[:], decryptKey: k2[:]}, nil
	}
	return &cipherState{encryptKey: k2[:], decryptKey: k1[:]}, nil
}

func ecdhPublicKey(pub any) (*ecdh.PublicKey, error) {
	switch p := pub.(type) {
	case *ecdh.PublicKey:
		return p, nil
	default:
		// Most SPKI-decoded P-256 keys come back as *ecdsa.PublicKey;
		// re-encode and let the curve parse its own wire form.
		type ecdsaLike interface {
			ECDH() (*ecdh.PublicKey, error)
		}
		if el, ok := pub.(ecdsaLike); ok {
			return el.ECDH()
		}
		return nil, errs.Crypto("secure: unsupported peer public key type", nil)
	}
}

func writeLengthPrefixed(w io.Writer, data []byte) error {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(data)))
	if _, err := w.Write(header); err != nil {
		return errs.Transport("secure: write handshake prolog length", err)
	}
	if _, err := w.Write(data); err != nil {
		return errs.Transport("secure: write handshake prolog payload", err)
	}
	return nil
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, errs.Transport("secure: read handshake prolog length", err)
	}
	length := binary.BigEndian.Uint32(header)
	if length > maxFrameLen {
		return nil, errs.Protocol("secure: handshake prolog length exceeds maximum", nil)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errs.Transport("secure: read handshake prolog payload", err)
	}
	return data, nil
}
