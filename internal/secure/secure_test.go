package secure

import (
	"bytes"
	"net"
	"sync"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := Frame{Type: TypePullChangesReq, Compression: compressionNone, Payload: []byte("hello")}

	if err := WriteFrame(&buf, want); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Type != want.Type || got.Compression != want.Compression || !bytes.Equal(got.Payload, want.Payload) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestCompressionAppliedOnlyWhenSmaller(t *testing.T) {
	small := []byte("short")
	out, comp := maybeCompress(small, true)
	if comp != compressionNone || !bytes.Equal(out, small) {
		t.Fatal("payload under threshold must not be compressed")
	}

	large := bytes.Repeat([]byte("a"), 4096)
	out, comp = maybeCompress(large, true)
	if comp != compressionBroli {
		t.Fatal("payload over threshold with repetitive content should compress smaller")
	}
	if len(out) >= len(large) {
		t.Fatal("compressed output should be strictly smaller")
	}

	restored, err := decompress(out, comp)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(restored, large) {
		t.Fatal("decompressed payload must match original")
	}
}

func TestRecordCryptoRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	record, err := encryptRecord(key, plaintext)
	if err != nil {
		t.Fatalf("encryptRecord: %v", err)
	}
	got, err := decryptRecord(key, record)
	if err != nil {
		t.Fatalf("decryptRecord: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("decrypted mismatch: got %q want %q", got, plaintext)
	}
}

func TestRecordCryptoTamperDetection(t *testing.T) {
	key := bytes.Repeat([]byte{0x7}, 32)
	record, err := encryptRecord(key, []byte("integrity matters"))
	if err != nil {
		t.Fatalf("encryptRecord: %v", err)
	}

	tampered := append([]byte{}, record...)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := decryptRecord(key, tampered); err == nil {
		t.Fatal("expected HMAC verification failure on tampered tag")
	}

	tamperedCiphertext := append([]byte{}, record...)
	tamperedCiphertext[ivSize] ^= 0xFF
	if _, err := decryptRecord(key, tamperedCiphertext); err == nil {
		t.Fatal("expected HMAC verification failure on tampered ciphertext")
	}
}

func TestECDHHandshakeSymmetricKeyAssignment(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	var wg sync.WaitGroup
	wg.Add(2)

	var clientState, serverState *cipherState
	var clientErr, serverErr error

	go func() {
		defer wg.Done()
		clientState, clientErr = PerformHandshake(clientConn, true)
	}()
	go func() {
		defer wg.Done()
		serverState, serverErr = PerformHandshake(serverConn, false)
	}()
	wg.Wait()

	if clientErr != nil {
		t.Fatalf("client handshake: %v", clientErr)
	}
	if serverErr != nil {
		t.Fatalf("server handshake: %v", serverErr)
	}

	if !bytes.Equal(clientState.encryptKey, serverState.decryptKey) {
		t.Fatal("client encryptKey must equal server decryptKey")
	}
	if !bytes.Equal(clientState.decryptKey, serverState.encryptKey) {
		t.Fatal("client decryptKey must equal server encryptKey")
	}
}

func TestSecureChannelEndToEnd(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientCh := NewChannel(clientConn)
	serverCh := NewChannel(serverConn)

	var wg sync.WaitGroup
	wg.Add(2)
	var clientErr, serverErr error

	go func() {
		defer wg.Done()
		clientErr = clientCh.Secure(true)
	}()
	go func() {
		defer wg.Done()
		serverErr = serverCh.Secure(false)
	}()
	wg.Wait()

	if clientErr != nil {
		t.Fatalf("client secure: %v", clientErr)
	}
	if serverErr != nil {
		t.Fatalf("server secure: %v", serverErr)
	}

	payload := []byte(`{"hello":"world"}`)
	sendErrCh := make(chan error, 1)
	go func() {
		sendErrCh <- clientCh.SendFrame(TypePullChangesReq, payload)
	}()

	gotType, gotPayload, err := serverCh.ReceiveFrame()
	if err != nil {
		t.Fatalf("ReceiveFrame: %v", err)
	}
	if err := <-sendErrCh; err != nil {
		t.Fatalf("SendFrame: %v", err)
	}

	if gotType != TypePullChangesReq {
		t.Fatalf("unexpected message type: %d", gotType)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload mismatch: got %q want %q", gotPayload, payload)
	}
}
