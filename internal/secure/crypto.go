package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/peerdoc/peerdoc/internal/errs"
)

// hmacSize is fixed by spec §6 (SHA-256, 32 bytes); ivSize by AES's block size.
const (
	hmacSize = sha256.Size
	ivSize   = aes.BlockSize
)

// encryptRecord produces iv || ciphertext || tag, where tag authenticates
// iv||ciphertext via HMAC-SHA-256 (spec §4.3).
func encryptRecord(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.Crypto("secure: new AES cipher", err)
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, errs.Crypto("secure: generate IV", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	mac := hmac.New(sha256.New, key)
	mac.Write(iv)
	mac.Write(ciphertext)
	tag := mac.Sum(nil)

	out := make([]byte, 0, ivSize+len(ciphertext)+hmacSize)
	out = append(out, iv...)
	out = append(out, ciphertext...)
	out = append(out, tag...)
	return out, nil
}

// decryptRecord verifies the HMAC tag in constant time before decrypting.
func decryptRecord(key, record []byte) ([]byte, error) {
	if len(record) < ivSize+hmacSize {
		return nil, errs.Crypto("secure: record too short", nil)
	}

	iv := record[:ivSize]
	ciphertext := record[ivSize : len(record)-hmacSize]
	tag := record[len(record)-hmacSize:]

	mac := hmac.New(sha256.New, key)
	mac.Write(iv)
	mac.Write(ciphertext)
	expected := mac.Sum(nil)

	if !hmac.Equal(expected, tag) {
		return nil, errs.Auth("secure: record HMAC verification failed", nil)
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errs.Crypto("secure: ciphertext not block-aligned", nil)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.Crypto("secure: new AES cipher", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	return pkcs7Unpad(padded)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errs.Crypto("secure: cannot unpad empty data", nil)
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, errs.Crypto("secure: invalid PKCS7 padding", nil)
	}
	return data[:len(data)-padLen], nil
}
