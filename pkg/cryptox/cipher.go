package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrCipher reports an encode/decode failure at the encryption boundary
// (corrupt ciphertext, key mismatch, truncated input).
var ErrCipher = errors.New("cryptox: cipher failure")

// CipherExecutor keeps a secret encrypted while at rest. Encode is called on
// the way into a backing store, Decode on the way out; plaintext only exists
// inside the span of a single repository call. Implementations must be safe
// for concurrent use.
type CipherExecutor interface {
	Encode(plaintext string) (string, error)
	Decode(ciphertext string) (string, error)
}

// AESCipher is a CipherExecutor backed by AES-256-GCM. The working key is
// derived from caller-supplied key material via HKDF-SHA256, so any length of
// master secret (file contents, env var) is acceptable input.
//
// Ciphertext layout is [12-byte nonce][sealed data][16-byte tag], base64url
// encoded without padding.
type AESCipher struct {
	aead cipher.AEAD
}

const cipherKeyInfo = "ssokit/otp-secret-at-rest"

// NewAESCipher derives an AES-256 key from keyMaterial and returns a ready
// cipher. Empty key material is rejected rather than silently producing a
// weak key.
func NewAESCipher(keyMaterial []byte) (*AESCipher, error) {
	if len(keyMaterial) == 0 {
		return nil, fmt.Errorf("%w: empty key material", ErrCipher)
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, keyMaterial, nil, []byte(cipherKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("%w: key derivation: %v", ErrCipher, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCipher, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCipher, err)
	}

	return &AESCipher{aead: aead}, nil
}

func (c *AESCipher) Encode(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: nonce: %v", ErrCipher, err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *AESCipher) Decode(ciphertext string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext: %v", ErrCipher, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrCipher)
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCipher, err)
	}

	return string(plaintext), nil
}

// NoopCipher passes secrets through unmodified. Only for tests and local
// development where nothing is actually at rest.
type NoopCipher struct{}

func (NoopCipher) Encode(plaintext string) (string, error)  { return plaintext, nil }
func (NoopCipher) Decode(ciphertext string) (string, error) { return ciphertext, nil }
