package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
)

const (
	nonceLength   = 16
	authTagLength = 16
)

// ErrInvalidToken is returned by Decrypt for any token that cannot be
// authenticated: wrong key, tampering, truncation, or malformed encoding.
// Callers must treat it the same as an absent token.
var ErrInvalidToken = errors.New("invalid session token")

// SessionCodec encrypts and decrypts compact session tokens with
// AES-256-GCM. The key is derived once from the configured secret via
// SHA-256, so changing the secret invalidates all outstanding sessions.
//
// Token layout: hex(nonce || authTag || ciphertext) with a 16-byte nonce
// and a 16-byte tag.
type SessionCodec struct {
	aead cipher.AEAD
}

// NewSessionCodec derives the AES key from secret and returns a codec.
func NewSessionCodec(secret string) (*SessionCodec, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceLength)
	if err != nil {
		return nil, err
	}
	return &SessionCodec{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (c *SessionCodec) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// Seal appends ciphertext||tag; the token format wants nonce||tag||ciphertext.
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ct := sealed[:len(sealed)-authTagLength]
	tag := sealed[len(sealed)-authTagLength:]

	out := make([]byte, 0, nonceLength+authTagLength+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return hex.EncodeToString(out), nil
}

// Decrypt opens a token produced by Encrypt. Any failure yields
// ErrInvalidToken; it never panics on malformed input.
func (c *SessionCodec) Decrypt(token string) ([]byte, error) {
	data, err := hex.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if len(data) < nonceLength+authTagLength {
		return nil, ErrInvalidToken
	}

	nonce := data[:nonceLength]
	tag := data[nonceLength : nonceLength+authTagLength]
	ct := data[nonceLength+authTagLength:]

	sealed := make([]byte, 0, len(ct)+authTagLength)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return plaintext, nil
}
