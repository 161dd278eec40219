// Package secrets provides the encrypt/decrypt capability used for users'
// network folder passwords. Values are sealed with AES-256-GCM under a key
// derived from a configured passphrase; the rest of the application treats
// the cipher as an opaque collaborator.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen     = 32
	pbkdf2Iter = 100_000
)

// The salt is fixed so that independently started processes derive the same
// key from the same passphrase. Confidentiality rests on the passphrase.
var keySalt = []byte("ricoh-fleet-secrets-v1")

// Cipher encrypts and decrypts short secrets such as folder passwords.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the encryption key from the passphrase and returns a
// ready-to-use cipher.
func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, errors.New("encryption passphrase is required")
	}

	key := pbkdf2.Key([]byte(passphrase), keySalt, pbkdf2Iter, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals the plaintext and returns a base64-encoded token.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("cannot encrypt empty value")
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt and returns the plaintext.
func (c *Cipher) Decrypt(token string) (string, error) {
	if token == "" {
		return "", errors.New("cannot decrypt empty value")
	}

	sealed, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %w", err)
	}

	if len(sealed) < c.aead.NonceSize() {
		return "", errors.New("malformed ciphertext: too short")
	}

	nonce, body := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}

	return string(plaintext), nil
}
