// Package encryption provides authenticated encryption for stored
// third-party API keys.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	// masterKeyHexLen is the required length of the master key: 32 bytes as
	// 64 hex characters.
	masterKeyHexLen = 64

	// kdfSalt is fixed across all records so the derived key is stable
	// across process restarts. Changing it would orphan every existing
	// ciphertext, so it is part of the storage format.
	kdfSalt = "scalemako-salt-v1"

	nonceSize = 16
	tagSize   = 16

	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// Errors returned by the cipher. Decryption failures of any kind collapse
// into ErrCannotDecrypt; the caller never sees partial plaintext.
var (
	ErrEmptyPlaintext = errors.New("cannot encrypt empty string")
	ErrCannotDecrypt  = errors.New("cannot decrypt")
)

// Cipher performs AES-256-GCM encryption with a key derived once from the
// master secret. Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New derives the data key from the master secret and returns a ready
// cipher. The master secret must be exactly 64 hex characters; anything else
// is a startup-time fatal error, never a per-call one.
func New(masterKeyHex string) (*Cipher, error) {
	if masterKeyHex == "" {
		return nil, errors.New("encryption master key is required (64 hex characters)")
	}
	if len(masterKeyHex) != masterKeyHexLen {
		return nil, fmt.Errorf("encryption master key must be %d hex characters, got %d", masterKeyHexLen, len(masterKeyHex))
	}
	if _, err := hex.DecodeString(masterKeyHex); err != nil {
		return nil, fmt.Errorf("encryption master key is not valid hex: %w", err)
	}

	// The hex string itself is the KDF input, not its decoded bytes; this
	// matches the format of records already in production.
	key, err := scrypt.Key([]byte(masterKeyHex), []byte(kdfSalt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init aes: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals the plaintext with a fresh random nonce and returns the
// self-contained envelope `nonce:tag:ciphertext`, each part base64-encoded.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	enc := base64.StdEncoding
	return enc.EncodeToString(nonce) + ":" + enc.EncodeToString(tag) + ":" + enc.EncodeToString(ciphertext), nil
}

// Decrypt opens an envelope produced by Encrypt. A malformed envelope, a
// tampered component, or the wrong key all return ErrCannotDecrypt.
func (c *Cipher) Decrypt(envelope string) (string, error) {
	if envelope == "" {
		return "", fmt.Errorf("%w: empty envelope", ErrCannotDecrypt)
	}

	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: expected nonce:tag:ciphertext", ErrCannotDecrypt)
	}

	enc := base64.StdEncoding
	nonce, err := enc.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", fmt.Errorf("%w: bad nonce", ErrCannotDecrypt)
	}
	tag, err := enc.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: bad auth tag", ErrCannotDecrypt)
	}
	ciphertext, err := enc.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext", ErrCannotDecrypt)
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotDecrypt, err)
	}

	return string(plaintext), nil
}
