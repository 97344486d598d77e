// Package security encrypts small secrets kept in configuration, such as the
// SMTP password.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var (
	ErrDecrypt = errors.New("cannot decrypt value")
	ErrNoKey   = errors.New("SECRETS_KEY is not set")
)

// ParseKey decodes a base64 key into the form secretbox expects.
func ParseKey(encoded string) (*[keySize]byte, error) {
	if encoded == "" {
		return nil, ErrNoKey
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(raw))
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}

// EncryptString seals plain with the configured key.
func EncryptString(plain string) (string, error) {
	key, err := ParseKey(GetConfig().SecretsKey)
	if err != nil {
		return "", err
	}
	return EncryptWithKey(key, plain)
}

// DecryptString opens a value produced by EncryptString.
func DecryptString(sealed string) (string, error) {
	key, err := ParseKey(GetConfig().SecretsKey)
	if err != nil {
		return "", err
	}
	return DecryptWithKey(key, sealed)
}

// EncryptWithKey returns base64(nonce || box).
func EncryptWithKey(key *[keySize]byte, plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func DecryptWithKey(key *[keySize]byte, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: value too short", ErrDecrypt)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, key)
	if !ok {
		return "", fmt.Errorf("%w: authentication failed", ErrDecrypt)
	}
	return string(plain), nil
}
