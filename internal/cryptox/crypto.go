// Package cryptox wraps the symmetric primitives behind file reference tokens.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
)

// KeySize is the AES-256 key length produced by DeriveKey.
const KeySize = 32

// ErrCiphertext is returned by Open when the input is too short or fails
// authentication (wrong key, tampering, truncation).
var ErrCiphertext = errors.New("cryptox: message authentication failed")

// DeriveKey stretches a shared secret into an AES-256 key with Argon2id.
//
// The salt is a fixed, per-purpose label rather than random data: every
// instance sharing the secret must derive the same key so that tokens minted
// by one instance decode on any other.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
}

// Seal encrypts plaintext with AES-GCM under key and returns nonce||ciphertext.
//
// A fresh random nonce is drawn for every call, so sealing the same plaintext
// twice yields different outputs. additionalData is authenticated but not
// encrypted; the same value must be passed to Open.
func Seal(key, plaintext, additionalData []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open reverses Seal. Any malformed or forged input yields ErrCiphertext.
func Open(key, sealed, additionalData []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	ns := aesgcm.NonceSize()
	if len(sealed) < ns+aesgcm.Overhead() {
		return nil, ErrCiphertext
	}

	plaintext, err := aesgcm.Open(nil, sealed[:ns], sealed[ns:], additionalData)
	if err != nil {
		return nil, ErrCiphertext
	}
	return plaintext, nil
}

// Overhead is the number of bytes Seal adds to a plaintext.
func Overhead() int {
	// 12-byte standard GCM nonce + 16-byte tag.
	return 12 + 16
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
