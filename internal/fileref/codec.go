// Package fileref issues signed upload and download targets and hides
// storage keys behind encrypted, opaque file reference tokens.
package fileref

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/ibcol/portal/internal/common"
	"github.com/ibcol/portal/internal/cryptox"
)

const tokenVersion byte = 0x01

var (
	keySalt        = []byte("ibcol.fileref.key.v1")
	additionalData = []byte("ibcol.fileref.v1")

	// Strict rejects non-zero trailing bits, so each token has one spelling.
	tokenEncoding = base64.RawURLEncoding.Strict()
)

// Codec converts storage keys to file references and back. Any instance
// built from the same secret decodes the references of any other.
type Codec struct {
	key []byte
}

// NewCodec derives the token key from the shared secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: file reference secret is empty", common.ErrConfiguration)
	}
	return &Codec{key: cryptox.DeriveKey([]byte(secret), keySalt)}, nil
}

// Encode seals key into a URL-safe token. Each call draws a fresh nonce,
// so the same key never encodes to the same token twice.
func (c *Codec) Encode(key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("%w: malformed storage key %q", common.ErrValidation, key)
	}

	sealed, err := cryptox.Seal(c.key, []byte(key), additionalData)
	if err != nil {
		return "", fmt.Errorf("seal file reference: %w", err)
	}

	buf := make([]byte, 0, 1+len(sealed))
	buf = append(buf, tokenVersion)
	buf = append(buf, sealed...)
	return tokenEncoding.EncodeToString(buf), nil
}

// Decode recovers the storage key. Every failure, whether bad encoding,
// wrong secret, tampering or an unexpected key shape, is ErrInvalidReference.
func (c *Codec) Decode(ref string) (string, error) {
	raw, err := tokenEncoding.DecodeString(ref)
	if err != nil {
		return "", invalid("not base64url")
	}
	if len(raw) < 1+cryptox.Overhead() || raw[0] != tokenVersion {
		return "", invalid("unknown format")
	}

	plain, err := cryptox.Open(c.key, raw[1:], additionalData)
	if err != nil {
		if errors.Is(err, cryptox.ErrCiphertext) {
			return "", invalid("authentication failed")
		}
		return "", fmt.Errorf("open file reference: %w", err)
	}

	key := string(plain)
	if !ValidKey(key) {
		return "", invalid("unexpected key shape")
	}
	return key, nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidReference, reason)
}
