// Package crypto provides one-way password hashing for the credential store.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrMalformedDigest = errors.New("crypto: malformed password digest")

// Argon2id parameters. Changing these invalidates stored digests, so any
// future change needs a digest version prefix first.
const (
	saltLength = 16
	keyLength  = 32
	argonTime  = 1
	argonMem   = 64 * 1024
	argonLanes = 4
)

// HashPassword derives an Argon2id digest from a password with a fresh
// random salt. The returned digest is "base64(salt)$base64(key)".
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("crypto: generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMem, argonLanes, keyLength)
	return base64.RawStdEncoding.EncodeToString(salt) + "$" + base64.RawStdEncoding.EncodeToString(key), nil
}

// VerifyPassword reports whether password matches a digest produced by
// HashPassword. A malformed digest verifies as false.
func VerifyPassword(password, digest string) bool {
	salt, want, err := decodeDigest(digest)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, argonTime, argonMem, argonLanes, keyLength)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func decodeDigest(digest string) (salt, key []byte, err error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 2 {
		return nil, nil, ErrMalformedDigest
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil || len(salt) != saltLength {
		return nil, nil, ErrMalformedDigest
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil || len(key) != keyLength {
		return nil, nil, ErrMalformedDigest
	}
	return salt, key, nil
}
