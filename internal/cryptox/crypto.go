// Package cryptox provides key derivation used for offline credential
// verification: an argon2id-derived key and a sha256 verifier stored locally,
// so the user can be re-authenticated without the server.
package cryptox

import (
	"crypto/sha256"

	"golang.org/x/crypto/argon2"
)

// DeriveKey derives a 32-byte key from the password and salt using argon2id.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// MakeVerifier returns the value stored locally to check a derived key
// against without keeping the key itself.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}
