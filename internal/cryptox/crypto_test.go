package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	pw := []byte("correct horse")
	salt := []byte("0123456789abcdef")

	a := DeriveKey(pw, salt)
	b := DeriveKey(pw, salt)
	require.Equal(t, a, b, "same password+salt must derive the same key")
	require.Len(t, a, 32)
}

func TestDeriveKey_SaltMatters(t *testing.T) {
	pw := []byte("correct horse")
	a := DeriveKey(pw, []byte("salt-one........"))
	b := DeriveKey(pw, []byte("salt-two........"))
	require.False(t, bytes.Equal(a, b), "different salts must derive different keys")
}

func TestMakeVerifier(t *testing.T) {
	key := DeriveKey([]byte("pw"), []byte("salt"))
	v1 := MakeVerifier(key)
	v2 := MakeVerifier(key)
	require.Equal(t, v1, v2)
	require.Len(t, v1, 32)
	require.False(t, bytes.Equal(v1, key), "verifier must not equal the key")
}
