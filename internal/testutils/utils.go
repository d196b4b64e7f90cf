package testutils

import (
	"crypto/rand"
	"testing"

	"github.com/eigerco/jamcore/internal/crypto"
	"github.com/stretchr/testify/require"
)

func RandomHash(t *testing.T) crypto.Hash {
	hash := make([]byte, crypto.HashSize)
	_, err := rand.Read(hash)
	require.NoError(t, err)
	return crypto.Hash(hash)
}

func RandomBytes(t *testing.T, n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func RandomEd25519Signature(t *testing.T) []byte {
	return RandomBytes(t, crypto.Ed25519SignatureSize)
}
