package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

var ErrInvalidHashLength = errors.New("invalid hash length")

// Hash is a 32 byte opaque identifier. It is used for parent links, state
// roots, extrinsic commitments, ticket identifiers and offender keys.
type Hash [HashSize]byte

// HashData returns the Blake2b-256 digest of data.
func HashData(data []byte) Hash {
	hash := blake2b.Sum256(data)
	return hash
}

// ParseHash decodes a hex string, with or without the 0x prefix, into a Hash.
func ParseHash(s string) (Hash, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return Hash{}, err
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHashLength, HashSize, len(b))
	}
	return Hash(b), nil
}

func (h Hash) String() string {
	return EncodeHex(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// EncodeHex encodes bytes as a lowercase 0x prefixed hex string
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeHex decodes a hex string, the 0x prefix is optional
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode hex %q: %w", s, err)
	}
	return b, nil
}
