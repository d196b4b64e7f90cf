package block

import (
	"github.com/eigerco/jamcore/internal/crypto"
)

// Bytes is a variable length byte field, 0x prefixed lowercase hex on the wire
type Bytes []byte

func (b Bytes) MarshalText() ([]byte, error) {
	return []byte(crypto.EncodeHex(b)), nil
}

func (b *Bytes) UnmarshalText(text []byte) error {
	decoded, err := crypto.DecodeHex(string(text))
	if err != nil {
		return err
	}
	if len(decoded) == 0 {
		*b = nil
		return nil
	}
	*b = decoded
	return nil
}
