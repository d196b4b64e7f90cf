package block

import (
	"fmt"

	"github.com/eigerco/jamcore/internal/crypto"
)

const (
	EntropySourceSize = 3 * EntropyChunkSize
	EntropyChunkSize  = crypto.HashSize
)

// EntropySource is the header entropy payload split into its current, next and
// final 32 byte values, in that order.
type EntropySource struct {
	current crypto.Hash
	next    crypto.Hash
	final   crypto.Hash
}

// NewEntropySource splits a 96 byte entropy payload into its three chunks
func NewEntropySource(b []byte) (EntropySource, error) {
	if len(b) != EntropySourceSize {
		return EntropySource{}, fmt.Errorf("%w: %d (expected %d)", ErrInvalidEntropySize, len(b), EntropySourceSize)
	}

	var es EntropySource
	copy(es.current[:], b[:EntropyChunkSize])
	copy(es.next[:], b[EntropyChunkSize:2*EntropyChunkSize])
	copy(es.final[:], b[2*EntropyChunkSize:])
	return es, nil
}

// ValidateWithEpochMark checks that the current entropy equals the epoch mark entropy
func (e EntropySource) ValidateWithEpochMark(mark EpochMark) error {
	if e.current != mark.Entropy {
		return fmt.Errorf("%w: current %s, epoch mark %s", ErrEntropyMismatch, e.current, mark.Entropy)
	}
	return nil
}

func (e EntropySource) Current() crypto.Hash {
	return e.current
}

func (e EntropySource) Next() crypto.Hash {
	return e.next
}

func (e EntropySource) Final() crypto.Hash {
	return e.final
}
