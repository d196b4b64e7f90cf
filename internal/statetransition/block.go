package statetransition

import (
	"errors"
	"fmt"

	"github.com/eigerco/jamcore/internal/block"
	"github.com/eigerco/jamcore/internal/crypto"
	"github.com/eigerco/jamcore/internal/jamtime"
)

// Linkage is what a block is checked against: the slot of the last imported
// block and, once a block was imported or an initial state was set, the
// fingerprints the next parent link has to match.
type Linkage struct {
	LastSlot      jamtime.Timeslot
	LastHash      *crypto.Hash
	LastStateRoot *crypto.Hash
}

// VerifyBlockStructure checks the shape of a block before anything is compared
// against prior state: a non zero slot, one ticket per tickets mark entry and
// no empty preimage.
func VerifyBlockStructure(cfg HeaderConfig, b block.Block) error {
	if b.Header.Slot == 0 {
		return fmt.Errorf("%w: slot 0 is reserved", ErrInvalidSlot)
	}
	if marks := len(b.Header.TicketsMark); marks != b.Extrinsic.TicketCount() {
		return fmt.Errorf("%w: %d tickets for %d tickets mark entries", ErrInvalidBlockStructure, b.Extrinsic.TicketCount(), marks)
	}
	for i, p := range b.Extrinsic.Preimages {
		if len(p.Blob) == 0 {
			return fmt.Errorf("%w: preimage %d has an empty blob", ErrInvalidPreimage, i)
		}
	}
	if cfg.RequireOffenders && len(b.Header.OffendersMark) == 0 {
		return fmt.Errorf("%w: empty offenders mark", ErrInvalidBlockStructure)
	}
	return nil
}

// VerifyBlockHeader checks the header against the prior linkage and returns
// the parsed entropy source.
func VerifyBlockHeader(cfg HeaderConfig, prior Linkage, h block.Header) (block.EntropySource, error) {
	if cfg.CheckTimeliness && h.Slot.IsInFuture() {
		return block.EntropySource{}, fmt.Errorf("%w: slot %d is in the future", ErrInvalidSlot, h.Slot)
	}
	// P(H)_T < H_T
	if h.Slot <= prior.LastSlot {
		return block.EntropySource{}, fmt.Errorf("%w: slot %d must be greater than %d", ErrInvalidSlot, h.Slot, prior.LastSlot)
	}
	if prior.LastHash != nil && h.Parent != *prior.LastHash {
		return block.EntropySource{}, fmt.Errorf("%w: expected %s, got %s", ErrParentHashMismatch, *prior.LastHash, h.Parent)
	}
	if prior.LastStateRoot != nil && h.ParentStateRoot != *prior.LastStateRoot {
		return block.EntropySource{}, fmt.Errorf("%w: expected %s, got %s", ErrParentStateRootMismatch, *prior.LastStateRoot, h.ParentStateRoot)
	}

	entropy, err := h.ValidateEntropy()
	if err != nil {
		return block.EntropySource{}, fmt.Errorf("%w: %w", ErrInvalidEntropy, err)
	}

	if h.EpochMark != nil {
		if int(h.AuthorIndex) >= len(h.EpochMark.Validators) {
			return block.EntropySource{}, fmt.Errorf("%w: %d for %d validators", ErrInvalidAuthorIndex, h.AuthorIndex, len(h.EpochMark.Validators))
		}
		// nothing to compare the epoch with before the first import
		if cfg.RequireEpochBoundary && prior.LastSlot != 0 && !jamtime.OpensNewEpoch(prior.LastSlot, h.Slot) {
			return block.EntropySource{}, fmt.Errorf("%w: epoch mark at slot %d does not open a new epoch", ErrInvalidBlockStructure, h.Slot)
		}
	}

	if cfg.RequireSeal && len(h.Seal) == 0 {
		return block.EntropySource{}, fmt.Errorf("%w: empty seal", ErrInvalidSignature)
	}
	return entropy, nil
}

// VerifyExtrinsic checks every ticket against its tickets mark entry, the
// preimage requesters and the header's commitment to the extrinsic.
func VerifyExtrinsic(b block.Block) error {
	tickets := b.Extrinsic.Tickets
	marks := b.Header.TicketsMark
	if len(tickets) != len(marks) {
		return fmt.Errorf("%w: %d tickets for %d tickets mark entries", ErrTicketValidation, len(tickets), len(marks))
	}
	for i, ticket := range tickets {
		if ticket.Attempt != marks[i].Attempt {
			return fmt.Errorf("%w: ticket %d attempt %d does not match mark attempt %d", ErrTicketValidation, i, ticket.Attempt, marks[i].Attempt)
		}
		if err := ticket.Validate(); err != nil {
			return fmt.Errorf("%w: ticket %d: %w", ErrTicketValidation, i, err)
		}
	}

	for i, p := range b.Extrinsic.Preimages {
		if p.Requester == 0 {
			return fmt.Errorf("%w: preimage %d has requester 0", ErrInvalidPreimage, i)
		}
	}

	// H_X ≡ H(E(extrinsic))
	expected, err := b.Extrinsic.Hash()
	if err != nil {
		return errors.Join(ErrInvalidInclusionProof, err)
	}
	if b.Header.ExtrinsicHash != expected {
		return fmt.Errorf("%w: extrinsic hash %s, computed %s", ErrInvalidInclusionProof, b.Header.ExtrinsicHash, expected)
	}
	return nil
}
