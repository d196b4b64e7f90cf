package block

import (
	"errors"
	"fmt"

	"github.com/eigerco/jamcore/internal/crypto"
)

const TicketSignatureSize = crypto.Ed25519SignatureSize

// TicketBody is the committed form of a ticket as it appears in the header's tickets mark
type TicketBody struct {
	ID      crypto.Hash `json:"id"`
	Attempt uint8       `json:"attempt"` // retry counter used when the ticket was built
}

// TicketEnvelope is a ticket as submitted in the extrinsic
type TicketEnvelope struct {
	Attempt   uint8 `json:"attempt"`
	Signature Bytes `json:"signature"`
}

// Validate checks the envelope on its own, independent of the paired mark
func (t TicketEnvelope) Validate() error {
	if len(t.Signature) != TicketSignatureSize {
		return fmt.Errorf("%w: %d (expected %d)", ErrInvalidSignatureLength, len(t.Signature), TicketSignatureSize)
	}
	return nil
}

func (t *TicketBody) UnmarshalJSON(data []byte) error {
	o, err := decodeObject(data, "id", "attempt")
	if err != nil {
		return err
	}
	var out TicketBody
	if err := errors.Join(o.field("id", &out.ID), o.field("attempt", &out.Attempt)); err != nil {
		return err
	}
	*t = out
	return nil
}

func (t *TicketEnvelope) UnmarshalJSON(data []byte) error {
	o, err := decodeObject(data, "attempt", "signature")
	if err != nil {
		return err
	}
	var out TicketEnvelope
	if err := errors.Join(o.field("attempt", &out.Attempt), o.field("signature", &out.Signature)); err != nil {
		return err
	}
	*t = out
	return nil
}
