package block

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eigerco/jamcore/internal/crypto"
	"github.com/eigerco/jamcore/internal/jamtime"
)

// Header contains the block metadata and consensus information
type Header struct {
	Parent          crypto.Hash      `json:"parent"`
	ParentStateRoot crypto.Hash      `json:"parent_state_root"`
	ExtrinsicHash   crypto.Hash      `json:"extrinsic_hash"` // commitment to the extrinsic
	Slot            jamtime.Timeslot `json:"slot"`
	EpochMark       *EpochMark       `json:"epoch_mark"`   // only set at epoch boundaries
	TicketsMark     []TicketBody     `json:"tickets_mark"` // nil when absent, one entry per ticket otherwise
	OffendersMark   Offenders        `json:"offenders_mark"`
	AuthorIndex     uint16           `json:"author_index"`
	EntropySource   Bytes            `json:"entropy_source"`
	Seal            Bytes            `json:"seal"`
}

// EpochMark consists of the epoch randomness and the validator keys of the next epoch
type EpochMark struct {
	Entropy        crypto.Hash    `json:"entropy"`
	TicketsEntropy crypto.Hash    `json:"tickets_entropy"`
	Validators     []ValidatorKey `json:"validators"`
}

// UnmarshalJSON requires every header field except the epoch and tickets
// marks, which decode to nil when missing or null.
func (h *Header) UnmarshalJSON(data []byte) error {
	o, err := decodeObject(data,
		"parent", "parent_state_root", "extrinsic_hash", "slot",
		"offenders_mark", "author_index", "entropy_source", "seal",
	)
	if err != nil {
		return err
	}

	var out Header
	if err := errors.Join(
		o.field("parent", &out.Parent),
		o.field("parent_state_root", &out.ParentStateRoot),
		o.field("extrinsic_hash", &out.ExtrinsicHash),
		o.field("slot", &out.Slot),
		o.field("epoch_mark", &out.EpochMark),
		o.field("tickets_mark", &out.TicketsMark),
		o.field("offenders_mark", &out.OffendersMark),
		o.field("author_index", &out.AuthorIndex),
		o.field("entropy_source", &out.EntropySource),
		o.field("seal", &out.Seal),
	); err != nil {
		return err
	}
	*h = out
	return nil
}

func (m *EpochMark) UnmarshalJSON(data []byte) error {
	o, err := decodeObject(data, "entropy", "tickets_entropy", "validators")
	if err != nil {
		return err
	}

	var out EpochMark
	if err := errors.Join(
		o.field("entropy", &out.Entropy),
		o.field("tickets_entropy", &out.TicketsEntropy),
		o.field("validators", &out.Validators),
	); err != nil {
		return err
	}
	*m = out
	return nil
}

// HasTicketsMark reports whether the header commits to a ticket batch
func (h Header) HasTicketsMark() bool {
	return h.TicketsMark != nil
}

// ValidateEntropy parses the entropy source and, when the header carries an
// epoch mark, checks it against the mark's entropy.
func (h Header) ValidateEntropy() (EntropySource, error) {
	es, err := NewEntropySource(h.EntropySource)
	if err != nil {
		return EntropySource{}, err
	}
	if h.EpochMark != nil {
		if err := es.ValidateWithEpochMark(*h.EpochMark); err != nil {
			return EntropySource{}, err
		}
	}
	return es, nil
}

// ValidatorKey is one validator seat of an epoch mark. On the wire it is either
// a hex string or an object carrying an "ed25519" or "bandersnatch" hex field.
type ValidatorKey crypto.Hash

func (k ValidatorKey) MarshalText() ([]byte, error) {
	return crypto.Hash(k).MarshalText()
}

func (k *ValidatorKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return k.set(s)
	}

	var obj struct {
		Ed25519      *string `json:"ed25519"`
		Bandersnatch *string `json:"bandersnatch"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.New("expected hex string or validator object")
	}
	switch {
	case obj.Ed25519 != nil:
		return k.set(*obj.Ed25519)
	case obj.Bandersnatch != nil:
		return k.set(*obj.Bandersnatch)
	}
	return errors.New("expected ed25519 or bandersnatch hex string")
}

func (k *ValidatorKey) set(s string) error {
	h, err := crypto.ParseHash(s)
	if err != nil {
		return fmt.Errorf("validator key: %w", err)
	}
	*k = ValidatorKey(h)
	return nil
}

// Offenders is the set of previously slashed keys. It is always written as a
// JSON array and an empty set decodes to nil.
type Offenders []crypto.Hash

func (o Offenders) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]crypto.Hash(o))
}

func (o *Offenders) UnmarshalJSON(data []byte) error {
	var hashes []crypto.Hash
	if err := json.Unmarshal(data, &hashes); err != nil {
		return err
	}
	if len(hashes) == 0 {
		*o = nil
		return nil
	}
	*o = hashes
	return nil
}
