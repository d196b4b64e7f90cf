package block

import (
	"errors"
	"fmt"

	"github.com/eigerco/jamcore/internal/crypto"
)

// Extrinsic is the block payload excluding the header. Guarantees, assurances
// and disputes are carried as payloads and parsed by the CoreTime ledger.
type Extrinsic struct {
	Tickets    []TicketEnvelope `json:"tickets"`
	Preimages  []Preimage       `json:"preimages"`
	Guarantees []Payload        `json:"guarantees"`
	Assurances []Payload        `json:"assurances"`
	Disputes   Payload          `json:"disputes"`
}

type extrinsicJSON Extrinsic

// MarshalJSON writes the canonical serialization. Empty sequences are written
// as [] and an absent disputes record as null.
func (e Extrinsic) MarshalJSON() ([]byte, error) {
	out := extrinsicJSON(e)
	if out.Tickets == nil {
		out.Tickets = []TicketEnvelope{}
	}
	if out.Preimages == nil {
		out.Preimages = []Preimage{}
	}
	if out.Guarantees == nil {
		out.Guarantees = []Payload{}
	}
	if out.Assurances == nil {
		out.Assurances = []Payload{}
	}
	return marshalJSON(out)
}

// UnmarshalJSON requires all five members. Disputes may be null, the lists may
// not.
func (e *Extrinsic) UnmarshalJSON(data []byte) error {
	o, err := decodeObject(data, "tickets", "preimages", "guarantees", "assurances")
	if err != nil {
		return err
	}
	if !o.has("disputes") {
		return errors.New("missing field `disputes`")
	}

	var in Extrinsic
	if err := errors.Join(
		o.field("tickets", &in.Tickets),
		o.field("preimages", &in.Preimages),
		o.field("guarantees", &in.Guarantees),
		o.field("assurances", &in.Assurances),
		o.field("disputes", &in.Disputes),
	); err != nil {
		return err
	}
	if len(in.Tickets) == 0 {
		in.Tickets = nil
	}
	if len(in.Preimages) == 0 {
		in.Preimages = nil
	}
	if len(in.Guarantees) == 0 {
		in.Guarantees = nil
	}
	if len(in.Assurances) == 0 {
		in.Assurances = nil
	}
	*e = in
	return nil
}

// Hash computes the Blake2b-256 digest of the extrinsic's canonical serialization
func (e Extrinsic) Hash() (crypto.Hash, error) {
	data, err := marshalJSON(e)
	if err != nil {
		return crypto.Hash{}, fmt.Errorf("serialize extrinsic: %w", err)
	}
	return crypto.HashData(data), nil
}

// TicketCount returns the number of submitted tickets
func (e Extrinsic) TicketCount() int {
	return len(e.Tickets)
}

// HasCoreTimePayloads reports whether the extrinsic carries any guarantees,
// assurances or a disputes record.
func (e Extrinsic) HasCoreTimePayloads() bool {
	return len(e.Guarantees) > 0 || len(e.Assurances) > 0 || !e.Disputes.IsAbsent()
}
