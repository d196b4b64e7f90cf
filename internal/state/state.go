package state

import (
	"fmt"

	"github.com/eigerco/jamcore/internal/block"
	"github.com/eigerco/jamcore/internal/jamtime"
)

// State is the chain state projection after the last imported block
type State struct {
	LastSlot       jamtime.Timeslot `json:"last_slot"`
	Counter        uint64           `json:"counter"`         // valid tickets plus valid preimages observed so far
	ValidPreimages uint64           `json:"valid_preimages"` // preimages with a non empty blob observed so far
	Tickets        TicketState      `json:"tickets"`
}

// Apply moves the state to the given block. The block is expected to have
// passed import validation already, slot ordering is not checked again.
// A ticket count mismatch is still rejected and leaves the state untouched.
func (s *State) Apply(b block.Block) error {
	tickets := s.Tickets
	if b.Header.HasTicketsMark() {
		if err := tickets.ApplyTickets(b.Extrinsic.Tickets, b.Header.TicketsMark); err != nil {
			return fmt.Errorf("apply tickets: %w", err)
		}
	}

	var preimages uint64
	for _, p := range b.Extrinsic.Preimages {
		if len(p.Blob) > 0 {
			preimages++
		}
	}

	s.LastSlot = b.Header.Slot
	s.Tickets = tickets
	s.ValidPreimages += preimages
	s.Counter = s.Tickets.ValidTickets + s.ValidPreimages
	return nil
}
