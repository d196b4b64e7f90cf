package state

import (
	"errors"
	"fmt"

	"github.com/eigerco/jamcore/internal/block"
	"github.com/eigerco/jamcore/internal/crypto"
)

var ErrTicketCountMismatch = errors.New("ticket count mismatch")

// TicketState keeps ticket statistics across imported blocks
type TicketState struct {
	TotalTickets   uint64       `json:"total_tickets"`
	ValidTickets   uint64       `json:"valid_tickets"`
	InvalidTickets uint64       `json:"invalid_tickets"`
	LastTicketID   *crypto.Hash `json:"last_ticket_id"`
}

// ApplyTickets reconciles submitted tickets against the header marks pairwise.
// A pair whose attempts differ or whose envelope is malformed is counted as
// invalid instead of failing. Only a count mismatch is an error.
func (t *TicketState) ApplyTickets(tickets []block.TicketEnvelope, marks []block.TicketBody) error {
	if len(tickets) != len(marks) {
		return fmt.Errorf("%w: %d tickets vs %d marks", ErrTicketCountMismatch, len(tickets), len(marks))
	}

	t.TotalTickets += uint64(len(tickets))
	for i, ticket := range tickets {
		mark := marks[i]
		if ticket.Attempt != mark.Attempt || ticket.Validate() != nil {
			t.InvalidTickets++
			continue
		}
		t.ValidTickets++
		id := mark.ID
		t.LastTicketID = &id
	}
	return nil
}
