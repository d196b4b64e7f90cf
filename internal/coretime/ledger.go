package coretime

import (
	"fmt"
	"maps"

	"github.com/eigerco/jamcore/internal/block"
	"github.com/eigerco/jamcore/internal/jamtime"
	"github.com/eigerco/jamcore/internal/safemath"
	"github.com/eigerco/jamcore/pkg/log"
)

// Usage is the cumulative CoreTime record of one core
type Usage struct {
	TotalConsumed     uint64           `json:"total_consumed"`
	LastBlockSlot     jamtime.Timeslot `json:"last_block_slot"`
	LastBlockConsumed uint64           `json:"last_block_consumed"`
}

// Ledger tracks CoreTime allocation and consumption across imported blocks.
// It only grows: a block is either applied as a whole or leaves it untouched.
type Ledger struct {
	totalAllocated uint64
	totalConsumed  uint64
	lastBlockSlot  *jamtime.Timeslot
	perCore        map[uint16]Usage
}

func NewLedger() *Ledger {
	return &Ledger{perCore: make(map[uint16]Usage)}
}

func (l *Ledger) TotalAllocated() uint64 {
	return l.totalAllocated
}

func (l *Ledger) TotalConsumed() uint64 {
	return l.totalConsumed
}

// LastBlockSlot returns the slot of the last block seen by the ledger, false if none
func (l *Ledger) LastBlockSlot() (jamtime.Timeslot, bool) {
	if l.lastBlockSlot == nil {
		return 0, false
	}
	return *l.lastBlockSlot, true
}

// PerCoreConsumed returns the cumulative consumption of a core, false if the core was never charged
func (l *Ledger) PerCoreConsumed(core uint16) (uint64, bool) {
	u, ok := l.perCore[core]
	return u.TotalConsumed, ok
}

func (l *Ledger) CoreUsage(core uint16) (Usage, bool) {
	u, ok := l.perCore[core]
	return u, ok
}

// Cores returns the number of cores that were charged at least once
func (l *Ledger) Cores() int {
	return len(l.perCore)
}

// pending holds everything ValidateAndApply computed for one block before commit
type pending struct {
	perCore map[uint16]uint64
	total   uint64
}

// ValidateAndApply checks the CoreTime payloads of a block at blockSlot and
// charges the ledger. Every check runs against local accumulators, the ledger
// is only written once all of them pass.
func (l *Ledger) ValidateAndApply(blockSlot jamtime.Timeslot, guarantees, assurances []block.Payload, disputes block.Payload) error {
	payloads := block.Extrinsic{Guarantees: guarantees, Assurances: assurances, Disputes: disputes}
	if !payloads.HasCoreTimePayloads() {
		l.setLastBlockSlot(blockSlot)
		return nil
	}

	p, err := validateGuarantees(blockSlot, guarantees)
	if err != nil {
		return err
	}
	if err := validateAssurances(assurances); err != nil {
		return err
	}
	if err := validateDisputes(disputes); err != nil {
		return err
	}

	return l.commit(blockSlot, p)
}

func validateGuarantees(blockSlot jamtime.Timeslot, guarantees []block.Payload) (pending, error) {
	type allocation struct {
		slot uint64
		core uint16
	}

	p := pending{perCore: make(map[uint16]uint64)}
	seen := make(map[allocation]struct{}, len(guarantees))
	current := uint64(blockSlot)

	for _, payload := range guarantees {
		g, err := ParseGuarantee(payload)
		if err != nil {
			return pending{}, err
		}
		core := g.Report.CoreIndex

		if g.Slot > current {
			return pending{}, fmt.Errorf("%w: guarantee references future slot %d (current block slot %d)", ErrValidation, g.Slot, current)
		}
		if current-g.Slot > MaxGuaranteeLookback {
			return pending{}, fmt.Errorf("%w: guarantee slot %d exceeds lookback window %d", ErrValidation, g.Slot, MaxGuaranteeLookback)
		}

		key := allocation{slot: g.Slot, core: core}
		if _, ok := seen[key]; ok {
			return pending{}, fmt.Errorf("%w: duplicate guarantee for core %d at slot %d", ErrValidation, core, g.Slot)
		}
		seen[key] = struct{}{}

		consumption, err := g.Consumption()
		if err != nil {
			return pending{}, err
		}

		coreTotal, ok := safemath.Add(p.perCore[core], consumption)
		if !ok {
			return pending{}, fmt.Errorf("%w: core %d consumption overflow", ErrBalance, core)
		}
		if coreTotal > MaxCoreTimePerCore {
			return pending{}, fmt.Errorf("%w: core %d exceeds per-block limit (%d > %d)", ErrBalance, core, coreTotal, MaxCoreTimePerCore)
		}
		p.perCore[core] = coreTotal

		if p.total, ok = safemath.Add(p.total, consumption); !ok {
			return pending{}, fmt.Errorf("%w: block consumption overflow", ErrBalance)
		}
	}

	if p.total > MaxCoreTimePerBlock {
		return pending{}, fmt.Errorf("%w: block exceeds limit (%d > %d)", ErrBalance, p.total, MaxCoreTimePerBlock)
	}
	return p, nil
}

func validateAssurances(assurances []block.Payload) error {
	if len(assurances) > MaxAssurancesPerBlock {
		return fmt.Errorf("%w: too many assurances in block: %d", ErrValidation, len(assurances))
	}

	seen := make(map[uint16]struct{}, len(assurances))
	for _, payload := range assurances {
		a, err := ParseAssurance(payload)
		if err != nil {
			return err
		}
		if !a.hasBits() {
			return fmt.Errorf("%w: assurance for validator %d has empty bitfield", ErrValidation, a.ValidatorIndex)
		}
		if _, ok := seen[a.ValidatorIndex]; ok {
			return fmt.Errorf("%w: duplicate assurance for validator %d", ErrValidation, a.ValidatorIndex)
		}
		seen[a.ValidatorIndex] = struct{}{}
	}
	return nil
}

func validateDisputes(payload block.Payload) error {
	disputes, err := ParseDisputes(payload)
	if err != nil {
		return err
	}
	for _, v := range disputes.Verdicts {
		if v.Age > MaxDisputeAge {
			return fmt.Errorf("%w: dispute verdict age %d exceeds limit %d", ErrValidation, v.Age, MaxDisputeAge)
		}
		if len(v.Votes) == 0 {
			return fmt.Errorf("%w: dispute verdict %s has no votes", ErrValidation, v.Target)
		}
	}
	return nil
}

// commit merges a validated block into the ledger. Overflow of any cumulative
// counter is detected before the first write.
func (l *Ledger) commit(blockSlot jamtime.Timeslot, p pending) error {
	allocated, ok := safemath.Add(l.totalAllocated, p.total)
	if !ok {
		return fmt.Errorf("%w: allocation overflow", ErrBalance)
	}
	consumed, ok := safemath.Add(l.totalConsumed, p.total)
	if !ok {
		return fmt.Errorf("%w: consumption overflow", ErrBalance)
	}

	updated := make(map[uint16]Usage, len(p.perCore))
	for core, used := range p.perCore {
		u := l.perCore[core]
		if u.TotalConsumed, ok = safemath.Add(u.TotalConsumed, used); !ok {
			return fmt.Errorf("%w: core %d total consumption overflow", ErrBalance, core)
		}
		u.LastBlockSlot = blockSlot
		u.LastBlockConsumed = used
		updated[core] = u
	}

	l.totalAllocated = allocated
	l.totalConsumed = consumed
	l.setLastBlockSlot(blockSlot)
	maps.Copy(l.perCore, updated)

	log.CoreTime.Debug().
		Uint32("slot", uint32(blockSlot)).
		Uint64("block_total", p.total).
		Uint64("total_allocated", l.totalAllocated).
		Int("cores", len(updated)).
		Msg("coretime committed")
	return nil
}

func (l *Ledger) setLastBlockSlot(slot jamtime.Timeslot) {
	l.lastBlockSlot = &slot
}

// Snapshot is the serialisable form of a ledger
type Snapshot struct {
	TotalAllocated uint64            `json:"total_allocated"`
	TotalConsumed  uint64            `json:"total_consumed"`
	LastBlockSlot  *jamtime.Timeslot `json:"last_block_slot"`
	PerCoreUsage   map[uint16]Usage  `json:"per_core_usage"`
}

// Snapshot returns a copy of the ledger state
func (l *Ledger) Snapshot() Snapshot {
	s := Snapshot{
		TotalAllocated: l.totalAllocated,
		TotalConsumed:  l.totalConsumed,
		PerCoreUsage:   maps.Clone(l.perCore),
	}
	if l.lastBlockSlot != nil {
		slot := *l.lastBlockSlot
		s.LastBlockSlot = &slot
	}
	return s
}

// RestoreLedger rebuilds a ledger from a snapshot
func RestoreLedger(s Snapshot) *Ledger {
	l := NewLedger()
	l.totalAllocated = s.TotalAllocated
	l.totalConsumed = s.TotalConsumed
	if s.LastBlockSlot != nil {
		l.setLastBlockSlot(*s.LastBlockSlot)
	}
	maps.Copy(l.perCore, s.PerCoreUsage)
	return l
}
