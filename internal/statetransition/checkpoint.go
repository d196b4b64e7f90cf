package statetransition

import (
	"github.com/eigerco/jamcore/internal/coretime"
	"github.com/eigerco/jamcore/internal/crypto"
	"github.com/eigerco/jamcore/internal/state"
)

// Checkpoint is everything an importer needs to continue a chain in another process
type Checkpoint struct {
	State         state.State       `json:"state"`
	CoreTime      coretime.Snapshot `json:"coretime"`
	LastHash      *crypto.Hash      `json:"last_block_hash"`
	LastStateRoot *crypto.Hash      `json:"last_state_root"`
}

func (i *Importer) Checkpoint() Checkpoint {
	cp := Checkpoint{
		State:    i.State(),
		CoreTime: i.ledger.Snapshot(),
	}
	if hash, root, ok := i.Fingerprints(); ok {
		cp.LastHash = &hash
		cp.LastStateRoot = &root
	}
	return cp
}

// RestoreImporter creates an importer that continues from cp
func RestoreImporter(cfg Config, cp Checkpoint, opts ...Option) *Importer {
	i := NewImporter(cfg, opts...)
	i.state = cp.State
	i.ledger = coretime.RestoreLedger(cp.CoreTime)
	if cp.LastHash != nil && cp.LastStateRoot != nil {
		i.SetInitialState(*cp.LastHash, *cp.LastStateRoot)
	}
	return i
}
