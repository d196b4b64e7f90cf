package statetransition

import (
	"fmt"
	"io"
	"os"

	"github.com/eigerco/jamcore/internal/block"
	"github.com/eigerco/jamcore/internal/coretime"
	"github.com/eigerco/jamcore/internal/crypto"
	"github.com/eigerco/jamcore/internal/metrics"
	"github.com/eigerco/jamcore/internal/state"
	"github.com/eigerco/jamcore/pkg/log"
)

// Importer validates blocks one at a time and applies the accepted ones to
// its chain state and CoreTime ledger. A rejected block leaves the importer
// exactly as it was. An Importer is not safe for concurrent use, separate
// importers share nothing.
type Importer struct {
	cfg           Config
	state         state.State
	ledger        *coretime.Ledger
	lastHash      *crypto.Hash
	lastStateRoot *crypto.Hash
	metrics       *metrics.Metrics
}

type Option func(*Importer)

// WithMetrics records import outcomes in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Importer) {
		i.metrics = m
	}
}

func NewImporter(cfg Config, opts ...Option) *Importer {
	i := &Importer{
		cfg:    cfg,
		ledger: coretime.NewLedger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// SetInitialState anchors the chain: the next block must name lastHash as its
// parent and lastStateRoot as its parent state root.
func (i *Importer) SetInitialState(lastHash, lastStateRoot crypto.Hash) {
	i.lastHash = &lastHash
	i.lastStateRoot = &lastStateRoot
}

// ImportFile decodes the block stored at path and imports it
func (i *Importer) ImportFile(path string) (block.Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return i.reject(block.Block{}, fmt.Errorf("%w: %w", ErrIO, err))
	}
	defer f.Close()

	return i.Import(f)
}

// Import decodes one block from r and imports it
func (i *Importer) Import(r io.Reader) (block.Block, error) {
	b, err := block.Decode(r)
	if err != nil {
		return i.reject(block.Block{}, err)
	}
	return i.ImportBlock(b)
}

// ImportBlock validates b against the current state and applies it. The block
// is returned unchanged on success.
func (i *Importer) ImportBlock(b block.Block) (block.Block, error) {
	if err := VerifyBlockStructure(i.cfg.Header, b); err != nil {
		return i.reject(b, err)
	}
	entropy, err := VerifyBlockHeader(i.cfg.Header, i.linkage(), b.Header)
	if err != nil {
		return i.reject(b, err)
	}
	if err := VerifyExtrinsic(b); err != nil {
		return i.reject(b, err)
	}
	log.Importer.Trace().
		Uint32("slot", uint32(b.Header.Slot)).
		Stringer("entropy", entropy.Current()).
		Msg("block verified")

	// Nothing has been mutated up to here. The ledger and the state apply
	// all or nothing on their own, the ledger is rolled back if the state
	// refuses the block after the ledger accepted it.
	before := i.ledger.Snapshot()
	if err := i.ledger.ValidateAndApply(b.Header.Slot, b.Extrinsic.Guarantees, b.Extrinsic.Assurances, b.Extrinsic.Disputes); err != nil {
		return i.reject(b, err)
	}
	if err := i.state.Apply(b); err != nil {
		i.ledger = coretime.RestoreLedger(before)
		return i.reject(b, fmt.Errorf("%w: %w", ErrInvalidBlockStructure, err))
	}

	hash := b.Header.ExtrinsicHash
	root := b.Header.ParentStateRoot
	i.lastHash = &hash
	i.lastStateRoot = &root

	consumed := i.ledger.TotalConsumed() - before.TotalConsumed
	i.metrics.BlockImported(uint32(b.Header.Slot), consumed)
	log.Importer.Info().
		Uint32("slot", uint32(b.Header.Slot)).
		Stringer("extrinsic_hash", hash).
		Uint64("counter", i.state.Counter).
		Uint64("coretime", consumed).
		Int("cores", i.ledger.Cores()).
		Msg("block imported")
	return b, nil
}

func (i *Importer) reject(b block.Block, err error) (block.Block, error) {
	kind := KindOf(err)
	i.metrics.BlockRejected(kind)
	log.Importer.Warn().
		Err(err).
		Str("kind", kind).
		Uint32("slot", uint32(b.Header.Slot)).
		Msg("block rejected")
	return block.Block{}, err
}

func (i *Importer) linkage() Linkage {
	return Linkage{
		LastSlot:      i.state.LastSlot,
		LastHash:      i.lastHash,
		LastStateRoot: i.lastStateRoot,
	}
}

// State returns a copy of the chain state
func (i *Importer) State() state.State {
	s := i.state
	if s.Tickets.LastTicketID != nil {
		id := *s.Tickets.LastTicketID
		s.Tickets.LastTicketID = &id
	}
	return s
}

// Ledger returns a snapshot of the CoreTime ledger
func (i *Importer) Ledger() coretime.Snapshot {
	return i.ledger.Snapshot()
}

// Fingerprints returns the extrinsic hash and parent state root the next
// block links to. ok is false before the first import or initial state.
func (i *Importer) Fingerprints() (hash, root crypto.Hash, ok bool) {
	if i.lastHash == nil || i.lastStateRoot == nil {
		return crypto.Hash{}, crypto.Hash{}, false
	}
	return *i.lastHash, *i.lastStateRoot, true
}
