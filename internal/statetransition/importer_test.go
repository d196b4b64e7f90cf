package statetransition

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamcore/internal/block"
	"github.com/eigerco/jamcore/internal/coretime"
	"github.com/eigerco/jamcore/internal/crypto"
	"github.com/eigerco/jamcore/internal/jamtime"
	"github.com/eigerco/jamcore/internal/metrics"
	"github.com/eigerco/jamcore/internal/testutils"
	"github.com/eigerco/jamcore/internal/testutils/fixtures"
)

// importerSnapshot is everything a rejected import must leave untouched
type importerSnapshot struct {
	checkpoint Checkpoint
}

func snapshot(i *Importer) importerSnapshot {
	return importerSnapshot{checkpoint: i.Checkpoint()}
}

func genesis(t *testing.T) block.Block {
	return fixtures.NewBlock(t, 1, testutils.RandomHash(t), testutils.RandomHash(t))
}

func TestImportBlock_Chain(t *testing.T) {
	imp := NewImporter(DefaultConfig())

	_, _, ok := imp.Fingerprints()
	assert.False(t, ok)

	b1 := genesis(t)
	fixtures.AddPreimage(t, &b1, 1, []byte("one"))
	imported, err := imp.ImportBlock(b1)
	require.NoError(t, err)
	assert.Equal(t, b1, imported)

	b2 := fixtures.Next(t, b1, 3)
	fixtures.AddTickets(t, &b2, 2)
	fixtures.AddPreimage(t, &b2, 2, []byte("two"))
	_, err = imp.ImportBlock(b2)
	require.NoError(t, err)

	hash, root, ok := imp.Fingerprints()
	require.True(t, ok)
	assert.Equal(t, b2.Header.ExtrinsicHash, hash)
	assert.Equal(t, b2.Header.ParentStateRoot, root)

	s := imp.State()
	assert.Equal(t, jamtime.Timeslot(3), s.LastSlot)
	assert.Equal(t, uint64(2), s.Tickets.TotalTickets)
	assert.Equal(t, uint64(2), s.Tickets.ValidTickets)
	assert.Zero(t, s.Tickets.InvalidTickets)
	require.NotNil(t, s.Tickets.LastTicketID)
	assert.Equal(t, b2.Header.TicketsMark[1].ID, *s.Tickets.LastTicketID)
	assert.Equal(t, uint64(4), s.Counter)

	ledger := imp.Ledger()
	require.NotNil(t, ledger.LastBlockSlot)
	assert.Equal(t, jamtime.Timeslot(3), *ledger.LastBlockSlot)
}

func TestImportBlock_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func(*Config)
		mutate  func(t *testing.T, prev block.Block) block.Block
		wantErr error
	}{
		{
			name: "slot zero",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				return fixtures.Next(t, prev, 0)
			},
			wantErr: ErrInvalidSlot,
		},
		{
			name: "same slot",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				return fixtures.Next(t, prev, prev.Header.Slot)
			},
			wantErr: ErrInvalidSlot,
		},
		{
			name: "earlier slot",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				return fixtures.Next(t, prev, prev.Header.Slot-1)
			},
			wantErr: ErrInvalidSlot,
		},
		{
			name: "parent mismatch",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				b.Header.Parent = testutils.RandomHash(t)
				return b
			},
			wantErr: ErrParentHashMismatch,
		},
		{
			name: "parent state root mismatch",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				b.Header.ParentStateRoot = testutils.RandomHash(t)
				return b
			},
			wantErr: ErrParentStateRootMismatch,
		},
		{
			name: "short entropy",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				b.Header.EntropySource = b.Header.EntropySource[:64]
				return b
			},
			wantErr: ErrInvalidEntropy,
		},
		{
			name: "entropy does not match epoch mark",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				fixtures.WithEpochMark(t, &b, 3)
				b.Header.EpochMark.Entropy = testutils.RandomHash(t)
				return b
			},
			wantErr: ErrInvalidEntropy,
		},
		{
			name: "author index out of range",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				fixtures.WithEpochMark(t, &b, 3)
				b.Header.AuthorIndex = 3
				return b
			},
			wantErr: ErrInvalidAuthorIndex,
		},
		{
			name: "more tickets than marks",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				fixtures.AddTickets(t, &b, 2)
				b.Header.TicketsMark = b.Header.TicketsMark[:1]
				return b
			},
			wantErr: ErrInvalidBlockStructure,
		},
		{
			name: "tickets without marks",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				fixtures.AddTickets(t, &b, 1)
				b.Header.TicketsMark = nil
				return b
			},
			wantErr: ErrInvalidBlockStructure,
		},
		{
			name: "ticket attempt mismatch",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				fixtures.AddTickets(t, &b, 2)
				b.Extrinsic.Tickets[1].Attempt++
				fixtures.Commit(t, &b)
				return b
			},
			wantErr: ErrTicketValidation,
		},
		{
			name: "ticket signature length",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				fixtures.AddTickets(t, &b, 1)
				b.Extrinsic.Tickets[0].Signature = b.Extrinsic.Tickets[0].Signature[:63]
				fixtures.Commit(t, &b)
				return b
			},
			wantErr: ErrTicketValidation,
		},
		{
			name: "empty preimage blob",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				fixtures.AddPreimage(t, &b, 1, nil)
				return b
			},
			wantErr: ErrInvalidPreimage,
		},
		{
			name: "preimage requester zero",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				fixtures.AddPreimage(t, &b, 0, []byte("blob"))
				return b
			},
			wantErr: ErrInvalidPreimage,
		},
		{
			name: "extrinsic hash mismatch",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				fixtures.AddPreimage(t, &b, 1, []byte("blob"))
				b.Extrinsic.Preimages[0].Blob = []byte("tampered")
				return b
			},
			wantErr: ErrInvalidInclusionProof,
		},
		{
			name: "coretime validation",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				b.Extrinsic.Disputes = fixtures.Disputes(t, fixtures.Verdict{Age: 65, Votes: 1})
				fixtures.Commit(t, &b)
				return b
			},
			wantErr: ErrCoreTimeValidation,
		},
		{
			name: "coretime balance",
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				b.Extrinsic.Guarantees = []block.Payload{
					fixtures.Guarantee(t, b.Header.Slot, 0, nil, fixtures.Result{AccumulateGas: 1025}),
				}
				fixtures.Commit(t, &b)
				return b
			},
			wantErr: ErrCoreTimeBalance,
		},
		{
			name: "required seal",
			cfg:  func(c *Config) { c.Header.RequireSeal = true },
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				b.Header.Seal = nil
				return b
			},
			wantErr: ErrInvalidSignature,
		},
		{
			name: "required offenders",
			cfg:  func(c *Config) { c.Header.RequireOffenders = true },
			mutate: func(t *testing.T, prev block.Block) block.Block {
				return fixtures.Next(t, prev, prev.Header.Slot+1)
			},
			wantErr: ErrInvalidBlockStructure,
		},
		{
			name: "slot in the future",
			cfg:  func(c *Config) { c.Header.CheckTimeliness = true },
			mutate: func(t *testing.T, prev block.Block) block.Block {
				return fixtures.Next(t, prev, jamtime.MaxTimeslot)
			},
			wantErr: ErrInvalidSlot,
		},
		{
			name: "epoch mark inside an epoch",
			cfg:  func(c *Config) { c.Header.RequireEpochBoundary = true },
			mutate: func(t *testing.T, prev block.Block) block.Block {
				b := fixtures.Next(t, prev, prev.Header.Slot+1)
				fixtures.WithEpochMark(t, &b, 3)
				return b
			},
			wantErr: ErrInvalidBlockStructure,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tc.cfg != nil {
				tc.cfg(&cfg)
			}
			imp := NewImporter(cfg)

			prev := fixtures.NewBlock(t, 10, testutils.RandomHash(t), testutils.RandomHash(t))
			prev.Header.OffendersMark = block.Offenders{testutils.RandomHash(t)}
			prev.Extrinsic.Guarantees = []block.Payload{
				fixtures.Guarantee(t, 10, 0, nil, fixtures.Result{AccumulateGas: 100}),
			}
			fixtures.Commit(t, &prev)
			_, err := imp.ImportBlock(prev)
			require.NoError(t, err)

			before := snapshot(imp)

			b := tc.mutate(t, prev)
			imported, err := imp.ImportBlock(b)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, block.Block{}, imported)
			assert.Equal(t, before, snapshot(imp))
		})
	}
}

func TestImportBlock_FirstBlockAcceptsAnyParent(t *testing.T) {
	imp := NewImporter(DefaultConfig())
	_, err := imp.ImportBlock(fixtures.NewBlock(t, 7, testutils.RandomHash(t), testutils.RandomHash(t)))
	require.NoError(t, err)
}

func TestImportBlock_InitialState(t *testing.T) {
	anchorHash := testutils.RandomHash(t)
	anchorRoot := testutils.RandomHash(t)

	imp := NewImporter(DefaultConfig())
	imp.SetInitialState(anchorHash, anchorRoot)

	hash, root, ok := imp.Fingerprints()
	require.True(t, ok)
	assert.Equal(t, anchorHash, hash)
	assert.Equal(t, anchorRoot, root)

	_, err := imp.ImportBlock(fixtures.NewBlock(t, 1, testutils.RandomHash(t), anchorRoot))
	require.ErrorIs(t, err, ErrParentHashMismatch)

	_, err = imp.ImportBlock(fixtures.NewBlock(t, 1, anchorHash, testutils.RandomHash(t)))
	require.ErrorIs(t, err, ErrParentStateRootMismatch)

	_, err = imp.ImportBlock(fixtures.NewBlock(t, 1, anchorHash, anchorRoot))
	require.NoError(t, err)
}

func TestImportBlock_EpochBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Header.RequireEpochBoundary = true
	imp := NewImporter(cfg)

	// the first block may carry an epoch mark wherever it is
	first := genesis(t)
	fixtures.WithEpochMark(t, &first, 2)
	_, err := imp.ImportBlock(first)
	require.NoError(t, err)

	next := fixtures.Next(t, first, jamtime.TimeslotsPerEpoch)
	fixtures.WithEpochMark(t, &next, 2)
	next.Header.AuthorIndex = 1
	_, err = imp.ImportBlock(next)
	require.NoError(t, err)
}

func TestImportBlock_CoreTime(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	imp := NewImporter(DefaultConfig(), WithMetrics(m))

	b := fixtures.NewBlock(t, 98, testutils.RandomHash(t), testutils.RandomHash(t))
	b.Extrinsic.Guarantees = []block.Payload{
		fixtures.Guarantee(t, 90, 3, fixtures.Uint64(10), fixtures.Result{AccumulateGas: 20, ServiceID: 1}),
	}
	b.Extrinsic.Assurances = []block.Payload{fixtures.Assurance(t, 0, "0x01")}
	fixtures.Commit(t, &b)

	_, err = imp.ImportBlock(b)
	require.NoError(t, err)

	ledger := imp.Ledger()
	assert.Equal(t, uint64(30), ledger.TotalAllocated)
	assert.Equal(t, coretime.Usage{TotalConsumed: 30, LastBlockSlot: 98, LastBlockConsumed: 30}, ledger.PerCoreUsage[3])

	bad := fixtures.Next(t, b, 99)
	bad.Extrinsic.Guarantees = []block.Payload{
		fixtures.Guarantee(t, 99, 1, nil, fixtures.Result{AccumulateGas: 5}),
		fixtures.Guarantee(t, 99, 1, nil, fixtures.Result{AccumulateGas: 5}),
	}
	fixtures.Commit(t, &bad)
	_, err = imp.ImportBlock(bad)
	require.ErrorIs(t, err, ErrCoreTimeValidation)
	assert.Equal(t, ledger, imp.Ledger())

	_, err = imp.ImportBlock(fixtures.Next(t, b, 98))
	require.ErrorIs(t, err, ErrInvalidSlot)

	assert.Equal(t, float64(1), metricValue(t, reg, "jamcore_blocks_imported_total"))
	assert.Equal(t, float64(30), metricValue(t, reg, "jamcore_coretime_consumed_total"))
	assert.Equal(t, float64(2), metricValue(t, reg, "jamcore_blocks_rejected_total"))

	series, err := testutil.GatherAndCount(reg, "jamcore_blocks_rejected_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

// metricValue sums every series of the named counter or gauge
func metricValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return total
}

func TestImport_Reader(t *testing.T) {
	imp := NewImporter(DefaultConfig())

	b := genesis(t)
	raw, err := b.Bytes()
	require.NoError(t, err)

	imported, err := imp.Import(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, b.Header.ExtrinsicHash, imported.Header.ExtrinsicHash)

	before := snapshot(imp)
	_, err = imp.Import(strings.NewReader(`{"header": {}}`))
	require.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, "Decode", KindOf(err))
	assert.Equal(t, before, snapshot(imp))

	// a child without its parent link is undecodable, not a linkage failure
	child, err := fixtures.Next(t, b, 2).Bytes()
	require.NoError(t, err)
	unlinked := strings.Replace(string(child), `"parent":"`+b.Header.ExtrinsicHash.String()+`",`, "", 1)
	require.NotEqual(t, string(child), unlinked)

	_, err = imp.Import(strings.NewReader(unlinked))
	require.ErrorIs(t, err, ErrDecode)
	assert.NotErrorIs(t, err, ErrParentHashMismatch)
	assert.Equal(t, before, snapshot(imp))
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()
	imp := NewImporter(DefaultConfig())

	_, err := imp.ImportFile(filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, ErrIO)

	b := genesis(t)
	fixtures.AddTickets(t, &b, 1)
	raw, err := json.MarshalIndent(b, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(dir, "block.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	imported, err := imp.ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, b, imported)
	assert.Equal(t, b.Header.Slot, imp.State().LastSlot)
}

func TestCheckpoint_Restore(t *testing.T) {
	imp := NewImporter(DefaultConfig())

	b1 := genesis(t)
	fixtures.AddTickets(t, &b1, 1)
	b1.Extrinsic.Guarantees = []block.Payload{fixtures.Guarantee(t, 1, 2, nil, fixtures.Result{AccumulateGas: 40})}
	fixtures.Commit(t, &b1)
	_, err := imp.ImportBlock(b1)
	require.NoError(t, err)

	raw, err := json.Marshal(imp.Checkpoint())
	require.NoError(t, err)
	var cp Checkpoint
	require.NoError(t, json.Unmarshal(raw, &cp))
	assert.Equal(t, imp.Checkpoint(), cp)

	restored := RestoreImporter(DefaultConfig(), cp)
	assert.Equal(t, imp.State(), restored.State())
	assert.Equal(t, imp.Ledger(), restored.Ledger())

	b2 := fixtures.Next(t, b1, 2)
	_, err = restored.ImportBlock(b2)
	require.NoError(t, err)

	stale := fixtures.NewBlock(t, 3, testutils.RandomHash(t), b1.Header.ParentStateRoot)
	_, err = restored.ImportBlock(stale)
	require.ErrorIs(t, err, ErrParentHashMismatch)
}

func TestCheckpoint_Empty(t *testing.T) {
	cp := NewImporter(DefaultConfig()).Checkpoint()
	assert.Nil(t, cp.LastHash)
	assert.Nil(t, cp.LastStateRoot)

	restored := RestoreImporter(DefaultConfig(), cp)
	_, _, ok := restored.Fingerprints()
	assert.False(t, ok)
}

func TestImporter_StateIsACopy(t *testing.T) {
	imp := NewImporter(DefaultConfig())
	b := genesis(t)
	fixtures.AddTickets(t, &b, 1)
	_, err := imp.ImportBlock(b)
	require.NoError(t, err)

	s := imp.State()
	*s.Tickets.LastTicketID = crypto.Hash{}
	assert.Equal(t, b.Header.TicketsMark[0].ID, *imp.State().Tickets.LastTicketID)
}
