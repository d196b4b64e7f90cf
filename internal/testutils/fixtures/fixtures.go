// Package fixtures builds importable blocks and CoreTime payloads for tests.
package fixtures

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamcore/internal/block"
	"github.com/eigerco/jamcore/internal/crypto"
	"github.com/eigerco/jamcore/internal/jamtime"
	"github.com/eigerco/jamcore/internal/testutils"
)

// NewBlock returns a block at slot linked to parent and root, with random
// entropy and a correct extrinsic commitment.
func NewBlock(t *testing.T, slot jamtime.Timeslot, parent, root crypto.Hash) block.Block {
	b := block.Block{
		Header: block.Header{
			Parent:          parent,
			ParentStateRoot: root,
			Slot:            slot,
			AuthorIndex:     0,
			EntropySource:   testutils.RandomBytes(t, block.EntropySourceSize),
			Seal:            testutils.RandomBytes(t, 96),
		},
	}
	Commit(t, &b)
	return b
}

// Commit recomputes the header's extrinsic hash. Call it after changing the extrinsic.
func Commit(t *testing.T, b *block.Block) {
	h, err := b.Extrinsic.Hash()
	require.NoError(t, err)
	b.Header.ExtrinsicHash = h
}

// Next returns a block at slot that extends prev.
func Next(t *testing.T, prev block.Block, slot jamtime.Timeslot) block.Block {
	return NewBlock(t, slot, prev.Header.ExtrinsicHash, prev.Header.ParentStateRoot)
}

// AddTickets appends n well formed tickets and their paired marks, then recommits.
func AddTickets(t *testing.T, b *block.Block, n int) {
	if b.Header.TicketsMark == nil {
		b.Header.TicketsMark = []block.TicketBody{}
	}
	for i := 0; i < n; i++ {
		attempt := uint8(i % 2)
		b.Header.TicketsMark = append(b.Header.TicketsMark, block.TicketBody{
			ID:      testutils.RandomHash(t),
			Attempt: attempt,
		})
		b.Extrinsic.Tickets = append(b.Extrinsic.Tickets, block.TicketEnvelope{
			Attempt:   attempt,
			Signature: testutils.RandomEd25519Signature(t),
		})
	}
	Commit(t, b)
}

// AddPreimage appends a preimage and recommits.
func AddPreimage(t *testing.T, b *block.Block, requester block.ServiceId, blob []byte) {
	b.Extrinsic.Preimages = append(b.Extrinsic.Preimages, block.Preimage{Requester: requester, Blob: blob})
	Commit(t, b)
}

// WithEpochMark attaches an epoch mark whose entropy matches the header's
// current entropy chunk, then recommits.
func WithEpochMark(t *testing.T, b *block.Block, validators int) {
	es, err := block.NewEntropySource(b.Header.EntropySource)
	require.NoError(t, err)

	mark := &block.EpochMark{
		Entropy:        es.Current(),
		TicketsEntropy: testutils.RandomHash(t),
	}
	for i := 0; i < validators; i++ {
		mark.Validators = append(mark.Validators, block.ValidatorKey(testutils.RandomHash(t)))
	}
	b.Header.EpochMark = mark
	Commit(t, b)
}

// Result is one work result of a guarantee report.
type Result struct {
	AccumulateGas uint64 `json:"accumulate_gas"`
	ServiceID     uint32 `json:"service_id"`
}

// Guarantee builds a guarantee payload. A nil authGas omits auth_gas_used.
func Guarantee(t *testing.T, slot jamtime.Timeslot, core uint16, authGas *uint64, results ...Result) block.Payload {
	if results == nil {
		results = []Result{}
	}
	report := map[string]any{
		"core_index": core,
		"results":    results,
	}
	if authGas != nil {
		report["auth_gas_used"] = *authGas
	}
	p, err := block.NewPayload(map[string]any{
		"slot":   slot,
		"report": report,
	})
	require.NoError(t, err)
	return p
}

// Assurance builds an assurance payload.
func Assurance(t *testing.T, validator uint16, bitfield string) block.Payload {
	p, err := block.NewPayload(map[string]any{
		"bitfield":        bitfield,
		"validator_index": validator,
	})
	require.NoError(t, err)
	return p
}

// Verdict is one dispute verdict with votes count single votes.
type Verdict struct {
	Age   uint64
	Votes int
}

// Disputes builds a disputes payload out of verdicts.
func Disputes(t *testing.T, verdicts ...Verdict) block.Payload {
	out := make([]map[string]any, 0, len(verdicts))
	for _, v := range verdicts {
		votes := make([]map[string]any, 0, v.Votes)
		for i := 0; i < v.Votes; i++ {
			votes = append(votes, map[string]any{
				"vote":      true,
				"index":     i,
				"signature": crypto.EncodeHex(testutils.RandomEd25519Signature(t)),
			})
		}
		out = append(out, map[string]any{
			"target": testutils.RandomHash(t).String(),
			"age":    v.Age,
			"votes":  votes,
		})
	}
	p, err := block.NewPayload(map[string]any{"verdicts": out})
	require.NoError(t, err)
	return p
}

// Uint64 returns a pointer to v.
func Uint64(v uint64) *uint64 {
	return &v
}
