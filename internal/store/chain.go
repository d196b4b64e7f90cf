package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/eigerco/jamcore/internal/block"
	"github.com/eigerco/jamcore/internal/crypto"
	"github.com/eigerco/jamcore/internal/statetransition"
	"github.com/eigerco/jamcore/pkg/db"
	"github.com/eigerco/jamcore/pkg/db/pebble"
	"github.com/eigerco/jamcore/pkg/log"
)

var (
	ErrBlockNotFound      = errors.New("block not found")
	ErrBlockExists        = errors.New("block already stored")
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrChainClosed        = errors.New("chain store is closed")
)

const recentBlocksCacheSize = 256

// Chain stores imported blocks, keyed by their extrinsic hash, and the
// importer checkpoint that follows the last of them.
type Chain struct {
	db     db.KVStore
	recent *lru.Cache
	closed atomic.Bool
}

// NewChain creates a new chain store using KVStore
func NewChain(db db.KVStore) (*Chain, error) {
	cache, err := lru.New(recentBlocksCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create block cache: %w", err)
	}
	return &Chain{db: db, recent: cache}, nil
}

// Commit stores a block together with the checkpoint taken right after it was
// imported, so a restart never sees one without the other. A block that is
// already stored is refused.
func (c *Chain) Commit(b block.Block, cp statetransition.Checkpoint) error {
	if c.closed.Load() {
		return ErrChainClosed
	}

	hash := b.Header.ExtrinsicHash
	exists, err := c.HasBlock(hash)
	if err != nil {
		return fmt.Errorf("check block: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrBlockExists, hash)
	}

	batch := c.db.NewBatch()
	defer batch.Close()

	blockBytes, err := b.Bytes()
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	if err := batch.Put(makeKey(prefixBlock, hash[:]), blockBytes); err != nil {
		return fmt.Errorf("store block: %w", err)
	}
	if err := batch.Put(slotKey(uint32(b.Header.Slot)), hash[:]); err != nil {
		return fmt.Errorf("store slot index: %w", err)
	}

	cpBytes, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := batch.Put([]byte{prefixCheckpoint}, cpBytes); err != nil {
		return fmt.Errorf("store checkpoint: %w", err)
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	c.recent.Add(hash, b)

	log.Store.Debug().
		Uint32("slot", uint32(b.Header.Slot)).
		Stringer("hash", hash).
		Msg("block stored")
	return nil
}

// HasBlock reports whether a block with the given extrinsic hash is stored
func (c *Chain) HasBlock(hash crypto.Hash) (bool, error) {
	if c.closed.Load() {
		return false, ErrChainClosed
	}
	if c.recent.Contains(hash) {
		return true, nil
	}
	return c.db.Has(makeKey(prefixBlock, hash[:]))
}

// GetBlock retrieves a block by its extrinsic hash
func (c *Chain) GetBlock(hash crypto.Hash) (block.Block, error) {
	if c.closed.Load() {
		return block.Block{}, ErrChainClosed
	}
	if cached, ok := c.recent.Get(hash); ok {
		return cached.(block.Block), nil
	}

	blockBytes, err := c.db.Get(makeKey(prefixBlock, hash[:]))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return block.Block{}, ErrBlockNotFound
		}
		return block.Block{}, fmt.Errorf("get block: %w", err)
	}

	b, err := block.BlockFromBytes(blockBytes)
	if err != nil {
		return block.Block{}, err
	}
	c.recent.Add(hash, b)
	return b, nil
}

// Blocks returns the stored blocks in ascending slot order
func (c *Chain) Blocks() ([]block.Block, error) {
	if c.closed.Load() {
		return nil, ErrChainClosed
	}

	iter, err := c.db.NewIterator([]byte{prefixSlot}, []byte{prefixSlot + 1})
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	var blocks []block.Block
	for iter.Next() {
		value, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("read slot index: %w", err)
		}
		if len(value) != crypto.HashSize {
			return nil, fmt.Errorf("corrupt slot index entry of %d bytes", len(value))
		}
		b, err := c.GetBlock(crypto.Hash(value))
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// GetCheckpoint returns the last stored importer checkpoint
func (c *Chain) GetCheckpoint() (statetransition.Checkpoint, error) {
	if c.closed.Load() {
		return statetransition.Checkpoint{}, ErrChainClosed
	}

	cpBytes, err := c.db.Get([]byte{prefixCheckpoint})
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return statetransition.Checkpoint{}, ErrCheckpointNotFound
		}
		return statetransition.Checkpoint{}, fmt.Errorf("get checkpoint: %w", err)
	}

	var cp statetransition.Checkpoint
	if err := json.Unmarshal(cpBytes, &cp); err != nil {
		return statetransition.Checkpoint{}, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

// Close closes the chain store
func (c *Chain) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.recent.Purge()
	return c.db.Close()
}
