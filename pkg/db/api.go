// Package db declares the storage contract used by the block store. The only
// implementation lives in pkg/db/pebble.
package db

// KVStore is an ordered key-value store. Reads of a missing key return the
// implementation's not-found error.
type KVStore interface {
	Writer
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	NewBatch() Batch
	// NewIterator walks keys in [start, end). A nil end means no upper bound.
	NewIterator(start, end []byte) (Iterator, error)
	Close() error
}

type Writer interface {
	Put(key []byte, value []byte) error
}

// Batch groups writes that become visible together on Commit, or not at all.
// A committed or closed batch rejects further use.
type Batch interface {
	Writer
	Delete(key []byte) error
	Commit() error
	Close() error
}

// Iterator yields key-value pairs in key order. The first call to Next
// positions it on the first pair. Callers close it when done.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Valid() bool
	Close() error
}
