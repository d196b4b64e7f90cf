package store

import "encoding/binary"

// Prefix constants for all store types
const (
	prefixBlock byte = iota + 1
	prefixSlot
	prefixCheckpoint
)

// makeKey creates a key from a prefix and hash
func makeKey(prefix byte, hash []byte) []byte {
	key := make([]byte, 1+len(hash))
	key[0] = prefix
	copy(key[1:], hash)
	return key
}

// slotKey orders the slot index by slot when iterated
func slotKey(slot uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], slot)
	return makeKey(prefixSlot, b[:])
}
