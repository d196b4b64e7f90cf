package block

import "errors"

var (
	// ErrDecode is returned when a block cannot be decoded from its wire form
	ErrDecode = errors.New("block decode error")

	ErrInvalidEntropySize     = errors.New("invalid entropy source size")
	ErrEntropyMismatch        = errors.New("current entropy does not match epoch mark entropy")
	ErrInvalidSignatureLength = errors.New("invalid ticket signature length")
)
