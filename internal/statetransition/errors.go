package statetransition

import (
	"errors"

	"github.com/eigerco/jamcore/internal/block"
	"github.com/eigerco/jamcore/internal/coretime"
)

var (
	ErrInvalidSlot             = errors.New("invalid slot")
	ErrParentHashMismatch      = errors.New("parent hash mismatch")
	ErrParentStateRootMismatch = errors.New("parent state root mismatch")
	ErrInvalidAuthorIndex      = errors.New("invalid author index")
	ErrInvalidEntropy          = errors.New("invalid entropy")
	ErrInvalidBlockStructure   = errors.New("invalid block structure")
	ErrTicketValidation        = errors.New("ticket validation error")
	ErrInvalidPreimage         = errors.New("invalid preimage")
	ErrInvalidInclusionProof   = errors.New("invalid inclusion proof")
	ErrInvalidSignature        = errors.New("invalid signature")
	ErrCoreTimeValidation      = coretime.ErrValidation
	ErrCoreTimeBalance         = coretime.ErrBalance
	ErrDecode                  = block.ErrDecode
	ErrIO                      = errors.New("io error")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidSlot, "InvalidSlot"},
	{ErrParentHashMismatch, "ParentHashMismatch"},
	{ErrParentStateRootMismatch, "ParentStateRootMismatch"},
	{ErrInvalidAuthorIndex, "InvalidAuthorIndex"},
	{ErrInvalidEntropy, "InvalidEntropy"},
	{ErrInvalidBlockStructure, "InvalidBlockStructure"},
	{ErrTicketValidation, "TicketValidationError"},
	{ErrInvalidPreimage, "InvalidPreimage"},
	{ErrInvalidInclusionProof, "InvalidInclusionProof"},
	{ErrInvalidSignature, "InvalidSignature"},
	{ErrCoreTimeValidation, "CoreTimeValidationError"},
	{ErrCoreTimeBalance, "CoreTimeBalanceError"},
	{ErrDecode, "Decode"},
	{ErrIO, "IO"},
}

// KindOf names the error kind of an import failure, "Unknown" for errors
// outside the taxonomy and "" for nil.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Unknown"
}
