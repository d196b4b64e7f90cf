package coretime

import "errors"

var (
	// ErrValidation marks structural or logical defects of a guarantee, assurance or dispute
	ErrValidation = errors.New("coretime validation error")
	// ErrBalance marks exceeded CoreTime limits and arithmetic overflow
	ErrBalance = errors.New("coretime balance error")
)
