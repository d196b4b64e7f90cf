package safemath

import (
	"errors"
)

var ErrOverflow = errors.New("number overflow")

type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint
}

// Add returns a+b and false if the addition wrapped around
func Add[T Unsigned](a, b T) (T, bool) {
	v := a + b
	return v, v >= a
}
