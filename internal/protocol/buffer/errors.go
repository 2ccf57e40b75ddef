package buffer

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCapacity = errors.New("buffer: invalid capacity")
	ErrOverflow        = errors.New("buffer: overflow")
	ErrUnderflow       = errors.New("buffer: underflow")
	ErrStringTooLong   = errors.New("buffer: string too long")
	ErrMalformedTable  = errors.New("buffer: malformed field table")
)

func overflow(need, remaining int) error {
	return fmt.Errorf("%w: need %d bytes, %d writable", ErrOverflow, need, remaining)
}

func underflow(need, available int) error {
	return fmt.Errorf("%w: need %d bytes, %d readable", ErrUnderflow, need, available)
}
