package method

import (
	"errors"
	"fmt"
)

var (
	ErrShortMethod     = errors.New("method: payload shorter than class and method ids")
	ErrUnknownMethod   = errors.New("method: unknown method")
	ErrBadArgs         = errors.New("method: malformed arguments")
	ErrTrailingArgs    = errors.New("method: trailing argument bytes")
	ErrArgTypeMismatch = errors.New("method: argument type mismatch")
)

// MissingArgError reports an argument the schema names but the caller did
// not supply.
type MissingArgError struct {
	Method string
	Arg    string
}

func (e MissingArgError) Error() string {
	return fmt.Sprintf("method: %s missing argument %q", e.Method, e.Arg)
}
