package fieldtable

import "errors"

var (
	ErrKindMismatch = errors.New("fieldtable: value kind mismatch")
	ErrInvalidName  = errors.New("fieldtable: invalid entry name")
	ErrUnknownKind  = errors.New("fieldtable: unknown value kind")
)
