package buffer

import (
	"errors"
	"fmt"
	"math"
)

// Table is a nested key/value structure with its own entry encoding.
//
// EncodeTo writes the entries at the write cursor. DecodeFrom consumes
// exactly n bytes of entries at the read cursor; reads past those n bytes
// fail with ErrUnderflow.
type Table interface {
	EncodeTo(b *Buffer) error
	DecodeFrom(b *Buffer, n uint32) error
}

// PutFieldTable writes a 4-byte total length followed by the entries of t.
// On failure the write cursor is left where it was.
func (b *Buffer) PutFieldTable(t Table) error {
	start := b.wpos
	prefix, err := b.reserve(LongSize)
	if err != nil {
		return err
	}
	if err := t.EncodeTo(b); err != nil {
		b.wpos = start
		return err
	}
	n := b.wpos - start - LongSize
	if n < 0 || uint64(n) > math.MaxUint32 {
		b.wpos = start
		return fmt.Errorf("%w: encoded length %d", ErrMalformedTable, n)
	}
	be.PutUint32(prefix, uint32(n))
	return nil
}

// GetFieldTable reads a 4-byte length and hands exactly that many bytes to t.
// On failure the read cursor is left where it was.
func (b *Buffer) GetFieldTable(t Table) error {
	start := b.rpos
	head, err := b.peek(LongSize)
	if err != nil {
		return err
	}
	n := uint64(be.Uint32(head))
	if n > uint64(b.Available()-LongSize) {
		return underflow(LongSize+int(n), b.Available())
	}
	b.rpos += LongSize
	end := b.rpos + int(n)

	limit := b.rlimit
	b.rlimit = end
	err = t.DecodeFrom(b, uint32(n))
	consumed := b.rpos - start - LongSize
	b.rlimit = limit

	switch {
	case err == nil && b.rpos == end:
		return nil
	case err == nil:
		err = fmt.Errorf("%w: declared %d bytes, consumed %d", ErrMalformedTable, n, consumed)
	case errors.Is(err, ErrUnderflow):
		err = fmt.Errorf("%w: entry runs past declared length %d: %v", ErrMalformedTable, n, err)
	}
	b.rpos = start
	return err
}
