package buffer

import (
	"fmt"
	"math"
)

// MaxShortString is the longest content a short string can carry.
const MaxShortString = math.MaxUint8

// PutShortString writes a 1-byte length followed by the bytes of s.
func (b *Buffer) PutShortString(s string) error {
	if len(s) > MaxShortString {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrStringTooLong, len(s), MaxShortString)
	}
	p, err := b.reserve(OctetSize + len(s))
	if err != nil {
		return err
	}
	p[0] = uint8(len(s))
	copy(p[OctetSize:], s)
	return nil
}

// GetShortString reads a 1-byte length and that many bytes of content.
func (b *Buffer) GetShortString() (string, error) {
	head, err := b.peek(OctetSize)
	if err != nil {
		return "", err
	}
	p, err := b.next(OctetSize + int(head[0]))
	if err != nil {
		return "", err
	}
	return string(p[OctetSize:]), nil
}

// PutLongString writes a 4-byte length followed by the bytes of s.
func (b *Buffer) PutLongString(s string) error {
	if uint64(len(s)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrStringTooLong, len(s), uint64(math.MaxUint32))
	}
	p, err := b.reserve(LongSize + len(s))
	if err != nil {
		return err
	}
	be.PutUint32(p, uint32(len(s)))
	copy(p[LongSize:], s)
	return nil
}

// GetLongString reads a 4-byte length and that many bytes of content.
func (b *Buffer) GetLongString() (string, error) {
	head, err := b.peek(LongSize)
	if err != nil {
		return "", err
	}
	n := uint64(be.Uint32(head))
	if n > uint64(b.Available()-LongSize) {
		return "", underflow(LongSize+int(n), b.Available())
	}
	p, err := b.next(LongSize + int(n))
	if err != nil {
		return "", err
	}
	return string(p[LongSize:]), nil
}

// PutRawData copies p verbatim, without a length prefix.
func (b *Buffer) PutRawData(p []byte) error {
	dst, err := b.reserve(len(p))
	if err != nil {
		return err
	}
	copy(dst, p)
	return nil
}

// GetRawData copies out exactly size bytes.
func (b *Buffer) GetRawData(size int) ([]byte, error) {
	p, err := b.next(size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, p)
	return out, nil
}
