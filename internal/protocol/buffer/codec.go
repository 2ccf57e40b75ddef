package buffer

import "encoding/binary"

// Integer widths on the wire.
const (
	OctetSize    = 1
	ShortSize    = 2
	LongSize     = 4
	LongLongSize = 8
)

var be = binary.BigEndian

// PutOctet writes one unsigned byte.
func (b *Buffer) PutOctet(v uint8) error {
	p, err := b.reserve(OctetSize)
	if err != nil {
		return err
	}
	p[0] = v
	return nil
}

// PutShort writes a 16-bit unsigned integer, most significant byte first.
func (b *Buffer) PutShort(v uint16) error {
	p, err := b.reserve(ShortSize)
	if err != nil {
		return err
	}
	be.PutUint16(p, v)
	return nil
}

// PutLong writes a 32-bit unsigned integer, most significant byte first.
func (b *Buffer) PutLong(v uint32) error {
	p, err := b.reserve(LongSize)
	if err != nil {
		return err
	}
	be.PutUint32(p, v)
	return nil
}

// PutLongLong writes a 64-bit unsigned integer, most significant byte first.
func (b *Buffer) PutLongLong(v uint64) error {
	p, err := b.reserve(LongLongSize)
	if err != nil {
		return err
	}
	be.PutUint64(p, v)
	return nil
}

// GetOctet reads one unsigned byte.
func (b *Buffer) GetOctet() (uint8, error) {
	p, err := b.next(OctetSize)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// GetShort reads a big-endian 16-bit unsigned integer.
func (b *Buffer) GetShort() (uint16, error) {
	p, err := b.next(ShortSize)
	if err != nil {
		return 0, err
	}
	return be.Uint16(p), nil
}

// GetLong reads a big-endian 32-bit unsigned integer.
func (b *Buffer) GetLong() (uint32, error) {
	p, err := b.next(LongSize)
	if err != nil {
		return 0, err
	}
	return be.Uint32(p), nil
}

// GetLongLong reads a big-endian 64-bit unsigned integer.
func (b *Buffer) GetLongLong() (uint64, error) {
	p, err := b.next(LongLongSize)
	if err != nil {
		return 0, err
	}
	return be.Uint64(p), nil
}
