package frame

import (
	"errors"
	"fmt"

	"github.com/danmuck/amqpwire/internal/protocol/buffer"
)

// ProtocolHeaderLen is the size of the connection preamble.
const ProtocolHeaderLen = 8

var ErrBadProtocolHeader = errors.New("frame: bad protocol header")

var protocolName = [4]byte{'A', 'M', 'Q', 'P'}

// ProtocolHeader is the preamble a client sends before its first frame:
// "AMQP", protocol class, protocol instance, major and minor version.
type ProtocolHeader struct {
	Class    uint8
	Instance uint8
	Major    uint8
	Minor    uint8
}

// DefaultProtocolHeader announces AMQP 0-8 over TCP.
func DefaultProtocolHeader() ProtocolHeader {
	return ProtocolHeader{Class: 1, Instance: 1, Major: 8, Minor: 0}
}

func (h ProtocolHeader) String() string {
	return fmt.Sprintf("AMQP %d-%d (class %d, instance %d)", h.Major, h.Minor, h.Class, h.Instance)
}

// WriteProtocolHeader writes h at the write cursor of b.
func WriteProtocolHeader(b *buffer.Buffer, h ProtocolHeader) error {
	if b.Remaining() < ProtocolHeaderLen {
		return fmt.Errorf("%w: protocol header needs %d bytes, %d writable", buffer.ErrOverflow, ProtocolHeaderLen, b.Remaining())
	}
	_ = b.PutRawData(protocolName[:])
	_ = b.PutOctet(h.Class)
	_ = b.PutOctet(h.Instance)
	_ = b.PutOctet(h.Major)
	_ = b.PutOctet(h.Minor)
	return nil
}

// ReadProtocolHeader reads the connection preamble. Like Decode it returns
// ErrIncomplete with the read cursor untouched when b is short.
func ReadProtocolHeader(b *buffer.Buffer) (ProtocolHeader, error) {
	if b.Available() < ProtocolHeaderLen {
		return ProtocolHeader{}, incomplete(ProtocolHeaderLen, b.Available())
	}
	b.Record()
	name, _ := b.GetRawData(len(protocolName))
	if string(name) != string(protocolName[:]) {
		b.Restore()
		return ProtocolHeader{}, fmt.Errorf("%w: %q", ErrBadProtocolHeader, name)
	}
	var h ProtocolHeader
	h.Class, _ = b.GetOctet()
	h.Instance, _ = b.GetOctet()
	h.Major, _ = b.GetOctet()
	h.Minor, _ = b.GetOctet()
	return h, nil
}
