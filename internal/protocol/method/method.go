package method

import (
	"fmt"

	"github.com/danmuck/amqpwire/internal/protocol/buffer"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
)

// envelopeLen is the class id plus the method id.
const envelopeLen = buffer.ShortSize + buffer.ShortSize

// Method is a method frame payload with its arguments still encoded.
type Method struct {
	ClassID  uint16
	MethodID uint16
	Args     []byte
}

// Name is the dotted class.method name, or a numeric form for ids outside
// the registry.
func (m Method) Name() string {
	return Name(m.ClassID, m.MethodID)
}

// Payload returns the method frame payload.
func (m Method) Payload() ([]byte, error) {
	b, err := buffer.New(envelopeLen + len(m.Args))
	if err != nil {
		return nil, err
	}
	if err := b.PutShort(m.ClassID); err != nil {
		return nil, err
	}
	if err := b.PutShort(m.MethodID); err != nil {
		return nil, err
	}
	if err := b.PutRawData(m.Args); err != nil {
		return nil, err
	}
	b.Flip()
	return b.GetRawData(b.Available())
}

// Frame wraps the method in a method frame for channel.
func (m Method) Frame(channel uint16) (frame.Frame, error) {
	payload, err := m.Payload()
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.Frame{Type: frame.TypeMethod, Channel: channel, Payload: payload}, nil
}

// Parse splits a method frame payload into ids and raw arguments. Unknown
// ids are not an error here.
func Parse(payload []byte) (Method, error) {
	b, err := load(payload)
	if err != nil {
		return Method{}, err
	}
	classID, _ := b.GetShort()
	methodID, _ := b.GetShort()
	args, err := b.GetRawData(b.Available())
	if err != nil {
		return Method{}, err
	}
	return Method{ClassID: classID, MethodID: methodID, Args: args}, nil
}

func load(payload []byte) (*buffer.Buffer, error) {
	if len(payload) < envelopeLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortMethod, len(payload))
	}
	b, err := buffer.New(len(payload))
	if err != nil {
		return nil, err
	}
	if err := b.PutRawData(payload); err != nil {
		return nil, err
	}
	b.Flip()
	return b, nil
}
