package frame

import (
	"errors"
	"fmt"

	"github.com/danmuck/amqpwire/internal/protocol/buffer"
)

const (
	// HeaderLen covers type, channel and payload size.
	HeaderLen = buffer.OctetSize + buffer.ShortSize + buffer.LongSize
	// Overhead is everything in a frame except its payload.
	Overhead = HeaderLen + buffer.OctetSize
	// End terminates every frame.
	End uint8 = 0xCE

	DefaultFrameMax uint32 = 131072
)

var (
	ErrIncomplete      = errors.New("frame: incomplete")
	ErrBadFrameEnd     = errors.New("frame: bad frame end")
	ErrUnknownType     = errors.New("frame: unknown frame type")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// Type identifies the frame body.
type Type uint8

const (
	TypeMethod    Type = 1
	TypeHeader    Type = 2
	TypeBody      Type = 3
	TypeOOBMethod Type = 4
	TypeOOBHeader Type = 5
	TypeOOBBody   Type = 6
	TypeTrace     Type = 7
	TypeHeartbeat Type = 8
)

func (t Type) Valid() bool {
	return t >= TypeMethod && t <= TypeHeartbeat
}

func (t Type) String() string {
	switch t {
	case TypeMethod:
		return "method"
	case TypeHeader:
		return "header"
	case TypeBody:
		return "body"
	case TypeOOBMethod:
		return "oob-method"
	case TypeOOBHeader:
		return "oob-header"
	case TypeOOBBody:
		return "oob-body"
	case TypeTrace:
		return "trace"
	case TypeHeartbeat:
		return "heartbeat"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Frame is one complete wire frame.
type Frame struct {
	Type    Type
	Channel uint16
	Payload []byte
}

// Size returns the number of bytes f occupies on the wire.
func (f Frame) Size() int {
	return Overhead + len(f.Payload)
}

// Heartbeat returns the channel zero heartbeat frame.
func Heartbeat() Frame {
	return Frame{Type: TypeHeartbeat}
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return LimitsFor(DefaultFrameMax)
}

// LimitsFor derives payload limits from a negotiated frame-max. Zero means
// the default.
func LimitsFor(frameMax uint32) Limits {
	if frameMax == 0 {
		frameMax = DefaultFrameMax
	}
	if frameMax <= Overhead {
		return Limits{}
	}
	return Limits{MaxPayloadBytes: frameMax - Overhead}
}

// Encode writes f at the write cursor of b. Nothing is written on failure.
func Encode(b *buffer.Buffer, f Frame, limits Limits) error {
	if !f.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownType, uint8(f.Type))
	}
	if uint64(len(f.Payload)) > uint64(limits.MaxPayloadBytes) {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(f.Payload), limits.MaxPayloadBytes)
	}
	if need := f.Size(); need > b.Remaining() {
		return fmt.Errorf("%w: %s frame needs %d bytes, %d writable", buffer.ErrOverflow, f.Type, need, b.Remaining())
	}

	// capacity was checked above; these writes cannot fail
	_ = b.PutOctet(uint8(f.Type))
	_ = b.PutShort(f.Channel)
	_ = b.PutLong(uint32(len(f.Payload)))
	_ = b.PutRawData(f.Payload)
	_ = b.PutOctet(End)
	return nil
}

// Decode reads one frame at the read cursor of b.
//
// When b does not yet hold the whole frame, Decode returns ErrIncomplete and
// leaves the read cursor where it was so the caller can append more bytes and
// retry. Decode uses the buffer's mark and replaces any mark the caller set.
func Decode(b *buffer.Buffer, limits Limits) (Frame, error) {
	b.Record()
	f, err := decode(b, limits)
	if err != nil {
		b.Restore()
		return Frame{}, err
	}
	return f, nil
}

func decode(b *buffer.Buffer, limits Limits) (Frame, error) {
	if b.Available() < HeaderLen {
		return Frame{}, incomplete(HeaderLen, b.Available())
	}
	typ, _ := b.GetOctet()
	channel, _ := b.GetShort()
	size, _ := b.GetLong()

	if !Type(typ).Valid() {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
	if size > limits.MaxPayloadBytes {
		return Frame{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, size, limits.MaxPayloadBytes)
	}
	if need := uint64(size) + buffer.OctetSize; need > uint64(b.Available()) {
		return Frame{}, incomplete(int(need), b.Available())
	}

	payload, err := b.GetRawData(int(size))
	if err != nil {
		return Frame{}, err
	}
	end, err := b.GetOctet()
	if err != nil {
		return Frame{}, err
	}
	if end != End {
		return Frame{}, fmt.Errorf("%w: got %#02x", ErrBadFrameEnd, end)
	}
	return Frame{Type: Type(typ), Channel: channel, Payload: payload}, nil
}

func incomplete(need, available int) error {
	return fmt.Errorf("%w: need %d bytes, %d readable: %w", ErrIncomplete, need, available, buffer.ErrUnderflow)
}
