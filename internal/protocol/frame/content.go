package frame

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol/buffer"
	"github.com/danmuck/amqpwire/internal/protocol/fieldtable"
)

// contentHeaderLen covers class, weight, body size and property flags.
const contentHeaderLen = buffer.ShortSize + buffer.ShortSize + buffer.LongLongSize + buffer.ShortSize

var (
	ErrBadContentHeader = errors.New("frame: bad content header")
	ErrFlagContinuation = errors.New("frame: property flag continuation unsupported")
)

// Basic class property flags, most significant bit first.
const (
	flagContentType     uint16 = 1 << 15
	flagContentEncoding uint16 = 1 << 14
	flagHeaders         uint16 = 1 << 13
	flagDeliveryMode    uint16 = 1 << 12
	flagPriority        uint16 = 1 << 11
	flagCorrelationID   uint16 = 1 << 10
	flagReplyTo         uint16 = 1 << 9
	flagExpiration      uint16 = 1 << 8
	flagMessageID       uint16 = 1 << 7
	flagTimestamp       uint16 = 1 << 6
	flagType            uint16 = 1 << 5
	flagUserID          uint16 = 1 << 4
	flagAppID           uint16 = 1 << 3
	flagClusterID       uint16 = 1 << 2
	flagContinuation    uint16 = 1 << 0
)

// Properties are the basic class content properties. Zero values are absent
// on the wire, so a property a peer sends with its zero value does not
// survive a parse and re-encode.
type Properties struct {
	ContentType     string
	ContentEncoding string
	Headers         *fieldtable.Table
	DeliveryMode    uint8
	Priority        uint8
	CorrelationID   string
	ReplyTo         string
	Expiration      string
	MessageID       string
	Timestamp       time.Time
	Type            string
	UserID          string
	AppID           string
	ClusterID       string
}

// ContentHeader is the payload of a header frame.
type ContentHeader struct {
	ClassID    uint16
	Weight     uint16
	BodySize   uint64
	Properties Properties
}

type shortProp struct {
	flag uint16
	val  *string
}

func (p *Properties) leadingShorts() []shortProp {
	return []shortProp{
		{flagContentType, &p.ContentType},
		{flagContentEncoding, &p.ContentEncoding},
	}
}

func (p *Properties) trailingShorts() []shortProp {
	return []shortProp{
		{flagCorrelationID, &p.CorrelationID},
		{flagReplyTo, &p.ReplyTo},
		{flagExpiration, &p.Expiration},
		{flagMessageID, &p.MessageID},
	}
}

func (p *Properties) finalShorts() []shortProp {
	return []shortProp{
		{flagType, &p.Type},
		{flagUserID, &p.UserID},
		{flagAppID, &p.AppID},
		{flagClusterID, &p.ClusterID},
	}
}

func (p *Properties) flags() uint16 {
	var flags uint16
	for _, group := range [][]shortProp{p.leadingShorts(), p.trailingShorts(), p.finalShorts()} {
		for _, s := range group {
			if *s.val != "" {
				flags |= s.flag
			}
		}
	}
	if p.Headers != nil {
		flags |= flagHeaders
	}
	if p.DeliveryMode != 0 {
		flags |= flagDeliveryMode
	}
	if p.Priority != 0 {
		flags |= flagPriority
	}
	if !p.Timestamp.IsZero() {
		flags |= flagTimestamp
	}
	return flags
}

// EncodedSize returns the payload size of h.
func (h ContentHeader) EncodedSize() int {
	p := &h.Properties
	n := contentHeaderLen
	for _, group := range [][]shortProp{p.leadingShorts(), p.trailingShorts(), p.finalShorts()} {
		for _, s := range group {
			if *s.val != "" {
				n += buffer.OctetSize + len(*s.val)
			}
		}
	}
	if p.Headers != nil {
		n += buffer.LongSize + p.Headers.EncodedSize()
	}
	if p.DeliveryMode != 0 {
		n += buffer.OctetSize
	}
	if p.Priority != 0 {
		n += buffer.OctetSize
	}
	if !p.Timestamp.IsZero() {
		n += buffer.LongLongSize
	}
	return n
}

// Payload encodes h as a header frame payload.
func (h ContentHeader) Payload() ([]byte, error) {
	b, err := buffer.New(h.EncodedSize())
	if err != nil {
		return nil, err
	}
	if err := h.encodeTo(b); err != nil {
		return nil, err
	}
	b.Flip()
	return b.GetRawData(b.Available())
}

// HeaderFrame wraps h in a header frame on channel.
func (h ContentHeader) HeaderFrame(channel uint16) (Frame, error) {
	payload, err := h.Payload()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: TypeHeader, Channel: channel, Payload: payload}, nil
}

func (h ContentHeader) encodeTo(b *buffer.Buffer) error {
	p := &h.Properties
	if err := b.PutShort(h.ClassID); err != nil {
		return err
	}
	if err := b.PutShort(h.Weight); err != nil {
		return err
	}
	if err := b.PutLongLong(h.BodySize); err != nil {
		return err
	}
	if err := b.PutShort(p.flags()); err != nil {
		return err
	}
	if err := putShorts(b, p.leadingShorts()); err != nil {
		return err
	}
	if p.Headers != nil {
		if err := b.PutFieldTable(p.Headers); err != nil {
			return fmt.Errorf("headers: %w", err)
		}
	}
	if p.DeliveryMode != 0 {
		if err := b.PutOctet(p.DeliveryMode); err != nil {
			return err
		}
	}
	if p.Priority != 0 {
		if err := b.PutOctet(p.Priority); err != nil {
			return err
		}
	}
	if err := putShorts(b, p.trailingShorts()); err != nil {
		return err
	}
	if !p.Timestamp.IsZero() {
		if err := b.PutLongLong(uint64(p.Timestamp.Unix())); err != nil {
			return err
		}
	}
	return putShorts(b, p.finalShorts())
}

func putShorts(b *buffer.Buffer, props []shortProp) error {
	for _, s := range props {
		if *s.val == "" {
			continue
		}
		if err := b.PutShortString(*s.val); err != nil {
			return err
		}
	}
	return nil
}

// ParseContentHeader decodes a header frame payload.
func ParseContentHeader(payload []byte) (ContentHeader, error) {
	if len(payload) < contentHeaderLen {
		return ContentHeader{}, fmt.Errorf("%w: %d bytes, need %d", ErrBadContentHeader, len(payload), contentHeaderLen)
	}
	b := buffer.MustNew(len(payload))
	_ = b.PutRawData(payload)
	b.Flip()

	var h ContentHeader
	h.ClassID, _ = b.GetShort()
	h.Weight, _ = b.GetShort()
	h.BodySize, _ = b.GetLongLong()
	flags, _ := b.GetShort()
	if flags&flagContinuation != 0 {
		return ContentHeader{}, ErrFlagContinuation
	}

	p := &h.Properties
	if err := getShorts(b, flags, p.leadingShorts()); err != nil {
		return ContentHeader{}, err
	}
	if flags&flagHeaders != 0 {
		p.Headers = fieldtable.New()
		if err := b.GetFieldTable(p.Headers); err != nil {
			return ContentHeader{}, fmt.Errorf("headers: %w", err)
		}
	}
	if flags&flagDeliveryMode != 0 {
		v, err := b.GetOctet()
		if err != nil {
			return ContentHeader{}, err
		}
		p.DeliveryMode = v
	}
	if flags&flagPriority != 0 {
		v, err := b.GetOctet()
		if err != nil {
			return ContentHeader{}, err
		}
		p.Priority = v
	}
	if err := getShorts(b, flags, p.trailingShorts()); err != nil {
		return ContentHeader{}, err
	}
	if flags&flagTimestamp != 0 {
		v, err := b.GetLongLong()
		if err != nil {
			return ContentHeader{}, err
		}
		p.Timestamp = time.Unix(int64(v), 0).UTC()
	}
	if err := getShorts(b, flags, p.finalShorts()); err != nil {
		return ContentHeader{}, err
	}
	if b.Available() != 0 {
		return ContentHeader{}, fmt.Errorf("%w: %d trailing bytes", ErrBadContentHeader, b.Available())
	}
	return h, nil
}

func getShorts(b *buffer.Buffer, flags uint16, props []shortProp) error {
	for _, s := range props {
		if flags&s.flag == 0 {
			continue
		}
		v, err := b.GetShortString()
		if err != nil {
			return err
		}
		*s.val = v
	}
	return nil
}
