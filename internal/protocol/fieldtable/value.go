package fieldtable

import (
	"fmt"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol/buffer"
)

// Kind is the one-byte type tag written before every value.
type Kind uint8

const (
	KindLongString Kind = 'S'
	KindInteger    Kind = 'I'
	KindDecimal    Kind = 'D'
	KindTimestamp  Kind = 'T'
	KindTable      Kind = 'F'
)

func (k Kind) String() string {
	switch k {
	case KindLongString:
		return "longstr"
	case KindInteger:
		return "long"
	case KindDecimal:
		return "decimal"
	case KindTimestamp:
		return "timestamp"
	case KindTable:
		return "table"
	default:
		return fmt.Sprintf("kind(%#02x)", uint8(k))
	}
}

// Decimal is Value scaled down by 10^Scale.
type Decimal struct {
	Scale uint8
	Value uint32
}

// Value is one typed field table value.
type Value struct {
	kind      Kind
	str       string
	integer   uint32
	decimal   Decimal
	timestamp time.Time
	table     *Table
}

// NewString creates a long string value.
func NewString(v string) Value {
	return Value{kind: KindLongString, str: v}
}

// NewInteger creates a 32-bit integer value.
func NewInteger(v uint32) Value {
	return Value{kind: KindInteger, integer: v}
}

// NewDecimal creates a decimal value.
func NewDecimal(scale uint8, v uint32) Value {
	return Value{kind: KindDecimal, decimal: Decimal{Scale: scale, Value: v}}
}

// NewTimestamp creates a timestamp value. Precision is one second.
func NewTimestamp(v time.Time) Value {
	return Value{kind: KindTimestamp, timestamp: time.Unix(v.Unix(), 0).UTC()}
}

// NewTable creates a nested table value.
func NewTable(v *Table) Value {
	if v == nil {
		v = New()
	}
	return Value{kind: KindTable, table: v}
}

// Kind returns the value's type tag.
func (v Value) Kind() Kind { return v.kind }

// AsString returns the value as a long string.
func (v Value) AsString() (string, error) {
	if v.kind != KindLongString {
		return "", mismatch(KindLongString, v.kind)
	}
	return v.str, nil
}

// AsInteger returns the value as a 32-bit integer.
func (v Value) AsInteger() (uint32, error) {
	if v.kind != KindInteger {
		return 0, mismatch(KindInteger, v.kind)
	}
	return v.integer, nil
}

// AsDecimal returns the value as a decimal.
func (v Value) AsDecimal() (Decimal, error) {
	if v.kind != KindDecimal {
		return Decimal{}, mismatch(KindDecimal, v.kind)
	}
	return v.decimal, nil
}

// AsTimestamp returns the value as a UTC timestamp.
func (v Value) AsTimestamp() (time.Time, error) {
	if v.kind != KindTimestamp {
		return time.Time{}, mismatch(KindTimestamp, v.kind)
	}
	return v.timestamp, nil
}

// AsTable returns the value as a nested table.
func (v Value) AsTable() (*Table, error) {
	if v.kind != KindTable {
		return nil, mismatch(KindTable, v.kind)
	}
	return v.table, nil
}

func mismatch(want, got Kind) error {
	return fmt.Errorf("%w: want %s, got %s", ErrKindMismatch, want, got)
}

func (v Value) encodedSize() int {
	switch v.kind {
	case KindLongString:
		return buffer.LongSize + len(v.str)
	case KindInteger:
		return buffer.LongSize
	case KindDecimal:
		return buffer.OctetSize + buffer.LongSize
	case KindTimestamp:
		return buffer.LongLongSize
	case KindTable:
		return buffer.LongSize + v.table.EncodedSize()
	default:
		return 0
	}
}

func (v Value) encodeTo(b *buffer.Buffer) error {
	switch v.kind {
	case KindLongString:
		return b.PutLongString(v.str)
	case KindInteger:
		return b.PutLong(v.integer)
	case KindDecimal:
		if err := b.PutOctet(v.decimal.Scale); err != nil {
			return err
		}
		return b.PutLong(v.decimal.Value)
	case KindTimestamp:
		return b.PutLongLong(uint64(v.timestamp.Unix()))
	case KindTable:
		return b.PutFieldTable(v.table)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, v.kind)
	}
}

func decodeValue(b *buffer.Buffer, kind Kind) (Value, error) {
	switch kind {
	case KindLongString:
		s, err := b.GetLongString()
		if err != nil {
			return Value{}, err
		}
		return NewString(s), nil
	case KindInteger:
		n, err := b.GetLong()
		if err != nil {
			return Value{}, err
		}
		return NewInteger(n), nil
	case KindDecimal:
		scale, err := b.GetOctet()
		if err != nil {
			return Value{}, err
		}
		n, err := b.GetLong()
		if err != nil {
			return Value{}, err
		}
		return NewDecimal(scale, n), nil
	case KindTimestamp:
		secs, err := b.GetLongLong()
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindTimestamp, timestamp: time.Unix(int64(secs), 0).UTC()}, nil
	case KindTable:
		nested := New()
		if err := b.GetFieldTable(nested); err != nil {
			return Value{}, err
		}
		return NewTable(nested), nil
	default:
		return Value{}, fmt.Errorf("%w: %w %s", buffer.ErrMalformedTable, ErrUnknownKind, kind)
	}
}
