package method

import (
	"fmt"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol/buffer"
	"github.com/danmuck/amqpwire/internal/protocol/fieldtable"
)

// Value is one decoded argument. Only the field matching Type is set.
type Value struct {
	Type      ArgType
	Bit       bool
	Octet     uint8
	Short     uint16
	Long      uint32
	LongLong  uint64
	String    string
	Timestamp time.Time
	Table     *fieldtable.Table
}

func NewBit(v bool) Value { return Value{Type: ArgBit, Bit: v} }
func NewOctet(v uint8) Value { return Value{Type: ArgOctet, Octet: v} }
func NewShort(v uint16) Value { return Value{Type: ArgShort, Short: v} }
func NewLong(v uint32) Value { return Value{Type: ArgLong, Long: v} }
func NewLongLong(v uint64) Value { return Value{Type: ArgLongLong, LongLong: v} }
func NewShortString(v string) Value { return Value{Type: ArgShortString, String: v} }
func NewLongString(v string) Value { return Value{Type: ArgLongString, String: v} }
func NewTimestamp(v time.Time) Value { return Value{Type: ArgTimestamp, Timestamp: v} }
func NewTable(v *fieldtable.Table) Value { return Value{Type: ArgTable, Table: v} }

// Decoded is a method with its arguments typed against the registered
// schema.
type Decoded struct {
	Schema Schema
	Values map[string]Value
}

// Decode parses a method frame payload and types every argument. Unknown
// ids fail with ErrUnknownMethod.
func Decode(payload []byte) (*Decoded, error) {
	b, err := load(payload)
	if err != nil {
		return nil, err
	}
	classID, _ := b.GetShort()
	methodID, _ := b.GetShort()
	s, ok := Lookup(classID, methodID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, Name(classID, methodID))
	}
	values, err := decodeArgs(b, s)
	if err != nil {
		return nil, err
	}
	if n := b.Available(); n != 0 {
		return nil, fmt.Errorf("%w: %s has %d extra bytes", ErrTrailingArgs, s.Name, n)
	}
	return &Decoded{Schema: s, Values: values}, nil
}

// Decode types the raw arguments of m.
func (m Method) Decode() (*Decoded, error) {
	payload, err := m.Payload()
	if err != nil {
		return nil, err
	}
	return Decode(payload)
}

// decodeArgs reads arguments in schema order. Consecutive bits share
// octets, low bit first.
func decodeArgs(b *buffer.Buffer, s Schema) (map[string]Value, error) {
	values := make(map[string]Value, len(s.Args))
	var bits uint8
	used := 8
	for _, arg := range s.Args {
		if arg.Type != ArgBit {
			used = 8
		}
		v := Value{Type: arg.Type}
		var err error
		switch arg.Type {
		case ArgBit:
			if used == 8 {
				bits, err = b.GetOctet()
				used = 0
			}
			v.Bit = bits&(1<<used) != 0
			used++
		case ArgOctet:
			v.Octet, err = b.GetOctet()
		case ArgShort:
			v.Short, err = b.GetShort()
		case ArgLong:
			v.Long, err = b.GetLong()
		case ArgLongLong:
			v.LongLong, err = b.GetLongLong()
		case ArgShortString:
			v.String, err = b.GetShortString()
		case ArgLongString:
			v.String, err = b.GetLongString()
		case ArgTimestamp:
			var sec uint64
			sec, err = b.GetLongLong()
			v.Timestamp = time.Unix(int64(sec), 0).UTC()
		case ArgTable:
			v.Table = fieldtable.New()
			err = b.GetFieldTable(v.Table)
		default:
			err = fmt.Errorf("%w: %s", ErrArgTypeMismatch, arg.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrBadArgs, s.Name, arg.Name, err)
		}
		values[arg.Name] = v
	}
	return values, nil
}

// Build encodes values against the schema registered for the ids. Every
// argument the schema names must be supplied with the matching type.
func Build(classID, methodID uint16, values map[string]Value) (Method, error) {
	s, ok := Lookup(classID, methodID)
	if !ok {
		return Method{}, fmt.Errorf("%w: %s", ErrUnknownMethod, Name(classID, methodID))
	}
	m := Method{ClassID: classID, MethodID: methodID}

	size := 0
	used := 8
	for _, arg := range s.Args {
		v, ok := values[arg.Name]
		if !ok {
			return Method{}, MissingArgError{Method: s.Name, Arg: arg.Name}
		}
		if v.Type != arg.Type {
			return Method{}, fmt.Errorf("%w: %s %s is %s, want %s", ErrArgTypeMismatch, s.Name, arg.Name, v.Type, arg.Type)
		}
		if arg.Type == ArgBit {
			if used == 8 {
				size++
				used = 0
			}
			used++
			continue
		}
		used = 8
		size += v.encodedSize()
	}
	if size == 0 {
		return m, nil
	}

	b, err := buffer.New(size)
	if err != nil {
		return Method{}, err
	}
	var pending uint8
	used = 0
	for _, arg := range s.Args {
		v := values[arg.Name]
		if arg.Type == ArgBit {
			if used == 8 {
				if err := b.PutOctet(pending); err != nil {
					return Method{}, err
				}
				pending, used = 0, 0
			}
			if v.Bit {
				pending |= 1 << used
			}
			used++
			continue
		}
		if used > 0 {
			if err := b.PutOctet(pending); err != nil {
				return Method{}, err
			}
			pending, used = 0, 0
		}
		if err := v.encodeTo(b); err != nil {
			return Method{}, fmt.Errorf("%s %s: %w", s.Name, arg.Name, err)
		}
	}
	if used > 0 {
		if err := b.PutOctet(pending); err != nil {
			return Method{}, err
		}
	}
	b.Flip()
	m.Args, err = b.GetRawData(b.Available())
	if err != nil {
		return Method{}, err
	}
	return m, nil
}

func (v Value) table() *fieldtable.Table {
	if v.Table == nil {
		return fieldtable.New()
	}
	return v.Table
}

func (v Value) encodedSize() int {
	switch v.Type {
	case ArgOctet:
		return buffer.OctetSize
	case ArgShort:
		return buffer.ShortSize
	case ArgLong:
		return buffer.LongSize
	case ArgLongLong, ArgTimestamp:
		return buffer.LongLongSize
	case ArgShortString:
		return buffer.OctetSize + len(v.String)
	case ArgLongString:
		return buffer.LongSize + len(v.String)
	case ArgTable:
		return buffer.LongSize + v.table().EncodedSize()
	default:
		return 0
	}
}

func (v Value) encodeTo(b *buffer.Buffer) error {
	switch v.Type {
	case ArgOctet:
		return b.PutOctet(v.Octet)
	case ArgShort:
		return b.PutShort(v.Short)
	case ArgLong:
		return b.PutLong(v.Long)
	case ArgLongLong:
		return b.PutLongLong(v.LongLong)
	case ArgShortString:
		return b.PutShortString(v.String)
	case ArgLongString:
		return b.PutLongString(v.String)
	case ArgTimestamp:
		return b.PutLongLong(uint64(v.Timestamp.Unix()))
	case ArgTable:
		return b.PutFieldTable(v.table())
	default:
		return fmt.Errorf("%w: %s", ErrArgTypeMismatch, v.Type)
	}
}
