// Package fieldtable implements the AMQP field table carried in method
// arguments and content header properties.
//
// Entry wire form: short string name, one-byte kind tag, value.
package fieldtable

import (
	"fmt"

	"github.com/danmuck/amqpwire/internal/protocol/buffer"
)

// Entry is one named value.
type Entry struct {
	Name  string
	Value Value
}

// Table is an ordered set of named values.
type Table struct {
	entries []Entry
}

var _ buffer.Table = (*Table)(nil)

func New() *Table {
	return &Table{}
}

// Set adds name or replaces its value in place.
func (t *Table) Set(name string, v Value) {
	for i := range t.entries {
		if t.entries[i].Name == name {
			t.entries[i].Value = v
			return
		}
	}
	t.entries = append(t.entries, Entry{Name: name, Value: v})
}

func (t *Table) Get(name string) (Value, bool) {
	for _, e := range t.entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return Value{}, false
}

func (t *Table) Delete(name string) bool {
	for i, e := range t.entries {
		if e.Name == name {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Names returns entry names in insertion order.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.Name)
	}
	return out
}

// Entries returns a copy of the entries in insertion order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// EncodedSize returns the size of the encoded entries, excluding the 4-byte
// length that precedes them on the wire.
func (t *Table) EncodedSize() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, e := range t.entries {
		n += buffer.OctetSize + len(e.Name) + buffer.OctetSize + e.Value.encodedSize()
	}
	return n
}

// EncodeTo writes every entry at the write cursor of b.
func (t *Table) EncodeTo(b *buffer.Buffer) error {
	for _, e := range t.entries {
		if err := validName(e.Name); err != nil {
			return err
		}
		if err := b.PutShortString(e.Name); err != nil {
			return err
		}
		if err := b.PutOctet(uint8(e.Value.kind)); err != nil {
			return err
		}
		if err := e.Value.encodeTo(b); err != nil {
			return fmt.Errorf("entry %q: %w", e.Name, err)
		}
	}
	return nil
}

// DecodeFrom replaces the contents of t with the entries held in the next n
// bytes of b. A repeated name keeps its last value.
func (t *Table) DecodeFrom(b *buffer.Buffer, n uint32) error {
	t.entries = t.entries[:0]
	end := b.ReadPos() + int(n)
	for b.ReadPos() < end {
		name, err := b.GetShortString()
		if err != nil {
			return err
		}
		if err := validName(name); err != nil {
			return fmt.Errorf("%w: %w", buffer.ErrMalformedTable, err)
		}
		kind, err := b.GetOctet()
		if err != nil {
			return err
		}
		v, err := decodeValue(b, Kind(kind))
		if err != nil {
			return fmt.Errorf("entry %q: %w", name, err)
		}
		t.Set(name, v)
	}
	if b.ReadPos() != end {
		return fmt.Errorf("%w: last entry ends %d bytes past table", buffer.ErrMalformedTable, b.ReadPos()-end)
	}
	return nil
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > buffer.MaxShortString {
		return fmt.Errorf("%w: %d bytes", ErrInvalidName, len(name))
	}
	return nil
}
