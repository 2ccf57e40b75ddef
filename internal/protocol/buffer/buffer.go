package buffer

import "fmt"

// Buffer is a fixed-capacity byte store with independent write and read cursors.
//
// Writes land at the write position and may not pass the write limit. Reads
// start at the read position and may not pass the read limit. Neither cursor
// pair ever moves the other.
type Buffer struct {
	data []byte

	wpos   int
	wlimit int
	rpos   int
	rlimit int

	mark   int
	marked bool
}

// New allocates a buffer of capacity bytes.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Buffer{
		data:   make([]byte, capacity),
		wlimit: capacity,
		rlimit: capacity,
	}, nil
}

// MustNew is New that panics on an invalid capacity.
func MustNew(capacity int) *Buffer {
	b, err := New(capacity)
	if err != nil {
		panic(err)
	}
	return b
}

// Cap returns the fixed capacity of the buffer.
func (b *Buffer) Cap() int { return len(b.data) }

// WritePos returns the offset of the next byte to be written.
func (b *Buffer) WritePos() int { return b.wpos }

// ReadPos returns the offset of the next byte to be read.
func (b *Buffer) ReadPos() int { return b.rpos }

// Remaining returns the number of bytes that can still be written.
func (b *Buffer) Remaining() int { return b.wlimit - b.wpos }

// Available returns the number of bytes that can still be read.
func (b *Buffer) Available() int { return b.rlimit - b.rpos }

// Flip exposes the bytes written so far for reading and rewinds the write
// cursor to the start of storage.
func (b *Buffer) Flip() {
	b.rlimit = b.wpos
	b.rpos = 0
	b.marked = false
	b.wpos = 0
	b.wlimit = len(b.data)
}

// Clear resets every cursor to its construction state. Stored bytes stay in
// place but are unreachable until overwritten.
func (b *Buffer) Clear() {
	b.wpos = 0
	b.wlimit = len(b.data)
	b.rpos = 0
	b.rlimit = len(b.data)
	b.marked = false
}

// Compact moves the unread region to the start of storage so that further
// writes append directly after it.
func (b *Buffer) Compact() {
	n := copy(b.data, b.data[b.rpos:b.rlimit])
	b.rpos = 0
	b.rlimit = n
	b.wpos = n
	b.wlimit = len(b.data)
	b.marked = false
}

// Record saves the read position. A second Record replaces the first.
func (b *Buffer) Record() {
	b.mark = b.rpos
	b.marked = true
}

// Restore rewinds the read position to the last Record and clears the mark.
// Without a prior Record it does nothing.
func (b *Buffer) Restore() {
	if !b.marked {
		return
	}
	b.rpos = b.mark
	b.marked = false
}

// Start returns the unwritten region of storage for an external fill such as
// a network read. The caller must report the bytes it filled with Move before
// any other operation on the buffer.
func (b *Buffer) Start() []byte {
	return b.data[b.wpos:b.wlimit:b.wlimit]
}

// Move advances the write position past n bytes filled through Start.
func (b *Buffer) Move(n int) error {
	if n < 0 || n > b.wlimit-b.wpos {
		return overflow(n, b.wlimit-b.wpos)
	}
	b.wpos += n
	return nil
}

// Bytes returns the readable region without consuming it. The slice aliases
// storage and is only valid until the next mutation.
func (b *Buffer) Bytes() []byte {
	return b.data[b.rpos:b.rlimit:b.rlimit]
}

// Write implements io.Writer. It is all-or-nothing: a short buffer writes no
// bytes and returns ErrOverflow.
func (b *Buffer) Write(p []byte) (int, error) {
	if err := b.PutRawData(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// reserve hands out the next n writable bytes and advances the write cursor.
func (b *Buffer) reserve(n int) ([]byte, error) {
	if n < 0 || n > b.wlimit-b.wpos {
		return nil, overflow(n, b.wlimit-b.wpos)
	}
	p := b.data[b.wpos : b.wpos+n : b.wpos+n]
	b.wpos += n
	return p, nil
}

// next hands out the next n readable bytes and advances the read cursor.
func (b *Buffer) next(n int) ([]byte, error) {
	if n < 0 || n > b.rlimit-b.rpos {
		return nil, underflow(n, b.rlimit-b.rpos)
	}
	p := b.data[b.rpos : b.rpos+n : b.rpos+n]
	b.rpos += n
	return p, nil
}

// peek returns the next n readable bytes without advancing.
func (b *Buffer) peek(n int) ([]byte, error) {
	if n > b.rlimit-b.rpos {
		return nil, underflow(n, b.rlimit-b.rpos)
	}
	return b.data[b.rpos : b.rpos+n], nil
}
