package session

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol/buffer"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
)

var ErrFrameExceedsBuffer = errors.New("session: frame exceeds read buffer")

const maxEmptyReads = 100

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Reader decodes frames from an io.Reader. It is not safe for concurrent use.
type Reader struct {
	r      io.Reader
	cfg    Config
	limits frame.Limits
	buf    *buffer.Buffer

	frames atomic.Uint64
	bytes  atomic.Uint64
}

func NewReader(r io.Reader, cfg Config) (*Reader, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	buf, err := buffer.New(cfg.BufferSize)
	if err != nil {
		return nil, err
	}
	// start with an empty readable window
	buf.Flip()
	return &Reader{r: r, cfg: cfg, limits: cfg.Limits(), buf: buf}, nil
}

// ReadProtocolHeader reads the connection preamble.
func (r *Reader) ReadProtocolHeader() (frame.ProtocolHeader, error) {
	for {
		h, err := frame.ReadProtocolHeader(r.buf)
		if err == nil {
			r.bytes.Add(frame.ProtocolHeaderLen)
			return h, nil
		}
		if !errors.Is(err, frame.ErrIncomplete) {
			return frame.ProtocolHeader{}, err
		}
		if err := r.fill(); err != nil {
			return frame.ProtocolHeader{}, err
		}
	}
}

// ReadFrame blocks until a whole frame is buffered and returns it. io.EOF is
// returned only on a frame boundary; a stream that ends mid-frame yields
// io.ErrUnexpectedEOF.
func (r *Reader) ReadFrame() (frame.Frame, error) {
	for {
		f, err := frame.Decode(r.buf, r.limits)
		if err == nil {
			r.frames.Add(1)
			r.bytes.Add(uint64(f.Size()))
			return f, nil
		}
		if !errors.Is(err, frame.ErrIncomplete) {
			return frame.Frame{}, err
		}
		if err := r.fill(); err != nil {
			return frame.Frame{}, err
		}
	}
}

// Buffered returns the number of bytes read from the stream but not yet
// decoded.
func (r *Reader) Buffered() int {
	return r.buf.Available()
}

// Frames returns the number of frames decoded so far.
func (r *Reader) Frames() uint64 { return r.frames.Load() }

// Bytes returns the number of bytes decoded so far.
func (r *Reader) Bytes() uint64 { return r.bytes.Load() }

// fill keeps any partial frame, reads more bytes after it and exposes the
// result for decoding.
func (r *Reader) fill() error {
	r.buf.Compact()
	space := r.buf.Start()
	if len(space) == 0 {
		r.buf.Flip()
		return fmt.Errorf("%w: %d bytes buffered", ErrFrameExceedsBuffer, r.buf.Available())
	}
	if d, ok := r.r.(readDeadliner); ok && r.cfg.ReadTimeout > 0 {
		_ = d.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout))
	}

	var (
		n   int
		err error
	)
	for i := 0; i < maxEmptyReads && n == 0 && err == nil; i++ {
		n, err = r.r.Read(space)
	}
	if n > 0 {
		_ = r.buf.Move(n)
	}
	r.buf.Flip()
	if n > 0 {
		return nil
	}
	if err == nil {
		return io.ErrNoProgress
	}
	if errors.Is(err, io.EOF) && r.buf.Available() > 0 {
		return io.ErrUnexpectedEOF
	}
	return err
}
