package session

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol/buffer"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Writer encodes frames into a buffer and drains it to an io.Writer on
// Flush, or earlier when the next frame does not fit. It is safe for
// concurrent use.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	cfg    Config
	limits frame.Limits
	buf    *buffer.Buffer

	frames atomic.Uint64
	bytes  atomic.Uint64
}

func NewWriter(w io.Writer, cfg Config) (*Writer, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	buf, err := buffer.New(cfg.BufferSize)
	if err != nil {
		return nil, err
	}
	return &Writer{w: w, cfg: cfg, limits: cfg.Limits(), buf: buf}, nil
}

// WriteProtocolHeader buffers the connection preamble.
func (w *Writer) WriteProtocolHeader(h frame.ProtocolHeader) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Remaining() < frame.ProtocolHeaderLen {
		if err := w.flushLocked(); err != nil {
			return err
		}
	}
	if err := frame.WriteProtocolHeader(w.buf, h); err != nil {
		return err
	}
	w.bytes.Add(frame.ProtocolHeaderLen)
	return nil
}

// WriteFrame buffers f. Buffered frames are flushed first when f does not
// fit behind them.
func (w *Writer) WriteFrame(f frame.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := frame.Encode(w.buf, f, w.limits)
	if errors.Is(err, buffer.ErrOverflow) && w.buf.WritePos() > 0 {
		if err := w.flushLocked(); err != nil {
			return err
		}
		err = frame.Encode(w.buf, f, w.limits)
	}
	if err != nil {
		return err
	}
	w.frames.Add(1)
	w.bytes.Add(uint64(f.Size()))
	return nil
}

// Send buffers f and flushes immediately.
func (w *Writer) Send(f frame.Frame) error {
	if err := w.WriteFrame(f); err != nil {
		return err
	}
	return w.Flush()
}

// Flush writes every buffered byte to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Buffered returns the number of encoded bytes waiting for Flush.
func (w *Writer) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.WritePos()
}

// Frames returns the number of frames accepted so far.
func (w *Writer) Frames() uint64 { return w.frames.Load() }

// Bytes returns the number of bytes accepted so far.
func (w *Writer) Bytes() uint64 { return w.bytes.Load() }

func (w *Writer) flushLocked() error {
	if w.buf.WritePos() == 0 {
		return nil
	}
	if d, ok := w.w.(writeDeadliner); ok && w.cfg.WriteTimeout > 0 {
		_ = d.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	}
	w.buf.Flip()
	pending := w.buf.Bytes()
	n, err := w.w.Write(pending)
	if err == nil && n < len(pending) {
		err = io.ErrShortWrite
	}
	if err != nil {
		// keep the unwritten tail queued
		if n > 0 {
			_, _ = w.buf.GetRawData(n)
		}
		w.buf.Compact()
		return fmt.Errorf("session: flush %d bytes: %w", len(pending)-n, err)
	}
	w.buf.Clear()
	return nil
}
