package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"testing"
	"testing/iotest"
	"time"

	"github.com/zeebo/assert"
	"github.com/zeebo/mwc"

	"github.com/danmuck/amqpwire/internal/protocol/buffer"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/testutil/testlog"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.BufferSize = 64
	cfg.FrameMax = 64
	return cfg
}

func encodeFrames(t *testing.T, frames ...frame.Frame) []byte {
	t.Helper()
	var out bytes.Buffer
	w, err := NewWriter(&out, DefaultConfig())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	for _, f := range frames {
		if err := w.WriteFrame(f); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return out.Bytes()
}

func TestBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	if got := cfg.Delay(1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := cfg.Delay(2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := cfg.Delay(3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := cfg.Delay(6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 1, Jitter: true}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		got := cfg.Delay(3, rng)
		if got < 50*time.Millisecond || got >= 150*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", got)
		}
	}
	if got := cfg.Delay(2, nil); got != 50*time.Millisecond {
		t.Fatalf("jitter without rng got=%v", got)
	}
}

func TestBackoffFirstAttemptSkipsJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: 50 * time.Millisecond, Jitter: true}
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 20; i++ {
		if got := cfg.Delay(1, rng); got != 100*time.Millisecond {
			t.Fatalf("first attempt delay got=%v want=%v", got, 100*time.Millisecond)
		}
	}
	if got := cfg.Delay(0, nil); got != 100*time.Millisecond {
		t.Fatalf("attempt 0 delay got=%v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	testlog.Start(t)
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cases := []Config{
		{BufferSize: 100, FrameMax: 200},
		{BufferSize: 100, FrameMax: frame.Overhead},
		{BufferSize: 100, FrameMax: 100, ReadTimeout: -time.Second},
		{BufferSize: 100, FrameMax: 100, MaxConnectAttempts: -1},
	}
	for i, cfg := range cases {
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("case %d: expected ErrInvalidConfig, got %v", i, err)
		}
	}
	if _, err := NewReader(bytes.NewReader(nil), Config{BufferSize: 16, FrameMax: 32}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("reader accepted invalid config: %v", err)
	}
}

func TestWithDefaultsFillsZeroFields(t *testing.T) {
	testlog.Start(t)
	cfg := Config{FrameMax: 4096}.WithDefaults()
	if cfg.BufferSize != 4096 {
		t.Fatalf("buffer size should follow frame max, got %d", cfg.BufferSize)
	}
	if cfg.ReadTimeout != 0 {
		t.Fatalf("zero read timeout should stay disabled, got %v", cfg.ReadTimeout)
	}
	if cfg.Backoff.InitialDelay == 0 || cfg.ConnectTimeout == 0 {
		t.Fatalf("dial defaults not filled: %+v", cfg)
	}
}

func TestReaderDecodesOneByteAtATime(t *testing.T) {
	testlog.Start(t)
	frames := []frame.Frame{
		{Type: frame.TypeMethod, Channel: 0, Payload: []byte{0, 10, 0, 10}},
		{Type: frame.TypeBody, Channel: 1, Payload: []byte("one byte at a time")},
		frame.Heartbeat(),
	}
	wire := encodeFrames(t, frames...)

	r, err := NewReader(iotest.OneByteReader(bytes.NewReader(wire)), smallConfig())
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	for i, want := range frames {
		got, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if got.Type != want.Type || got.Channel != want.Channel || !bytes.Equal(got.Payload, want.Payload) {
			t.Fatalf("frame %d mismatch: %+v", i, got)
		}
	}
	if _, err := r.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF at frame boundary, got %v", err)
	}
	if r.Frames() != 3 || r.Bytes() != uint64(len(wire)) {
		t.Fatalf("counters frames=%d bytes=%d wire=%d", r.Frames(), r.Bytes(), len(wire))
	}
}

func TestReaderCompactsAcrossManyFrames(t *testing.T) {
	testlog.Start(t)
	rng := mwc.Rand()
	var frames []frame.Frame
	for i := 0; i < 200; i++ {
		payload := make([]byte, rng.Uint32n(56))
		for j := range payload {
			payload[j] = byte(rng.Uint32())
		}
		frames = append(frames, frame.Frame{Type: frame.TypeBody, Channel: uint16(i), Payload: payload})
	}
	wire := encodeFrames(t, frames...)

	r, err := NewReader(iotest.HalfReader(bytes.NewReader(wire)), smallConfig())
	assert.NoError(t, err)
	for _, want := range frames {
		got, err := r.ReadFrame()
		assert.NoError(t, err)
		assert.Equal(t, got.Channel, want.Channel)
		assert.That(t, bytes.Equal(got.Payload, want.Payload))
	}
	assert.Equal(t, r.Buffered(), 0)
}

func TestReaderUnexpectedEOF(t *testing.T) {
	testlog.Start(t)
	wire := encodeFrames(t, frame.Frame{Type: frame.TypeBody, Channel: 1, Payload: []byte("cut short")})
	r, err := NewReader(bytes.NewReader(wire[:len(wire)-3]), smallConfig())
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	if _, err := r.ReadFrame(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestReaderRejectsOversizedFrame(t *testing.T) {
	testlog.Start(t)
	wire := encodeFrames(t, frame.Frame{Type: frame.TypeBody, Payload: make([]byte, 100)})
	r, err := NewReader(bytes.NewReader(wire), smallConfig())
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	if _, err := r.ReadFrame(); !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReaderProtocolHeaderThenFrames(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	w, err := NewWriter(&out, smallConfig())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteProtocolHeader(frame.DefaultProtocolHeader()); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := w.Send(frame.Heartbeat()); err != nil {
		t.Fatalf("send: %v", err)
	}

	r, err := NewReader(iotest.OneByteReader(&out), smallConfig())
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	h, err := r.ReadProtocolHeader()
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if h != frame.DefaultProtocolHeader() {
		t.Fatalf("header mismatch: %s", h)
	}
	f, err := r.ReadFrame()
	if err != nil || f.Type != frame.TypeHeartbeat {
		t.Fatalf("expected heartbeat, got %s err=%v", f.Type, err)
	}
}

func TestReaderBadProtocolHeader(t *testing.T) {
	testlog.Start(t)
	r, err := NewReader(bytes.NewReader([]byte("GET / HTTP/1.1\r\n")), smallConfig())
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	if _, err := r.ReadProtocolHeader(); !errors.Is(err, frame.ErrBadProtocolHeader) {
		t.Fatalf("expected ErrBadProtocolHeader, got %v", err)
	}
}

func TestWriterFlushesWhenFull(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	w, err := NewWriter(&out, smallConfig())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	f := frame.Frame{Type: frame.TypeBody, Payload: make([]byte, 30)}
	if err := w.WriteFrame(f); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("first frame should stay buffered")
	}
	if err := w.WriteFrame(f); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if out.Len() != f.Size() || w.Buffered() != f.Size() {
		t.Fatalf("expected one frame flushed and one buffered, out=%d buffered=%d", out.Len(), w.Buffered())
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if out.Len() != 2*f.Size() || w.Frames() != 2 || w.Bytes() != uint64(2*f.Size()) {
		t.Fatalf("after flush out=%d frames=%d bytes=%d", out.Len(), w.Frames(), w.Bytes())
	}
}

func TestWriterRejectsOversizedFrame(t *testing.T) {
	testlog.Start(t)
	w, err := NewWriter(io.Discard, smallConfig())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteFrame(frame.Frame{Type: frame.TypeBody, Payload: make([]byte, 57)}); !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if w.Frames() != 0 || w.Buffered() != 0 {
		t.Fatalf("rejected frame was counted")
	}
}

type failingWriter struct {
	failures int
	accept   int
	out      bytes.Buffer
}

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.failures > 0 {
		f.failures--
		n := min(f.accept, len(p))
		f.out.Write(p[:n])
		return n, errors.New("link down")
	}
	return f.out.Write(p)
}

func TestWriterKeepsUnwrittenTailOnError(t *testing.T) {
	testlog.Start(t)
	fw := &failingWriter{failures: 1, accept: 3}
	w, err := NewWriter(fw, smallConfig())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	f := frame.Frame{Type: frame.TypeBody, Channel: 5, Payload: []byte("retry me")}
	if err := w.WriteFrame(f); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if err := w.Flush(); err == nil {
		t.Fatalf("expected flush error")
	}
	if w.Buffered() != f.Size()-3 {
		t.Fatalf("expected %d bytes still queued, got %d", f.Size()-3, w.Buffered())
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("second flush: %v", err)
	}

	b := buffer.MustNew(64)
	if err := b.PutRawData(fw.out.Bytes()); err != nil {
		t.Fatalf("put raw: %v", err)
	}
	b.Flip()
	got, err := frame.Decode(b, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("decode retried frame: %v", err)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("payload mismatch: %q", got.Payload)
	}
}

func TestReaderWriterOverPipe(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cfg := smallConfig()
	cfg.ReadTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second

	done := make(chan error, 1)
	go func() {
		w, err := NewWriter(client, cfg)
		if err != nil {
			done <- err
			return
		}
		for i := 0; i < 20; i++ {
			if err := w.Send(frame.Frame{Type: frame.TypeBody, Channel: uint16(i), Payload: []byte("piped")}); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	r, err := NewReader(server, cfg)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	for i := 0; i < 20; i++ {
		f, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if f.Channel != uint16(i) {
			t.Fatalf("frame %d arrived on channel %d", i, f.Channel)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("writer: %v", err)
	}
}

func TestDialConnects(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			_ = conn.Close()
		}
	}()

	conn, err := Dial(context.Background(), ln.Addr().String(), DefaultConfig())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.Close()
}

func TestDialGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := DefaultConfig()
	cfg.MaxConnectAttempts = 2
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1}
	if _, err := Dial(context.Background(), addr, cfg); !errors.Is(err, ErrDialExhausted) {
		t.Fatalf("expected ErrDialExhausted, got %v", err)
	}
}

func TestDialStopsOnContextCancel(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := DefaultConfig()
	cfg.MaxConnectAttempts = 0
	cfg.Backoff = BackoffConfig{InitialDelay: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := Dial(ctx, addr, cfg); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
