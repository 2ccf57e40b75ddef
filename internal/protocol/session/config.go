package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol/frame"
)

var ErrInvalidConfig = errors.New("session: invalid config")

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config sizes stream buffers and bounds connection I/O.
type Config struct {
	// BufferSize is the capacity of each read and write buffer.
	BufferSize int
	// FrameMax is the largest frame, overhead included, either side may send.
	FrameMax          uint32
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration

	ConnectTimeout     time.Duration
	MaxConnectAttempts int
	Backoff            BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		BufferSize:         int(frame.DefaultFrameMax),
		FrameMax:           frame.DefaultFrameMax,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		HeartbeatInterval:  5 * time.Second,
		ConnectTimeout:     5 * time.Second,
		MaxConnectAttempts: 5,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig. Timeouts and the
// heartbeat interval are left alone: zero disables them.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.FrameMax == 0 {
		c.FrameMax = def.FrameMax
	}
	if c.BufferSize <= 0 {
		c.BufferSize = int(c.FrameMax)
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	return c
}

// Validate checks that a full frame fits in one buffer.
func (c Config) Validate() error {
	if c.FrameMax <= frame.Overhead {
		return fmt.Errorf("%w: frame max %d must exceed frame overhead %d", ErrInvalidConfig, c.FrameMax, frame.Overhead)
	}
	if c.BufferSize < int(c.FrameMax) {
		return fmt.Errorf("%w: buffer size %d cannot hold a %d byte frame", ErrInvalidConfig, c.BufferSize, c.FrameMax)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.HeartbeatInterval < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	if c.MaxConnectAttempts < 0 {
		return fmt.Errorf("%w: max connect attempts %d", ErrInvalidConfig, c.MaxConnectAttempts)
	}
	return nil
}

// Limits returns the frame limits implied by FrameMax.
func (c Config) Limits() frame.Limits {
	return frame.LimitsFor(c.FrameMax)
}
