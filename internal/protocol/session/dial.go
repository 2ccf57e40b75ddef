package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"time"
)

var ErrDialExhausted = errors.New("session: dial attempts exhausted")

// Delay returns the wait before retry attempt (1-based). The first attempt
// waits InitialDelay as is. Later attempts grow by Multiplier, and Jitter
// scales them by a factor in [0.5, 1.5); without rng the factor is 0.5.
func (c BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return c.InitialDelay
	}
	if c.InitialDelay <= 0 {
		return 0
	}
	delay := float64(c.InitialDelay) * math.Pow(math.Max(c.Multiplier, 1.0), float64(attempt-1))
	if c.MaxDelay > 0 {
		delay = math.Min(delay, float64(c.MaxDelay))
	}
	if c.Jitter {
		factor := 0.5
		if rng != nil {
			factor += rng.Float64()
		}
		delay *= factor
	}
	return time.Duration(delay)
}

// Dial connects to a frame peer over TCP, retrying with backoff until
// MaxConnectAttempts is reached (zero retries forever) or ctx ends.
func Dial(ctx context.Context, addr string, cfg Config) (net.Conn, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}

	for attempt := 1; ; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if cfg.MaxConnectAttempts > 0 && attempt >= cfg.MaxConnectAttempts {
			return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrDialExhausted, addr, attempt, err)
		}

		timer := time.NewTimer(cfg.Backoff.Delay(attempt, rng))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
