package main

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/protocol/session"
)

// probeHeartbeat performs the protocol handshake, sends one heartbeat and
// waits for the reply.
func probeHeartbeat(ctx context.Context, addr string, cfg session.Config) (time.Duration, error) {
	conn, err := session.Dial(ctx, addr, cfg)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// the connection deadline covers the whole exchange
	cfg.ReadTimeout = 0
	cfg.WriteTimeout = 0

	w, err := session.NewWriter(conn, cfg)
	if err != nil {
		return 0, err
	}
	r, err := session.NewReader(conn, cfg)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if err := w.WriteProtocolHeader(frame.DefaultProtocolHeader()); err != nil {
		return 0, err
	}
	if err := w.Send(frame.Heartbeat()); err != nil {
		return 0, err
	}
	for {
		f, err := r.ReadFrame()
		if err != nil {
			return 0, fmt.Errorf("probe %s: %w", addr, err)
		}
		if f.Type == frame.TypeHeartbeat {
			return time.Since(start), nil
		}
	}
}
