package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/maypok86/otter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/xxh3"

	"github.com/danmuck/amqpwire/internal/observability"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/protocol/method"
	"github.com/danmuck/amqpwire/internal/protocol/session"
)

const feedBuffer = 256

// Service accepts frame connections and keeps their state for the admin
// surface.
type Service struct {
	cfg      ServiceConfig
	logger   zerolog.Logger
	started  time.Time
	feed     *feed
	closed   otter.Cache[string, ConnInfo]
	supports frame.ProtocolHeader

	connsMu  sync.Mutex
	conns    map[string]*conn
	closing  bool
	handlers sync.WaitGroup
}

func NewService(cfg ServiceConfig) (*Service, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}
	closed, err := otter.MustBuilder[string, ConnInfo](cfg.ClosedCapacity).
		WithTTL(cfg.ClosedRetention).
		Build()
	if err != nil {
		return nil, fmt.Errorf("server: closed connection cache: %w", err)
	}
	observability.RegisterMetrics()
	return &Service{
		cfg:      cfg,
		logger:   log.Logger.With().Str("node", cfg.NodeID).Logger(),
		started:  time.Now(),
		feed:     newFeed(feedBuffer),
		closed:   closed,
		supports: frame.DefaultProtocolHeader(),
		conns:    make(map[string]*conn),
	}, nil
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// Close releases the closed connection history.
func (s *Service) Close() {
	s.closed.Close()
}

// Run binds the configured listeners and blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("frame listener up")

	adminErr := make(chan error, 1)
	if s.cfg.AdminAddr != "" {
		admin := &http.Server{
			Addr:              s.cfg.AdminAddr,
			Handler:           s.AdminRouter(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.logger.Info().Str("addr", s.cfg.AdminAddr).Msg("admin listener up")
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				adminErr <- err
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = admin.Shutdown(shutdownCtx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()
	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		stop()
		<-serveErr
		return err
	}
}

// Serve runs the accept loop on ln until ctx ends. Open connections are
// closed and their handlers finished before Serve returns. Connections
// accepted after shutdown has begun are closed without being handled.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer s.handlers.Wait()
	defer ln.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.closeAllConns()
			_ = ln.Close()
		case <-done:
		}
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			s.closeAllConns()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			_ = nc.Close()
			return nil
		}
		c, err := newConn(nc, s.cfg.Session)
		if err != nil {
			_ = nc.Close()
			s.closeAllConns()
			return err
		}
		if !s.trackConn(c) {
			_ = nc.Close()
			return nil
		}
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			s.handleConn(ctx, c)
		}()
	}
}

// Connections returns live connections, oldest first.
func (s *Service) Connections() []ConnInfo {
	s.connsMu.Lock()
	out := make([]ConnInfo, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c.info())
	}
	s.connsMu.Unlock()
	sortByConnected(out)
	return out
}

// ClosedConnections returns recently closed connections, oldest first.
func (s *Service) ClosedConnections() []ConnInfo {
	var out []ConnInfo
	s.closed.Range(func(_ string, info ConnInfo) bool {
		out = append(out, info)
		return true
	})
	sortByConnected(out)
	return out
}

func sortByConnected(infos []ConnInfo) {
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
}

func (s *Service) handleConn(ctx context.Context, c *conn) {
	ctx, cancel := context.WithCancel(ctx)
	logger := s.logger.With().Str("conn", c.id).Str("remote", c.remote).Logger()
	observability.ConnectionOpened(s.cfg.NodeID)
	logger.Info().Msg("connection opened")

	reason := "eof"
	defer func() {
		cancel()
		_ = c.netConn.Close()
		s.untrackConn(c, reason)
		observability.ConnectionClosed(s.cfg.NodeID)
		logger.Info().Str("reason", reason).Msg("connection closed")
	}()

	h, err := c.reader.ReadProtocolHeader()
	if err != nil {
		reason = s.closeReason(err)
		if errors.Is(err, frame.ErrBadProtocolHeader) {
			s.announceProtocol(c, logger)
		}
		logger.Warn().Err(err).Msg("protocol header rejected")
		return
	}
	observability.RecordBytes(s.cfg.NodeID, observability.DirectionIn, frame.ProtocolHeaderLen)
	if h != s.supports {
		reason = "unsupported_protocol"
		s.announceProtocol(c, logger)
		logger.Warn().Stringer("protocol", h).Msg("unsupported protocol version")
		return
	}
	c.setProtocol(h)
	logger.Debug().Stringer("protocol", h).Msg("protocol header accepted")

	if interval := s.cfg.Session.HeartbeatInterval; interval > 0 {
		go s.heartbeat(ctx, c, interval, logger)
	}

	for {
		f, err := c.reader.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				reason = "shutdown"
				return
			}
			reason = s.closeReason(err)
			if reason != "eof" {
				logger.Warn().Err(err).Msg("read frame")
			}
			return
		}
		s.observe(c, observability.DirectionIn, f, logger)
		if f.Type == frame.TypeHeartbeat {
			if err := s.send(c, frame.Heartbeat(), logger); err != nil {
				reason = "write_failed"
				return
			}
		}
	}
}

func (s *Service) heartbeat(ctx context.Context, c *conn, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.send(c, frame.Heartbeat(), logger); err != nil {
				return
			}
		}
	}
}

func (s *Service) send(c *conn, f frame.Frame, logger zerolog.Logger) error {
	if err := c.writer.Send(f); err != nil {
		logger.Warn().Err(err).Stringer("type", f.Type).Msg("write frame")
		return err
	}
	s.observe(c, observability.DirectionOut, f, logger)
	return nil
}

// announceProtocol tells a peer which protocol this node speaks before the
// connection is dropped.
func (s *Service) announceProtocol(c *conn, logger zerolog.Logger) {
	if err := c.writer.WriteProtocolHeader(s.supports); err != nil {
		return
	}
	if err := c.writer.Flush(); err != nil {
		logger.Debug().Err(err).Msg("announce protocol")
		return
	}
	observability.RecordBytes(s.cfg.NodeID, observability.DirectionOut, frame.ProtocolHeaderLen)
}

func (s *Service) observe(c *conn, direction string, f frame.Frame, logger zerolog.Logger) {
	observability.RecordFrame(s.cfg.NodeID, direction, f.Type.String(), f.Size())
	ev := FrameEvent{
		ConnID:    c.id,
		Direction: direction,
		Type:      f.Type.String(),
		Channel:   f.Channel,
		Size:      f.Size(),
		At:        time.Now().UTC(),
	}
	if len(f.Payload) > 0 {
		c.observePayload(len(f.Payload))
		ev.Digest = fmt.Sprintf("%016x", xxh3.Hash(f.Payload))
	}
	if f.Type == frame.TypeMethod {
		s.observeMethod(direction, f, &ev, logger)
	}
	if f.Type == frame.TypeHeader && direction == observability.DirectionIn {
		if h, err := frame.ParseContentHeader(f.Payload); err == nil {
			ev.ContentType = h.Properties.ContentType
			ev.BodySize = h.BodySize
		} else {
			logger.Debug().Err(err).Msg("content header")
		}
	}
	logger.Trace().
		Str("direction", direction).
		Str("type", ev.Type).
		Uint16("channel", f.Channel).
		Int("size", ev.Size).
		Str("digest", ev.Digest).
		Str("method", ev.Method).
		Msg("frame")
	s.feed.publish(ev)
}

func (s *Service) observeMethod(direction string, f frame.Frame, ev *FrameEvent, logger zerolog.Logger) {
	m, err := method.Parse(f.Payload)
	if err != nil {
		logger.Debug().Err(err).Msg("method frame")
		return
	}
	ev.Method = m.Name()
	label := "unknown"
	if _, ok := method.Lookup(m.ClassID, m.MethodID); ok {
		label = ev.Method
	}
	observability.RecordMethod(s.cfg.NodeID, direction, label)
}

// closeReason classifies a read error for logs and metrics. Anything other
// than a clean EOF counts as a decode error.
func (s *Service) closeReason(err error) string {
	reason := "io"
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		return "eof"
	case errors.Is(err, net.ErrClosed):
		return "closed"
	case errors.Is(err, io.ErrUnexpectedEOF):
		reason = "unexpected_eof"
	case errors.Is(err, frame.ErrBadProtocolHeader):
		reason = "bad_protocol_header"
	case errors.Is(err, frame.ErrBadFrameEnd):
		reason = "bad_frame_end"
	case errors.Is(err, frame.ErrUnknownType):
		reason = "unknown_type"
	case errors.Is(err, frame.ErrPayloadTooLarge):
		reason = "payload_too_large"
	case errors.Is(err, session.ErrFrameExceedsBuffer):
		reason = "frame_exceeds_buffer"
	case errors.As(err, &netErr) && netErr.Timeout():
		reason = "timeout"
	}
	observability.RecordDecodeError(s.cfg.NodeID, reason)
	return reason
}

// trackConn refuses connections once closeAllConns has run.
func (s *Service) trackConn(c *conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c.id] = c
	return true
}

func (s *Service) untrackConn(c *conn, reason string) {
	s.connsMu.Lock()
	delete(s.conns, c.id)
	s.connsMu.Unlock()

	info := c.info()
	closedAt := time.Now().UTC()
	info.ClosedAt = &closedAt
	info.CloseReason = reason
	s.closed.Set(c.id, info)
}

func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.closing = true
	for _, c := range s.conns {
		_ = c.netConn.Close()
	}
}
