package server

import (
	"net"
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/google/uuid"

	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/protocol/session"
)

// ConnInfo is a point-in-time view of one connection.
type ConnInfo struct {
	ID          string     `json:"id"`
	Remote      string     `json:"remote"`
	Protocol    string     `json:"protocol,omitempty"`
	ConnectedAt time.Time  `json:"connected_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`
	FramesIn    uint64     `json:"frames_in"`
	FramesOut   uint64     `json:"frames_out"`
	BytesIn     uint64     `json:"bytes_in"`
	BytesOut    uint64     `json:"bytes_out"`
	PayloadP50  int64      `json:"payload_p50"`
	PayloadP99  int64      `json:"payload_p99"`
}

type conn struct {
	id          string
	netConn     net.Conn
	remote      string
	connectedAt time.Time
	reader      *session.Reader
	writer      *session.Writer

	mu       sync.Mutex
	protocol string
	sizes    *hdrhistogram.Histogram
}

func newConn(nc net.Conn, cfg session.Config) (*conn, error) {
	reader, err := session.NewReader(nc, cfg)
	if err != nil {
		return nil, err
	}
	writer, err := session.NewWriter(nc, cfg)
	if err != nil {
		return nil, err
	}
	return &conn{
		id:          uuid.NewString(),
		netConn:     nc,
		remote:      nc.RemoteAddr().String(),
		connectedAt: time.Now().UTC(),
		reader:      reader,
		writer:      writer,
		sizes:       hdrhistogram.New(1, int64(cfg.WithDefaults().FrameMax), 3),
	}, nil
}

func (c *conn) setProtocol(h frame.ProtocolHeader) {
	c.mu.Lock()
	c.protocol = h.String()
	c.mu.Unlock()
}

func (c *conn) observePayload(n int) {
	c.mu.Lock()
	_ = c.sizes.RecordValue(int64(n))
	c.mu.Unlock()
}

func (c *conn) info() ConnInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnInfo{
		ID:          c.id,
		Remote:      c.remote,
		Protocol:    c.protocol,
		ConnectedAt: c.connectedAt,
		FramesIn:    c.reader.Frames(),
		FramesOut:   c.writer.Frames(),
		BytesIn:     c.reader.Bytes(),
		BytesOut:    c.writer.Bytes(),
		PayloadP50:  c.sizes.ValueAtQuantile(50),
		PayloadP99:  c.sizes.ValueAtQuantile(99),
	}
}
