package server

import (
	"time"

	"github.com/danmuck/amqpwire/internal/protocol/session"
)

// ServiceConfig configures the frame listener and its admin surface.
type ServiceConfig struct {
	ListenAddr string
	// AdminAddr enables the admin HTTP server when set.
	AdminAddr   string
	NodeID      string
	CorsOrigins []string
	// ClosedRetention is how long closed connections stay visible.
	ClosedRetention time.Duration
	// ClosedCapacity bounds the closed connection history.
	ClosedCapacity int
	Session        session.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:      ":5672",
		AdminAddr:       "127.0.0.1:15672",
		NodeID:          "amqpwire.local",
		CorsOrigins:     []string{"http://localhost:3000"},
		ClosedRetention: 5 * time.Minute,
		ClosedCapacity:  1024,
		Session:         session.DefaultConfig(),
	}
}

// WithDefaults fills zero fields from DefaultServiceConfig. AdminAddr is
// left alone: empty disables the admin server.
func (c ServiceConfig) WithDefaults() ServiceConfig {
	def := DefaultServiceConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.NodeID == "" {
		c.NodeID = def.NodeID
	}
	if len(c.CorsOrigins) == 0 {
		c.CorsOrigins = def.CorsOrigins
	}
	if c.ClosedRetention <= 0 {
		c.ClosedRetention = def.ClosedRetention
	}
	if c.ClosedCapacity <= 0 {
		c.ClosedCapacity = def.ClosedCapacity
	}
	c.Session = c.Session.WithDefaults()
	return c
}
