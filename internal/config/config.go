// Package config loads and validates frame service configuration files.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/amqpwire/internal/logging"
	"github.com/danmuck/amqpwire/internal/server"
)

var ErrInvalid = errors.New("config: invalid")

// File is the on-disk layout. Durations are Go duration strings.
type File struct {
	NodeID          string   `toml:"node_id"`
	ListenAddr      string   `toml:"listen_addr"`
	AdminAddr       string   `toml:"admin_addr"`
	CorsOrigins     []string `toml:"cors_origins"`
	ClosedRetention string   `toml:"closed_retention"`
	ClosedCapacity  int      `toml:"closed_capacity"`

	Session SessionFile        `toml:"session"`
	Log     logging.FileConfig `toml:"log"`
}

type SessionFile struct {
	BufferSize         int         `toml:"buffer_size"`
	FrameMax           uint32      `toml:"frame_max"`
	ReadTimeout        string      `toml:"read_timeout"`
	WriteTimeout       string      `toml:"write_timeout"`
	HeartbeatInterval  string      `toml:"heartbeat_interval"`
	ConnectTimeout     string      `toml:"connect_timeout"`
	MaxConnectAttempts int         `toml:"max_connect_attempts"`
	Backoff            BackoffFile `toml:"backoff"`
}

type BackoffFile struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

// Loaded is a decoded configuration file.
type Loaded struct {
	Service server.ServiceConfig
	Log     logging.FileConfig
}

// Load decodes path and overlays every key it defines onto the service
// defaults, then validates the result.
func Load(path string) (Loaded, error) {
	var raw File
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Loaded{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Loaded{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalid, undecoded[0].String(), path)
	}

	out := Loaded{Service: server.DefaultServiceConfig()}
	cfg := &out.Service
	if meta.IsDefined("node_id") {
		cfg.NodeID = strings.TrimSpace(raw.NodeID)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	if meta.IsDefined("closed_retention") {
		if cfg.ClosedRetention, err = parseDuration("closed_retention", raw.ClosedRetention); err != nil {
			return Loaded{}, err
		}
	}
	if meta.IsDefined("closed_capacity") {
		cfg.ClosedCapacity = raw.ClosedCapacity
	}

	s := &cfg.Session
	rs := raw.Session
	if meta.IsDefined("session", "buffer_size") {
		s.BufferSize = rs.BufferSize
	}
	if meta.IsDefined("session", "frame_max") {
		s.FrameMax = rs.FrameMax
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"read_timeout", rs.ReadTimeout, &s.ReadTimeout},
		{"write_timeout", rs.WriteTimeout, &s.WriteTimeout},
		{"heartbeat_interval", rs.HeartbeatInterval, &s.HeartbeatInterval},
		{"connect_timeout", rs.ConnectTimeout, &s.ConnectTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined("session", d.key) {
			continue
		}
		if *d.dst, err = parseDuration("session."+d.key, d.raw); err != nil {
			return Loaded{}, err
		}
	}
	if meta.IsDefined("session", "max_connect_attempts") {
		s.MaxConnectAttempts = rs.MaxConnectAttempts
	}
	if meta.IsDefined("session", "backoff", "initial_delay") {
		if s.Backoff.InitialDelay, err = parseDuration("session.backoff.initial_delay", rs.Backoff.InitialDelay); err != nil {
			return Loaded{}, err
		}
	}
	if meta.IsDefined("session", "backoff", "multiplier") {
		s.Backoff.Multiplier = rs.Backoff.Multiplier
	}
	if meta.IsDefined("session", "backoff", "max_delay") {
		if s.Backoff.MaxDelay, err = parseDuration("session.backoff.max_delay", rs.Backoff.MaxDelay); err != nil {
			return Loaded{}, err
		}
	}
	if meta.IsDefined("session", "backoff", "jitter") {
		s.Backoff.Jitter = rs.Backoff.Jitter
	}

	out.Log = raw.Log
	out.Log.Path = strings.TrimSpace(out.Log.Path)

	if err := ValidateServiceConfig(out.Service); err != nil {
		return Loaded{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := ValidateLogConfig(out.Log); err != nil {
		return Loaded{}, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func ValidateServiceConfig(cfg server.ServiceConfig) error {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return fmt.Errorf("%w: node_id is required", ErrInvalid)
	}
	if err := validateAddr("listen_addr", cfg.ListenAddr); err != nil {
		return err
	}
	if cfg.AdminAddr != "" {
		if err := validateAddr("admin_addr", cfg.AdminAddr); err != nil {
			return err
		}
	}
	for _, origin := range cfg.CorsOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("%w: cors origin %q needs an http:// or https:// scheme", ErrInvalid, origin)
		}
	}
	if cfg.ClosedRetention < 0 || cfg.ClosedCapacity < 0 {
		return fmt.Errorf("%w: closed connection history must not be negative", ErrInvalid)
	}
	if err := cfg.Session.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func ValidateLogConfig(cfg logging.FileConfig) error {
	if cfg.MaxSizeMB < 0 || cfg.MaxBackups < 0 || cfg.MaxAgeDays < 0 {
		return fmt.Errorf("%w: log rotation limits must not be negative", ErrInvalid)
	}
	return nil
}

func validateAddr(key, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalid, key, addr, err)
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %v", ErrInvalid, key, err)
	}
	return d, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}
