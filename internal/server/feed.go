package server

import (
	"sync"
	"time"
)

// FrameEvent describes one frame seen on a connection.
type FrameEvent struct {
	ConnID    string    `json:"conn_id"`
	Direction string    `json:"direction"`
	Type      string    `json:"type"`
	Channel   uint16    `json:"channel"`
	Size      int       `json:"size"`
	Digest    string    `json:"digest,omitempty"`
	At        time.Time `json:"at"`

	Method      string `json:"method,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	BodySize    uint64 `json:"body_size,omitempty"`
}

// feed fans frame events out to subscribers. Slow subscribers miss events
// instead of stalling connections.
type feed struct {
	mu     sync.Mutex
	subs   map[chan FrameEvent]struct{}
	buffer int
}

func newFeed(buffer int) *feed {
	return &feed{subs: make(map[chan FrameEvent]struct{}), buffer: buffer}
}

func (f *feed) subscribe() (<-chan FrameEvent, func()) {
	ch := make(chan FrameEvent, f.buffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (f *feed) publish(ev FrameEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (f *feed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
