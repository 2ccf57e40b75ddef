package frame

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol/buffer"
	"github.com/danmuck/amqpwire/internal/protocol/fieldtable"
)

func TestContentHeaderRoundTrip(t *testing.T) {
	headers := fieldtable.New()
	headers.Set("x-retry", fieldtable.NewInteger(3))

	in := ContentHeader{
		ClassID:  60,
		BodySize: 1 << 20,
		Properties: Properties{
			ContentType:   "application/json",
			Headers:       headers,
			DeliveryMode:  2,
			Priority:      5,
			CorrelationID: "c-1",
			ReplyTo:       "replies",
			MessageID:     "m-42",
			Timestamp:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			AppID:         "framectl",
		},
	}
	payload, err := in.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(payload) != in.EncodedSize() {
		t.Fatalf("payload is %d bytes, EncodedSize reports %d", len(payload), in.EncodedSize())
	}

	out, err := ParseContentHeader(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.ClassID != 60 || out.BodySize != 1<<20 {
		t.Fatalf("fixed fields mismatch: %+v", out)
	}
	p := out.Properties
	if p.ContentType != "application/json" || p.CorrelationID != "c-1" || p.ReplyTo != "replies" {
		t.Fatalf("string properties mismatch: %+v", p)
	}
	if p.MessageID != "m-42" || p.AppID != "framectl" || p.ContentEncoding != "" || p.UserID != "" {
		t.Fatalf("string properties mismatch: %+v", p)
	}
	if p.DeliveryMode != 2 || p.Priority != 5 {
		t.Fatalf("octet properties mismatch: %+v", p)
	}
	if !p.Timestamp.Equal(in.Properties.Timestamp) {
		t.Fatalf("timestamp mismatch: %v", p.Timestamp)
	}
	if p.Headers == nil {
		t.Fatalf("headers dropped")
	}
	if v, ok := p.Headers.Get("x-retry"); !ok {
		t.Fatalf("header entry dropped")
	} else if n, err := v.AsInteger(); err != nil || n != 3 {
		t.Fatalf("header entry mismatch: %d err=%v", n, err)
	}
}

func TestContentHeaderFlagsLayout(t *testing.T) {
	h := ContentHeader{ClassID: 60, BodySize: 5, Properties: Properties{ContentType: "t", DeliveryMode: 1}}
	payload, err := h.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	want := []byte{
		0x00, 0x3C, // class
		0x00, 0x00, // weight
		0, 0, 0, 0, 0, 0, 0, 5, // body size
		0x90, 0x00, // content-type | delivery-mode
		1, 't',
		1,
	}
	if !bytes.Equal(payload, want) {
		t.Fatalf("wire mismatch:\n got % x\nwant % x", payload, want)
	}
}

func TestHeaderFrameTravelsThroughBuffer(t *testing.T) {
	h := ContentHeader{ClassID: 60, BodySize: 11, Properties: Properties{Type: "greeting"}}
	f, err := h.HeaderFrame(4)
	if err != nil {
		t.Fatalf("header frame: %v", err)
	}
	b := buffer.MustNew(128)
	if err := Encode(b, f, DefaultLimits()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	b.Flip()
	got, err := Decode(b, DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != TypeHeader || got.Channel != 4 {
		t.Fatalf("frame mismatch: %s channel %d", got.Type, got.Channel)
	}
	parsed, err := ParseContentHeader(got.Payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Properties.Type != "greeting" || parsed.BodySize != 11 {
		t.Fatalf("parsed header mismatch: %+v", parsed)
	}
}

func TestParseContentHeaderErrors(t *testing.T) {
	if _, err := ParseContentHeader([]byte{0, 60}); !errors.Is(err, ErrBadContentHeader) {
		t.Fatalf("expected ErrBadContentHeader, got %v", err)
	}

	continued := []byte{0, 60, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x00, 0x01}
	if _, err := ParseContentHeader(continued); !errors.Is(err, ErrFlagContinuation) {
		t.Fatalf("expected ErrFlagContinuation, got %v", err)
	}

	// content-type flagged but missing
	missing := []byte{0, 60, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x80, 0x00}
	if _, err := ParseContentHeader(missing); !errors.Is(err, buffer.ErrUnderflow) {
		t.Fatalf("expected ErrUnderflow, got %v", err)
	}

	trailing := []byte{0, 60, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x00, 0x00, 0xFF}
	if _, err := ParseContentHeader(trailing); !errors.Is(err, ErrBadContentHeader) {
		t.Fatalf("expected trailing bytes rejected, got %v", err)
	}
}

func TestContentHeaderRejectsLongShortString(t *testing.T) {
	h := ContentHeader{ClassID: 60, Properties: Properties{ReplyTo: string(bytes.Repeat([]byte("r"), 256))}}
	if _, err := h.Payload(); !errors.Is(err, buffer.ErrStringTooLong) {
		t.Fatalf("expected ErrStringTooLong, got %v", err)
	}
}

// Presence follows the zero value: a property sent with its zero value
// parses, but is not written again on re-encode.
func TestZeroValuedPropertiesAreDroppedOnReencode(t *testing.T) {
	// class 60, weight 0, body size 0, flags content-type|priority,
	// empty content-type, priority 0
	in := []byte{
		0x00, 0x3C,
		0x00, 0x00,
		0, 0, 0, 0, 0, 0, 0, 0,
		0x88, 0x00,
		0,
		0x00,
	}
	h, err := ParseContentHeader(in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.Properties.ContentType != "" || h.Properties.Priority != 0 {
		t.Fatalf("unexpected properties: %+v", h.Properties)
	}

	out, err := h.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	want := []byte{0x00, 0x3C, 0x00, 0x00, 0, 0, 0, 0, 0, 0, 0, 0, 0x00, 0x00}
	if !bytes.Equal(out, want) {
		t.Fatalf("re-encoded mismatch:\n got % x\nwant % x", out, want)
	}
}
