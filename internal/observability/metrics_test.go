package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/danmuck/amqpwire/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordFrame("node-a", DirectionIn, "heartbeat", 8)
	RecordBytes("node-a", DirectionIn, 8)
	RecordDecodeError("node-a", "bad_frame_end")
	RecordMethod("node-a", DirectionIn, "basic.publish")
	RecordHTTPRequest("node-a", "GET", "/health", 200, 12*time.Millisecond)
}

func TestRecordFrameCounts(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(framesTotal.WithLabelValues("node-count", DirectionOut, "body"))
	bytesBefore := testutil.ToFloat64(bytesTotal.WithLabelValues("node-count", DirectionOut))

	RecordFrame("node-count", DirectionOut, "body", 20)
	RecordFrame("node-count", DirectionOut, "body", 12)

	if got := testutil.ToFloat64(framesTotal.WithLabelValues("node-count", DirectionOut, "body")); got != before+2 {
		t.Fatalf("frames counter got=%v want=%v", got, before+2)
	}
	if got := testutil.ToFloat64(bytesTotal.WithLabelValues("node-count", DirectionOut)); got != bytesBefore+32 {
		t.Fatalf("bytes counter got=%v want=%v", got, bytesBefore+32)
	}
}

func TestConnectionGauge(t *testing.T) {
	testlog.Start(t)
	ConnectionOpened("node-gauge")
	ConnectionOpened("node-gauge")
	ConnectionClosed("node-gauge")
	if got := testutil.ToFloat64(connections.WithLabelValues("node-gauge")); got != 1 {
		t.Fatalf("connections gauge got=%v want=1", got)
	}
}

func TestMiddlewareLabelsUnmatchedRoutes(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop()), RequestMetricsMiddleware("node-http"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/health", "/nope", "/also-nope"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(httpRequests.WithLabelValues("node-http", "GET", "/health", "200")); got != 1 {
		t.Fatalf("health requests got=%v want=1", got)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("node-http", "GET", "unmatched", "404")); got != 2 {
		t.Fatalf("unmatched requests got=%v want=2", got)
	}
}
