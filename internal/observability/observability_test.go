package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/car-marketplace/internal/config"
)

func TestNewLoggerLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		logger, err := NewLogger(config.LoggerConfig{Level: in}, zap.String("service", "test"))
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", in, err)
		}
		if !logger.Core().Enabled(want) || (want > zapcore.DebugLevel && logger.Core().Enabled(want-1)) {
			t.Errorf("NewLogger(%q): level is not %v", in, want)
		}
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/catalog/listings", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/api/catalog/listings", "GET", 200, 30*time.Millisecond)
	m.RecordError("/api/reviews", "POST", "VALIDATION_FAILED")

	snap := m.Snapshot()
	key := "/api/catalog/listings|GET|200"
	if snap.Requests[key] != 2 {
		t.Fatalf("requests = %v", snap.Requests)
	}
	if snap.AvgLatencyMilli[key] != 20 {
		t.Errorf("avg latency = %v, want 20", snap.AvgLatencyMilli[key])
	}
	if snap.Errors["/api/reviews|POST|VALIDATION_FAILED"] != 1 {
		t.Errorf("errors = %v", snap.Errors)
	}

	var nilMetrics *Metrics
	nilMetrics.RecordRequest("/", "GET", 200, time.Millisecond)
	if got := nilMetrics.Snapshot(); len(got.Requests) != 0 {
		t.Errorf("nil metrics snapshot = %v", got)
	}
}

func TestRequestLoggerAssignsULIDAndLogsPrincipal(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics, func(c *fiber.Ctx) (int64, bool) { return 9, true }))
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	id := resp.Header.Get(RequestIDHeader)
	if len(id) != 26 || strings.ToUpper(id) != id {
		t.Fatalf("request id %q is not a ULID", id)
	}

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != id || fields["user_id"] != int64(9) || fields["status"] != int64(200) {
		t.Errorf("fields = %v", fields)
	}
	if metrics.Snapshot().Requests["/ping|GET|200"] != 1 {
		t.Errorf("metrics = %v", metrics.Snapshot().Requests)
	}
}
